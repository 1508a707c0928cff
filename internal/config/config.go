package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	envPrefix    = "NOWPLAYING"
	configFolder = "nowplaying"

	defaultHost           = "127.0.0.1"
	defaultPort           = 6969
	defaultPollInterval   = 500 * time.Millisecond
	defaultRequestTimeout = 20 * time.Second
	defaultProvider       = ProviderMPRIS
	defaultMPDAddress     = "127.0.0.1:6600"
	defaultHTTPTimeout    = 10 * time.Second
	defaultMaxArtBytes    = 10 * 1024 * 1024 // 10 MB
	defaultLogLevel       = "info"
)

// Supported metadata providers
const (
	ProviderMPRIS = "mpris"
	ProviderMPD   = "mpd"
)

// Configuration keys
const (
	KeyHost            = "listen.host"
	KeyPort            = "listen.port"
	KeyPollInterval    = "poll_interval"
	KeyRequestTimeout  = "request_timeout"
	KeyProvider        = "provider"
	KeyMprisPlayer     = "mpris.player"
	KeyMPDAddress      = "mpd.address"
	KeyMPDPassword     = "mpd.password"
	KeyMPDMusicDir     = "mpd.music_dir"
	KeyArtHTTPTimeout  = "artwork.http_timeout"
	KeyArtMaxBytes     = "artwork.max_bytes"
	KeyArtCacheTTL     = "artwork.cache_ttl"
	KeyArtMaxDimension = "artwork.max_dimension"
	KeyStaticDir       = "static_dir"
	KeyLogLevel        = "log.level"
	KeyLogDevelopment  = "log.development"
)

// Load builds a viper instance with defaults, NOWPLAYING_* environment
// overrides and an optional TOML file. An empty path looks for
// config.toml under the user config directory and tolerates its absence.
func Load(path string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(expandHome(path))
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, configFolder))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	return v, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyHost, defaultHost)
	v.SetDefault(KeyPort, defaultPort)
	v.SetDefault(KeyPollInterval, defaultPollInterval)
	v.SetDefault(KeyRequestTimeout, defaultRequestTimeout)
	v.SetDefault(KeyProvider, defaultProvider)
	v.SetDefault(KeyMprisPlayer, "")
	v.SetDefault(KeyMPDAddress, defaultMPDAddress)
	v.SetDefault(KeyMPDPassword, "")
	v.SetDefault(KeyMPDMusicDir, "")
	v.SetDefault(KeyArtHTTPTimeout, defaultHTTPTimeout)
	v.SetDefault(KeyArtMaxBytes, defaultMaxArtBytes)
	v.SetDefault(KeyArtCacheTTL, time.Duration(0))
	v.SetDefault(KeyArtMaxDimension, 0)
	v.SetDefault(KeyStaticDir, "")
	v.SetDefault(KeyLogLevel, defaultLogLevel)
	v.SetDefault(KeyLogDevelopment, false)
}

// AppConfig holds application configuration
type AppConfig struct {
	v *viper.Viper

	Host           string
	Port           int
	PollInterval   time.Duration
	RequestTimeout time.Duration
	Provider       string
	MprisPlayer    string
	MPDAddress     string
	MPDPassword    string
	MPDMusicDir    string
	ArtHTTPTimeout time.Duration
	ArtMaxBytes    int64
	ArtCacheTTL    time.Duration
	ArtMaxDim      int
	StaticDir      string
	LogLevel       string
	LogDevelopment bool

	// Warnings collects values that were rejected and replaced by defaults.
	// They are logged once the logger exists.
	Warnings []string
}

// NewAppConfig creates a new application configuration instance
func NewAppConfig(v *viper.Viper) (*AppConfig, error) {
	c := &AppConfig{
		v:              v,
		Host:           strings.TrimSpace(v.GetString(KeyHost)),
		Port:           v.GetInt(KeyPort),
		Provider:       strings.ToLower(strings.TrimSpace(v.GetString(KeyProvider))),
		MprisPlayer:    strings.TrimSpace(v.GetString(KeyMprisPlayer)),
		MPDAddress:     strings.TrimSpace(v.GetString(KeyMPDAddress)),
		MPDPassword:    v.GetString(KeyMPDPassword),
		MPDMusicDir:    expandHome(strings.TrimSpace(v.GetString(KeyMPDMusicDir))),
		ArtMaxBytes:    v.GetInt64(KeyArtMaxBytes),
		ArtMaxDim:      v.GetInt(KeyArtMaxDimension),
		StaticDir:      expandHome(strings.TrimSpace(v.GetString(KeyStaticDir))),
		LogLevel:       v.GetString(KeyLogLevel),
		LogDevelopment: v.GetBool(KeyLogDevelopment),
	}

	c.PollInterval = c.positiveDuration(KeyPollInterval, defaultPollInterval)
	c.RequestTimeout = c.positiveDuration(KeyRequestTimeout, defaultRequestTimeout)
	c.ArtHTTPTimeout = c.positiveDuration(KeyArtHTTPTimeout, defaultHTTPTimeout)
	c.ArtCacheTTL = v.GetDuration(KeyArtCacheTTL)
	if c.ArtCacheTTL < 0 {
		c.ArtCacheTTL = 0
	}

	if c.Host == "" {
		c.Host = defaultHost
	}
	if c.Port < 0 || c.Port > 65535 {
		c.warn(KeyPort, strconv.Itoa(c.Port))
		c.Port = defaultPort
	}
	if c.ArtMaxBytes <= 0 {
		c.ArtMaxBytes = defaultMaxArtBytes
	}
	if c.ArtMaxDim < 0 {
		c.ArtMaxDim = 0
	}

	switch c.Provider {
	case ProviderMPRIS, ProviderMPD:
	default:
		return nil, fmt.Errorf("unknown provider %q (want %q or %q)", c.Provider, ProviderMPRIS, ProviderMPD)
	}

	return c, nil
}

// positiveDuration reads a duration key, replacing unparsable or non-positive
// values with def.
func (c *AppConfig) positiveDuration(key string, def time.Duration) time.Duration {
	raw := c.v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil {
		// viper stores defaults as time.Duration, whose string form parses
		// above; a bare integer is treated as milliseconds.
		if ms, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil {
			d = time.Duration(ms) * time.Millisecond
			err = nil
		}
	}
	if err != nil || d <= 0 {
		c.warn(key, raw)
		return def
	}
	return d
}

func (c *AppConfig) warn(key, raw string) {
	c.Warnings = append(c.Warnings, fmt.Sprintf("invalid %s %q, using default", key, raw))
}

// Log writes the effective configuration and any rejected values
func (c *AppConfig) Log(logger *zap.Logger) {
	for _, w := range c.Warnings {
		logger.Warn(w)
	}
	logger.Info("Configuration loaded",
		zap.String("listen", c.GetListenAddr()),
		zap.String("provider", c.Provider),
		zap.Duration("pollInterval", c.PollInterval),
		zap.Duration("requestTimeout", c.RequestTimeout),
		zap.Duration("artworkCacheTTL", c.ArtCacheTTL),
		zap.Int("artworkMaxDimension", c.ArtMaxDim),
		zap.String("staticDir", c.StaticDir),
		zap.String("configFile", c.v.ConfigFileUsed()))
}

// WatchLogLevel re-reads log.level whenever the config file changes.
// It does nothing when no config file was loaded.
func (c *AppConfig) WatchLogLevel(onChange func(level string)) bool {
	if c.v.ConfigFileUsed() == "" {
		return false
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&(fsnotify.Write|fsnotify.Create) == 0 {
			return
		}
		onChange(c.v.GetString(KeyLogLevel))
	})
	c.v.WatchConfig()
	return true
}

// GetPollInterval returns the watcher polling interval
func (c *AppConfig) GetPollInterval() time.Duration {
	return c.PollInterval
}

// GetRequestTimeout returns the long-poll bound
func (c *AppConfig) GetRequestTimeout() time.Duration {
	return c.RequestTimeout
}

// GetListenAddr returns host:port for the HTTP surface
func (c *AppConfig) GetListenAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// GetPort returns the configured port
func (c *AppConfig) GetPort() int {
	return c.Port
}

// GetStaticDir returns the UI asset directory
func (c *AppConfig) GetStaticDir() string {
	return c.StaticDir
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
