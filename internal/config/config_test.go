package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestNewAppConfig_Defaults(t *testing.T) {
	isolateConfigDir(t)
	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg, err := NewAppConfig(v)
	if err != nil {
		t.Fatalf("NewAppConfig: %v", err)
	}

	if cfg.GetListenAddr() != "127.0.0.1:6969" {
		t.Errorf("listen = %s, want 127.0.0.1:6969", cfg.GetListenAddr())
	}
	if cfg.GetPollInterval() != 500*time.Millisecond {
		t.Errorf("poll interval = %v, want 500ms", cfg.GetPollInterval())
	}
	if cfg.GetRequestTimeout() != 20*time.Second {
		t.Errorf("request timeout = %v, want 20s", cfg.GetRequestTimeout())
	}
	if cfg.Provider != ProviderMPRIS {
		t.Errorf("provider = %s, want mpris", cfg.Provider)
	}
	if cfg.ArtMaxBytes != 10*1024*1024 {
		t.Errorf("artwork max bytes = %d", cfg.ArtMaxBytes)
	}
	if cfg.ArtCacheTTL != 0 || cfg.ArtMaxDim != 0 {
		t.Errorf("cache ttl / max dim = %v / %d, want disabled", cfg.ArtCacheTTL, cfg.ArtMaxDim)
	}
	if len(cfg.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", cfg.Warnings)
	}
}

func TestNewAppConfig_EnvOverrides(t *testing.T) {
	t.Setenv("NOWPLAYING_LISTEN_PORT", "7000")
	t.Setenv("NOWPLAYING_POLL_INTERVAL", "250ms")
	t.Setenv("NOWPLAYING_PROVIDER", "MPD")
	t.Setenv("NOWPLAYING_MPD_ADDRESS", "10.0.0.2:6600")
	t.Setenv("NOWPLAYING_ARTWORK_CACHE_TTL", "5m")

	isolateConfigDir(t)
	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg, err := NewAppConfig(v)
	if err != nil {
		t.Fatalf("NewAppConfig: %v", err)
	}

	if cfg.GetPort() != 7000 {
		t.Errorf("port = %d, want 7000", cfg.GetPort())
	}
	if cfg.GetPollInterval() != 250*time.Millisecond {
		t.Errorf("poll interval = %v, want 250ms", cfg.GetPollInterval())
	}
	if cfg.Provider != ProviderMPD {
		t.Errorf("provider = %s, want mpd", cfg.Provider)
	}
	if cfg.MPDAddress != "10.0.0.2:6600" {
		t.Errorf("mpd address = %s", cfg.MPDAddress)
	}
	if cfg.ArtCacheTTL != 5*time.Minute {
		t.Errorf("cache ttl = %v, want 5m", cfg.ArtCacheTTL)
	}
}

func TestNewAppConfig_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("NOWPLAYING_POLL_INTERVAL", "soon")
	t.Setenv("NOWPLAYING_REQUEST_TIMEOUT", "-3s")

	isolateConfigDir(t)
	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg, err := NewAppConfig(v)
	if err != nil {
		t.Fatalf("NewAppConfig: %v", err)
	}

	if cfg.GetPollInterval() != defaultPollInterval {
		t.Errorf("poll interval = %v, want default", cfg.GetPollInterval())
	}
	if cfg.GetRequestTimeout() != defaultRequestTimeout {
		t.Errorf("request timeout = %v, want default", cfg.GetRequestTimeout())
	}
	if len(cfg.Warnings) != 2 {
		t.Errorf("warnings = %v, want 2 entries", cfg.Warnings)
	}

	// Logging the warnings must not panic.
	cfg.Log(zap.NewNop())
}

func TestNewAppConfig_UnknownProvider(t *testing.T) {
	t.Setenv("NOWPLAYING_PROVIDER", "winamp")

	isolateConfigDir(t)
	v, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := NewAppConfig(v); err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
poll_interval = "1s"
static_dir = "/srv/ui"

[listen]
host = "0.0.0.0"
port = 8080

[mpris]
player = "org.mpris.MediaPlayer2.spotify"

[artwork]
max_dimension = 512
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg, err := NewAppConfig(v)
	if err != nil {
		t.Fatalf("NewAppConfig: %v", err)
	}

	if cfg.GetListenAddr() != "0.0.0.0:8080" {
		t.Errorf("listen = %s", cfg.GetListenAddr())
	}
	if cfg.GetPollInterval() != time.Second {
		t.Errorf("poll interval = %v, want 1s", cfg.GetPollInterval())
	}
	if cfg.MprisPlayer != "org.mpris.MediaPlayer2.spotify" {
		t.Errorf("mpris player = %s", cfg.MprisPlayer)
	}
	if cfg.ArtMaxDim != 512 {
		t.Errorf("max dimension = %d, want 512", cfg.ArtMaxDim)
	}
	if cfg.GetStaticDir() != "/srv/ui" {
		t.Errorf("static dir = %s", cfg.GetStaticDir())
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("expected error for a missing explicit config file")
	}
}

// isolateConfigDir keeps a developer's own config.toml out of the tests.
func isolateConfigDir(t *testing.T) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
}
