package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/genricoloni/nowplaying/internal/config"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

const shutdownTimeout = 10 * time.Second

// configPath is set by --config; empty means the default location
var configPath string

// flagKeys maps command-line flags to the configuration keys they override
var flagKeys = map[string]string{
	"host":          config.KeyHost,
	"port":          config.KeyPort,
	"provider":      config.KeyProvider,
	"player":        config.KeyMprisPlayer,
	"mpd-address":   config.KeyMPDAddress,
	"poll-interval": config.KeyPollInterval,
	"static-dir":    config.KeyStaticDir,
	"log-level":     config.KeyLogLevel,
}

var rootCmd = &cobra.Command{
	Use:          "nowplaying",
	Short:        "Serve the current media player track to web clients over HTTP long-polling",
	Args:         cobra.NoArgs,
	SilenceUsage: true,
}

func init() {
	// Assigned here rather than in the literal to avoid an initialization
	// cycle: rootCmd -> run -> AppOptions -> newViper -> rootCmd.
	rootCmd.RunE = func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	}

	flags := rootCmd.Flags()
	flags.StringVarP(&configPath, "config", "c", "", "Path to a TOML config file")
	flags.String("host", "", "Address to bind the HTTP server to")
	flags.IntP("port", "p", 0, "Port to bind the HTTP server to")
	flags.String("provider", "", "Metadata provider: mpris or mpd")
	flags.String("player", "", "MPRIS bus name to follow (default: auto-detect)")
	flags.String("mpd-address", "", "MPD host:port")
	flags.Duration("poll-interval", 0, "Player polling interval")
	flags.String("static-dir", "", "Directory holding ui.html, script.js and style.css")
	flags.String("log-level", "", "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// run starts the application and blocks until SIGINT or SIGTERM
func run(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	app := fx.New(AppOptions)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Start the application
	startCtx, startCancel := context.WithTimeout(ctx, app.StartTimeout())
	defer startCancel()
	if err := app.Start(startCtx); err != nil {
		return fmt.Errorf("start: %w", err)
	}

	// Wait for interrupt signal
	<-ctx.Done()

	// Stop the application gracefully
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	return nil
}

// newViper loads the configuration and layers the command-line flags on top
func newViper() (*viper.Viper, error) {
	v, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	bindFlags(v, rootCmd.Flags())
	return v, nil
}

// bindFlags binds each known flag; viper only consults flags that were set
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	for name, key := range flagKeys {
		lo.Must0(v.BindPFlag(key, flags.Lookup(name)))
	}
}
