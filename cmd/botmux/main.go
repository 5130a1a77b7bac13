package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/user/botmux/internal/config"
	"github.com/user/botmux/internal/i18n"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "botmux",
	Short: "Multi-tenant bot session manager",
	Long:  "botmux runs live bot sessions for many tenants, each with its own credential, command table, and audit log.",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default: botmux.yaml in . or the data dir)")
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the configuration or exits; commands that cannot run
// without one have nothing useful to do on failure.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	i18n.Init(cfg.Language)
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
