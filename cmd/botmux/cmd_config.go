package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/user/botmux/internal/vault"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter botmux.yaml with a fresh vault key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgPath
		if path == "" {
			path = "botmux.yaml"
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}

		key, err := vault.NewKey()
		if err != nil {
			return fmt.Errorf("generate vault key: %w", err)
		}

		content := fmt.Sprintf(`data_dir: %s
log_level: info
language: en
vault:
  key: %s
platform:
  name: telegram
sandbox:
  timeout: 30s
sync:
  schedule: "@every 10m"
commands:
  private_marker: private
http:
  listen: 127.0.0.1:8080
`, filepath.Join(os.Getenv("HOME"), ".botmux"), key)

		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(os.Stdout, "wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		fmt.Fprintf(os.Stdout, "data_dir = %s\n", cfg.DataDir)
		fmt.Fprintf(os.Stdout, "log_level = %s\n", cfg.LogLevel)
		fmt.Fprintf(os.Stdout, "language = %s\n", cfg.Language)
		fmt.Fprintf(os.Stdout, "database.dsn = %s\n", cfg.Database.DSN)
		fmt.Fprintf(os.Stdout, "platform.name = %s\n", cfg.Platform.Name)
		fmt.Fprintf(os.Stdout, "sandbox.timeout = %s\n", cfg.Sandbox.Timeout)
		fmt.Fprintf(os.Stdout, "sync.schedule = %s\n", cfg.Sync.Schedule)
		fmt.Fprintf(os.Stdout, "commands.private_marker = %s\n", cfg.Commands.PrivateMarker)
		fmt.Fprintf(os.Stdout, "http.listen = %s\n", cfg.HTTP.Listen)
		if cfg.Vault.Key != "" {
			fmt.Fprintln(os.Stdout, "vault.key = (set)")
		} else {
			fmt.Fprintln(os.Stdout, "vault.key = (not set)")
		}
		return nil
	},
}
