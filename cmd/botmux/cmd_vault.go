package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/user/botmux/internal/vault"
)

func init() {
	rootCmd.AddCommand(vaultCmd)
	vaultCmd.AddCommand(vaultKeygenCmd, vaultEncryptCmd)
}

var vaultCmd = &cobra.Command{
	Use:   "vault",
	Short: "Manage credential encryption",
}

var vaultKeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a new vault key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := vault.NewKey()
		if err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		fmt.Fprintln(os.Stdout, key)
		return nil
	},
}

var vaultEncryptCmd = &cobra.Command{
	Use:   "encrypt <token>",
	Short: "Encrypt a platform credential with the configured vault key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		if cfg.Vault.Key == "" {
			return fmt.Errorf("vault.key is not set; run 'botmux vault keygen' first")
		}
		v, err := vault.New(cfg.Vault.Key)
		if err != nil {
			return fmt.Errorf("load vault key: %w", err)
		}
		ct, err := v.Encrypt(args[0])
		if err != nil {
			return fmt.Errorf("encrypt: %w", err)
		}
		fmt.Fprintln(os.Stdout, ct)
		return nil
	},
}
