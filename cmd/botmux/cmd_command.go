package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/botmux/internal/store"
	"github.com/user/botmux/internal/types"
)

func init() {
	rootCmd.AddCommand(commandCmd)
	commandCmd.AddCommand(commandListCmd)
}

var commandCmd = &cobra.Command{
	Use:   "command",
	Short: "Inspect tenant command tables",
}

var commandListCmd = &cobra.Command{
	Use:   "list <tenant>",
	Short: "List a tenant's commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()

		db, err := store.Open(cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer db.Close()

		cmds, err := store.NewCommandStore(db).ListForTenant(cmd.Context(), types.TenantID(args[0]))
		if err != nil {
			return fmt.Errorf("list commands: %w", err)
		}
		if len(cmds) == 0 {
			fmt.Fprintln(os.Stdout, "no commands")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tUSES\tKIND\tDESCRIPTION")
		for _, c := range cmds {
			kind := "response"
			if c.Script != "" {
				kind = "script"
			}
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", c.Name, c.UsageCount, kind, c.Description)
		}
		return w.Flush()
	},
}
