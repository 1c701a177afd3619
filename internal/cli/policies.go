package cli

import (
	"github.com/spf13/cobra"
)

func newPoliciesCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "List the configured evolution policies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := app.loadConfig()
			if err != nil {
				return err
			}
			table, err := cfg.PolicyTable()
			if err != nil {
				return err
			}
			for i, e := range table.Entries() {
				cmd.Printf("%d. %s (template %s)\n", i+1, e.Policy, e.Template.Hash()[:12])
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("sdg version %s\n", Version)
		},
	}
}
