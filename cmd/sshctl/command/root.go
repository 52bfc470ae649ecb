package command

import (
	"github.com/spf13/cobra"
)

// NewRootCmd assembles sshctl.
func NewRootCmd() *cobra.Command {
	env := &Env{}

	root := &cobra.Command{
		Use:           "sshctl",
		Short:         "Inspect SSH handshakes and manage the fingerprint blocklist",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return env.Close()
		},
	}

	root.PersistentFlags().StringVar(&env.DBPath, "db", "", "SQLite database path (default from config)")
	root.PersistentFlags().StringVarP(&env.ConfigPath, "config", "c", "", "YAML configuration file")
	root.PersistentFlags().BoolVar(&env.Verbose, "sql", false, "Log SQL statements")

	root.AddCommand(
		NewProbeCmd(env),
		NewDecodeCmd(),
		NewLogCmd(env),
		NewListCmd(env),
		NewBlockCmd(env),
		NewUnblockCmd(env),
		NewBlockedCmd(env),
		NewStatsCmd(env),
		NewReloadCmd(),
		NewTUICmd(env),
	)

	return root
}
