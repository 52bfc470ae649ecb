package command

import (
	"github.com/spf13/cobra"

	"sshwire/cmd/sshctl/tui"
)

func NewTUICmd(env *Env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Start interactive TUI",
		Long:  `Launch an interactive terminal user interface over the handshake log.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := env.Repo()
			if err != nil {
				return err
			}
			return tui.Run(repo, limit)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Number of rows to display")

	return cmd
}
