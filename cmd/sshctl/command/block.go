package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewBlockCmd(env *Env) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "block [hassh...]",
		Short: "Block HASSH fingerprints",
		Long:  `Add one or more HASSH fingerprints to the blocklist.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := env.Repo()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, hash := range args {
				if err := repo.Block(hash, reason); err != nil {
					return fmt.Errorf("failed to block %s: %w", hash, err)
				}
				fmt.Fprintf(out, "Blocked HASSH: %s\n", hash)
			}

			fmt.Fprintln(out, "\nRun 'sshctl reload' to apply changes to running proxy")
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "manual_block", "Reason for blocking")

	return cmd
}
