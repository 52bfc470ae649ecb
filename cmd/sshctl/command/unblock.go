package command

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

func NewUnblockCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "unblock [hassh...]",
		Short: "Unblock HASSH fingerprints",
		Long:  `Remove one or more HASSH fingerprints from the blocklist.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := env.Repo()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, hash := range args {
				if err := repo.Unblock(hash); err != nil {
					return fmt.Errorf("failed to unblock %s: %w", hash, err)
				}
				fmt.Fprintf(out, "Unblocked HASSH: %s\n", hash)
			}

			fmt.Fprintln(out, "\nRun 'sshctl reload' to apply changes to running proxy")
			return nil
		},
	}
}

func NewBlockedCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "blocked",
		Short: "List blocked fingerprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := env.Repo()
			if err != nil {
				return err
			}

			entries, err := repo.BlockedFingerprints()
			if err != nil {
				return fmt.Errorf("failed to list blocked fingerprints: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No blocked fingerprints")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HASSH\tBLOCKED AT\tREASON")
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\n", e.Hash, e.BlockedAt.Format(time.DateTime), e.Reason)
			}
			return w.Flush()
		},
	}
}
