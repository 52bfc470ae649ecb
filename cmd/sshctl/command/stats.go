package command

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewStatsCmd(env *Env) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show handshake statistics",
		Long:  `Display statistics about observed SSH handshakes.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := env.Repo()
			if err != nil {
				return err
			}

			stats, err := repo.Statistics()
			if err != nil {
				return fmt.Errorf("failed to get statistics: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Handshake Statistics:")
			fmt.Fprintf(out, "  Total Handshakes:     %d\n", stats.TotalHandshakes)
			fmt.Fprintf(out, "  Blocked Handshakes:   %d\n", stats.BlockedHandshakes)
			fmt.Fprintf(out, "  Unique IP Addresses:  %d\n", stats.UniqueIPs)
			fmt.Fprintf(out, "  Unique Fingerprints:  %d\n", stats.UniqueFingerprints)
			fmt.Fprintf(out, "  Unique Banners:       %d\n", stats.UniqueBanners)
			if stats.TotalHandshakes > 0 {
				fmt.Fprintf(out, "  Block Rate:           %.2f%%\n", stats.BlockRate())
			}

			return nil
		},
	}
}
