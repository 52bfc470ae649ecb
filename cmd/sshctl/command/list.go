package command

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sshwire/pkg/storage"
)

// parseState maps the --state flag to the repository's blocked filter.
func parseState(state string) (*bool, error) {
	var blocked bool
	switch state {
	case "allowed":
		blocked = false
	case "blocked":
		blocked = true
	case "all":
		return nil, nil
	default:
		return nil, fmt.Errorf("invalid state: %s (must be: allowed, blocked, all)", state)
	}
	return &blocked, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "YES"
	}
	return "no"
}

func NewListCmd(env *Env) *cobra.Command {
	var (
		limit   int
		state   string
		sortBy  string
		reverse bool
		search  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List HASSH fingerprints with statistics",
		Long:  `List unique HASSH fingerprint and banner pairs with IP counts and last seen timestamps.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			blocked, err := parseState(state)
			if err != nil {
				return err
			}

			repo, err := env.Repo()
			if err != nil {
				return err
			}

			var summaries []storage.Summary
			if search != "" {
				summaries, err = repo.SearchSummaries(search, "", limit)
			} else {
				summaries, err = repo.ListSummaries(limit, blocked, sortBy, reverse)
			}
			if err != nil {
				return fmt.Errorf("failed to list fingerprints: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(summaries) == 0 {
				fmt.Fprintln(out, "No fingerprints found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "HASSH\tBANNER\tIPs\tSEEN\tFIRST SEEN\tLAST SEEN\tBLOCKED")
			for _, s := range summaries {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\t%s\n",
					s.Fingerprint,
					truncate(s.Banner, 45),
					s.IPCount,
					s.TotalHandshakes,
					s.FirstSeen.Format(time.DateTime),
					s.LastSeen.Format(time.DateTime),
					yesNo(s.Blocked))
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to flush: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "Number of records to show")
	cmd.Flags().StringVarP(&state, "state", "s", "all", "Filter by state: allowed, blocked, all")
	cmd.Flags().StringVar(&sortBy, "sort", "last_seen", "Sort by: last_seen, ip_count, total, hassh, banner")
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "Reverse sort order")
	cmd.Flags().StringVar(&search, "hassh", "", "Only fingerprints containing this substring")

	return cmd
}
