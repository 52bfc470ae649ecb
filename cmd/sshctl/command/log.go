package command

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sshwire/pkg/storage"
)

func NewLogCmd(env *Env) *cobra.Command {
	var (
		limit   int
		state   string
		sortBy  string
		reverse bool
		ip      string
		algos   bool
	)

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show handshake log",
		Long:  `Show individual handshakes with the identification and algorithms each client offered.`,
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

			var handshakes []storage.HandshakeDetail
			if ip != "" {
				handshakes, err = repo.HandshakeHistory(ip, limit)
			} else {
				handshakes, err = repo.ListHandshakes(limit, blocked, sortBy, reverse)
			}
			if err != nil {
				return fmt.Errorf("failed to list handshakes: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(handshakes) == 0 {
				fmt.Fprintln(out, "No handshakes found")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTIMESTAMP\tIP ADDRESS\tHASSH\tBANNER\tBLOCKED")
			for _, h := range handshakes {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
					h.ID,
					h.Timestamp.Format(time.DateTime),
					h.IPAddress,
					h.Fingerprint,
					truncate(h.Banner, 40),
					yesNo(h.Blocked))
				if algos {
					fmt.Fprintf(w, "\tkex=%s\n\tciphers=%s\n\tmacs=%s compression=%s\n",
						h.Kex, h.Ciphers, h.MACs, h.Compression)
				}
			}
			if err := w.Flush(); err != nil {
				return fmt.Errorf("failed to flush: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 25, "Number of records to show")
	cmd.Flags().StringVarP(&state, "state", "s", "all", "Filter by state: allowed, blocked, all")
	cmd.Flags().StringVar(&sortBy, "sort", "timestamp", "Sort by: timestamp, ip, hassh, software")
	cmd.Flags().BoolVarP(&reverse, "reverse", "r", false, "Reverse sort order")
	cmd.Flags().StringVar(&ip, "ip", "", "Only handshakes from this IP, newest first")
	cmd.Flags().BoolVarP(&algos, "algorithms", "a", false, "Show the offered algorithm lists")

	return cmd
}
