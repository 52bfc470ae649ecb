package command

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"sshwire/pkg/handshake"
	"sshwire/pkg/kexinit"
)

func NewProbeCmd(env *Env) *cobra.Command {
	var (
		timeout time.Duration
		hash    string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "probe <host[:port]>",
		Short: "Fetch a server's identification and KEXINIT",
		Long: `Connect to an SSH server, exchange identification strings and KEXINIT
messages, and report what the server offers together with its hasshServer
fingerprint. The connection is closed before any key exchange.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr := args[0]
			if _, _, err := net.SplitHostPort(addr); err != nil {
				addr = net.JoinHostPort(addr, "22")
			}

			cfg, err := env.Config()
			if err != nil {
				return err
			}
			hc, err := cfg.Handshake()
			if err != nil {
				return err
			}
			if timeout > 0 {
				hc.Timeout = timeout
			}
			if hash != "" {
				if hc.Hash, err = kexinit.ParseHashAlgorithm(hash); err != nil {
					return err
				}
			}
			if verbose {
				hc.Logger = log.New(os.Stderr, "", log.LstdFlags)
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), hc.Timeout)
			defer cancel()

			result, err := handshake.Probe(ctx, addr, hc)
			if err != nil {
				return fmt.Errorf("probe %s: %w", addr, err)
			}

			return renderProbe(cmd.OutOrStdout(), addr, result, hc.Hash)
		},
	}

	cmd.Flags().DurationVarP(&timeout, "timeout", "t", 0, "Handshake timeout (default from config)")
	cmd.Flags().StringVar(&hash, "hash", "", "Fingerprint hash: md5 or sha256 (default from config)")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Log handshake progress to stderr")

	return cmd
}
