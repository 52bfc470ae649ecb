package command

import (
	"fmt"
	"os"
	"syscall"

	"github.com/spf13/cobra"
)

func NewReloadCmd() *cobra.Command {
	var pid int

	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Reload proxy blocklist",
		Long:  `Send SIGHUP to the proxy process to reload the blocklist from the database.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if pid <= 0 {
				return fmt.Errorf("invalid pid %d", pid)
			}

			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("failed to find process: %w", err)
			}

			if err := process.Signal(syscall.SIGHUP); err != nil {
				return fmt.Errorf("failed to send SIGHUP: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Sent SIGHUP to process %d\n", pid)
			return nil
		},
	}

	cmd.Flags().IntVar(&pid, "pid", 0, "PID of proxy process to signal")
	_ = cmd.MarkFlagRequired("pid")

	return cmd
}
