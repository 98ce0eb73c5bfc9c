package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/x3270script/core"
)

func newExecCmd(opts *globalOptions) *cobra.Command {
	var showStatus bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "exec ACTION...",
		Short: "Send actions to the emulator and print their replies",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.close(ctx)
			out := cmd.OutOrStdout()
			for _, action := range args {
				res, err := s.Io(ctx, action, timeout)
				if res != nil {
					printResult(out, res, showStatus)
				}
				if err := check(res, err); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showStatus, "status", false, "print the status line after each reply")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-action timeout (0 uses the session default)")
	return cmd
}

func printResult(out io.Writer, res *core.IoResult, showStatus bool) {
	for _, line := range res.Result {
		_, _ = fmt.Fprintln(out, line)
	}
	if showStatus && res.StatusLine != "" {
		_, _ = fmt.Fprintln(out, res.StatusLine)
	}
}
