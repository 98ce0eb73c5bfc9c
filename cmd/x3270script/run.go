package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"pkt.systems/x3270script/core"
	"pkt.systems/x3270script/internal/logx"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	var showHistory bool
	var showStatus bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Run a script of actions, one per line, stopping at the first failure",
		Long:  "Run a script of actions, one per line. Blank lines and lines starting with # are skipped. Use - to read from stdin.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			actions, err := readScript(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.close(ctx)
			out := cmd.OutOrStdout()
			if showHistory {
				defer func() { renderHistory(out, s.History()) }()
			}
			logger := logx.Ctx(ctx)
			for _, a := range actions {
				res, err := s.Io(ctx, a.text, timeout)
				if res != nil {
					printResult(out, res, showStatus)
				}
				if err := check(res, err); err != nil {
					return fmt.Errorf("%s:%d: %w", args[0], a.line, err)
				}
				logger.Debug("script step done", "line", a.line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showHistory, "history", false, "print the command history when the script ends")
	cmd.Flags().BoolVar(&showStatus, "status", false, "print the status line after each reply")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "per-action timeout (0 uses the session default)")
	return cmd
}

type scriptAction struct {
	line int
	text string
}

func readScript(stdin io.Reader, path string) ([]scriptAction, error) {
	r := stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		r = f
	}
	return parseScript(r)
}

func parseScript(r io.Reader) ([]scriptAction, error) {
	var actions []scriptAction
	scanner := bufio.NewScanner(r)
	n := 0
	for scanner.Scan() {
		n++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		actions = append(actions, scriptAction{line: n, text: text})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return actions, nil
}

// renderHistory prints history entries oldest first.
func renderHistory(out io.Writer, entries []*core.IoResult) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"#", "Command", "Result", "Lines", "Duration"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetCaption(true, fmt.Sprintf("Total: %d commands.", len(entries)))
	for i := len(entries) - 1; i >= 0; i-- {
		res := entries[i]
		verdict := "ok"
		if !res.Success {
			verdict = "error"
		}
		cmdText := res.Command
		if cmdText == "" {
			cmdText = "(status)"
		}
		table.Append([]string{
			strconv.Itoa(len(entries) - i),
			cmdText,
			verdict,
			strconv.Itoa(len(res.Result)),
			res.Duration.Round(time.Millisecond).String(),
		})
	}
	table.Render()
}
