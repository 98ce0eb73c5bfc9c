package main

import (
	"time"

	"github.com/spf13/cobra"

	"pkt.systems/x3270script/command"
)

type transferFlags struct {
	direction      string
	mode           string
	host           string
	local          string
	hostFile       string
	cr             string
	remap          bool
	exist          string
	recfm          string
	lrecl          int
	blksize        int
	allocation     string
	primarySpace   int
	secondarySpace int
	avblock        int
	bufferSize     int
	codePage       int
	timeout        time.Duration
}

func newTransferCmd(opts *globalOptions) *cobra.Command {
	var tf transferFlags
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Transfer a file to or from the host with IND$FILE",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := tf.request(cmd.Flags().Changed)
			if err != nil {
				return err
			}
			// Validate before an emulator is started.
			if _, err := command.Transfer(req); err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.close(ctx)
			res, err := s.Transfer(ctx, req, tf.timeout)
			if res != nil {
				printResult(cmd.OutOrStdout(), res, false)
			}
			return check(res, err)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&tf.direction, "direction", string(command.DirectionReceive), "send or receive")
	flags.StringVar(&tf.mode, "mode", string(command.TransferASCII), "ascii or binary")
	flags.StringVar(&tf.host, "host", string(command.HostTSO), "tso, vm or cics")
	flags.StringVar(&tf.local, "local", "", "local file name")
	flags.StringVar(&tf.hostFile, "hostfile", "", "host file name")
	flags.StringVar(&tf.cr, "cr", "", "carriage return handling: add, remove or keep")
	flags.BoolVar(&tf.remap, "remap", true, "remap ASCII and EBCDIC characters")
	flags.StringVar(&tf.exist, "exist", "", "existing file action: keep, replace or append")
	flags.StringVar(&tf.recfm, "recfm", "", "record format: fixed, variable or undefined")
	flags.IntVar(&tf.lrecl, "lrecl", 0, "logical record length")
	flags.IntVar(&tf.blksize, "blksize", 0, "TSO block size")
	flags.StringVar(&tf.allocation, "allocation", "", "TSO allocation unit: tracks, cylinders or avblock")
	flags.IntVar(&tf.primarySpace, "primary-space", 0, "TSO primary space")
	flags.IntVar(&tf.secondarySpace, "secondary-space", 0, "TSO secondary space")
	flags.IntVar(&tf.avblock, "avblock", 0, "TSO average block size")
	flags.IntVar(&tf.bufferSize, "buffer-size", 0, "transfer buffer size")
	flags.IntVar(&tf.codePage, "windows-codepage", 0, "workstation code page for ASCII transfers")
	flags.DurationVar(&tf.timeout, "timeout", 0, "transfer timeout (0 uses the session default)")
	_ = cmd.MarkFlagRequired("local")
	_ = cmd.MarkFlagRequired("hostfile")
	return cmd
}

// request builds the transfer; optional parameters are only included when
// their flag was set.
func (tf transferFlags) request(changed func(string) bool) (command.TransferRequest, error) {
	req := command.TransferRequest{
		Direction: command.Direction(tf.direction),
		Mode:      command.TransferMode(tf.mode),
		Host:      command.HostType(tf.host),
		LocalFile: tf.local,
		HostFile:  tf.hostFile,
	}
	params := []struct {
		flag  string
		build func() (command.TransferParam, error)
	}{
		{"cr", func() (command.TransferParam, error) { return command.CR(command.CRAction(tf.cr)) }},
		{"remap", func() (command.TransferParam, error) { return command.Remap(tf.remap) }},
		{"exist", func() (command.TransferParam, error) { return command.Exist(command.ExistAction(tf.exist)) }},
		{"recfm", func() (command.TransferParam, error) { return command.Recfm(command.RecordFormat(tf.recfm)) }},
		{"lrecl", func() (command.TransferParam, error) { return command.Lrecl(tf.lrecl) }},
		{"blksize", func() (command.TransferParam, error) { return command.Blksize(tf.blksize) }},
		{"allocation", func() (command.TransferParam, error) {
			return command.Allocation(command.AllocationUnit(tf.allocation))
		}},
		{"primary-space", func() (command.TransferParam, error) { return command.PrimarySpace(tf.primarySpace) }},
		{"secondary-space", func() (command.TransferParam, error) { return command.SecondarySpace(tf.secondarySpace) }},
		{"avblock", func() (command.TransferParam, error) { return command.Avblock(tf.avblock) }},
		{"buffer-size", func() (command.TransferParam, error) { return command.BufferSize(tf.bufferSize) }},
		{"windows-codepage", func() (command.TransferParam, error) { return command.WindowsCodePage(tf.codePage) }},
	}
	for _, p := range params {
		if !changed(p.flag) {
			continue
		}
		param, err := p.build()
		if err != nil {
			return command.TransferRequest{}, err
		}
		req.Params = append(req.Params, param)
	}
	return req, nil
}
