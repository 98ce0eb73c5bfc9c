package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"pkt.systems/x3270script/screen"
)

func newFieldsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "fields",
		Short: "List the fields of the current screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.close(ctx)
			buf, res, err := s.ReadBuffer(ctx, screen.ModeASCII)
			if err := check(res, err); err != nil {
				return err
			}
			renderFields(cmd.OutOrStdout(), buf.Fields())
			return nil
		},
	}
}

func renderFields(out io.Writer, fields []screen.Field) {
	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"Row", "Col", "Len", "Protected", "Numeric", "Intensity", "Color", "Text"})
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetCaption(true, fmt.Sprintf("Total: %d fields.", len(fields)))
	for _, f := range fields {
		table.Append([]string{
			strconv.Itoa(f.Start.Row()),
			strconv.Itoa(f.Start.Column()),
			strconv.Itoa(f.Length),
			yesNo(f.Attributes.Protected()),
			yesNo(f.Attributes.Numeric()),
			f.Attributes.Intensity().String(),
			f.Attributes.Foreground.String(),
			f.Text,
		})
	}
	table.Render()
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
