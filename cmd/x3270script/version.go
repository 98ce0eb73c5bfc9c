package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pkt.systems/x3270script/internal/version"
)

func newVersionCmd() *cobra.Command {
	var dirty bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			info := version.Read()
			v := info.Version
			if dirty {
				v = info.String()
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", info.Module, v)
			return err
		},
	}
	cmd.Flags().BoolVar(&dirty, "dirty", false, "mark builds from a modified tree")
	return cmd
}
