package main

import (
	"context"
	"log"
	"os"

	"github.com/spf13/cobra"

	"pkt.systems/psi"
	"pkt.systems/pslog"
)

func main() {
	psi.Run(submain)
}

func submain(ctx context.Context) int {
	logger := pslog.LoggerFromEnv(
		pslog.WithEnvWriter(os.Stderr),
		pslog.WithEnvOptions(pslog.Options{Mode: pslog.ModeConsole}),
	)
	ctx = pslog.ContextWithLogger(ctx, logger)
	log.SetOutput(pslog.LogLogger(logger).Writer())
	log.SetFlags(0)

	root := newRootCmd()
	root.SetArgs(os.Args[1:])

	if err := root.ExecuteContext(ctx); err != nil {
		pslog.Ctx(ctx).With("err", err).Error("x3270script command failed")
		return 1
	}
	return 0
}

// globalOptions are the persistent flags shared by every session command.
type globalOptions struct {
	configPath string
	backend    string
	connect    string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "x3270script",
		Short:         "Drive a 3270 emulator through its scripting interface",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to config file")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "override backend.type (process, socket, env)")
	root.PersistentFlags().StringVar(&opts.connect, "connect", "", "connect to this host before running the command")

	root.AddCommand(newExecCmd(opts))
	root.AddCommand(newRunCmd(opts))
	root.AddCommand(newScreenCmd(opts))
	root.AddCommand(newFieldsCmd(opts))
	root.AddCommand(newTransferCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newVersionCmd())

	return root
}
