// Command graspci runs the EEGraSP continuous integration and release workflows.
package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/eegrasp/graspci/cmd/graspci/commands"
	"github.com/eegrasp/graspci/internal/errors"
	"github.com/eegrasp/graspci/internal/version"
)

func main() {
	var cli commands.CLI
	parser := kong.Parse(&cli,
		kong.Name("graspci"),
		kong.Description("CI, release and developer task automation for the EEGraSP package."),
		kong.Vars{"version": version.String()},
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := parser.Run(&commands.Global{Logger: slog.Default(), Context: ctx}, &cli)
	stop()
	if err != nil {
		errors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
