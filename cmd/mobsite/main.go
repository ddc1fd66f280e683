package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/mobsite/cmd/mobsite/commands"
	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
	"git.home.luguber.info/inful/mobsite/internal/version"
)

func main() {
	cli := &commands.CLI{}
	parser := kong.Parse(cli,
		kong.Name("mobsite"),
		kong.Description("Build the mob programming site from mob records."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(&commands.Global{Out: os.Stdout}),
	)
	if err := parser.Run(); err != nil {
		ferrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
	}
}
