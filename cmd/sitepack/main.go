package main

import (
	"log/slog"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitepack/cmd/sitepack/commands"
	sperrors "git.home.luguber.info/inful/sitepack/internal/errors"
	"git.home.luguber.info/inful/sitepack/internal/version"
)

func main() {
	cli := &commands.CLI{}
	global := &commands.Global{}
	parser := kong.Parse(cli,
		kong.Name("sitepack"),
		kong.Description("Build a static website from an asset manifest, templates and copied files."),
		kong.UsageOnError(),
		kong.Vars{"version": version.String()},
		kong.Bind(global),
	)
	err := parser.Run(global, cli)
	sperrors.NewCLIErrorAdapter(cli.Verbose, slog.Default()).HandleError(err)
}
