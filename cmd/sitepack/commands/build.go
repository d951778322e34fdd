package commands

import (
	"context"
	"os/signal"
	"syscall"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	BuildFlags
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	site, err := root.loadSite()
	if err != nil {
		return err
	}
	sb, err := newSiteBuilder(root, b.BuildFlags, site)
	if err != nil {
		return err
	}
	defer sb.close(context.Background())

	// A signal before the build starts cancels it; afterwards it runs to completion.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := sb.run(ctx, "build")
	printReport(g.out(), report)
	return err
}
