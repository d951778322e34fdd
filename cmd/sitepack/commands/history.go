package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	sperrors "git.home.luguber.info/inful/sitepack/internal/errors"
	"git.home.luguber.info/inful/sitepack/internal/eventstore"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int `short:"n" help:"Number of builds to show" default:"20"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	site, err := root.loadSite()
	if err != nil {
		return err
	}
	if site.History.Database == "" {
		return sperrors.ValidationFailed("history.database", "build history is not enabled in the site manifest")
	}
	store, err := eventstore.NewSQLiteStore(site.History.Database)
	if err != nil {
		return sperrors.FileSystemError("open history database", err)
	}
	defer func() {
		_ = store.Close()
	}()

	projection := eventstore.NewBuildHistoryProjection(store, h.Limit)
	if err := projection.Rebuild(context.Background()); err != nil {
		return sperrors.FileSystemError("read history", err)
	}

	tw := tabwriter.NewWriter(g.out(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "BUILD\tSTARTED\tSTATUS\tTRIGGER\tDURATION\tPACKED\tRENDERED\tERROR")
	for _, b := range projection.GetHistory() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%d\t%d\t%s\n",
			b.BuildID,
			b.StartedAt.Local().Format(time.DateTime),
			b.Status,
			b.Trigger,
			b.Duration.Round(time.Millisecond),
			b.AssetsPacked,
			b.TemplatesRendered,
			errorColumn(b))
	}
	return tw.Flush()
}

func errorColumn(b *eventstore.BuildSummary) string {
	if b.ErrorStage == "" {
		return ""
	}
	return b.ErrorStage + ": " + b.ErrorMessage
}
