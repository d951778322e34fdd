package commands

import (
	"fmt"

	"git.home.luguber.info/inful/sitepack/internal/filter"
)

// FiltersCmd implements the 'filters' command.
type FiltersCmd struct{}

func (f *FiltersCmd) Run(g *Global, _ *CLI) error {
	for _, name := range filter.NewDefaultRegistry(filter.FormatExpanded).Names() {
		if _, err := fmt.Fprintln(g.out(), name); err != nil {
			return err
		}
	}
	return nil
}
