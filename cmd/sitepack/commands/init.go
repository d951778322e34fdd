package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitepack/internal/config"
	sperrors "git.home.luguber.info/inful/sitepack/internal/errors"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force  bool   `help:"Overwrite existing manifest file"`
	Output string `short:"o" name:"output" help:"Directory for the generated static_website.yaml"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	path := root.Manifest
	switch {
	case i.Output != "":
		path = filepath.Join(i.Output, config.DefaultManifestNames[0])
	case path == "":
		wd, err := os.Getwd()
		if err != nil {
			return sperrors.FileSystemError("get working directory", err)
		}
		path = filepath.Join(wd, config.DefaultManifestNames[0])
	}
	if err := config.Init(path, i.Force); err != nil {
		return sperrors.ConfigInvalid(path, err)
	}
	_, _ = fmt.Fprintf(g.out(), "Wrote %s\n", path)
	return nil
}
