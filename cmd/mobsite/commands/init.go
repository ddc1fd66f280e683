package commands

import (
	"fmt"
	"io"

	"git.home.luguber.info/inful/mobsite/internal/config"
)

// InitCmd implements the 'init' command.
type InitCmd struct {
	Force bool `help:"Overwrite existing configuration file"`
}

func (i *InitCmd) Run(g *Global, root *CLI) error {
	return RunInit(g.Out, root.Config, i.Force)
}

// RunInit writes the example configuration to configPath.
func RunInit(out io.Writer, configPath string, force bool) error {
	fmt.Fprintf(out, "Writing configuration to %s\n", configPath)
	if err := config.Init(configPath, force); err != nil {
		return err
	}
	fmt.Fprintln(out, "Initialized successfully")
	return nil
}
