package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"git.home.luguber.info/inful/mobsite/internal/build"
	"git.home.luguber.info/inful/mobsite/internal/mobs"
	"git.home.luguber.info/inful/mobsite/internal/retry"
	"git.home.luguber.info/inful/mobsite/internal/site"
	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

// TargetsCmd implements the 'targets' command.
type TargetsCmd struct {
	JSON bool `help:"Print JSON instead of a table"`
}

type target struct {
	Path      string `json:"path"`
	FinalPath string `json:"final_path"`
	Kind      string `json:"kind"`
}

func (c *TargetsCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	s := site.New(site.OptionsFromConfig(cfg))
	p := ssg.Pipeline{
		Enumerate: s.Enumerator(mobs.FromConfig(cfg.Data, retry.FromConfig(cfg.Build.Retry)), nil),
		Finalize:  ssg.PrefixFinalPath(cfg.Site.BasePath),
	}
	assets, table, err := p.Plan(ctx)
	if err != nil {
		return build.Classify(err)
	}

	targets := make([]target, 0, len(assets))
	for _, a := range assets {
		final, err := table.Get(a.Path())
		if err != nil {
			return build.Classify(err)
		}
		targets = append(targets, target{Path: a.Path().String(), FinalPath: final, Kind: a.Source().Kind().String()})
	}

	if c.JSON {
		enc := json.NewEncoder(g.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(targets)
	}
	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATH\tFINAL PATH\tSOURCE")
	for _, t := range targets {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", t.Path, t.FinalPath, t.Kind)
	}
	return tw.Flush()
}
