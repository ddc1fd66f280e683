package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	Limit int  `short:"n" help:"Number of builds to show" default:"10"`
	JSON  bool `help:"Print JSON instead of a table"`
}

func (h *HistoryCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if !cfg.History.Enabled {
		return ferrors.ConfigError("build history is disabled; set history.enabled").Build()
	}
	ctx, stop := signalContext()
	defer stop()

	store, projection, err := openHistory(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	builds := projection.History(h.Limit)
	if h.JSON {
		enc := json.NewEncoder(g.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(builds)
	}

	tw := tabwriter.NewWriter(g.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BUILD\tSTARTED\tTRIGGER\tSTATUS\tRECORDS\tASSETS\tFAILED\tBROKEN LINKS\tDURATION")
	for _, b := range builds {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			b.BuildID, b.StartedAt.Local().Format(time.DateTime), b.Trigger, b.Status,
			b.Records, b.Assets, len(b.FailedAssets), b.BrokenLinks, b.Duration.Truncate(time.Millisecond))
	}
	return tw.Flush()
}
