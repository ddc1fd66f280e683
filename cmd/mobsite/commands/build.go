package commands

import (
	"fmt"
	"log/slog"

	"git.home.luguber.info/inful/mobsite/internal/build"
	"git.home.luguber.info/inful/mobsite/internal/logfields"
	"git.home.luguber.info/inful/mobsite/internal/metrics"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Output        string `short:"o" help:"Output directory; overrides output.directory" type:"path"`
	MetricsFile   string `name:"metrics-file" help:"Write Prometheus metrics to this file (textfile collector format)" type:"path"`
	NoVerifyLinks bool   `name:"no-verify-links" help:"Skip internal link verification"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	svc, err := newServices(ctx, cfg, b.MetricsFile != "")
	if err != nil {
		return err
	}
	defer svc.Close()

	report, runErr := svc.build.Run(ctx, build.BuildRequest{
		Config:               cfg,
		ConfigPath:           root.Config,
		Trigger:              build.TriggerCLI,
		OutputDir:            b.Output,
		SkipLinkVerification: b.NoVerifyLinks,
	})

	if b.MetricsFile != "" {
		if err := metrics.WriteTextfile(b.MetricsFile, svc.registry); err != nil {
			slog.Warn("Failed to write metrics file", logfields.Path(b.MetricsFile), logfields.Error(err))
		}
	}

	fmt.Fprintln(g.Out, report.Summary())
	if report.StagingDir != "" {
		fmt.Fprintf(g.Out, "Output not promoted; inspect %s\n", report.StagingDir)
	}
	return runErr
}
