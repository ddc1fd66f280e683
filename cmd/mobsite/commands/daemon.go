package commands

import (
	"git.home.luguber.info/inful/mobsite/internal/config"
	"git.home.luguber.info/inful/mobsite/internal/daemon"
)

// DaemonCmd implements the 'daemon' command.
type DaemonCmd struct {
	Addr string `help:"HTTP listen address; overrides daemon.http_addr"`
}

func (d *DaemonCmd) Run(_ *Global, root *CLI) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return err
	}
	if d.Addr != "" {
		cfg.Daemon.HTTPAddr = d.Addr
	}
	ctx, stop := signalContext()
	defer stop()

	svc, err := newServices(ctx, cfg, true)
	if err != nil {
		return err
	}
	defer svc.Close()

	dmn, err := daemon.New(daemon.Options{
		ConfigPath: root.Config,
		Config:     cfg,
		Service:    svc.build,
		Projection: svc.projection,
		Registry:   svc.registry,
		Loader:     config.Load,
	})
	if err != nil {
		return err
	}
	return dmn.Run(ctx)
}
