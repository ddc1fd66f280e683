// Package daemon keeps a site current: it rebuilds on an interval, rebuilds
// when the configuration file changes, and serves health, history and
// Prometheus metrics over HTTP.
package daemon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/mobsite/internal/build"
	"git.home.luguber.info/inful/mobsite/internal/config"
	"git.home.luguber.info/inful/mobsite/internal/eventstore"
	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
	"git.home.luguber.info/inful/mobsite/internal/logfields"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
)

var (
	// ErrBuildRunning is returned when a build is requested while one is running.
	ErrBuildRunning = ferrors.DaemonError("build already running").Build()
	// ErrStopping is returned when a build is requested during shutdown.
	ErrStopping = ferrors.DaemonError("daemon is stopping").Build()
)

// Options configures a Daemon.
type Options struct {
	ConfigPath string
	Config     *config.Config
	Service    build.BuildService

	// Projection serves /history; nil disables the endpoint.
	Projection *eventstore.BuildHistoryProjection
	// Registry serves /metrics; nil disables the endpoint.
	Registry *prom.Registry
	// Loader re-reads the configuration on change. Defaults to config.Load.
	Loader func(path string) (*config.Config, error)
	// ReloadDebounce is the quiet period after a config write. Defaults to 2s.
	ReloadDebounce time.Duration
}

// LastBuild summarizes the most recent build run by the daemon.
type LastBuild struct {
	BuildID string        `json:"build_id"`
	Trigger string        `json:"trigger"`
	Outcome build.Outcome `json:"outcome"`
	End     time.Time     `json:"end"`
	Error   string        `json:"error,omitempty"`
}

// Daemon is the long-running rebuild service.
type Daemon struct {
	opts      Options
	startTime time.Time
	status    atomic.Value // Status

	mu        sync.RWMutex
	cfg       *config.Config
	lastBuild *LastBuild
	closing   bool // guarded by mu; no build slot is granted once set

	buildMu   sync.Mutex
	building  atomic.Bool
	inflight  sync.WaitGroup
	scheduler *Scheduler
	watcher   *ConfigWatcher
}

// New creates a daemon. The first build starts when Run is called.
func New(opts Options) (*Daemon, error) {
	if opts.Config == nil {
		return nil, ferrors.ConfigError("config required").Build()
	}
	if opts.Service == nil {
		return nil, ferrors.ValidationError("build service required").Build()
	}
	if opts.Loader == nil {
		opts.Loader = config.Load
	}
	d := &Daemon{opts: opts, cfg: opts.Config}
	d.status.Store(StatusStopped)

	if opts.Registry != nil {
		running := prom.NewGaugeFunc(prom.GaugeOpts{
			Namespace: "mobsite",
			Name:      "daemon_build_running",
			Help:      "1 while the daemon is running a build",
		}, func() float64 {
			if d.building.Load() {
				return 1
			}
			return 0
		})
		if err := opts.Registry.Register(running); err != nil {
			return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to register daemon metrics").Build()
		}
	}
	return d, nil
}

// Status returns the lifecycle state.
func (d *Daemon) Status() Status { return d.status.Load().(Status) }

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cfg
}

// LastBuild returns the most recent build, nil before the first one finished.
func (d *Daemon) LastBuild() *LastBuild {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.lastBuild == nil {
		return nil
	}
	lb := *d.lastBuild
	return &lb
}

// Building reports whether a build is in progress.
func (d *Daemon) Building() bool { return d.building.Load() }

// Run starts the scheduler, the HTTP server and the config watcher, and
// blocks until ctx is done.
func (d *Daemon) Run(ctx context.Context) error {
	d.status.Store(StatusStarting)
	d.startTime = time.Now()
	cfg := d.Config()

	ln, err := net.Listen("tcp", cfg.Daemon.HTTPAddr)
	if err != nil {
		d.status.Store(StatusStopped)
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to bind http address").
			WithContext("addr", cfg.Daemon.HTTPAddr).
			Build()
	}
	srv := &http.Server{Handler: d.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server stopped", logfields.Error(err))
		}
	}()
	slog.Info("Serving daemon endpoints", slog.String("addr", ln.Addr().String()))

	scheduler, err := NewScheduler()
	if err != nil {
		_ = srv.Close()
		d.status.Store(StatusStopped)
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to start scheduler").Build()
	}
	task := func() { d.triggerLogged(ctx, build.TriggerSchedule) }
	scheduleID, err := scheduler.SchedulePeriodicBuild(cfg.Daemon.IntervalDuration(), task, true)
	if err != nil {
		_ = srv.Close()
		d.status.Store(StatusStopped)
		return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to schedule rebuilds").
			WithContext("interval", cfg.Daemon.Interval).
			Build()
	}
	d.mu.Lock()
	d.scheduler = scheduler
	d.mu.Unlock()
	scheduler.Start()
	slog.Info("Scheduled periodic build", logfields.ScheduleID(scheduleID), slog.String("interval", cfg.Daemon.Interval))

	if cfg.Daemon.WatchConfig && d.opts.ConfigPath != "" {
		watcher, err := NewConfigWatcher(d.opts.ConfigPath, d.opts.ReloadDebounce, func(ctx context.Context) {
			if err := d.Reload(ctx); err != nil {
				slog.Error("Failed to reload configuration", logfields.Error(err))
			}
		})
		if err == nil {
			err = watcher.Start(ctx)
		}
		if err != nil {
			slog.Warn("Config watcher disabled", logfields.Error(err))
		} else {
			d.watcher = watcher
		}
	}

	d.status.Store(StatusRunning)
	slog.Info("Daemon running", slog.String("interval", cfg.Daemon.Interval), logfields.Path(d.opts.ConfigPath))
	<-ctx.Done()

	d.status.Store(StatusStopping)
	if d.watcher != nil {
		_ = d.watcher.Stop()
	}
	if err := scheduler.Stop(); err != nil {
		slog.Warn("Scheduler shutdown failed", logfields.Error(err))
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("HTTP server shutdown failed", logfields.Error(err))
	}
	d.mu.Lock()
	d.closing = true
	d.mu.Unlock()
	// Builds started over HTTP are not tracked by the scheduler.
	d.inflight.Wait()
	d.status.Store(StatusStopped)
	slog.Info("Daemon stopped")
	return nil
}

// TriggerBuild runs one build with the active configuration. It returns
// ErrBuildRunning instead of queueing when a build is in progress.
func (d *Daemon) TriggerBuild(ctx context.Context, trigger string) (*build.Report, error) {
	release, err := d.acquire()
	if err != nil {
		return nil, err
	}
	defer release()
	return d.runBuild(ctx, trigger)
}

// acquire claims the single build slot. The returned release must be called
// exactly once when the build ends.
func (d *Daemon) acquire() (func(), error) {
	if !d.buildMu.TryLock() {
		return nil, ErrBuildRunning
	}
	d.mu.Lock()
	if d.closing {
		d.mu.Unlock()
		d.buildMu.Unlock()
		return nil, ErrStopping
	}
	d.inflight.Add(1)
	d.mu.Unlock()
	d.building.Store(true)

	return func() {
		d.building.Store(false)
		d.buildMu.Unlock()
		d.inflight.Done()
	}, nil
}

// runBuild runs one build; the caller holds the build slot.
func (d *Daemon) runBuild(ctx context.Context, trigger string) (*build.Report, error) {
	report, err := d.opts.Service.Run(ctx, build.BuildRequest{
		Config:     d.Config(),
		ConfigPath: d.opts.ConfigPath,
		Trigger:    trigger,
	})

	lb := &LastBuild{Trigger: trigger, End: time.Now()}
	if report != nil {
		lb.BuildID = report.BuildID
		lb.Outcome = report.Outcome
		if !report.End.IsZero() {
			lb.End = report.End
		}
	}
	if err != nil {
		lb.Error = err.Error()
	}
	d.mu.Lock()
	d.lastBuild = lb
	d.mu.Unlock()
	return report, err
}

func (d *Daemon) triggerLogged(ctx context.Context, trigger string) {
	_, err := d.TriggerBuild(ctx, trigger)
	switch {
	case errors.Is(err, ErrBuildRunning):
		slog.Info("Build already running; skipping", slog.String("trigger", trigger))
	case errors.Is(err, ErrStopping):
		slog.Info("Daemon stopping; skipping build", slog.String("trigger", trigger))
	case err != nil:
		slog.Error("Build failed", slog.String("trigger", trigger), logfields.Error(err))
	}
}

// Reload re-reads the configuration file, applies it and rebuilds. An invalid
// file leaves the active configuration in place.
func (d *Daemon) Reload(ctx context.Context) error {
	slog.Info("Reloading configuration", logfields.Path(d.opts.ConfigPath))
	next, err := d.opts.Loader(d.opts.ConfigPath)
	if err != nil {
		return err
	}

	d.mu.Lock()
	prev := d.cfg
	d.cfg = next
	scheduler := d.scheduler
	d.mu.Unlock()

	if prev.Daemon.HTTPAddr != next.Daemon.HTTPAddr {
		slog.Warn("daemon.http_addr change takes effect after restart", slog.String("addr", prev.Daemon.HTTPAddr))
	}
	if scheduler != nil && prev.Daemon.IntervalDuration() != next.Daemon.IntervalDuration() {
		if err := scheduler.Reschedule(next.Daemon.IntervalDuration()); err != nil {
			return err
		}
	}

	d.triggerLogged(ctx, build.TriggerConfigReload)
	return nil
}

// NextRun returns when the next scheduled build starts.
func (d *Daemon) NextRun() time.Time {
	d.mu.RLock()
	scheduler := d.scheduler
	d.mu.RUnlock()
	if scheduler == nil {
		return time.Time{}
	}
	return scheduler.NextRun()
}
