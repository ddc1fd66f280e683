package commands

import (
	"context"
	"log/slog"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/mobsite/internal/build"
	"git.home.luguber.info/inful/mobsite/internal/config"
	"git.home.luguber.info/inful/mobsite/internal/eventstore"
	"git.home.luguber.info/inful/mobsite/internal/linkverify"
	"git.home.luguber.info/inful/mobsite/internal/logfields"
	"git.home.luguber.info/inful/mobsite/internal/metrics"
)

const historySize = 100

// services wires the build service to the optional metrics registry, build
// history and notifications selected by the configuration.
type services struct {
	build      *build.DefaultBuildService
	registry   *prom.Registry
	store      *eventstore.SQLiteStore
	projection *eventstore.BuildHistoryProjection
	notifier   *linkverify.NATSClient
}

func newServices(ctx context.Context, cfg *config.Config, withMetrics bool) (*services, error) {
	s := &services{build: build.NewBuildService()}

	if withMetrics {
		s.registry = metrics.NewRegistry()
		s.build.WithRecorder(metrics.NewPrometheusRecorder(s.registry))
	}

	if cfg.History.Enabled {
		store, projection, err := openHistory(ctx, cfg)
		if err != nil {
			return nil, err
		}
		s.store, s.projection = store, projection
		s.build.WithEventStore(store, projection)
	}

	if cfg.Notify.Enabled {
		client, err := linkverify.NewNATSClient(ctx, cfg.Notify.NATSURL, cfg.Notify.Subject)
		if err != nil {
			// Notifications never block a build.
			slog.Warn("Notifications disabled", logfields.URL(cfg.Notify.NATSURL), logfields.Error(err))
		} else {
			s.notifier = client
			s.build.WithNotifier(client)
		}
	}
	return s, nil
}

func openHistory(ctx context.Context, cfg *config.Config) (*eventstore.SQLiteStore, *eventstore.BuildHistoryProjection, error) {
	store, err := eventstore.NewSQLiteStore(cfg.History.DBPath)
	if err != nil {
		return nil, nil, err
	}
	projection := eventstore.NewBuildHistoryProjection(store, historySize)
	if err := projection.Rebuild(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	return store, projection, nil
}

func (s *services) Close() {
	if s.notifier != nil {
		if err := s.notifier.Close(); err != nil {
			slog.Warn("Failed to close NATS connection", logfields.Error(err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			slog.Warn("Failed to close build history", logfields.Error(err))
		}
	}
}
