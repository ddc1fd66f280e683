package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/mobsite/internal/logfields"
)

// ConfigWatcher monitors the configuration file and calls onChange after a
// quiet period following the last write.
type ConfigWatcher struct {
	configPath   string
	watcher      *fsnotify.Watcher
	onChange     func(ctx context.Context)
	debounceTime time.Duration

	mu       sync.Mutex
	stopOnce sync.Once
	stopChan chan struct{}
	timer    *time.Timer
}

// NewConfigWatcher creates a watcher for configPath.
func NewConfigWatcher(configPath string, debounce time.Duration, onChange func(ctx context.Context)) (*ConfigWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	absPath, err := filepath.Abs(configPath)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	if debounce <= 0 {
		debounce = 2 * time.Second
	}

	return &ConfigWatcher{
		configPath:   absPath,
		watcher:      watcher,
		onChange:     onChange,
		debounceTime: debounce,
		stopChan:     make(chan struct{}),
	}, nil
}

// Start begins monitoring. The directory is watched rather than the file so
// that editors replacing the file by rename are noticed.
func (cw *ConfigWatcher) Start(ctx context.Context) error {
	configDir := filepath.Dir(cw.configPath)
	if err := cw.watcher.Add(configDir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", configDir, err)
	}
	slog.Info("Starting configuration watcher", logfields.Path(cw.configPath))
	go cw.watchLoop(ctx)
	return nil
}

// Stop ends monitoring and cancels a pending reload.
func (cw *ConfigWatcher) Stop() error {
	var err error
	cw.stopOnce.Do(func() {
		close(cw.stopChan)
		cw.mu.Lock()
		if cw.timer != nil {
			cw.timer.Stop()
		}
		cw.mu.Unlock()
		err = cw.watcher.Close()
	})
	return err
}

func (cw *ConfigWatcher) watchLoop(ctx context.Context) {
	configFile := filepath.Base(cw.configPath)
	for {
		select {
		case <-ctx.Done():
			return
		case <-cw.stopChan:
			return
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != configFile {
				continue
			}
			switch {
			case event.Has(fsnotify.Write), event.Has(fsnotify.Create), event.Has(fsnotify.Rename):
				slog.Debug("Config file change detected", logfields.Path(event.Name), slog.String("op", event.Op.String()))
				cw.schedule(ctx)
			case event.Has(fsnotify.Remove):
				slog.Warn("Config file removed", logfields.Path(event.Name))
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Config watcher error", logfields.Error(err))
		}
	}
}

// schedule (re)starts the debounce timer.
func (cw *ConfigWatcher) schedule(ctx context.Context) {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.timer = time.AfterFunc(cw.debounceTime, func() {
		select {
		case <-cw.stopChan:
			return
		case <-ctx.Done():
			return
		default:
		}
		cw.onChange(ctx)
	})
}
