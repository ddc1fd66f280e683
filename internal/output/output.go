// Package output writes resolved assets to disk.
//
// Files are written into a sibling staging directory (<dir>_stage) and the
// staging directory replaces the output directory in one rename, so readers
// of the output never see a half-written site.
package output

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/mobsite/internal/logfields"
	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

// Writer places build output under Dir.
type Writer struct {
	Dir string
	// Clean replaces the previous output entirely. When false the previous
	// output is copied into staging first and new files overwrite it.
	Clean bool
}

// Staging is one in-progress write. It is not safe for concurrent use.
type Staging struct {
	dir   string
	final string
}

// Begin creates a fresh staging directory.
func (w *Writer) Begin() (*Staging, error) {
	if w.Dir == "" {
		return nil, fmt.Errorf("output directory not set")
	}
	final := filepath.Clean(w.Dir)
	stage := final + "_stage"
	if err := os.RemoveAll(stage); err != nil {
		return nil, fmt.Errorf("remove stale staging directory: %w", err)
	}
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return nil, fmt.Errorf("create staging directory: %w", err)
	}
	if !w.Clean {
		if _, err := os.Stat(final); err == nil {
			if err := os.CopyFS(stage, os.DirFS(final)); err != nil {
				_ = os.RemoveAll(stage)
				return nil, fmt.Errorf("seed staging from previous output: %w", err)
			}
		}
	}
	slog.Debug("Initialized staging directory", slog.String("staging", stage), logfields.Path(final))
	return &Staging{dir: stage, final: final}, nil
}

// Dir returns the staging directory, empty after Promote or Abort.
func (s *Staging) Dir() string { return s.dir }

// WriteFile writes data at a slash separated path relative to the output root.
// Paths escaping the root are rejected.
func (s *Staging) WriteFile(name string, data []byte) error {
	if s.dir == "" {
		return fmt.Errorf("staging already finished")
	}
	local := filepath.FromSlash(name)
	if !filepath.IsLocal(local) {
		return fmt.Errorf("output path %q escapes the output directory", name)
	}
	target := filepath.Join(s.dir, local)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", name, err)
	}
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

// WriteReport writes every successful outcome at its final path and returns
// how many files were written. The first write failure stops the write.
func (s *Staging) WriteReport(report *ssg.Report) (int, error) {
	written := 0
	for _, o := range report.Outcomes {
		if !o.OK() {
			continue
		}
		if err := s.WriteFile(o.FinalPath, o.Content); err != nil {
			return written, err
		}
		written++
	}
	return written, nil
}

// Promote replaces the output directory with the staging directory. The
// previous output is kept as <dir>.prev until the rename succeeded.
func (s *Staging) Promote() error {
	if s.dir == "" {
		return fmt.Errorf("no staging directory initialized")
	}
	if _, err := os.Stat(s.dir); err != nil {
		return fmt.Errorf("staging directory missing: %w", err)
	}

	prev := s.final + ".prev"
	if err := removeWithRetry(prev); err != nil {
		slog.Warn("Failed to remove previous backup", logfields.Path(prev), logfields.Error(err))
	}
	if _, err := os.Stat(s.final); err == nil {
		if err := os.Rename(s.final, prev); err != nil {
			return fmt.Errorf("backup existing output: %w", err)
		}
	}
	if err := os.Rename(s.dir, s.final); err != nil {
		return fmt.Errorf("promote staging: %w", err)
	}
	s.dir = ""
	if err := os.RemoveAll(prev); err != nil {
		slog.Warn("Failed to remove previous backup", logfields.Path(prev), logfields.Error(err))
	}
	slog.Info("Promoted staging directory", logfields.Path(s.final))
	return nil
}

// Abort removes the staging directory. It is a no-op after Promote.
func (s *Staging) Abort() {
	if s.dir == "" {
		return
	}
	dir := s.dir
	s.dir = ""
	if err := os.RemoveAll(dir); err != nil {
		slog.Warn("Failed to remove staging directory after abort", slog.String("staging", dir), logfields.Error(err))
		return
	}
	slog.Debug("Removed staging directory after abort", slog.String("staging", dir))
}

func removeWithRetry(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return nil
	}
	var err error
	for i := range 3 {
		if err = os.RemoveAll(dir); err == nil {
			return nil
		}
		if i < 2 {
			time.Sleep(100 * time.Millisecond)
		}
	}
	_ = filepath.WalkDir(dir, func(p string, _ fs.DirEntry, werr error) error {
		if werr == nil {
			_ = os.Chmod(p, 0o755)
		}
		return nil
	})
	return os.RemoveAll(dir)
}
