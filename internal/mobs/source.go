package mobs

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"
	"sync"

	"git.home.luguber.info/inful/mobsite/internal/config"
	"git.home.luguber.info/inful/mobsite/internal/git"
	"git.home.luguber.info/inful/mobsite/internal/logfields"
	"git.home.luguber.info/inful/mobsite/internal/retry"
	"git.home.luguber.info/inful/mobsite/internal/workspace"
)

// Source supplies mob records in a stable order.
type Source interface {
	Fetch(ctx context.Context) ([]Mob, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Mob, error)

// Fetch calls f.
func (f SourceFunc) Fetch(ctx context.Context) ([]Mob, error) { return f(ctx) }

// Static is a Source returning a fixed list.
type Static []Mob

// Fetch returns a copy of the list.
func (s Static) Fetch(context.Context) ([]Mob, error) {
	return append([]Mob(nil), s...), nil
}

// DirSource reads every *.md file directly inside Dir of FS, in file name order.
// Files starting with "_" or "." are skipped.
type DirSource struct {
	FS  fs.FS
	Dir string
}

// NewDirSource reads records from a directory on disk.
func NewDirSource(dir string) *DirSource {
	return &DirSource{FS: os.DirFS(dir), Dir: "."}
}

// Fetch parses all record files. Any unreadable or malformed record fails the fetch.
func (s *DirSource) Fetch(ctx context.Context) ([]Mob, error) {
	dir := s.Dir
	if dir == "" {
		dir = "."
	}
	entries, err := fs.ReadDir(s.FS, dir)
	if err != nil {
		return nil, fmt.Errorf("read mob directory: %w", err)
	}

	var out []Mob
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || path.Ext(name) != ".md" || strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".") {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		file := path.Join(dir, name)
		content, err := fs.ReadFile(s.FS, file)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", file, err)
		}
		m, err := Parse(file, content)
		if err != nil {
			return nil, err
		}
		slog.Debug("Mob record read", logfields.RecordID(m.ID), logfields.Path(file))
		out = append(out, m)
	}
	slog.Info("Mob records loaded", logfields.Count(len(out)))
	return out, nil
}

// GitSource syncs a git repository into a workspace and reads records from it.
type GitSource struct {
	Repo      config.GitConfig
	Policy    retry.Policy
	Workspace *workspace.Manager

	mu     sync.Mutex
	commit string
}

// NewGitSource wires a GitSource for repo. Clones live in a persistent
// workspace when repo.WorkspaceDir is set, else in a temporary one.
func NewGitSource(repo config.GitConfig, policy retry.Policy) *GitSource {
	ws := workspace.NewManager("")
	if repo.WorkspaceDir != "" {
		ws = workspace.NewPersistentManager(repo.WorkspaceDir)
	}
	return &GitSource{Repo: repo, Policy: policy, Workspace: ws}
}

// Commit returns the commit read by the last successful Fetch.
func (s *GitSource) Commit() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit
}

// Fetch syncs the repository, then reads records like DirSource.
func (s *GitSource) Fetch(ctx context.Context) (mobs []Mob, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.Workspace.Create(); err != nil {
		return nil, err
	}
	defer func() {
		if cerr := s.Workspace.Cleanup(); cerr != nil {
			err = errors.Join(err, cerr)
		}
	}()

	co, err := git.NewClient(s.Workspace.Path(), s.Policy).Sync(ctx, s.Repo)
	if err != nil {
		return nil, err
	}
	slog.Info("Reading mob records from repository", logfields.URL(s.Repo.URL), slog.String("commit", co.Short()))

	dir := s.Repo.Path
	if dir == "" {
		dir = "."
	}
	mobs, err = (&DirSource{FS: os.DirFS(co.Path), Dir: dir}).Fetch(ctx)
	if err != nil {
		return nil, err
	}
	s.commit = co.Commit
	return mobs, nil
}

// FromConfig returns the Source selected by the data section.
func FromConfig(data config.DataConfig, policy retry.Policy) Source {
	if data.Git != nil {
		return NewGitSource(*data.Git, policy)
	}
	return NewDirSource(data.Dir)
}
