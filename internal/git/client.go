package git

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	ggitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"git.home.luguber.info/inful/mobsite/internal/config"
	"git.home.luguber.info/inful/mobsite/internal/logfields"
	"git.home.luguber.info/inful/mobsite/internal/retry"
)

// Checkout describes a synchronized working tree.
type Checkout struct {
	Path   string
	Branch string
	Commit string
}

// Short returns the abbreviated commit hash.
func (c Checkout) Short() string {
	if len(c.Commit) > 8 {
		return c.Commit[:8]
	}
	return c.Commit
}

// Client handles Git operations for one workspace directory.
type Client struct {
	workspaceDir string
	policy       retry.Policy
}

// NewClient creates a new Git client with the specified workspace directory.
func NewClient(workspaceDir string, policy retry.Policy) *Client {
	return &Client{workspaceDir: workspaceDir, policy: policy}
}

// Sync clones repo into the workspace, or updates an existing clone, retrying
// transient failures under the client's policy.
func (c *Client) Sync(ctx context.Context, repo config.GitConfig) (Checkout, error) {
	var out Checkout
	err := c.policy.Do(ctx, "git sync", func(ctx context.Context) error {
		var err error
		out, err = c.syncOnce(ctx, repo)
		return err
	}, IsRetryable)
	return out, err
}

func (c *Client) syncOnce(ctx context.Context, repo config.GitConfig) (Checkout, error) {
	repoPath := filepath.Join(c.workspaceDir, "data")
	if _, err := os.Stat(filepath.Join(repoPath, ".git")); err != nil {
		return c.clone(ctx, repoPath, repo)
	}
	return c.update(ctx, repoPath, repo)
}

func (c *Client) clone(ctx context.Context, repoPath string, repo config.GitConfig) (Checkout, error) {
	slog.Debug("Cloning data repository", logfields.URL(repo.URL), slog.String("branch", repo.Branch), logfields.Path(repoPath))
	if err := os.RemoveAll(repoPath); err != nil {
		return Checkout{}, fmt.Errorf("failed to remove existing directory: %w", err)
	}

	opts := &git.CloneOptions{URL: repo.URL}
	if repo.Branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(repo.Branch)
		opts.SingleBranch = true
	}
	auth, err := Auth(repo.Auth)
	if err != nil {
		return Checkout{}, ClassifyGitError(err, "auth", repo.URL)
	}
	opts.Auth = auth

	repository, err := git.PlainCloneContext(ctx, repoPath, false, opts)
	if err != nil {
		return Checkout{}, ClassifyGitError(err, "clone", repo.URL)
	}
	head, err := repository.Head()
	if err != nil {
		return Checkout{}, ClassifyGitError(err, "head", repo.URL)
	}
	out := Checkout{Path: repoPath, Branch: head.Name().Short(), Commit: head.Hash().String()}
	slog.Info("Data repository cloned", logfields.URL(repo.URL), slog.String("commit", out.Short()), logfields.Path(repoPath))
	return out, nil
}

func (c *Client) update(ctx context.Context, repoPath string, repo config.GitConfig) (Checkout, error) {
	repository, err := git.PlainOpen(repoPath)
	if err != nil {
		return Checkout{}, fmt.Errorf("open repo: %w", err)
	}
	wt, err := repository.Worktree()
	if err != nil {
		return Checkout{}, fmt.Errorf("worktree: %w", err)
	}

	branch := repo.Branch
	if branch == "" {
		if head, herr := repository.Head(); herr == nil && head.Name().IsBranch() {
			branch = head.Name().Short()
		} else {
			branch = config.DefaultGitBranch
		}
	}

	fetch := &git.FetchOptions{
		RemoteName: "origin",
		Tags:       git.NoTags,
		Force:      true,
		RefSpecs:   []ggitcfg.RefSpec{ggitcfg.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/origin/%s", branch, branch))},
	}
	if fetch.Auth, err = Auth(repo.Auth); err != nil {
		return Checkout{}, ClassifyGitError(err, "auth", repo.URL)
	}
	if err := repository.FetchContext(ctx, fetch); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return Checkout{}, ClassifyGitError(err, "fetch", repo.URL)
	}

	remoteRef, err := repository.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return Checkout{}, ClassifyGitError(fmt.Errorf("remote ref: %w", err), "fetch", repo.URL)
	}

	var previous plumbing.Hash
	if head, herr := repository.Head(); herr == nil {
		previous = head.Hash()
	}
	// The checkout is a mirror, so divergence is resolved in favour of the remote.
	checkout := &git.CheckoutOptions{Branch: plumbing.NewBranchReferenceName(branch), Force: true}
	if !hasLocalBranch(repository, branch) {
		checkout.Create = true
		checkout.Hash = remoteRef.Hash()
	}
	if err := wt.Checkout(checkout); err != nil {
		return Checkout{}, fmt.Errorf("checkout %s: %w", branch, err)
	}
	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return Checkout{}, fmt.Errorf("reset: %w", err)
	}

	out := Checkout{Path: repoPath, Branch: branch, Commit: remoteRef.Hash().String()}
	switch {
	case previous == remoteRef.Hash():
		slog.Info("Data repository already up-to-date", slog.String("branch", branch), slog.String("commit", out.Short()))
	case !previous.IsZero() && !isAncestor(repository, previous, remoteRef.Hash()):
		slog.Warn("Data repository diverged, reset to remote", slog.String("branch", branch), slog.String("commit", out.Short()))
	default:
		slog.Info("Data repository updated", slog.String("branch", branch), slog.String("commit", out.Short()))
	}
	return out, nil
}

func hasLocalBranch(repository *git.Repository, branch string) bool {
	_, err := repository.Reference(plumbing.NewBranchReferenceName(branch), false)
	return err == nil
}

// isAncestor reports whether a is reachable from b. Missing objects in a
// shallow clone count as not reachable.
func isAncestor(repo *git.Repository, a, b plumbing.Hash) bool {
	if a == b {
		return true
	}
	seen := map[plumbing.Hash]struct{}{}
	queue := []plumbing.Hash{b}
	for len(queue) > 0 {
		h := queue[0]
		queue = queue[1:]
		if h == a {
			return true
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		commit, err := repo.CommitObject(h)
		if err != nil {
			return false
		}
		queue = append(queue, commit.ParentHashes...)
	}
	return false
}
