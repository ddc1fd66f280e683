package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mobsite/internal/config"
	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
	"git.home.luguber.info/inful/mobsite/internal/retry"
)

func newSourceRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	require.NoError(t, err)
	return dir, repo
}

func commitFile(t *testing.T, dir string, repo *git.Repository, name, content string) plumbing.Hash {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("add "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(1700000000, 0)},
	})
	require.NoError(t, err)
	return hash
}

func noRetry() retry.Policy {
	return retry.NewPolicy(config.RetryBackoffFixed, time.Millisecond, time.Millisecond, 0)
}

func TestClient_SyncClonesThenUpdates(t *testing.T) {
	srcDir, srcRepo := newSourceRepo(t)
	first := commitFile(t, srcDir, srcRepo, "alpha.md", "---\nid: alpha\n---\n")

	client := NewClient(t.TempDir(), noRetry())
	cfg := config.GitConfig{URL: srcDir, Branch: "main"}

	co, err := client.Sync(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, first.String(), co.Commit)
	assert.Equal(t, "main", co.Branch)
	assert.FileExists(t, filepath.Join(co.Path, "alpha.md"))
	assert.Len(t, co.Short(), 8)

	second := commitFile(t, srcDir, srcRepo, "beta.md", "---\nid: beta\n---\n")
	co, err = client.Sync(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, second.String(), co.Commit)
	assert.FileExists(t, filepath.Join(co.Path, "beta.md"))

	co, err = client.Sync(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, second.String(), co.Commit)
}

func TestClient_SyncMissingRepository(t *testing.T) {
	client := NewClient(t.TempDir(), noRetry())
	_, err := client.Sync(context.Background(), config.GitConfig{URL: filepath.Join(t.TempDir(), "missing"), Branch: "main"})
	require.Error(t, err)
	assert.True(t, ferrors.IsClassified(err))
}

func TestAuth(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.AuthConfig
		wantNil bool
		wantErr bool
	}{
		{"nil", nil, true, false},
		{"none", &config.AuthConfig{Type: config.AuthTypeNone}, true, false},
		{"token", &config.AuthConfig{Type: config.AuthTypeToken, Token: "t"}, false, false},
		{"token missing", &config.AuthConfig{Type: config.AuthTypeToken}, true, true},
		{"basic", &config.AuthConfig{Type: config.AuthTypeBasic, Username: "u", Password: "p"}, false, false},
		{"basic missing user", &config.AuthConfig{Type: config.AuthTypeBasic, Password: "p"}, true, true},
		{"ssh missing key", &config.AuthConfig{Type: config.AuthTypeSSH, KeyPath: "/nonexistent/key"}, true, true},
		{"unsupported", &config.AuthConfig{Type: "kerberos"}, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auth, err := Auth(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			if tt.wantNil {
				assert.Nil(t, auth)
			} else {
				assert.NotNil(t, auth)
			}
		})
	}

	auth, err := Auth(&config.AuthConfig{Type: config.AuthTypeToken, Token: "secret"})
	require.NoError(t, err)
	basic, ok := auth.(*http.BasicAuth)
	require.True(t, ok)
	assert.Equal(t, "token", basic.Username)
	assert.Equal(t, "secret", basic.Password)
}

func TestClassifyGitError(t *testing.T) {
	tests := []struct {
		msg       string
		category  ferrors.ErrorCategory
		retryable bool
	}{
		{"authentication required", ferrors.CategoryConfig, false},
		{"repository not found", ferrors.CategoryNotFound, false},
		{"unsupported protocol scheme", ferrors.CategoryConfig, false},
		{"dial tcp: i/o timeout", ferrors.CategoryNetwork, true},
		{"something odd", ferrors.CategoryGit, true},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			err := ClassifyGitError(errors.New(tt.msg), "clone", "https://example.com/r.git")
			assert.Equal(t, tt.category, ferrors.GetCategory(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))
		})
	}

	assert.NoError(t, ClassifyGitError(nil, "clone", ""))
	already := ferrors.ConfigError("x").Build()
	assert.Same(t, already, ClassifyGitError(already, "clone", ""))
}
