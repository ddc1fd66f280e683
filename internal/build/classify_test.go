package build

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

func TestClassify(t *testing.T) {
	gitErr := ferrors.GitError("authentication failed").Build()

	tests := []struct {
		name string
		err  error
		want ferrors.ErrorCategory
	}{
		{"canceled", &StageError{Kind: StageErrorCanceled, Stage: StageResolve, Err: context.Canceled}, ferrors.CategoryDaemon},
		{"deadline", context.DeadlineExceeded, ferrors.CategoryDaemon},
		{"fetch", &ssg.EnumerationError{Kind: ssg.EnumerationFetch, Err: errors.New("disk gone")}, ferrors.CategoryDataSource},
		{"fetch keeps git category", &ssg.EnumerationError{Kind: ssg.EnumerationFetch, Err: gitErr}, ferrors.CategoryGit},
		{"collision", &ssg.EnumerationError{Kind: ssg.EnumerationCollision, Path: "mobs/a.html"}, ferrors.CategoryEnumeration},
		{"invalid path", &ssg.EnumerationError{Kind: ssg.EnumerationInvalidPath}, ferrors.CategoryEnumeration},
		{"classified", ferrors.FileSystemError("disk full").Build(), ferrors.CategoryFileSystem},
		{"unknown", &StageError{Kind: StageErrorFatal, Stage: StageWrite, Err: errors.New("boom")}, ferrors.CategoryInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.err)
			require.Error(t, got)
			assert.Equal(t, tt.want, ferrors.GetCategory(got))
		})
	}

	assert.NoError(t, Classify(nil))
}

func TestClassify_CollisionCarriesPath(t *testing.T) {
	err := Classify(&StageError{Kind: StageErrorFatal, Stage: StageTargets,
		Err: &ssg.EnumerationError{Kind: ssg.EnumerationCollision, Path: "mobs/a.html"}})

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "mobs/a.html", ce.Context()["path"])
	assert.Contains(t, ce.Error(), "duplicate logical path")
}

func TestClassify_AddsBuildID(t *testing.T) {
	err := classify("b-1", errors.New("boom"))

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, "b-1", ce.Context()["build_id"])
}
