package build

import (
	"context"
	"errors"
	"fmt"

	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

// Classify maps a pipeline error onto the error taxonomy used for exit codes.
// Errors that are already classified below an enumeration failure (for example
// a git authentication error) keep their category.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	stage := ""
	if errors.As(err, &se) {
		stage = string(se.Stage)
	}

	var ee *ssg.EnumerationError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ferrors.WrapError(err, ferrors.CategoryDaemon, "build canceled").
			WithContext("stage", stage).
			Build()
	case errors.As(err, &ee):
		if ee.Kind == ssg.EnumerationFetch {
			if ce, ok := ferrors.AsClassified(err); ok {
				return ce
			}
			return ferrors.DataSourceError("failed to fetch mob records").WithCause(err).Build()
		}
		return ferrors.EnumerationError(ee.Error()).
			WithCause(err).
			WithContext("path", ee.Path).
			Build()
	}

	if ce, ok := ferrors.AsClassified(err); ok {
		return ce
	}
	return ferrors.WrapError(err, ferrors.CategoryInternal, fmt.Sprintf("stage %s failed", stage)).Build()
}

func classify(buildID string, err error) error {
	if ce, ok := ferrors.AsClassified(Classify(err)); ok {
		return ce.WithContext("build_id", buildID)
	}
	return nil
}

// assetFailure is returned when fail_on_asset_error rejects a build.
func assetFailure(r *Report) error {
	return ferrors.ContentError(fmt.Sprintf("%d asset(s) failed and %d broken link(s); output not promoted", len(r.FailedAssets), len(r.BrokenLinks))).
		WithContext("build_id", r.BuildID).
		WithContext("staging_dir", r.StagingDir).
		Build()
}
