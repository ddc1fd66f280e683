package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/mobsite/internal/logfields"
	"git.home.luguber.info/inful/mobsite/internal/metrics"
)

// StageName identifies a build stage.
type StageName string

const (
	StageEnumerate   StageName = "enumerate"
	StageTargets     StageName = "targets"
	StageResolve     StageName = "resolve"
	StageVerifyLinks StageName = "verify_links"
	StageWrite       StageName = "write"
)

// StageErrorKind enumerates structured stage error categories.
type StageErrorKind string

const (
	StageErrorFatal    StageErrorKind = "fatal"    // Build must abort.
	StageErrorWarning  StageErrorKind = "warning"  // Non-fatal; record and continue.
	StageErrorCanceled StageErrorKind = "canceled" // Context cancellation.
)

// StageError is a structured error carrying category and underlying cause.
type StageError struct {
	Kind  StageErrorKind
	Stage StageName
	Err   error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage %s: %v", e.Kind, e.Stage, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

func fatal(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorFatal, Stage: stage, Err: err}
}

func warning(stage StageName, err error) *StageError {
	return &StageError{Kind: StageErrorWarning, Stage: stage, Err: err}
}

// Stage is a discrete unit of work in the build.
type Stage func(ctx context.Context, st *state) error

type stageDef struct {
	name StageName
	fn   Stage
}

// runStages executes stages in order, recording timing and stopping on the
// first fatal or canceled stage. Warnings are recorded and the next stage runs.
func runStages(ctx context.Context, st *state, stages []stageDef) error {
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			se := &StageError{Kind: StageErrorCanceled, Stage: s.name, Err: err}
			st.record(s.name, 0, se)
			return se
		}

		t0 := time.Now()
		err := s.fn(ctx, st)
		dur := time.Since(t0)

		var se *StageError
		switch {
		case err == nil:
		case errors.As(err, &se):
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			se = &StageError{Kind: StageErrorCanceled, Stage: s.name, Err: err}
		default:
			se = fatal(s.name, err)
		}
		st.record(s.name, dur, se)

		if se != nil && se.Kind != StageErrorWarning {
			return se
		}
	}
	return nil
}

// record stores a stage result in the report and the metrics recorder.
func (st *state) record(name StageName, dur time.Duration, se *StageError) {
	r := st.report
	r.StageDurations[string(name)] = dur
	st.recorder.ObserveStageDuration(string(name), dur)

	result := metrics.ResultSuccess
	if se != nil {
		r.StageErrorKinds[string(name)] = string(se.Kind)
		switch se.Kind {
		case StageErrorWarning:
			result = metrics.ResultWarning
			r.Warnings = append(r.Warnings, se.Error())
		case StageErrorCanceled:
			result = metrics.ResultCanceled
			r.Errors = append(r.Errors, se.Error())
		default:
			result = metrics.ResultFatal
			r.Errors = append(r.Errors, se.Error())
		}
	}
	st.recorder.IncStageResult(string(name), result)

	attrs := []any{logfields.BuildID(r.BuildID), logfields.Stage(string(name)), logfields.DurationMS(float64(dur.Microseconds()) / 1000)}
	if se != nil {
		slog.Warn("Stage finished with error", append(attrs, slog.String("kind", string(se.Kind)), logfields.Error(se.Err))...)
		return
	}
	slog.Debug("Stage finished", attrs...)
}
