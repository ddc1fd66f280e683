package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/mobsite/internal/config"
	"git.home.luguber.info/inful/mobsite/internal/eventstore"
	ferrors "git.home.luguber.info/inful/mobsite/internal/foundation/errors"
	"git.home.luguber.info/inful/mobsite/internal/linkverify"
	"git.home.luguber.info/inful/mobsite/internal/logfields"
	"git.home.luguber.info/inful/mobsite/internal/metrics"
	"git.home.luguber.info/inful/mobsite/internal/mobs"
	"git.home.luguber.info/inful/mobsite/internal/output"
	"git.home.luguber.info/inful/mobsite/internal/retry"
	"git.home.luguber.info/inful/mobsite/internal/site"
	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

// Triggers recorded with each build.
const (
	TriggerCLI          = "cli"
	TriggerSchedule     = "schedule"
	TriggerConfigReload = "config_reload"
	TriggerHTTP         = "http"
)

// BuildService is the canonical entry point for executing site builds.
// The CLI and the daemon are thin wrappers over it.
type BuildService interface {
	Run(ctx context.Context, req BuildRequest) (*Report, error)
}

// BuildRequest contains all inputs of one build.
type BuildRequest struct {
	Config     *config.Config
	ConfigPath string
	Trigger    string

	// OutputDir overrides output.directory when set.
	OutputDir string
	// SkipLinkVerification disables the verify_links stage regardless of config.
	SkipLinkVerification bool
}

// Notifier publishes build notifications. *linkverify.NATSClient implements it.
type Notifier interface {
	PublishBrokenLinks(ctx context.Context, buildID string, broken []linkverify.BrokenLink) error
	PublishBuildCompleted(ctx context.Context, summary any) error
}

// SourceFactory selects the mob record source for a configuration.
type SourceFactory func(data config.DataConfig, policy retry.Policy) mobs.Source

// DefaultBuildService is the standard implementation of BuildService.
type DefaultBuildService struct {
	recorder      metrics.Recorder
	store         eventstore.Store
	projection    *eventstore.BuildHistoryProjection
	notifier      Notifier
	sourceFactory SourceFactory
	version       func() string
}

// NewBuildService creates a service with no metrics, history or notifications.
func NewBuildService() *DefaultBuildService {
	return &DefaultBuildService{
		recorder:      metrics.NoopRecorder{},
		sourceFactory: mobs.FromConfig,
		version:       func() string { return strconv.FormatInt(time.Now().UnixMilli(), 10) },
	}
}

// WithRecorder sets the metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	if r == nil {
		r = metrics.NoopRecorder{}
	}
	s.recorder = r
	return s
}

// WithEventStore records every build in store. A projection, when given, is
// kept current with the appended events.
func (s *DefaultBuildService) WithEventStore(store eventstore.Store, projection *eventstore.BuildHistoryProjection) *DefaultBuildService {
	s.store = store
	s.projection = projection
	return s
}

// WithNotifier publishes broken links and build summaries.
func (s *DefaultBuildService) WithNotifier(n Notifier) *DefaultBuildService {
	s.notifier = n
	return s
}

// WithSourceFactory replaces the record source selection (for testing).
func (s *DefaultBuildService) WithSourceFactory(f SourceFactory) *DefaultBuildService {
	s.sourceFactory = f
	return s
}

// WithVersion fixes the cache-busting token instead of using the build time.
func (s *DefaultBuildService) WithVersion(v string) *DefaultBuildService {
	s.version = func() string { return v }
	return s
}

// state carries mutable state across the stages of one build.
type state struct {
	cfg      *config.Config
	req      BuildRequest
	report   *Report
	recorder metrics.Recorder

	site    *site.Site
	source  mobs.Source
	records []mobs.Mob
	assets  []ssg.Asset
	table   *ssg.Table
	result  *ssg.Report
	staging *output.Staging

	emit func(mk func(buildID string) (*eventstore.BaseEvent, error))
}

// Run executes one build. The returned report is always non-nil. The error is
// a ClassifiedError when the build was aborted, canceled or rejected by
// fail_on_asset_error; a partial build returns a nil error.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*Report, error) {
	trigger := req.Trigger
	if trigger == "" {
		trigger = TriggerCLI
	}
	report := newReport(uuid.NewString(), trigger, s.version())
	log := slog.With(logfields.BuildID(report.BuildID))

	if req.Config == nil {
		report.End = time.Now()
		report.Outcome = OutcomeAborted
		return report, ferrors.ConfigError("config required").Build()
	}

	s.emit(ctx, report.BuildID, func(id string) (*eventstore.BaseEvent, error) {
		return eventstore.NewBuildStarted(id, eventstore.BuildStartedPayload{Trigger: trigger, ConfigPath: req.ConfigPath, Version: report.Version})
	})
	log.Info("Build started", slog.String("trigger", trigger))

	st := &state{cfg: req.Config, req: req, report: report, recorder: s.recorder}
	st.emit = func(mk func(string) (*eventstore.BaseEvent, error)) { s.emit(ctx, report.BuildID, mk) }
	policy := retry.FromConfig(req.Config.Build.Retry).WithOnRetry(func(int, error) { s.recorder.IncFetchRetry() })
	st.source = s.sourceFactory(req.Config.Data, policy)
	opts := site.OptionsFromConfig(req.Config)
	opts.Version = report.Version
	st.site = site.New(opts)

	stages := []stageDef{
		{StageEnumerate, stageEnumerate},
		{StageTargets, stageTargets},
		{StageResolve, stageResolve},
	}
	if req.Config.Build.VerifyLinksEnabled() && !req.SkipLinkVerification {
		stages = append(stages, stageDef{StageVerifyLinks, stageVerifyLinks})
	}
	stages = append(stages, stageDef{StageWrite, stageWrite})

	runErr := runStages(ctx, st, stages)
	if runErr == nil {
		runErr = s.finalize(st)
	} else if st.staging != nil {
		st.staging.Abort()
	}

	err := s.complete(ctx, st, runErr)
	log.Info("Build finished", logfields.Outcome(string(report.Outcome)), slog.String("summary", report.Summary()))
	return report, err
}

// finalize derives the outcome, writes the report files and promotes the
// staging directory unless the failure policy rejects the build.
func (s *DefaultBuildService) finalize(st *state) error {
	r := st.report
	r.End = time.Now()

	problems := len(r.FailedAssets) > 0 || len(r.BrokenLinks) > 0
	switch {
	case !problems:
		r.Outcome = OutcomeSuccess
	case st.cfg.Build.FailOnAssetErrorEnabled():
		r.Outcome = OutcomeFailed
	default:
		r.Outcome = OutcomePartial
	}

	if r.Outcome == OutcomeFailed {
		r.StagingDir = st.staging.Dir()
	}
	if err := writeReportFiles(st.staging, r); err != nil {
		st.staging.Abort()
		return fatal(StageWrite, err)
	}
	if r.Outcome == OutcomeFailed {
		slog.Error("Build rejected; output not promoted",
			logfields.BuildID(r.BuildID),
			slog.String("staging", r.StagingDir),
			slog.Int("failed_assets", len(r.FailedAssets)),
			slog.Int("broken_links", len(r.BrokenLinks)))
		return assetFailure(r)
	}
	if err := st.staging.Promote(); err != nil {
		st.staging.Abort()
		return fatal(StageWrite, ferrors.FileSystemError("failed to promote output").WithCause(err).Build())
	}
	r.Promoted = true
	return nil
}

func writeReportFiles(stage *output.Staging, r *Report) error {
	data, err := r.JSON()
	if err != nil {
		return err
	}
	if err := stage.WriteFile(ReportJSON, data); err != nil {
		return err
	}
	return stage.WriteFile(ReportText, []byte(r.Summary()+"\n"))
}

// complete records the final outcome in metrics, history and notifications,
// and turns a stage failure into a classified error.
func (s *DefaultBuildService) complete(ctx context.Context, st *state, runErr error) error {
	r := st.report
	if r.End.IsZero() {
		r.End = time.Now()
	}

	var se *StageError
	failedStage := errors.As(runErr, &se)
	if failedStage {
		r.Outcome = OutcomeAborted
		if se.Kind == StageErrorCanceled {
			r.Outcome = OutcomeCanceled
		}
		r.Promoted = false
	}

	s.recorder.ObserveBuildDuration(r.Duration())
	s.recorder.IncBuildOutcome(string(r.Outcome))

	if failedStage {
		s.emit(ctx, r.BuildID, func(id string) (*eventstore.BaseEvent, error) {
			return eventstore.NewBuildFailed(id, eventstore.BuildFailedPayload{Stage: string(se.Stage), Error: se.Err.Error()})
		})
	} else {
		s.emit(ctx, r.BuildID, func(id string) (*eventstore.BaseEvent, error) {
			return eventstore.NewBuildCompleted(id, eventstore.BuildCompletedPayload{
				Outcome:     string(r.Outcome),
				Assets:      r.Assets,
				Failed:      len(r.FailedAssets),
				Written:     r.Written,
				BrokenLinks: len(r.BrokenLinks),
				DurationMS:  r.Duration().Milliseconds(),
			})
		})
	}

	if s.notifier != nil {
		notifyCtx := context.WithoutCancel(ctx)
		if len(r.BrokenLinks) > 0 {
			if err := s.notifier.PublishBrokenLinks(notifyCtx, r.BuildID, r.BrokenLinks); err != nil {
				slog.Warn("Failed to publish broken links", logfields.BuildID(r.BuildID), logfields.Error(err))
			}
		}
		if err := s.notifier.PublishBuildCompleted(notifyCtx, r); err != nil {
			slog.Warn("Failed to publish build summary", logfields.BuildID(r.BuildID), logfields.Error(err))
		}
	}

	if failedStage {
		return classify(r.BuildID, runErr)
	}
	return runErr
}

// emit appends an event to the history store and projection. History is best
// effort: failures are logged and never change the build outcome.
func (s *DefaultBuildService) emit(ctx context.Context, buildID string, mk func(string) (*eventstore.BaseEvent, error)) {
	if s.store == nil {
		return
	}
	ev, err := mk(buildID)
	if err == nil {
		err = s.store.Append(context.WithoutCancel(ctx), ev)
	}
	if err != nil {
		slog.Warn("Failed to record build event", logfields.BuildID(buildID), logfields.Error(err))
		return
	}
	if s.projection != nil {
		s.projection.Apply(ev)
	}
}

func stageEnumerate(ctx context.Context, st *state) error {
	enumerate := st.site.Enumerator(st.source, func(records []mobs.Mob) { st.records = records })
	assets, err := enumerate(ctx)
	if err != nil {
		return fatal(StageEnumerate, err)
	}
	st.assets = assets

	r := st.report
	r.Records = len(st.records)
	r.Assets = len(assets)
	r.Fingerprints = make(map[string]string, len(st.records))
	for _, m := range st.records {
		r.Fingerprints[m.ID] = m.Fingerprint
	}
	if c, ok := st.source.(interface{ Commit() string }); ok {
		r.Commit = c.Commit()
	}
	st.recorder.SetRecords(r.Records)
	st.emit(func(id string) (*eventstore.BaseEvent, error) {
		return eventstore.NewRecordsFetched(id, eventstore.RecordsFetchedPayload{Count: r.Records, Commit: r.Commit, Fingerprints: r.Fingerprints})
	})
	return nil
}

func stageTargets(_ context.Context, st *state) error {
	table, err := ssg.NewTable(ssg.Paths(st.assets), ssg.PrefixFinalPath(st.cfg.Site.BasePath))
	if err != nil {
		return fatal(StageTargets, err)
	}
	st.table = table
	return nil
}

func stageResolve(ctx context.Context, st *state) error {
	resolver := &ssg.Resolver{
		Concurrency: st.cfg.Build.Concurrency,
		Observer:    metrics.AssetObserver{Recorder: st.recorder},
	}
	st.result = resolver.Resolve(ctx, st.assets, st.table)

	r := st.report
	failed := st.result.Failed()
	r.Resolved = len(st.result.Outcomes) - len(failed)
	for _, o := range failed {
		r.FailedAssets = append(r.FailedAssets, AssetFailure{Path: o.Path.String(), Error: o.Err.Error()})
		slog.Error("Asset failed", logfields.BuildID(r.BuildID), logfields.Asset(o.Path.String()), logfields.Error(o.Err))
		failure := r.FailedAssets[len(r.FailedAssets)-1]
		st.emit(func(id string) (*eventstore.BaseEvent, error) {
			return eventstore.NewAssetFailed(id, eventstore.AssetFailedPayload(failure))
		})
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(failed) > 0 {
		return warning(StageResolve, fmt.Errorf("%d of %d assets failed", len(failed), len(st.result.Outcomes)))
	}
	return nil
}

func stageVerifyLinks(_ context.Context, st *state) error {
	res := linkverify.Verify(st.result)
	r := st.report
	r.LinksChecked = res.Checked
	r.BrokenLinks = res.Broken
	st.recorder.AddBrokenLinks(len(res.Broken))
	if !res.OK() {
		return warning(StageVerifyLinks, fmt.Errorf("%d broken internal link(s)", len(res.Broken)))
	}
	return nil
}

func stageWrite(_ context.Context, st *state) error {
	dir := st.cfg.Output.Directory
	if st.req.OutputDir != "" {
		dir = st.req.OutputDir
	}
	w := &output.Writer{Dir: dir, Clean: st.cfg.Output.Clean}
	staging, err := w.Begin()
	if err != nil {
		return fatal(StageWrite, ferrors.FileSystemError("failed to prepare output").WithCause(err).Build())
	}
	st.staging = staging

	n, err := staging.WriteReport(st.result)
	st.report.Written = n
	if err != nil {
		return fatal(StageWrite, ferrors.FileSystemError("failed to write output").WithCause(err).Build())
	}
	slog.Info("Assets written", logfields.BuildID(st.report.BuildID), logfields.Count(n), logfields.Path(dir))
	return nil
}
