package eventstore

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"
)

// Build statuses. Completed builds carry their outcome (success, partial,
// failed) as status instead.
const (
	StatusRunning = "running"
	StatusAborted = "aborted"
)

// BuildSummary is the read model of one build.
type BuildSummary struct {
	BuildID      string        `json:"build_id"`
	Trigger      string        `json:"trigger,omitempty"`
	Status       string        `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	CompletedAt  *time.Time    `json:"completed_at,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	Records      int           `json:"records"`
	Commit       string        `json:"commit,omitempty"`
	Assets       int           `json:"assets"`
	FailedAssets []string      `json:"failed_assets,omitempty"`
	Written      int           `json:"written"`
	BrokenLinks  int           `json:"broken_links"`
	ErrorStage   string        `json:"error_stage,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
}

// BuildHistoryProjection folds the event log into build summaries.
type BuildHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	builds   map[string]*BuildSummary
	history  []*BuildSummary // finished builds, newest first
	maxSize  int
	lastSync time.Time
}

// NewBuildHistoryProjection creates a projection backed by store that keeps
// at most maxHistorySize finished builds.
func NewBuildHistoryProjection(store Store, maxHistorySize int) *BuildHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &BuildHistoryProjection{
		store:   store,
		builds:  make(map[string]*BuildSummary),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from every stored event.
func (p *BuildHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.builds = make(map[string]*BuildSummary)
	p.history = nil
	for _, event := range events {
		p.applyEventLocked(event)
	}
	slices.SortStableFunc(p.history, func(a, b *BuildSummary) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	p.lastSync = time.Now()
	return nil
}

// Apply folds a single event into the projection.
func (p *BuildHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *BuildHistoryProjection) applyEventLocked(event Event) {
	buildID := event.BuildID()
	if buildID == "" {
		return
	}

	summary, exists := p.builds[buildID]
	if !exists {
		summary = &BuildSummary{BuildID: buildID, Status: StatusRunning, StartedAt: event.Timestamp()}
		p.builds[buildID] = summary
	}

	switch event.Type() {
	case TypeBuildStarted:
		var payload BuildStartedPayload
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Trigger = payload.Trigger
		}
		summary.StartedAt = event.Timestamp()

	case TypeRecordsFetched:
		var payload RecordsFetchedPayload
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Records = payload.Count
			summary.Commit = payload.Commit
		}

	case TypeAssetFailed:
		var payload AssetFailedPayload
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.FailedAssets = append(summary.FailedAssets, payload.Path)
		}

	case TypeBuildCompleted:
		var payload BuildCompletedPayload
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Status = payload.Outcome
			summary.Assets = payload.Assets
			summary.Written = payload.Written
			summary.BrokenLinks = payload.BrokenLinks
		}
		p.finishLocked(summary, event.Timestamp())

	case TypeBuildFailed:
		var payload BuildFailedPayload
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.ErrorStage = payload.Stage
			summary.ErrorMessage = payload.Error
		}
		summary.Status = StatusAborted
		p.finishLocked(summary, event.Timestamp())
	}
}

func (p *BuildHistoryProjection) finishLocked(summary *BuildSummary, at time.Time) {
	summary.CompletedAt = &at
	summary.Duration = at.Sub(summary.StartedAt)

	if !slices.ContainsFunc(p.history, func(h *BuildSummary) bool { return h.BuildID == summary.BuildID }) {
		p.history = append([]*BuildSummary{summary}, p.history...)
	}
	if len(p.history) > p.maxSize {
		for _, dropped := range p.history[p.maxSize:] {
			delete(p.builds, dropped.BuildID)
		}
		p.history = p.history[:p.maxSize]
	}
}

// History returns up to limit finished builds, newest first. limit <= 0 returns all.
func (p *BuildHistoryProjection) History(limit int) []BuildSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	n := len(p.history)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]BuildSummary, n)
	for i := range n {
		out[i] = *p.history[i]
	}
	return out
}

// GetBuild returns a copy of the summary of one build.
func (p *BuildHistoryProjection) GetBuild(buildID string) (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, ok := p.builds[buildID]
	if !ok {
		return BuildSummary{}, false
	}
	return *summary, true
}

// LastCompleted returns the most recently finished build.
func (p *BuildHistoryProjection) LastCompleted() (BuildSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.history) == 0 {
		return BuildSummary{}, false
	}
	return *p.history[0], true
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *BuildHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
