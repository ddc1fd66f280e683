package build

import (
	"encoding/json"
	"fmt"
	"time"

	"git.home.luguber.info/inful/mobsite/internal/linkverify"
)

// Outcome is the final result of a build.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomePartial  Outcome = "partial"  // some assets failed or links broke; output promoted
	OutcomeFailed   Outcome = "failed"   // asset failures under fail_on_asset_error; output not promoted
	OutcomeAborted  Outcome = "aborted"  // a fatal stage stopped the build
	OutcomeCanceled Outcome = "canceled" // context canceled
)

// Report files written to the output root.
const (
	ReportJSON = "build-report.json"
	ReportText = "build-report.txt"
)

// AssetFailure is one asset that produced no content.
type AssetFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Report captures what one build did.
type Report struct {
	SchemaVersion   int                      `json:"schema_version"`
	BuildID         string                   `json:"build_id"`
	Trigger         string                   `json:"trigger,omitempty"`
	Version         string                   `json:"version"`
	Start           time.Time                `json:"start"`
	End             time.Time                `json:"end"`
	Outcome         Outcome                  `json:"outcome"`
	Records         int                      `json:"records"`
	Commit          string                   `json:"commit,omitempty"`
	Fingerprints    map[string]string        `json:"fingerprints,omitempty"` // record id -> fingerprint
	Assets          int                      `json:"assets"`
	Resolved        int                      `json:"resolved"`
	FailedAssets    []AssetFailure           `json:"failed_assets,omitempty"`
	LinksChecked    int                      `json:"links_checked"`
	BrokenLinks     []linkverify.BrokenLink  `json:"broken_links,omitempty"`
	Written         int                      `json:"written"`
	Promoted        bool                     `json:"promoted"`
	StagingDir      string                   `json:"staging_dir,omitempty"` // kept for inspection when not promoted
	StageDurations  map[string]time.Duration `json:"stage_durations"`
	StageErrorKinds map[string]string        `json:"stage_error_kinds,omitempty"`
	Errors          []string                 `json:"errors"`
	Warnings        []string                 `json:"warnings"`
}

func newReport(buildID, trigger, version string) *Report {
	return &Report{
		SchemaVersion:   1,
		BuildID:         buildID,
		Trigger:         trigger,
		Version:         version,
		Start:           time.Now(),
		StageDurations:  make(map[string]time.Duration),
		StageErrorKinds: make(map[string]string),
		Errors:          []string{},
		Warnings:        []string{},
	}
}

// Duration returns the wall time of the build.
func (r *Report) Duration() time.Duration { return r.End.Sub(r.Start) }

// Summary returns a human-readable single-line summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("build=%s records=%d assets=%d resolved=%d failed=%d broken_links=%d written=%d duration=%s outcome=%s",
		r.BuildID, r.Records, r.Assets, r.Resolved, len(r.FailedAssets), len(r.BrokenLinks), r.Written,
		r.Duration().Truncate(time.Millisecond), r.Outcome)
}

// JSON renders the machine readable report.
func (r *Report) JSON() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal report json: %w", err)
	}
	return data, nil
}
