package eventstore

import (
	"encoding/json"
	"time"

	"git.home.luguber.info/inful/mobsite/internal/foundation/errors"
)

// Event types.
const (
	TypeBuildStarted   = "BuildStarted"
	TypeRecordsFetched = "RecordsFetched"
	TypeAssetFailed    = "AssetFailed"
	TypeBuildCompleted = "BuildCompleted"
	TypeBuildFailed    = "BuildFailed"
)

// BuildStartedPayload describes what triggered a build.
type BuildStartedPayload struct {
	Trigger    string `json:"trigger"` // cli, schedule, config_reload
	ConfigPath string `json:"config_path,omitempty"`
	Version    string `json:"version,omitempty"`
}

// RecordsFetchedPayload lists the fetched mob records and their fingerprints.
type RecordsFetchedPayload struct {
	Count        int               `json:"count"`
	Commit       string            `json:"commit,omitempty"`
	Fingerprints map[string]string `json:"fingerprints,omitempty"` // record id -> fingerprint
}

// AssetFailedPayload reports one asset whose content could not be produced.
type AssetFailedPayload struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// BuildCompletedPayload summarizes a build that ran through resolution.
type BuildCompletedPayload struct {
	Outcome     string `json:"outcome"` // success, partial, failed
	Assets      int    `json:"assets"`
	Failed      int    `json:"failed"`
	Written     int    `json:"written"`
	BrokenLinks int    `json:"broken_links"`
	DurationMS  int64  `json:"duration_ms"`
}

// BuildFailedPayload reports a build aborted before completion.
type BuildFailedPayload struct {
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// NewBuildStarted creates a BuildStarted event.
func NewBuildStarted(buildID string, p BuildStartedPayload) (*BaseEvent, error) {
	return newEvent(buildID, TypeBuildStarted, p)
}

// NewRecordsFetched creates a RecordsFetched event.
func NewRecordsFetched(buildID string, p RecordsFetchedPayload) (*BaseEvent, error) {
	return newEvent(buildID, TypeRecordsFetched, p)
}

// NewAssetFailed creates an AssetFailed event.
func NewAssetFailed(buildID string, p AssetFailedPayload) (*BaseEvent, error) {
	return newEvent(buildID, TypeAssetFailed, p)
}

// NewBuildCompleted creates a BuildCompleted event.
func NewBuildCompleted(buildID string, p BuildCompletedPayload) (*BaseEvent, error) {
	return newEvent(buildID, TypeBuildCompleted, p)
}

// NewBuildFailed creates a BuildFailed event.
func NewBuildFailed(buildID string, p BuildFailedPayload) (*BaseEvent, error) {
	return newEvent(buildID, TypeBuildFailed, p)
}

func newEvent(buildID, eventType string, payload any) (*BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.EventStoreError("failed to marshal " + eventType + " payload").
			WithCause(err).
			WithContext("build_id", buildID).
			Build()
	}
	return &BaseEvent{
		EventBuildID:   buildID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}
