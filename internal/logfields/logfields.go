package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyStage      = "stage"
	KeyDurationMS = "duration_ms"
	KeyAsset      = "asset"
	KeyFinalPath  = "final_path"
	KeyRecordID   = "record_id"
	KeyCount      = "count"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyName       = "name"
	KeyScheduleID = "schedule_id"
	KeyOutcome    = "outcome"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Asset(p string) slog.Attr        { return slog.String(KeyAsset, p) }
func FinalPath(p string) slog.Attr    { return slog.String(KeyFinalPath, p) }
func RecordID(id string) slog.Attr    { return slog.String(KeyRecordID, id) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Name(n string) slog.Attr         { return slog.String(KeyName, n) }
func ScheduleID(id string) slog.Attr  { return slog.String(KeyScheduleID, id) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }

func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
