package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/mobsite/internal/ssg"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveStageDuration("resolve", 150*time.Millisecond)
	pr.IncStageResult("resolve", ResultSuccess)
	pr.ObserveBuildDuration(500 * time.Millisecond)
	pr.IncBuildOutcome("partial")
	pr.SetRecords(4)
	pr.AddBrokenLinks(2)
	pr.IncFetchRetry()

	obs := AssetObserver{Recorder: pr}
	obs.ObserveAsset(ssg.MustLogicalPath("index.html"), ssg.SourceTargets, time.Millisecond, nil)
	obs.ObserveAsset(ssg.MustLogicalPath("index.css"), ssg.SourceBytes, time.Millisecond, errors.New("missing"))

	assert.InDelta(t, 1, testutil.ToFloat64(pr.stageResults.WithLabelValues("resolve", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.buildOutcome.WithLabelValues("partial")), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(pr.records), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(pr.brokenLinks), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.fetchRetries), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.assetResults.WithLabelValues(ssg.SourceTargets.String(), "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(pr.assetResults.WithLabelValues(ssg.SourceBytes.String(), "failed")), 0)
	assert.Positive(t, testutil.ToFloat64(pr.lastBuild))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)
}

func TestNoopRecorderSatisfiesObserver(t *testing.T) {
	var obs ssg.Observer = AssetObserver{Recorder: NoopRecorder{}}
	obs.ObserveAsset(ssg.MustLogicalPath("a.html"), ssg.SourceBytes, 0, nil)
}

func TestExport(t *testing.T) {
	reg := NewRegistry()
	NewPrometheusRecorder(reg).SetRecords(7)

	path := filepath.Join(t.TempDir(), "mobsite.prom")
	require.NoError(t, WriteTextfile(path, reg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "mobsite_records 7")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mobsite_records 7")
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
