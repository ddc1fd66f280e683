package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"git.home.luguber.info/inful/mobsite/internal/build"
	"git.home.luguber.info/inful/mobsite/internal/logfields"
	"git.home.luguber.info/inful/mobsite/internal/metrics"
)

const defaultHistoryLimit = 20

// Handler returns the daemon HTTP endpoints:
//
//	GET  /healthz   daemon and last build state
//	GET  /history   recent builds from the event store (?limit=n)
//	POST /build     start a build now; 409 while one is running
//	GET  /metrics   Prometheus exposition
func (d *Daemon) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", d.handleHealth)
	mux.HandleFunc("GET /history", d.handleHistory)
	mux.HandleFunc("POST /build", d.handleBuild)
	if d.opts.Registry != nil {
		mux.Handle("GET /metrics", metrics.HTTPHandler(d.opts.Registry))
	}
	return mux
}

func (d *Daemon) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := d.Health()
	code := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func (d *Daemon) handleHistory(w http.ResponseWriter, r *http.Request) {
	if d.opts.Projection == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "build history disabled"})
		return
	}
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, d.opts.Projection.History(limit))
}

func (d *Daemon) handleBuild(w http.ResponseWriter, r *http.Request) {
	release, err := d.acquire()
	switch {
	case errors.Is(err, ErrBuildRunning):
		writeJSON(w, http.StatusConflict, map[string]string{"error": ErrBuildRunning.Message()})
		return
	case err != nil:
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": ErrStopping.Message()})
		return
	}
	ctx := context.WithoutCancel(r.Context())
	go func() {
		defer release()
		if _, err := d.runBuild(ctx, build.TriggerHTTP); err != nil {
			slog.Error("Requested build failed", logfields.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "build started"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("Failed to write response", logfields.Error(err))
	}
}
