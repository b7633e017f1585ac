package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/caabsu/outlight-img2img/internal/domain"

	"github.com/go-chi/chi/v5"
)

const heartbeatInterval = 15 * time.Second

// RunEvents streams run snapshots over SSE. The current snapshot is sent
// first, then one event per progress update until the run reaches a terminal
// status or the client disconnects.
func (a *App) RunEvents(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if runID == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "run_id required")
		return
	}
	view, err := a.Runs.Get(runID)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "run not found")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// The server write timeout would cut the stream mid-run.
	rc := http.NewResponseController(w)
	_ = rc.SetWriteDeadline(time.Time{})
	updates, unsubscribe := a.Hub.Subscribe(runID)
	defer unsubscribe()

	send := func(v domain.RunView) bool {
		data, err := json.Marshal(runPayload(v))
		if err != nil {
			return false
		}
		if _, err := fmt.Fprintf(w, "event: run\ndata: %s\n\n", data); err != nil {
			return false
		}
		return rc.Flush() == nil
	}

	if !send(view) || view.Status.IsTerminal() {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			if rc.Flush() != nil {
				return
			}
		case v, ok := <-updates:
			if !ok {
				return
			}
			if !send(v) || v.Status.IsTerminal() {
				return
			}
		}
	}
}
