package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sydlexius/driftwood/internal/task"
)

func (r *Router) handleListTasks(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.tasks.List())
}

func (r *Router) handleGetTask(w http.ResponseWriter, req *http.Request) {
	tr := r.tasks.Get(req.PathValue("id"))
	if tr == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, tr.Snapshot())
}

func (r *Router) handleCancelTask(w http.ResponseWriter, req *http.Request) {
	tr := r.tasks.Get(req.PathValue("id"))
	if tr == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if tr.Snapshot().Status.Terminal() {
		writeError(w, http.StatusConflict, "task already finished")
		return
	}
	r.scheduler.RequestCancel(tr.ID())
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancellation requested"})
}

// handleStreamTask pushes progress snapshots over server-sent events until
// the task finishes or the client disconnects.
func (r *Router) handleStreamTask(w http.ResponseWriter, req *http.Request) {
	tr := r.tasks.Get(req.PathValue("id"))
	if tr == nil {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	// Buffered so a slow client never blocks the tracker's notify path.
	updates := make(chan task.Progress, 64)
	unsubscribe := tr.Subscribe(func(p task.Progress) {
		select {
		case updates <- p:
		default:
		}
	})
	defer unsubscribe()

	// done reports whether streaming should end: on write failure or once
	// the terminal snapshot has gone out.
	done := func(p task.Progress) bool {
		data, err := json.Marshal(p)
		if err != nil {
			return true
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return true
		}
		flusher.Flush()
		return p.Status.Terminal()
	}

	// Current state first, then every change.
	if done(tr.Snapshot()) {
		return
	}
	for {
		select {
		case <-req.Context().Done():
			return
		case p := <-updates:
			if done(p) {
				return
			}
		}
	}
}
