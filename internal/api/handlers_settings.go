package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sydlexius/driftwood/internal/event"
	"github.com/sydlexius/driftwood/internal/logging"
	"github.com/sydlexius/driftwood/internal/settings"
)

func (r *Router) handleGetSettings(w http.ResponseWriter, req *http.Request) {
	opts := r.logManager.Options()
	writeJSON(w, http.StatusOK, map[string]any{
		"tasks": map[string]any{
			"max_concurrent": r.scheduler.Ceiling(),
		},
		"logging": map[string]any{
			"level":  opts.Level,
			"format": opts.Format,
		},
	})
}

// handleSetTaskSettings changes the concurrency ceiling, persisting it so
// the value survives restarts. Running tasks are never preempted by a
// lower ceiling.
func (r *Router) handleSetTaskSettings(w http.ResponseWriter, req *http.Request) {
	var body struct {
		MaxConcurrent int `json:"max_concurrent"`
	}
	if !decodeJSON(w, req, &body) {
		return
	}
	if err := r.scheduler.SetCeiling(body.MaxConcurrent); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := r.settings.SetInt(req.Context(), settings.KeyTaskCeiling, body.MaxConcurrent); err != nil {
		r.logger.Error("persisting task ceiling", "error", err)
		writeError(w, http.StatusInternalServerError, "persisting setting failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"max_concurrent": body.MaxConcurrent})
}

func (r *Router) handleSetLogSettings(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Level  string `json:"level"`
		Format string `json:"format"`
	}
	if !decodeJSON(w, req, &body) {
		return
	}
	if body.Level != "" {
		if !logging.ValidLevel(body.Level) {
			writeError(w, http.StatusBadRequest, "invalid log level")
			return
		}
		if err := r.logManager.SetLevel(body.Level); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := r.settings.Set(req.Context(), settings.KeyLogLevel, body.Level); err != nil {
			writeError(w, http.StatusInternalServerError, "persisting setting failed")
			return
		}
	}
	if body.Format != "" {
		if !logging.ValidFormat(body.Format) {
			writeError(w, http.StatusBadRequest, "invalid log format")
			return
		}
		if err := r.logManager.SetFormat(body.Format); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := r.settings.Set(req.Context(), settings.KeyLogFormat, body.Format); err != nil {
			writeError(w, http.StatusInternalServerError, "persisting setting failed")
			return
		}
	}
	opts := r.logManager.Options()
	writeJSON(w, http.StatusOK, map[string]string{"level": opts.Level, "format": opts.Format})
}

func (r *Router) handleRecentEvents(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.bus.Recent())
}

// handleStreamEvents pushes bus events over server-sent events until the
// client disconnects.
func (r *Router) handleStreamEvents(w http.ResponseWriter, req *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Buffered so a slow client never blocks dispatch.
	updates := make(chan event.Event, 64)
	unsubscribe := r.bus.SubscribeAll(func(e event.Event) {
		select {
		case updates <- e:
		default:
		}
	})
	defer unsubscribe()

	for {
		select {
		case <-req.Context().Done():
			return
		case e := <-updates:
			data, err := json.Marshal(e)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
