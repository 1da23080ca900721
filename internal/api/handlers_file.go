package api

import (
	"net/http"

	"github.com/sydlexius/driftwood/internal/playback"
)

func (r *Router) handleGetFile(w http.ResponseWriter, req *http.Request) {
	mf, err := r.shows.GetFile(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "getting file failed")
		return
	}
	if mf == nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, mf)
}

func (r *Router) handleSetFileQuality(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if !decodeJSON(w, req, &body) {
		return
	}
	if err := r.shows.UpdateFileQuality(req.Context(), req.PathValue("id"), body.Status); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": body.Status})
}

func (r *Router) handleAnalyzeFile(w http.ResponseWriter, req *http.Request) {
	tr, err := r.analysis.AnalyzeFile(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, tr.Snapshot())
}

func (r *Router) handleListPlaybackTests(w http.ResponseWriter, req *http.Request) {
	tests, err := r.playback.ListByFile(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing playback tests failed")
		return
	}
	writeJSON(w, http.StatusOK, tests)
}

func (r *Router) handleRecordPlaybackTest(w http.ResponseWriter, req *http.Request) {
	mf, err := r.shows.GetFile(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "getting file failed")
		return
	}
	if mf == nil {
		writeError(w, http.StatusNotFound, "file not found")
		return
	}

	var body struct {
		Player string `json:"player"`
		Result string `json:"result"`
		Notes  string `json:"notes"`
	}
	if !decodeJSON(w, req, &body) {
		return
	}
	pt := &playback.Test{FileID: mf.ID, Player: body.Player, Result: body.Result, Notes: body.Notes}
	if err := r.playback.Record(req.Context(), pt); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, pt)
}

func (r *Router) handleDeletePlaybackTest(w http.ResponseWriter, req *http.Request) {
	if err := r.playback.Delete(req.Context(), req.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
