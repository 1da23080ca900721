package api

import "net/http"

func (r *Router) handleImportMetadata(w http.ResponseWriter, req *http.Request) {
	tr, err := r.metadata.ImportShow(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, tr.Snapshot())
}

func (r *Router) handleBulkMatch(w http.ResponseWriter, req *http.Request) {
	tr, err := r.metadata.BulkMatch(req.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, tr.Snapshot())
}

func (r *Router) handleBulkRefresh(w http.ResponseWriter, req *http.Request) {
	tr, err := r.metadata.BulkRefresh(req.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, tr.Snapshot())
}

func (r *Router) handleRefreshMissing(w http.ResponseWriter, req *http.Request) {
	tr, err := r.metadata.RefreshMissing(req.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, tr.Snapshot())
}

func (r *Router) handleAnalyzeAll(w http.ResponseWriter, req *http.Request) {
	tr, err := r.analysis.AnalyzeAll(req.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, tr.Snapshot())
}
