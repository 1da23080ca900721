package api

import "net/http"

func (r *Router) handleStartScan(w http.ResponseWriter, req *http.Request) {
	tr, err := r.scanner.StartScan(req.Context())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, tr.Snapshot())
}

func (r *Router) handleListScans(w http.ResponseWriter, req *http.Request) {
	recs, err := r.scanner.Store().List(req.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing scans failed")
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (r *Router) handleGetScan(w http.ResponseWriter, req *http.Request) {
	rec, err := r.scanner.Store().Get(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "getting scan failed")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "scan not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
