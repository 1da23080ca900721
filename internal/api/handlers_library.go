package api

import (
	"net/http"
	"os"

	"github.com/sydlexius/driftwood/internal/library"
)

func (r *Router) handleListLibraries(w http.ResponseWriter, req *http.Request) {
	libs, err := r.libraries.List(req.Context())
	if err != nil {
		r.logger.Error("listing libraries", "error", err)
		writeError(w, http.StatusInternalServerError, "listing libraries failed")
		return
	}
	writeJSON(w, http.StatusOK, libs)
}

func (r *Router) handleCreateLibrary(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	if !decodeJSON(w, req, &body) {
		return
	}
	if body.Name == "" || body.Path == "" {
		writeError(w, http.StatusBadRequest, "name and path are required")
		return
	}
	if info, err := os.Stat(body.Path); err != nil || !info.IsDir() {
		writeError(w, http.StatusBadRequest, "path is not a readable directory")
		return
	}

	lib := &library.Library{Name: body.Name, Path: body.Path}
	if err := r.libraries.Create(req.Context(), lib); err != nil {
		r.logger.Error("creating library", "error", err)
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, lib)
}

func (r *Router) handleGetLibrary(w http.ResponseWriter, req *http.Request) {
	lib, err := r.libraries.GetByID(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "getting library failed")
		return
	}
	if lib == nil {
		writeError(w, http.StatusNotFound, "library not found")
		return
	}
	writeJSON(w, http.StatusOK, lib)
}

func (r *Router) handleUpdateLibrary(w http.ResponseWriter, req *http.Request) {
	lib, err := r.libraries.GetByID(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "getting library failed")
		return
	}
	if lib == nil {
		writeError(w, http.StatusNotFound, "library not found")
		return
	}

	var body struct {
		Name *string `json:"name"`
		Path *string `json:"path"`
	}
	if !decodeJSON(w, req, &body) {
		return
	}
	if body.Name != nil {
		lib.Name = *body.Name
	}
	if body.Path != nil {
		lib.Path = *body.Path
	}
	if err := r.libraries.Update(req.Context(), lib); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, lib)
}

func (r *Router) handleDeleteLibrary(w http.ResponseWriter, req *http.Request) {
	if err := r.libraries.Delete(req.Context(), req.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleScanLibrary(w http.ResponseWriter, req *http.Request) {
	tr, err := r.scanner.StartLibraryScan(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, tr.Snapshot())
}
