package api

import (
	"net/http"

	"github.com/sydlexius/driftwood/internal/backup"
)

func (r *Router) handleListBackups(w http.ResponseWriter, req *http.Request) {
	snaps, err := r.backup.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing backups failed")
		return
	}
	if snaps == nil {
		snaps = []backup.Snapshot{}
	}
	writeJSON(w, http.StatusOK, snaps)
}

func (r *Router) handleCreateBackup(w http.ResponseWriter, req *http.Request) {
	snap, err := r.backup.Snapshot(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "creating backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

func (r *Router) handleDeleteBackup(w http.ResponseWriter, req *http.Request) {
	if err := r.backup.Delete(req.PathValue("filename")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleMaintenanceStatus(w http.ResponseWriter, req *http.Request) {
	st, err := r.maintenance.Status(req.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "reading maintenance status failed")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (r *Router) handleOptimize(w http.ResponseWriter, req *http.Request) {
	if err := r.maintenance.Optimize(req.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "optimize failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleVacuum(w http.ResponseWriter, req *http.Request) {
	if err := r.maintenance.Vacuum(req.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "vacuum failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
