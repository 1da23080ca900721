package api

import (
	"net/http"

	"github.com/sydlexius/driftwood/internal/event"
	"github.com/sydlexius/driftwood/internal/issue"
)

func (r *Router) handleListIssues(w http.ResponseWriter, req *http.Request) {
	issues, err := r.issues.List(req.Context(), req.URL.Query().Get("status"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing issues failed")
		return
	}
	writeJSON(w, http.StatusOK, issues)
}

func (r *Router) handleCreateIssue(w http.ResponseWriter, req *http.Request) {
	var is issue.Issue
	if !decodeJSON(w, req, &is) {
		return
	}
	if err := r.issues.Create(req.Context(), &is); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	r.bus.Publish(event.IssueCreated, map[string]any{
		"issue_id": is.ID,
		"category": is.Category,
		"summary":  is.Summary,
	})
	writeJSON(w, http.StatusCreated, is)
}

func (r *Router) handleGetIssue(w http.ResponseWriter, req *http.Request) {
	is, err := r.issues.GetByID(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "getting issue failed")
		return
	}
	if is == nil {
		writeError(w, http.StatusNotFound, "issue not found")
		return
	}
	writeJSON(w, http.StatusOK, is)
}

func (r *Router) handleResolveIssue(w http.ResponseWriter, req *http.Request) {
	if err := r.issues.Resolve(req.Context(), req.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleDeleteIssue(w http.ResponseWriter, req *http.Request) {
	if err := r.issues.Delete(req.Context(), req.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
