package api

import (
	"net/http"

	"github.com/sydlexius/driftwood/internal/show"
)

func (r *Router) handleListShows(w http.ResponseWriter, req *http.Request) {
	shows, err := r.shows.ListShows(req.Context())
	if err != nil {
		r.logger.Error("listing shows", "error", err)
		writeError(w, http.StatusInternalServerError, "listing shows failed")
		return
	}
	writeJSON(w, http.StatusOK, shows)
}

func (r *Router) handleGetShow(w http.ResponseWriter, req *http.Request) {
	sh, err := r.shows.GetShow(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "getting show failed")
		return
	}
	if sh == nil {
		writeError(w, http.StatusNotFound, "show not found")
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

// handleUpdateShow patches the user-editable show fields. Scan-owned
// identity fields (folder name, path) are not accepted here.
func (r *Router) handleUpdateShow(w http.ResponseWriter, req *http.Request) {
	sh, err := r.shows.GetShow(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "getting show failed")
		return
	}
	if sh == nil {
		writeError(w, http.StatusNotFound, "show not found")
		return
	}

	var body struct {
		Title         *string `json:"title"`
		Year          *int    `json:"year"`
		MonitorStatus *string `json:"monitor_status"`
		QualityRating *int    `json:"quality_rating"`
		Notes         *string `json:"notes"`
	}
	if !decodeJSON(w, req, &body) {
		return
	}
	if body.Title != nil {
		sh.Title = *body.Title
		sh.SortTitle = show.SortTitle(*body.Title)
	}
	if body.Year != nil {
		sh.Year = body.Year
	}
	if body.MonitorStatus != nil {
		switch *body.MonitorStatus {
		case show.MonitorWanted, show.MonitorUnmonitored:
			sh.MonitorStatus = *body.MonitorStatus
		default:
			writeError(w, http.StatusBadRequest, "invalid monitor status")
			return
		}
	}
	if body.QualityRating != nil {
		sh.QualityRating = body.QualityRating
	}
	if body.Notes != nil {
		sh.Notes = *body.Notes
	}

	if err := r.shows.UpdateShow(req.Context(), sh); err != nil {
		writeError(w, http.StatusInternalServerError, "updating show failed")
		return
	}
	writeJSON(w, http.StatusOK, sh)
}

func (r *Router) handleDeleteShow(w http.ResponseWriter, req *http.Request) {
	if err := r.shows.DeleteShow(req.Context(), req.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Router) handleListSeasons(w http.ResponseWriter, req *http.Request) {
	seasons, err := r.shows.ListSeasons(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing seasons failed")
		return
	}
	writeJSON(w, http.StatusOK, seasons)
}

func (r *Router) handleListEpisodes(w http.ResponseWriter, req *http.Request) {
	eps, err := r.shows.ListEpisodes(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing episodes failed")
		return
	}
	writeJSON(w, http.StatusOK, eps)
}

func (r *Router) handleGetEpisode(w http.ResponseWriter, req *http.Request) {
	ep, err := r.shows.GetEpisode(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "getting episode failed")
		return
	}
	if ep == nil {
		writeError(w, http.StatusNotFound, "episode not found")
		return
	}
	writeJSON(w, http.StatusOK, ep)
}

func (r *Router) handleListEpisodeFiles(w http.ResponseWriter, req *http.Request) {
	files, err := r.shows.ListFilesByEpisode(req.Context(), req.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "listing files failed")
		return
	}
	writeJSON(w, http.StatusOK, files)
}
