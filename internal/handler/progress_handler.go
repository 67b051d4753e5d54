package handler

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"ebook-library/internal/domain"
)

// ProgressHandler serves saved positions, reading history and statistics.
type ProgressHandler struct {
	progress domain.ProgressService
	logger   domain.Logger
}

func NewProgressHandler(progress domain.ProgressService, logger domain.Logger) *ProgressHandler {
	return &ProgressHandler{
		progress: progress,
		logger:   logger,
	}
}

type saveProgressRequest struct {
	Progress    float64 `json:"progress"`
	CurrentPage int     `json:"current_page" validate:"gte=0"`
	TotalPages  int     `json:"total_pages" validate:"gte=0"`
}

// GetProgress returns the saved position, or the start of the book when
// nothing was saved yet.
func (h *ProgressHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	user, token, ok := caller(w, r)
	if !ok {
		return
	}
	bookID := mux.Vars(r)["bookId"]
	p, err := h.progress.GetProgress(r.Context(), user.ID, bookID, token)
	if err != nil {
		handleError(w, h.logger, "Failed to get progress", err)
		return
	}
	if p == nil {
		p = domain.DefaultProgress(user.ID, bookID)
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProgressHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	user, token, ok := caller(w, r)
	if !ok {
		return
	}
	var req saveProgressRequest
	if err := decodeJSON(r, &req); err != nil {
		handleError(w, h.logger, "Invalid progress update", err)
		return
	}

	p, err := h.progress.SaveProgress(r.Context(), domain.ProgressUpdate{
		UserID:      user.ID,
		BookID:      mux.Vars(r)["bookId"],
		Progress:    req.Progress,
		CurrentPage: req.CurrentPage,
		TotalPages:  req.TotalPages,
	}, token)
	if err != nil {
		handleError(w, h.logger, "Failed to save progress", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProgressHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	user, token, ok := caller(w, r)
	if !ok {
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	items, err := h.progress.ListHistory(r.Context(), user.ID, limit, token)
	if err != nil {
		handleError(w, h.logger, "Failed to list history", err)
		return
	}
	if items == nil {
		items = []*domain.HistoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ProgressHandler) RemoveFromHistory(w http.ResponseWriter, r *http.Request) {
	user, token, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.progress.RemoveFromHistory(r.Context(), user.ID, mux.Vars(r)["bookId"], token); err != nil {
		handleError(w, h.logger, "Failed to remove history entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProgressHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	user, token, ok := caller(w, r)
	if !ok {
		return
	}
	if err := h.progress.ClearHistory(r.Context(), user.ID, token); err != nil {
		handleError(w, h.logger, "Failed to clear history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProgressHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	user, token, ok := caller(w, r)
	if !ok {
		return
	}
	stats, err := h.progress.GetUserStats(r.Context(), user.ID, token)
	if err != nil {
		handleError(w, h.logger, "Failed to compute stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
