package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/repository"
	"github.com/windfall/poplingo_service/internal/service"
	"github.com/windfall/poplingo_service/pkg/response"
)

// NotebookHandler handles the user's saved entries.
type NotebookHandler struct {
	log      zerolog.Logger
	notebook *service.NotebookService
}

// NewNotebookHandler creates a new NotebookHandler.
func NewNotebookHandler(log zerolog.Logger, notebook *service.NotebookService) *NotebookHandler {
	return &NotebookHandler{
		log:      log,
		notebook: notebook,
	}
}

// ToggleResponse reports the entry's saved state after a toggle.
type ToggleResponse struct {
	Saved bool              `json:"saved"`
	Entry *repository.Entry `json:"entry"`
}

// List handles GET /api/v1/notebook
func (h *NotebookHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	entries, err := h.notebook.List(r.Context(), userID)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	response.JSONWithMeta(w, http.StatusOK, entries, &response.Meta{Total: len(entries)})
}

// Save handles POST /api/v1/notebook
func (h *NotebookHandler) Save(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var entry repository.Entry
	if err := decode(w, r, nil, &entry); err != nil {
		handleError(h.log, w, err)
		return
	}

	saved, err := h.notebook.Save(r.Context(), userID, &entry)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	response.Created(w, saved)
}

// Toggle handles POST /api/v1/notebook/toggle
func (h *NotebookHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var entry repository.Entry
	if err := decode(w, r, nil, &entry); err != nil {
		handleError(h.log, w, err)
		return
	}

	toggled, saved, err := h.notebook.Toggle(r.Context(), userID, &entry)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	response.JSON(w, http.StatusOK, ToggleResponse{Saved: saved, Entry: toggled})
}

// Get handles GET /api/v1/notebook/{id}
func (h *NotebookHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	entry, err := h.notebook.Get(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	response.JSON(w, http.StatusOK, entry)
}

// Delete handles DELETE /api/v1/notebook/{id}
func (h *NotebookHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.notebook.Delete(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleError(h.log, w, err)
		return
	}

	response.NoContent(w)
}
