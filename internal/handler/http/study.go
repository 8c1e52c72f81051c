package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/service"
	"github.com/windfall/poplingo_service/pkg/response"
)

// StudyHandler handles flashcard sessions.
type StudyHandler struct {
	log   zerolog.Logger
	study *service.StudyService
}

// NewStudyHandler creates a new StudyHandler.
func NewStudyHandler(log zerolog.Logger, study *service.StudyService) *StudyHandler {
	return &StudyHandler{
		log:   log,
		study: study,
	}
}

// Start handles POST /api/v1/study/sessions
func (h *StudyHandler) Start(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	card, err := h.study.Start(r.Context(), userID)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	response.Created(w, card)
}

// Current handles GET /api/v1/study/sessions/{id}
func (h *StudyHandler) Current(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.study.Current)
}

// Next handles POST /api/v1/study/sessions/{id}/next
func (h *StudyHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.study.Next)
}

// Prev handles POST /api/v1/study/sessions/{id}/prev
func (h *StudyHandler) Prev(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.study.Prev)
}

// Flip handles POST /api/v1/study/sessions/{id}/flip
func (h *StudyHandler) Flip(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.study.Flip)
}

// End handles DELETE /api/v1/study/sessions/{id}
func (h *StudyHandler) End(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.study.End(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		handleError(h.log, w, err)
		return
	}

	response.NoContent(w)
}

func (h *StudyHandler) move(
	w http.ResponseWriter,
	r *http.Request,
	fn func(ctx context.Context, userID, sessionID string) (*service.StudyCard, error),
) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	card, err := fn(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	response.JSON(w, http.StatusOK, card)
}
