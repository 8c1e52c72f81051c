package http

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/repository"
	"github.com/windfall/poplingo_service/internal/service"
	"github.com/windfall/poplingo_service/internal/validate"
	"github.com/windfall/poplingo_service/pkg/response"
)

// LookupHandler handles dictionary lookups.
type LookupHandler struct {
	log        zerolog.Logger
	validate   *validate.Validator
	dictionary *service.DictionaryService
	notebook   *service.NotebookService
}

// NewLookupHandler creates a new LookupHandler.
func NewLookupHandler(
	log zerolog.Logger,
	v *validate.Validator,
	dictionary *service.DictionaryService,
	notebook *service.NotebookService,
) *LookupHandler {
	return &LookupHandler{
		log:        log,
		validate:   v,
		dictionary: dictionary,
		notebook:   notebook,
	}
}

// LookupRequest is the body of POST /api/v1/lookup.
type LookupRequest struct {
	Term       string `json:"term" validate:"required"`
	NativeLang string `json:"native_lang" validate:"required,language"`
	TargetLang string `json:"target_lang" validate:"required,language"`
}

// LookupResponse carries the entry and whether the user already saved it.
type LookupResponse struct {
	Entry *repository.Entry `json:"entry"`
	Saved bool              `json:"saved"`
}

// Lookup handles POST /api/v1/lookup
func (h *LookupHandler) Lookup(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req LookupRequest
	if err := decode(w, r, h.validate, &req); err != nil {
		handleError(h.log, w, err)
		return
	}
	native, err := service.ParseLanguage(req.NativeLang)
	if err != nil {
		handleError(h.log, w, err)
		return
	}
	target, err := service.ParseLanguage(req.TargetLang)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	entry, err := h.dictionary.Lookup(r.Context(), req.Term, native, target)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	saved, err := h.notebook.IsSaved(r.Context(), userID, entry.Term)
	if err != nil {
		h.log.Warn().Err(err).Str("term", entry.Term).Msg("Failed to check saved state")
	}

	response.JSON(w, http.StatusOK, LookupResponse{Entry: entry, Saved: saved})
}
