package http

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/service"
	"github.com/windfall/poplingo_service/internal/validate"
	"github.com/windfall/poplingo_service/pkg/response"
)

// StoryHandler handles story generation.
type StoryHandler struct {
	log      zerolog.Logger
	validate *validate.Validator
	story    *service.StoryService
}

// NewStoryHandler creates a new StoryHandler.
func NewStoryHandler(log zerolog.Logger, v *validate.Validator, story *service.StoryService) *StoryHandler {
	return &StoryHandler{
		log:      log,
		validate: v,
		story:    story,
	}
}

// StoryRequest is the body of POST /api/v1/story. Terms default to the
// user's notebook.
type StoryRequest struct {
	NativeLang string   `json:"native_lang" validate:"required,language"`
	TargetLang string   `json:"target_lang" validate:"required,language"`
	Terms      []string `json:"terms" validate:"max=50,dive,max=200"`
}

// Languages parses both language fields.
func (req StoryRequest) Languages() (native, target service.Language, err error) {
	if native, err = service.ParseLanguage(req.NativeLang); err != nil {
		return "", "", err
	}
	if target, err = service.ParseLanguage(req.TargetLang); err != nil {
		return "", "", err
	}
	return native, target, nil
}

// Generate handles POST /api/v1/story
func (h *StoryHandler) Generate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req StoryRequest
	if err := decode(w, r, h.validate, &req); err != nil {
		handleError(h.log, w, err)
		return
	}
	native, target, err := req.Languages()
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	story, err := h.story.Generate(r.Context(), userID, native, target, req.Terms)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	response.JSON(w, http.StatusOK, story)
}
