package http

import (
	"net/http"

	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/service"
	"github.com/windfall/poplingo_service/internal/validate"
	"github.com/windfall/poplingo_service/pkg/response"
)

// AuthHandler handles authentication HTTP endpoints.
type AuthHandler struct {
	log         zerolog.Logger
	validate    *validate.Validator
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(log zerolog.Logger, v *validate.Validator, authService *service.AuthService) *AuthHandler {
	return &AuthHandler{
		log:         log,
		validate:    v,
		authService: authService,
	}
}

// Register handles POST /api/v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterReq
	if err := decode(w, r, h.validate, &req); err != nil {
		handleError(h.log, w, err)
		return
	}

	result, err := h.authService.Register(r.Context(), req)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	response.Created(w, result)
}

// Login handles POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginReq
	if err := decode(w, r, h.validate, &req); err != nil {
		handleError(h.log, w, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	response.JSON(w, http.StatusOK, result)
}

// Me handles GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.authService.GetUser(r.Context(), userID)
	if err != nil {
		handleError(h.log, w, err)
		return
	}

	response.JSON(w, http.StatusOK, user)
}
