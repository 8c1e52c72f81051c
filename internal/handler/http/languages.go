package http

import (
	"net/http"

	"github.com/windfall/poplingo_service/internal/service"
	"github.com/windfall/poplingo_service/pkg/response"
)

// Languages handles GET /api/v1/languages
func Languages(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]interface{}{
		"languages":     service.Languages,
		"voices":        service.Voices,
		"default_voice": service.DefaultVoice,
	})
}
