package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/errors"
	"github.com/windfall/poplingo_service/internal/middleware"
	"github.com/windfall/poplingo_service/internal/validate"
	"github.com/windfall/poplingo_service/pkg/response"
)

// maxBodyBytes caps request bodies; audio decode payloads are the largest.
const maxBodyBytes = 8 << 20

// handleError writes err as the error envelope. AppErrors keep their code;
// anything else is logged and hidden behind a generic 500.
func handleError(log zerolog.Logger, w http.ResponseWriter, err error) {
	if appErr, ok := errors.As(err); ok {
		if appErr.HTTPStatus() >= http.StatusInternalServerError {
			log.Error().Err(err).Str("code", string(appErr.Code)).Msg("Request failed")
		}
		response.AppError(w, appErr)
		return
	}
	log.Error().Err(err).Msg("Internal server error")
	response.InternalError(w, "something went wrong")
}

// decode reads a JSON body into dst and runs struct validation. An empty
// body is treated as an empty object.
func decode(w http.ResponseWriter, r *http.Request, v *validate.Validator, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && err != io.EOF {
		return errors.Validation("invalid request body")
	}
	if v == nil {
		return nil
	}
	return v.Struct(dst)
}

// requireUser returns the authenticated user ID or writes a 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		response.Unauthorized(w, "authentication required")
		return "", false
	}
	return userID, true
}
