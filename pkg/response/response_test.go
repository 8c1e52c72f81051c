package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfall/poplingo_service/internal/errors"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	JSONWithMeta(rec, http.StatusOK, []string{"a"}, &Meta{Total: 1})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	resp := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, 1, resp.Meta.Total)
}

func TestAppError(t *testing.T) {
	rec := httptest.NewRecorder()
	AppError(rec, errors.Conflict("term already saved").WithDetails(map[string]interface{}{"term": "hola"}))

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "CONFLICT", resp.Error.Code)
	assert.Equal(t, "term already saved", resp.Error.Message)
	assert.Equal(t, "hola", resp.Error.Details["term"])
}

func TestBinary(t *testing.T) {
	rec := httptest.NewRecorder()
	Binary(rec, http.StatusOK, "audio/wav", []byte("RIFF"))

	assert.Equal(t, "audio/wav", rec.Header().Get("Content-Type"))
	assert.Equal(t, "RIFF", rec.Body.String())
}
