package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfall/poplingo_service/internal/errors"
)

type sample struct {
	Term   string `json:"term" validate:"required"`
	Native string `json:"native_lang" validate:"required,language"`
	Voice  string `json:"voice" validate:"omitempty,voice"`
}

func TestValidator(t *testing.T) {
	v, err := New()
	require.NoError(t, err)

	assert.NoError(t, v.Struct(sample{Term: "hola", Native: "english", Voice: "Kore"}))
	assert.NoError(t, v.Struct(sample{Term: "hola", Native: "Mandarin Chinese"}))

	err = v.Struct(sample{Native: "Klingon", Voice: "Alloy"})
	require.Error(t, err)

	appErr, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrValidation, appErr.Code)
	assert.Equal(t, "term is a required field", appErr.Details["term"])
	assert.Equal(t, "native_lang must be a supported language", appErr.Details["native_lang"])
	assert.Contains(t, appErr.Details["voice"], "must be one of")
}
