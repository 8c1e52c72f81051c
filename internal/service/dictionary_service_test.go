package service

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfall/poplingo_service/internal/client"
	"github.com/windfall/poplingo_service/internal/errors"
	"github.com/windfall/poplingo_service/internal/logger"
)

const definitionJSON = `{
	"definition": "a greeting",
	"examples": [
		{"text": "¡Hola, amigo!", "translation": "Hello, friend!"},
		{"text": "Hola a todos.", "translation": "Hi everyone."}
	],
	"usageNote": "Use it anytime, it's the friendliest word around."
}`

func TestDictionaryService_Lookup(t *testing.T) {
	text := &fakeText{json: definitionJSON}
	image := &fakeImage{image: &client.Image{Data: []byte{1, 2, 3}, MIMEType: "image/png"}}
	svc := NewDictionaryService(newTestAI(text, image, nil), logger.NewNop())

	entry, err := svc.Lookup(context.Background(), "  hola ", English, Spanish)
	require.NoError(t, err)

	assert.Equal(t, "hola", entry.Term)
	assert.Equal(t, "a greeting", entry.Definition)
	require.Len(t, entry.Examples, 2)
	assert.Equal(t, "Hello, friend!", entry.Examples[0].Translation)
	assert.Equal(t, "Use it anytime, it's the friendliest word around.", entry.UsageNote)
	assert.Equal(t, "data:image/png;base64,AQID", entry.ImageURL)
	assert.Equal(t, "English", entry.NativeLang)
	assert.Equal(t, "Spanish", entry.TargetLang)
	assert.NotEmpty(t, entry.ID)
	assert.InDelta(t, time.Now().UnixMilli(), entry.Timestamp, 5000)

	require.Len(t, text.prompts, 1)
	assert.Contains(t, text.prompts[0], `"hola"`)
	assert.Contains(t, text.prompts[0], "Spanish")
	assert.Equal(t, 1, image.calls)
}

func TestDictionaryService_Validation(t *testing.T) {
	text := &fakeText{json: definitionJSON}
	svc := NewDictionaryService(newTestAI(text, &fakeImage{}, nil), logger.NewNop())

	_, err := svc.Lookup(context.Background(), "   ", English, Spanish)
	assert.True(t, errors.HasCode(err, errors.ErrValidation))

	_, err = svc.Lookup(context.Background(), strings.Repeat("a", MaxTermLength+1), English, Spanish)
	assert.True(t, errors.HasCode(err, errors.ErrValidation))

	assert.Equal(t, 0, text.callCount())
}

func TestDictionaryService_FailsWhenEitherCallFails(t *testing.T) {
	t.Run("text fails", func(t *testing.T) {
		text := &fakeText{errs: []error{stderrors.New("bad prompt")}}
		image := &fakeImage{image: &client.Image{Data: []byte{1}, MIMEType: "image/png"}}
		svc := NewDictionaryService(newTestAI(text, image, nil), logger.NewNop())

		_, err := svc.Lookup(context.Background(), "hola", English, Spanish)
		assert.Error(t, err)
	})

	t.Run("image fails", func(t *testing.T) {
		text := &fakeText{json: definitionJSON}
		image := &fakeImage{err: stderrors.New("safety block")}
		svc := NewDictionaryService(newTestAI(text, image, nil), logger.NewNop())

		_, err := svc.Lookup(context.Background(), "hola", English, Spanish)
		assert.Error(t, err)
	})
}

func TestDictionaryService_NoImage(t *testing.T) {
	text := &fakeText{json: `{"definition":"cat","usageNote":"meow"}`}
	svc := NewDictionaryService(newTestAI(text, &fakeImage{}, nil), logger.NewNop())

	entry, err := svc.Lookup(context.Background(), "gato", English, Spanish)
	require.NoError(t, err)
	assert.Empty(t, entry.ImageURL)
	assert.NotNil(t, entry.Examples)
	assert.Empty(t, entry.Examples)
}

func TestDictionaryService_UploadsToMediaStore(t *testing.T) {
	text := &fakeText{json: definitionJSON}
	image := &fakeImage{image: &client.Image{Data: []byte{1}, MIMEType: "image/jpeg"}}
	media := &fakeMedia{}
	svc := NewDictionaryService(newTestAI(text, image, nil), logger.NewNop()).WithMediaStore(media)

	entry, err := svc.Lookup(context.Background(), "hola", English, Spanish)
	require.NoError(t, err)

	require.Len(t, media.keys, 1)
	assert.Equal(t, "lookups/"+entry.ID+"/image.jpg", media.keys[0])
	assert.Equal(t, "https://media.example.com/"+media.keys[0], entry.ImageURL)
}

func TestDictionaryService_UploadFailureInlinesImage(t *testing.T) {
	text := &fakeText{json: definitionJSON}
	image := &fakeImage{image: &client.Image{Data: []byte{1, 2, 3}, MIMEType: "image/png"}}
	media := &fakeMedia{err: stderrors.New("bucket gone")}
	svc := NewDictionaryService(newTestAI(text, image, nil), logger.NewNop()).WithMediaStore(media)

	entry, err := svc.Lookup(context.Background(), "hola", English, Spanish)
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,AQID", entry.ImageURL)
}

func TestDictionaryService_Cache(t *testing.T) {
	text := &fakeText{json: definitionJSON}
	image := &fakeImage{}
	cache := newFakeCache()
	svc := NewDictionaryService(newTestAI(text, image, nil), logger.NewNop()).WithCache(cache, time.Hour)

	first, err := svc.Lookup(context.Background(), "Hola", English, Spanish)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, cache.ttls["lookup:Spanish:English:hola"])

	second, err := svc.Lookup(context.Background(), "hola", English, Spanish)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Timestamp, second.Timestamp)
	assert.Equal(t, 1, text.callCount())
	assert.Equal(t, 1, image.calls)
}
