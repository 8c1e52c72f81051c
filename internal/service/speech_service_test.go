package service

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfall/poplingo_service/internal/client"
	"github.com/windfall/poplingo_service/internal/errors"
	"github.com/windfall/poplingo_service/internal/logger"
)

func TestSpeechService_Speak(t *testing.T) {
	speech := &fakeSpeech{speech: &client.Speech{
		Data:     []byte{0x00, 0x40, 0x00, 0xC0},
		MIMEType: "audio/L16;codec=pcm;rate=16000",
	}}
	svc := NewSpeechService(newTestAI(nil, nil, speech), logger.NewNop())

	buf, err := svc.Speak(context.Background(), " hola ", VoiceKore)
	require.NoError(t, err)

	assert.Equal(t, "Kore", speech.voice)
	assert.Equal(t, 16000, buf.Format.SampleRate)
	assert.Equal(t, 1, buf.Format.Channels)
	require.Len(t, buf.Channels[0], 2)
	assert.InDelta(t, 0.5, buf.Channels[0][0], 1e-6)
	assert.InDelta(t, -0.5, buf.Channels[0][1], 1e-6)
}

func TestSpeechService_DefaultsTo24kHz(t *testing.T) {
	speech := &fakeSpeech{speech: &client.Speech{Data: []byte{0, 0, 0, 0, 7}}}
	svc := NewSpeechService(newTestAI(nil, nil, speech), logger.NewNop())

	buf, err := svc.Speak(context.Background(), "hola", VoicePuck)
	require.NoError(t, err)
	assert.Equal(t, 24000, buf.Format.SampleRate)
	assert.Equal(t, 2, buf.Frames())
	assert.Equal(t, 1, buf.Discarded)
}

func TestSpeechService_Validation(t *testing.T) {
	speech := &fakeSpeech{}
	svc := NewSpeechService(newTestAI(nil, nil, speech), logger.NewNop())

	_, err := svc.Speak(context.Background(), "  ", VoicePuck)
	assert.True(t, errors.HasCode(err, errors.ErrValidation))

	_, err = svc.Speak(context.Background(), strings.Repeat("a", MaxSpeechLength+1), VoicePuck)
	assert.True(t, errors.HasCode(err, errors.ErrValidation))

	assert.Equal(t, 0, speech.calls)
}

func TestSpeechService_CachesBase64PCM(t *testing.T) {
	speech := &fakeSpeech{speech: &client.Speech{
		Data:       []byte{0x00, 0x40, 0x00, 0xC0},
		SampleRate: 24000,
	}}
	cache := newFakeCache()
	svc := NewSpeechService(newTestAI(nil, nil, speech), logger.NewNop()).WithCache(cache, time.Hour)

	_, err := svc.Speak(context.Background(), "hola", VoicePuck)
	require.NoError(t, err)

	key := speechCacheKey("hola", VoicePuck)
	var stored cachedSpeech
	ok, err := cache.GetJSON(context.Background(), key, &stored)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0x00, 0x40, 0x00, 0xC0}), stored.Data)
	assert.Equal(t, time.Hour, cache.ttls[key])

	buf, err := svc.Speak(context.Background(), "hola", VoicePuck)
	require.NoError(t, err)
	assert.Equal(t, 1, speech.calls)
	assert.InDelta(t, 0.5, buf.Channels[0][0], 1e-6)
}

func TestSpeechCacheKey(t *testing.T) {
	a := speechCacheKey("hola", VoicePuck)
	assert.True(t, strings.HasPrefix(a, "speech:Puck:"))
	assert.Len(t, strings.TrimPrefix(a, "speech:Puck:"), 64)
	assert.NotEqual(t, a, speechCacheKey("hola", VoiceKore))
}
