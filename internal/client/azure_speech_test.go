package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAzureSpeechClient_Synthesize(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cognitiveservices/v1", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("Ocp-Apim-Subscription-Key"))
		assert.Equal(t, azureOutputFormat, r.Header.Get("X-Microsoft-OutputFormat"))
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte{0x00, 0x40, 0x00, 0xC0})
	}))
	defer server.Close()

	c := NewAzureSpeechClient("key", "westus").WithBaseURL(server.URL)
	speech, err := c.Synthesize(context.Background(), "Tom & Jerry", "Kore")
	require.NoError(t, err)

	assert.Equal(t, []byte{0x00, 0x40, 0x00, 0xC0}, speech.Data)
	assert.Equal(t, 24000, speech.SampleRate)
	assert.Contains(t, gotBody, "en-US-AvaMultilingualNeural")
	assert.Contains(t, gotBody, "Tom &amp; Jerry")
}

func TestAzureSpeechClient_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewAzureSpeechClient("key", "westus").WithBaseURL(server.URL).
		Synthesize(context.Background(), "hola", "Puck")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")

	_, err = NewAzureSpeechClient("", "").Synthesize(context.Background(), "hola", "Puck")
	assert.Error(t, err)
}
