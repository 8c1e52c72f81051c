package ws

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/windfall/poplingo_service/internal/logger"
	"github.com/windfall/poplingo_service/internal/repository"
	"github.com/windfall/poplingo_service/internal/service"
)

type chunkText struct {
	chunks []string
	err    error
}

func (c *chunkText) Name() string { return "chunks" }

func (c *chunkText) GenerateText(ctx context.Context, prompt string) (string, error) {
	return "", c.err
}

func (c *chunkText) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, target any) error {
	return c.err
}

func (c *chunkText) StreamText(ctx context.Context, prompt string, onChunk func(string) error) error {
	if c.err != nil {
		return c.err
	}
	for _, chunk := range c.chunks {
		if err := onChunk(chunk); err != nil {
			return err
		}
	}
	return nil
}

type received struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func newTestHandler(text service.TextGenerator) *Handler {
	log := logger.NewNop()
	ai := service.NewAIService(text, nil, nil, log).WithRetry(0, time.Millisecond)
	notebook := service.NewNotebookService(repository.NewMemoryNotebookRepository(), log)
	return NewHandler(log, service.NewStoryService(ai, notebook, log))
}

func collect(t *testing.T, h *Handler, userID, msgType, payload string) []received {
	t.Helper()
	var out []received
	err := h.Handle(context.Background(), "c1", userID, msgType, json.RawMessage(payload), func(msg []byte) error {
		var r received
		require.NoError(t, json.Unmarshal(msg, &r))
		out = append(out, r)
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestHandle(t *testing.T) {
	storyReq := `{"native_lang":"English","target_lang":"Spanish","terms":["gato"]}`

	tests := []struct {
		name      string
		text      *chunkText
		userID    string
		msgType   string
		payload   string
		wantTypes []string
		wantCode  string
	}{
		{name: "ping", msgType: TypePing, payload: `{}`, wantTypes: []string{TypePong}},
		{name: "unknown", msgType: "chat", payload: `{}`, wantTypes: []string{TypeError}, wantCode: "VALIDATION_ERROR"},
		{name: "story requires user", msgType: TypeStory, payload: storyReq, wantTypes: []string{TypeError}, wantCode: "UNAUTHORIZED"},
		{name: "story bad payload", userID: "u1", msgType: TypeStory, payload: `[]`, wantTypes: []string{TypeError}, wantCode: "VALIDATION_ERROR"},
		{name: "story bad language", userID: "u1", msgType: TypeStory, payload: `{"native_lang":"Elvish","target_lang":"Spanish"}`, wantTypes: []string{TypeError}, wantCode: "VALIDATION_ERROR"},
		{
			name:      "story streams",
			text:      &chunkText{chunks: []string{"Un *gato* ", "grande."}},
			userID:    "u1",
			msgType:   TypeStory,
			payload:   storyReq,
			wantTypes: []string{TypeStoryChunk, TypeStoryChunk, TypeStoryDone},
		},
		{
			name:      "story with empty notebook",
			userID:    "u1",
			msgType:   TypeStory,
			payload:   `{"native_lang":"English","target_lang":"Spanish"}`,
			wantTypes: []string{TypeStoryChunk, TypeStoryDone},
		},
		{
			name:      "provider failure",
			text:      &chunkText{err: errors.New("boom")},
			userID:    "u1",
			msgType:   TypeStory,
			payload:   storyReq,
			wantTypes: []string{TypeError},
			wantCode:  "AI_SERVICE_ERROR",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text := tt.text
			if text == nil {
				text = &chunkText{}
			}
			got := collect(t, newTestHandler(text), tt.userID, tt.msgType, tt.payload)

			types := make([]string, len(got))
			for i, r := range got {
				types[i] = r.Type
			}
			assert.Equal(t, tt.wantTypes, types)

			if tt.wantCode != "" {
				var body ErrorPayload
				require.NoError(t, json.Unmarshal(got[len(got)-1].Payload, &body))
				assert.Equal(t, tt.wantCode, body.Code)
			}
		})
	}
}

func TestHandleStoryDonePayload(t *testing.T) {
	h := newTestHandler(&chunkText{chunks: []string{"Un *gato* ", "grande."}})
	got := collect(t, h, "u1", TypeStory, `{"native_lang":"English","target_lang":"Spanish","terms":["gato"]}`)
	require.Len(t, got, 3)

	var story service.Story
	require.NoError(t, json.Unmarshal(got[2].Payload, &story))
	assert.Equal(t, "Un *gato* grande.", story.Text)
	assert.Equal(t, []string{"gato"}, story.Highlights)
}
