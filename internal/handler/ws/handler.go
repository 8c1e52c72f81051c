package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/errors"
	"github.com/windfall/poplingo_service/internal/service"
)

// Message types.
const (
	TypePing       = "ping"
	TypePong       = "pong"
	TypeStory      = "story"
	TypeStoryChunk = "story_chunk"
	TypeStoryDone  = "story_done"
	TypeError      = "error"
)

// SendFunc delivers one encoded message to the client.
type SendFunc func(message []byte) error

// Handler handles WebSocket messages.
type Handler struct {
	log   zerolog.Logger
	story *service.StoryService
}

// NewHandler creates a new WebSocket handler.
func NewHandler(log zerolog.Logger, story *service.StoryService) *Handler {
	return &Handler{log: log, story: story}
}

// Response represents a WebSocket response.
type Response struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// ErrorPayload mirrors the HTTP error body.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// StoryPayload requests a streamed story.
type StoryPayload struct {
	NativeLang string   `json:"native_lang"`
	TargetLang string   `json:"target_lang"`
	Terms      []string `json:"terms"`
}

// ChunkPayload carries one piece of story text.
type ChunkPayload struct {
	Text string `json:"text"`
}

// Handle processes one incoming message, writing any replies through send.
// It blocks until a streamed story is complete or ctx is cancelled.
func (h *Handler) Handle(ctx context.Context, clientID, userID, msgType string, payload json.RawMessage, send SendFunc) error {
	h.log.Debug().
		Str("client_id", clientID).
		Str("type", msgType).
		Msg("Handling WebSocket message")

	switch msgType {
	case TypePing:
		return h.reply(send, TypePong, map[string]string{"message": "pong"})

	case TypeStory:
		return h.handleStory(ctx, userID, payload, send)

	default:
		return h.replyError(send, errors.Validation("unknown message type: "+msgType))
	}
}

func (h *Handler) handleStory(ctx context.Context, userID string, payload json.RawMessage, send SendFunc) error {
	if userID == "" {
		return h.replyError(send, errors.Unauthorized("authentication required"))
	}

	var req StoryPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return h.replyError(send, errors.Validation("invalid story payload"))
	}
	native, err := service.ParseLanguage(req.NativeLang)
	if err != nil {
		return h.replyError(send, err)
	}
	target, err := service.ParseLanguage(req.TargetLang)
	if err != nil {
		return h.replyError(send, err)
	}

	story, err := h.story.Stream(ctx, userID, native, target, req.Terms, func(chunk string) error {
		return h.reply(send, TypeStoryChunk, ChunkPayload{Text: chunk})
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return h.replyError(send, err)
	}
	return h.reply(send, TypeStoryDone, story)
}

func (h *Handler) reply(send SendFunc, msgType string, payload interface{}) error {
	data, err := json.Marshal(Response{Type: msgType, Payload: payload})
	if err != nil {
		return err
	}
	return send(data)
}

func (h *Handler) replyError(send SendFunc, err error) error {
	body := ErrorPayload{Code: string(errors.ErrInternal), Message: "something went wrong"}
	if appErr, ok := errors.As(err); ok {
		body = ErrorPayload{Code: string(appErr.Code), Message: appErr.Message}
	} else {
		h.log.Error().Err(err).Msg("WebSocket request failed")
	}
	return h.reply(send, TypeError, body)
}
