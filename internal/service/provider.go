package service

import (
	"context"
	"time"

	"google.golang.org/genai"

	"github.com/windfall/poplingo_service/internal/client"
)

// TextGenerator produces text from a prompt.
type TextGenerator interface {
	Name() string
	GenerateText(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, target any) error
	StreamText(ctx context.Context, prompt string, onChunk func(string) error) error
}

// ImageGenerator produces an image from a prompt. A nil image with a nil
// error means the provider answered without one.
type ImageGenerator interface {
	Name() string
	GenerateImage(ctx context.Context, prompt string) (*client.Image, error)
}

// SpeechSynthesizer reads text aloud as 16-bit PCM.
type SpeechSynthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text, voice string) (*client.Speech, error)
}

// MediaStore persists generated media and returns a public URL.
type MediaStore interface {
	UploadObject(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// EventPublisher delivers domain events.
type EventPublisher interface {
	Publish(ctx context.Context, data any, attrs map[string]string) error
}

// Cache stores JSON values by key.
type Cache interface {
	GetJSON(ctx context.Context, key string, dst any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}
