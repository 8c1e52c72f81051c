package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"

	"github.com/windfall/poplingo_service/internal/client"
	"github.com/windfall/poplingo_service/internal/errors"
	"github.com/windfall/poplingo_service/internal/metrics"
)

// AIService fronts the configured text, image and speech providers. Every
// call is retried on transient failures and recorded in metrics.
type AIService struct {
	text       TextGenerator
	image      ImageGenerator
	speech     SpeechSynthesizer
	maxRetries uint
	retryDelay time.Duration
	metrics    *metrics.Metrics
	log        zerolog.Logger
}

// NewAIService creates a new AI service. Any provider may be nil.
func NewAIService(text TextGenerator, image ImageGenerator, speech SpeechSynthesizer, log zerolog.Logger) *AIService {
	return &AIService{
		text:       text,
		image:      image,
		speech:     speech,
		maxRetries: 2,
		retryDelay: 500 * time.Millisecond,
		log:        log,
	}
}

// WithRetry sets how many times a failed call is retried and the initial
// backoff delay.
func (s *AIService) WithRetry(maxRetries uint, delay time.Duration) *AIService {
	s.maxRetries = maxRetries
	s.retryDelay = delay
	return s
}

// WithMetrics records provider calls into m.
func (s *AIService) WithMetrics(m *metrics.Metrics) *AIService {
	s.metrics = m
	return s
}

// Providers reports the configured provider names, "" for none.
func (s *AIService) Providers() map[string]string {
	out := map[string]string{"text": "", "image": "", "speech": ""}
	if s.text != nil {
		out["text"] = s.text.Name()
	}
	if s.image != nil {
		out["image"] = s.image.Name()
	}
	if s.speech != nil {
		out["speech"] = s.speech.Name()
	}
	return out
}

// GenerateText returns the text provider's reply to prompt.
func (s *AIService) GenerateText(ctx context.Context, prompt string) (string, error) {
	if s.text == nil {
		return "", errors.New(errors.ErrAIService, "text provider not configured")
	}

	var out string
	err := s.call(ctx, s.text.Name(), "text", func() error {
		var err error
		out, err = s.text.GenerateText(ctx, prompt)
		return err
	})
	return out, err
}

// GenerateJSON fills target from a schema-constrained reply.
func (s *AIService) GenerateJSON(ctx context.Context, prompt string, schema *genai.Schema, target any) error {
	if s.text == nil {
		return errors.New(errors.ErrAIService, "text provider not configured")
	}

	return s.call(ctx, s.text.Name(), "json", func() error {
		return s.text.GenerateJSON(ctx, prompt, schema, target)
	})
}

// StreamText streams the reply to prompt. A failed attempt is only retried
// while no chunk has been delivered.
func (s *AIService) StreamText(ctx context.Context, prompt string, onChunk func(string) error) error {
	if s.text == nil {
		return errors.New(errors.ErrAIService, "text provider not configured")
	}

	delivered := false
	return s.call(ctx, s.text.Name(), "stream", func() error {
		err := s.text.StreamText(ctx, prompt, func(chunk string) error {
			delivered = true
			return onChunk(chunk)
		})
		if err != nil && delivered {
			return retry.Unrecoverable(err)
		}
		return err
	})
}

// GenerateImage returns the image provider's picture for prompt, or nil
// when it produced none.
func (s *AIService) GenerateImage(ctx context.Context, prompt string) (*client.Image, error) {
	if s.image == nil {
		return nil, errors.New(errors.ErrAIService, "image provider not configured")
	}

	var out *client.Image
	err := s.call(ctx, s.image.Name(), "image", func() error {
		var err error
		out, err = s.image.GenerateImage(ctx, prompt)
		return err
	})
	return out, err
}

// Synthesize reads text aloud in voice.
func (s *AIService) Synthesize(ctx context.Context, text string, voice Voice) (*client.Speech, error) {
	if s.speech == nil {
		return nil, errors.New(errors.ErrAIService, "speech provider not configured")
	}

	var out *client.Speech
	err := s.call(ctx, s.speech.Name(), "speech", func() error {
		var err error
		out, err = s.speech.Synthesize(ctx, text, string(voice))
		return err
	})
	return out, err
}

func (s *AIService) call(ctx context.Context, provider, kind string, fn func() error) error {
	err := retry.Do(
		func() error {
			start := time.Now()
			err := fn()
			s.metrics.RecordProviderCall(ctx, provider, kind, time.Since(start), err)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(s.maxRetries+1),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryableError),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warn().Err(err).
				Str("provider", provider).
				Str("kind", kind).
				Uint("attempt", n+1).
				Msg("Retrying AI provider call")
		}),
	)
	if err == nil {
		return nil
	}
	if appErr, ok := errors.As(err); ok {
		return appErr
	}
	return errors.AIService(provider+" "+kind+" request failed", err)
}

// isRetryableError reports whether err looks transient: rate limits,
// server errors, timeouts and truncated JSON.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *openai.APIError
	if stderrors.As(err, &apiErr) {
		return retryableStatus(apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if stderrors.As(err, &reqErr) {
		return retryableStatus(reqErr.HTTPStatusCode)
	}

	if errors.HasCode(err, errors.ErrAIService) && strings.Contains(err.Error(), "invalid JSON") {
		return true
	}

	errStr := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "500", "502", "503", "504",
		"resource_exhausted", "unavailable",
		"i/o timeout", "connection reset", "connection refused",
		"unexpected end of json input",
	} {
		if strings.Contains(errStr, marker) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}
