package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/audio"
	"github.com/windfall/poplingo_service/internal/client"
	"github.com/windfall/poplingo_service/internal/errors"
)

// MaxSpeechLength bounds synthesized text, in runes.
const MaxSpeechLength = 1000

// cachedSpeech is the cache representation of a synthesized clip.
type cachedSpeech struct {
	Data       string `json:"data"`
	MIMEType   string `json:"mime_type"`
	SampleRate int    `json:"sample_rate"`
}

// SpeechService reads text aloud and decodes the result into samples.
type SpeechService struct {
	ai       *AIService
	cache    Cache
	cacheTTL time.Duration
	log      zerolog.Logger
}

// NewSpeechService creates a new SpeechService.
func NewSpeechService(ai *AIService, log zerolog.Logger) *SpeechService {
	return &SpeechService{
		ai:  ai,
		log: log,
	}
}

// WithCache caches synthesized audio for ttl.
func (s *SpeechService) WithCache(cache Cache, ttl time.Duration) *SpeechService {
	s.cache = cache
	s.cacheTTL = ttl
	return s
}

// Speak synthesizes text and decodes it to a mono buffer.
func (s *SpeechService) Speak(ctx context.Context, text string, voice Voice) (*audio.Buffer, error) {
	text, err := validateSpeechText(text)
	if err != nil {
		return nil, err
	}

	key := speechCacheKey(text, voice)
	if hit := s.cached(ctx, key); hit != nil {
		decoder := audio.NewDecoder(audio.Format{SampleRate: sampleRate(hit.SampleRate, hit.MIMEType), Channels: audio.DefaultChannels})
		buf, err := decoder.DecodeBase64(hit.Data)
		if err == nil {
			return s.checked(buf), nil
		}
		s.log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cached speech")
	}

	speech, err := s.ai.Synthesize(ctx, text, voice)
	if err != nil {
		return nil, err
	}
	buf, err := s.Decode(speech)
	if err != nil {
		return nil, err
	}

	s.store(ctx, key, speech)
	return buf, nil
}

// Decode converts provider PCM to samples using the provider's declared
// sample rate, falling back to 24kHz.
func (s *SpeechService) Decode(speech *client.Speech) (*audio.Buffer, error) {
	if speech == nil {
		return nil, errors.New(errors.ErrAIService, "no speech to decode")
	}

	format := audio.Format{
		SampleRate: sampleRate(speech.SampleRate, speech.MIMEType),
		Channels:   audio.DefaultChannels,
	}
	buf, err := audio.NewDecoder(format).Decode(speech.Data)
	if err != nil {
		return nil, errors.AIService("failed to decode speech audio", err)
	}
	return s.checked(buf), nil
}

func (s *SpeechService) checked(buf *audio.Buffer) *audio.Buffer {
	if buf.Discarded > 0 {
		s.log.Warn().Int("bytes", buf.Discarded).Msg("Discarded trailing partial PCM frame")
	}
	return buf
}

func (s *SpeechService) cached(ctx context.Context, key string) *cachedSpeech {
	if s.cache == nil {
		return nil
	}
	var hit cachedSpeech
	ok, err := s.cache.GetJSON(ctx, key, &hit)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Speech cache read failed")
		return nil
	}
	if !ok {
		return nil
	}
	return &hit
}

func (s *SpeechService) store(ctx context.Context, key string, speech *client.Speech) {
	if s.cache == nil {
		return
	}
	value := cachedSpeech{
		Data:       base64.StdEncoding.EncodeToString(speech.Data),
		MIMEType:   speech.MIMEType,
		SampleRate: speech.SampleRate,
	}
	if err := s.cache.SetJSON(ctx, key, value, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Speech cache write failed")
	}
}

func validateSpeechText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.Validation("text is required")
	}
	if utf8.RuneCountInString(text) > MaxSpeechLength {
		return "", errors.Validation(fmt.Sprintf("text must be at most %d characters", MaxSpeechLength))
	}
	return text, nil
}

func sampleRate(declared int, mimeType string) int {
	if declared > 0 {
		return declared
	}
	return audio.SampleRateFromMIME(mimeType, audio.DefaultSampleRate)
}

func speechCacheKey(text string, voice Voice) string {
	sum := sha256.Sum256([]byte(text))
	return fmt.Sprintf("speech:%s:%s", voice, hex.EncodeToString(sum[:]))
}
