package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"github.com/windfall/poplingo_service/internal/client"
	"github.com/windfall/poplingo_service/internal/errors"
	"github.com/windfall/poplingo_service/internal/metrics"
	"github.com/windfall/poplingo_service/internal/repository"
)

// MaxTermLength bounds a lookup term, in runes.
const MaxTermLength = 200

// definitionSchema is the JSON shape requested from the text provider.
var definitionSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"definition": {Type: genai.TypeString},
		"examples": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"text":        {Type: genai.TypeString},
					"translation": {Type: genai.TypeString},
				},
				Required: []string{"text", "translation"},
			},
		},
		"usageNote": {Type: genai.TypeString},
	},
	Required: []string{"definition", "examples", "usageNote"},
}

type definitionResult struct {
	Definition string                       `json:"definition"`
	Examples   []repository.ExampleSentence `json:"examples"`
	UsageNote  string                       `json:"usageNote"`
}

// DictionaryService turns a term into a notebook-ready entry: a definition,
// examples, a usage note and an illustration.
type DictionaryService struct {
	ai       *AIService
	media    MediaStore
	cache    Cache
	cacheTTL time.Duration
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// NewDictionaryService creates a new DictionaryService.
func NewDictionaryService(ai *AIService, log zerolog.Logger) *DictionaryService {
	return &DictionaryService{
		ai:  ai,
		log: log,
	}
}

// WithMediaStore uploads illustrations to store instead of inlining them.
func (s *DictionaryService) WithMediaStore(store MediaStore) *DictionaryService {
	s.media = store
	return s
}

// WithCache caches finished entries for ttl.
func (s *DictionaryService) WithCache(cache Cache, ttl time.Duration) *DictionaryService {
	s.cache = cache
	s.cacheTTL = ttl
	return s
}

// WithMetrics records lookup outcomes into m.
func (s *DictionaryService) WithMetrics(m *metrics.Metrics) *DictionaryService {
	s.metrics = m
	return s
}

// Lookup defines term for a speaker of native learning target. The text
// and image requests run concurrently; if either fails the lookup fails.
func (s *DictionaryService) Lookup(ctx context.Context, term string, native, target Language) (*repository.Entry, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return nil, errors.Validation("term is required")
	}
	if utf8.RuneCountInString(term) > MaxTermLength {
		return nil, errors.Validation(fmt.Sprintf("term must be at most %d characters", MaxTermLength))
	}

	key := lookupCacheKey(term, native, target)
	if entry := s.cached(ctx, key); entry != nil {
		s.metrics.RecordLookup(ctx, "hit")
		return entry, nil
	}

	var (
		def   definitionResult
		image *client.Image
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.ai.GenerateJSON(gctx, definitionPrompt(term, native, target), definitionSchema, &def)
	})
	g.Go(func() error {
		var err error
		image, err = s.ai.GenerateImage(gctx, imagePrompt(term))
		return err
	})
	if err := g.Wait(); err != nil {
		s.metrics.RecordLookup(ctx, "error")
		s.log.Error().Err(err).Str("term", term).Msg("Lookup failed")
		return nil, err
	}

	entry := &repository.Entry{
		ID:         uuid.New().String(),
		Term:       term,
		Definition: strings.TrimSpace(def.Definition),
		Examples:   def.Examples,
		UsageNote:  strings.TrimSpace(def.UsageNote),
		NativeLang: string(native),
		TargetLang: string(target),
		Timestamp:  time.Now().UnixMilli(),
	}
	if entry.Examples == nil {
		entry.Examples = []repository.ExampleSentence{}
	}
	entry.ImageURL = s.imageURL(ctx, entry.ID, image)

	s.store(ctx, key, entry)
	s.metrics.RecordLookup(ctx, "miss")
	return entry, nil
}

// imageURL uploads image when a media store is configured and falls back
// to a data URL when there is none or the upload fails.
func (s *DictionaryService) imageURL(ctx context.Context, entryID string, image *client.Image) string {
	if image == nil || len(image.Data) == 0 {
		return ""
	}
	if s.media == nil {
		return image.DataURL()
	}

	key := fmt.Sprintf("lookups/%s/image%s", entryID, image.Extension())
	url, err := s.media.UploadObject(ctx, key, image.Data, image.MIMEType)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Image upload failed, inlining image")
		return image.DataURL()
	}
	return url
}

func (s *DictionaryService) cached(ctx context.Context, key string) *repository.Entry {
	if s.cache == nil {
		return nil
	}
	var entry repository.Entry
	ok, err := s.cache.GetJSON(ctx, key, &entry)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Lookup cache read failed")
		return nil
	}
	if !ok {
		return nil
	}
	return &entry
}

func (s *DictionaryService) store(ctx context.Context, key string, entry *repository.Entry) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, entry, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("Lookup cache write failed")
	}
}

func lookupCacheKey(term string, native, target Language) string {
	return fmt.Sprintf("lookup:%s:%s:%s", target, native, strings.ToLower(term))
}

func definitionPrompt(term string, native, target Language) string {
	return fmt.Sprintf(`Define the term "%s" (which is in %s) for a native %s speaker.
Provide the definition in %s.
Give 2 example sentences in %s with their %s translations.
Add a usageNote in %s: fun, casual and concise, like a friend explaining slang, tone or cultural nuance.
Do not include greetings or filler.`,
		term, target, native, native, target, native, native)
}

func imagePrompt(term string) string {
	return fmt.Sprintf(`A simple, bright, fun, vector-art style illustration representing the concept of: "%s". Do not include text in the image. colorful, flat design.`, term)
}
