package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
)

const (
	// NoTermsMessage is returned instead of a story when there is nothing
	// to write about.
	NoTermsMessage = "Add some words to your notebook first!"
	// EmptyStoryMessage replaces an empty provider reply.
	EmptyStoryMessage = "Could not generate story."
)

var highlightPattern = regexp.MustCompile(`\*([^*\n]+)\*`)

// Story is a generated short story.
type Story struct {
	Text       string   `json:"text"`
	Terms      []string `json:"terms"`
	Highlights []string `json:"highlights"`
}

// StoryService writes short stories that practice saved vocabulary.
type StoryService struct {
	ai       *AIService
	notebook *NotebookService
	log      zerolog.Logger
}

// NewStoryService creates a new StoryService.
func NewStoryService(ai *AIService, notebook *NotebookService, log zerolog.Logger) *StoryService {
	return &StoryService{
		ai:       ai,
		notebook: notebook,
		log:      log,
	}
}

// Generate writes a story in target using terms, or the user's notebook
// terms when none are given.
func (s *StoryService) Generate(ctx context.Context, userID string, native, target Language, terms []string) (*Story, error) {
	terms, err := s.resolveTerms(ctx, userID, terms)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return &Story{Text: NoTermsMessage, Terms: []string{}, Highlights: []string{}}, nil
	}

	text, err := s.ai.GenerateText(ctx, storyPrompt(terms, native, target))
	if err != nil {
		return nil, err
	}
	return newStory(text, terms), nil
}

// Stream is Generate with the story delivered chunk by chunk. The returned
// Story holds the full text.
func (s *StoryService) Stream(ctx context.Context, userID string, native, target Language, terms []string, onChunk func(string) error) (*Story, error) {
	terms, err := s.resolveTerms(ctx, userID, terms)
	if err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		if err := onChunk(NoTermsMessage); err != nil {
			return nil, err
		}
		return &Story{Text: NoTermsMessage, Terms: []string{}, Highlights: []string{}}, nil
	}

	var sb strings.Builder
	err = s.ai.StreamText(ctx, storyPrompt(terms, native, target), func(chunk string) error {
		sb.WriteString(chunk)
		return onChunk(chunk)
	})
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(sb.String()) == "" {
		if err := onChunk(EmptyStoryMessage); err != nil {
			return nil, err
		}
	}
	return newStory(sb.String(), terms), nil
}

func (s *StoryService) resolveTerms(ctx context.Context, userID string, terms []string) ([]string, error) {
	cleaned := make([]string, 0, len(terms))
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) > 0 {
		return cleaned, nil
	}
	return s.notebook.Terms(ctx, userID)
}

func newStory(text string, terms []string) *Story {
	text = strings.TrimSpace(text)
	if text == "" {
		text = EmptyStoryMessage
	}
	return &Story{
		Text:       text,
		Terms:      terms,
		Highlights: Highlights(text),
	}
}

// Highlights returns the *starred* keywords of story in order of first
// appearance, without duplicates.
func Highlights(story string) []string {
	matches := highlightPattern.FindAllStringSubmatch(story, -1)
	seen := make(map[string]bool, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		word := strings.TrimSpace(m[1])
		if word == "" || seen[word] {
			continue
		}
		seen[word] = true
		out = append(out, word)
	}
	return out
}

func storyPrompt(terms []string, native, target Language) string {
	return fmt.Sprintf(
		"Write a short, funny, and coherent story in %s that incorporates the following words: %s. "+
			"After the story, provide a brief summary in %s. "+
			"Highlight the keywords in the story by wrapping them in asterisks (*word*).",
		target, strings.Join(terms, ", "), native)
}
