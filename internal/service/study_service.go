package service

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/errors"
	"github.com/windfall/poplingo_service/internal/repository"
)

// StudySession is a flashcard run over a snapshot of a notebook.
type StudySession struct {
	ID        string
	UserID    string
	Entries   []*repository.Entry
	Index     int
	Flipped   bool
	CreatedAt time.Time
}

// GetID implements repository.Entity.
func (s *StudySession) GetID() string {
	return s.ID
}

// StudyFront is the visible side of a card.
type StudyFront struct {
	Term     string `json:"term"`
	ImageURL string `json:"image_url,omitempty"`
}

// StudyBack is revealed once a card is flipped.
type StudyBack struct {
	Definition string                       `json:"definition"`
	Examples   []repository.ExampleSentence `json:"examples"`
	UsageNote  string                       `json:"usage_note"`
}

// StudyCard is the current state of a session.
type StudyCard struct {
	SessionID string     `json:"session_id"`
	EntryID   string     `json:"entry_id"`
	Position  int        `json:"position"`
	Total     int        `json:"total"`
	Flipped   bool       `json:"flipped"`
	Front     StudyFront `json:"front"`
	Back      *StudyBack `json:"back,omitempty"`
}

// StudyService runs flashcard sessions.
type StudyService struct {
	notebook *NotebookService
	sessions repository.Repository[*StudySession]
	mu       sync.Mutex
	log      zerolog.Logger
}

// NewStudyService creates a new StudyService backed by an in-memory session
// store.
func NewStudyService(notebook *NotebookService, log zerolog.Logger) *StudyService {
	return &StudyService{
		notebook: notebook,
		sessions: repository.NewInMemoryRepository[*StudySession](),
		log:      log,
	}
}

// Start snapshots the user's notebook into a new session.
func (s *StudyService) Start(ctx context.Context, userID string) (*StudyCard, error) {
	entries, err := s.notebook.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, errors.Validation("notebook is empty")
	}

	session := &StudySession{
		ID:        uuid.New().String(),
		UserID:    userID,
		Entries:   entries,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, errors.InternalWrap("failed to create study session", err)
	}

	s.log.Debug().Str("session_id", session.ID).Int("cards", len(entries)).Msg("Study session started")
	return session.card(), nil
}

// Current returns the session's current card.
func (s *StudyService) Current(ctx context.Context, userID, sessionID string) (*StudyCard, error) {
	return s.update(ctx, userID, sessionID, func(*StudySession) {})
}

// Next advances to the next card, wrapping to the first.
func (s *StudyService) Next(ctx context.Context, userID, sessionID string) (*StudyCard, error) {
	return s.update(ctx, userID, sessionID, func(sess *StudySession) {
		sess.Index = (sess.Index + 1) % len(sess.Entries)
		sess.Flipped = false
	})
}

// Prev steps back to the previous card, wrapping to the last.
func (s *StudyService) Prev(ctx context.Context, userID, sessionID string) (*StudyCard, error) {
	return s.update(ctx, userID, sessionID, func(sess *StudySession) {
		n := len(sess.Entries)
		sess.Index = (sess.Index - 1 + n) % n
		sess.Flipped = false
	})
}

// Flip turns the current card over.
func (s *StudyService) Flip(ctx context.Context, userID, sessionID string) (*StudyCard, error) {
	return s.update(ctx, userID, sessionID, func(sess *StudySession) {
		sess.Flipped = !sess.Flipped
	})
}

// End discards a session.
func (s *StudyService) End(ctx context.Context, userID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.owned(ctx, userID, sessionID); err != nil {
		return err
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return errors.NotFound("study session")
	}
	return nil
}

func (s *StudyService) update(ctx context.Context, userID, sessionID string, fn func(*StudySession)) (*StudyCard, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.owned(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	next := *session
	fn(&next)
	if err := s.sessions.Update(ctx, &next); err != nil {
		return nil, errors.InternalWrap("failed to update study session", err)
	}
	return next.card(), nil
}

// owned returns the session if it belongs to userID. Other users' sessions
// are reported as missing.
func (s *StudyService) owned(ctx context.Context, userID, sessionID string) (*StudySession, error) {
	session, err := s.sessions.GetByID(ctx, sessionID)
	if stderrors.Is(err, repository.ErrNotFound) || (err == nil && session.UserID != userID) {
		return nil, errors.NotFound("study session")
	}
	if err != nil {
		return nil, errors.InternalWrap("failed to load study session", err)
	}
	return session, nil
}

func (s *StudySession) card() *StudyCard {
	entry := s.Entries[s.Index]
	card := &StudyCard{
		SessionID: s.ID,
		EntryID:   entry.ID,
		Position:  s.Index + 1,
		Total:     len(s.Entries),
		Flipped:   s.Flipped,
		Front: StudyFront{
			Term:     entry.Term,
			ImageURL: entry.ImageURL,
		},
	}
	if s.Flipped {
		card.Back = &StudyBack{
			Definition: entry.Definition,
			Examples:   entry.Examples,
			UsageNote:  entry.UsageNote,
		}
	}
	return card
}
