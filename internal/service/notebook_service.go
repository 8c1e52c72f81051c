package service

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/windfall/poplingo_service/internal/errors"
	"github.com/windfall/poplingo_service/internal/metrics"
	"github.com/windfall/poplingo_service/internal/repository"
)

// Notebook event types.
const (
	EventEntrySaved   = "entry.saved"
	EventEntryRemoved = "entry.removed"
)

// NotebookEvent is published whenever a notebook changes.
type NotebookEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	EntryID    string    `json:"entry_id"`
	Term       string    `json:"term"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NotebookService manages each user's saved entries.
type NotebookService struct {
	repo    repository.NotebookRepository
	events  EventPublisher
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewNotebookService creates a new NotebookService.
func NewNotebookService(repo repository.NotebookRepository, log zerolog.Logger) *NotebookService {
	return &NotebookService{
		repo: repo,
		log:  log,
	}
}

// WithEvents publishes notebook changes to p.
func (s *NotebookService) WithEvents(p EventPublisher) *NotebookService {
	s.events = p
	return s
}

// WithMetrics counts notebook changes into m.
func (s *NotebookService) WithMetrics(m *metrics.Metrics) *NotebookService {
	s.metrics = m
	return s
}

// List returns the user's entries, most recently saved first.
func (s *NotebookService) List(ctx context.Context, userID string) ([]*repository.Entry, error) {
	entries, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "notebook")
	}
	return entries, nil
}

// Count returns the number of saved entries.
func (s *NotebookService) Count(ctx context.Context, userID string) (int, error) {
	entries, err := s.List(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

// Get returns one entry by ID.
func (s *NotebookService) Get(ctx context.Context, userID, id string) (*repository.Entry, error) {
	entry, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return nil, mapRepoError(err, "notebook entry")
	}
	return entry, nil
}

// IsSaved reports whether term is in the notebook.
func (s *NotebookService) IsSaved(ctx context.Context, userID, term string) (bool, error) {
	_, err := s.repo.GetByTerm(ctx, userID, strings.TrimSpace(term))
	if stderrors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, mapRepoError(err, "notebook entry")
	}
	return true, nil
}

// Save adds entry. A term already in the notebook is a conflict.
func (s *NotebookService) Save(ctx context.Context, userID string, entry *repository.Entry) (*repository.Entry, error) {
	entry, err := normalizeEntry(entry)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Add(ctx, userID, entry); err != nil {
		return nil, saveError(err, entry)
	}

	s.changed(ctx, EventEntrySaved, userID, entry)
	return entry, nil
}

// Toggle removes entry's term if it is saved and saves entry otherwise. It
// returns the entry that was removed or saved and whether the term is saved
// afterwards.
func (s *NotebookService) Toggle(ctx context.Context, userID string, entry *repository.Entry) (*repository.Entry, bool, error) {
	entry, err := normalizeEntry(entry)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.repo.GetByTerm(ctx, userID, entry.Term)
	switch {
	case err == nil:
		if err := s.repo.Delete(ctx, userID, existing.ID); err != nil && !stderrors.Is(err, repository.ErrNotFound) {
			return nil, false, mapRepoError(err, "notebook entry")
		}
		s.changed(ctx, EventEntryRemoved, userID, existing)
		return existing, false, nil
	case stderrors.Is(err, repository.ErrNotFound):
		err := s.repo.Add(ctx, userID, entry)
		switch {
		case err == nil:
			s.changed(ctx, EventEntrySaved, userID, entry)
		case stderrors.Is(err, repository.ErrAlreadyExists):
			// saved concurrently under the same term
		default:
			return nil, false, saveError(err, entry)
		}
		return entry, true, nil
	default:
		return nil, false, mapRepoError(err, "notebook entry")
	}
}

// Delete removes an entry by ID.
func (s *NotebookService) Delete(ctx context.Context, userID, id string) error {
	entry, err := s.repo.GetByID(ctx, userID, id)
	if err != nil {
		return mapRepoError(err, "notebook entry")
	}
	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return mapRepoError(err, "notebook entry")
	}

	s.changed(ctx, EventEntryRemoved, userID, entry)
	return nil
}

// Terms returns the saved terms, most recent first.
func (s *NotebookService) Terms(ctx context.Context, userID string) ([]string, error) {
	entries, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	terms := make([]string, len(entries))
	for i, e := range entries {
		terms[i] = e.Term
	}
	return terms, nil
}

func (s *NotebookService) changed(ctx context.Context, eventType, userID string, entry *repository.Entry) {
	change := "saved"
	if eventType == EventEntryRemoved {
		change = "removed"
	}
	s.metrics.RecordNotebookChange(ctx, change)

	if s.events == nil {
		return
	}
	event := NotebookEvent{
		Type:       eventType,
		UserID:     userID,
		EntryID:    entry.ID,
		Term:       entry.Term,
		OccurredAt: time.Now().UTC(),
	}
	attrs := map[string]string{
		"event":   eventType,
		"user_id": userID,
		"term":    entry.Term,
	}
	if err := s.events.Publish(ctx, event, attrs); err != nil {
		s.log.Warn().Err(err).Str("event", eventType).Str("user_id", userID).Msg("Failed to publish notebook event")
	}
}

func normalizeEntry(entry *repository.Entry) (*repository.Entry, error) {
	if entry == nil {
		return nil, errors.Validation("entry is required")
	}
	e := entry.Clone()
	e.ID = strings.TrimSpace(e.ID)
	e.Term = strings.TrimSpace(e.Term)
	switch {
	case e.ID == "":
		return nil, errors.Validation("entry id is required")
	case e.Term == "":
		return nil, errors.Validation("entry term is required")
	case strings.TrimSpace(e.Definition) == "":
		return nil, errors.Validation("entry definition is required")
	}
	if e.Examples == nil {
		e.Examples = []repository.ExampleSentence{}
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	return e, nil
}

func saveError(err error, entry *repository.Entry) error {
	switch {
	case stderrors.Is(err, repository.ErrDuplicateID):
		return errors.Conflict("entry id already in use: " + entry.ID)
	case stderrors.Is(err, repository.ErrAlreadyExists):
		return errors.Conflict("term already saved: " + entry.Term)
	default:
		return mapRepoError(err, "notebook")
	}
}

func mapRepoError(err error, resource string) error {
	switch {
	case stderrors.Is(err, repository.ErrNotFound):
		return errors.NotFound(resource)
	case stderrors.Is(err, repository.ErrAlreadyExists):
		return errors.Conflict(resource + " already exists")
	case stderrors.Is(err, repository.ErrDuplicateID):
		return errors.Conflict(resource + " id already in use")
	default:
		return errors.Wrap(errors.ErrStorageService, "failed to access "+resource, err)
	}
}
