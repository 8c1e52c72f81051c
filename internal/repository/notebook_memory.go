package repository

import (
	"context"
	"sync"
)

// MemoryNotebookRepository keeps notebooks in process memory, newest entry
// first. Stored entries are cloned on the way in and out.
type MemoryNotebookRepository struct {
	mu        sync.RWMutex
	notebooks map[string][]*Entry
}

// NewMemoryNotebookRepository creates an empty MemoryNotebookRepository.
func NewMemoryNotebookRepository() *MemoryNotebookRepository {
	return &MemoryNotebookRepository{
		notebooks: make(map[string][]*Entry),
	}
}

func (r *MemoryNotebookRepository) Add(ctx context.Context, userID string, entry *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.notebooks[userID]
	for _, e := range entries {
		switch {
		case e.ID == entry.ID:
			return ErrDuplicateID
		case e.Term == entry.Term:
			return ErrAlreadyExists
		}
	}

	updated := make([]*Entry, 0, len(entries)+1)
	updated = append(updated, entry.Clone())
	updated = append(updated, entries...)
	r.notebooks[userID] = updated
	return nil
}

func (r *MemoryNotebookRepository) GetByID(ctx context.Context, userID, id string) (*Entry, error) {
	return r.find(userID, func(e *Entry) bool { return e.ID == id })
}

func (r *MemoryNotebookRepository) GetByTerm(ctx context.Context, userID, term string) (*Entry, error) {
	return r.find(userID, func(e *Entry) bool { return e.Term == term })
}

func (r *MemoryNotebookRepository) find(userID string, match func(*Entry) bool) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.notebooks[userID] {
		if match(e) {
			return e.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryNotebookRepository) List(ctx context.Context, userID string) ([]*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := r.notebooks[userID]
	out := make([]*Entry, len(entries))
	for i, e := range entries {
		out[i] = e.Clone()
	}
	return out, nil
}

func (r *MemoryNotebookRepository) Delete(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entries := r.notebooks[userID]
	for i, e := range entries {
		if e.ID == id {
			updated := make([]*Entry, 0, len(entries)-1)
			updated = append(updated, entries[:i]...)
			updated = append(updated, entries[i+1:]...)
			r.notebooks[userID] = updated
			return nil
		}
	}
	return ErrNotFound
}
