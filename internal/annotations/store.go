// Package annotations manages highlight and note entities for the active
// reading session: an in-memory list refreshed from the remote API on open
// and mutated as the user annotates, with the server remaining the source of
// truth.
package annotations

import (
	"context"
	"log/slog"
	"sync"

	"github.com/stanmart1/readagain-reader/internal/domain"
)

// Store holds the session-scoped annotation lists. Mutations are confirmed
// against the remote API before local state changes: a highlight that never
// reached the server would have no retry path and would silently vanish on
// the next open.
type Store struct {
	repo   domain.AnnotationRepository
	logger *slog.Logger

	mu         sync.RWMutex
	bookID     string
	highlights []domain.Highlight
	notes      []domain.Note
}

// NewStore creates an annotation store bound to the remote repository
func NewStore(repo domain.AnnotationRepository, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{repo: repo, logger: logger}
}

// LoadAll replaces local state with the server's current lists. Failures
// leave the lists empty: annotations are supplementary and never block a
// session from opening.
func (s *Store) LoadAll(ctx context.Context, bookID string) error {
	s.mu.Lock()
	s.bookID = bookID
	s.highlights = nil
	s.notes = nil
	s.mu.Unlock()

	highlights, err := s.repo.ListHighlights(ctx, bookID)
	if err != nil {
		s.logger.Warn("failed to load highlights", "bookID", bookID, "error", err)
		return err
	}

	notes, err := s.repo.ListNotes(ctx, bookID)
	if err != nil {
		s.logger.Warn("failed to load notes", "bookID", bookID, "error", err)
		return err
	}

	s.mu.Lock()
	s.highlights = highlights
	s.notes = notes
	s.mu.Unlock()

	s.logger.Debug("loaded annotations", "bookID", bookID,
		"highlights", len(highlights), "notes", len(notes))
	return nil
}

// CreateHighlight persists a highlight and appends the server-confirmed
// entity (with its assigned ID) to local state. On failure nothing is added
// locally and the error is surfaced for the UI to show inline.
func (s *Store) CreateHighlight(ctx context.Context, text, anchor, color string) (*domain.Highlight, error) {
	s.mu.RLock()
	bookID := s.bookID
	s.mu.RUnlock()

	created, err := s.repo.CreateHighlight(ctx, bookID, domain.HighlightDraft{
		Text:   text,
		Color:  color,
		Anchor: anchor,
	})
	if err != nil {
		s.logger.Warn("failed to create highlight", "bookID", bookID, "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.highlights = append(s.highlights, *created)
	s.mu.Unlock()
	return created, nil
}

// DeleteHighlight removes a highlight locally only after the remote deletion
// succeeds. Notes referencing it are untouched; their back-reference simply
// dangles and the UI treats them as standalone.
func (s *Store) DeleteHighlight(ctx context.Context, id int64) error {
	s.mu.RLock()
	bookID := s.bookID
	s.mu.RUnlock()

	if err := s.repo.DeleteHighlight(ctx, bookID, id); err != nil {
		s.logger.Warn("failed to delete highlight", "bookID", bookID, "id", id, "error", err)
		return err
	}

	s.mu.Lock()
	for i, h := range s.highlights {
		if h.ID == id {
			s.highlights = append(s.highlights[:i], s.highlights[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// CreateNote persists a note and appends the confirmed entity to local state
func (s *Store) CreateNote(ctx context.Context, content, anchor string, highlightID int64) (*domain.Note, error) {
	s.mu.RLock()
	bookID := s.bookID
	s.mu.RUnlock()

	created, err := s.repo.CreateNote(ctx, bookID, domain.NoteDraft{
		Content:     content,
		HighlightID: highlightID,
		Anchor:      anchor,
	})
	if err != nil {
		s.logger.Warn("failed to create note", "bookID", bookID, "error", err)
		return nil, err
	}

	s.mu.Lock()
	s.notes = append(s.notes, *created)
	s.mu.Unlock()
	return created, nil
}

// UpdateNote replaces a note's content, confirmed remotely before local state
// changes. Full replace, not a patch: losing note content is worse than a
// visible save delay.
func (s *Store) UpdateNote(ctx context.Context, id int64, content string) error {
	s.mu.RLock()
	bookID := s.bookID
	s.mu.RUnlock()

	if err := s.repo.UpdateNote(ctx, bookID, id, content); err != nil {
		s.logger.Warn("failed to update note", "bookID", bookID, "id", id, "error", err)
		return err
	}

	s.mu.Lock()
	for i := range s.notes {
		if s.notes[i].ID == id {
			s.notes[i].Content = content
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// DeleteNote removes a note locally after the remote deletion succeeds
func (s *Store) DeleteNote(ctx context.Context, id int64) error {
	s.mu.RLock()
	bookID := s.bookID
	s.mu.RUnlock()

	if err := s.repo.DeleteNote(ctx, bookID, id); err != nil {
		s.logger.Warn("failed to delete note", "bookID", bookID, "id", id, "error", err)
		return err
	}

	s.mu.Lock()
	for i, n := range s.notes {
		if n.ID == id {
			s.notes = append(s.notes[:i], s.notes[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// Highlights returns a copy of the current highlight list
func (s *Store) Highlights() []domain.Highlight {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Highlight, len(s.highlights))
	copy(out, s.highlights)
	return out
}

// Notes returns a copy of the current note list
func (s *Store) Notes() []domain.Note {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// HighlightFor resolves a note's back-reference. A nil result means the note
// is standalone, either by creation or because its highlight was deleted.
func (s *Store) HighlightFor(note domain.Note) *domain.Highlight {
	if note.HighlightID == 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.highlights {
		if s.highlights[i].ID == note.HighlightID {
			h := s.highlights[i]
			return &h
		}
	}
	return nil
}
