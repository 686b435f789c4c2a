package annotations

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanmart1/readagain-reader/internal/domain"
)

// fakeRepo is an in-memory AnnotationRepository with per-operation error
// injection.
type fakeRepo struct {
	highlights []domain.Highlight
	notes      []domain.Note
	nextID     int64

	listErr   error
	createErr error
	deleteErr error
	updateErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{nextID: 1}
}

func (r *fakeRepo) ListHighlights(_ context.Context, bookID string) ([]domain.Highlight, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Highlight
	for _, h := range r.highlights {
		if h.BookID == bookID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateHighlight(_ context.Context, bookID string, draft domain.HighlightDraft) (*domain.Highlight, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	h := domain.Highlight{
		ID:     r.nextID,
		BookID: bookID,
		Text:   draft.Text,
		Color:  draft.Color,
		Anchor: draft.Anchor,
	}
	r.nextID++
	r.highlights = append(r.highlights, h)
	return &h, nil
}

func (r *fakeRepo) DeleteHighlight(_ context.Context, _ string, id int64) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	for i, h := range r.highlights {
		if h.ID == id {
			r.highlights = append(r.highlights[:i], r.highlights[i+1:]...)
			return nil
		}
	}
	return domain.ErrBookNotFound
}

func (r *fakeRepo) ListNotes(_ context.Context, bookID string) ([]domain.Note, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []domain.Note
	for _, n := range r.notes {
		if n.BookID == bookID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeRepo) CreateNote(_ context.Context, bookID string, draft domain.NoteDraft) (*domain.Note, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	n := domain.Note{
		ID:          r.nextID,
		BookID:      bookID,
		Content:     draft.Content,
		HighlightID: draft.HighlightID,
		Anchor:      draft.Anchor,
	}
	r.nextID++
	r.notes = append(r.notes, n)
	return &n, nil
}

func (r *fakeRepo) UpdateNote(_ context.Context, _ string, id int64, content string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	for i := range r.notes {
		if r.notes[i].ID == id {
			r.notes[i].Content = content
			return nil
		}
	}
	return domain.ErrBookNotFound
}

func (r *fakeRepo) DeleteNote(_ context.Context, _ string, id int64) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	for i, n := range r.notes {
		if n.ID == id {
			r.notes = append(r.notes[:i], r.notes[i+1:]...)
			return nil
		}
	}
	return domain.ErrBookNotFound
}

func setupStore(t *testing.T) (*Store, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	return NewStore(repo, nil), repo
}

func TestLoadAll(t *testing.T) {
	store, repo := setupStore(t)

	repo.highlights = []domain.Highlight{{ID: 1, BookID: "42", Text: "a passage"}}
	repo.notes = []domain.Note{{ID: 2, BookID: "42", Content: "a thought"}}

	require.NoError(t, store.LoadAll(context.Background(), "42"))
	assert.Len(t, store.Highlights(), 1)
	assert.Len(t, store.Notes(), 1)
}

func TestLoadAll_FailureLeavesEmpty(t *testing.T) {
	store, repo := setupStore(t)

	repo.highlights = []domain.Highlight{{ID: 1, BookID: "42", Text: "a passage"}}
	repo.listErr = domain.ErrServerOffline

	err := store.LoadAll(context.Background(), "42")
	assert.ErrorIs(t, err, domain.ErrServerOffline)
	assert.Empty(t, store.Highlights())
	assert.Empty(t, store.Notes())
}

func TestCreateHighlight_Confirmed(t *testing.T) {
	store, _ := setupStore(t)
	require.NoError(t, store.LoadAll(context.Background(), "42"))

	created, err := store.CreateHighlight(context.Background(), "quoted text", "loc-5", "yellow")
	require.NoError(t, err)
	assert.Positive(t, created.ID, "the server-assigned ID must be carried back")

	list := store.Highlights()
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, "quoted text", list[0].Text)
}

func TestCreateHighlight_FailureLeavesListUnchanged(t *testing.T) {
	store, repo := setupStore(t)
	require.NoError(t, store.LoadAll(context.Background(), "42"))

	repo.createErr = errors.New("boom")

	_, err := store.CreateHighlight(context.Background(), "quoted text", "loc-5", "yellow")
	assert.Error(t, err)
	assert.Empty(t, store.Highlights())
}

func TestDeleteHighlight(t *testing.T) {
	store, _ := setupStore(t)
	require.NoError(t, store.LoadAll(context.Background(), "42"))

	created, err := store.CreateHighlight(context.Background(), "text", "loc-1", "blue")
	require.NoError(t, err)

	require.NoError(t, store.DeleteHighlight(context.Background(), created.ID))
	assert.Empty(t, store.Highlights())
}

func TestDeleteHighlight_FailureKeepsLocal(t *testing.T) {
	store, repo := setupStore(t)
	require.NoError(t, store.LoadAll(context.Background(), "42"))

	created, err := store.CreateHighlight(context.Background(), "text", "loc-1", "blue")
	require.NoError(t, err)

	repo.deleteErr = domain.ErrServerOffline
	assert.Error(t, store.DeleteHighlight(context.Background(), created.ID))
	assert.Len(t, store.Highlights(), 1)
}

func TestNote_BackReference(t *testing.T) {
	store, _ := setupStore(t)
	require.NoError(t, store.LoadAll(context.Background(), "42"))

	h, err := store.CreateHighlight(context.Background(), "anchor text", "loc-2", "green")
	require.NoError(t, err)

	note, err := store.CreateNote(context.Background(), "my remark", "loc-2", h.ID)
	require.NoError(t, err)

	linked := store.HighlightFor(*note)
	require.NotNil(t, linked)
	assert.Equal(t, h.ID, linked.ID)
}

func TestNote_DanglingBackReferenceAfterHighlightDeleted(t *testing.T) {
	store, _ := setupStore(t)
	require.NoError(t, store.LoadAll(context.Background(), "42"))

	h, err := store.CreateHighlight(context.Background(), "anchor text", "loc-2", "green")
	require.NoError(t, err)
	note, err := store.CreateNote(context.Background(), "my remark", "loc-2", h.ID)
	require.NoError(t, err)

	require.NoError(t, store.DeleteHighlight(context.Background(), h.ID))

	// The note survives and now reads as standalone
	assert.Len(t, store.Notes(), 1)
	assert.Nil(t, store.HighlightFor(*note))
}

func TestHighlightFor_Standalone(t *testing.T) {
	store, _ := setupStore(t)
	assert.Nil(t, store.HighlightFor(domain.Note{ID: 7, HighlightID: 0}))
}

func TestUpdateNote(t *testing.T) {
	store, _ := setupStore(t)
	require.NoError(t, store.LoadAll(context.Background(), "42"))

	note, err := store.CreateNote(context.Background(), "first draft", "loc-3", 0)
	require.NoError(t, err)

	require.NoError(t, store.UpdateNote(context.Background(), note.ID, "second draft"))
	assert.Equal(t, "second draft", store.Notes()[0].Content)
}

func TestUpdateNote_FailureKeepsContent(t *testing.T) {
	store, repo := setupStore(t)
	require.NoError(t, store.LoadAll(context.Background(), "42"))

	note, err := store.CreateNote(context.Background(), "first draft", "loc-3", 0)
	require.NoError(t, err)

	repo.updateErr = &domain.RemoteError{StatusCode: 400}
	assert.Error(t, store.UpdateNote(context.Background(), note.ID, "second draft"))
	assert.Equal(t, "first draft", store.Notes()[0].Content)
}

func TestDeleteNote(t *testing.T) {
	store, _ := setupStore(t)
	require.NoError(t, store.LoadAll(context.Background(), "42"))

	note, err := store.CreateNote(context.Background(), "gone soon", "loc-4", 0)
	require.NoError(t, err)

	require.NoError(t, store.DeleteNote(context.Background(), note.ID))
	assert.Empty(t, store.Notes())
}
