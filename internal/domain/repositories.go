package domain

import "context"

// ContentRepository provides access to the remote library and book content
type ContentRepository interface {
	// FetchLibraryEntry returns the library record for one book, including
	// the server's last confirmed reading position
	FetchLibraryEntry(ctx context.Context, bookID string) (*LibraryEntry, error)

	// FetchBookBinary downloads the packaged book content
	FetchBookBinary(ctx context.Context, bookID string) ([]byte, error)

	// FetchBookMarkup downloads renderable content for flowed-markup books
	FetchBookMarkup(ctx context.Context, bookID string) ([]byte, error)
}

// ProgressRepository persists reading progress remotely
type ProgressRepository interface {
	// SaveProgress reports a progress fraction and position marker.
	// The server stores progress as a 0-100 percentage.
	SaveProgress(ctx context.Context, bookID string, fraction float64, marker Marker) error
}

// HighlightDraft is the payload for creating a highlight
type HighlightDraft struct {
	Text   string
	Color  string
	Anchor string
}

// NoteDraft is the payload for creating a note
type NoteDraft struct {
	Content     string
	HighlightID int64 // 0 = standalone note
	Anchor      string
}

// AnnotationRepository persists highlights and notes remotely
type AnnotationRepository interface {
	ListHighlights(ctx context.Context, bookID string) ([]Highlight, error)
	CreateHighlight(ctx context.Context, bookID string, draft HighlightDraft) (*Highlight, error)
	DeleteHighlight(ctx context.Context, bookID string, id int64) error

	ListNotes(ctx context.Context, bookID string) ([]Note, error)
	CreateNote(ctx context.Context, bookID string, draft NoteDraft) (*Note, error)
	UpdateNote(ctx context.Context, bookID string, id int64, content string) error
	DeleteNote(ctx context.Context, bookID string, id int64) error
}
