package domain

import (
	"fmt"
	"time"
)

// FileKind distinguishes how a book's content is delivered and rendered
type FileKind int

const (
	// FileKindEpub is packaged, paginated content positioned by structural locators
	FileKindEpub FileKind = iota
	// FileKindMarkup is flowed HTML content positioned by scroll fraction
	FileKindMarkup
)

// String returns the wire name of the file kind
func (k FileKind) String() string {
	switch k {
	case FileKindEpub:
		return "epub"
	case FileKindMarkup:
		return "markup"
	default:
		return "unknown"
	}
}

// ParseFileKind converts a wire name into a FileKind
func ParseFileKind(s string) FileKind {
	if s == "markup" || s == "html" {
		return FileKindMarkup
	}
	return FileKindEpub
}

// LibraryEntry describes a book in the reader's library together with the
// server's last confirmed reading state.
type LibraryEntry struct {
	BookID     string    // Server-assigned book identifier
	Title      string    // Display title
	Author     string    // Display author
	FileKind   FileKind  // How the content renders
	Progress   float64   // Last confirmed progress fraction [0,1]
	LastMarker Marker    // Last confirmed position marker
	LastReadAt time.Time // When the server last saw a progress write
}

// Highlight is a user-saved excerpt anchored to a text range. The anchor is
// opaque: only the rendering engine can produce or resolve it.
type Highlight struct {
	ID        int64  `json:"id"`
	BookID    string `json:"book_id"`
	Text      string `json:"text"`
	Color     string `json:"color"`
	Anchor    string `json:"anchor"`
	CreatedAt int64  `json:"created_at"`
}

// Note is user-entered text anchored to a document position. HighlightID is a
// back-reference, not ownership: deleting the highlight leaves the note intact
// and the reference dangling.
type Note struct {
	ID          int64  `json:"id"`
	BookID      string `json:"book_id"`
	Content     string `json:"content"`
	HighlightID int64  `json:"highlight_id,omitempty"` // 0 = standalone note
	Anchor      string `json:"anchor"`
	CreatedAt   int64  `json:"created_at"`
}

// Selection is the context surfaced when the reader selects text, ready to be
// turned into a highlight or note.
type Selection struct {
	BookID string
	Text   string
	Anchor string // Opaque range anchor from the rendering engine
}

// ReaderSettings holds the theme and font configuration applied to the
// rendering engine.
type ReaderSettings struct {
	Theme       string // "light", "sepia", "dark"
	FontFamily  string
	FontSizePct int // Percent of the engine's base size
}

// QueuedProgress is a pending progress write waiting for the server's ack.
// At most one exists per book: enqueuing overwrites.
type QueuedProgress struct {
	BookID     string  `json:"book_id"`
	Fraction   float64 `json:"fraction"`
	Marker     string  `json:"marker"`      // Wire form of the position marker
	EnqueuedAt int64   `json:"enqueued_at"` // Unix milliseconds
}

// AssetEntry is a cached book asset: the binary content plus, optionally, the
// pagination index derived from it. The index is never present without the blob.
type AssetEntry struct {
	BookID           string
	Blob             []byte
	Size             int64
	CachedAt         int64 // Unix milliseconds
	Index            []byte
	IndexGeneratedAt int64 // Unix milliseconds, 0 when no index cached
}

// HasIndex reports whether a pagination index is cached alongside the blob
func (e *AssetEntry) HasIndex() bool {
	return len(e.Index) > 0
}

// CachedAsset summarizes one cached book for cache statistics
type CachedAsset struct {
	BookID   string
	Size     int64
	CachedAt int64
	HasIndex bool
}

// CacheStats summarizes local cache usage
type CacheStats struct {
	Count      int
	TotalBytes int64
	Assets     []CachedAsset
}

// FormattedSize returns total cache usage in a human-readable form
func (s CacheStats) FormattedSize() string {
	const mb = 1024 * 1024
	return fmt.Sprintf("%.2f MB", float64(s.TotalBytes)/float64(mb))
}
