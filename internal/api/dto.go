package api

import (
	"encoding/json"
	"time"

	"github.com/stanmart1/readagain-reader/internal/domain"
)

// libraryResponse is GET /user/library
type libraryResponse struct {
	LibraryItems []libraryItem `json:"libraryItems"`
}

type libraryItem struct {
	BookID           string  `json:"book_id"`
	Title            string  `json:"title"`
	Author           string  `json:"author"`
	FileKind         string  `json:"file_kind"`
	Progress         float64 `json:"progress"` // Percent, 0-100
	LastReadLocation string  `json:"last_read_location"`
	LastReadAt       string  `json:"last_read_at"` // RFC 3339, may be empty
}

func (i libraryItem) toDomain() *domain.LibraryEntry {
	entry := &domain.LibraryEntry{
		BookID:     i.BookID,
		Title:      i.Title,
		Author:     i.Author,
		FileKind:   domain.ParseFileKind(i.FileKind),
		Progress:   i.Progress / 100,
		LastMarker: domain.ParseMarker(i.LastReadLocation),
	}
	if i.LastReadAt != "" {
		if t, err := time.Parse(time.RFC3339, i.LastReadAt); err == nil {
			entry.LastReadAt = t
		}
	}
	return entry
}

// progressPayload is POST /ereader/{id}/progress
type progressPayload struct {
	Progress         float64 `json:"progress"` // Percent, 0-100
	LastReadLocation string  `json:"last_read_location"`
}

type highlightPayload struct {
	Text   string `json:"text"`
	Color  string `json:"color"`
	Anchor string `json:"anchor"`
}

type highlightsResponse struct {
	Highlights []domain.Highlight `json:"highlights"`
}

type highlightResponse struct {
	Highlight domain.Highlight `json:"highlight"`
}

type notePayload struct {
	Content     string `json:"content"`
	HighlightID int64  `json:"highlight_id,omitempty"`
	Anchor      string `json:"anchor"`
}

type notesResponse struct {
	Notes []domain.Note `json:"notes"`
}

type noteResponse struct {
	Note domain.Note `json:"note"`
}

// errorBody is the backend's error envelope
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// remoteError builds a RemoteError from a 4xx response body, tolerating
// bodies that are not the expected envelope.
func remoteError(status int, body []byte) *domain.RemoteError {
	var eb errorBody
	msg := ""
	if err := json.Unmarshal(body, &eb); err == nil {
		msg = eb.Message
		if msg == "" {
			msg = eb.Error
		}
	}
	return &domain.RemoteError{StatusCode: status, Message: msg}
}
