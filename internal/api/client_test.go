package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stanmart1/readagain-reader/internal/domain"
)

func setupClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(srv.URL, "test-token", nil)
}

func TestFetchLibraryEntry(t *testing.T) {
	client := setupClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/user/library", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"libraryItems":[
			{"book_id":"7","title":"Other","file_kind":"epub"},
			{"book_id":"42","title":"Test Book","author":"A. Writer","file_kind":"epub",
			 "progress":40,"last_read_location":"loc-12","last_read_at":"2026-08-30T10:00:00Z"}
		]}`))
	}))

	entry, err := client.FetchLibraryEntry(context.Background(), "42")
	require.NoError(t, err)

	assert.Equal(t, "42", entry.BookID)
	assert.Equal(t, "Test Book", entry.Title)
	assert.Equal(t, "A. Writer", entry.Author)
	assert.Equal(t, domain.FileKindEpub, entry.FileKind)
	assert.Equal(t, 0.4, entry.Progress)
	assert.Equal(t, domain.StructuredMarker("loc-12"), entry.LastMarker)
	assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), entry.LastReadAt)
}

func TestFetchLibraryEntry_ScrollMarker(t *testing.T) {
	client := setupClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"libraryItems":[
			{"book_id":"42","title":"Flowed","file_kind":"markup","progress":55,
			 "last_read_location":"scroll:0.55"}
		]}`))
	}))

	entry, err := client.FetchLibraryEntry(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, domain.FileKindMarkup, entry.FileKind)
	assert.Equal(t, domain.ScrollMarker(0.55), entry.LastMarker)
	assert.True(t, entry.LastReadAt.IsZero())
}

func TestFetchLibraryEntry_NotInLibrary(t *testing.T) {
	client := setupClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"libraryItems":[]}`))
	}))

	_, err := client.FetchLibraryEntry(context.Background(), "42")
	assert.ErrorIs(t, err, domain.ErrBookNotFound)
}

func TestFetchBookBinary(t *testing.T) {
	blob := []byte{0x50, 0x4b, 0x03, 0x04, 0x00, 0xff}
	client := setupClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ereader/book/42/file", r.URL.Path)
		w.Write(blob)
	}))

	got, err := client.FetchBookBinary(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, blob, got)
}

func TestFetchBookMarkup(t *testing.T) {
	client := setupClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ereader/book/42/content", r.URL.Path)
		w.Write([]byte("<html>book</html>"))
	}))

	got, err := client.FetchBookMarkup(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, []byte("<html>book</html>"), got)
}

func TestSaveProgress_WireFormat(t *testing.T) {
	var got progressPayload
	client := setupClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/ereader/42/progress", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{}`))
	}))

	err := client.SaveProgress(context.Background(), "42", 0.35, domain.StructuredMarker("loc-9"))
	require.NoError(t, err)

	// Fractions go out as 0-100 percentages
	assert.Equal(t, 35.0, got.Progress)
	assert.Equal(t, "loc-9", got.LastReadLocation)
}

func TestSaveProgress_ScrollMarkerWireFormat(t *testing.T) {
	var got progressPayload
	client := setupClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{}`))
	}))

	require.NoError(t, client.SaveProgress(context.Background(), "42", 0.55, domain.ScrollMarker(0.55)))
	assert.Equal(t, "scroll:0.55", got.LastReadLocation)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrAuthFailed)
				assert.True(t, domain.IsRejection(err))
			},
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrBookNotFound)
				assert.True(t, domain.IsRejection(err))
			},
		},
		{
			name:   "bad request",
			status: http.StatusBadRequest,
			body:   `{"message":"anchor malformed"}`,
			check: func(t *testing.T, err error) {
				var re *domain.RemoteError
				require.ErrorAs(t, err, &re)
				assert.Equal(t, http.StatusBadRequest, re.StatusCode)
				assert.True(t, domain.IsRejection(err))
				assert.False(t, domain.IsTransient(err))
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, domain.ErrServerOffline)
				assert.True(t, domain.IsTransient(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := setupClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					w.Write([]byte(tt.body))
				}
			}))

			err := client.SaveProgress(context.Background(), "42", 0.5, domain.ScrollMarker(0.5))
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestTransportFailureIsOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // Nothing listening anymore

	client := NewClient(srv.URL, "test-token", nil)

	err := client.SaveProgress(context.Background(), "42", 0.5, domain.ScrollMarker(0.5))
	assert.ErrorIs(t, err, domain.ErrServerOffline)
	assert.True(t, domain.IsTransient(err))
}

func TestRemoteErrorBody(t *testing.T) {
	assert.Equal(t, "bad anchor",
		remoteError(400, []byte(`{"message":"bad anchor"}`)).Message)
	assert.Equal(t, "invalid color",
		remoteError(400, []byte(`{"error":"invalid color"}`)).Message)
	assert.Empty(t, remoteError(400, []byte("plain text")).Message)
}

func TestHighlightCRUD(t *testing.T) {
	client := setupClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/ereader/42/highlights":
			w.Write([]byte(`{"highlights":[{"id":1,"book_id":"42","text":"existing","color":"yellow","anchor":"loc-1"}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/ereader/42/highlights":
			var p highlightPayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			h := domain.Highlight{ID: 2, BookID: "42", Text: p.Text, Color: p.Color, Anchor: p.Anchor}
			json.NewEncoder(w).Encode(highlightResponse{Highlight: h})
		case r.Method == http.MethodDelete && r.URL.Path == "/ereader/42/highlights/2":
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ctx := context.Background()

	list, err := client.ListHighlights(ctx, "42")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "existing", list[0].Text)

	created, err := client.CreateHighlight(ctx, "42", domain.HighlightDraft{
		Text: "new passage", Color: "blue", Anchor: "loc-5",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(2), created.ID)
	assert.Equal(t, "new passage", created.Text)

	require.NoError(t, client.DeleteHighlight(ctx, "42", 2))
}

func TestNoteCRUD(t *testing.T) {
	client := setupClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/ereader/42/notes":
			w.Write([]byte(`{"notes":[{"id":3,"book_id":"42","content":"a thought","highlight_id":1}]}`))
		case r.Method == http.MethodPost && r.URL.Path == "/ereader/42/notes":
			var p notePayload
			require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
			n := domain.Note{ID: 4, BookID: "42", Content: p.Content, HighlightID: p.HighlightID, Anchor: p.Anchor}
			json.NewEncoder(w).Encode(noteResponse{Note: n})
		case r.Method == http.MethodPut && r.URL.Path == "/ereader/42/notes/4":
			// Content travels as a query parameter on update
			assert.Equal(t, "revised thought", r.URL.Query().Get("content"))
			w.Write([]byte(`{}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/ereader/42/notes/4":
			w.Write([]byte(`{}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	ctx := context.Background()

	list, err := client.ListNotes(ctx, "42")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].HighlightID)

	created, err := client.CreateNote(ctx, "42", domain.NoteDraft{Content: "fresh thought", Anchor: "loc-7"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), created.ID)
	assert.Equal(t, int64(0), created.HighlightID)

	require.NoError(t, client.UpdateNote(ctx, "42", 4, "revised thought"))
	require.NoError(t, client.DeleteNote(ctx, "42", 4))
}
