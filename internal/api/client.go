// Package api implements the remote readagain backend client: library and
// book content fetches, progress writes, and annotation CRUD.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/stanmart1/readagain-reader/internal/domain"
)

const (
	defaultTimeout = 30 * time.Second
	userAgent      = "ReadAgain-Reader/1.0"
)

// Client talks to the readagain backend. It implements
// domain.ContentRepository, domain.ProgressRepository, and
// domain.AnnotationRepository.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an authenticated API client
func NewClient(baseURL, token string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger: logger,
	}
}

// doRequest performs an authenticated request and maps failures onto the
// engine's error taxonomy: transport errors become ErrServerOffline
// (transient, queue and retry), 4xx become rejections (surface, never retry).
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, payload interface{}) ([]byte, error) {
	reqURL := fmt.Sprintf("%s%s", c.baseURL, path)
	if query != nil {
		reqURL = fmt.Sprintf("%s?%s", reqURL, query.Encode())
	}

	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", userAgent)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug("api request", "method", method, "url", reqURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("api request failed", "error", err)
		return nil, fmt.Errorf("%w: %v", domain.ErrServerOffline, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, domain.ErrAuthFailed
	case resp.StatusCode == http.StatusNotFound:
		return nil, domain.ErrBookNotFound
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		c.logger.Warn("api request rejected", "status", resp.StatusCode, "body", string(respBody))
		return nil, remoteError(resp.StatusCode, respBody)
	case resp.StatusCode >= 500:
		// Server-side trouble is retryable
		c.logger.Warn("api server error", "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: status %d", domain.ErrServerOffline, resp.StatusCode)
	}

	return respBody, nil
}

// === ContentRepository ===

// FetchLibraryEntry returns the library record for one book
func (c *Client) FetchLibraryEntry(ctx context.Context, bookID string) (*domain.LibraryEntry, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/user/library", nil, nil)
	if err != nil {
		return nil, err
	}

	var resp libraryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse library response: %w", err)
	}

	for _, item := range resp.LibraryItems {
		if item.BookID == bookID {
			return item.toDomain(), nil
		}
	}
	return nil, domain.ErrBookNotFound
}

// FetchBookBinary downloads the packaged book content
func (c *Client) FetchBookBinary(ctx context.Context, bookID string) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/ereader/book/%s/file", bookID), nil, nil)
}

// FetchBookMarkup downloads renderable content for flowed-markup books
func (c *Client) FetchBookMarkup(ctx context.Context, bookID string) ([]byte, error) {
	return c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/ereader/book/%s/content", bookID), nil, nil)
}

// === ProgressRepository ===

// SaveProgress reports a progress write; the wire format is a 0-100 percent
// plus the marker's wire form.
func (c *Client) SaveProgress(ctx context.Context, bookID string, fraction float64, marker domain.Marker) error {
	payload := progressPayload{
		Progress:         fraction * 100,
		LastReadLocation: marker.String(),
	}
	_, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/ereader/%s/progress", bookID), nil, payload)
	return err
}

// === AnnotationRepository ===

func (c *Client) ListHighlights(ctx context.Context, bookID string) ([]domain.Highlight, error) {
	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/ereader/%s/highlights", bookID), nil, nil)
	if err != nil {
		return nil, err
	}
	var resp highlightsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse highlights response: %w", err)
	}
	return resp.Highlights, nil
}

func (c *Client) CreateHighlight(ctx context.Context, bookID string, draft domain.HighlightDraft) (*domain.Highlight, error) {
	payload := highlightPayload{
		Text:   draft.Text,
		Color:  draft.Color,
		Anchor: draft.Anchor,
	}
	body, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/ereader/%s/highlights", bookID), nil, payload)
	if err != nil {
		return nil, err
	}
	var resp highlightResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse highlight response: %w", err)
	}
	return &resp.Highlight, nil
}

func (c *Client) DeleteHighlight(ctx context.Context, bookID string, id int64) error {
	_, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/ereader/%s/highlights/%d", bookID, id), nil, nil)
	return err
}

func (c *Client) ListNotes(ctx context.Context, bookID string) ([]domain.Note, error) {
	body, err := c.doRequest(ctx, http.MethodGet, fmt.Sprintf("/ereader/%s/notes", bookID), nil, nil)
	if err != nil {
		return nil, err
	}
	var resp notesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse notes response: %w", err)
	}
	return resp.Notes, nil
}

func (c *Client) CreateNote(ctx context.Context, bookID string, draft domain.NoteDraft) (*domain.Note, error) {
	payload := notePayload{
		Content:     draft.Content,
		HighlightID: draft.HighlightID,
		Anchor:      draft.Anchor,
	}
	body, err := c.doRequest(ctx, http.MethodPost, fmt.Sprintf("/ereader/%s/notes", bookID), nil, payload)
	if err != nil {
		return nil, err
	}
	var resp noteResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse note response: %w", err)
	}
	return &resp.Note, nil
}

func (c *Client) UpdateNote(ctx context.Context, bookID string, id int64, content string) error {
	query := url.Values{"content": []string{content}}
	_, err := c.doRequest(ctx, http.MethodPut, fmt.Sprintf("/ereader/%s/notes/%d", bookID, id), query, nil)
	return err
}

func (c *Client) DeleteNote(ctx context.Context, bookID string, id int64) error {
	_, err := c.doRequest(ctx, http.MethodDelete, fmt.Sprintf("/ereader/%s/notes/%d", bookID, id), nil, nil)
	return err
}
