// Package progress implements the offline mutation queue for reading-position
// writes. The queue is latest-wins per book: progress is a scalar where only
// the most recent position matters, so enqueuing overwrites, never merges.
package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stanmart1/readagain-reader/internal/domain"
)

// SendFunc delivers one queued mutation to the remote API
type SendFunc func(ctx context.Context, m domain.QueuedProgress) error

// FlushResult summarizes one flush pass
type FlushResult struct {
	Synced int
	Failed int
}

// Queue is the process-wide durable queue of pending progress writes, one
// active entry per book, backed by the shared store so it survives restarts.
type Queue struct {
	store  domain.Store
	logger *slog.Logger

	mu sync.Mutex // Serializes flush passes
}

// NewQueue creates a queue over the shared durable store
func NewQueue(store domain.Store, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue{store: store, logger: logger}
}

// Enqueue records a pending progress write, overwriting any queued entry for
// the same book with the new value and a fresh timestamp. Storage failures
// are logged and swallowed: a write we fail to queue is lost the same way a
// write we never attempted would be, and must not break the session.
func (q *Queue) Enqueue(bookID string, fraction float64, marker domain.Marker) {
	m := domain.QueuedProgress{
		BookID:     bookID,
		Fraction:   fraction,
		Marker:     marker.String(),
		EnqueuedAt: time.Now().UnixMilli(),
	}
	if err := q.store.SaveQueued(m); err != nil {
		q.logger.Warn("failed to queue progress write", "bookID", bookID, "error", err)
		return
	}
	q.logger.Debug("queued progress write", "bookID", bookID, "fraction", fraction)
}

// Pending returns the queued mutation for a book, if any
func (q *Queue) Pending(bookID string) (*domain.QueuedProgress, bool) {
	return q.store.GetQueued(bookID)
}

// Len returns the number of books with a pending write
func (q *Queue) Len() int {
	return len(q.store.ListQueued())
}

// Flush attempts to deliver every queued mutation. One book's failure never
// blocks another's send. Transient failures leave the entry queued for the
// next pass; remote rejections drop it, since the server will refuse the same
// payload forever.
//
// The queued value is re-read at send time and removed only if unchanged after
// the ack, so a position update racing the flush is never lost.
func (q *Queue) Flush(ctx context.Context, send SendFunc) FlushResult {
	q.mu.Lock()
	defer q.mu.Unlock()

	var result FlushResult
	for _, queued := range q.store.ListQueued() {
		// Re-read: Enqueue may have replaced the entry since ListQueued
		latest, ok := q.store.GetQueued(queued.BookID)
		if !ok {
			continue
		}

		if err := send(ctx, *latest); err != nil {
			result.Failed++
			if domain.IsRejection(err) {
				q.logger.Warn("server rejected queued progress, dropping",
					"bookID", latest.BookID, "error", err)
				q.store.DeleteQueued(latest.BookID)
				continue
			}
			q.logger.Debug("progress send failed, staying queued",
				"bookID", latest.BookID, "error", err)
			continue
		}

		result.Synced++
		// Remove only the exact value that was acked
		if current, ok := q.store.GetQueued(latest.BookID); ok && current.EnqueuedAt == latest.EnqueuedAt {
			q.store.DeleteQueued(latest.BookID)
		}
	}

	if result.Synced > 0 || result.Failed > 0 {
		q.logger.Info("flushed progress queue", "synced", result.Synced, "failed", result.Failed)
	}
	return result
}
