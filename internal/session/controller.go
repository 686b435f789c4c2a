// Package session orchestrates one open book view: it resolves the cached or
// remote asset, drives the external rendering engine, converts position events
// into progress writes routed through the offline queue, and wires selection
// events to the annotation store.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/stanmart1/readagain-reader/internal/annotations"
	"github.com/stanmart1/readagain-reader/internal/domain"
	"github.com/stanmart1/readagain-reader/internal/position"
	"github.com/stanmart1/readagain-reader/internal/progress"
)

// State is the session lifecycle state
type State int

const (
	StateOpening State = iota
	StateReady
	StateFailed
	StateClosed
)

// String returns a human-readable state name
func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

const (
	// defaultDebounce coalesces rapid position changes into one write
	defaultDebounce = 3 * time.Second

	// sendTimeout bounds every remote progress write
	sendTimeout = 30 * time.Second
)

// Options tunes a session
type Options struct {
	Debounce         time.Duration // 0 = defaultDebounce
	WordsPerLocation int           // 0 = position.DefaultWordsPerLocation
	WordsPerMinute   int           // 0 = position.DefaultWordsPerMinute
	Settings         domain.ReaderSettings
}

// Controller is one reading session: created on open, destroyed on close.
// The asset store and progress queue it uses are process-wide and shared
// across sessions; everything else here is session-scoped.
type Controller struct {
	logger       *slog.Logger
	store        domain.Store
	content      domain.ContentRepository
	progressRepo domain.ProgressRepository
	queue        *progress.Queue
	annotations  *annotations.Store
	renderer     domain.Renderer
	conn         domain.Connectivity
	opts         Options

	mu       sync.Mutex
	state    State
	bookID   string
	entry    *domain.LibraryEntry
	index    *position.Index
	marker   domain.Marker
	fraction float64
	openedAt time.Time

	// Single-slot debounce buffer: only the latest position matters
	pending *domain.Marker
	timer   *time.Timer

	cancelOnline func()
	onSelection  func(domain.Selection)
}

// NewController wires a session against the shared stores and collaborators
func NewController(
	store domain.Store,
	content domain.ContentRepository,
	progressRepo domain.ProgressRepository,
	queue *progress.Queue,
	annots *annotations.Store,
	renderer domain.Renderer,
	conn domain.Connectivity,
	opts Options,
	logger *slog.Logger,
) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	return &Controller{
		logger:       logger,
		store:        store,
		content:      content,
		progressRepo: progressRepo,
		queue:        queue,
		annotations:  annots,
		renderer:     renderer,
		conn:         conn,
		opts:         opts,
		state:        StateOpening,
	}
}

// Open loads the book, restores the reading position, and attaches to the
// rendering engine. On return the session is Ready or Failed.
func (c *Controller) Open(ctx context.Context, bookID string) error {
	c.mu.Lock()
	c.bookID = bookID
	c.state = StateOpening
	c.mu.Unlock()

	// The server's view of this book. A rejection is fatal (the book is not
	// ours to read); a transient failure is not, as long as the blob is
	// cached, because that is the offline-read path.
	entry, err := c.content.FetchLibraryEntry(ctx, bookID)
	if err != nil {
		if domain.IsRejection(err) {
			return c.fail("library entry rejected", err)
		}
		c.logger.Warn("library fetch failed, attempting offline open", "bookID", bookID, "error", err)
	}

	blob, cachedIndex, err := c.resolveBlob(ctx, bookID, entry)
	if err != nil {
		return c.fail("asset unavailable", err)
	}

	if err := c.renderer.Load(ctx, blob); err != nil {
		return c.fail("rendering engine rejected content", err)
	}

	idx := c.resolveIndex(ctx, bookID, cachedIndex)

	startMarker, startFraction := c.resolveStart(entry, idx)
	if err := c.renderer.Display(ctx, startMarker); err != nil {
		return c.fail("rendering engine failed to display", err)
	}

	c.renderer.OnRelocated(c.handleRelocated)
	c.renderer.OnSelected(c.handleSelected)
	if err := c.renderer.ApplySettings(c.opts.Settings); err != nil {
		c.logger.Warn("failed to apply reader settings", "error", err)
	}

	if c.annotations != nil {
		if err := c.annotations.LoadAll(ctx, bookID); err != nil {
			c.logger.Warn("annotations unavailable for session", "bookID", bookID, "error", err)
		} else {
			for _, h := range c.annotations.Highlights() {
				c.renderer.MarkHighlight(h.Anchor, h.Color)
			}
		}
	}

	c.mu.Lock()
	c.entry = entry
	c.index = idx
	c.marker = startMarker
	c.fraction = startFraction
	c.openedAt = time.Now()
	c.state = StateReady
	c.cancelOnline = c.conn.OnOnline(func() {
		c.flush(context.Background())
	})
	c.mu.Unlock()

	c.logger.Info("session open", "bookID", bookID, "fraction", startFraction)

	// Opportunistic flush: also immediately re-attempts a queued mutation
	// that won the reopen comparison
	c.flush(ctx)
	return nil
}

// resolveBlob returns the book content, cache-first, and the cached index
// bytes if any. A fetched blob is cached best-effort for next time.
func (c *Controller) resolveBlob(ctx context.Context, bookID string, entry *domain.LibraryEntry) ([]byte, []byte, error) {
	if asset, ok := c.store.GetAsset(bookID); ok {
		c.logger.Debug("using cached asset", "bookID", bookID, "size", asset.Size)
		return asset.Blob, asset.Index, nil
	}

	var blob []byte
	var err error
	if entry != nil && entry.FileKind == domain.FileKindMarkup {
		blob, err = c.content.FetchBookMarkup(ctx, bookID)
	} else {
		blob, err = c.content.FetchBookBinary(ctx, bookID)
	}
	if err != nil {
		return nil, nil, err
	}

	if saveErr := c.store.SaveBlob(bookID, blob); saveErr != nil {
		// Caching is an optimization; the in-memory blob serves this session
		c.logger.Warn("failed to cache blob", "bookID", bookID, "error", saveErr)
	}
	return blob, nil, nil
}

// resolveIndex loads the cached pagination index, regenerating from the blob
// when the cache misses or deserialization fails. Generation failure leaves
// the session with no index: progress becomes best-effort zero, the book
// still opens.
func (c *Controller) resolveIndex(ctx context.Context, bookID string, cached []byte) *position.Index {
	if len(cached) > 0 {
		idx, err := position.ParseIndex(cached)
		if err == nil {
			return idx
		}
		c.logger.Warn("cached index malformed, regenerating", "bookID", bookID, "error", err)
	}

	raw, err := c.renderer.GenerateIndex(ctx)
	if err != nil {
		c.logger.Warn("index generation failed, progress is best-effort", "bookID", bookID, "error", err)
		return nil
	}

	idx, err := position.ParseIndex(raw)
	if err != nil {
		c.logger.Warn("generated index malformed, progress is best-effort", "bookID", bookID, "error", err)
		return nil
	}

	if saveErr := c.store.SaveIndex(bookID, raw); saveErr != nil {
		c.logger.Warn("failed to cache index", "bookID", bookID, "error", saveErr)
	}
	return idx
}

// resolveStart picks the position to reopen at. The remote-confirmed position
// wins unless a still-queued local mutation is newer, in which case the local
// one is trusted and re-flushed.
func (c *Controller) resolveStart(entry *domain.LibraryEntry, idx *position.Index) (domain.Marker, float64) {
	var remoteMarker domain.Marker
	var remoteAt int64
	var remoteFraction float64
	if entry != nil {
		remoteMarker = entry.LastMarker
		remoteAt = entry.LastReadAt.UnixMilli()
		remoteFraction = entry.Progress
	}

	if queued, ok := c.queue.Pending(c.bookID); ok && queued.EnqueuedAt > remoteAt {
		m := domain.ParseMarker(queued.Marker)
		c.logger.Debug("queued position newer than remote, using it",
			"bookID", c.bookID, "queued", queued.Fraction, "remote", remoteFraction)
		return m, queued.Fraction
	}
	return remoteMarker, remoteFraction
}

// handleRelocated is the rendering engine's position-change callback. The
// latest marker lands in the single-slot buffer and (re)arms the debounce
// timer; intermediate positions are dropped by design.
func (c *Controller) handleRelocated(m domain.Marker) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateReady {
		return
	}

	c.marker = m
	c.fraction = position.ToFraction(m, c.index)
	c.pending = &m

	if c.timer == nil {
		c.timer = time.AfterFunc(c.opts.Debounce, c.commitPending)
	} else {
		c.timer.Reset(c.opts.Debounce)
	}
}

// handleSelected surfaces a selection context to the UI layer
func (c *Controller) handleSelected(text, anchor string) {
	c.mu.Lock()
	if c.state != StateReady {
		c.mu.Unlock()
		return
	}
	sel := domain.Selection{BookID: c.bookID, Text: text, Anchor: anchor}
	fn := c.onSelection
	c.mu.Unlock()

	if fn != nil {
		fn(sel)
	}
}

// OnSelection registers the caller's selection handler
func (c *Controller) OnSelection(fn func(domain.Selection)) {
	c.mu.Lock()
	c.onSelection = fn
	c.mu.Unlock()
}

// commitPending fires when the debounce window closes: take whatever is in
// the slot and deliver it.
func (c *Controller) commitPending() {
	c.mu.Lock()
	if c.pending == nil {
		c.mu.Unlock()
		return
	}
	m := *c.pending
	f := position.ToFraction(m, c.index)
	bookID := c.bookID
	c.pending = nil
	c.mu.Unlock()

	c.deliver(bookID, m, f)
}

// deliver attempts a direct send when online, falling back to the queue on
// transient failure. Rejections are dropped: the server will refuse the same
// payload forever, and progress failures are invisible to the user by design.
func (c *Controller) deliver(bookID string, m domain.Marker, fraction float64) {
	if c.conn.Online() {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		err := c.progressRepo.SaveProgress(ctx, bookID, fraction, m)
		cancel()
		if err == nil {
			c.logger.Debug("progress saved", "bookID", bookID, "fraction", fraction)
			return
		}
		if domain.IsRejection(err) {
			c.logger.Warn("progress write rejected, dropping", "bookID", bookID, "error", err)
			return
		}
		c.logger.Debug("progress send failed, queueing", "bookID", bookID, "error", err)
	}
	c.queue.Enqueue(bookID, fraction, m)
}

// flush drains the shared queue through the progress API
func (c *Controller) flush(ctx context.Context) progress.FlushResult {
	return c.queue.Flush(ctx, func(ctx context.Context, m domain.QueuedProgress) error {
		ctx, cancel := context.WithTimeout(ctx, sendTimeout)
		defer cancel()
		return c.progressRepo.SaveProgress(ctx, m.BookID, m.Fraction, domain.ParseMarker(m.Marker))
	})
}

// CreateHighlight persists a highlight for a selection and draws its overlay
func (c *Controller) CreateHighlight(ctx context.Context, sel domain.Selection, color string) (*domain.Highlight, error) {
	h, err := c.annotations.CreateHighlight(ctx, sel.Text, sel.Anchor, color)
	if err != nil {
		return nil, err
	}
	c.renderer.MarkHighlight(h.Anchor, h.Color)
	return h, nil
}

// RemoveHighlight deletes a highlight and clears its overlay
func (c *Controller) RemoveHighlight(ctx context.Context, h domain.Highlight) error {
	if err := c.annotations.DeleteHighlight(ctx, h.ID); err != nil {
		return err
	}
	c.renderer.ClearHighlight(h.Anchor)
	return nil
}

// Annotations exposes the session's annotation store
func (c *Controller) Annotations() *annotations.Store {
	return c.annotations
}

// ApplySettings updates theme/font configuration on the live engine
func (c *Controller) ApplySettings(settings domain.ReaderSettings) error {
	c.mu.Lock()
	c.opts.Settings = settings
	c.mu.Unlock()
	return c.renderer.ApplySettings(settings)
}

// State returns the lifecycle state
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Fraction returns the current progress fraction
func (c *Controller) Fraction() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fraction
}

// Marker returns the current position marker
func (c *Controller) Marker() domain.Marker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.marker
}

// Entry returns the library entry the session opened with, nil for an
// offline open
func (c *Controller) Entry() *domain.LibraryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry
}

// ReadingTime returns how long this session has been open
func (c *Controller) ReadingTime() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.openedAt.IsZero() {
		return 0
	}
	return time.Since(c.openedAt)
}

// TimeRemaining estimates minutes left in the book at the current position
func (c *Controller) TimeRemaining() int {
	c.mu.Lock()
	fraction := c.fraction
	total := c.index.Total()
	c.mu.Unlock()
	return position.EstimateTimeRemaining(fraction, total, c.opts.WordsPerLocation, c.opts.WordsPerMinute)
}

// FormattedTimeRemaining renders TimeRemaining for display
func (c *Controller) FormattedTimeRemaining() string {
	return position.FormatDuration(c.TimeRemaining())
}

// CurrentChapter resolves the current position against the engine's table of
// contents. Empty when the book has no TOC or the position is unresolvable.
func (c *Controller) CurrentChapter() string {
	c.mu.Lock()
	m := c.marker
	c.mu.Unlock()

	toc := c.renderer.TableOfContents()
	if len(toc) == 0 {
		return ""
	}
	if m.Kind == domain.MarkerStructured && m.Locator != "" {
		for _, ch := range toc {
			if ch.Locator != "" && strings.Contains(m.Locator, ch.Locator) {
				return ch.Label
			}
		}
	}
	return toc[0].Label
}

// Close tears the session down: the debounce timer is cancelled, any pending
// position gets a final synchronous delivery attempt, engine subscriptions
// are released. Events arriving after Close are discarded by the state guard.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	c.state = StateClosed
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	var pending *domain.Marker
	if c.pending != nil {
		p := *c.pending
		pending = &p
		c.pending = nil
	}
	bookID := c.bookID
	idx := c.index
	cancelOnline := c.cancelOnline
	c.cancelOnline = nil
	c.mu.Unlock()

	if cancelOnline != nil {
		cancelOnline()
	}

	if pending != nil {
		c.deliver(bookID, *pending, position.ToFraction(*pending, idx))
	}

	c.renderer.OnRelocated(nil)
	c.renderer.OnSelected(nil)
	err := c.renderer.Close()

	c.logger.Info("session closed", "bookID", bookID)
	return err
}

// fail marks the session Failed and returns the causing error
func (c *Controller) fail(msg string, err error) error {
	c.mu.Lock()
	c.state = StateFailed
	c.mu.Unlock()
	c.logger.Error(msg, "bookID", c.bookID, "error", err)
	return err
}
