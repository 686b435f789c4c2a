package domain

import "context"

// Chapter is one table-of-contents entry reported by the rendering engine
type Chapter struct {
	Label   string
	Locator string // Opaque, comparable against structured marker locators
}

// Renderer is the external rendering engine that paints book content. The
// engine owns pagination, locator anchors, and selection; this module only
// drives it and reacts to its events.
type Renderer interface {
	// Load hands the engine the book content to render
	Load(ctx context.Context, blob []byte) error

	// Display moves the view to the given position marker. A zero marker
	// means the start of the book.
	Display(ctx context.Context, marker Marker) error

	// TableOfContents returns the loaded book's chapter list, possibly empty
	TableOfContents() []Chapter

	// GenerateIndex derives the pagination index for the loaded content.
	// Potentially CPU-heavy; implementations must honor ctx cancellation.
	GenerateIndex(ctx context.Context) ([]byte, error)

	// OnRelocated registers the position-change callback. Only one callback
	// is active at a time; passing nil unsubscribes.
	OnRelocated(fn func(Marker))

	// OnSelected registers the text-selection callback. Passing nil
	// unsubscribes.
	OnSelected(fn func(text, anchor string))

	// MarkHighlight draws a highlight overlay at an anchor
	MarkHighlight(anchor, color string)

	// ClearHighlight removes a highlight overlay
	ClearHighlight(anchor string)

	// ApplySettings applies theme and font configuration
	ApplySettings(settings ReaderSettings) error

	// Close releases the engine handle
	Close() error
}

// Connectivity reports whether the remote API is currently reachable and
// signals offline-to-online transitions so queued writes can be flushed.
type Connectivity interface {
	// Online reports the current connectivity state
	Online() bool

	// OnOnline registers fn to run on each offline-to-online transition.
	// The returned func cancels the subscription.
	OnOnline(fn func()) (cancel func())
}
