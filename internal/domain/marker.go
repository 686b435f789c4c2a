package domain

import (
	"strconv"
	"strings"
)

// MarkerKind distinguishes the two position marker variants
type MarkerKind int

const (
	// MarkerStructured locates a point inside structured content via an opaque
	// locator produced by the rendering engine
	MarkerStructured MarkerKind = iota
	// MarkerScroll locates a point in flowed content as a scroll fraction
	MarkerScroll
)

// scrollPrefix tags scroll markers on the wire so both variants share one field
// in the progress API payload.
const scrollPrefix = "scroll:"

// Marker is a reading position. It is a tagged variant: either an opaque
// structural locator or a scroll fraction, depending on the content kind.
// The engine never interprets structural locators, it only stores and
// round-trips them to the rendering engine.
type Marker struct {
	Kind     MarkerKind
	Locator  string  // Set for MarkerStructured
	Fraction float64 // Set for MarkerScroll, clamped to [0,1]
}

// StructuredMarker wraps an opaque rendering-engine locator
func StructuredMarker(locator string) Marker {
	return Marker{Kind: MarkerStructured, Locator: locator}
}

// ScrollMarker wraps a scroll-offset fraction, clamped to [0,1]
func ScrollMarker(fraction float64) Marker {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return Marker{Kind: MarkerScroll, Fraction: fraction}
}

// IsZero reports whether the marker carries no position at all
func (m Marker) IsZero() bool {
	return m.Kind == MarkerStructured && m.Locator == ""
}

// String renders the wire form: "scroll:<fraction>" for scroll markers, the
// raw locator otherwise.
func (m Marker) String() string {
	if m.Kind == MarkerScroll {
		return scrollPrefix + strconv.FormatFloat(m.Fraction, 'f', -1, 64)
	}
	return m.Locator
}

// ParseMarker reverses Marker.String. Unparseable scroll fractions degrade to
// fraction 0 rather than failing: a bad marker means "start of book", never a
// blocked session.
func ParseMarker(s string) Marker {
	if rest, ok := strings.CutPrefix(s, scrollPrefix); ok {
		f, err := strconv.ParseFloat(rest, 64)
		if err != nil {
			return ScrollMarker(0)
		}
		return ScrollMarker(f)
	}
	return StructuredMarker(s)
}
