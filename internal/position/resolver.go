// Package position converts raw rendering-engine position markers into
// normalized progress fractions and human-readable estimates. Everything here
// is pure: no storage, no network, no hidden state.
package position

import (
	"fmt"
	"math"

	"github.com/stanmart1/readagain-reader/internal/domain"
)

// Reading-speed defaults used when configuration is absent or degenerate
const (
	DefaultWordsPerLocation = 250
	DefaultWordsPerMinute   = 225
)

// ToFraction converts a position marker into a progress fraction in [0,1].
//
// Structured markers resolve through the pagination index: ordinal position
// divided by total location count. Scroll markers already carry a fraction.
// A missing or degenerate index, or a locator the index does not know, yields
// 0 rather than NaN: an unresolvable position means "best effort, start of
// book", never a broken session.
func ToFraction(marker domain.Marker, idx *Index) float64 {
	switch marker.Kind {
	case domain.MarkerScroll:
		return clamp01(marker.Fraction)
	default:
		total := idx.Total()
		if total == 0 {
			return 0
		}
		ord, ok := idx.Ordinal(marker.Locator)
		if !ok {
			return 0
		}
		return clamp01(float64(ord) / float64(total))
	}
}

// EstimateTimeRemaining estimates minutes of reading left. A fraction at or
// past 1 is done; a misconfigured reading speed falls back to the default
// rather than dividing by zero.
func EstimateTimeRemaining(fraction float64, totalLocations, wordsPerLocation, wordsPerMinute int) int {
	if fraction >= 1 {
		return 0
	}
	fraction = clamp01(fraction)
	if wordsPerLocation <= 0 {
		wordsPerLocation = DefaultWordsPerLocation
	}
	if wordsPerMinute <= 0 {
		wordsPerMinute = DefaultWordsPerMinute
	}
	if totalLocations <= 0 {
		return 0
	}

	remaining := float64(totalLocations) * (1 - fraction)
	words := remaining * float64(wordsPerLocation)
	return int(math.Ceil(words / float64(wordsPerMinute)))
}

// FormatDuration renders minutes for display: "< 1 min" under a minute,
// "N min" under an hour, "Hh Mm" beyond (minutes omitted when zero).
func FormatDuration(minutes int) string {
	if minutes < 1 {
		return "< 1 min"
	}
	if minutes < 60 {
		return fmt.Sprintf("%d min", minutes)
	}

	hours := minutes / 60
	mins := minutes % 60
	if mins == 0 {
		return fmt.Sprintf("%dh", hours)
	}
	return fmt.Sprintf("%dh %dm", hours, mins)
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
