package position

import (
	"encoding/json"
	"errors"
	"fmt"
)

// indexVersion is the serialization version this build reads and writes
const indexVersion = 1

// ErrBadIndex indicates a pagination index that could not be deserialized.
// Callers fall back to regenerating the index from the blob.
var ErrBadIndex = errors.New("pagination index is malformed")

// Index is a parsed pagination index: the ordered set of discrete locations
// the rendering engine carved the document into. Locators are opaque; the
// index only knows their order.
type Index struct {
	locations []string
	ordinals  map[string]int
}

// indexFile is the serialized form
type indexFile struct {
	Version   int      `json:"version"`
	Locations []string `json:"locations"`
}

// NewIndex builds an index from an ordered locator list
func NewIndex(locations []string) *Index {
	ordinals := make(map[string]int, len(locations))
	for i, loc := range locations {
		if _, dup := ordinals[loc]; !dup {
			ordinals[loc] = i
		}
	}
	return &Index{locations: locations, ordinals: ordinals}
}

// ParseIndex deserializes an index previously produced by Serialize (or by
// the rendering engine's index generator, which emits the same format).
func ParseIndex(data []byte) (*Index, error) {
	var f indexFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadIndex, err)
	}
	if f.Version != indexVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrBadIndex, f.Version)
	}
	return NewIndex(f.Locations), nil
}

// Serialize renders the index into its cacheable byte form
func (idx *Index) Serialize() ([]byte, error) {
	return json.Marshal(indexFile{Version: indexVersion, Locations: idx.locations})
}

// Total returns the number of discrete locations
func (idx *Index) Total() int {
	if idx == nil {
		return 0
	}
	return len(idx.locations)
}

// Ordinal returns the position of a locator within the index
func (idx *Index) Ordinal(locator string) (int, bool) {
	if idx == nil {
		return 0, false
	}
	ord, ok := idx.ordinals[locator]
	return ord, ok
}
