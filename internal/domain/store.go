package domain

// Store is the process-wide durable local store (BoltDB + memory). It holds
// two independent namespaces keyed by book ID: cached book assets and the
// offline progress queue. Both must remain readable and writable with no
// network, and both are shared by every reading session in the process.
type Store interface {
	// === Assets ===

	// GetAsset returns the cached entry for a book. A miss is a normal
	// outcome, not an error.
	GetAsset(bookID string) (*AssetEntry, bool)

	// SaveBlob caches a book's binary content, replacing any previous entry
	// (and dropping its index, which described the old blob)
	SaveBlob(bookID string, blob []byte) error

	// SaveIndex attaches a pagination index to an already-cached blob.
	// Returns ErrBlobMissing when no blob is cached: an index is only valid
	// relative to its blob.
	SaveIndex(bookID string, index []byte) error

	// RemoveAsset evicts one book's blob and index
	RemoveAsset(bookID string)

	// ClearAssets evicts every cached asset
	ClearAssets() error

	// Stats summarizes cache usage
	Stats() CacheStats

	// === Progress queue ===

	GetQueued(bookID string) (*QueuedProgress, bool)
	SaveQueued(m QueuedProgress) error
	DeleteQueued(bookID string)

	// ListQueued returns every pending mutation, one per book
	ListQueued() []QueuedProgress

	// === Lifecycle ===

	Close() error
}
