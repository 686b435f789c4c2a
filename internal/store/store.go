package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stanmart1/readagain-reader/internal/domain"
	bolt "go.etcd.io/bbolt"
)

// Bucket names
var (
	bucketAssets  = []byte("assets")  // Per-book metadata (JSON)
	bucketBlobs   = []byte("blobs")   // Raw book content
	bucketIndices = []byte("indices") // Raw serialized pagination indices
	bucketQueue   = []byte("queue")   // Pending progress writes (JSON)
)

// assetMeta is the JSON metadata record kept alongside a cached blob
type assetMeta struct {
	Size             int64 `json:"size"`
	CachedAt         int64 `json:"cachedAt"`
	IndexGeneratedAt int64 `json:"indexGeneratedAt,omitempty"`
}

// ReaderStore implements domain.Store using BoltDB.
type ReaderStore struct {
	db *bolt.DB
	mu sync.RWMutex // Protects memory cache

	// In-memory cache for hot-path reads (promoted on access). Also the sole
	// backing in memory-only mode, when caching degrades after a storage
	// failure.
	cache map[string][]byte
}

// NewReaderStore opens the durable store under baseDir. An empty baseDir
// selects memory-only mode: everything works, nothing survives restart.
func NewReaderStore(baseDir string) (*ReaderStore, error) {
	if baseDir == "" {
		return &ReaderStore{cache: make(map[string][]byte)}, nil
	}

	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, err
	}

	dbPath := filepath.Join(baseDir, "readagain.db")
	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketAssets, bucketBlobs, bucketIndices, bucketQueue} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &ReaderStore{db: db, cache: make(map[string][]byte)}, nil
}

func (s *ReaderStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// === Generic helpers ===

func (s *ReaderStore) getRaw(bucket []byte, key string) ([]byte, bool) {
	cacheKey := string(bucket) + ":" + key

	// Check memory cache first
	s.mu.RLock()
	if data, ok := s.cache[cacheKey]; ok {
		s.mu.RUnlock()
		return data, true
	}
	s.mu.RUnlock()

	if s.db == nil {
		return nil, false
	}

	// Read from BoltDB
	var data []byte
	s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			data = make([]byte, len(v))
			copy(data, v)
		}
		return nil
	})

	if data == nil {
		return nil, false
	}

	// Promote to memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	return data, true
}

func (s *ReaderStore) setRaw(bucket []byte, key string, data []byte) error {
	cacheKey := string(bucket) + ":" + key

	// Update memory cache
	s.mu.Lock()
	s.cache[cacheKey] = data
	s.mu.Unlock()

	if s.db == nil {
		return nil // Memory-only mode
	}

	// Write to BoltDB
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Put([]byte(key), data)
	})
}

func (s *ReaderStore) get(bucket []byte, key string, dest interface{}) bool {
	data, ok := s.getRaw(bucket, key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, dest) == nil
}

func (s *ReaderStore) set(bucket []byte, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.setRaw(bucket, key, data)
}

func (s *ReaderStore) delete(bucket []byte, key string) {
	cacheKey := string(bucket) + ":" + key

	s.mu.Lock()
	delete(s.cache, cacheKey)
	s.mu.Unlock()

	if s.db == nil {
		return
	}

	s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b != nil {
			b.Delete([]byte(key))
		}
		return nil
	})
}

// keys lists every key in a bucket, merging BoltDB with memory-only entries
func (s *ReaderStore) keys(bucket []byte) []string {
	seen := make(map[string]struct{})

	s.mu.RLock()
	prefix := string(bucket) + ":"
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			seen[strings.TrimPrefix(k, prefix)] = struct{}{}
		}
	}
	s.mu.RUnlock()

	if s.db != nil {
		s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(bucket)
			if b == nil {
				return nil
			}
			return b.ForEach(func(k, _ []byte) error {
				seen[string(k)] = struct{}{}
				return nil
			})
		})
	}

	out := make([]string, 0, len(seen))
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (s *ReaderStore) clearBucket(bucket []byte) error {
	s.mu.Lock()
	prefix := string(bucket) + ":"
	for k := range s.cache {
		if strings.HasPrefix(k, prefix) {
			delete(s.cache, k)
		}
	}
	s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// === Assets ===

func (s *ReaderStore) GetAsset(bookID string) (*domain.AssetEntry, bool) {
	var meta assetMeta
	if !s.get(bucketAssets, bookID, &meta) {
		return nil, false
	}

	blob, ok := s.getRaw(bucketBlobs, bookID)
	if !ok {
		// Metadata without a blob is a corrupt leftover; treat as a miss
		return nil, false
	}

	entry := &domain.AssetEntry{
		BookID:           bookID,
		Blob:             blob,
		Size:             meta.Size,
		CachedAt:         meta.CachedAt,
		IndexGeneratedAt: meta.IndexGeneratedAt,
	}
	if index, ok := s.getRaw(bucketIndices, bookID); ok {
		entry.Index = index
	}
	return entry, true
}

func (s *ReaderStore) SaveBlob(bookID string, blob []byte) error {
	// A new blob invalidates any index derived from the old one
	s.delete(bucketIndices, bookID)

	if err := s.setRaw(bucketBlobs, bookID, blob); err != nil {
		return err
	}
	meta := assetMeta{
		Size:     int64(len(blob)),
		CachedAt: time.Now().UnixMilli(),
	}
	return s.set(bucketAssets, bookID, meta)
}

func (s *ReaderStore) SaveIndex(bookID string, index []byte) error {
	var meta assetMeta
	if !s.get(bucketAssets, bookID, &meta) {
		return domain.ErrBlobMissing
	}

	if err := s.setRaw(bucketIndices, bookID, index); err != nil {
		return err
	}
	meta.IndexGeneratedAt = time.Now().UnixMilli()
	return s.set(bucketAssets, bookID, meta)
}

func (s *ReaderStore) RemoveAsset(bookID string) {
	s.delete(bucketIndices, bookID)
	s.delete(bucketBlobs, bookID)
	s.delete(bucketAssets, bookID)
}

func (s *ReaderStore) ClearAssets() error {
	for _, bucket := range [][]byte{bucketIndices, bucketBlobs, bucketAssets} {
		if err := s.clearBucket(bucket); err != nil {
			return err
		}
	}
	return nil
}

func (s *ReaderStore) Stats() domain.CacheStats {
	stats := domain.CacheStats{}
	for _, bookID := range s.keys(bucketAssets) {
		var meta assetMeta
		if !s.get(bucketAssets, bookID, &meta) {
			continue
		}
		_, hasIndex := s.getRaw(bucketIndices, bookID)
		stats.Count++
		stats.TotalBytes += meta.Size
		stats.Assets = append(stats.Assets, domain.CachedAsset{
			BookID:   bookID,
			Size:     meta.Size,
			CachedAt: meta.CachedAt,
			HasIndex: hasIndex,
		})
	}
	return stats
}

// === Progress queue ===

func (s *ReaderStore) GetQueued(bookID string) (*domain.QueuedProgress, bool) {
	var m domain.QueuedProgress
	if !s.get(bucketQueue, bookID, &m) {
		return nil, false
	}
	return &m, true
}

func (s *ReaderStore) SaveQueued(m domain.QueuedProgress) error {
	return s.set(bucketQueue, m.BookID, m)
}

func (s *ReaderStore) DeleteQueued(bookID string) {
	s.delete(bucketQueue, bookID)
}

func (s *ReaderStore) ListQueued() []domain.QueuedProgress {
	var out []domain.QueuedProgress
	for _, bookID := range s.keys(bucketQueue) {
		var m domain.QueuedProgress
		if s.get(bucketQueue, bookID, &m) {
			out = append(out, m)
		}
	}
	return out
}
