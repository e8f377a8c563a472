package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"crowdalpha/internal/interfaces"
	"crowdalpha/internal/thesis"
	"crowdalpha/internal/types"
)

// ErrCorrupt means the durable store exists but cannot be decoded. The caller
// decides whether to Reset or abort.
var ErrCorrupt = errors.New("thesis cache store is corrupt")

// Store is the durable side of the cache.
type Store interface {
	// Load returns every persisted entry undecoded. A store that does not exist yet
	// yields an empty map.
	Load() (map[string]json.RawMessage, error)
	// Save persists the entries. pending lists fingerprints not yet known to be on disk;
	// stores that rewrite everything may ignore it.
	Save(entries map[string]types.ThesisResult, pending []string) error
	Reset() error
	Close() error
}

// Cache maps post fingerprints to extracted theses. Entries are add-only and
// every add is flushed before Put returns.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]types.ThesisResult
	pending map[string]bool
	store   Store
}

var _ interfaces.ResultCache = (*Cache)(nil)

func New(store Store) *Cache {
	return &Cache{
		entries: make(map[string]types.ThesisResult),
		pending: make(map[string]bool),
		store:   store,
	}
}

// Open builds the store for backend ("file" or "sqlite") at path and wraps it in a Cache.
// The cache is not loaded yet.
func Open(backend, path string) (*Cache, error) {
	var (
		store Store
		err   error
	)
	switch backend {
	case "", "file":
		store = NewFileStore(path)
	case "sqlite":
		store, err = NewSQLiteStore(path)
	default:
		return nil, fmt.Errorf("unknown cache backend %q", backend)
	}
	if err != nil {
		return nil, err
	}
	return New(store), nil
}

// Load replaces the in-memory mapping with the store's contents. Entries are
// coerced the same way model output is, so legacy files get the same sentiment rules.
func (c *Cache) Load() error {
	raw, err := c.store.Load()
	if err != nil {
		return err
	}

	entries := make(map[string]types.ThesisResult, len(raw))
	for fp, data := range raw {
		result, err := thesis.DecodeResult(data)
		if err != nil {
			return fmt.Errorf("%w: entry %s: %v", ErrCorrupt, fp, err)
		}
		entries[fp] = result
	}

	c.mu.Lock()
	c.entries = entries
	c.pending = make(map[string]bool)
	c.mu.Unlock()
	return nil
}

func (c *Cache) Get(fingerprint string) (types.ThesisResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result, ok := c.entries[fingerprint]
	return result, ok
}

// Put adds an entry and persists it. A fingerprint that is already present is
// left untouched. If persisting fails the entry stays in memory and is retried
// with the next Put.
func (c *Cache) Put(fingerprint string, result types.ThesisResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[fingerprint]; ok {
		return nil
	}
	c.entries[fingerprint] = result
	c.pending[fingerprint] = true

	pending := make([]string, 0, len(c.pending))
	for fp := range c.pending {
		pending = append(pending, fp)
	}
	sort.Strings(pending)

	if err := c.store.Save(c.entries, pending); err != nil {
		return fmt.Errorf("persist thesis cache: %w", err)
	}
	c.pending = make(map[string]bool)
	return nil
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Reset drops every entry, in memory and on disk.
func (c *Cache) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Reset(); err != nil {
		return fmt.Errorf("reset thesis cache: %w", err)
	}
	c.entries = make(map[string]types.ThesisResult)
	c.pending = make(map[string]bool)
	return nil
}

func (c *Cache) Close() error {
	return c.store.Close()
}
