package datasource

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Cache provides simple file-based caching for upstream responses. Entries
// expire ttl after they were written; a zero ttl disables caching.
type Cache struct {
	cacheDir string
	ttl      time.Duration
	now      func() time.Time
	mu       sync.RWMutex
}

// CacheEntry represents a cached item
type CacheEntry struct {
	Key       string    `json:"key"`
	Data      []byte    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewCache creates a new cache instance
func NewCache(cacheDir string, ttl time.Duration) (*Cache, error) {
	if cacheDir == "" {
		cacheDir = "cache/sec"
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}

	return &Cache{
		cacheDir: cacheDir,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

// Get retrieves an item from cache
func (c *Cache) Get(key string) ([]byte, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	raw, err := os.ReadFile(c.path(key))
	if err != nil {
		return nil, false
	}

	var entry CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil || entry.Key != key {
		return nil, false
	}
	if c.now().Sub(entry.Timestamp) > c.ttl {
		return nil, false
	}

	return entry.Data, true
}

// Set stores an item in cache
func (c *Cache) Set(key string, data []byte) error {
	if c.ttl <= 0 {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entryData, err := json.Marshal(CacheEntry{
		Key:       key,
		Data:      data,
		Timestamp: c.now(),
	})
	if err != nil {
		return err
	}

	return os.WriteFile(c.path(key), entryData, 0o644)
}

// CleanupExpired removes expired cache entries and returns how many went
func (c *Cache) CleanupExpired() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.cacheDir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		file := filepath.Join(c.cacheDir, entry.Name())
		raw, err := os.ReadFile(file)
		if err != nil {
			continue
		}

		var ce CacheEntry
		if json.Unmarshal(raw, &ce) != nil || c.now().Sub(ce.Timestamp) > c.ttl {
			if os.Remove(file) == nil {
				removed++
			}
		}
	}

	return removed, nil
}

func (c *Cache) path(key string) string {
	hash := md5.Sum([]byte(key))
	return filepath.Join(c.cacheDir, fmt.Sprintf("%x.json", hash))
}

// GetOrFetch retrieves from cache or fetches using fetchFn. cached reports
// whether the data came from disk.
func (c *Cache) GetOrFetch(key string, fetchFn func() ([]byte, error)) (data []byte, cached bool, err error) {
	if data, ok := c.Get(key); ok {
		return data, true, nil
	}

	data, err = fetchFn()
	if err != nil {
		return nil, false, err
	}

	// A failed write only costs a refetch.
	_ = c.Set(key, data)

	return data, false, nil
}

// MakeKey creates a cache key from parts
func MakeKey(parts ...string) string {
	return strings.Join(parts, ":")
}
