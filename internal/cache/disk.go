package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

const diskSuffix = ".json"

// DiskCache implements persistent disk-based caching.
// Values must be JSON documents; they are stored inline so files stay
// human-readable. Writes go through a temp file and rename, so readers
// never observe a partially written entry.
type DiskCache struct {
	dir string
	ttl time.Duration

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// NewDiskCache creates a new disk cache. A zero TTL keeps entries forever.
func NewDiskCache(dir string, ttl time.Duration) *DiskCache {
	return &DiskCache{
		dir:   dir,
		ttl:   ttl,
		locks: make(map[string]*sync.Mutex),
	}
}

type cacheEntry struct {
	Data      json.RawMessage `json:"data"`
	StoredAt  time.Time       `json:"stored_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

// Get retrieves a value from the disk cache
func (c *DiskCache) Get(key string) ([]byte, bool) {
	path := c.path(key)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry cacheEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}

	// Check expiration
	if entry.ExpiresAt != nil && time.Now().After(*entry.ExpiresAt) {
		_ = c.Delete(key)
		return nil, false
	}

	return entry.Data, true
}

// Set stores a value in the disk cache
func (c *DiskCache) Set(key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = c.ttl
	}

	now := time.Now().UTC()
	entry := cacheEntry{
		Data:     json.RawMessage(value),
		StoredAt: now,
	}
	if ttl > 0 {
		expires := now.Add(ttl)
		entry.ExpiresAt = &expires
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(c.dir, 0755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}

	lock := c.lock(key)
	lock.Lock()
	defer lock.Unlock()

	tmp, err := os.CreateTemp(c.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write cache file: %w", err)
	}
	if err := tmp.Chmod(0644); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod cache file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync cache file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close cache file: %w", err)
	}

	if err := os.Rename(tmpPath, c.path(key)); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}

	return nil
}

// Delete removes a value from the disk cache
func (c *DiskCache) Delete(key string) error {
	lock := c.lock(key)
	lock.Lock()
	defer lock.Unlock()

	if err := os.Remove(c.path(key)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Clear removes all cached files
func (c *DiskCache) Clear() error {
	return os.RemoveAll(c.dir)
}

// Keys lists stored keys in ascending file-name order
func (c *DiskCache) Keys() ([]string, error) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache dir: %w", err)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, diskSuffix) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, diskSuffix))
	}

	sort.Strings(keys)
	return keys, nil
}

// lock returns the mutex serializing writers of a single key
func (c *DiskCache) lock(key string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()

	l, ok := c.locks[key]
	if !ok {
		l = &sync.Mutex{}
		c.locks[key] = l
	}
	return l
}

// path generates the file path for a cache key
func (c *DiskCache) path(key string) string {
	return filepath.Join(c.dir, key+diskSuffix)
}
