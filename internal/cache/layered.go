package cache

import "time"

// LayeredCache implements a multi-layer cache (memory + disk).
// Disk is the source of truth; memory only short-circuits reads.
type LayeredCache struct {
	memory *MemoryCache
	disk   *DiskCache
}

// NewLayeredCache creates a new layered cache
func NewLayeredCache(memoryTTL time.Duration, diskDir string, diskTTL time.Duration) *LayeredCache {
	return &LayeredCache{
		memory: NewMemoryCache(memoryTTL, 10*time.Minute),
		disk:   NewDiskCache(diskDir, diskTTL),
	}
}

// Get retrieves a value from the cache (checks memory first, then disk)
func (c *LayeredCache) Get(key string) ([]byte, bool) {
	// Check memory cache first
	if val, found := c.memory.Get(key); found {
		return val, true
	}

	// Check disk cache
	if val, found := c.disk.Get(key); found {
		// Promote to memory cache
		_ = c.memory.Set(key, val, 0) // Use default TTL
		return val, true
	}

	return nil, false
}

// Set stores a value in both caches. Disk is written first so memory
// never holds an entry that failed to persist.
func (c *LayeredCache) Set(key string, value []byte, ttl time.Duration) error {
	if err := c.disk.Set(key, value, ttl); err != nil {
		return err
	}
	return c.memory.Set(key, value, 0)
}

// Delete removes a value from both caches
func (c *LayeredCache) Delete(key string) error {
	_ = c.memory.Delete(key)
	return c.disk.Delete(key)
}

// Clear removes all values from both caches
func (c *LayeredCache) Clear() error {
	_ = c.memory.Clear()
	return c.disk.Clear()
}

// Keys lists the keys persisted on disk
func (c *LayeredCache) Keys() ([]string, error) {
	return c.disk.Keys()
}
