package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/claimtrust/internal/model"
)

// DefaultFloor is the minimum containment similarity for cache reuse
const DefaultFloor = 0.3

// Entry is one persisted keyword set and the articles collected for it
type Entry struct {
	ID       string          `json:"id"`
	Keywords []string        `json:"keywords"`
	Articles []model.Article `json:"articles"`
	StoredAt time.Time       `json:"stored_at"`
}

// FetchFunc retrieves fresh articles for a keyword set
type FetchFunc func(ctx context.Context, keywords []string) ([]model.Article, error)

// Resolution is the outcome of resolving a keyword set against the cache
type Resolution struct {
	Articles []model.Article
	Decision model.CacheDecision
}

// EvidenceCache reuses previously collected articles for similar keyword sets
type EvidenceCache struct {
	store  Cache
	floor  float64
	ttl    time.Duration
	logger zerolog.Logger

	rngMu sync.Mutex
	rng   *rand.Rand
}

// NewEvidenceCache creates an evidence cache over the given store
func NewEvidenceCache(store Cache, floor float64, ttl time.Duration, logger zerolog.Logger) *EvidenceCache {
	if floor < 0 || floor > 1 {
		floor = DefaultFloor
	}
	return &EvidenceCache{
		store:  store,
		floor:  floor,
		ttl:    ttl,
		logger: logger,
		rng:    rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x636c61696d)),
	}
}

// SetRand replaces the sampling source (used for reproducible runs)
func (c *EvidenceCache) SetRand(r *rand.Rand) {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()
	c.rng = r
}

// Entries returns all live entries in ascending key order.
// Entries that fail to decode are skipped.
func (c *EvidenceCache) Entries() ([]Entry, error) {
	keys, err := c.store.Keys()
	if err != nil {
		return nil, fmt.Errorf("list cache keys: %w", err)
	}

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entry, err := c.Get(key)
		if err != nil {
			c.logger.Debug().Str("key", key).Err(err).Msg("skipping unreadable cache entry")
			continue
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Get loads a single entry by its key-set identifier
func (c *EvidenceCache) Get(id string) (Entry, error) {
	data, ok := c.store.Get(id)
	if !ok {
		return Entry{}, ErrNotFound
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode entry %s: %w", id, err)
	}
	return entry, nil
}

// Match finds the entry most similar to keywords. Entries are scanned in
// ascending key order and a later entry only wins with a strictly greater
// similarity, so ties go to the first key. ok is false when nothing
// reaches the floor.
func (c *EvidenceCache) Match(keywords []string) (Entry, float64, bool, error) {
	entries, err := c.Entries()
	if err != nil {
		return Entry{}, 0, false, err
	}

	best := -1.0
	var bestEntry Entry
	for _, entry := range entries {
		sim := ContainmentSimilarity(keywords, entry.Keywords)
		if sim > best {
			best = sim
			bestEntry = entry
		}
	}

	if best < c.floor {
		return Entry{}, math.Max(best, 0), false, nil
	}
	return bestEntry, best, true, nil
}

// Resolve returns the article set for keywords, substituting cached
// articles according to the similarity of the best matching entry:
//   - similarity >= 1: cached articles are returned and fetch is not called
//   - floor <= similarity < 1: floor(similarity*len(fresh)) cached articles
//     replace the tail of the fresh list, deduplicated by URL with fresh
//     articles winning
//   - otherwise the fresh articles are returned unchanged
func (c *EvidenceCache) Resolve(ctx context.Context, keywords []string, fetch FetchFunc) (Resolution, error) {
	entry, sim, ok, err := c.Match(keywords)
	if err != nil {
		c.logger.Warn().Err(err).Msg("cache lookup failed, fetching fresh articles")
		ok = false
	}

	if ok && sim >= 1.0 {
		c.logger.Debug().Str("key", entry.ID).Int("articles", len(entry.Articles)).Msg("full cache reuse")
		return Resolution{
			Articles: cloneArticles(entry.Articles),
			Decision: model.CacheDecision{
				Kind:       model.CacheFull,
				MatchedKey: entry.ID,
				Similarity: sim,
				Reused:     len(entry.Articles),
			},
		}, nil
	}

	fresh, err := fetch(ctx, keywords)
	if err != nil {
		return Resolution{}, err
	}

	if !ok {
		return Resolution{
			Articles: fresh,
			Decision: model.CacheDecision{Kind: model.CacheMiss, Similarity: sim},
		}, nil
	}

	merged, reused := c.substitute(fresh, entry.Articles, sim)
	c.logger.Debug().
		Str("key", entry.ID).
		Float64("similarity", sim).
		Int("fresh", len(fresh)).
		Int("reused", reused).
		Msg("partial cache reuse")

	return Resolution{
		Articles: merged,
		Decision: model.CacheDecision{
			Kind:       model.CachePartial,
			MatchedKey: entry.ID,
			Similarity: sim,
			Reused:     reused,
		},
	}, nil
}

// substitute keeps the first len(fresh)-reuse fresh articles and appends
// reuse articles sampled without replacement from cached
func (c *EvidenceCache) substitute(fresh, cached []model.Article, sim float64) ([]model.Article, int) {
	total := len(fresh)
	reuse := int(math.Floor(sim * float64(total)))
	if reuse > len(cached) {
		reuse = len(cached)
	}

	picked := c.sample(len(cached), reuse)

	kept := model.DedupeArticles(fresh[:total-reuse])
	seen := make(map[string]bool, len(kept))
	for _, a := range kept {
		seen[a.URL] = true
	}

	merged := kept
	reused := 0
	for _, idx := range picked {
		a := cached[idx]
		if seen[a.URL] {
			continue
		}
		seen[a.URL] = true
		merged = append(merged, a)
		reused++
	}

	return cloneArticles(merged), reused
}

// sample returns k distinct indices in [0,n), in ascending order
func (c *EvidenceCache) sample(n, k int) []int {
	if k <= 0 || n == 0 {
		return nil
	}

	c.rngMu.Lock()
	perm := c.rng.Perm(n)
	c.rngMu.Unlock()

	picked := perm[:k]
	sort.Ints(picked)
	return picked
}

// Put persists the article list for a keyword set, replacing any previous
// entry for the same set
func (c *EvidenceCache) Put(keywords []string, articles []model.Article) error {
	if len(NormalizeKeywords(keywords)) == 0 {
		return fmt.Errorf("cannot cache empty keyword set")
	}

	id := KeySetID(keywords)
	entry := Entry{
		ID:       id,
		Keywords: NormalizeKeywords(keywords),
		Articles: articles,
		StoredAt: time.Now().UTC(),
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	if err := c.store.Set(id, data, c.ttl); err != nil {
		return fmt.Errorf("store entry %s: %w", id, err)
	}
	return nil
}

// Delete removes one entry
func (c *EvidenceCache) Delete(id string) error {
	return c.store.Delete(id)
}

// Clear removes every entry
func (c *EvidenceCache) Clear() error {
	return c.store.Clear()
}

// Prune removes entries stored before now-maxAge and returns how many
// were removed. A non-positive maxAge removes nothing.
func (c *EvidenceCache) Prune(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}

	entries, err := c.Entries()
	if err != nil {
		return 0, err
	}

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.StoredAt.Before(cutoff) {
			if err := c.store.Delete(entry.ID); err != nil {
				return removed, fmt.Errorf("delete %s: %w", entry.ID, err)
			}
			removed++
		}
	}

	return removed, nil
}

// cloneArticles copies the slice so callers can't alias cached entries
func cloneArticles(in []model.Article) []model.Article {
	out := make([]model.Article, len(in))
	copy(out, in)
	return out
}
