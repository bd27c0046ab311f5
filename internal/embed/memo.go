package embed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Memo memoizes sentence embeddings per article URL so repeated queries
// over the same article skip recomputation. Entries are keyed by URL and
// verified against a digest of the sentences, so an article whose text
// changed is re-embedded.
type Memo struct {
	cache *gocache.Cache
}

type memoEntry struct {
	digest  string
	vectors [][]float64
}

// NewMemo creates an embedding memo whose entries expire after ttl
func NewMemo(ttl time.Duration) *Memo {
	return &Memo{cache: gocache.New(ttl, 10*time.Minute)}
}

// Get returns memoized vectors for the article at url
func (m *Memo) Get(url string, sentences []string) ([][]float64, bool) {
	val, ok := m.cache.Get(url)
	if !ok {
		return nil, false
	}
	entry := val.(memoEntry)
	if entry.digest != digest(sentences) || len(entry.vectors) != len(sentences) {
		return nil, false
	}
	return entry.vectors, true
}

// Put memoizes vectors for the article at url
func (m *Memo) Put(url string, sentences []string, vectors [][]float64) {
	if url == "" {
		return
	}
	m.cache.SetDefault(url, memoEntry{digest: digest(sentences), vectors: vectors})
}

// Sentences returns embeddings for an article's sentences, computing them
// at most once per URL. The second return value reports a memo hit.
func (m *Memo) Sentences(ctx context.Context, e Embedder, url string, sentences []string) ([][]float64, bool, error) {
	if vecs, ok := m.Get(url, sentences); ok {
		return vecs, true, nil
	}

	vecs, err := e.Embed(ctx, sentences)
	if err != nil {
		return nil, false, err
	}
	if err := checkCount(vecs, len(sentences)); err != nil {
		return nil, false, err
	}

	m.Put(url, sentences, vecs)
	return vecs, false, nil
}

// Len returns the number of memoized articles
func (m *Memo) Len() int {
	return m.cache.ItemCount()
}

func digest(sentences []string) string {
	h := sha256.Sum256([]byte(strings.Join(sentences, "\n")))
	return hex.EncodeToString(h[:8])
}
