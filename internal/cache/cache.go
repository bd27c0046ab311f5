package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// ErrNotFound is returned when a cache entry does not exist
var ErrNotFound = errors.New("cache entry not found")

// Cache defines the interface for caching
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
	// Keys lists live keys in ascending order
	Keys() ([]string, error)
}

// NormalizeKeywords folds, NFC-normalizes, trims and deduplicates a keyword
// set and returns it sorted. Empty keywords are dropped.
func NormalizeKeywords(keywords []string) []string {
	fold := cases.Fold()
	seen := make(map[string]bool)
	var out []string

	for _, kw := range keywords {
		k := fold.String(norm.NFC.String(strings.TrimSpace(kw)))
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}

	sort.Strings(out)
	return out
}

// KeySetID generates an order-independent cache key from a keyword set
func KeySetID(keywords []string) string {
	normalized := NormalizeKeywords(keywords)
	hash := sha256.Sum256([]byte(strings.Join(normalized, "\x1f")))
	return keySetPrefix + hex.EncodeToString(hash[:16])
}

const keySetPrefix = "kw-v1-"

// IsKeySetID reports whether id has the exact shape KeySetID produces
func IsKeySetID(id string) bool {
	rest, ok := strings.CutPrefix(id, keySetPrefix)
	if !ok || len(rest) != 32 {
		return false
	}
	_, err := hex.DecodeString(rest)
	return err == nil && strings.ToLower(rest) == rest
}

// ContainmentSimilarity returns |A∩B| / min(|A|,|B|) over normalized keyword
// sets. It is symmetric and returns 0 when either set is empty.
func ContainmentSimilarity(a, b []string) float64 {
	setA := NormalizeKeywords(a)
	setB := NormalizeKeywords(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	inA := make(map[string]bool, len(setA))
	for _, k := range setA {
		inA[k] = true
	}

	intersection := 0
	for _, k := range setB {
		if inA[k] {
			intersection++
		}
	}

	smaller := len(setA)
	if len(setB) < smaller {
		smaller = len(setB)
	}

	return float64(intersection) / float64(smaller)
}
