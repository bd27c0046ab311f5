// Package embed provides sentence embedding backends and vector math.
package embed

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/ppiankov/claimtrust/internal/model"
)

// Embedder turns texts into fixed-dimension vectors
type Embedder interface {
	// Name returns the backend name
	Name() string

	// Embed returns one vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// NewEmbedder creates an embedding backend based on configuration
func NewEmbedder(cfg model.EmbeddingConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return NewOpenAIEmbedder(cfg)
	case "ollama", "":
		return NewOllamaEmbedder(cfg)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: openai, ollama)", cfg.Provider)
	}
}

// EmbedOne embeds a single text
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float64, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

// Cosine returns the cosine similarity of two vectors. Mismatched lengths
// and zero vectors yield 0.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// checkCount verifies a backend returned one vector per input
func checkCount(vecs [][]float64, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", want, len(vecs))
	}
	for i, v := range vecs {
		if len(v) == 0 {
			return fmt.Errorf("embedding %d is empty", i)
		}
	}
	return nil
}
