// Package extract turns claims, keywords and articles into ranked, scored
// evidence candidates.
package extract

import (
	"context"
	"fmt"
	"sort"

	"github.com/ppiankov/claimtrust/internal/embed"
	"github.com/ppiankov/claimtrust/internal/model"
)

// RankedKeyword is a keyword with its similarity to the context
type RankedKeyword struct {
	Keyword    string  `json:"keyword"`
	Similarity float64 `json:"similarity"`
}

// KeywordRanker orders keywords by relevance to the context a comment was
// posted under
type KeywordRanker struct {
	embedder embed.Embedder
}

// NewKeywordRanker creates a new keyword ranker
func NewKeywordRanker(embedder embed.Embedder) *KeywordRanker {
	return &KeywordRanker{embedder: embedder}
}

// Rank returns the keywords most contextually relevant first. The output is
// a permutation of the input; equal similarities keep input order.
func (r *KeywordRanker) Rank(ctx context.Context, keywords []string, vctx model.VideoContext) ([]string, error) {
	scored, err := r.RankScored(ctx, keywords, vctx)
	if err != nil {
		return nil, err
	}

	ranked := make([]string, len(scored))
	for i, s := range scored {
		ranked[i] = s.Keyword
	}
	return ranked, nil
}

// RankScored is Rank with the similarity of each keyword
func (r *KeywordRanker) RankScored(ctx context.Context, keywords []string, vctx model.VideoContext) ([]RankedKeyword, error) {
	if len(keywords) == 0 {
		return []RankedKeyword{}, nil
	}

	// Context first, then every keyword, in one call
	texts := make([]string, 0, len(keywords)+1)
	texts = append(texts, vctx.Corpus())
	texts = append(texts, keywords...)

	vecs, err := r.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed keywords: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("embed keywords: expected %d vectors, got %d", len(texts), len(vecs))
	}

	scored := make([]RankedKeyword, len(keywords))
	for i, kw := range keywords {
		scored[i] = RankedKeyword{Keyword: kw, Similarity: embed.Cosine(vecs[0], vecs[i+1])}
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Similarity > scored[b].Similarity
	})

	return scored, nil
}
