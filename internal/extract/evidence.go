package extract

import (
	"context"
	"fmt"
	"sort"

	"github.com/ppiankov/claimtrust/internal/embed"
	"github.com/ppiankov/claimtrust/internal/model"
)

const (
	// DefaultSimilarityFloor is the minimum cosine similarity for evidence
	DefaultSimilarityFloor = 0.5

	// DefaultTopK is the number of sentences kept per article
	DefaultTopK = 3
)

// Scored is a sentence with its similarity to the claim
type Scored struct {
	Sentence   string
	Similarity float64
	Index      int // Position in the article's sentence list
}

// Extraction is the evidence found across a claim's articles
type Extraction struct {
	Sentences  []model.CoreSentence
	Embeddings [][][]float64 // Per article, aligned with Article.Sentences
}

// EvidenceExtractor selects the sentences of an article closest to a claim
type EvidenceExtractor struct {
	embedder embed.Embedder
	memo     *embed.Memo
	floor    float64
	topK     int
}

// NewEvidenceExtractor creates a new evidence extractor. memo may be nil.
func NewEvidenceExtractor(embedder embed.Embedder, memo *embed.Memo, floor float64, topK int) *EvidenceExtractor {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &EvidenceExtractor{
		embedder: embedder,
		memo:     memo,
		floor:    floor,
		topK:     topK,
	}
}

// Extract returns up to topK sentences of the article with similarity at or
// above the floor, most similar first (ties keep article order), plus the
// article's sentence embeddings for caching.
func (x *EvidenceExtractor) Extract(ctx context.Context, claimVec []float64, article model.Article) ([]Scored, [][]float64, error) {
	if len(article.Sentences) == 0 {
		return []Scored{}, nil, nil
	}

	vecs, err := x.sentenceVectors(ctx, article, len(claimVec))
	if err != nil {
		return nil, nil, err
	}
	for i, v := range vecs {
		if len(v) != len(claimVec) {
			return nil, nil, fmt.Errorf("sentence %d: embedding dimension %d, claim has %d", i, len(v), len(claimVec))
		}
	}

	var scored []Scored
	for i, s := range article.Sentences {
		sim := embed.Cosine(claimVec, vecs[i])
		if sim < x.floor {
			continue
		}
		scored = append(scored, Scored{Sentence: s, Similarity: sim, Index: i})
	}

	sort.SliceStable(scored, func(a, b int) bool {
		return scored[a].Similarity > scored[b].Similarity
	})

	if len(scored) > x.topK {
		scored = scored[:x.topK]
	}
	if scored == nil {
		scored = []Scored{}
	}

	return scored, vecs, nil
}

// ExtractAll embeds the claim once and extracts evidence from every
// article. CoreSentences carry the index of their article.
func (x *EvidenceExtractor) ExtractAll(ctx context.Context, claim string, articles []model.Article) (*Extraction, error) {
	out := &Extraction{
		Sentences:  []model.CoreSentence{},
		Embeddings: make([][][]float64, len(articles)),
	}
	if len(articles) == 0 {
		return out, nil
	}

	claimVec, err := embed.EmbedOne(ctx, x.embedder, claim)
	if err != nil {
		return nil, fmt.Errorf("embed claim: %w", err)
	}

	for i, article := range articles {
		scored, vecs, err := x.Extract(ctx, claimVec, article)
		if err != nil {
			return nil, fmt.Errorf("article %d (%s): %w", i, article.URL, err)
		}
		out.Embeddings[i] = vecs

		for _, s := range scored {
			out.Sentences = append(out.Sentences, model.CoreSentence{
				Sentence:     s.Sentence,
				Similarity:   s.Similarity,
				ArticleIndex: i,
			})
		}
	}

	return out, nil
}

// sentenceVectors prefers vectors stored with a cached article, then the
// memo, and only then the embedder. Cached vectors of another dimension
// were made by a different model and are recomputed.
func (x *EvidenceExtractor) sentenceVectors(ctx context.Context, article model.Article, dim int) ([][]float64, error) {
	if article.EmbeddingsFit(dim) {
		return article.Embeddings, nil
	}

	if x.memo != nil && article.URL != "" {
		vecs, _, err := x.memo.Sentences(ctx, x.embedder, article.URL, article.Sentences)
		if err != nil {
			return nil, fmt.Errorf("embed sentences: %w", err)
		}
		return vecs, nil
	}

	vecs, err := x.embedder.Embed(ctx, article.Sentences)
	if err != nil {
		return nil, fmt.Errorf("embed sentences: %w", err)
	}
	if len(vecs) != len(article.Sentences) {
		return nil, fmt.Errorf("embed sentences: expected %d vectors, got %d", len(article.Sentences), len(vecs))
	}
	return vecs, nil
}
