package extract

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/claimtrust/internal/embed"
	"github.com/ppiankov/claimtrust/internal/llm"
	"github.com/ppiankov/claimtrust/internal/model"
)

// mapEmbedder returns fixed vectors per text; unknown texts get [0, 0, 1]
type mapEmbedder struct {
	vectors map[string][]float64
	calls   int
	err     error
}

func (m *mapEmbedder) Name() string { return "map" }

func (m *mapEmbedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		if v, ok := m.vectors[t]; ok {
			out[i] = v
		} else {
			out[i] = []float64{0, 0, 1}
		}
	}
	return out, nil
}

// unit returns a 3-d vector with the given cosine to [1, 0, 0]
func unit(cos float64) []float64 {
	return []float64{cos, math.Sqrt(1 - cos*cos), 0}
}

func TestKeywordRanker_Rank(t *testing.T) {
	vctx := model.VideoContext{Title: "관세 전쟁", Description: "미중 무역", Hashtags: []string{"#관세"}}
	e := &mapEmbedder{vectors: map[string][]float64{
		vctx.Corpus(): {1, 0, 0},
		"관세":          unit(0.9),
		"중국":          unit(0.2),
		"수출":          unit(0.6),
	}}

	ranked, err := NewKeywordRanker(e).Rank(context.Background(), []string{"관세", "중국", "수출"}, vctx)
	if err != nil {
		t.Fatalf("Rank failed: %v", err)
	}

	expected := []string{"관세", "수출", "중국"}
	for i := range expected {
		if ranked[i] != expected[i] {
			t.Fatalf("Expected %v, got %v", expected, ranked)
		}
	}
	if e.calls != 1 {
		t.Errorf("Expected a single batched embed call, got %d", e.calls)
	}
}

func TestKeywordRanker_PermutationAndStableTies(t *testing.T) {
	e := &mapEmbedder{vectors: map[string][]float64{
		"a": unit(0.5), "b": unit(0.7), "c": unit(0.5), "d": unit(0.5),
	}}
	e.vectors[model.VideoContext{}.Corpus()] = []float64{1, 0, 0}

	scored, err := NewKeywordRanker(e).RankScored(context.Background(), []string{"a", "b", "c", "d"}, model.VideoContext{})
	if err != nil {
		t.Fatalf("RankScored failed: %v", err)
	}

	expected := []string{"b", "a", "c", "d"}
	for i := range expected {
		if scored[i].Keyword != expected[i] {
			t.Errorf("Position %d: expected %s, got %s", i, expected[i], scored[i].Keyword)
		}
		if i > 0 && scored[i].Similarity > scored[i-1].Similarity {
			t.Errorf("Similarity increased at position %d", i)
		}
	}
}

func TestKeywordRanker_Empty(t *testing.T) {
	e := &mapEmbedder{}
	ranked, err := NewKeywordRanker(e).Rank(context.Background(), nil, model.VideoContext{})
	if err != nil || len(ranked) != 0 {
		t.Errorf("Expected empty result, got %v (%v)", ranked, err)
	}
	if e.calls != 0 {
		t.Errorf("Expected no embed calls, got %d", e.calls)
	}
}

func TestKeywordRanker_EmbedError(t *testing.T) {
	e := &mapEmbedder{err: errors.New("model offline")}
	if _, err := NewKeywordRanker(e).Rank(context.Background(), []string{"a"}, model.VideoContext{}); err == nil {
		t.Error("Expected embed error to propagate")
	}
}

func claimEmbedder(sims map[string]float64) *mapEmbedder {
	e := &mapEmbedder{vectors: map[string][]float64{"claim": {1, 0, 0}}}
	for s, cos := range sims {
		e.vectors[s] = unit(cos)
	}
	return e
}

func TestEvidenceExtractor_FloorAndTopK(t *testing.T) {
	e := claimEmbedder(map[string]float64{
		"s0": 0.45, // below floor, never included
		"s1": 0.7,
		"s2": 0.9,
		"s3": 0.5, // exactly at floor
		"s4": 0.8,
	})
	x := NewEvidenceExtractor(e, nil, DefaultSimilarityFloor, DefaultTopK)

	claimVec, _ := embed.EmbedOne(context.Background(), e, "claim")
	scored, vecs, err := x.Extract(context.Background(), claimVec, model.Article{
		URL:       "https://news.example.com/1",
		Sentences: []string{"s0", "s1", "s2", "s3", "s4"},
	})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	expected := []string{"s2", "s4", "s1"}
	if len(scored) != len(expected) {
		t.Fatalf("Expected %d sentences, got %+v", len(expected), scored)
	}
	for i := range expected {
		if scored[i].Sentence != expected[i] {
			t.Errorf("Position %d: expected %s, got %s", i, expected[i], scored[i].Sentence)
		}
	}
	if len(vecs) != 5 {
		t.Errorf("Expected embeddings for all 5 sentences, got %d", len(vecs))
	}
}

func TestEvidenceExtractor_BelowFloorExcluded(t *testing.T) {
	e := claimEmbedder(map[string]float64{"lexically relevant": 0.45})
	x := NewEvidenceExtractor(e, nil, DefaultSimilarityFloor, DefaultTopK)

	claimVec, _ := embed.EmbedOne(context.Background(), e, "claim")
	scored, _, err := x.Extract(context.Background(), claimVec, model.Article{Sentences: []string{"lexically relevant"}})
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(scored) != 0 {
		t.Errorf("Expected no sentences, got %+v", scored)
	}
}

func TestEvidenceExtractor_StableTies(t *testing.T) {
	e := claimEmbedder(map[string]float64{"first": 0.6, "second": 0.6, "third": 0.6, "fourth": 0.6})
	x := NewEvidenceExtractor(e, nil, DefaultSimilarityFloor, DefaultTopK)

	claimVec, _ := embed.EmbedOne(context.Background(), e, "claim")
	scored, _, _ := x.Extract(context.Background(), claimVec, model.Article{Sentences: []string{"first", "second", "third", "fourth"}})

	if len(scored) != 3 || scored[0].Sentence != "first" || scored[2].Sentence != "third" {
		t.Errorf("Expected first three in article order, got %+v", scored)
	}
}

func TestEvidenceExtractor_UsesCachedEmbeddings(t *testing.T) {
	e := claimEmbedder(nil)
	x := NewEvidenceExtractor(e, nil, DefaultSimilarityFloor, DefaultTopK)

	article := model.Article{
		Sentences:  []string{"cached"},
		Embeddings: [][]float64{unit(0.95)},
	}
	claimVec := []float64{1, 0, 0}

	scored, _, err := x.Extract(context.Background(), claimVec, article)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if e.calls != 0 {
		t.Errorf("Expected no embed calls with cached vectors, got %d", e.calls)
	}
	if len(scored) != 1 || math.Abs(scored[0].Similarity-0.95) > 1e-9 {
		t.Errorf("Unexpected result: %+v", scored)
	}
}

func TestEvidenceExtractor_ReembedsCachedVectorsOfOtherDimension(t *testing.T) {
	e := claimEmbedder(map[string]float64{"same as claim": 1})
	x := NewEvidenceExtractor(e, embed.NewMemo(time.Minute), DefaultSimilarityFloor, DefaultTopK)

	// Vectors left in the cache by an earlier 2-d model
	article := model.Article{
		URL:        "https://news.example.com/stale",
		Sentences:  []string{"same as claim"},
		Embeddings: [][]float64{{1, 0}},
	}

	extraction, err := x.ExtractAll(context.Background(), "claim", []model.Article{article})
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}
	if len(extraction.Sentences) != 1 {
		t.Fatalf("Expected 1 sentence after re-embedding, got %d", len(extraction.Sentences))
	}
	if e.calls != 2 {
		t.Errorf("Expected claim and sentence embed calls, got %d", e.calls)
	}
	if got := len(extraction.Embeddings[0][0]); got != 3 {
		t.Errorf("Expected refreshed 3-d vectors for caching, got %d-d", got)
	}
}

func TestEvidenceExtractor_RaggedCachedVectorsRecomputed(t *testing.T) {
	e := claimEmbedder(map[string]float64{"a": 0.9, "b": 0.8})
	x := NewEvidenceExtractor(e, nil, DefaultSimilarityFloor, DefaultTopK)

	article := model.Article{
		Sentences:  []string{"a", "b"},
		Embeddings: [][]float64{unit(0.9), {0.8, 0.6}},
	}

	scored, _, err := x.Extract(context.Background(), []float64{1, 0, 0}, article)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if e.calls != 1 {
		t.Errorf("Expected one embed call for mismatched cache, got %d", e.calls)
	}
	if len(scored) != 2 {
		t.Errorf("Expected 2 sentences, got %d", len(scored))
	}
}

func TestEvidenceExtractor_FreshDimensionMismatchIsError(t *testing.T) {
	e := &mapEmbedder{vectors: map[string][]float64{"s": {1, 0}}}
	x := NewEvidenceExtractor(e, nil, DefaultSimilarityFloor, DefaultTopK)

	_, _, err := x.Extract(context.Background(), []float64{1, 0, 0}, model.Article{Sentences: []string{"s"}})
	if err == nil {
		t.Error("Expected error when the embedder returns vectors of another dimension")
	}
}

func TestArticle_EmbeddingsFit(t *testing.T) {
	a := model.Article{Sentences: []string{"x", "y"}, Embeddings: [][]float64{{1, 0}, {0, 1}}}
	if !a.EmbeddingsFit(2) {
		t.Error("Expected 2-d vectors to fit dimension 2")
	}
	if a.EmbeddingsFit(3) {
		t.Error("Expected 2-d vectors not to fit dimension 3")
	}
	if a.EmbeddingsFit(0) {
		t.Error("Expected dimension 0 never to fit")
	}
}

func TestEvidenceExtractor_MemoizesByURL(t *testing.T) {
	e := claimEmbedder(map[string]float64{"s": 0.8})
	x := NewEvidenceExtractor(e, embed.NewMemo(time.Minute), DefaultSimilarityFloor, DefaultTopK)
	article := model.Article{URL: "https://news.example.com/a", Sentences: []string{"s"}}

	for i := 0; i < 3; i++ {
		if _, _, err := x.Extract(context.Background(), []float64{1, 0, 0}, article); err != nil {
			t.Fatalf("Extract failed: %v", err)
		}
	}
	if e.calls != 1 {
		t.Errorf("Expected sentence embeddings computed once, got %d calls", e.calls)
	}
}

func TestEvidenceExtractor_ExtractAll(t *testing.T) {
	e := claimEmbedder(map[string]float64{"a1": 0.9, "a2": 0.3, "b1": 0.7})
	x := NewEvidenceExtractor(e, nil, DefaultSimilarityFloor, DefaultTopK)

	articles := []model.Article{
		{URL: "https://a", Sentences: []string{"a1", "a2"}},
		{URL: "https://empty", Sentences: nil},
		{URL: "https://b", Sentences: []string{"b1"}},
	}

	out, err := x.ExtractAll(context.Background(), "claim", articles)
	if err != nil {
		t.Fatalf("ExtractAll failed: %v", err)
	}
	if len(out.Sentences) != 2 {
		t.Fatalf("Expected 2 core sentences, got %+v", out.Sentences)
	}
	if out.Sentences[0].ArticleIndex != 0 || out.Sentences[1].ArticleIndex != 2 {
		t.Errorf("Unexpected article indices: %+v", out.Sentences)
	}
	for _, s := range out.Sentences {
		if s.Similarity < DefaultSimilarityFloor {
			t.Errorf("Sentence below floor materialized: %+v", s)
		}
	}
	if len(out.Embeddings) != 3 || out.Embeddings[1] != nil {
		t.Errorf("Unexpected embeddings layout: %d", len(out.Embeddings))
	}
}

func TestEvidenceExtractor_ExtractAll_ModelFailure(t *testing.T) {
	e := &mapEmbedder{err: errors.New("embedding backend down")}
	x := NewEvidenceExtractor(e, nil, DefaultSimilarityFloor, DefaultTopK)

	_, err := x.ExtractAll(context.Background(), "claim", []model.Article{{Sentences: []string{"x"}}})
	if err == nil {
		t.Error("Expected error, got nil")
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected []string
	}{
		{
			"basic",
			"Tariffs rose.  Exports fell!\nWhy? Nobody knows",
			[]string{"Tariffs rose.", "Exports fell!", "Why?", "Nobody knows"},
		},
		{
			"abbreviations",
			"Mr. Kim met Dr. Lee in the U.S. yesterday. J. Smith agreed.",
			[]string{"Mr. Kim met Dr. Lee in the U.S. yesterday.", "J. Smith agreed."},
		},
		{
			"decimals",
			"Growth was 2.5% last year. It slowed.",
			[]string{"Growth was 2.5% last year.", "It slowed."},
		},
		{
			"korean",
			"정부는 관세를 인상했다. 수출이 감소했다.",
			[]string{"정부는 관세를 인상했다.", "수출이 감소했다."},
		},
		{
			"cjk full stop",
			"关税上涨了。出口下降了。",
			[]string{"关税上涨了。", "出口下降了。"},
		},
		{
			"empty",
			"   ",
			nil,
		},
	}

	for _, tt := range tests {
		got := SplitSentences(tt.text)
		if len(got) != len(tt.expected) {
			t.Errorf("%s: expected %d sentences %v, got %d %v", tt.name, len(tt.expected), tt.expected, len(got), got)
			continue
		}
		for i := range got {
			if got[i] != tt.expected[i] {
				t.Errorf("%s: sentence %d expected %q, got %q", tt.name, i, tt.expected[i], got[i])
			}
		}
	}
}

type fakeProvider struct {
	text string
	err  error
	last llm.CompletionRequest
}

func (f *fakeProvider) Name() string                   { return "fake" }
func (f *fakeProvider) Ping(ctx context.Context) error { return nil }
func (f *fakeProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	f.last = req
	if f.err != nil {
		return nil, f.err
	}
	return &llm.CompletionResponse{Text: f.text}, nil
}

func TestClaimExtractor_Extract(t *testing.T) {
	p := &fakeProvider{text: "```json\n" + `{"claims": [
		{"claim": " 정부가 중국산 제품 관세를 올렸다 ", "keywords": ["관세", "중국", " ", "관세", "수출", "정부", "인상", "무역", "제품"]},
		{"claim": "", "keywords": ["x"]},
		{"claim": "그냥 의견", "keywords": []}
	]}` + "\n```"}
	x := NewClaimExtractor(p, zerolog.Nop())

	vctx := model.VideoContext{Title: "관세 뉴스", Hashtags: []string{"#경제"}}
	claims, err := x.Extract(context.Background(), "관세 올렸다던데?", vctx, 6)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(claims) != 2 {
		t.Fatalf("Expected 2 claims, got %+v", claims)
	}
	if claims[0].Text != "정부가 중국산 제품 관세를 올렸다" {
		t.Errorf("Unexpected claim text: %q", claims[0].Text)
	}
	if len(claims[0].Keywords) != 6 || claims[0].Keywords[2] != "수출" {
		t.Errorf("Expected 6 deduplicated keywords, got %v", claims[0].Keywords)
	}
	if claims[1].Verifiable() {
		t.Error("Expected claim without keywords to be unverifiable")
	}
	if !p.last.JSON {
		t.Error("Expected JSON completion request")
	}
}

func TestClaimExtractor_KeywordOnlyAnswer(t *testing.T) {
	x := NewClaimExtractor(&fakeProvider{text: `{"keywords": ["관세", "중국"], "topic": "무역"}`}, zerolog.Nop())

	claims, err := x.Extract(context.Background(), "중국 관세 올랐대", model.VideoContext{}, 6)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if len(claims) != 1 || claims[0].Text != "중국 관세 올랐대" || len(claims[0].Keywords) != 2 {
		t.Errorf("Unexpected claims: %+v", claims)
	}
}

func TestClaimExtractor_Unparseable(t *testing.T) {
	for _, answer := range []string{"sorry, I cannot help", `{"claims": "none"}`, `[1, 2]`} {
		x := NewClaimExtractor(&fakeProvider{text: answer}, zerolog.Nop())
		claims, err := x.Extract(context.Background(), "comment", model.VideoContext{}, 6)
		if err != nil {
			t.Errorf("%q: expected no error, got %v", answer, err)
		}
		if len(claims) != 0 {
			t.Errorf("%q: expected no claims, got %+v", answer, claims)
		}
	}
}

func TestClaimExtractor_ProviderError(t *testing.T) {
	x := NewClaimExtractor(&fakeProvider{err: errors.New("quota exceeded")}, zerolog.Nop())
	if _, err := x.Extract(context.Background(), "comment", model.VideoContext{}, 6); err == nil {
		t.Error("Expected provider error, got nil")
	}
}

func TestClaimExtractor_ExtractBatch(t *testing.T) {
	x := NewClaimExtractor(&fakeProvider{text: `{"claims": [{"claim": "c", "keywords": ["k"]}]}`}, zerolog.Nop())

	out, err := x.ExtractBatch(context.Background(), []string{"one", "", "three"}, model.VideoContext{}, 6)
	if err != nil {
		t.Fatalf("ExtractBatch failed: %v", err)
	}
	if len(out) != 3 || len(out[0]) != 1 || len(out[1]) != 0 || len(out[2]) != 1 {
		t.Errorf("Unexpected batch result: %+v", out)
	}
}
