package pipeline

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/claimtrust/internal/cache"
	"github.com/ppiankov/claimtrust/internal/embed"
	"github.com/ppiankov/claimtrust/internal/extract"
	"github.com/ppiankov/claimtrust/internal/llm"
	"github.com/ppiankov/claimtrust/internal/model"
	"github.com/ppiankov/claimtrust/internal/nli"
	"github.com/ppiankov/claimtrust/internal/retrieve"
	"github.com/ppiankov/claimtrust/internal/score"
	"github.com/ppiankov/claimtrust/internal/translate"
	"github.com/ppiankov/claimtrust/internal/validate"
	"github.com/ppiankov/claimtrust/internal/worker"
)

// NewPipeline builds every service handle from configuration. The
// embedding and NLI backends are created here once and shared by all
// requests run on the returned pipeline.
func NewPipeline(cfg *model.Config, logger zerolog.Logger) (*Pipeline, error) {
	embedder, err := embed.NewEmbedder(cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("embedding backend: %w", err)
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}

	classifier, err := nli.NewClassifier(cfg.NLI, provider)
	if err != nil {
		return nil, fmt.Errorf("nli backend: %w", err)
	}

	translator, err := translate.NewGoogleTranslator(cfg.Translate)
	if err != nil {
		return nil, fmt.Errorf("translator: %w", err)
	}

	target, err := translate.ParseTarget(cfg.Translate.Target)
	if err != nil {
		return nil, err
	}

	limiter := worker.NewLimiterFromConfig(cfg.RateLimiting)
	fetcher := retrieve.NewFetcher(cfg.HTTP, limiter)
	searcher := retrieve.NewSearcher(cfg.Search, fetcher)
	collector := retrieve.NewCollector(searcher, fetcher, cfg.Concurrency.Workers, logger)

	var evidenceCache *cache.EvidenceCache
	if cfg.Cache.Enabled {
		evidenceCache = NewEvidenceCache(cfg.Cache, logger)
	}

	memo := embed.NewMemo(memoTTL(cfg.Cache.MemoryTTL))

	deps := Deps{
		Ranker:     extract.NewKeywordRanker(embedder),
		Retriever:  collector,
		Cache:      evidenceCache,
		Extractor:  extract.NewEvidenceExtractor(embedder, memo, cfg.Scoring.SimilarityFloor, cfg.Scoring.TopK),
		Translator: translator,
		Entailment: nli.NewScorer(classifier, logger),
		Scorer:     score.NewScorer(cfg.Scoring.Sharpness),
		Sources:    validate.NewSourceClassifier(&cfg.Sources),
		Logger:     logger,
	}

	logger.Debug().
		Str("embedder", embedder.Name()).
		Str("nli", classifier.Name()).
		Bool("cache", cfg.Cache.Enabled).
		Msg("pipeline ready")

	return New(deps, Options{Pages: cfg.Search.Pages, Target: target}), nil
}

// NewEvidenceCache opens the on-disk article cache described by cfg
func NewEvidenceCache(cfg model.CacheConfig, logger zerolog.Logger) *cache.EvidenceCache {
	store := cache.NewLayeredCache(memoTTL(cfg.MemoryTTL), cfg.Dir, 0)
	return cache.NewEvidenceCache(store, cfg.Floor, 0, logger)
}

func memoTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 30 * time.Minute
	}
	return ttl
}
