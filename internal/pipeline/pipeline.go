package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ppiankov/claimtrust/internal/cache"
	"github.com/ppiankov/claimtrust/internal/extract"
	"github.com/ppiankov/claimtrust/internal/model"
	"github.com/ppiankov/claimtrust/internal/nli"
	"github.com/ppiankov/claimtrust/internal/score"
	"github.com/ppiankov/claimtrust/internal/translate"
	"github.com/ppiankov/claimtrust/internal/validate"
)

// ErrModelFailure marks an embedding or NLI backend failure. The request is
// aborted rather than scored on partial judgements.
var ErrModelFailure = errors.New("model failure")

// Retriever collects articles for a keyword set
type Retriever interface {
	Collect(ctx context.Context, keywords []string, pages int) ([]model.Article, error)
}

// Deps are the service handles a pipeline runs on. They are built once per
// process and shared between requests.
type Deps struct {
	Ranker     *extract.KeywordRanker
	Retriever  Retriever
	Cache      *cache.EvidenceCache // nil disables article reuse
	Extractor  *extract.EvidenceExtractor
	Translator translate.Translator
	Entailment *nli.Scorer
	Scorer     *score.Scorer
	Sources    *validate.SourceClassifier // nil leaves article tiers unknown
	Logger     zerolog.Logger
}

// Options tune a pipeline
type Options struct {
	Pages  int    // Search result pages per attempt
	Target string // Translation target for NLI
}

// Pipeline orchestrates the verification of one claim at a time. Requests
// share nothing but the caches, so Verify is safe for concurrent use.
type Pipeline struct {
	deps   Deps
	opts   Options
	logger zerolog.Logger

	writes sync.WaitGroup
}

// New creates a pipeline over explicit service handles
func New(deps Deps, opts Options) *Pipeline {
	if opts.Pages <= 0 {
		opts.Pages = 1
	}
	if opts.Target == "" {
		opts.Target = "en"
	}
	if deps.Scorer == nil {
		deps.Scorer = score.NewScorer(score.DefaultSharpness)
	}
	return &Pipeline{deps: deps, opts: opts, logger: deps.Logger}
}

// Verify runs the complete verification for one claim. Degraded inputs
// (no articles, failed translation) produce an unverifiable verdict; only
// backend model failures and cancellation are returned as errors.
func (p *Pipeline) Verify(ctx context.Context, req model.VerifyRequest) (*model.Verdict, error) {
	verdict := &model.Verdict{
		RequestID: uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Status:    model.StatusUnverifiable,
		Claim:     model.Claim{Text: strings.TrimSpace(req.Claim)},
		Articles:  []model.ArticleRef{},
		Cache:     model.CacheDecision{Kind: model.CacheOff},
	}
	logger := p.logger.With().Str("request_id", verdict.RequestID).Logger()

	keywords := cleanKeywords(req.Keywords)
	if verdict.Claim.Text == "" || len(keywords) == 0 {
		verdict.Warnings = append(verdict.Warnings, "no claim or keywords to search with")
		verdict.Score = p.deps.Scorer.Calculate(nil)
		verdict.Explanation = explain(verdict)
		logger.Info().Msg("nothing to verify")
		return verdict, nil
	}

	// 1. Rank keywords against the video context
	ranked := keywords
	if !req.Context.IsEmpty() && p.deps.Ranker != nil {
		r, err := p.deps.Ranker.Rank(ctx, keywords, req.Context)
		if err != nil {
			return nil, fmt.Errorf("%w: rank keywords: %w", ErrModelFailure, err)
		}
		ranked = r
	}
	verdict.Claim.Keywords = ranked
	logger.Debug().Strs("keywords", ranked).Msg("keywords ranked")

	// 2. Relax the keyword set until retrieval yields articles
	articles, used, decision, err := p.relax(ctx, logger, ranked)
	if err != nil {
		return nil, err
	}
	verdict.Cache = decision
	if len(articles) == 0 {
		verdict.Warnings = append(verdict.Warnings, "no articles found for any keyword subset")
		verdict.Score = p.deps.Scorer.Calculate(nil)
		verdict.Explanation = explain(verdict)
		logger.Info().Msg("no articles, claim unverifiable")
		return verdict, nil
	}
	verdict.Claim.KeywordsUsed = used
	for _, a := range articles {
		verdict.Articles = append(verdict.Articles, a.Ref())
	}
	if p.deps.Sources != nil {
		p.deps.Sources.Annotate(verdict.Articles)
	}

	// 3. Translate the claim; without it there is no hypothesis
	claimEN, err := translate.One(ctx, p.deps.Translator, verdict.Claim.Text, p.opts.Target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Warn().Err(err).Msg("claim translation failed")
		verdict.Degraded = true
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf("claim could not be translated: %v", err))
		verdict.Score = p.deps.Scorer.Calculate(nil)
		verdict.Explanation = explain(verdict)
		return verdict, nil
	}
	verdict.Claim.TextEN = claimEN

	// 4. Select evidence sentences per article
	extraction, err := p.deps.Extractor.ExtractAll(ctx, verdict.Claim.Text, articles)
	if err != nil {
		return nil, fmt.Errorf("%w: extract evidence: %w", ErrModelFailure, err)
	}
	sentences := extraction.Sentences
	logger.Debug().Int("articles", len(articles)).Int("sentences", len(sentences)).Msg("evidence extracted")

	// 5. Translate evidence in one batch
	texts := make([]string, len(sentences))
	for i, s := range sentences {
		texts[i] = s.Sentence
	}
	translated, errs := translate.Each(ctx, p.deps.Translator, texts, p.opts.Target)
	untranslatable := 0
	for i := range sentences {
		if errs[i] != nil {
			sentences[i].Untranslatable = true
			untranslatable++
			continue
		}
		sentences[i].SentenceEN = translated[i]
	}
	if untranslatable > 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		verdict.Degraded = true
		verdict.Warnings = append(verdict.Warnings, fmt.Sprintf("%d evidence sentence(s) could not be translated", untranslatable))
		logger.Warn().Int("untranslatable", untranslatable).Msg("evidence translation degraded")
	}

	// 6. Judge each translated sentence against the claim
	if err := p.deps.Entailment.ScoreAll(ctx, claimEN, sentences); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrModelFailure, err)
	}
	verdict.Claim.CoreSentences = sentences

	// 7. Aggregate and pick the representative evidence
	verdict.Score = p.deps.Scorer.Calculate(sentences)
	selection := score.SelectBest(sentences, articles)
	if selection.Article != nil && p.deps.Sources != nil {
		selection.Article.Tier = p.deps.Sources.Classify(selection.Article.URL)
	}
	verdict.BestArticle = selection.Article
	verdict.BestExcerpt = selection.Excerpt

	if len(used) < len(ranked) {
		verdict.Score.Signals = append(verdict.Score.Signals, model.Signal{
			Type:        model.SignalRelaxedQuery,
			Severity:    model.SeverityInfo,
			Description: fmt.Sprintf("Articles found with %d of %d keywords", len(used), len(ranked)),
			Data: map[string]interface{}{
				"keywords_used": used,
				"keywords":      ranked,
			},
		})
	}

	if p.deps.Sources != nil {
		verdict.Score.Signals = append(verdict.Score.Signals, sourceSignal(verdict.Articles))
	}

	if verdict.Scored() {
		verdict.Status = model.StatusVerified
	} else {
		verdict.Warnings = append(verdict.Warnings, "no judged evidence sentences")
	}
	verdict.Explanation = explain(verdict)

	logger.Info().
		Str("status", string(verdict.Status)).
		Int("articles", len(articles)).
		Int("considered", verdict.Score.Considered).
		Str("cache", string(verdict.Cache.Kind)).
		Msg("verification complete")

	// 8. Remember the articles for similar keyword sets
	if verdict.Status == model.StatusVerified {
		p.Persist(used, withEmbeddings(articles, extraction.Embeddings))
	}

	return verdict, nil
}

// relax tries the ranked keyword prefix of length n, n-1, ... 1 and stops at
// the first non-empty article set. A failed attempt counts as empty.
func (p *Pipeline) relax(ctx context.Context, logger zerolog.Logger, ranked []string) ([]model.Article, []string, model.CacheDecision, error) {
	decision := model.CacheDecision{Kind: model.CacheOff}

	for k := len(ranked); k >= 1; k-- {
		subset := ranked[:k]

		res, err := p.retrieve(ctx, subset)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, decision, ctx.Err()
			}
			logger.Warn().Err(err).Strs("keywords", subset).Msg("retrieval failed, relaxing")
			continue
		}

		decision = res.Decision
		if len(res.Articles) > 0 {
			logger.Debug().Int("k", k).Int("articles", len(res.Articles)).Msg("articles retrieved")
			return res.Articles, append([]string(nil), subset...), decision, nil
		}
		logger.Debug().Int("k", k).Msg("no articles, relaxing")
	}

	return nil, nil, decision, nil
}

func (p *Pipeline) retrieve(ctx context.Context, keywords []string) (cache.Resolution, error) {
	fetch := func(ctx context.Context, keywords []string) ([]model.Article, error) {
		return p.deps.Retriever.Collect(ctx, keywords, p.opts.Pages)
	}

	if p.deps.Cache == nil {
		articles, err := fetch(ctx, keywords)
		if err != nil {
			return cache.Resolution{}, err
		}
		return cache.Resolution{Articles: articles, Decision: model.CacheDecision{Kind: model.CacheOff}}, nil
	}

	return p.deps.Cache.Resolve(ctx, keywords, fetch)
}

// Persist writes the article set for keywords in the background. Wait
// blocks until every pending write has finished.
func (p *Pipeline) Persist(keywords []string, articles []model.Article) {
	if p.deps.Cache == nil || len(articles) == 0 {
		return
	}

	p.writes.Add(1)
	go func() {
		defer p.writes.Done()
		if err := p.deps.Cache.Put(keywords, articles); err != nil {
			p.logger.Warn().Err(err).Strs("keywords", keywords).Msg("cache write failed")
			return
		}
		p.logger.Debug().Strs("keywords", keywords).Int("articles", len(articles)).Msg("articles cached")
	}()
}

// Wait blocks until background cache writes are done
func (p *Pipeline) Wait() {
	p.writes.Wait()
}

// withEmbeddings returns copies of the articles carrying their sentence vectors
func withEmbeddings(articles []model.Article, vectors [][][]float64) []model.Article {
	out := make([]model.Article, len(articles))
	for i, a := range articles {
		out[i] = a
		if i < len(vectors) && len(vectors[i]) == len(a.Sentences) {
			out[i].Embeddings = vectors[i]
		}
	}
	return out
}

// sourceSignal summarizes which kinds of outlets the evidence came from
func sourceSignal(refs []model.ArticleRef) model.Signal {
	counts := make(map[string]int)
	for _, r := range refs {
		counts[r.Tier.String()]++
	}

	severity := model.SeverityInfo
	if counts[model.TierOfficial.String()] == 0 && counts[model.TierPress.String()] == 0 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:     model.SignalSourceMix,
		Severity: severity,
		Description: fmt.Sprintf("%d official, %d press, %d other source(s)",
			counts[model.TierOfficial.String()], counts[model.TierPress.String()], counts[model.TierOther.String()]),
		Data: map[string]interface{}{
			"tiers": counts,
		},
	}
}

func cleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	seen := make(map[string]bool)
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

func explain(v *model.Verdict) string {
	if !v.Scored() {
		return fmt.Sprintf("%q: could not be verified", v.Claim.Text)
	}
	return fmt.Sprintf("%q: trust %.1f%%", v.Claim.Text, *v.Score.Value*100)
}
