package retrieve

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ppiankov/claimtrust/internal/model"
	"github.com/ppiankov/claimtrust/internal/worker"
)

// Collector searches for a keyword set and scrapes the hits into articles
type Collector struct {
	searcher *Searcher
	fetcher  *Fetcher
	scraper  *Scraper
	workers  int
	logger   zerolog.Logger
}

// NewCollector creates a new article collector
func NewCollector(searcher *Searcher, fetcher *Fetcher, workers int, logger zerolog.Logger) *Collector {
	if workers <= 0 {
		workers = 4
	}
	return &Collector{
		searcher: searcher,
		fetcher:  fetcher,
		scraper:  NewScraper(),
		workers:  workers,
		logger:   logger,
	}
}

type scrapeJob struct {
	hit Hit
	c   *Collector
}

type scrapeResult struct {
	article *model.Article
	err     error
}

func (r *scrapeResult) GetError() error {
	return r.err
}

func (j *scrapeJob) Execute(ctx context.Context) worker.Result {
	res, err := j.c.fetcher.FetchWithRetry(ctx, j.hit.URL)
	if err != nil {
		return &scrapeResult{err: err}
	}

	page, err := j.c.scraper.Scrape(res.HTML)
	if err != nil {
		return &scrapeResult{err: fmt.Errorf("scrape %s: %w", j.hit.URL, err)}
	}

	title := page.Title
	if title == "" {
		title = j.hit.Title
	}

	return &scrapeResult{article: &model.Article{
		Title:     title,
		URL:       res.FinalURL,
		Sentences: page.Sentences,
	}}
}

// Collect returns the articles found for the keywords, in search order.
// Pages that fail to fetch or contain no sentences are skipped; an empty
// slice means nothing was found. Only a failed search is an error.
func (c *Collector) Collect(ctx context.Context, keywords []string, pages int) ([]model.Article, error) {
	hits, err := c.searcher.Search(ctx, keywords, pages)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return []model.Article{}, nil
	}

	pool := worker.NewPoolWithContext(ctx, c.workers)
	pool.Start()
	for _, hit := range hits {
		pool.Submit(&scrapeJob{hit: hit, c: c})
	}
	results := pool.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	articles := make([]model.Article, 0, len(results))
	for i, r := range results {
		if r == nil {
			continue
		}
		sr := r.(*scrapeResult)
		if sr.err != nil {
			c.logger.Debug().Err(sr.err).Str("url", hits[i].URL).Msg("article skipped")
			continue
		}
		if len(sr.article.Sentences) == 0 {
			continue
		}
		articles = append(articles, *sr.article)
	}

	articles = model.DedupeArticles(articles)
	c.logger.Debug().
		Strs("keywords", keywords).
		Int("hits", len(hits)).
		Int("articles", len(articles)).
		Msg("collected articles")

	return articles, nil
}
