package retrieve

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/ppiankov/claimtrust/internal/model"
)

// itemsPerPage mirrors a results page of the news search UI
const itemsPerPage = 10

// Hit is one search result
type Hit struct {
	Title     string
	URL       string
	Published *time.Time
}

// Searcher queries a news RSS search endpoint (Google News by default)
type Searcher struct {
	endpoint string
	language string
	region   string
	fetcher  *Fetcher
	parser   *gofeed.Parser
}

// NewSearcher creates a new news searcher
func NewSearcher(cfg model.SearchConfig, fetcher *Fetcher) *Searcher {
	return &Searcher{
		endpoint: cfg.Endpoint,
		language: cfg.Language,
		region:   cfg.Region,
		fetcher:  fetcher,
		parser:   gofeed.NewParser(),
	}
}

// QueryURL builds the feed URL for a keyword set
func (s *Searcher) QueryURL(keywords []string) (string, error) {
	u, err := url.Parse(s.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse search endpoint: %w", err)
	}

	q := u.Query()
	q.Set("q", strings.Join(keywords, " "))
	q.Set("hl", s.language)
	q.Set("gl", s.region)
	q.Set("ceid", s.region+":"+s.language)
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// Search returns up to pages×10 hits for the keywords, in feed order.
// An empty result is not an error.
func (s *Searcher) Search(ctx context.Context, keywords []string, pages int) ([]Hit, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if pages < 1 {
		pages = 1
	}

	feedURL, err := s.QueryURL(keywords)
	if err != nil {
		return nil, err
	}

	// The search feed is an API surface, not a crawled page
	res, err := s.fetcher.fetchWithRetry(ctx, feedURL, false)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", strings.Join(keywords, " "), err)
	}

	feed, err := s.parser.ParseString(res.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse search feed: %w", err)
	}

	limit := pages * itemsPerPage
	hits := make([]Hit, 0, limit)
	for _, item := range feed.Items {
		if len(hits) >= limit {
			break
		}

		link := resolveURL(nil, item.Link)
		if link == "" {
			continue
		}

		hits = append(hits, Hit{
			Title:     strings.TrimSpace(item.Title),
			URL:       link,
			Published: item.PublishedParsed,
		})
	}

	return hits, nil
}
