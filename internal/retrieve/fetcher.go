// Package retrieve finds news articles for a keyword set: feed search,
// polite page fetching and article text scraping.
package retrieve

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/ppiankov/claimtrust/internal/model"
	"github.com/ppiankov/claimtrust/internal/util"
	"github.com/ppiankov/claimtrust/internal/worker"
)

// ErrDisallowed is returned when robots.txt forbids fetching a URL
var ErrDisallowed = errors.New("disallowed by robots.txt")

// StatusError reports a non-2xx HTTP response
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status: %d %s", e.Code, e.Status)
}

// Fetcher fetches pages with rate limiting, robots.txt checks and a body
// size cap. Bodies are decoded to UTF-8.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
	maxBytes   int64
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
}

// FetchResult contains the fetched page and metadata
type FetchResult struct {
	HTML        string
	StatusCode  int
	ContentType string
	FinalURL    string
}

// fetchSleepFunc is swapped out in tests
var fetchSleepFunc = time.Sleep

const fetchAttempts = 3

// NewFetcher creates a new Fetcher. A nil limiter disables rate limiting.
func NewFetcher(cfg model.HTTPConfig, limiter *worker.Limiter) *Fetcher {
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(cfg.HTTPProxy, cfg.HTTPSProxy, cfg.NoProxy),
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in flag
	}

	client := &http.Client{
		Timeout:   cfg.Timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 5 {
				return fmt.Errorf("stopped after 5 redirects")
			}
			return nil
		},
	}

	maxBytes := cfg.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = 2_000_000
	}

	f := &Fetcher{
		httpClient: client,
		userAgent:  cfg.UserAgent,
		maxBytes:   maxBytes,
		limiter:    limiter,
	}
	if cfg.RespectRobots {
		f.robots = util.NewRobotsChecker(cfg.UserAgent, client)
	}
	return f
}

// Fetch retrieves a page, honoring robots.txt and the per-domain rate limit
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*FetchResult, error) {
	return f.fetch(ctx, rawURL, true)
}

// FetchWithRetry retries transient failures (network errors, 5xx, 429)
// with exponential backoff
func (f *Fetcher) FetchWithRetry(ctx context.Context, rawURL string) (*FetchResult, error) {
	return f.fetchWithRetry(ctx, rawURL, true)
}

func (f *Fetcher) fetchWithRetry(ctx context.Context, rawURL string, checkRobots bool) (*FetchResult, error) {
	var lastErr error
	backoff := time.Second

	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		result, err := f.fetch(ctx, rawURL, checkRobots)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !isRetryableFetchError(err) || attempt == fetchAttempts {
			break
		}
		fetchSleepFunc(backoff)
		backoff *= 2
	}

	return nil, lastErr
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string, checkRobots bool) (*FetchResult, error) {
	var crawlDelay time.Duration
	if checkRobots && f.robots != nil {
		allowed, delay, err := f.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, fmt.Errorf("robots check: %w", err)
		}
		if !allowed {
			return nil, fmt.Errorf("%s: %w", rawURL, ErrDisallowed)
		}
		crawlDelay = delay
	}

	if f.limiter != nil {
		if err := f.limiter.WaitFor(ctx, rawURL, crawlDelay); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ko-KR,ko;q=0.9,en-US;q=0.8,en;q=0.7")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{Code: resp.StatusCode, Status: resp.Status}
	}

	contentType := resp.Header.Get("Content-Type")

	// Many Korean outlets still serve EUC-KR
	body, err := charset.NewReader(io.LimitReader(resp.Body, f.maxBytes), contentType)
	if err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &FetchResult{
		HTML:        string(raw),
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		FinalURL:    resp.Request.URL.String(),
	}, nil
}

// isRetryableFetchError reports whether a fetch error is worth retrying
func isRetryableFetchError(err error) bool {
	if err == nil {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code >= 500 || statusErr.Code == http.StatusTooManyRequests
	}

	if errors.Is(err, ErrDisallowed) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
