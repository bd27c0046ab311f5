package retrieve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/claimtrust/internal/model"
)

func testHTTPConfig() model.HTTPConfig {
	return model.HTTPConfig{
		Timeout:      5 * time.Second,
		UserAgent:    "claimtrust-test/0.1",
		MaxBodyBytes: 1 << 20,
	}
}

func noSleep(t *testing.T) {
	orig := fetchSleepFunc
	fetchSleepFunc = func(d time.Duration) {}
	t.Cleanup(func() { fetchSleepFunc = orig })
}

func TestFetchWithRetry_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html><body>OK</body></html>")
	}))
	defer server.Close()

	fetcher := NewFetcher(testHTTPConfig(), nil)
	result, err := fetcher.FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result.HTML != "<html><body>OK</body></html>" {
		t.Errorf("Unexpected HTML: %s", result.HTML)
	}
}

func TestFetchWithRetry_TransientThenSuccess(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprint(w, "<html>OK</html>")
	}))
	defer server.Close()

	result, err := NewFetcher(testHTTPConfig(), nil).FetchWithRetry(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if result.HTML != "<html>OK</html>" {
		t.Errorf("Unexpected HTML: %s", result.HTML)
	}
	if attempts.Load() != 3 {
		t.Errorf("Expected 3 attempts, got %d", attempts.Load())
	}
}

func TestFetchWithRetry_PermanentFailure(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewFetcher(testHTTPConfig(), nil).FetchWithRetry(context.Background(), server.URL)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusNotFound {
		t.Fatalf("Expected 404 StatusError, got %v", err)
	}
	if attempts.Load() != 1 {
		t.Errorf("Expected 404 not retried, got %d attempts", attempts.Load())
	}
}

func TestFetchWithRetry_AllRetriesExhausted(t *testing.T) {
	noSleep(t)

	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	if _, err := NewFetcher(testHTTPConfig(), nil).FetchWithRetry(context.Background(), server.URL); err == nil {
		t.Fatal("Expected error after all retries exhausted")
	}
	if attempts.Load() != fetchAttempts {
		t.Errorf("Expected %d attempts, got %d", fetchAttempts, attempts.Load())
	}
}

func TestFetch_RespectsRobots(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			_, _ = fmt.Fprint(w, "User-agent: *\nDisallow: /private\n")
			return
		}
		_, _ = fmt.Fprint(w, "<html>ok</html>")
	}))
	defer server.Close()

	cfg := testHTTPConfig()
	cfg.RespectRobots = true
	fetcher := NewFetcher(cfg, nil)

	if _, err := fetcher.Fetch(context.Background(), server.URL+"/private/page"); !errors.Is(err, ErrDisallowed) {
		t.Errorf("Expected ErrDisallowed, got %v", err)
	}
	if _, err := fetcher.Fetch(context.Background(), server.URL+"/news/1"); err != nil {
		t.Errorf("Expected /news/1 to be fetched, got %v", err)
	}
}

func TestFetch_DecodesEUCKR(t *testing.T) {
	// "관세" in EUC-KR
	eucKR := []byte{0xb0, 0xfc, 0xbc, 0xbc}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=euc-kr")
		_, _ = w.Write(append([]byte("<p>"), append(eucKR, []byte("</p>")...)...))
	}))
	defer server.Close()

	result, err := NewFetcher(testHTTPConfig(), nil).Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if !strings.Contains(result.HTML, "관세") {
		t.Errorf("Expected UTF-8 decoded body, got %q", result.HTML)
	}
}

func TestIsRetryableFetchError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"503", &StatusError{Code: 503}, true},
		{"500", &StatusError{Code: 500}, true},
		{"429", &StatusError{Code: 429}, true},
		{"404", &StatusError{Code: 404}, false},
		{"403", &StatusError{Code: 403}, false},
		{"network", fmt.Errorf("fetch: %w", &url.Error{Op: "Get", URL: "x", Err: errors.New("connection refused")}), true},
		{"robots", fmt.Errorf("x: %w", ErrDisallowed), false},
		{"canceled", fmt.Errorf("fetch: %w", context.Canceled), false},
		{"plain", errors.New("create request: invalid URL"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isRetryableFetchError(tt.err); got != tt.retryable {
				t.Errorf("isRetryableFetchError(%v) = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestScraper_ArticleParagraphs(t *testing.T) {
	page, err := NewScraper().Scrape(`<html><head>
		<title>Site title</title>
		<meta property="og:title" content="Tariffs on Chinese goods rise">
		</head><body>
		<nav><p>Home | World | Business and other navigation items</p></nav>
		<article>
			<p>The government raised tariffs on Chinese imports. Exports fell sharply in May.</p>
			<p>Short caption</p>
			<p>Officials said the measure would stay in place until next year!</p>
		</article>
		<script>var x = "not text";</script>
		</body></html>`)
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}

	if page.Title != "Tariffs on Chinese goods rise" {
		t.Errorf("Expected og:title, got %q", page.Title)
	}

	expected := []string{
		"The government raised tariffs on Chinese imports.",
		"Exports fell sharply in May.",
		"Officials said the measure would stay in place until next year!",
	}
	if len(page.Sentences) != len(expected) {
		t.Fatalf("Expected %d sentences, got %d: %v", len(expected), len(page.Sentences), page.Sentences)
	}
	for i := range expected {
		if page.Sentences[i] != expected[i] {
			t.Errorf("Sentence %d: expected %q, got %q", i, expected[i], page.Sentences[i])
		}
	}
}

func TestScraper_FallbackToVisibleText(t *testing.T) {
	page, err := NewScraper().Scrape(`<html><head><title>T</title><style>.a{}</style></head>
		<body><div>관세가 올랐다. 수출이 줄었다.</div><footer>Copyright notice here.</footer></body></html>`)
	if err != nil {
		t.Fatalf("Scrape failed: %v", err)
	}
	if len(page.Sentences) != 2 || page.Sentences[0] != "관세가 올랐다." {
		t.Errorf("Unexpected sentences: %v", page.Sentences)
	}
}

func TestResolveURL(t *testing.T) {
	base, _ := url.Parse("https://news.example.com/a/b")
	tests := []struct {
		href     string
		expected string
	}{
		{"/c", "https://news.example.com/c"},
		{"https://other.example.com/x#frag", "https://other.example.com/x"},
		{"#top", ""},
		{"javascript:void(0)", ""},
		{"mailto:a@b.c", ""},
		{"ftp://files.example.com/x", ""},
	}
	for _, tt := range tests {
		if got := resolveURL(base, tt.href); got != tt.expected {
			t.Errorf("resolveURL(%q): expected %q, got %q", tt.href, tt.expected, got)
		}
	}
}

const feedTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0"><channel><title>search</title>
%s
</channel></rss>`

func newsServer(t *testing.T, articlePaths []string) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/rss/search":
			if r.URL.Query().Get("ceid") != "KR:ko" {
				t.Errorf("Expected ceid KR:ko, got %q", r.URL.Query().Get("ceid"))
			}
			if r.URL.Query().Get("q") == "nothing" {
				_, _ = fmt.Fprintf(w, feedTemplate, "")
				return
			}
			var items strings.Builder
			for i, p := range articlePaths {
				fmt.Fprintf(&items, "<item><title>Hit %d - Source</title><link>%s%s</link><pubDate>Mon, 02 Jun 2025 09:00:00 GMT</pubDate></item>\n", i, server.URL, p)
			}
			_, _ = fmt.Fprintf(w, feedTemplate, items.String())
		case r.URL.Path == "/empty":
			_, _ = fmt.Fprint(w, "<html><body></body></html>")
		case r.URL.Path == "/gone":
			w.WriteHeader(http.StatusGone)
		case strings.HasPrefix(r.URL.Path, "/news/"):
			_, _ = fmt.Fprintf(w, "<html><head><title>%s</title></head><body><article><p>Article %s reports that tariffs were raised. Exports fell.</p></article></body></html>", r.URL.Path, r.URL.Path)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func testCollector(server *httptest.Server) *Collector {
	fetcher := NewFetcher(testHTTPConfig(), nil)
	searcher := NewSearcher(model.SearchConfig{
		Endpoint: server.URL + "/rss/search",
		Language: "ko",
		Region:   "KR",
	}, fetcher)
	return NewCollector(searcher, fetcher, 3, zerolog.Nop())
}

func TestCollector_Collect(t *testing.T) {
	noSleep(t)
	server := newsServer(t, []string{"/news/1", "/gone", "/news/2", "/empty", "/news/1", "/news/3"})

	articles, err := testCollector(server).Collect(context.Background(), []string{"관세", "중국"}, 1)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	if len(articles) != 3 {
		t.Fatalf("Expected 3 articles, got %d: %+v", len(articles), articles)
	}
	for i, p := range []string{"/news/1", "/news/2", "/news/3"} {
		if articles[i].URL != server.URL+p {
			t.Errorf("Article %d: expected %s, got %s", i, server.URL+p, articles[i].URL)
		}
		if len(articles[i].Sentences) != 2 {
			t.Errorf("Article %d: expected 2 sentences, got %v", i, articles[i].Sentences)
		}
	}
}

func TestCollector_NoHits(t *testing.T) {
	server := newsServer(t, nil)

	articles, err := testCollector(server).Collect(context.Background(), []string{"nothing"}, 1)
	if err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if len(articles) != 0 {
		t.Errorf("Expected no articles, got %d", len(articles))
	}
}

func TestSearcher_PageLimit(t *testing.T) {
	paths := make([]string, 25)
	for i := range paths {
		paths[i] = fmt.Sprintf("/news/%d", i)
	}
	server := newsServer(t, paths)

	fetcher := NewFetcher(testHTTPConfig(), nil)
	s := NewSearcher(model.SearchConfig{Endpoint: server.URL + "/rss/search", Language: "ko", Region: "KR"}, fetcher)

	hits, err := s.Search(context.Background(), []string{"관세"}, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 20 {
		t.Errorf("Expected 20 hits for 2 pages, got %d", len(hits))
	}
	if hits[0].Published == nil {
		t.Error("Expected parsed publish date")
	}
}
