package util

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func TestNewProxyFunc_NoProxy(t *testing.T) {
	proxy := NewProxyFunc("http://proxy.internal:3128", "", "localhost,.corp.example")

	tests := []struct {
		rawURL   string
		expected string
	}{
		{"http://news.example.com/a", "http://proxy.internal:3128"},
		{"https://news.example.com/a", "http://proxy.internal:3128"},
		{"http://wiki.corp.example/a", ""},
	}

	for _, tt := range tests {
		u, _ := url.Parse(tt.rawURL)
		got, err := proxy(&http.Request{URL: u})
		if err != nil {
			t.Fatalf("proxy(%s): %v", tt.rawURL, err)
		}
		gotStr := ""
		if got != nil {
			gotStr = got.String()
		}
		if gotStr != tt.expected {
			t.Errorf("proxy(%s): expected %q, got %q", tt.rawURL, tt.expected, gotStr)
		}
	}
}

func TestRobotsChecker_CanFetch(t *testing.T) {
	hits := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			hits++
			_, _ = w.Write([]byte("User-agent: claimtrust\nDisallow: /private\nCrawl-delay: 2\n"))
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	checker := NewRobotsChecker("claimtrust/0.1 (+https://example.com)", server.Client())

	allowed, delay, err := checker.CanFetch(context.Background(), server.URL+"/news/1")
	if err != nil || !allowed {
		t.Errorf("Expected /news/1 allowed, got %v (%v)", allowed, err)
	}
	if delay != 2*time.Second {
		t.Errorf("Expected crawl delay 2s, got %v", delay)
	}

	if checker.IsAllowed(context.Background(), server.URL+"/private/x") {
		t.Error("Expected /private/x disallowed")
	}

	if hits != 1 {
		t.Errorf("Expected robots.txt fetched once, got %d", hits)
	}
}

func TestRobotsChecker_MissingRobotsAllows(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	checker := NewRobotsChecker("claimtrust", server.Client())
	if !checker.IsAllowed(context.Background(), server.URL+"/anything") {
		t.Error("Expected allow when robots.txt is missing")
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	if got := NormalizeUserAgent("claimtrust/0.1 (+https://x)"); got != "claimtrust" {
		t.Errorf("Expected claimtrust, got %s", got)
	}
	if got := NormalizeUserAgent(""); got != "" {
		t.Errorf("Expected empty, got %s", got)
	}
}
