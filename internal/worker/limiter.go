package worker

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/ppiankov/claimtrust/internal/model"
)

// hostPace is the token bucket and crawl-delay bookkeeping for one host
type hostPace struct {
	bucket *rate.Limiter

	mu   sync.Mutex
	next time.Time // Earliest start allowed by the host's crawl delay
}

// Limiter paces requests per host. News sites and the search feed each get
// their own token bucket; robots.txt crawl delays add a minimum spacing on
// top of it.
type Limiter struct {
	mu        sync.RWMutex
	hosts     map[string]*hostPace
	overrides map[string]model.HostRate
	rps       rate.Limit
	burst     int

	now func() time.Time
}

// NewLimiter creates a limiter with a default rate for every host
func NewLimiter(requestsPerSecond float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 5
	}

	return &Limiter{
		hosts:     make(map[string]*hostPace),
		overrides: make(map[string]model.HostRate),
		rps:       rate.Limit(requestsPerSecond),
		burst:     burst,
		now:       time.Now,
	}
}

// NewLimiterFromConfig creates a limiter with the configured per-host overrides
func NewLimiterFromConfig(cfg model.RateLimitingConfig) *Limiter {
	l := NewLimiter(cfg.RequestsPerSecond, cfg.BurstSize)
	for _, hr := range cfg.Hosts {
		l.SetHostRate(hr.Host, hr.RequestsPerSecond, hr.BurstSize)
	}
	return l
}

// Wait blocks until a request to rawURL may start
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	return l.WaitFor(ctx, rawURL, 0)
}

// WaitFor blocks until a request to rawURL may start, keeping at least
// crawlDelay between consecutive starts on the same host
func (l *Limiter) WaitFor(ctx context.Context, rawURL string, crawlDelay time.Duration) error {
	host, err := hostOf(rawURL)
	if err != nil {
		return err
	}

	pace := l.pace(host)
	if err := pace.bucket.Wait(ctx); err != nil {
		return err
	}
	if crawlDelay <= 0 {
		return nil
	}

	// Reserve the next slot under the lock, sleep outside it
	pace.mu.Lock()
	now := l.now()
	start := pace.next
	if start.Before(now) {
		start = now
	}
	pace.next = start.Add(crawlDelay)
	pace.mu.Unlock()

	wait := start.Sub(now)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Allow reports whether a request to rawURL may start now, consuming a token if so
func (l *Limiter) Allow(rawURL string) bool {
	host, err := hostOf(rawURL)
	if err != nil {
		return false
	}
	return l.pace(host).bucket.Allow()
}

// SetHostRate overrides the rate for one host. Subdomains are not included.
func (l *Limiter) SetHostRate(host string, requestsPerSecond float64, burst int) {
	if burst <= 0 {
		burst = l.burst
	}
	host = normalizeHost(host)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.overrides[host] = model.HostRate{Host: host, RequestsPerSecond: requestsPerSecond, BurstSize: burst}
	l.hosts[host] = &hostPace{bucket: rate.NewLimiter(rate.Limit(requestsPerSecond), burst)}
}

func (l *Limiter) pace(host string) *hostPace {
	l.mu.RLock()
	p, ok := l.hosts[host]
	l.mu.RUnlock()
	if ok {
		return p
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if p, ok := l.hosts[host]; ok {
		return p
	}

	bucket := rate.NewLimiter(l.rps, l.burst)
	if hr, ok := l.overrides[host]; ok {
		bucket = rate.NewLimiter(rate.Limit(hr.RequestsPerSecond), hr.BurstSize)
	}
	p = &hostPace{bucket: bucket}
	l.hosts[host] = p
	return p
}

// hostOf returns the normalized host of rawURL; www. is folded into the bare domain
func hostOf(rawURL string) (string, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Hostname() == "" {
		return "", fmt.Errorf("no host in %q", rawURL)
	}
	return normalizeHost(parsed.Hostname()), nil
}

func normalizeHost(host string) string {
	return strings.TrimPrefix(strings.ToLower(host), "www.")
}
