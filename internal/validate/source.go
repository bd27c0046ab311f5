package validate

import (
	"net/url"
	"strings"

	"github.com/ppiankov/claimtrust/internal/model"
)

// SourceClassifier assigns news articles to outlet tiers by host
type SourceClassifier struct {
	pinned   map[string]model.SourceTier
	official map[string]bool
	press    map[string]bool
}

// NewSourceClassifier creates a classifier from the configured domain lists
func NewSourceClassifier(config *model.SourcesConfig) *SourceClassifier {
	if config == nil {
		config = &model.DefaultConfig().Sources
	}

	c := &SourceClassifier{
		pinned:   make(map[string]model.SourceTier),
		official: make(map[string]bool),
		press:    make(map[string]bool),
	}

	for _, o := range config.Overrides {
		c.pinned[normalizeHost(o.Host)] = parseTier(o.Tier)
	}
	for _, domain := range config.OfficialDomains {
		c.official[normalizeHost(domain)] = true
	}
	for _, domain := range config.PressDomains {
		c.press[normalizeHost(domain)] = true
	}

	return c
}

// Classify returns the tier of the outlet serving rawURL
func (c *SourceClassifier) Classify(rawURL string) model.SourceTier {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Hostname() == "" {
		return model.TierUnknown
	}
	host := normalizeHost(parsed.Hostname())

	// Explicit mappings first, exact host only
	if tier, ok := c.pinned[host]; ok {
		return tier
	}

	// Walk the host's parent domains: www.mofa.go.kr, mofa.go.kr, go.kr, kr
	for h := host; h != ""; h = parent(h) {
		if c.official[h] {
			return model.TierOfficial
		}
		if c.press[h] {
			return model.TierPress
		}
	}

	return model.TierOther
}

// Annotate sets the tier on each reference in place
func (c *SourceClassifier) Annotate(refs []model.ArticleRef) {
	for i := range refs {
		refs[i].Tier = c.Classify(refs[i].URL)
	}
}

func parent(host string) string {
	idx := strings.Index(host, ".")
	if idx < 0 {
		return ""
	}
	return host[idx+1:]
}

func normalizeHost(host string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
}

// parseTier converts a configured tier name
func parseTier(tier string) model.SourceTier {
	switch strings.ToLower(tier) {
	case "official", "primary", "1":
		return model.TierOfficial
	case "press", "secondary", "2":
		return model.TierPress
	default:
		return model.TierOther
	}
}
