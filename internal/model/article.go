package model

import "strings"

// Article represents a retrieved news document. Identity is its URL.
type Article struct {
	Title      string      `json:"title"`
	URL        string      `json:"url"`
	Sentences  []string    `json:"sentences"`
	Embeddings [][]float64 `json:"embeddings,omitempty"` // Cached sentence vectors, aligned with Sentences
}

// SourceTier ranks the outlet an article was published by
type SourceTier int

const (
	TierUnknown   SourceTier = iota
	TierOfficial             // Government and public-agency sites
	TierPress                // Wire services and established outlets
	TierOther                // Everything else
)

// String returns the tier's name
func (t SourceTier) String() string {
	switch t {
	case TierOfficial:
		return "official"
	case TierPress:
		return "press"
	case TierOther:
		return "other"
	default:
		return "unknown"
	}
}

// MarshalText encodes the tier by name
func (t SourceTier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText decodes a tier name; unrecognized names become TierUnknown
func (t *SourceTier) UnmarshalText(b []byte) error {
	switch string(b) {
	case "official":
		*t = TierOfficial
	case "press":
		*t = TierPress
	case "other":
		*t = TierOther
	default:
		*t = TierUnknown
	}
	return nil
}

// ArticleRef is the lightweight form of an article used in verdicts
type ArticleRef struct {
	Title string     `json:"title"`
	URL   string     `json:"link"`
	Tier  SourceTier `json:"tier,omitempty"`
}

// Ref returns the title/link pair of the article
func (a Article) Ref() ArticleRef {
	return ArticleRef{Title: a.Title, URL: a.URL}
}

// HasEmbeddings reports whether cached vectors line up with the sentences
func (a Article) HasEmbeddings() bool {
	return len(a.Sentences) > 0 && len(a.Embeddings) == len(a.Sentences)
}

// EmbeddingsFit reports whether cached vectors line up with the sentences
// and all have dimension dim. Vectors from another embedding model do not fit.
func (a Article) EmbeddingsFit(dim int) bool {
	if dim <= 0 || !a.HasEmbeddings() {
		return false
	}
	for _, v := range a.Embeddings {
		if len(v) != dim {
			return false
		}
	}
	return true
}

// VideoContext is the context a comment was posted under
type VideoContext struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Hashtags    []string `json:"hashtags" yaml:"hashtags"`
}

// IsEmpty reports whether the context carries no text at all
func (v VideoContext) IsEmpty() bool {
	return strings.TrimSpace(v.Title) == "" && strings.TrimSpace(v.Description) == "" && len(v.Hashtags) == 0
}

// Corpus joins title, description and hashtags into one text for embedding
func (v VideoContext) Corpus() string {
	return strings.Join([]string{
		strings.Trim(strings.TrimSpace(v.Title), ". "),
		strings.Trim(strings.TrimSpace(v.Description), ". "),
		strings.Join(v.Hashtags, " "),
	}, ". ")
}

// DedupeArticles removes articles with duplicate URLs, keeping the first occurrence
func DedupeArticles(articles []Article) []Article {
	seen := make(map[string]bool)
	unique := make([]Article, 0, len(articles))

	for _, a := range articles {
		if !seen[a.URL] {
			seen[a.URL] = true
			unique = append(unique, a)
		}
	}

	return unique
}
