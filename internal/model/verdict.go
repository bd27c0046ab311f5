package model

import "time"

// Verdict represents the complete verification result for one claim
type Verdict struct {
	RequestID string    `json:"request_id"`
	CreatedAt time.Time `json:"created_at"`
	Status    Status    `json:"status"`

	Claim    Claim        `json:"claim"`
	Articles []ArticleRef `json:"articles"`

	Score       Score         `json:"score"`                  // Trust score and scoring breakdown
	BestArticle *ArticleRef   `json:"best_article,omitempty"` // Representative article (nil when none)
	BestExcerpt string        `json:"best_excerpt,omitempty"` // Original-language evidence sentence
	Cache       CacheDecision `json:"cache"`                  // How the article cache was used

	Explanation string   `json:"explanation"`
	Degraded    bool     `json:"degraded"`           // Some evidence could not be translated
	Warnings    []string `json:"warnings,omitempty"` // Non-fatal issues encountered along the way
}

// Status is the outcome of a verification
type Status string

const (
	StatusVerified     Status = "verified"     // A trust score was computed
	StatusUnverifiable Status = "unverifiable" // No articles or no usable evidence
)

// Score represents the transparent trust score breakdown
type Score struct {
	Value      *float64 `json:"value"`               // Sharpened trust score in [0,1]; nil when not scored
	Raw        *float64 `json:"raw,omitempty"`       // Pre-sharpening score
	Sharpness  float64  `json:"sharpness"`           // Logistic sharpening factor applied
	Considered int      `json:"considered"`          // Sentences in the denominator
	Supporting int      `json:"supporting"`          // Entailment count
	Opposing   int      `json:"opposing"`            // Contradiction count
	Confidence string   `json:"confidence"`          // "none", "low", "medium", "high"
	Signals    []Signal `json:"signals,omitempty"`   // Diagnostic signals with transparent data
}

// Signal represents a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalAggregate      SignalType = "aggregate"       // Weighted NLI sum and formula
	SignalNoEvidence     SignalType = "no_evidence"     // Only neutral or no judged sentences
	SignalConflict       SignalType = "conflict"        // Both supporting and opposing evidence
	SignalUntranslatable SignalType = "untranslatable"  // Evidence dropped on translation failure
	SignalRelaxedQuery   SignalType = "relaxed_query"   // Fewer keywords than extracted were used
	SignalSourceMix      SignalType = "source_mix"      // Outlet tiers of the retrieved articles
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)

// CacheDecisionKind describes how the evidence cache was used
type CacheDecisionKind string

const (
	CacheMiss    CacheDecisionKind = "miss"    // No entry at or above the floor
	CachePartial CacheDecisionKind = "partial" // Mixed cached and fresh articles
	CacheFull    CacheDecisionKind = "full"    // Fully reused, no crawl
	CacheOff     CacheDecisionKind = "off"     // Cache disabled
)

// CacheDecision records the cache substitution outcome for the used keyword set
type CacheDecision struct {
	Kind       CacheDecisionKind `json:"kind"`
	MatchedKey string            `json:"matched_key,omitempty"`
	Similarity float64           `json:"similarity,omitempty"`
	Reused     int               `json:"reused,omitempty"`
}

// Scored reports whether the verdict carries a numeric trust score
func (v *Verdict) Scored() bool {
	return v.Score.Value != nil
}
