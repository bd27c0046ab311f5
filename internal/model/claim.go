package model

import "strings"

// Claim represents a statement being verified against news articles
type Claim struct {
	Text          string         `json:"text"`                    // Original comment/claim text
	TextEN        string         `json:"text_en,omitempty"`       // Translated claim (hypothesis for NLI)
	Keywords      []string       `json:"keywords"`                // Ranked keywords, most relevant first
	KeywordsUsed  []string       `json:"keywords_used,omitempty"` // Rank prefix of Keywords that produced articles
	CoreSentences []CoreSentence `json:"core_sentences,omitempty"`
}

// ExtractedClaim is a claim/keyword pair produced by the claim extraction service
type ExtractedClaim struct {
	Text     string   `json:"claim"`
	Keywords []string `json:"keywords"`
}

// Verifiable reports whether the extraction produced anything to search with.
// An empty keyword list signals "unverifiable".
func (c ExtractedClaim) Verifiable() bool {
	return strings.TrimSpace(c.Text) != "" && len(c.Keywords) > 0
}

// CoreSentence is one evidence candidate tied to exactly one article
type CoreSentence struct {
	Sentence       string    `json:"sentence"`                  // Original-language sentence
	SentenceEN     string    `json:"sentence_en,omitempty"`     // Translated sentence (premise for NLI)
	Untranslatable bool      `json:"untranslatable,omitempty"`  // Translation failed; excluded from scoring
	Similarity     float64   `json:"similarity"`                // Cosine similarity to the claim, >= acceptance floor
	NLI            NLIResult `json:"nli"`                       // Entailment judgement
	ArticleIndex   int       `json:"article_index"`             // Index into the retrieved article list
}

// Judged reports whether the sentence carries a usable NLI label
func (s CoreSentence) Judged() bool {
	return !s.Untranslatable && s.NLI.Label != ""
}

// Label is the NLI relationship between an evidence sentence and a claim
type Label string

const (
	LabelEntailment    Label = "entailment"    // Evidence supports the claim
	LabelContradiction Label = "contradiction" // Evidence contradicts the claim
	LabelNeutral       Label = "neutral"       // Evidence is unrelated or undetermined
)

// ParseLabel normalizes a backend label to one of the known labels.
// Unknown labels are reported as not ok.
func ParseLabel(raw string) (Label, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "entailment", "entail", "supports", "support":
		return LabelEntailment, true
	case "contradiction", "contradict", "contradicts", "refutes":
		return LabelContradiction, true
	case "neutral", "unrelated", "not enough info":
		return LabelNeutral, true
	default:
		return "", false
	}
}

// NLIResult holds the highest-confidence label for a (premise, hypothesis) pair
type NLIResult struct {
	Label      Label   `json:"label,omitempty"`
	Confidence float64 `json:"confidence"`
}

// Sign returns +1 for entailment, -1 for contradiction and 0 otherwise
func (r NLIResult) Sign() float64 {
	switch r.Label {
	case LabelEntailment:
		return 1
	case LabelContradiction:
		return -1
	default:
		return 0
	}
}

// VerifyRequest is one claim to verify with the keywords to search for
type VerifyRequest struct {
	Claim    string       `json:"claim" yaml:"claim"`
	Keywords []string     `json:"keywords" yaml:"keywords"`
	Context  VideoContext `json:"context,omitempty" yaml:"context,omitempty"`
}
