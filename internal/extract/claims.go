package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/ppiankov/claimtrust/internal/llm"
	"github.com/ppiankov/claimtrust/internal/model"
)

const claimSystemPrompt = `You extract checkable factual claims from social media comments.
For each factual claim in the comment, return the claim restated as one short
declarative sentence in the comment's language, and the search keywords a
journalist would use to find news coverage of it.
Opinions, jokes and questions are not claims. If there is nothing to check,
return an empty list.
Respond with JSON only, in this shape:
{"claims": [{"claim": "...", "keywords": ["...", "..."]}]}`

// claimsSchema is the answer shape we ask for
var claimsSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["claims"],
	"properties": {
		"claims": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["claim", "keywords"],
				"properties": {
					"claim": {"type": "string"},
					"keywords": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`)

// keywordsSchema is the older keyword-only shape some prompts still produce
var keywordsSchema = gojsonschema.NewStringLoader(`{
	"type": "object",
	"required": ["keywords"],
	"properties": {
		"keywords": {"type": "array", "items": {"type": "string"}},
		"topic": {"type": "string"}
	}
}`)

type claimsAnswer struct {
	Claims []model.ExtractedClaim `json:"claims"`
}

type keywordsAnswer struct {
	Keywords []string `json:"keywords"`
}

// ClaimExtractor asks an LLM for the claims and search keywords in a comment
type ClaimExtractor struct {
	provider llm.Provider
	logger   zerolog.Logger
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor(provider llm.Provider, logger zerolog.Logger) *ClaimExtractor {
	return &ClaimExtractor{provider: provider, logger: logger}
}

// Extract returns the claims in a comment with at most maxKeywords keywords
// each. An answer that cannot be parsed yields no claims, not an error; only
// a failed provider call is an error.
func (e *ClaimExtractor) Extract(ctx context.Context, comment string, vctx model.VideoContext, maxKeywords int) ([]model.ExtractedClaim, error) {
	if strings.TrimSpace(comment) == "" {
		return []model.ExtractedClaim{}, nil
	}
	if maxKeywords <= 0 {
		maxKeywords = 6
	}

	resp, err := e.provider.Complete(ctx, llm.CompletionRequest{
		System: claimSystemPrompt,
		Prompt: buildClaimPrompt(comment, vctx, maxKeywords),
		JSON:   true,
	})
	if err != nil {
		return nil, fmt.Errorf("claim extraction: %w", err)
	}

	claims, err := parseClaims(resp.Text, comment)
	if err != nil {
		e.logger.Warn().Err(err).Str("raw", resp.Text).Msg("claim extraction answer unparseable")
		return []model.ExtractedClaim{}, nil
	}

	return normalizeClaims(claims, maxKeywords), nil
}

// ExtractBatch runs Extract for each comment. Results are aligned with
// comments.
func (e *ClaimExtractor) ExtractBatch(ctx context.Context, comments []string, vctx model.VideoContext, maxKeywords int) ([][]model.ExtractedClaim, error) {
	out := make([][]model.ExtractedClaim, len(comments))
	for i, c := range comments {
		claims, err := e.Extract(ctx, c, vctx, maxKeywords)
		if err != nil {
			return nil, fmt.Errorf("comment %d: %w", i, err)
		}
		out[i] = claims
	}
	return out, nil
}

func buildClaimPrompt(comment string, vctx model.VideoContext, maxKeywords int) string {
	var b strings.Builder
	if !vctx.IsEmpty() {
		b.WriteString("The comment was posted under a video.\n")
		fmt.Fprintf(&b, "Video title: %s\n", vctx.Title)
		if vctx.Description != "" {
			fmt.Fprintf(&b, "Video description: %s\n", vctx.Description)
		}
		if len(vctx.Hashtags) > 0 {
			fmt.Fprintf(&b, "Hashtags: %s\n", strings.Join(vctx.Hashtags, " "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Use between 3 and %d keywords per claim.\n", maxKeywords)
	fmt.Fprintf(&b, "Comment: %q\n", comment)
	return b.String()
}

// parseClaims validates the answer against the claims shape, then the
// keyword-only shape (whose single claim is the whole comment)
func parseClaims(raw, comment string) ([]model.ExtractedClaim, error) {
	doc := []byte(llm.StripFences(raw))

	if err := validateJSON(claimsSchema, doc); err == nil {
		var answer claimsAnswer
		if err := json.Unmarshal(doc, &answer); err != nil {
			return nil, err
		}
		return answer.Claims, nil
	} else if legacyErr := validateJSON(keywordsSchema, doc); legacyErr != nil {
		return nil, err
	}

	var answer keywordsAnswer
	if err := json.Unmarshal(doc, &answer); err != nil {
		return nil, err
	}
	return []model.ExtractedClaim{{Text: strings.TrimSpace(comment), Keywords: answer.Keywords}}, nil
}

func validateJSON(schema gojsonschema.JSONLoader, doc []byte) error {
	result, err := gojsonschema.Validate(schema, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var details []string
	for _, desc := range result.Errors() {
		details = append(details, desc.String())
	}
	return fmt.Errorf("answer failed validation: %s", strings.Join(details, "; "))
}

// normalizeClaims trims text, drops blank or duplicate keywords and caps
// the keyword count. Claims with no text are dropped; claims with no
// keywords are kept and report as unverifiable.
func normalizeClaims(claims []model.ExtractedClaim, maxKeywords int) []model.ExtractedClaim {
	out := make([]model.ExtractedClaim, 0, len(claims))
	for _, c := range claims {
		text := strings.TrimSpace(c.Text)
		if text == "" {
			continue
		}

		seen := make(map[string]bool)
		keywords := make([]string, 0, len(c.Keywords))
		for _, kw := range c.Keywords {
			kw = strings.TrimSpace(kw)
			if kw == "" || seen[kw] {
				continue
			}
			seen[kw] = true
			keywords = append(keywords, kw)
			if len(keywords) == maxKeywords {
				break
			}
		}

		out = append(out, model.ExtractedClaim{Text: text, Keywords: keywords})
	}
	return out
}
