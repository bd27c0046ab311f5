package pipeline

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/ppiankov/claimtrust/internal/model"
)

// Renderer writes verdicts as JSON, Markdown and a terminal summary
type Renderer struct {
	includeFooter bool
}

// NewRenderer creates a new renderer
func NewRenderer(includeFooter bool) *Renderer {
	return &Renderer{includeFooter: includeFooter}
}

// RenderJSON writes the verdict as indented JSON
func (r *Renderer) RenderJSON(v *model.Verdict, path string) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal verdict: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// RenderMarkdown writes the verdict as a Markdown report
func (r *Renderer) RenderMarkdown(v *model.Verdict, path string) error {
	if err := os.WriteFile(path, []byte(r.Markdown(v)), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Markdown formats the verdict as a Markdown document
func (r *Renderer) Markdown(v *model.Verdict) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Claim check\n\n")
	fmt.Fprintf(&b, "> %s\n\n", v.Claim.Text)
	if v.Claim.TextEN != "" && v.Claim.TextEN != v.Claim.Text {
		fmt.Fprintf(&b, "_%s_\n\n", v.Claim.TextEN)
	}

	b.WriteString("## Result\n\n")
	fmt.Fprintf(&b, "- **Status:** %s\n", v.Status)
	if v.Scored() {
		fmt.Fprintf(&b, "- **Trust:** %.1f%% (raw %.3f, sharpness %g)\n", *v.Score.Value*100, *v.Score.Raw, v.Score.Sharpness)
	} else {
		b.WriteString("- **Trust:** not scored\n")
	}
	fmt.Fprintf(&b, "- **Confidence:** %s\n", v.Score.Confidence)
	fmt.Fprintf(&b, "- **Evidence:** %d supporting, %d opposing, %d judged\n", v.Score.Supporting, v.Score.Opposing, v.Score.Considered)
	if len(v.Claim.Keywords) > 0 {
		fmt.Fprintf(&b, "- **Keywords:** %s", strings.Join(v.Claim.Keywords, ", "))
		if len(v.Claim.KeywordsUsed) > 0 && len(v.Claim.KeywordsUsed) < len(v.Claim.Keywords) {
			fmt.Fprintf(&b, " (searched with: %s)", strings.Join(v.Claim.KeywordsUsed, ", "))
		}
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "- **Cache:** %s\n\n", v.Cache.Kind)

	if v.BestArticle != nil {
		b.WriteString("## Best evidence\n\n")
		fmt.Fprintf(&b, "[%s](%s)\n\n", v.BestArticle.Title, v.BestArticle.URL)
		if v.BestExcerpt != "" {
			fmt.Fprintf(&b, "> %s\n\n", v.BestExcerpt)
		}
	}

	if len(v.Claim.CoreSentences) > 0 {
		b.WriteString("## Evidence sentences\n\n")
		b.WriteString("| # | Label | Confidence | Similarity | Sentence |\n")
		b.WriteString("|---|---|---|---|---|\n")
		for i, s := range v.Claim.CoreSentences {
			label := string(s.NLI.Label)
			if s.Untranslatable {
				label = "untranslatable"
			}
			fmt.Fprintf(&b, "| %d | %s | %.2f | %.2f | %s |\n", i+1, label, s.NLI.Confidence, s.Similarity, escapeCell(s.Sentence))
		}
		b.WriteString("\n")
	}

	if len(v.Score.Signals) > 0 {
		b.WriteString("## Signals\n\n")
		for _, sig := range v.Score.Signals {
			fmt.Fprintf(&b, "- **%s** (%s): %s\n", sig.Type, sig.Severity, sig.Description)
		}
		b.WriteString("\n")
	}

	if len(v.Articles) > 0 {
		b.WriteString("## Articles\n\n")
		for i, a := range v.Articles {
			if a.Tier != model.TierUnknown {
				fmt.Fprintf(&b, "%d. [%s](%s) _(%s)_\n", i+1, a.Title, a.URL, a.Tier)
				continue
			}
			fmt.Fprintf(&b, "%d. [%s](%s)\n", i+1, a.Title, a.URL)
		}
		b.WriteString("\n")
	}

	if len(v.Warnings) > 0 {
		b.WriteString("## Warnings\n\n")
		for _, w := range v.Warnings {
			fmt.Fprintf(&b, "- %s\n", w)
		}
		b.WriteString("\n")
	}

	if r.includeFooter {
		fmt.Fprintf(&b, "---\n\nRequest `%s` at %s. Scores reflect retrieved news coverage, not ground truth.\n",
			v.RequestID, v.CreatedAt.Format("2006-01-02 15:04:05 UTC"))
	}

	return b.String()
}

// RenderSummary prints a short colored summary
func (r *Renderer) RenderSummary(w io.Writer, v *model.Verdict) {
	fmt.Fprintln(w, verdictLine(v))
	if v.BestArticle != nil {
		fmt.Fprintf(w, "  Source:  %s (%s)\n", v.BestArticle.URL, v.BestArticle.Tier)
	}
	if v.BestExcerpt != "" {
		fmt.Fprintf(w, "  Excerpt: %s\n", v.BestExcerpt)
	}
	for _, warn := range v.Warnings {
		fmt.Fprintf(w, "  %s %s\n", color.YellowString("!"), warn)
	}
}

// RenderAll writes the requested report files and prints the summary
func (r *Renderer) RenderAll(w io.Writer, v *model.Verdict, jsonPath, mdPath string, verbose bool) error {
	if jsonPath != "" {
		if err := r.RenderJSON(v, jsonPath); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", jsonPath)
		}
	}

	if mdPath != "" {
		if err := r.RenderMarkdown(v, mdPath); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", mdPath)
		}
	}

	r.RenderSummary(w, v)
	return nil
}

// verdictLine colors the trust score: green above 0.7, red below 0.3
func verdictLine(v *model.Verdict) string {
	if !v.Scored() {
		return color.New(color.FgHiBlack).Sprint(v.Explanation)
	}

	value := *v.Score.Value
	c := color.New(color.FgYellow)
	switch {
	case value >= 0.7:
		c = color.New(color.FgGreen, color.Bold)
	case value <= 0.3:
		c = color.New(color.FgRed, color.Bold)
	}
	return c.Sprint(v.Explanation) + fmt.Sprintf(" [%s]", v.Score.Confidence)
}

func escapeCell(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "|", `\|`), "\n", " ")
}
