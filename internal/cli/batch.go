package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimtrust/internal/pipeline"
	"github.com/ppiankov/claimtrust/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Verify many claims from a file in parallel",
	Long: `Batch verifies many claims concurrently:
- Read requests from a YAML list (.yaml, .yml) or JSON lines (any other file)
- Verify claims in parallel with a configurable worker count
- Share the article cache between requests
- Write a JSON and Markdown verdict per claim

Each request has a claim, its keywords and an optional context:
  {"claim": "관세가 인상되었다", "keywords": ["관세", "수출"], "context": {"title": "..."}}

Example:
  claimtrust batch claims.jsonl
  claimtrust batch claims.yaml --concurrency 8 --output-dir ./verdicts`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	// Concurrency flags
	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of concurrent workers")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./claimtrust-verdicts", "output directory for verdicts")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 15*time.Minute, "total timeout for batch processing")

	// Shared with verify
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable article cache (force fresh search)")
	batchCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")
	batchCmd.Flags().Float64Var(&sharpness, "sharpness", 0, "logistic sharpening factor (default from config)")
	addHTTPFlags(batchCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	applyFlags(cfg)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  claimtrust Batch Verification\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", concurrency)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "  Cache:        %v\n", cfg.Cache.Enabled)
	fmt.Fprintf(os.Stderr, "\n")

	// Create output directory
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// One pipeline serves every worker; only the caches are shared state
	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}
	defer p.Wait()

	processor := worker.NewBatchProcessor(p, concurrency)

	fmt.Fprintf(os.Stderr, "⚙️  Verifying claims with %d workers...\n", concurrency)
	fmt.Fprintf(os.Stderr, "\n")

	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	verified, unverifiable, failed := 0, 0, 0

	for _, result := range results {
		if result.Error != nil {
			failed++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Request.Claim, result.Error)
			continue
		}

		v := result.Verdict
		slug := fmt.Sprintf("%03d-%s", result.Index+1, sanitizeFilename(v.Claim.Text))
		jsonPath := filepath.Join(outputDir, slug+".json")
		mdPath := filepath.Join(outputDir, slug+".md")

		if err := renderer.RenderJSON(v, jsonPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", v.Claim.Text, err)
			continue
		}
		if err := renderer.RenderMarkdown(v, mdPath); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", v.Claim.Text, err)
			continue
		}

		if v.Scored() {
			verified++
			fmt.Fprintf(os.Stderr, "✓ %s (trust: %.1f%%, %s)\n", v.Claim.Text, *v.Score.Value*100, v.Score.Confidence)
		} else {
			unverifiable++
			fmt.Fprintf(os.Stderr, "○ %s (unverifiable)\n", v.Claim.Text)
		}
	}

	// Summary
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:         %d claims\n", len(results))
	fmt.Fprintf(os.Stderr, "  Verified:      %d\n", verified)
	fmt.Fprintf(os.Stderr, "  Unverifiable:  %d\n", unverifiable)
	fmt.Fprintf(os.Stderr, "  Failures:      %d\n", failed)
	fmt.Fprintf(os.Stderr, "  Output:        %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename turns a claim into a short file name
func sanitizeFilename(s string) string {
	replacer := strings.NewReplacer(
		"/", "_",
		"\\", "_",
		":", "_",
		"*", "_",
		"?", "_",
		"\"", "_",
		"<", "_",
		">", "_",
		"|", "_",
		" ", "-",
		"\n", "-",
	)
	s = replacer.Replace(strings.TrimSpace(s))

	// Limit length without splitting a rune
	runes := []rune(s)
	if len(runes) > 40 {
		runes = runes[:40]
	}
	if len(runes) == 0 {
		return "claim"
	}
	return string(runes)
}
