package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/claimtrust/internal/extract"
	"github.com/ppiankov/claimtrust/internal/llm"
)

var (
	maxKeywords    int
	extractJSON    bool
	extractTimeout time.Duration
)

// extractCmd represents the extract command
var extractCmd = &cobra.Command{
	Use:   "extract <comment> [comment...]",
	Short: "Extract checkable claims and search keywords from comments",
	Long: `Extract asks the configured LLM to find checkable claims in each comment
and the news search keywords for each claim. A comment without a checkable
claim yields no output.

Example:
  claimtrust extract "중국이 관세를 올렸다고 하던데 진짜임?"
  claimtrust extract "first comment" "second comment" --title "Trade news" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().IntVar(&maxKeywords, "max-keywords", 0, "maximum keywords per claim (default from config)")
	extractCmd.Flags().BoolVar(&extractJSON, "json", false, "print claims as JSON")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", time.Minute, "overall extraction timeout")
	addContextFlags(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), extractTimeout)
	defer cancel()

	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	if maxKeywords <= 0 {
		maxKeywords = cfg.LLM.MaxKeywords
	}

	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return fmt.Errorf("llm provider: %w", err)
	}
	if provider == nil {
		return fmt.Errorf("no LLM configured (set llm.provider or CLAIMTRUST_LLM_PROVIDER)")
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Extracting claims from %d comment(s) with %s...\n", len(args), provider.Name())
	}

	extractor := extract.NewClaimExtractor(provider, logger)
	batches, err := extractor.ExtractBatch(ctx, args, videoContext(), maxKeywords)
	if err != nil {
		return fmt.Errorf("extract failed: %w", err)
	}

	if extractJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(batches)
	}

	for i, claims := range batches {
		fmt.Printf("Comment %d: %s\n", i+1, args[i])
		if len(claims) == 0 {
			fmt.Println("  (no checkable claim)")
			continue
		}
		for _, c := range claims {
			fmt.Printf("  ✓ %s\n", c.Text)
			fmt.Printf("    keywords: %s\n", strings.Join(c.Keywords, ", "))
		}
	}

	return nil
}
