package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ppiankov/claimtrust/internal/extract"
	"github.com/ppiankov/claimtrust/internal/llm"
	"github.com/ppiankov/claimtrust/internal/model"
	"github.com/ppiankov/claimtrust/internal/pipeline"
)

var (
	outJSON     string
	outMD       string
	timeout     time.Duration
	keywords    []string
	videoTitle  string
	videoDesc   string
	hashtags    []string
	noCache     bool
	noFooter    bool
	sharpness   float64
	pages       int
	insecureTLS bool
	httpProxy   string
	httpsProxy  string
)

// verifyCmd represents the verify command
var verifyCmd = &cobra.Command{
	Use:   "verify <claim>",
	Short: "Verify a single claim against news coverage",
	Long: `Verify searches the news for a claim and reports a trust score:
- Rank keywords by relevance to the video context
- Search with fewer keywords until articles are found
- Pick the sentences most similar to the claim in each article
- Judge each sentence as supporting, contradicting or neutral
- Combine the judgements into a sharpened trust score

Without --keyword the configured LLM extracts keywords from the claim.

Example:
  claimtrust verify "관세가 인상되었다" -k 관세 -k 중국 -k 수출
  claimtrust verify "Tariffs were raised" -k tariff --title "Trade news" --json verdict.json
  claimtrust verify "관세가 인상되었다" --md verdict.md --no-cache`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	// Input flags
	verifyCmd.Flags().StringSliceVarP(&keywords, "keyword", "k", nil, "search keyword (repeatable)")
	addContextFlags(verifyCmd)

	// Output flags
	verifyCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (optional)")
	verifyCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	verifyCmd.Flags().BoolVar(&noFooter, "no-footer", false, "disable footer in Markdown reports")

	// Pipeline flags
	verifyCmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "overall verification timeout")
	verifyCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable article cache (force fresh search)")
	verifyCmd.Flags().Float64Var(&sharpness, "sharpness", 0, "logistic sharpening factor (default from config)")
	verifyCmd.Flags().IntVar(&pages, "pages", 0, "search result pages per attempt (default from config)")
	addHTTPFlags(verifyCmd)
}

func addContextFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&videoTitle, "title", "", "video title the claim was posted under")
	cmd.Flags().StringVar(&videoDesc, "description", "", "video description")
	cmd.Flags().StringSliceVar(&hashtags, "hashtag", nil, "video hashtag (repeatable)")
}

func addHTTPFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&insecureTLS, "insecure", false, "skip TLS certificate verification (use for self-signed certs)")
	cmd.Flags().StringVar(&httpProxy, "http-proxy", "", "HTTP proxy URL (overrides HTTP_PROXY env var)")
	cmd.Flags().StringVar(&httpsProxy, "https-proxy", "", "HTTPS proxy URL (overrides HTTPS_PROXY env var)")
}

// applyFlags layers command-line flags over the loaded configuration
func applyFlags(cfg *model.Config) {
	if noCache {
		cfg.Cache.Enabled = false
	}
	if sharpness > 0 {
		cfg.Scoring.Sharpness = sharpness
	}
	if pages > 0 {
		cfg.Search.Pages = pages
	}
	if insecureTLS {
		cfg.HTTP.InsecureTLS = true
	}
	if httpProxy != "" {
		cfg.HTTP.HTTPProxy = httpProxy
	}
	if httpsProxy != "" {
		cfg.HTTP.HTTPSProxy = httpsProxy
	}
	if noFooter {
		cfg.Output.IncludeFooter = false
	}
}

func videoContext() model.VideoContext {
	return model.VideoContext{Title: videoTitle, Description: videoDesc, Hashtags: hashtags}
}

func runVerify(cmd *cobra.Command, args []string) error {
	claim := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()
	applyFlags(cfg)

	if verbose {
		fmt.Fprintf(os.Stderr, "Verifying: %s\n", claim)
		fmt.Fprintf(os.Stderr, "Timeout: %v\n", timeout)
		fmt.Fprintf(os.Stderr, "Cache: %v\n", cfg.Cache.Enabled)
		fmt.Fprintln(os.Stderr)
	}

	req := model.VerifyRequest{Claim: claim, Keywords: keywords, Context: videoContext()}
	if len(req.Keywords) == 0 {
		if verbose {
			fmt.Fprintf(os.Stderr, "⚙️  Extracting keywords with %s...\n", cfg.LLM.Provider)
		}
		extracted, err := extractKeywords(ctx, cfg, logger, claim, req.Context)
		if err != nil {
			return err
		}
		req.Keywords = extracted
		if verbose {
			fmt.Fprintf(os.Stderr, "✓ Keywords: %v\n", extracted)
		}
	}

	p, err := pipeline.NewPipeline(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize pipeline: %w", err)
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Searching and scoring...\n")
	}

	verdict, err := p.Verify(ctx, req)
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}
	p.Wait()

	if verbose {
		fmt.Fprintf(os.Stderr, "✓ Retrieved %d articles (cache: %s)\n", len(verdict.Articles), verdict.Cache.Kind)
		fmt.Fprintf(os.Stderr, "✓ Judged %d evidence sentences\n", verdict.Score.Considered)
		fmt.Fprintln(os.Stderr)
	}

	renderer := pipeline.NewRenderer(cfg.Output.IncludeFooter)
	if err := renderer.RenderAll(os.Stdout, verdict, outJSON, outMD, verbose); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	return nil
}

// extractKeywords asks the configured LLM for the claim's keywords
func extractKeywords(ctx context.Context, cfg *model.Config, logger zerolog.Logger, claim string, vctx model.VideoContext) ([]string, error) {
	provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.HTTP))
	if err != nil {
		return nil, fmt.Errorf("llm provider: %w", err)
	}
	if provider == nil {
		return nil, fmt.Errorf("no keywords given and no LLM configured (use --keyword or set llm.provider)")
	}

	claims, err := extract.NewClaimExtractor(provider, logger).Extract(ctx, claim, vctx, cfg.LLM.MaxKeywords)
	if err != nil {
		return nil, fmt.Errorf("extract keywords: %w", err)
	}
	for _, c := range claims {
		if c.Verifiable() {
			return c.Keywords, nil
		}
	}
	return nil, nil
}
