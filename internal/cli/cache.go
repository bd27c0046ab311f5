package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ppiankov/claimtrust/internal/cache"
	"github.com/ppiankov/claimtrust/internal/pipeline"
)

var (
	pruneMaxAge   time.Duration
	watchSchedule string
)

// cacheCmd represents the cache command
var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the article cache",
	Long: `The article cache maps keyword sets to the articles collected for them.
Similar keyword sets reuse cached articles instead of searching again.

Entries are listed in ascending key order, which is also the order used
to break ties between equally similar entries.`,
}

var cacheLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List cached keyword sets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ec, closer, err := openCache()
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		entries, err := ec.Entries()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("Cache is empty")
			return nil
		}

		for _, e := range entries {
			fmt.Printf("%s  %s  %3d articles  %s\n",
				e.ID[:12], e.StoredAt.Local().Format("2006-01-02 15:04"), len(e.Articles), strings.Join(e.Keywords, ", "))
		}
		fmt.Fprintf(os.Stderr, "\n%d entries\n", len(entries))
		return nil
	},
}

var cacheShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one cache entry as JSON (id prefix accepted)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ec, closer, err := openCache()
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		entry, err := findEntry(ec, args[0])
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entry)
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove entries older than --max-age",
	RunE: func(cmd *cobra.Command, args []string) error {
		ec, closer, err := openCache()
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		removed, err := ec.Prune(pruneMaxAge)
		if err != nil {
			return fmt.Errorf("prune: %w", err)
		}
		fmt.Printf("✓ Removed %d entries older than %v\n", removed, pruneMaxAge)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every cache entry",
	RunE: func(cmd *cobra.Command, args []string) error {
		ec, closer, err := openCache()
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		if err := ec.Clear(); err != nil {
			return fmt.Errorf("clear: %w", err)
		}
		fmt.Println("✓ Cache cleared")
		return nil
	},
}

var cacheWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Prune the cache on a cron schedule until interrupted",
	Long: `Watch runs in the foreground and prunes entries older than --max-age
on the given cron schedule.

Example:
  claimtrust cache watch --schedule "@hourly" --max-age 72h
  claimtrust cache watch --schedule "*/15 * * * *" --max-age 24h`,
	RunE: runCacheWatch,
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheLsCmd, cacheShowCmd, cachePruneCmd, cacheClearCmd, cacheWatchCmd)

	cachePruneCmd.Flags().DurationVar(&pruneMaxAge, "max-age", 7*24*time.Hour, "remove entries stored before now minus this age")
	cacheWatchCmd.Flags().DurationVar(&pruneMaxAge, "max-age", 7*24*time.Hour, "remove entries stored before now minus this age")
	cacheWatchCmd.Flags().StringVar(&watchSchedule, "schedule", "", "cron schedule (default from cache.prune_schedule, else @hourly)")
}

func openCache() (*cache.EvidenceCache, io.Closer, error) {
	cfg, logger, closer, err := setup()
	if err != nil {
		return nil, nil, err
	}
	if !cfg.Cache.Enabled {
		logger.Warn().Msg("cache is disabled in configuration; inspecting it anyway")
	}

	return pipeline.NewEvidenceCache(cfg.Cache, logger), closer, nil
}

// findEntry resolves a full id or a unique id prefix
func findEntry(ec *cache.EvidenceCache, id string) (cache.Entry, error) {
	if cache.IsKeySetID(id) {
		if entry, err := ec.Get(id); err == nil {
			return entry, nil
		}
	}

	entries, err := ec.Entries()
	if err != nil {
		return cache.Entry{}, err
	}

	var matches []cache.Entry
	for _, e := range entries {
		if strings.HasPrefix(e.ID, id) {
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return cache.Entry{}, fmt.Errorf("%s: %w", id, cache.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return cache.Entry{}, fmt.Errorf("id prefix %q matches %d entries", id, len(matches))
	}
}

func runCacheWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, closer, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = closer.Close() }()

	maxAge := pruneMaxAge
	if !cmd.Flags().Changed("max-age") && cfg.Cache.MaxAge > 0 {
		maxAge = cfg.Cache.MaxAge
	}

	schedule := watchSchedule
	if schedule == "" {
		schedule = cfg.Cache.PruneCron
	}
	if schedule == "" {
		schedule = "@hourly"
	}

	ec := pipeline.NewEvidenceCache(cfg.Cache, logger)

	c := cron.New()
	_, err = c.AddFunc(schedule, func() {
		removed, err := ec.Prune(maxAge)
		if err != nil {
			logger.Error().Err(err).Msg("cache prune failed")
			return
		}
		logger.Info().Int("removed", removed).Dur("max_age", maxAge).Msg("cache pruned")
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c.Start()
	fmt.Fprintf(os.Stderr, "⚙️  Pruning %s every %q (max age %v), Ctrl-C to stop\n", cfg.Cache.Dir, schedule, maxAge)

	<-ctx.Done()
	<-c.Stop().Done()
	fmt.Fprintln(os.Stderr, "✓ Stopped")
	return nil
}
