package cmd

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nkhosla/paperfind/internal/ai"
	"github.com/nkhosla/paperfind/internal/cache"
	"github.com/nkhosla/paperfind/internal/clock/system"
	"github.com/nkhosla/paperfind/internal/id/uuid"
	"github.com/nkhosla/paperfind/internal/lang"
	"github.com/nkhosla/paperfind/internal/output"
	"github.com/nkhosla/paperfind/internal/retry"
	"github.com/nkhosla/paperfind/internal/scan"
	"github.com/nkhosla/paperfind/internal/source/telegram"
)

type scanFlags struct {
	keywords string
	date     string
	aiQuery  string
	limit    int
	retries  int
	noCache  bool
}

// newScanCmd creates and configures the 'scan' subcommand.
func newScanCmd() *cobra.Command {
	flags := &scanFlags{limit: -1, retries: -1}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan channels and evaluate candidate documents",
		Long: `Scans every broadcast channel visible to the configured session.
Without --ai-query, filenames are matched deterministically against the
keywords and date. With --ai-query, candidates are evaluated in batches
by the external classifier and decisions are cached on disk.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScan(cmd, flags)
		},
	}

	cmd.Flags().StringVar(&flags.keywords, "keywords", "", "comma-separated keywords to match in filenames (default from config)")
	cmd.Flags().StringVar(&flags.date, "date", "", "target date in DD-MM-YYYY (default today)")
	cmd.Flags().StringVar(&flags.aiQuery, "ai-query", "", "free-text query evaluated by the AI classifier")
	cmd.Flags().IntVar(&flags.limit, "limit", -1, "messages to scan per channel (default from config)")
	cmd.Flags().IntVar(&flags.retries, "retry", -1, "retry budget for transient session-lock errors")
	cmd.Flags().BoolVar(&flags.noCache, "no-cache", false, "disable the on-disk decision cache")
	return cmd
}

func runScan(cmd *cobra.Command, flags *scanFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	strategy, err := buildStrategy(flags)
	if err != nil {
		return err
	}

	engineCfg := scan.Config{
		Limit:          cfg.Scan.Limit,
		Concurrency:    cfg.Scan.Concurrency,
		ChannelFilters: cfg.Scan.ChannelFilters,
		ProbeDepth:     cfg.Scan.ProbeDepth,
		Retry: retry.Config{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay,
		},
	}
	if flags.limit >= 0 {
		engineCfg.Limit = flags.limit
	}
	if flags.retries > 0 {
		engineCfg.Retry.MaxAttempts = flags.retries
	}

	_, semantic := strategy.(scan.Semantic)

	clk := system.New()
	extractor := scan.NewExtractor(scan.ExtractorOptions{
		AllowedExts:   cfg.Scan.AllowedExts,
		DeniedExts:    cfg.Scan.DeniedExts,
		HintTokens:    cfg.Scan.HintTokens,
		DenylistOn:    semantic,
		HintsRequired: semantic,
		LanguageCheck: semantic,
	}, lang.New(cfg.Scan.Language), clk)

	var (
		store     scan.DecisionCache
		evaluator *scan.BatchEvaluator
	)
	if semantic {
		if cfg.AI.APIKey == "" {
			return fmt.Errorf("ai.api_key must be set for --ai-query (PAPERFIND_AI_API_KEY)")
		}
		classifier, err := ai.New(cfg.AI.APIKey, cfg.AI.Model, logger)
		if err != nil {
			return fmt.Errorf("init classifier: %w", err)
		}
		if cfg.Cache.Enabled && !flags.noCache {
			s, err := cache.NewStore(cfg.Cache.Dir, logger)
			if err != nil {
				return fmt.Errorf("init decision cache: %w", err)
			}
			store = s
		}
		evaluator = scan.NewBatchEvaluator(classifier, store, cfg.Scan.BatchSize, cfg.AI.MaxInflight, logger)
	}

	source, err := telegram.New(telegram.Config{
		APIID:       cfg.Telegram.APIID,
		APIHash:     cfg.Telegram.APIHash,
		SessionFile: cfg.Telegram.Session,
	}, logger)
	if err != nil {
		return fmt.Errorf("init telegram source: %w", err)
	}

	engine := scan.NewEngine(
		engineCfg,
		source,
		strategy,
		extractor,
		store,
		evaluator,
		clk,
		uuid.NewGenerator(),
		telegram.IsTransient,
		logger,
	)

	report, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	writer, err := output.NewWriter(cfg.Output.Dir, logger)
	if err != nil {
		return fmt.Errorf("init output writer: %w", err)
	}
	if _, _, err := writer.Write(report); err != nil {
		return fmt.Errorf("write results: %w", err)
	}

	if len(report.Results) == 0 {
		return errNoMatches
	}
	logger.Info("done", zap.Int("matches", len(report.Results)))
	return nil
}

// buildStrategy decides the matching mode once, at orchestration start.
func buildStrategy(flags *scanFlags) (scan.Strategy, error) {
	if q := strings.TrimSpace(flags.aiQuery); q != "" {
		return scan.Semantic{Query: q}, nil
	}

	dateStr := strings.TrimSpace(flags.date)
	if dateStr == "" {
		dateStr = time.Now().Format(scan.DateLayout)
	} else if _, err := time.Parse(scan.DateLayout, dateStr); err != nil {
		return nil, fmt.Errorf("date must be in DD-MM-YYYY format: %q", flags.date)
	}

	keywords := cfg.Matcher.Keywords
	if flags.keywords != "" {
		keywords = splitCSV(flags.keywords)
	}

	matcher, err := scan.CompileMatcher(keywords, cfg.Matcher.SecondaryTokens, dateStr)
	if err != nil {
		return nil, fmt.Errorf("compile matcher: %w", err)
	}
	return scan.Deterministic{
		Predicate:  matcher.Predicate(),
		Keywords:   keywords,
		DateStr:    dateStr,
		TargetDate: dateStr,
	}, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
