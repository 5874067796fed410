package scan

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nkhosla/paperfind/internal/retry"
)

// Config holds the settings for one scan run, decoupled from Viper so
// the engine is testable on its own.
type Config struct {
	Limit          int      // per-channel message scan limit; <= 0 means unbounded
	Concurrency    int      // concurrent channel scans
	ChannelFilters []string // deterministic-mode channel-name prefilter tokens
	ProbeDepth     int      // semantic-mode junk-channel probe depth
	Retry          retry.Config
}

// Engine drives channel enumeration, extraction, deduplication, cache
// lookup, evaluation, and ranking for a single scan invocation.
type Engine struct {
	cfg         Config
	source      Source
	strategy    Strategy
	extractor   *Extractor
	cache       DecisionCache // nil when caching is disabled
	evaluator   *BatchEvaluator
	clock       Clock
	ids         IDGenerator
	isTransient func(error) bool
	logger      *zap.Logger

	state State
}

// NewEngine wires the pipeline components together.
func NewEngine(
	cfg Config,
	source Source,
	strategy Strategy,
	extractor *Extractor,
	cache DecisionCache,
	evaluator *BatchEvaluator,
	clock Clock,
	ids IDGenerator,
	isTransient func(error) bool,
	logger *zap.Logger,
) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if isTransient == nil {
		isTransient = func(error) bool { return false }
	}
	return &Engine{
		cfg:         cfg,
		source:      source,
		strategy:    strategy,
		extractor:   extractor,
		cache:       cache,
		evaluator:   evaluator,
		clock:       clock,
		ids:         ids,
		isTransient: isTransient,
		logger:      logger,
		state:       StateConnecting,
	}
}

// Run executes the scan. Zero results is success, not failure; only
// connection and authorization problems are fatal.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	report := Report{
		Criteria:  e.strategy.Criteria(),
		StartedAt: e.clock.Now(),
	}
	if e.ids != nil {
		if id, err := e.ids.NewID(); err == nil {
			report.RunID = id
		}
	}

	e.setState(StateConnecting)
	if err := e.connect(ctx); err != nil {
		e.setState(StateFailed)
		return report, err
	}
	defer func() {
		if err := e.source.Close(); err != nil {
			e.logger.Warn("source close failed", zap.Error(err))
		}
	}()

	e.setState(StateEnumerating)
	channels, err := e.source.Channels(ctx)
	if err != nil {
		e.setState(StateFailed)
		return report, fmt.Errorf("enumerate channels: %w", err)
	}

	e.setState(StateExtracting)
	candidates, scanned, err := e.extractAll(ctx, channels)
	if err != nil && ctx.Err() == nil {
		e.setState(StateFailed)
		return report, err
	}
	report.ChannelsScanned = scanned
	report.CandidatesFound = len(candidates)

	e.setState(StateDeduplicating)
	unique := Deduplicate(candidates)
	report.UniqueCandidates = len(unique)
	e.logger.Info("candidates deduplicated",
		zap.Int("observed", len(candidates)), zap.Int("unique", len(unique)))

	var results []Result
	switch s := e.strategy.(type) {
	case Deterministic:
		results = e.matchDeterministic(unique, s)
	case Semantic:
		var hits, evaluated int
		results, hits, evaluated = e.evaluateSemantic(ctx, unique, s)
		report.CacheHits = hits
		report.Evaluated = evaluated
	default:
		e.setState(StateFailed)
		return report, fmt.Errorf("unknown match strategy %T", e.strategy)
	}

	e.setState(StateRanking)
	report.Results = rank(relevantOnly(results))

	e.setState(StateDone)
	e.summarize(report)
	return report, nil
}

func (e *Engine) connect(ctx context.Context) error {
	_, err := retry.Do(ctx, e.cfg.Retry, e.isTransient, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, e.source.Connect(ctx)
	})
	if err != nil {
		return fmt.Errorf("connect to source: %w "+
			"(if the session is locked: close other instances, remove stale session lock files, then retry)", err)
	}
	e.logger.Info("connected to source")
	return nil
}

// extractAll scans channels concurrently as a throughput optimization;
// dedup only runs after the group has fully drained, so result sets
// stay order-independent.
func (e *Engine) extractAll(ctx context.Context, channels []Channel) ([]Candidate, int, error) {
	var (
		mu         sync.Mutex
		candidates []Candidate
		scanned    int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)

	for _, ch := range channels {
		ch := ch
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			found, ok, err := e.scanChannel(gctx, ch)
			if err != nil {
				// A single unreadable channel degrades, it does not
				// abort the run.
				e.logger.Warn("channel scan failed, skipping",
					zap.String("channel", ch.Title), zap.Error(err))
				return nil
			}
			if !ok {
				return nil
			}
			mu.Lock()
			scanned++
			candidates = append(candidates, found...)
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	return candidates, scanned, err
}

// scanChannel applies the prefilters and extracts candidates from one
// channel. ok is false when the channel was skipped by a prefilter.
func (e *Engine) scanChannel(ctx context.Context, ch Channel) ([]Candidate, bool, error) {
	det, deterministic := e.strategy.(Deterministic)

	if deterministic && !channelNameMatches(ch.Title, e.cfg.ChannelFilters) {
		e.logger.Debug("skipping channel, name prefilter", zap.String("channel", ch.Title))
		return nil, false, nil
	}
	if !deterministic && e.cfg.ProbeDepth > 0 {
		junk, err := e.probeJunk(ctx, ch)
		if err != nil {
			return nil, false, err
		}
		if junk {
			e.logger.Info("skipping junk channel", zap.String("channel", ch.Title))
			return nil, false, nil
		}
	}

	e.logger.Info("scanning channel", zap.String("channel", ch.Title))
	messages, err := e.source.Messages(ctx, ch, e.cfg.Limit)
	if err != nil {
		return nil, false, fmt.Errorf("messages for %s: %w", ch.Title, err)
	}

	var targetDate time.Time
	if deterministic && det.TargetDate != "" {
		// Message order is not guaranteed monotonic by date, so an
		// off-target message is skipped, never treated as a cutoff.
		targetDate, _ = time.Parse(DateLayout, det.TargetDate)
	}

	var out []Candidate
	for _, msg := range messages {
		if err := ctx.Err(); err != nil {
			return out, true, nil
		}
		if !targetDate.IsZero() && !sameDay(msg.Date, targetDate) {
			continue
		}
		if c, ok := e.extractor.Extract(msg, ch); ok {
			out = append(out, c)
		}
	}
	return out, true, nil
}

// probeJunk inspects the most recent messages; channels dominated by
// executable attachments are software mirrors, not periodicals.
func (e *Engine) probeJunk(ctx context.Context, ch Channel) (bool, error) {
	messages, err := e.source.Messages(ctx, ch, e.cfg.ProbeDepth)
	if err != nil {
		return false, fmt.Errorf("probe %s: %w", ch.Title, err)
	}
	for _, msg := range messages {
		if e.extractor.HasDeniedAttachment(msg) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) matchDeterministic(unique []Candidate, s Deterministic) []Result {
	results := make([]Result, 0, len(unique))
	for _, c := range unique {
		if !s.Predicate(c.Filename) {
			continue
		}
		decision := Decision{
			Verdict:    VerdictRelevant,
			Confidence: 1.0,
			Reasons:    []string{"filename matches compiled pattern"},
		}
		LogMatch(e.logger, c, decision)
		results = append(results, Result{Candidate: c, Decision: decision})
	}
	return results
}

func (e *Engine) evaluateSemantic(ctx context.Context, unique []Candidate, s Semantic) ([]Result, int, int) {
	e.setState(StateCacheLookup)
	var (
		results []Result
		misses  []Candidate
	)
	for _, c := range unique {
		if e.cache == nil {
			misses = append(misses, c)
			continue
		}
		decision, hit := e.cache.Lookup(s.Query, c)
		if !hit {
			misses = append(misses, c)
			continue
		}
		if decision.Verdict == VerdictRelevant {
			LogMatch(e.logger, c, decision)
		}
		results = append(results, Result{Candidate: c, Decision: decision})
	}
	cacheHits := len(results)
	e.logger.Info("cache partition",
		zap.Int("hits", cacheHits), zap.Int("misses", len(misses)))

	e.setState(StateEvaluating)
	fresh := e.evaluator.Evaluate(ctx, s.Query, misses)
	return append(results, fresh...), cacheHits, len(fresh)
}

func (e *Engine) summarize(report Report) {
	e.logger.Info("scan complete",
		zap.String("run_id", report.RunID),
		zap.Int("channels", report.ChannelsScanned),
		zap.Int("unique_candidates", report.UniqueCandidates),
		zap.Int("matches", len(report.Results)),
	)
	for i, r := range report.Results {
		e.logger.Info(fmt.Sprintf("[%d] %s", i+1, r.Candidate.Filename),
			zap.String("channel", r.Candidate.ChannelName),
			zap.Float64("size_mb", r.Candidate.SizeMB()),
			zap.String("link", r.Candidate.Link),
		)
	}
}

func (e *Engine) setState(s State) {
	e.state = s
	e.logger.Debug("state", zap.String("state", string(s)))
}

func relevantOnly(results []Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Decision.Verdict == VerdictRelevant {
			out = append(out, r)
		}
	}
	return out
}

// rank orders by descending size; the largest file is the most likely
// complete rendition when fuzzy duplicates survive. Filename and
// message ID break ties so output is reproducible.
func rank(results []Result) []Result {
	sort.Slice(results, func(i, j int) bool {
		a, b := results[i].Candidate, results[j].Candidate
		if a.Size != b.Size {
			return a.Size > b.Size
		}
		if a.Filename != b.Filename {
			return a.Filename < b.Filename
		}
		return a.MessageID < b.MessageID
	})
	return results
}

func channelNameMatches(title string, filters []string) bool {
	if len(filters) == 0 {
		return true
	}
	for _, f := range filters {
		if f != "" && containsLower(title, f) {
			return true
		}
	}
	return false
}
