package scan

import (
	"context"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// DefaultBatchSize bounds how many candidates travel in one classifier
// request.
const DefaultBatchSize = 10

// BatchEvaluator obtains relevance decisions for cache-miss candidates
// from the external classifier, in bounded groups submitted under a
// concurrency limit.
type BatchEvaluator struct {
	classifier Classifier
	cache      DecisionCache // nil disables persistence
	batchSize  int
	inflight   int64
	logger     *zap.Logger
}

// NewBatchEvaluator constructs a BatchEvaluator.
func NewBatchEvaluator(classifier Classifier, cache DecisionCache, batchSize, maxInflight int, logger *zap.Logger) *BatchEvaluator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if maxInflight <= 0 {
		maxInflight = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BatchEvaluator{
		classifier: classifier,
		cache:      cache,
		batchSize:  batchSize,
		inflight:   int64(maxInflight),
		logger:     logger,
	}
}

// Evaluate partitions candidates into groups and resolves a decision
// for each. A candidate whose index is missing from its group's
// response resolves to NOT_RELEVANT with no reasons; a group whose
// whole call fails is logged and skipped, leaving its candidates
// without a decision for this run. The returned slice holds one entry
// per decided candidate, in input order.
func (e *BatchEvaluator) Evaluate(ctx context.Context, criteria string, candidates []Candidate) []Result {
	if len(candidates) == 0 {
		return nil
	}

	// Each group owns a distinct slice range, so no locking is needed
	// around the decided flags or results.
	decided := make([]bool, len(candidates))
	results := make([]Result, len(candidates))

	sem := semaphore.NewWeighted(e.inflight)
	var wg sync.WaitGroup

	for start := 0; start < len(candidates); start += e.batchSize {
		end := min(start+e.batchSize, len(candidates))
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			defer sem.Release(1)
			e.evaluateGroup(ctx, criteria, candidates[start:end], decided[start:end], results[start:end])
		}(start, end)
	}
	wg.Wait()

	out := make([]Result, 0, len(candidates))
	for i := range candidates {
		if decided[i] {
			out = append(out, results[i])
		}
	}
	return out
}

func (e *BatchEvaluator) evaluateGroup(ctx context.Context, criteria string, group []Candidate, decided []bool, results []Result) {
	items := make([]BatchItem, len(group))
	for i, c := range group {
		items[i] = BatchItem{ID: i, Filename: c.Filename, Caption: c.Caption}
	}

	e.logger.Info("evaluating batch", zap.Int("size", len(group)))
	decisions, err := e.classifier.EvaluateBatch(ctx, criteria, items)
	if err != nil {
		e.logger.Warn("classifier batch failed, skipping group",
			zap.Int("size", len(group)), zap.Error(err))
		return
	}

	for i, c := range group {
		decision, ok := decisions[strconv.Itoa(i)]
		if !ok {
			// A partial answer must not drop the candidate silently.
			decision = Decision{Verdict: VerdictNotRelevant}
		}
		if decision.Verdict == "" {
			decision.Verdict = VerdictNotRelevant
		}

		if e.cache != nil {
			if err := e.cache.Store(criteria, c, decision); err != nil {
				e.logger.Warn("failed to persist decision",
					zap.String("filename", c.Filename), zap.Error(err))
			}
		}

		decided[i] = true
		results[i] = Result{Candidate: c, Decision: decision}
		if decision.Verdict == VerdictRelevant {
			LogMatch(e.logger, c, decision)
		}
	}
}

// LogMatch emits the audit-trail line for an accepted RELEVANT
// decision. The pipeline is otherwise silent until completion, so this
// is the only live record of matches.
func LogMatch(logger *zap.Logger, c Candidate, d Decision) {
	logger.Info("[match]",
		zap.String("filename", c.Filename),
		zap.String("channel", c.ChannelName),
		zap.Float64("size_mb", c.SizeMB()),
		zap.Int("msg_id", c.MessageID),
		zap.String("link", c.Link),
		zap.Float64("confidence", d.Confidence),
	)
}
