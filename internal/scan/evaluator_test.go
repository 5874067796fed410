package scan

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeClassifier replays canned responses and records every batch it
// receives.
type fakeClassifier struct {
	mu      sync.Mutex
	batches [][]BatchItem
	respond func(items []BatchItem) (map[string]Decision, error)
}

func (f *fakeClassifier) EvaluateBatch(_ context.Context, _ string, items []BatchItem) (map[string]Decision, error) {
	f.mu.Lock()
	f.batches = append(f.batches, items)
	f.mu.Unlock()
	return f.respond(items)
}

// memCache is an in-memory DecisionCache keyed the way the disk store
// keys entries.
type memCache struct {
	mu      sync.Mutex
	entries map[string]Decision
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string]Decision)}
}

func (m *memCache) key(criteria string, c Candidate) string {
	return fmt.Sprintf("%s|%s|%d", criteria, c.Filename, c.Size)
}

func (m *memCache) Lookup(criteria string, c Candidate) (Decision, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.entries[m.key(criteria, c)]
	return d, ok
}

func (m *memCache) Store(criteria string, c Candidate, d Decision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.key(criteria, c)] = d
	return nil
}

func namedCandidates(n int) []Candidate {
	out := make([]Candidate, n)
	for i := range out {
		out[i] = Candidate{
			MessageID: i + 1,
			Filename:  fmt.Sprintf("doc_%02d.pdf", i),
			Size:      int64(1000 + i),
		}
	}
	return out
}

func TestEvaluateAllRelevant(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		respond: func(items []BatchItem) (map[string]Decision, error) {
			out := make(map[string]Decision, len(items))
			for _, it := range items {
				out[strconv.Itoa(it.ID)] = Decision{
					Verdict:    VerdictRelevant,
					Confidence: 0.9,
					Reasons:    []string{"matches query"},
				}
			}
			return out, nil
		},
	}
	e := NewBatchEvaluator(classifier, nil, 10, 2, nil)

	candidates := namedCandidates(3)
	results := e.Evaluate(context.Background(), "science journals", candidates)
	require.Len(t, results, 3)
	for i, r := range results {
		require.Equal(t, candidates[i].Filename, r.Candidate.Filename)
		require.Equal(t, VerdictRelevant, r.Decision.Verdict)
	}
}

func TestEvaluatePartialResponseDefaultsToNotRelevant(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		respond: func(items []BatchItem) (map[string]Decision, error) {
			// Answer only the first item of each batch.
			return map[string]Decision{
				"0": {Verdict: VerdictRelevant, Confidence: 0.8},
			}, nil
		},
	}
	e := NewBatchEvaluator(classifier, nil, 10, 1, nil)

	results := e.Evaluate(context.Background(), "q", namedCandidates(4))
	require.Len(t, results, 4, "an incomplete answer must not drop candidates")

	require.Equal(t, VerdictRelevant, results[0].Decision.Verdict)
	for _, r := range results[1:] {
		require.Equal(t, VerdictNotRelevant, r.Decision.Verdict)
		require.Empty(t, r.Decision.Reasons)
	}
}

func TestEvaluateSplitsIntoBatches(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		respond: func(items []BatchItem) (map[string]Decision, error) {
			out := make(map[string]Decision, len(items))
			for _, it := range items {
				out[strconv.Itoa(it.ID)] = Decision{Verdict: VerdictNotRelevant}
			}
			return out, nil
		},
	}
	e := NewBatchEvaluator(classifier, nil, 10, 2, nil)

	results := e.Evaluate(context.Background(), "q", namedCandidates(25))
	require.Len(t, results, 25)

	classifier.mu.Lock()
	defer classifier.mu.Unlock()
	require.Len(t, classifier.batches, 3)
	for _, batch := range classifier.batches {
		require.LessOrEqual(t, len(batch), 10)
		for i, it := range batch {
			require.Equal(t, i, it.ID, "IDs are local to the batch")
		}
	}
}

func TestEvaluateFailedGroupIsSkipped(t *testing.T) {
	t.Parallel()

	var calls int
	var mu sync.Mutex
	classifier := &fakeClassifier{
		respond: func(items []BatchItem) (map[string]Decision, error) {
			mu.Lock()
			calls++
			n := calls
			mu.Unlock()
			if n == 1 {
				return nil, errors.New("model overloaded")
			}
			out := make(map[string]Decision, len(items))
			for _, it := range items {
				out[strconv.Itoa(it.ID)] = Decision{Verdict: VerdictRelevant, Confidence: 0.7}
			}
			return out, nil
		},
	}
	// Single inflight slot keeps group order deterministic.
	e := NewBatchEvaluator(classifier, nil, 10, 1, nil)

	candidates := namedCandidates(15)
	results := e.Evaluate(context.Background(), "q", candidates)
	require.Len(t, results, 5, "the failed group's candidates carry no decision")
	for _, r := range results {
		require.Equal(t, VerdictRelevant, r.Decision.Verdict)
	}
}

func TestEvaluatePersistsDecisions(t *testing.T) {
	t.Parallel()

	classifier := &fakeClassifier{
		respond: func(items []BatchItem) (map[string]Decision, error) {
			return map[string]Decision{
				"0": {Verdict: VerdictRelevant, Confidence: 0.95},
			}, nil
		},
	}
	cache := newMemCache()
	e := NewBatchEvaluator(classifier, cache, 10, 1, nil)

	candidates := namedCandidates(2)
	e.Evaluate(context.Background(), "q", candidates)

	d, ok := cache.Lookup("q", candidates[0])
	require.True(t, ok)
	require.Equal(t, VerdictRelevant, d.Verdict)

	d, ok = cache.Lookup("q", candidates[1])
	require.True(t, ok, "defaulted decisions are cached too")
	require.Equal(t, VerdictNotRelevant, d.Verdict)
}

func TestEvaluateEmptyInput(t *testing.T) {
	t.Parallel()

	e := NewBatchEvaluator(&fakeClassifier{
		respond: func([]BatchItem) (map[string]Decision, error) {
			t.Error("classifier must not be called for empty input")
			return nil, nil
		},
	}, nil, 10, 1, nil)

	require.Empty(t, e.Evaluate(context.Background(), "q", nil))
}
