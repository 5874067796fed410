package scan

import (
	"context"
	"time"
)

// Source enumerates channels and their messages. Implementations own
// connection and session lifecycle; the pipeline never touches
// transport details.
type Source interface {
	// Connect establishes the session. It may fail with a transient
	// resource-lock condition distinguishable via IsTransient.
	Connect(ctx context.Context) error
	// Channels lists the broadcast-type sources visible to the account.
	Channels(ctx context.Context) ([]Channel, error)
	// Messages enumerates messages in a channel, newest first as far as
	// the transport allows. limit <= 0 means unbounded.
	Messages(ctx context.Context, ch Channel, limit int) ([]Message, error)
	Close() error
}

// Classifier obtains relevance decisions for a batch of candidates.
// The response maps the string form of each item's index to its
// decision; implementations convert transport failures into errors,
// never panics.
type Classifier interface {
	EvaluateBatch(ctx context.Context, criteria string, items []BatchItem) (map[string]Decision, error)
}

// DecisionCache persists evaluation decisions keyed by a content
// fingerprint. Absence is not an error; corrupted entries are misses.
type DecisionCache interface {
	Lookup(criteria string, c Candidate) (Decision, bool)
	Store(criteria string, c Candidate, d Decision) error
}

// LanguageDetector gates candidates on their probable language.
// Implementations must fail open: ambiguous or empty text passes.
type LanguageDetector interface {
	Matches(text string) bool
}

// Clock returns the current time (injectable for tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
