package scan

import (
	"fmt"
	"time"
)

// Verdict is the outcome of judging a candidate against search criteria.
type Verdict string

// Verdicts returned by the classifier and persisted in the decision cache.
const (
	VerdictRelevant    Verdict = "RELEVANT"
	VerdictNotRelevant Verdict = "NOT_RELEVANT"
	VerdictUncertain   Verdict = "UNCERTAIN"
)

// Decision is the evaluation outcome for one candidate. A decision
// computed for a given (criteria, filename, size) triple is immutable
// for the lifetime of the cache.
type Decision struct {
	Verdict    Verdict  `json:"decision"`
	Confidence float64  `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

// Channel describes one broadcast source in the account's dialog list.
type Channel struct {
	ID         int64
	AccessHash int64
	Title      string
	Username   string
}

// Document is the attached-file metadata exposed by a message.
type Document struct {
	Filename string
	Size     int64
}

// Message is one raw message observed in a channel.
type Message struct {
	ID       int
	Date     time.Time
	Caption  string
	Document *Document
}

// Candidate is one physical document observed in the channel stream.
// Two observations with the same (Filename, Size) are the same document.
type Candidate struct {
	MessageID   int
	ChannelID   int64
	ChannelName string
	Filename    string
	Size        int64
	PostedAt    time.Time
	Caption     string
	Link        string
}

// Key returns the deduplication identity of the candidate.
func (c Candidate) Key() CandidateKey {
	return CandidateKey{Filename: c.Filename, Size: c.Size}
}

// SizeMB renders the document size in megabytes for human output.
func (c Candidate) SizeMB() float64 {
	return float64(c.Size) / (1024 * 1024)
}

// CandidateKey identifies a physical document across observations.
type CandidateKey struct {
	Filename string
	Size     int64
}

// Result is a candidate that survived matching, with its decision.
type Result struct {
	Candidate Candidate `json:"candidate"`
	Decision  Decision  `json:"decision"`
}

// BatchItem is one (index, filename, caption) tuple sent to the
// classifier. Index is local to the batch and is the only correlation
// key expected back.
type BatchItem struct {
	ID       int    `json:"id"`
	Filename string `json:"filename"`
	Caption  string `json:"caption"`
}

// State is the orchestrator's lifecycle phase, logged on transition.
type State string

// Orchestrator states.
const (
	StateConnecting    State = "connecting"
	StateEnumerating   State = "enumerating_channels"
	StateExtracting    State = "extracting"
	StateDeduplicating State = "deduplicating"
	StateCacheLookup   State = "cache_lookup"
	StateEvaluating    State = "batch_evaluating"
	StateRanking       State = "ranking"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Report is the terminal output of a scan run.
type Report struct {
	RunID            string    `json:"run_id"`
	Criteria         string    `json:"criteria"`
	StartedAt        time.Time `json:"started_at"`
	ChannelsScanned  int       `json:"channels_scanned"`
	CandidatesFound  int       `json:"candidates_found"`
	UniqueCandidates int       `json:"unique_candidates"`
	CacheHits        int       `json:"cache_hits"`
	Evaluated        int       `json:"evaluated"`
	Results          []Result  `json:"results"`
}

// DeepLink builds a reconstructible locator back to the original
// message. Public channels get a t.me URL; private ones fall back to
// the tg:// scheme.
func DeepLink(ch Channel, messageID int) string {
	if ch.Username != "" {
		return fmt.Sprintf("https://t.me/%s/%d", ch.Username, messageID)
	}
	return fmt.Sprintf("tg://openmessage?chat_id=%d&message_id=%d", ch.ID, messageID)
}
