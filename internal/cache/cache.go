// Package cache persists evaluation decisions as fingerprint-addressed
// JSON files.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nkhosla/paperfind/internal/fingerprint"
	"github.com/nkhosla/paperfind/internal/scan"
)

// Store is an append-only, content-addressed decision cache rooted at
// a directory. Entries are never updated in place: a changed criteria,
// filename, or size yields a new fingerprint and hence a new file.
type Store struct {
	root   string
	logger *zap.Logger
}

// NewStore creates the cache root if needed and returns a Store.
func NewStore(root string, logger *zap.Logger) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{root: root, logger: logger}, nil
}

// Lookup returns the persisted decision for the (criteria, candidate)
// pair, if any. Corrupted entries are treated as misses, never as
// failures.
func (s *Store) Lookup(criteria string, c scan.Candidate) (scan.Decision, bool) {
	path := s.entryPath(criteria, c)
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("unreadable cache entry, treating as miss",
				zap.String("path", path), zap.Error(err))
		}
		return scan.Decision{}, false
	}

	var d scan.Decision
	if err := json.Unmarshal(data, &d); err != nil {
		s.logger.Warn("malformed cache entry, treating as miss",
			zap.String("path", path), zap.Error(err))
		return scan.Decision{}, false
	}
	if d.Verdict == "" {
		s.logger.Warn("cache entry missing verdict, treating as miss",
			zap.String("path", path))
		return scan.Decision{}, false
	}
	return d, true
}

// Store persists the decision under its fingerprint. Writes go through
// a temp file and rename, so concurrent writers for the same
// fingerprint resolve last-write-wins without interleaving.
func (s *Store) Store(criteria string, c scan.Candidate, d scan.Decision) error {
	path := s.entryPath(criteria, c)
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}

	tmp, err := os.CreateTemp(s.root, "entry-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp entry: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp entry: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publish cache entry %s: %w", path, err)
	}
	return nil
}

func (s *Store) entryPath(criteria string, c scan.Candidate) string {
	fp := fingerprint.New(criteria, c.Filename, c.Size)
	return filepath.Join(s.root, fp+".json")
}

var _ scan.DecisionCache = (*Store)(nil)
