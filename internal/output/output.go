// Package output renders the final ranked result set to machine- and
// human-readable files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nkhosla/paperfind/internal/scan"
)

// Writer persists scan reports under a root directory.
type Writer struct {
	root   string
	logger *zap.Logger
}

// NewWriter creates the output directory if needed.
func NewWriter(root string, logger *zap.Logger) (*Writer, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{root: root, logger: logger}, nil
}

// Write saves the report as JSON and Markdown and returns both paths.
func (w *Writer) Write(report scan.Report) (jsonPath, mdPath string, err error) {
	stamp := report.StartedAt.Format("20060102_150405")
	base := "find_" + stamp
	if report.RunID != "" {
		base += "_" + shortID(report.RunID)
	}
	jsonPath = filepath.Join(w.root, base+".json")
	mdPath = filepath.Join(w.root, base+".md")

	if err := w.writeJSON(jsonPath, report); err != nil {
		return "", "", err
	}
	if err := w.writeMarkdown(mdPath, report); err != nil {
		return "", "", err
	}
	w.logger.Info("results written",
		zap.String("json", jsonPath), zap.String("markdown", mdPath))
	return jsonPath, mdPath, nil
}

func (w *Writer) writeJSON(path string, report scan.Report) error {
	payload, err := json.MarshalIndent(struct {
		Criteria     string        `json:"criteria"`
		RunID        string        `json:"run_id"`
		Timestamp    time.Time     `json:"timestamp"`
		TotalMatches int           `json:"total_matches"`
		Results      []scan.Result `json:"results"`
	}{
		Criteria:     report.Criteria,
		RunID:        report.RunID,
		Timestamp:    report.StartedAt,
		TotalMatches: len(report.Results),
		Results:      report.Results,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o600); err != nil {
		return fmt.Errorf("write report %s: %w", path, err)
	}
	return nil
}

func (w *Writer) writeMarkdown(path string, report scan.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# Search Results: %s\n", report.Criteria)
	fmt.Fprintf(&b, "Generated at: %s\n\n", report.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Total Matches: %d\n\n", len(report.Results))

	for i, r := range report.Results {
		c := r.Candidate
		fmt.Fprintf(&b, "## %d. %s\n", i+1, c.Filename)
		fmt.Fprintf(&b, "- **Channel**: %s\n", c.ChannelName)
		fmt.Fprintf(&b, "- **Size**: %.2f MB\n", c.SizeMB())
		fmt.Fprintf(&b, "- **Link**: [Open in Telegram](%s)\n", c.Link)
		fmt.Fprintf(&b, "- **Decision**: %s (Conf: %.2f)\n", r.Decision.Verdict, r.Decision.Confidence)
		fmt.Fprintf(&b, "- **Reasons**: %s\n", strings.Join(r.Decision.Reasons, ", "))
		b.WriteString("\n---\n")
	}

	if err := os.WriteFile(path, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("write markdown %s: %w", path, err)
	}
	return nil
}

func shortID(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
