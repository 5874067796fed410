package scan

import (
	"path/filepath"
	"strconv"
	"strings"
)

// ExtractorOptions tunes which gates apply during extraction. The
// denylist and language gates only make sense for semantic scans,
// where unrelated software-distribution channels pollute the stream.
type ExtractorOptions struct {
	AllowedExts   []string // document/archive formats, e.g. .pdf
	DeniedExts    []string // executable/installer formats, e.g. .apk
	HintTokens    []string // periodical-indicating tokens
	DenylistOn    bool
	HintsRequired bool // require allowlist ext or hint token
	LanguageCheck bool
}

// Extractor inspects one message and decides whether it denotes a
// document worth considering. It is stateless per message.
type Extractor struct {
	allowed  map[string]struct{}
	denied   map[string]struct{}
	hints    []string
	opts     ExtractorOptions
	detector LanguageDetector
}

// NewExtractor builds an Extractor. The current and next year are
// added to the hint tokens so fresh issues without a recognizable
// extension still qualify.
func NewExtractor(opts ExtractorOptions, detector LanguageDetector, clock Clock) *Extractor {
	e := &Extractor{
		allowed:  extSet(opts.AllowedExts),
		denied:   extSet(opts.DeniedExts),
		opts:     opts,
		detector: detector,
	}
	for _, h := range opts.HintTokens {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			e.hints = append(e.hints, h)
		}
	}
	if clock != nil {
		year := clock.Now().Year()
		e.hints = append(e.hints, strconv.Itoa(year), strconv.Itoa(year+1))
	}
	return e
}

// Extract returns the candidate derived from msg, or false when the
// message does not denote a qualifying document.
func (e *Extractor) Extract(msg Message, ch Channel) (Candidate, bool) {
	if msg.Document == nil || msg.Document.Filename == "" {
		return Candidate{}, false
	}

	filename := msg.Document.Filename
	ext := strings.ToLower(filepath.Ext(filename))

	if e.opts.DenylistOn {
		if _, denied := e.denied[ext]; denied {
			return Candidate{}, false
		}
	}

	if e.opts.HintsRequired && !e.qualifies(ext, filename, msg.Caption) {
		return Candidate{}, false
	}

	// Fail open: an undetectable language must not drop a legitimate
	// candidate. Precision is traded for recall here.
	if e.opts.LanguageCheck && e.detector != nil {
		if !e.detector.Matches(strings.TrimSpace(filename + " " + msg.Caption)) {
			return Candidate{}, false
		}
	}

	return Candidate{
		MessageID:   msg.ID,
		ChannelID:   ch.ID,
		ChannelName: ch.Title,
		Filename:    filename,
		Size:        msg.Document.Size,
		PostedAt:    msg.Date,
		Caption:     msg.Caption,
		Link:        DeepLink(ch, msg.ID),
	}, true
}

// HasDeniedAttachment reports whether the message carries a document
// whose extension is on the denylist. Used by the junk-channel probe.
func (e *Extractor) HasDeniedAttachment(msg Message) bool {
	if msg.Document == nil || msg.Document.Filename == "" {
		return false
	}
	_, denied := e.denied[strings.ToLower(filepath.Ext(msg.Document.Filename))]
	return denied
}

func (e *Extractor) qualifies(ext, filename, caption string) bool {
	if _, ok := e.allowed[ext]; ok {
		return true
	}
	lowered := strings.ToLower(filename + " " + caption)
	for _, hint := range e.hints {
		if strings.Contains(lowered, hint) {
			return true
		}
	}
	return false
}

func extSet(exts []string) map[string]struct{} {
	set := make(map[string]struct{}, len(exts))
	for _, raw := range exts {
		ext := strings.ToLower(strings.TrimSpace(raw))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		set[ext] = struct{}{}
	}
	return set
}
