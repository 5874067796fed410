// Package lang gates candidates on their probable language.
package lang

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// Detector identifies the language of filename+caption text and
// compares it against a target ISO 639-3 code. Detection over short,
// underscore-ridden filenames is noisy, so the detector fails open:
// empty or unreliable input passes.
type Detector struct {
	target string
}

// New returns a Detector for the given ISO 639-3 code (e.g. "eng").
// An empty code disables the gate entirely.
func New(target string) *Detector {
	return &Detector{target: strings.ToLower(strings.TrimSpace(target))}
}

// Matches reports whether text is probably in the target language.
// Ambiguous input passes; precision is sacrificed for recall.
func (d *Detector) Matches(text string) bool {
	if d.target == "" {
		return true
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}

	info := whatlanggo.Detect(text)
	if !info.IsReliable() {
		return true
	}
	return strings.EqualFold(whatlanggo.LangToString(info.Lang), d.target)
}
