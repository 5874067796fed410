package scan

// Deduplicate collapses multiple observations of the same physical
// document, keyed by (filename, size), keeping the latest-posted
// representative. Equal timestamps fall back to the higher message ID
// so the output is a pure function of the input set, independent of
// arrival order. Input candidates are never mutated.
func Deduplicate(candidates []Candidate) []Candidate {
	byKey := make(map[CandidateKey]Candidate, len(candidates))
	for _, c := range candidates {
		key := c.Key()
		cur, seen := byKey[key]
		if !seen || newer(c, cur) {
			byKey[key] = c
		}
	}

	out := make([]Candidate, 0, len(byKey))
	for _, c := range byKey {
		out = append(out, c)
	}
	return out
}

func newer(a, b Candidate) bool {
	if a.PostedAt.After(b.PostedAt) {
		return true
	}
	return a.PostedAt.Equal(b.PostedAt) && a.MessageID > b.MessageID
}
