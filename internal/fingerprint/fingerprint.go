// Package fingerprint derives content-addressed cache keys for
// evaluation decisions.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// New returns the hex SHA-256 digest identifying one
// (criteria, filename, size) evaluation unit. The criteria string is
// whitespace-normalized so cosmetic differences do not fork the cache.
func New(criteria, filename string, size int64) string {
	payload := Normalize(criteria) + ":" + filename + ":" + strconv.FormatInt(size, 10)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

// Normalize collapses runs of whitespace and trims the criteria string.
func Normalize(criteria string) string {
	return strings.Join(strings.Fields(criteria), " ")
}
