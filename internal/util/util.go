package util

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// NormalizePhone returns the storage form of a phone number: digits only
// with a leading +. Inputs without any digits are returned unchanged.
func NormalizePhone(p string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(p) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return p
	}
	return "+" + b.String()
}

func NewAttemptID() string {
	// ULID is sortable (nice for DB indexes and dashboards)
	t := time.Now().UTC()
	return "att_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}

// TruncateRunes bounds s to at most n runes for storage.
func TruncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
