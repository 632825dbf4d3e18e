package domain

import "time"

// LocalZone is the fixed UTC+8 offset used for every user-visible and
// persisted timestamp.
var LocalZone = time.FixedZone("UTC+8", 8*60*60)

// TimestampLayout is the reply timestamp format.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatTimestamp renders t in LocalZone using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.In(LocalZone).Format(TimestampLayout)
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
