package record

import (
	"regexp"
	"strings"
	"time"
)

// DateLayout is the absolute timestamp format used throughout the snapshot
// store.
const DateLayout = "2006-01-02 15:04:05"

var (
	absoluteRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)
	partialRe  = regexp.MustCompile(`\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)
	timeOnlyRe = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}$`)

	yearPrefixRe   = regexp.MustCompile(`^\d{4}-`)
	partialExactRe = regexp.MustCompile(`^\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
)

// NormalizeDate resolves a scraped timestamp to an absolute
// "YYYY-MM-DD HH:MM:SS" string anchored to now. It is a total function:
// empty or unrecognized input yields now rather than an error, because a
// record with a best-effort timestamp is still worth keeping.
func NormalizeDate(s string, now time.Time) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return now.Format(DateLayout)
	case yearPrefixRe.MatchString(s):
		// Already absolute.
		return s
	case partialExactRe.MatchString(s):
		// "MM-DD HH:MM:SS" from a source that omits the year.
		return now.Format("2006") + "-" + s
	case timeOnlyRe.MatchString(s):
		// Bare "HH:MM:SS" from a grid cell that only renders the time.
		return now.Format("2006-01-02") + " " + s
	default:
		return now.Format(DateLayout)
	}
}

// StripTimestamps removes timestamp fragments that leak into the message
// field when the source concatenates grid cells. Both absolute and
// year-less forms are stripped.
func StripTimestamps(msg string) string {
	msg = absoluteRe.ReplaceAllString(msg, "")
	msg = partialRe.ReplaceAllString(msg, "")
	return strings.TrimSpace(msg)
}

// RelativeToAbsolute anchors an "HH:MM:SS" offset from the broadcast start
// to an absolute timestamp. Used when importing snapshots that recorded
// relative times only. Returns false if rel does not parse.
func RelativeToAbsolute(rel string, start time.Time) (string, bool) {
	rel = strings.TrimSpace(rel)
	if !timeOnlyRe.MatchString(rel) {
		return "", false
	}
	d, err := time.ParseDuration(rel[0:2] + "h" + rel[3:5] + "m" + rel[6:8] + "s")
	if err != nil {
		return "", false
	}
	return start.Add(d).Format(DateLayout), true
}

// ParseDate parses a normalized store timestamp. The zero time is returned
// for anything that does not parse, which sorts such records last.
func ParseDate(s string) time.Time {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
