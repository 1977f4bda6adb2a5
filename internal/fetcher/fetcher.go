// Package fetcher loads the monitoring dashboard and turns what it observes
// into donation records. Two channels feed the same pipeline: captured
// network responses and the rendered grid DOM, because the dashboard's data
// path is not stable enough to trust either one alone.
package fetcher

import (
	"bytes"
	"context"
	"time"

	"github.com/soopfest/balloonwatch/internal/record"
)

// Source fetches one scrape batch from a target URL.
type Source interface {
	// Fetch returns every donation record observed in one pass. Records
	// from the network and DOM channels arrive in no particular order;
	// the merge store deduplicates them regardless.
	Fetch(ctx context.Context, url string) ([]record.Donation, error)

	// Close releases any resources (browser instances, etc.).
	Close() error

	// Type returns "monitor" or "static".
	Type() string
}

// Config holds common fetcher configuration.
type Config struct {
	UserAgent   string
	Timeout     time.Duration // per navigation, not per cycle
	SettleDelay time.Duration // wait after load before scanning
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		UserAgent:   "balloonwatch/1.0 (https://github.com/soopfest/balloonwatch)",
		Timeout:     30 * time.Second,
		SettleDelay: 5 * time.Second,
	}
}

// looksLikeJSON reports whether a response body is worth handing to the
// payload extractor. Tiny bodies are pings and empty envelopes.
func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) <= 10 {
		return false
	}
	return trimmed[0] == '{' || trimmed[0] == '['
}
