// Package poller drives the repeated fetch, extract, merge and persist
// cycle against one source URL, throttling itself when the source goes
// quiet.
package poller

import (
	"context"
	"time"

	"github.com/soopfest/balloonwatch/internal/classify"
	"github.com/soopfest/balloonwatch/internal/fetcher"
	"github.com/soopfest/balloonwatch/internal/logger"
	"github.com/soopfest/balloonwatch/internal/store"
)

// State is the throttle state of the loop.
type State string

const (
	// StateActive polls at the short interval; new records were observed
	// within the quiet period.
	StateActive State = "active"

	// StateIdle polls at the long interval; nothing new for a while.
	StateIdle State = "idle"
)

// Config controls the loop cadence.
type Config struct {
	URL            string
	ActiveInterval time.Duration // poll interval while active
	IdleInterval   time.Duration // poll interval while idle
	QuietPeriod    time.Duration // no new records for this long flips to idle
	Backoff        time.Duration // sleep after a failed cycle
}

// DefaultConfig matches the cadence the dashboard tolerates.
func DefaultConfig() Config {
	return Config{
		ActiveInterval: 15 * time.Second,
		IdleInterval:   60 * time.Second,
		QuietPeriod:    2 * time.Minute,
		Backoff:        5 * time.Second,
	}
}

// Poller owns one source URL and one destination store. All throttle state
// lives here; there is exactly one writer per destination file by
// operational convention.
type Poller struct {
	cfg        Config
	source     fetcher.Source
	store      *store.Store
	classifier *classify.Classifier

	state   State
	lastNew time.Time
	now     func() time.Time
}

// New creates a poller. The classifier may be nil, in which case records
// keep whatever target the extractor scraped.
func New(cfg Config, src fetcher.Source, st *store.Store, clf *classify.Classifier) *Poller {
	def := DefaultConfig()
	if cfg.ActiveInterval == 0 {
		cfg.ActiveInterval = def.ActiveInterval
	}
	if cfg.IdleInterval == 0 {
		cfg.IdleInterval = def.IdleInterval
	}
	if cfg.QuietPeriod == 0 {
		cfg.QuietPeriod = def.QuietPeriod
	}
	if cfg.Backoff == 0 {
		cfg.Backoff = def.Backoff
	}
	return &Poller{
		cfg:        cfg,
		source:     src,
		store:      st,
		classifier: clf,
		state:      StateActive,
		now:        time.Now,
	}
}

// State returns the current throttle state.
func (p *Poller) State() State {
	return p.state
}

// Run executes cycles until the context is cancelled. Cycle failures are
// logged and retried after the backoff; the loop itself never gives up.
func (p *Poller) Run(ctx context.Context) error {
	logger.Info("poller starting",
		"url", p.cfg.URL,
		"store", p.store.Path(),
		"active_interval", p.cfg.ActiveInterval,
		"idle_interval", p.cfg.IdleInterval)

	p.lastNew = p.now()

	for {
		added, err := p.cycle(ctx)
		var wait time.Duration
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Error("cycle failed, backing off", "url", p.cfg.URL, "error", err)
			wait = p.cfg.Backoff
		} else {
			p.advance(added, p.now())
			logger.Debug("cycle complete", "url", p.cfg.URL, "new_records", added, "state", p.state)
			wait = p.interval()
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// cycle runs one fetch-extract-merge-persist pass.
func (p *Poller) cycle(ctx context.Context) (int, error) {
	batch, err := p.source.Fetch(ctx, p.cfg.URL)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	if p.classifier != nil {
		for i := range batch {
			p.classifier.Apply(&batch[i])
		}
	}

	return p.store.Apply(batch)
}

// advance updates the throttle state from the outcome of a cycle. Any new
// distinct record flips to active immediately; a full quiet period without
// one flips to idle.
func (p *Poller) advance(added int, now time.Time) {
	if added > 0 {
		p.lastNew = now
		if p.state != StateActive {
			logger.Info("source active again", "url", p.cfg.URL)
		}
		p.state = StateActive
		return
	}
	if p.state == StateActive && now.Sub(p.lastNew) >= p.cfg.QuietPeriod {
		logger.Info("source quiet, throttling", "url", p.cfg.URL, "quiet_period", p.cfg.QuietPeriod)
		p.state = StateIdle
	}
}

// interval returns the wait before the next cycle for the current state.
func (p *Poller) interval() time.Duration {
	if p.state == StateIdle {
		return p.cfg.IdleInterval
	}
	return p.cfg.ActiveInterval
}
