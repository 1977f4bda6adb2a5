package poller

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/soopfest/balloonwatch/internal/record"
	"github.com/soopfest/balloonwatch/internal/store"
)

// fakeSource returns its queued batches one per Fetch call, then empties.
type fakeSource struct {
	batches [][]record.Donation
	err     error
	calls   int
}

func (f *fakeSource) Fetch(ctx context.Context, url string) ([]record.Donation, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, nil
	}
	b := f.batches[0]
	f.batches = f.batches[1:]
	return b, nil
}

func (f *fakeSource) Close() error { return nil }
func (f *fakeSource) Type() string { return "fake" }

func testStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(filepath.Join(t.TempDir(), "crawl_data.json"))
}

func donation(date, donor string, amount int) record.Donation {
	return record.Donation{
		MessageID:  record.IdentityKey(date, donor, amount),
		CreateDate: date,
		DonorName:  donor,
		Amount:     amount,
	}
}

func TestAdvance_StateMachine(t *testing.T) {
	p := New(Config{QuietPeriod: 2 * time.Minute}, &fakeSource{}, testStore(t), nil)
	base := time.Date(2025, 12, 13, 10, 0, 0, 0, time.Local)
	p.lastNew = base

	if p.State() != StateActive {
		t.Fatalf("initial state = %q, want active", p.State())
	}

	// Nothing new, but still inside the quiet period.
	p.advance(0, base.Add(time.Minute))
	if p.State() != StateActive {
		t.Errorf("state flipped early: %q", p.State())
	}

	// Quiet period elapsed.
	p.advance(0, base.Add(2*time.Minute))
	if p.State() != StateIdle {
		t.Errorf("state = %q, want idle after quiet period", p.State())
	}

	// A single new record reactivates immediately.
	p.advance(1, base.Add(10*time.Minute))
	if p.State() != StateActive {
		t.Errorf("state = %q, want active after new record", p.State())
	}

	// And the quiet clock restarted at the last new record.
	p.advance(0, base.Add(11*time.Minute))
	if p.State() != StateActive {
		t.Errorf("state = %q, quiet clock did not restart", p.State())
	}
}

func TestInterval(t *testing.T) {
	p := New(Config{ActiveInterval: 15 * time.Second, IdleInterval: time.Minute}, &fakeSource{}, testStore(t), nil)

	if got := p.interval(); got != 15*time.Second {
		t.Errorf("active interval = %v", got)
	}
	p.state = StateIdle
	if got := p.interval(); got != time.Minute {
		t.Errorf("idle interval = %v", got)
	}
}

func TestNew_Defaults(t *testing.T) {
	p := New(Config{}, &fakeSource{}, testStore(t), nil)

	def := DefaultConfig()
	if p.cfg.ActiveInterval != def.ActiveInterval || p.cfg.IdleInterval != def.IdleInterval {
		t.Errorf("intervals not defaulted: %+v", p.cfg)
	}
	if p.cfg.QuietPeriod != def.QuietPeriod || p.cfg.Backoff != def.Backoff {
		t.Errorf("quiet/backoff not defaulted: %+v", p.cfg)
	}
}

func TestCycle_PersistsBatch(t *testing.T) {
	st := testStore(t)
	src := &fakeSource{batches: [][]record.Donation{
		{donation("2025-12-13 10:00:00", "u1", 1000)},
	}}
	p := New(Config{}, src, st, nil)

	added, err := p.cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle() error = %v", err)
	}
	if added != 1 {
		t.Errorf("added = %d, want 1", added)
	}

	data, err := st.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(data) != 1 || data[0].DonorName != "u1" {
		t.Errorf("store after cycle = %+v", data)
	}
}

func TestCycle_EmptyBatchSkipsStore(t *testing.T) {
	st := testStore(t)
	p := New(Config{}, &fakeSource{}, st, nil)

	added, err := p.cycle(context.Background())
	if err != nil {
		t.Fatalf("cycle() error = %v", err)
	}
	if added != 0 {
		t.Errorf("added = %d, want 0", added)
	}
}

func TestCycle_FetchError(t *testing.T) {
	src := &fakeSource{err: errors.New("browser crashed")}
	p := New(Config{}, src, testStore(t), nil)

	if _, err := p.cycle(context.Background()); err == nil {
		t.Error("expected fetch error to propagate")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	src := &fakeSource{batches: [][]record.Donation{
		{donation("2025-12-13 10:00:00", "u1", 1000)},
	}}
	p := New(Config{ActiveInterval: 10 * time.Millisecond, IdleInterval: 10 * time.Millisecond}, src, testStore(t), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := p.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want deadline exceeded", err)
	}
	if src.calls == 0 {
		t.Error("Run() never fetched")
	}
}
