// Package store persists the merged donation record set as a single JSON
// snapshot and owns the exact-key and fuzzy deduplication rules applied on
// every merge.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/soopfest/balloonwatch/internal/logger"
	"github.com/soopfest/balloonwatch/internal/record"
)

const (
	// DefaultSource tags snapshots written by this process.
	DefaultSource = "balloonwatch"

	// OnlineWindow is the fuzzy-duplicate window used while polling. The
	// source can re-emit the same event with a timestamp several minutes
	// off, depending on which render path produced it.
	OnlineWindow = 5 * time.Minute

	// CleanupWindow is the tighter window used by offline compaction,
	// where donor and amount alone identify a duplicate.
	CleanupWindow = 60 * time.Second
)

// Snapshot is the on-disk document. The leaderboard front-end reads this
// format directly.
type Snapshot struct {
	Success    bool              `json:"success"`
	Data       []record.Donation `json:"data"`
	LastUpdate string            `json:"lastUpdate"`
	Source     string            `json:"source"`
}

// Store reads and writes one snapshot file. A single process owns a given
// file at a time; that is an operational convention, not enforced here.
type Store struct {
	path   string
	source string
	window time.Duration
}

// New creates a store for the given snapshot path using the online fuzzy
// window.
func New(path string) *Store {
	return &Store{path: path, source: DefaultSource, window: OnlineWindow}
}

// WithWindow overrides the fuzzy-duplicate window.
func (s *Store) WithWindow(w time.Duration) *Store {
	s.window = w
	return s
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted record set. A missing file is an empty store. A
// corrupt file is also treated as empty with a warning: losing the snapshot
// is preferable to wedging the poll loop, and the next merge rewrites it.
func (s *Store) Load() ([]record.Donation, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		logger.Warn("snapshot unreadable, starting empty", "path", s.path, "error", err)
		return nil, nil
	}
	return snap.Data, nil
}

// Save writes the record set as a full snapshot, via a temp file renamed
// over the destination so a crash mid-write leaves the previous snapshot
// intact.
func (s *Store) Save(data []record.Donation) error {
	snap := Snapshot{
		Success:    true,
		Data:       data,
		LastUpdate: time.Now().UTC().Format(time.RFC3339),
		Source:     s.source,
	}

	raw, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Apply merges a batch into the persisted set and saves the result. It
// returns the number of genuinely new records, which the poll loop uses for
// its idle/active throttle.
func (s *Store) Apply(batch []record.Donation) (int, error) {
	existing, err := s.Load()
	if err != nil {
		return 0, err
	}

	merged, added, changed := Merge(existing, batch, s.window)
	if added == 0 && !changed {
		logger.Debug("merge produced no changes", "records", len(existing))
		return 0, nil
	}

	if err := s.Save(merged); err != nil {
		return 0, err
	}
	logger.Debug("snapshot saved", "records", len(merged), "added", added)
	return added, nil
}

// Merge folds a batch of newly extracted records into the existing set.
// Records sharing an identity key collapse to one; records matching on
// (donor, amount, message) within the fuzzy window are one observation.
// The result is sorted strictly timestamp-descending. Merge is idempotent:
// applying the same batch twice changes nothing the second time. Besides
// the count of genuinely new records it reports whether any existing
// record was updated in place, so callers know a save is due even when
// nothing was appended.
func Merge(existing, batch []record.Donation, window time.Duration) ([]record.Donation, int, bool) {
	out := make([]record.Donation, len(existing))
	copy(out, existing)

	index := make(map[string]int, len(out))
	for i, d := range out {
		index[d.MessageID] = i
	}

	added := 0
	changed := false
	for _, nw := range batch {
		if i, ok := index[nw.MessageID]; ok {
			if p := preferred(out[i], nw); p != out[i] {
				out[i] = p
				changed = true
			}
			continue
		}

		if i := fuzzyMatch(out, nw, window); i >= 0 {
			// Same underlying event seen with a different generated ID.
			// The incumbent survives but may learn the target name.
			if !out[i].Classified() && nw.Classified() {
				out[i].TargetName = nw.TargetName
				changed = true
			}
			continue
		}

		index[nw.MessageID] = len(out)
		out = append(out, nw)
		added++
	}

	sortDescending(out)
	return out, added, changed
}

// preferred resolves an exact identity-key collision. Non-empty target name
// wins, then the longer message, then the incumbent.
func preferred(old, nw record.Donation) record.Donation {
	if old.Classified() != nw.Classified() {
		if nw.Classified() {
			return nw
		}
		return old
	}
	if len(nw.Message) > len(old.Message) {
		return nw
	}
	return old
}

// fuzzyMatch returns the index of a record that matches nw on donor, amount
// and message with a timestamp inside the window, or -1.
func fuzzyMatch(set []record.Donation, nw record.Donation, window time.Duration) int {
	nt := record.ParseDate(nw.CreateDate)
	for i, d := range set {
		if d.DonorName != nw.DonorName || d.Amount != nw.Amount || d.Message != nw.Message {
			continue
		}
		if absDiff(record.ParseDate(d.CreateDate), nt) < window {
			return i
		}
	}
	return -1
}

// Compact removes near-duplicate records from an existing set: same donor
// and amount within the cleanup window, keeping the classified one (or the
// later one when neither side wins). Used by the offline dedupe pass over
// stores that accumulated duplicates before fuzzy merging existed.
func Compact(data []record.Donation, window time.Duration) []record.Donation {
	sorted := make([]record.Donation, len(data))
	copy(sorted, data)
	sortDescending(sorted)

	removed := make(map[int]bool)
	for i := 0; i < len(sorted); i++ {
		if removed[i] {
			continue
		}
		ti := record.ParseDate(sorted[i].CreateDate)
		for j := i + 1; j < len(sorted); j++ {
			if removed[j] {
				continue
			}
			// Descending order: once outside the window nothing later
			// can be inside it.
			if absDiff(ti, record.ParseDate(sorted[j].CreateDate)) > window {
				break
			}
			if sorted[i].DonorName != sorted[j].DonorName || sorted[i].Amount != sorted[j].Amount {
				continue
			}
			if !sorted[i].Classified() && sorted[j].Classified() {
				removed[i] = true
				break
			}
			removed[j] = true
		}
	}

	out := sorted[:0]
	for i, d := range sorted {
		if !removed[i] {
			out = append(out, d)
		}
	}
	return out
}

func sortDescending(data []record.Donation) {
	sort.SliceStable(data, func(i, j int) bool {
		ti, tj := record.ParseDate(data[i].CreateDate), record.ParseDate(data[j].CreateDate)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return data[i].MessageID > data[j].MessageID
	})
}

func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}
