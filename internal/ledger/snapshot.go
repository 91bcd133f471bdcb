package ledger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"main/internal/model"

	"github.com/yanun0323/errors"
)

// Snapshot captures held positions at a point in time for restart
// continuity.
type Snapshot struct {
	Timestamp int64           `json:"timestamp"`
	Realized  model.Notional  `json:"realizedPnl"`
	Positions []SnapshotEntry `json:"positions"`
}

// SnapshotEntry is a single asset entry.
type SnapshotEntry struct {
	Symbol       string         `json:"symbol"`
	Qty          model.Quantity `json:"qty"`
	Cost         model.Notional `json:"cost"`
	CurrentPrice model.Price    `json:"currentPrice"`
}

// Snapshot builds a snapshot from current positions.
func (l *Ledger) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries := make([]SnapshotEntry, 0, len(l.positions))
	for symbol, pos := range l.positions {
		entries = append(entries, SnapshotEntry{
			Symbol:       symbol,
			Qty:          pos.qty,
			Cost:         pos.cost,
			CurrentPrice: pos.current,
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Symbol < entries[j].Symbol })

	return Snapshot{
		Timestamp: time.Now().UTC().UnixNano(),
		Realized:  l.realized,
		Positions: entries,
	}
}

// ApplySnapshot replaces ledger state with a snapshot. The applied-id
// barrier is reset: a snapshot marks a clean boundary.
func (l *Ledger) ApplySnapshot(snapshot Snapshot) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.positions = make(map[string]*position, len(snapshot.Positions))
	l.applied = make(map[uint64]struct{})
	l.realized = snapshot.Realized
	for _, entry := range snapshot.Positions {
		if entry.Qty == 0 {
			continue
		}
		l.positions[entry.Symbol] = &position{
			qty:     entry.Qty,
			cost:    entry.Cost,
			current: entry.CurrentPrice,
		}
	}
}

// WriteSnapshot writes a snapshot to disk as JSON.
func WriteSnapshot(path string, snapshot Snapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return errors.Wrap(err, "marshal snapshot")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrap(err, "create snapshot dir")
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrap(err, "write snapshot")
	}
	return nil
}

// ReadSnapshot loads a snapshot from disk.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "read snapshot")
	}
	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return Snapshot{}, errors.Wrap(err, "unmarshal snapshot")
	}
	return snapshot, nil
}
