// Package memory is an in-process SnapshotMirror used in tests and when
// no Google Sheets credentials are configured.
package memory

import (
	"context"
	"sync"

	"bilancio/internal/core"
)

type Mirror struct {
	mu        sync.Mutex
	snapshots map[string][]core.Transaction
	writes    int
}

func New() *Mirror {
	return &Mirror{snapshots: make(map[string][]core.Transaction)}
}

// WriteSnapshot replaces the stored copy for the owner.
func (m *Mirror) WriteSnapshot(_ context.Context, ownerID string, txs []core.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]core.Transaction, len(txs))
	copy(cp, txs)
	m.snapshots[ownerID] = cp
	m.writes++
	return nil
}

// Snapshot returns a copy of the mirrored set for the owner.
func (m *Mirror) Snapshot(ownerID string) []core.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.snapshots[ownerID]
	cp := make([]core.Transaction, len(src))
	copy(cp, src)
	return cp
}

// Writes returns the total number of snapshot writes.
func (m *Mirror) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}
