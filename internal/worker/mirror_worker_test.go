package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/sheets/memory"
)

type stubStore struct {
	sets     map[string][]core.Transaction
	failWith error
}

func (s *stubStore) ListTransactions(_ context.Context, ownerID string) ([]core.Transaction, error) {
	if s.failWith != nil {
		return nil, s.failWith
	}
	return s.sets[ownerID], nil
}

func TestHandleSnapshotMirrorsStoredSet(t *testing.T) {
	d := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	store := &stubStore{sets: map[string][]core.Transaction{
		"u1": {
			{Date: d, Description: "stipendio", Category: "Stipendi e pensioni", Amount: core.Money{Cents: 210000}},
			{Date: d.AddDate(0, 0, 5), Description: "spesa", Category: "Spesa", Amount: core.Money{Cents: -4590}},
		},
	}}
	mirror := memory.New()
	w := NewMirrorWorker(store, mirror)

	msg := amqp.NewSnapshotSavedMessage("u1", 2)
	if err := w.HandleSnapshot(context.Background(), msg); err != nil {
		t.Fatalf("HandleSnapshot: %v", err)
	}

	snap := mirror.Snapshot("u1")
	if len(snap) != 2 {
		t.Fatalf("mirrored %d rows, want 2", len(snap))
	}
	if snap[0].Description != "stipendio" {
		t.Errorf("unexpected first row: %+v", snap[0])
	}
}

func TestHandleSnapshotCountDriftStillMirrors(t *testing.T) {
	store := &stubStore{sets: map[string][]core.Transaction{"u1": {
		{Date: time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), Description: "solo"},
	}}}
	mirror := memory.New()
	w := NewMirrorWorker(store, mirror)

	// The message claims 3 rows, storage holds 1: stored set wins.
	if err := w.HandleSnapshot(context.Background(), amqp.NewSnapshotSavedMessage("u1", 3)); err != nil {
		t.Fatalf("HandleSnapshot: %v", err)
	}
	if got := len(mirror.Snapshot("u1")); got != 1 {
		t.Fatalf("mirrored %d rows, want stored count 1", got)
	}
}

func TestHandleSnapshotStoreErrorPropagates(t *testing.T) {
	store := &stubStore{failWith: errors.New("db closed")}
	w := NewMirrorWorker(store, memory.New())

	if err := w.HandleSnapshot(context.Background(), amqp.NewSnapshotSavedMessage("u1", 1)); err == nil {
		t.Fatal("expected error from store")
	}
}
