// Package worker mirrors confirmed transaction snapshots to an external
// copy (Google Sheets in production). It consumes snapshot-saved messages
// and reloads the authoritative set from storage, so a redelivered or
// stale message still produces a correct mirror.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bilancio/internal/amqp"
	"bilancio/internal/core"
	"bilancio/internal/sheets"
)

// Store is the read side of the persistence layer the worker needs.
type Store interface {
	ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error)
}

// Consumer delivers snapshot messages until the context ends.
type Consumer interface {
	ConsumeSnapshotSaved(ctx context.Context, handler func(*amqp.SnapshotSavedMessage) error) error
}

type MirrorWorker struct {
	store  Store
	mirror sheets.SnapshotMirror
}

func NewMirrorWorker(store Store, mirror sheets.SnapshotMirror) *MirrorWorker {
	return &MirrorWorker{store: store, mirror: mirror}
}

// HandleSnapshot processes one snapshot-saved message.
func (w *MirrorWorker) HandleSnapshot(ctx context.Context, msg *amqp.SnapshotSavedMessage) error {
	txs, err := w.store.ListTransactions(ctx, msg.OwnerID)
	if err != nil {
		return fmt.Errorf("load snapshot for %s: %w", msg.OwnerID, err)
	}

	if len(txs) != msg.Count {
		// The set changed after the message was published; the stored
		// set is authoritative, mirror it anyway.
		slog.WarnContext(ctx, "Snapshot count drifted since publish",
			"owner_id", msg.OwnerID,
			"message_count", msg.Count,
			"stored_count", len(txs))
	}

	if err := w.mirror.WriteSnapshot(ctx, msg.OwnerID, txs); err != nil {
		return fmt.Errorf("mirror snapshot for %s: %w", msg.OwnerID, err)
	}

	slog.InfoContext(ctx, "Snapshot mirrored", "owner_id", msg.OwnerID, "rows", len(txs))
	return nil
}

// Run consumes messages until the context is cancelled.
func (w *MirrorWorker) Run(ctx context.Context, consumer Consumer) error {
	slog.InfoContext(ctx, "Mirror worker started")
	err := consumer.ConsumeSnapshotSaved(ctx, func(msg *amqp.SnapshotSavedMessage) error {
		return w.HandleSnapshot(ctx, msg)
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
