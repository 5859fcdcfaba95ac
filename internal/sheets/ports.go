package sheets

import (
	"context"

	"bilancio/internal/core"
)

// SnapshotMirror receives the full saved transaction set of one owner and
// rewrites its external copy. Implementations must be idempotent: the
// worker may deliver the same snapshot more than once.
type SnapshotMirror interface {
	WriteSnapshot(ctx context.Context, ownerID string, txs []core.Transaction) error
}
