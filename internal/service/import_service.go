// Package service orchestrates the ingestion cycle: normalize an upload,
// merge it with the persisted set, assign personal months, aggregate, and
// persist on explicit confirmation.
//
// Every cycle recomputes the derived views from scratch; period
// assignments are never stored.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"bilancio/internal/analytics"
	"bilancio/internal/core"
	"bilancio/internal/normalize"
	"bilancio/internal/periods"
)

// ConfirmReplacePhrase must be sent verbatim with a save request. It
// guards the whole-set write against accidental submission.
const ConfirmReplacePhrase = "sostituisci"

// SaveMode selects between overwriting the stored set and extending it.
type SaveMode string

const (
	SaveReplace SaveMode = "replace"
	SaveAppend  SaveMode = "append"
)

var (
	ErrConfirmationRequired = errors.New("confirmation phrase missing or wrong")
	ErrUnknownSaveMode      = errors.New("unknown save mode")
)

type (
	// TransactionStore is the persistence port: load, replace and append,
	// keyed by owner identity.
	TransactionStore interface {
		ListTransactions(ctx context.Context, ownerID string) ([]core.Transaction, error)
		ReplaceTransactions(ctx context.Context, ownerID string, txs []core.Transaction) error
		AppendTransactions(ctx context.Context, ownerID string, txs []core.Transaction) error
	}

	// SnapshotPublisher announces confirmed saves to the mirror worker.
	SnapshotPublisher interface {
		PublishSnapshotSaved(ctx context.Context, ownerID string, count int) error
	}

	// Workspace is the merged, not yet persisted transaction set produced
	// by one upload.
	Workspace struct {
		Transactions []core.Transaction
		Dropped      int
		UploadedAt   time.Time
	}

	// View is the full derived state rendered by the presentation layer.
	View struct {
		Assignments []periods.Assignment
		Periods     []periods.Period
		Report      analytics.Report
	}
)

type ImportService struct {
	store          TransactionStore
	publisher      SnapshotPublisher
	options        normalize.Options
	salaryCategory string
	filters        analytics.Filters
}

func NewImportService(store TransactionStore, publisher SnapshotPublisher, opts normalize.Options, salaryCategory string, filters analytics.Filters) *ImportService {
	if salaryCategory == "" {
		salaryCategory = "Stipendi e pensioni"
	}
	return &ImportService{
		store:          store,
		publisher:      publisher,
		options:        opts,
		salaryCategory: salaryCategory,
		filters:        filters,
	}
}

// SalaryCategory returns the label that marks salary deposits.
func (s *ImportService) SalaryCategory() string { return s.salaryCategory }

// Import normalizes an uploaded workbook and merges it with the owner's
// persisted set. Schema errors reject the upload; per-row parse failures
// only increment the drop count.
func (s *ImportService) Import(ctx context.Context, ownerID string, upload io.Reader) (Workspace, error) {
	res, err := normalize.Normalize(upload, s.options)
	if err != nil {
		return Workspace{}, err
	}

	stored, err := s.store.ListTransactions(ctx, ownerID)
	if err != nil {
		return Workspace{}, fmt.Errorf("load persisted set: %w", err)
	}

	merged := Merge(stored, res.Transactions)
	for i := range merged {
		merged[i].OwnerID = ownerID
	}

	slog.InfoContext(ctx, "Upload merged",
		"owner_id", ownerID,
		"uploaded", len(res.Transactions),
		"dropped", res.Dropped,
		"stored", len(stored),
		"merged", len(merged))

	return Workspace{Transactions: merged, Dropped: res.Dropped, UploadedAt: time.Now()}, nil
}

// Load builds a workspace from the persisted set only.
func (s *ImportService) Load(ctx context.Context, ownerID string) (Workspace, error) {
	stored, err := s.store.ListTransactions(ctx, ownerID)
	if err != nil {
		return Workspace{}, fmt.Errorf("load persisted set: %w", err)
	}
	return Workspace{Transactions: stored}, nil
}

// BuildView recomputes the derived state for a transaction set. The
// period list always comes from the full set; periodFilter narrows only
// which assignments feed the aggregates, and the trend series stays
// zero-filled over every known period.
func (s *ImportService) BuildView(txs []core.Transaction, periodFilter []string) View {
	res := periods.Assign(txs, s.salaryCategory)
	visible := analytics.FilterByPeriods(res.Assignments, periodFilter)
	return View{
		Assignments: visible,
		Periods:     res.Periods,
		Report:      analytics.Aggregate(visible, res.PeriodNames(), s.filters),
	}
}

// Save persists the workspace for the owner. The literal confirmation
// phrase is required for both modes; a wrong phrase leaves the stored set
// untouched. A publish failure never fails the save.
func (s *ImportService) Save(ctx context.Context, ownerID string, txs []core.Transaction, mode SaveMode, confirmation string) error {
	if confirmation != ConfirmReplacePhrase {
		return ErrConfirmationRequired
	}

	switch mode {
	case SaveReplace:
		if err := s.store.ReplaceTransactions(ctx, ownerID, txs); err != nil {
			return err
		}
	case SaveAppend:
		if err := s.store.AppendTransactions(ctx, ownerID, txs); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownSaveMode, mode)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishSnapshotSaved(ctx, ownerID, len(txs)); err != nil {
			slog.ErrorContext(ctx, "Snapshot publish failed",
				"owner_id", ownerID, "error", err)
		}
	}
	return nil
}

// Merge combines the persisted set with an upload, dropping duplicates on
// (date, description, amount). The later occurrence wins, so re-uploading
// an overlapping export does not double-count; the result is date-sorted.
func Merge(stored, uploaded []core.Transaction) []core.Transaction {
	type key struct {
		date  string
		desc  string
		cents int64
	}
	seen := make(map[key]int)
	out := make([]core.Transaction, 0, len(stored)+len(uploaded))

	add := func(t core.Transaction) {
		k := key{core.DateOnly(t.Date).Format("2006-01-02"), t.Description, t.Amount.Cents}
		if i, ok := seen[k]; ok {
			out[i] = t
			return
		}
		seen[k] = len(out)
		out = append(out, t)
	}
	for _, t := range stored {
		add(t)
	}
	for _, t := range uploaded {
		add(t)
	}

	core.SortByDate(out)
	return out
}
