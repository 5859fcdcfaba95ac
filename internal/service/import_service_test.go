package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"bilancio/internal/analytics"
	"bilancio/internal/core"
	"bilancio/internal/normalize"
)

const salary = "Stipendi e pensioni"

type fakeStore struct {
	sets     map[string][]core.Transaction
	failWith error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sets: make(map[string][]core.Transaction)}
}

func (f *fakeStore) ListTransactions(_ context.Context, ownerID string) ([]core.Transaction, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	return append([]core.Transaction(nil), f.sets[ownerID]...), nil
}

func (f *fakeStore) ReplaceTransactions(_ context.Context, ownerID string, txs []core.Transaction) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.sets[ownerID] = append([]core.Transaction(nil), txs...)
	return nil
}

func (f *fakeStore) AppendTransactions(_ context.Context, ownerID string, txs []core.Transaction) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.sets[ownerID] = append(f.sets[ownerID], txs...)
	return nil
}

type fakePublisher struct {
	published int
	failWith  error
}

func (f *fakePublisher) PublishSnapshotSaved(context.Context, string, int) error {
	if f.failWith != nil {
		return f.failWith
	}
	f.published++
	return nil
}

func newService(store TransactionStore, pub SnapshotPublisher) *ImportService {
	return NewImportService(store, pub, normalize.DefaultOptions(), salary, analytics.DefaultFilters())
}

func tx(date string, desc, category string, cents int64) core.Transaction {
	d, _ := time.Parse("2006-01-02", date)
	return core.Transaction{Date: d, Description: desc, Category: category, Amount: core.Money{Cents: cents}}
}

func workbook(t *testing.T, rows [][]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", "Lista Operazione"); err != nil {
		t.Fatal(err)
	}
	for i, row := range rows {
		ref, _ := excelize.CoordinatesToCellName(1, i+1)
		vals := make([]interface{}, len(row))
		for j, v := range row {
			vals[j] = v
		}
		if err := f.SetSheetRow("Lista Operazione", ref, &vals); err != nil {
			t.Fatal(err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf
}

func TestImportMergesWithPersistedSet(t *testing.T) {
	store := newFakeStore()
	store.sets["u1"] = []core.Transaction{
		tx("2024-01-05", "Accredito stipendio", salary, 210000),
	}
	svc := newService(store, nil)

	buf := workbook(t, [][]string{
		{"Data", "Operazione", "Categoria", "Importo"},
		{"10/01/2024", "Supermercato", "Spesa", "-45,90"},
		{"05/01/2024", "Accredito stipendio", salary, "2.100,00"}, // duplicate of stored row
	})

	ws, err := svc.Import(context.Background(), "u1", buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(ws.Transactions) != 2 {
		t.Fatalf("merged set has %d rows, want 2 (duplicate collapsed): %+v", len(ws.Transactions), ws.Transactions)
	}
	for _, tr := range ws.Transactions {
		if tr.OwnerID != "u1" {
			t.Errorf("owner not stamped: %+v", tr)
		}
	}
}

func TestImportSchemaErrorRejectsUpload(t *testing.T) {
	svc := newService(newFakeStore(), nil)
	buf := workbook(t, [][]string{
		{"Data", "Operazione", "Categoria"}, // amount column missing
	})
	_, err := svc.Import(context.Background(), "u1", buf)
	if !errors.Is(err, normalize.ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestMergeKeepsLastOccurrence(t *testing.T) {
	stored := []core.Transaction{
		tx("2024-01-10", "Bar", "Fuori", -250),
		tx("2024-01-12", "Cinema", "Divertimento", -900),
	}
	uploaded := []core.Transaction{
		tx("2024-01-10", "Bar", "Ristoranti", -250), // same key, recategorized
		tx("2024-01-15", "Benzina", "Trasporti", -5000),
	}
	merged := Merge(stored, uploaded)

	if len(merged) != 3 {
		t.Fatalf("got %d rows, want 3", len(merged))
	}
	if merged[0].Category != "Ristoranti" {
		t.Errorf("upload should win on duplicate key, got %+v", merged[0])
	}
	for i := 1; i < len(merged); i++ {
		if merged[i].Date.Before(merged[i-1].Date) {
			t.Fatal("merge output not sorted")
		}
	}
}

func TestBuildViewFiltersButKeepsFullPeriodList(t *testing.T) {
	svc := newService(newFakeStore(), nil)
	set := []core.Transaction{
		tx("2024-01-05", "stipendio", salary, 100000),
		tx("2024-01-10", "spesa", "Spesa", -1000),
		tx("2024-02-03", "stipendio", salary, 100000),
		tx("2024-02-10", "spesa", "Spesa", -2000),
	}

	full := svc.BuildView(set, nil)
	if len(full.Periods) != 2 || len(full.Report.Series) != 2 {
		t.Fatalf("expected 2 periods, got %d/%d", len(full.Periods), len(full.Report.Series))
	}

	jan := full.Periods[0].Name
	filtered := svc.BuildView(set, []string{jan})
	if len(filtered.Report.Series) != 2 {
		t.Fatalf("series must stay zero-filled over all periods, got %d rows", len(filtered.Report.Series))
	}
	if filtered.Report.Series[1].Net.Cents != 0 {
		t.Errorf("filtered-out period should be zero, got %+v", filtered.Report.Series[1])
	}
	if filtered.Report.Summary.Income.Cents != 100000 {
		t.Errorf("summary should cover only the filtered period: %+v", filtered.Report.Summary)
	}
}

func TestSaveRequiresConfirmationPhrase(t *testing.T) {
	store := newFakeStore()
	svc := newService(store, nil)
	set := []core.Transaction{tx("2024-01-10", "a", "Spesa", -1)}

	err := svc.Save(context.Background(), "u1", set, SaveReplace, "yes please")
	if !errors.Is(err, ErrConfirmationRequired) {
		t.Fatalf("expected ErrConfirmationRequired, got %v", err)
	}
	if len(store.sets["u1"]) != 0 {
		t.Fatal("stored set changed despite missing confirmation")
	}

	if err := svc.Save(context.Background(), "u1", set, SaveReplace, ConfirmReplacePhrase); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(store.sets["u1"]) != 1 {
		t.Fatal("set not saved")
	}
}

func TestSaveAppendMode(t *testing.T) {
	store := newFakeStore()
	store.sets["u1"] = []core.Transaction{tx("2024-01-10", "a", "Spesa", -1)}
	svc := newService(store, nil)

	err := svc.Save(context.Background(), "u1",
		[]core.Transaction{tx("2024-02-10", "b", "Spesa", -2)}, SaveAppend, ConfirmReplacePhrase)
	if err != nil {
		t.Fatal(err)
	}
	if len(store.sets["u1"]) != 2 {
		t.Fatalf("append produced %d rows, want 2", len(store.sets["u1"]))
	}

	if err := svc.Save(context.Background(), "u1", nil, SaveMode("upsert"), ConfirmReplacePhrase); !errors.Is(err, ErrUnknownSaveMode) {
		t.Fatalf("expected ErrUnknownSaveMode, got %v", err)
	}
}

func TestSavePublishesSnapshot(t *testing.T) {
	store := newFakeStore()
	pub := &fakePublisher{}
	svc := newService(store, pub)

	set := []core.Transaction{tx("2024-01-10", "a", "Spesa", -1)}
	if err := svc.Save(context.Background(), "u1", set, SaveReplace, ConfirmReplacePhrase); err != nil {
		t.Fatal(err)
	}
	if pub.published != 1 {
		t.Errorf("published = %d, want 1", pub.published)
	}

	// Publish failures must not fail the save.
	pub.failWith = errors.New("broker down")
	if err := svc.Save(context.Background(), "u1", set, SaveReplace, ConfirmReplacePhrase); err != nil {
		t.Errorf("save failed on publish error: %v", err)
	}
}

func TestSavePersistenceErrorLeavesNothingBehind(t *testing.T) {
	store := newFakeStore()
	store.failWith = errors.New("disk full")
	pub := &fakePublisher{}
	svc := newService(store, pub)

	err := svc.Save(context.Background(), "u1",
		[]core.Transaction{tx("2024-01-10", "a", "Spesa", -1)}, SaveReplace, ConfirmReplacePhrase)
	if err == nil {
		t.Fatal("expected persistence error to surface")
	}
	if pub.published != 0 {
		t.Error("snapshot published despite failed save")
	}
}
