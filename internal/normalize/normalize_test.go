package normalize

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes rows to a single-sheet xlsx in memory.
func buildWorkbook(t *testing.T, sheet string, rows [][]string) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("rename sheet: %v", err)
		}
	}
	for i, row := range rows {
		cellRef, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("cell name: %v", err)
		}
		vals := make([]interface{}, len(row))
		for j, v := range row {
			vals[j] = v
		}
		if err := f.SetSheetRow(sheet, cellRef, &vals); err != nil {
			t.Fatalf("set row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	return buf
}

func TestNormalizeBankExport(t *testing.T) {
	buf := buildWorkbook(t, "Lista Operazione", [][]string{
		{"Estratto conto"},
		{},
		{"Data", "Operazione", "Categoria", "Importo"},
		{"10/01/2024", "Supermercato ABC", "Spesa", "-45,90"},
		{"05/01/2024", "Accredito stipendio", "Stipendi e pensioni", "2.100,00"},
		{"??/01/2024", "Riga rotta", "Spesa", "-1,00"},
		{"12/01/2024", "Riga rotta", "Spesa", "boh"},
		{"", "", "", ""},
	})

	res, err := Normalize(buf, DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if res.Dropped != 2 {
		t.Errorf("Dropped = %d, want 2", res.Dropped)
	}
	if len(res.Transactions) != 2 {
		t.Fatalf("got %d transactions, want 2", len(res.Transactions))
	}
	// Output must be sorted ascending by date.
	first := res.Transactions[0]
	if !first.Date.Equal(time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("first date = %v, want 2024-01-05", first.Date)
	}
	if first.Category != "Stipendi e pensioni" || first.Amount.Cents != 210000 {
		t.Errorf("unexpected first record: %+v", first)
	}
	if res.Transactions[1].Amount.Cents != -4590 {
		t.Errorf("amount = %d, want -4590", res.Transactions[1].Amount.Cents)
	}
}

func TestNormalizeAliasMatchingIsCaseInsensitive(t *testing.T) {
	buf := buildWorkbook(t, "Lista Operazione", [][]string{
		{"DATA CONTABILE", "Descrizione operazione", "CATEGORIA", "IMPORTO (EUR)"},
		{"03/02/2024", "Bar", "Fuori", "-2,50"},
	})
	res, err := Normalize(buf, DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(res.Transactions))
	}
	if res.Transactions[0].Description != "Bar" {
		t.Errorf("description alias resolution failed: %+v", res.Transactions[0])
	}
}

func TestNormalizeMissingColumnIsSchemaError(t *testing.T) {
	buf := buildWorkbook(t, "Lista Operazione", [][]string{
		{"Data", "Operazione", "Categoria"}, // no amount column
		{"10/01/2024", "Supermercato", "Spesa"},
	})
	_, err := Normalize(buf, DefaultOptions())
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestNormalizeNoHeaderRow(t *testing.T) {
	buf := buildWorkbook(t, "Lista Operazione", [][]string{
		{"solo testo"},
		{"ancora testo"},
	})
	_, err := Normalize(buf, DefaultOptions())
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("expected ErrSchema, got %v", err)
	}
}

func TestNormalizeFallsBackToFirstSheet(t *testing.T) {
	buf := buildWorkbook(t, "Movimenti", [][]string{
		{"Data", "Operazione", "Categoria", "Importo"},
		{"10/01/2024", "Supermercato", "Spesa", "-10,00"},
	})
	res, err := Normalize(buf, DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Transactions) != 1 {
		t.Fatalf("got %d transactions, want 1", len(res.Transactions))
	}
}

func TestNormalizeEmptyDataIsNotAnError(t *testing.T) {
	buf := buildWorkbook(t, "Lista Operazione", [][]string{
		{"Data", "Operazione", "Categoria", "Importo"},
	})
	res, err := Normalize(buf, DefaultOptions())
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if len(res.Transactions) != 0 || res.Dropped != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestLoadSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	content := []byte("date: [\"booking date\"]\namount: [\"value\"]\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatal(err)
	}

	s, err := LoadSchema(path)
	if err != nil {
		t.Fatalf("LoadSchema: %v", err)
	}
	if s.Date[0] != "booking date" || s.Amount[0] != "value" {
		t.Errorf("overrides not applied: %+v", s)
	}
	if len(s.Description) == 0 || len(s.Category) == 0 {
		t.Errorf("defaults not preserved for unset fields: %+v", s)
	}

	if _, err := LoadSchema(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
