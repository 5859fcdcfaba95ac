// Package normalize turns heterogeneous bank spreadsheet exports into
// canonical transaction records.
//
// The transform is pure: malformed rows are dropped and counted, never
// stored partially and never fatal. Only a missing required column is an
// error, and that rejects the whole upload.
package normalize

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"bilancio/internal/core"
)

// ErrSchema marks uploads whose header row lacks a required column after
// alias resolution.
var ErrSchema = errors.New("required columns not found")

type (
	// Options configures one normalization pass.
	Options struct {
		// SheetName is the sheet holding the transaction list. When the
		// workbook has no sheet with this name the first sheet is used.
		SheetName string
		Schema    ColumnSchema
	}

	// Result is the outcome of one pass. Dropped counts rows discarded
	// for an unparseable date or amount.
	Result struct {
		Transactions []core.Transaction
		Dropped      int
	}
)

// DefaultOptions matches the supported bank export.
func DefaultOptions() Options {
	return Options{SheetName: "Lista Operazione", Schema: DefaultSchema()}
}

// Normalize reads an xlsx workbook and produces canonical records sorted
// ascending by date.
func Normalize(r io.Reader, opts Options) (Result, error) {
	if err := opts.Schema.Validate(); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheet, err := pickSheet(f, opts.SheetName)
	if err != nil {
		return Result{}, err
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return Result{}, fmt.Errorf("reading sheet %q: %w", sheet, err)
	}

	headerIdx := findHeaderRow(rows, opts.Schema.dateMarker())
	if headerIdx < 0 {
		return Result{}, fmt.Errorf("%w: no header row with %q marker in sheet %q", ErrSchema, opts.Schema.dateMarker(), sheet)
	}
	header := rows[headerIdx]

	dateCol := resolveColumn(header, opts.Schema.Date)
	descCol := resolveColumn(header, opts.Schema.Description)
	catCol := resolveColumn(header, opts.Schema.Category)
	amountCol := resolveColumn(header, opts.Schema.Amount)

	var missing []string
	if dateCol < 0 {
		missing = append(missing, "date")
	}
	if descCol < 0 {
		missing = append(missing, "description")
	}
	if catCol < 0 {
		missing = append(missing, "category")
	}
	if amountCol < 0 {
		missing = append(missing, "amount")
	}
	if len(missing) > 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrSchema, strings.Join(missing, ", "))
	}

	var res Result
	for i := headerIdx + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlank(row) {
			continue
		}

		date, err := core.ParseDayFirstDate(cell(row, dateCol))
		if err != nil {
			res.Dropped++
			continue
		}
		cents, err := core.ParseAmountToCents(cell(row, amountCol))
		if err != nil {
			res.Dropped++
			continue
		}

		res.Transactions = append(res.Transactions, core.Transaction{
			Date:        date,
			Description: cell(row, descCol),
			Category:    cell(row, catCol),
			Amount:      core.Money{Cents: cents},
		})
	}

	core.SortByDate(res.Transactions)
	return res, nil
}

func pickSheet(f *excelize.File, preferred string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", fmt.Errorf("%w: workbook has no sheets", ErrSchema)
	}
	for _, s := range sheets {
		if strings.EqualFold(s, preferred) {
			return s, nil
		}
	}
	return sheets[0], nil
}

// findHeaderRow scans for the first row with a cell containing the date
// marker token, case-insensitively.
func findHeaderRow(rows [][]string, marker string) int {
	marker = strings.ToLower(marker)
	for i, row := range rows {
		for _, c := range row {
			if strings.Contains(strings.ToLower(strings.TrimSpace(c)), marker) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
