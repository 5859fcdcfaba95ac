// Package google mirrors saved transaction snapshots to a Google Sheets
// spreadsheet, one sheet per owner.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"bilancio/internal/core"
	ports "bilancio/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetBase     string
}

var _ ports.SnapshotMirror = (*Client)(nil)

// NewFromEnv creates a mirror client using environment variables.
// Required: GOOGLE_SPREADSHEET_ID plus service-account credentials via
// GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE or
// GOOGLE_APPLICATION_CREDENTIALS. Optional: GOOGLE_SHEET_BASE (default
// "Movimenti"), the prefix of per-owner mirror sheets.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	sheetBase := strings.TrimSpace(os.Getenv("GOOGLE_SHEET_BASE"))
	if sheetBase == "" {
		sheetBase = "Movimenti"
	}

	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}

	return &Client{svc: svc, spreadsheetID: spreadsheetID, sheetBase: sheetBase}, nil
}

func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	service, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return service, nil
}

// WriteSnapshot rewrites the owner's mirror sheet with the full set:
// ensure the sheet exists, clear it, then write header plus rows.
func (c *Client) WriteSnapshot(ctx context.Context, ownerID string, txs []core.Transaction) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	sheet := c.sheetName(ownerID)

	if err := c.ensureSheet(ctx, sheet); err != nil {
		return err
	}

	clearRange := fmt.Sprintf("%s!A:D", sheet)
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, clearRange, &gsheet.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet %s: %w", sheet, err)
	}

	values := make([][]any, 0, len(txs)+1)
	values = append(values, []any{"Data", "Operazione", "Categoria", "Importo"})
	for _, t := range txs {
		values = append(values, []any{
			core.DateOnly(t.Date).Format("2006-01-02"),
			t.Description,
			t.Category,
			t.Amount.Euros(),
		})
	}

	writeRange := fmt.Sprintf("%s!A1", sheet)
	vr := &gsheet.ValueRange{Values: values}
	if _, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, writeRange, vr).
		ValueInputOption("USER_ENTERED").Context(ctx).Do(); err != nil {
		return fmt.Errorf("write snapshot to sheet %s: %w", sheet, err)
	}

	slog.InfoContext(ctx, "Snapshot mirrored to Google Sheets",
		"owner_id", ownerID,
		"sheet", sheet,
		"rows", len(txs))
	return nil
}

// sheetName derives the per-owner mirror sheet name from a short owner
// prefix; full UUIDs make unwieldy tab names.
func (c *Client) sheetName(ownerID string) string {
	short := ownerID
	if len(short) > 8 {
		short = short[:8]
	}
	return c.sheetBase + "-" + short
}

// ensureSheet adds the tab if it does not exist yet. The duplicate-name
// error from the API is treated as success.
func (c *Client) ensureSheet(ctx context.Context, sheet string) error {
	req := &gsheet.BatchUpdateSpreadsheetRequest{
		Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{
				Properties: &gsheet.SheetProperties{Title: sheet},
			},
		}},
	}
	_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do()
	if err != nil && strings.Contains(err.Error(), "already exists") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ensure sheet %s: %w", sheet, err)
	}
	return nil
}
