package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"bilancio/internal/core"
	"bilancio/internal/normalize"
	"bilancio/internal/service"
)

type (
	periodOption struct {
		Name     string
		Selected bool
	}

	seriesRow struct {
		Name       string
		Expenses   string
		Income     string
		Net        string
		Cumulative string
	}

	categoryRow struct {
		Name   string
		Amount string
		Width  int
	}

	txRow struct {
		Date        string
		Description string
		Category    string
		Amount      string
		Period      string
		Negative    bool
	}

	dashboardData struct {
		Error          string
		Staged         bool
		Dropped        int
		SalaryCategory string
		ConfirmPhrase  string

		Periods  []periodOption
		Selected []string

		Expenses    string
		Income      string
		Net         string
		Investments string
		Savings     string

		Series     []seriesRow
		Categories []categoryRow
		Rows       []txRow
		Unassigned int
		TotalRows  int
	}
)

// handleDashboard renders the personal-month dashboard. The staged
// workspace of the session wins over the persisted set, so an upload can
// be reviewed before committing it.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request, ownerID, token string) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	selected := parsePeriodFilter(r)
	s.renderDashboard(w, r, ownerID, token, selected, "")
}

func (s *Server) renderDashboard(w http.ResponseWriter, r *http.Request, ownerID, token string, selected []string, errMsg string) {
	ws, staged := s.staged.Get(token)
	if !staged {
		loaded, err := s.importer.Load(r.Context(), ownerID)
		if err != nil {
			slog.ErrorContext(r.Context(), "Load persisted set failed", "error", err, "owner_id", ownerID)
			http.Error(w, "storage unavailable", http.StatusInternalServerError)
			return
		}
		ws = loaded
	}

	view := s.importer.BuildView(ws.Transactions, selected)

	data := dashboardData{
		Error:          errMsg,
		Staged:         staged,
		Dropped:        ws.Dropped,
		SalaryCategory: s.importer.SalaryCategory(),
		ConfirmPhrase:  service.ConfirmReplacePhrase,
		Selected:       selected,
		Expenses:       view.Report.Summary.Expenses.String(),
		Income:         view.Report.Summary.Income.String(),
		Net:            view.Report.Summary.Net.String(),
		Investments:    view.Report.Summary.Investments.String(),
		Savings:        view.Report.Summary.Savings.String(),
		TotalRows:      len(ws.Transactions),
	}

	selectedSet := make(map[string]struct{}, len(selected))
	for _, n := range selected {
		selectedSet[n] = struct{}{}
	}
	for _, p := range view.Periods {
		_, sel := selectedSet[p.Name]
		data.Periods = append(data.Periods, periodOption{Name: p.Name, Selected: sel})
	}

	for _, row := range view.Report.Series {
		data.Series = append(data.Series, seriesRow{
			Name:       row.Name,
			Expenses:   row.Expenses.String(),
			Income:     row.Income.String(),
			Net:        row.Net.String(),
			Cumulative: row.CumulativeBalance.String(),
		})
	}

	// Scale breakdown bars against the biggest category.
	var maxCents int64
	for _, c := range view.Report.Categories {
		if c.Amount.Cents > maxCents {
			maxCents = c.Amount.Cents
		}
	}
	for _, c := range view.Report.Categories {
		width := 0
		if maxCents > 0 && c.Amount.Cents > 0 {
			width = int((c.Amount.Cents*100 + maxCents/2) / maxCents)
			if width > 0 && width < 2 {
				width = 2
			}
			if width > 100 {
				width = 100
			}
		}
		data.Categories = append(data.Categories, categoryRow{
			Name:   c.Category,
			Amount: c.Amount.String(),
			Width:  width,
		})
	}

	for _, a := range view.Assignments {
		period := a.Name
		if !a.Assigned {
			period = "—"
			data.Unassigned++
		}
		data.Rows = append(data.Rows, txRow{
			Date:        core.DateOnly(a.Transaction.Date).Format("02/01/2006"),
			Description: a.Transaction.Description,
			Category:    a.Transaction.Category,
			Amount:      a.Transaction.Amount.String(),
			Period:      period,
			Negative:    a.Transaction.IsExpense(),
		})
	}

	s.render(w, r, "dashboard.html", data)
}

// handleUpload ingests a bank workbook and stages the merged set.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request, ownerID, token string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		slog.WarnContext(r.Context(), "Upload form parse failed", "error", err, "owner_id", ownerID)
		w.WriteHeader(http.StatusRequestEntityTooLarge)
		s.renderDashboard(w, r, ownerID, token, nil, "File troppo grande o richiesta non valida")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.renderDashboard(w, r, ownerID, token, nil, "Nessun file selezionato")
		return
	}
	defer file.Close()

	ws, err := s.importer.Import(r.Context(), ownerID, file)
	if err != nil {
		if errors.Is(err, normalize.ErrSchema) {
			slog.WarnContext(r.Context(), "Upload rejected by schema", "error", err, "owner_id", ownerID, "filename", header.Filename)
			w.WriteHeader(http.StatusUnprocessableEntity)
			s.renderDashboard(w, r, ownerID, token, nil, "Il file non ha le colonne attese: "+err.Error())
			return
		}
		slog.ErrorContext(r.Context(), "Upload import failed", "error", err, "owner_id", ownerID, "filename", header.Filename)
		w.WriteHeader(http.StatusInternalServerError)
		s.renderDashboard(w, r, ownerID, token, nil, "Importazione non riuscita")
		return
	}

	s.staged.Set(token, ws)
	slog.InfoContext(r.Context(), "Upload staged",
		"owner_id", ownerID,
		"filename", header.Filename,
		"rows", len(ws.Transactions),
		"dropped", ws.Dropped)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// handleSave commits the staged workspace. The confirmation phrase must
// match exactly; without it nothing is written.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request, ownerID, token string) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		s.renderDashboard(w, r, ownerID, token, nil, "Richiesta non valida")
		return
	}

	ws, ok := s.staged.Get(token)
	if !ok {
		w.WriteHeader(http.StatusConflict)
		s.renderDashboard(w, r, ownerID, token, nil, "Nessun caricamento da salvare")
		return
	}

	mode := service.SaveMode(strings.TrimSpace(r.Form.Get("mode")))
	if mode == "" {
		mode = service.SaveReplace
	}
	confirmation := strings.TrimSpace(r.Form.Get("confirmation"))

	err := s.importer.Save(r.Context(), ownerID, ws.Transactions, mode, confirmation)
	switch {
	case errors.Is(err, service.ErrConfirmationRequired):
		w.WriteHeader(http.StatusUnprocessableEntity)
		s.renderDashboard(w, r, ownerID, token, nil, "Digita \""+service.ConfirmReplacePhrase+"\" per confermare il salvataggio")
		return
	case errors.Is(err, service.ErrUnknownSaveMode):
		w.WriteHeader(http.StatusBadRequest)
		s.renderDashboard(w, r, ownerID, token, nil, "Modalità di salvataggio sconosciuta")
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Save failed", "error", err, "owner_id", ownerID)
		w.WriteHeader(http.StatusInternalServerError)
		s.renderDashboard(w, r, ownerID, token, nil, "Salvataggio non riuscito")
		return
	}

	s.staged.Delete(token)
	slog.InfoContext(r.Context(), "Workspace saved", "owner_id", ownerID, "rows", len(ws.Transactions), "mode", string(mode))
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// parsePeriodFilter reads the repeated "periods" query parameter.
func parsePeriodFilter(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["periods"] {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
