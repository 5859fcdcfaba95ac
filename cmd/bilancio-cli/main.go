// bilancio-cli analyzes a bank export offline, without the web server:
// same normalization, same personal-month assignment, rendered as tables.
package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"bilancio/internal/analytics"
	"bilancio/internal/core"
	"bilancio/internal/normalize"
	"bilancio/internal/periods"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "bilancio-cli",
		Short:        "Analisi offline di estratti conto",
		SilenceUsage: true,
	}
	root.AddCommand(newReportCmd())
	return root
}

type reportFlags struct {
	file           string
	sheet          string
	schemaPath     string
	salaryCategory string
	periodFilter   []string
	investKeyword  string
	savingsKeyword string
	showMovements  bool
}

func newReportCmd() *cobra.Command {
	flags := reportFlags{}

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Calcola mesi personali e aggregati da un file .xlsx",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.file, "file", "f", "", "estratto conto .xlsx (obbligatorio)")
	cmd.Flags().StringVar(&flags.sheet, "sheet", "Lista Operazione", "nome del foglio da leggere")
	cmd.Flags().StringVar(&flags.schemaPath, "schema", "", "file YAML con gli alias di colonna")
	cmd.Flags().StringVar(&flags.salaryCategory, "salary-category", "Stipendi e pensioni", "categoria che ancora i mesi personali")
	cmd.Flags().StringSliceVar(&flags.periodFilter, "periods", nil, "limita gli aggregati a questi mesi (es. 2024-01Jan)")
	cmd.Flags().StringVar(&flags.investKeyword, "investment-keyword", "investimenti", "parola chiave delle categorie di investimento")
	cmd.Flags().StringVar(&flags.savingsKeyword, "savings-keyword", "risparmi", "parola chiave delle categorie di risparmio")
	cmd.Flags().BoolVar(&flags.showMovements, "movements", false, "stampa anche la lista movimenti")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runReport(cmd *cobra.Command, flags reportFlags) error {
	opts := normalize.DefaultOptions()
	opts.SheetName = flags.sheet
	if flags.schemaPath != "" {
		schema, err := normalize.LoadSchema(flags.schemaPath)
		if err != nil {
			return fmt.Errorf("load schema: %w", err)
		}
		opts.Schema = schema
	}

	f, err := os.Open(flags.file)
	if err != nil {
		return err
	}
	defer f.Close()

	res, err := normalize.Normalize(f, opts)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", flags.file, err)
	}
	if res.Dropped > 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "attenzione: %d righe scartate (data o importo non leggibili)\n", res.Dropped)
	}

	asgRes := periods.Assign(res.Transactions, flags.salaryCategory)
	visible := analytics.FilterByPeriods(asgRes.Assignments, flags.periodFilter)
	report := analytics.Aggregate(visible, asgRes.PeriodNames(), analytics.Filters{
		InvestmentKeyword: flags.investKeyword,
		SavingsKeyword:    flags.savingsKeyword,
	})

	out := cmd.OutOrStdout()

	summary := table.NewWriter()
	summary.SetOutputMirror(out)
	summary.SetStyle(table.StyleLight)
	summary.SetTitle("Riepilogo")
	summary.AppendRows([]table.Row{
		{"Uscite", report.Summary.Expenses.String()},
		{"Entrate", report.Summary.Income.String()},
		{"Netto", report.Summary.Net.String()},
		{"Investimenti", report.Summary.Investments.String()},
		{"Risparmi", report.Summary.Savings.String()},
	})
	summary.Render()

	if len(report.Series) > 0 {
		series := table.NewWriter()
		series.SetOutputMirror(out)
		series.SetStyle(table.StyleLight)
		series.SetTitle("Andamento mensile")
		series.AppendHeader(table.Row{"Mese", "Uscite", "Entrate", "Netto", "Saldo cumulato"})
		for _, row := range report.Series {
			series.AppendRow(table.Row{
				row.Name,
				row.Expenses.String(),
				row.Income.String(),
				row.Net.String(),
				row.CumulativeBalance.String(),
			})
		}
		series.Render()
	}

	if len(report.Categories) > 0 {
		cats := table.NewWriter()
		cats.SetOutputMirror(out)
		cats.SetStyle(table.StyleLight)
		cats.SetTitle("Spese per categoria")
		cats.AppendHeader(table.Row{"Categoria", "Totale"})
		for _, row := range report.Categories {
			cats.AppendRow(table.Row{row.Category, row.Amount.String()})
		}
		cats.Render()
	}

	if flags.showMovements {
		movs := table.NewWriter()
		movs.SetOutputMirror(out)
		movs.SetStyle(table.StyleLight)
		movs.SetTitle("Movimenti")
		movs.AppendHeader(table.Row{"Data", "Operazione", "Categoria", "Importo", "Mese"})
		unassigned := 0
		for _, a := range visible {
			period := a.Name
			if !a.Assigned {
				period = "-"
				unassigned++
			}
			movs.AppendRow(table.Row{
				core.DateOnly(a.Transaction.Date).Format("02/01/2006"),
				a.Transaction.Description,
				a.Transaction.Category,
				a.Transaction.Amount.String(),
				period,
			})
		}
		movs.Render()
		if unassigned > 0 {
			fmt.Fprintf(out, "%d movimenti precedono il primo stipendio e non hanno un mese personale\n", unassigned)
		}
	}

	return nil
}
