package report

import (
	"fmt"
	"io"
	"time"

	"gestion-locative/internal/period"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const moneyFormat = 4 // #,##0.00

type sheetWriter struct {
	f      *excelize.File
	sheet  string
	row    int
	header int
	money  int
}

func newSheet(name string) (*sheetWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", name); err != nil {
		f.Close()
		return nil, err
	}
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"34495E"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: moneyFormat})
	if err != nil {
		f.Close()
		return nil, err
	}
	return &sheetWriter{f: f, sheet: name, header: header, money: money}, nil
}

func (w *sheetWriter) add(values ...any) error {
	w.row++
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	return w.f.SetSheetRow(w.sheet, cell, &values)
}

func (w *sheetWriter) style(style, fromCol, toCol int) error {
	from, err := excelize.CoordinatesToCellName(fromCol, w.row)
	if err != nil {
		return err
	}
	to, err := excelize.CoordinatesToCellName(toCol, w.row)
	if err != nil {
		return err
	}
	return w.f.SetCellStyle(w.sheet, from, to, style)
}

func (w *sheetWriter) headers(names ...string) error {
	values := make([]any, len(names))
	for i, n := range names {
		values[i] = n
	}
	if err := w.add(values...); err != nil {
		return err
	}
	return w.style(w.header, 1, len(names))
}

func (w *sheetWriter) flush(out io.Writer) error {
	defer w.f.Close()
	return w.f.Write(out)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// ExportPayments writes the monthly follow-up of month as an XLSX workbook.
func (s *Service) ExportPayments(month time.Time, out io.Writer) error {
	sum, err := s.MonthlySummary(month)
	if err != nil {
		return err
	}
	w, err := newSheet("Paiements " + sum.Month)
	if err != nil {
		return err
	}
	cols := []string{"Bail", "Appartement", "Locataires", "Attendu", "Reçu", "Date paiement", "Statut", "Retard (j)", "Quittance"}
	if err := w.headers(cols...); err != nil {
		w.f.Close()
		return err
	}
	for _, l := range sum.Lines {
		date, status := "", "non payé"
		if l.PaymentDate != nil {
			date = *l.PaymentDate
		}
		if l.Status != "" {
			status = string(l.Status)
		}
		err := w.add(l.LeaseID, l.Apartment, l.Tenants, money(l.Expected), money(l.Received), date, status, l.LateDays, l.ReceiptNumber)
		if err == nil {
			err = w.style(w.money, 4, 5)
		}
		if err != nil {
			w.f.Close()
			return err
		}
	}
	if err := w.add("", "", "TOTAL", money(sum.Expected), money(sum.Received)); err != nil {
		w.f.Close()
		return err
	}
	if err := w.style(w.money, 4, 5); err != nil {
		w.f.Close()
		return err
	}
	_ = w.f.SetColWidth(w.sheet, "B", "C", 32)
	return w.flush(out)
}

// ExportAllocations writes the split of one expense as an XLSX workbook.
func (s *Service) ExportAllocations(expenseID uint, out io.Writer) error {
	e, err := s.expenseWithAllocations(expenseID)
	if err != nil {
		return err
	}
	w, err := newSheet("Répartition")
	if err != nil {
		return err
	}
	typ := ""
	if e.Type != nil {
		typ = e.Type.Name
	}
	rows := [][]any{
		{"Dépense", e.Designation},
		{"Type", typ},
		{"Date", period.Format(e.ExpenseDate)},
		{"Montant TTC", money(e.AmountTTC)},
		{},
	}
	for _, r := range rows {
		if err := w.add(r...); err != nil {
			w.f.Close()
			return err
		}
	}
	if err := w.headers("Appartement", "Mode", "Base", "Coefficient", "Montant", "Refacturé"); err != nil {
		w.f.Close()
		return err
	}
	total := decimal.Zero
	for _, a := range e.Allocations {
		label := fmt.Sprintf("#%d", a.ApartmentID)
		if a.Apartment != nil {
			label = a.Apartment.Label()
		}
		var basis, coef any = "", ""
		if a.Basis.Valid {
			basis = a.Basis.Decimal.InexactFloat64()
		}
		if a.Coefficient.Valid {
			coef = a.Coefficient.Decimal.InexactFloat64()
		}
		invoiced := "non"
		if a.InvoicedToTenant {
			invoiced = "oui"
		}
		if err := w.add(label, string(a.Mode), basis, coef, money(a.Amount), invoiced); err != nil {
			w.f.Close()
			return err
		}
		total = total.Add(a.Amount)
	}
	if err := w.add("TOTAL", "", "", "", money(total)); err != nil {
		w.f.Close()
		return err
	}
	if err := w.add("Reste à répartir", "", "", "", money(e.AmountTTC.Sub(total))); err != nil {
		w.f.Close()
		return err
	}
	_ = w.f.SetColWidth(w.sheet, "A", "A", 32)
	return w.flush(out)
}
