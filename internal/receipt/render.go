package receipt

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

type Renderer interface {
	Render(s Snapshot) ([]byte, error)
}

// PDFRenderer lays the receipt out on one A4 page.
type PDFRenderer struct{}

func (PDFRenderer) Render(s Snapshot) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	tr := pdf.UnicodeTranslatorFromDescriptor("") // cp1252
	pdf.SetFooterFunc(func() {
		pdf.SetY(-15)
		pdf.SetFont("Helvetica", "I", 7)
		pdf.SetTextColor(102, 102, 102)
		pdf.CellFormat(0, 5, tr("Document généré automatiquement - Système de gestion locative"), "", 0, "C", false, 0, "")
		pdf.CellFormat(0, 5, fmt.Sprintf("Page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	owner := s.OwnerName
	if owner == "" {
		owner = "PROPRIÉTAIRE"
	}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(100, 5, tr(owner), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr("Quittance N° "+s.Number), "", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(100, 5, tr("Tél: "+s.OwnerPhone), "", 0, "L", false, 0, "")
	pdf.CellFormat(0, 5, "Date: "+s.IssuedAt.Format("02/01/2006"), "", 1, "R", false, 0, "")
	pdf.CellFormat(100, 5, s.OwnerEmail, "", 1, "L", false, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 16)
	pdf.SetTextColor(44, 62, 80)
	pdf.CellFormat(0, 10, "QUITTANCE DE LOYER", "", 1, "C", false, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.CellFormat(0, 5, "LOCATAIRES", "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	for _, name := range s.Tenants {
		label := name
		if name == s.Principal && len(s.Tenants) > 1 {
			label += " (Principal)"
		}
		pdf.CellFormat(0, 5, tr(label), "", 1, "L", false, 0, "")
	}
	if s.Address != "" {
		pdf.CellFormat(0, 5, tr(s.Address), "", 1, "L", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFillColor(245, 245, 245)
	pdf.SetDrawColor(224, 224, 224)
	detail := func(label, value string, ln int) {
		pdf.SetFont("Helvetica", "B", 9)
		pdf.CellFormat(30, 7, tr(label), "1", 0, "L", true, 0, "")
		pdf.SetFont("Helvetica", "", 9)
		pdf.CellFormat(55, 7, tr(value), "1", ln, "L", true, 0, "")
	}
	detail("Immeuble:", s.Building, 0)
	detail("Appartement:", "N° "+s.Apartment, 1)
	detail("Étage:", fmt.Sprintf("%d", s.Floor), 0)
	detail("Période:", s.PeriodLabel(), 1)
	pdf.Ln(6)

	pdf.SetDrawColor(189, 195, 199)
	pdf.SetFillColor(52, 73, 94)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(130, 8, tr("Désignation"), "1", 0, "C", true, 0, "")
	pdf.CellFormat(40, 8, "Montant", "1", 1, "C", true, 0, "")
	pdf.SetTextColor(0, 0, 0)
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(130, 7, tr("Loyer hors charges - "+s.PeriodLabel()), "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, tr(s.Rent.StringFixed(2)+" €"), "1", 1, "R", false, 0, "")
	pdf.CellFormat(130, 7, "Charges locatives (provision)", "1", 0, "L", false, 0, "")
	pdf.CellFormat(40, 7, tr(s.Charges.StringFixed(2)+" €"), "1", 1, "R", false, 0, "")
	pdf.SetFillColor(236, 240, 241)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(130, 8, tr("TOTAL PAYÉ"), "1", 0, "R", true, 0, "")
	pdf.CellFormat(40, 8, tr(s.Total.StringFixed(2)+" €"), "1", 1, "R", true, 0, "")
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 9)
	pdf.MultiCell(0, 5, tr(s.Acknowledgement()), "", "J", false)
	pdf.Ln(2)
	pdf.SetFont("Helvetica", "I", 8)
	pdf.SetTextColor(102, 102, 102)
	pdf.MultiCell(0, 4, tr("Cette quittance annule tous reçus qui auraient pu être délivrés précédemment "+
		"en cas d'acomptes versés sur la période concernée. Article 21 de la loi du 6 juillet 1989."), "", "J", false)
	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetDrawColor(0, 0, 0)
	pdf.CellFormat(85, 6, tr("Fait à "+s.City+", le "+s.IssuedAt.Format("02/01/2006")), "LT", 0, "L", false, 0, "")
	pdf.CellFormat(85, 6, "Signature du propriétaire:", "TR", 1, "C", false, 0, "")
	pdf.CellFormat(85, 20, "", "LB", 0, "L", false, 0, "")
	pdf.CellFormat(85, 20, "", "RB", 1, "L", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("rendu quittance %s: %w", s.Number, err)
	}
	return buf.Bytes(), nil
}
