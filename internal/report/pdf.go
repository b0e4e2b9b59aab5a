// Package report renders printable IFTA quarterly summaries.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/ukydev/fleet-ifta/internal/fueltax"
	"github.com/ukydev/fleet-ifta/internal/models"
)

var ErrNoData = errors.New("quarterly data is required")

var summaryColumns = []struct {
	title string
	width float64
}{
	{"Jurisdiction", 24},
	{"Miles", 24},
	{"Gallons", 22},
	{"Rate", 18},
	{"Net gal.", 24},
	{"Tax owed", 24},
	{"Refund", 24},
	{"Net", 24},
}

// RenderQuarterlyReport produces an A4 PDF with the carrier header, one row
// per jurisdiction summary and, when given, the submission outcomes.
func RenderQuarterlyReport(data *models.IFTAQuarterlyData, summaries []models.JurisdictionSummary, responses []models.IFTAResponse, generatedAt time.Time) ([]byte, error) {
	if data == nil {
		return nil, ErrNoData
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("IFTA Q%d %d", data.Period.Quarter, data.Period.Year), false)
	pdf.SetCreationDate(generatedAt)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, fmt.Sprintf("IFTA QUARTERLY RETURN Q%d %d", data.Period.Quarter, data.Period.Year))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 11)
	due := models.DueDate(data.Period.Quarter, data.Period.Year)
	for _, line := range []string{
		"Carrier        : " + safe(data.Carrier.Name),
		"IFTA account   : " + safe(data.Carrier.IFTAAccountNumber),
		"Base           : " + safe(data.Carrier.BaseJurisdiction),
		fmt.Sprintf("Vehicles       : %d", len(data.Vehicles)),
		"Due date       : " + due.Format("2006-01-02"),
		"Generated      : " + generatedAt.UTC().Format("2006-01-02 15:04 MST"),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 10)
	for _, col := range summaryColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, s := range summaries {
		rate := "n/a"
		if s.RateConfigured {
			rate = s.FuelRate.String()
		}
		cells := []string{
			s.Jurisdiction,
			s.TotalMiles.StringFixed(1),
			s.FuelPurchased.StringFixed(3),
			rate,
			s.NetGallons.StringFixed(3),
			money(s.TaxOwed),
			money(s.RefundDue),
			money(s.NetAmount),
		}
		for i, col := range summaryColumns {
			align := "R"
			if i == 0 {
				align = "L"
			}
			pdf.CellFormat(col.width, 6, cells[i], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Ln(4)
	pdf.Cell(0, 7, "Total net amount: "+money(fueltax.TotalNetAmount(summaries)))
	pdf.Ln(10)

	if len(responses) > 0 {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(0, 7, "Submissions")
		pdf.Ln(8)
		pdf.SetFont("Helvetica", "", 10)
		for _, r := range responses {
			line := fmt.Sprintf("%s  %s  %s", r.Jurisdiction, statusLabel(r.ProcessingStatus), safe(r.ConfirmationNumber))
			pdf.Cell(0, 6, line)
			pdf.Ln(6)
			for _, e := range r.Errors {
				pdf.MultiCell(0, 5, "    - "+e, "", "", false)
			}
		}
	}

	if unconfigured := unconfiguredJurisdictions(summaries); len(unconfigured) > 0 {
		pdf.Ln(4)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, fmt.Sprintf("No tax rate configured for %v; filing for these jurisdictions is blocked.", unconfigured), "", "", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to render report: %w", err)
	}
	return buf.Bytes(), nil
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

func statusLabel(s models.ProcessingStatus) string {
	if s == models.StatusUnsubmitted {
		return "unsubmitted"
	}
	return string(s)
}

func unconfiguredJurisdictions(summaries []models.JurisdictionSummary) []string {
	var out []string
	for _, s := range summaries {
		if !s.RateConfigured {
			out = append(out, s.Jurisdiction)
		}
	}
	return out
}

func safe(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
