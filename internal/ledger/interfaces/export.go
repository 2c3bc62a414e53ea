package interfaces

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	ledger "tienda-cloud/internal/ledger/domain"
)

// BuildLedgerPDF renders a payment statement for a ledger entry.
func BuildLedgerPDF(entry *ledger.Entry) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Payment Statement")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Entity: %s", entry.EntityID))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Status: %s", entry.Status))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Opened: %s", entry.CreatedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Updated: %s", entry.UpdatedAt.Format(time.RFC3339)))
	pdf.Ln(5)

	pdf.Ln(4)
	pdf.Cell(0, 6, fmt.Sprintf("Total Due (Bs): %.2f", entry.TotalDue))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Total Paid (Bs): %.2f", entry.TotalPaid))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Outstanding (Bs): %.2f", entry.Outstanding))
	pdf.Ln(8)

	// Payments table
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Date", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Amount (Bs)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(25, 6, "Final", "1", 0, "C", false, 0, "")
	pdf.CellFormat(70, 6, "Methods", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, event := range entry.Events {
		final := "no"
		if event.IsFinal {
			final = "yes"
		}
		pdf.CellFormat(45, 6, event.At.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", event.Amount), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, final, "1", 0, "C", false, 0, "")
		pdf.CellFormat(70, 6, formatEventMethods(event), "1", 0, "L", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	err := pdf.Output(&buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildLedgerXLSX renders a payment statement workbook for a ledger entry.
func BuildLedgerXLSX(entry *ledger.Entry) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	paymentsSheet := "payments"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(paymentsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Payment Statement")
	_ = f.SetCellValue(summarySheet, "A3", "Entity")
	_ = f.SetCellValue(summarySheet, "B3", entry.EntityID)
	_ = f.SetCellValue(summarySheet, "A4", "Status")
	_ = f.SetCellValue(summarySheet, "B4", entry.Status)
	_ = f.SetCellValue(summarySheet, "A5", "Total Due (Bs)")
	_ = f.SetCellValue(summarySheet, "B5", entry.TotalDue)
	_ = f.SetCellValue(summarySheet, "A6", "Total Paid (Bs)")
	_ = f.SetCellValue(summarySheet, "B6", entry.TotalPaid)
	_ = f.SetCellValue(summarySheet, "A7", "Outstanding (Bs)")
	_ = f.SetCellValue(summarySheet, "B7", entry.Outstanding)
	_ = f.SetCellValue(summarySheet, "A8", "Opened")
	_ = f.SetCellValue(summarySheet, "B8", entry.CreatedAt.Format(time.RFC3339))

	_ = f.SetCellValue(paymentsSheet, "A1", "Date")
	_ = f.SetCellValue(paymentsSheet, "B1", "Amount (Bs)")
	_ = f.SetCellValue(paymentsSheet, "C1", "Final")
	_ = f.SetCellValue(paymentsSheet, "D1", "Methods")
	for i, event := range entry.Events {
		row := i + 2
		_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("A%d", row), event.At.Format("2006-01-02 15:04"))
		_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("B%d", row), event.Amount)
		_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("C%d", row), event.IsFinal)
		_ = f.SetCellValue(paymentsSheet, fmt.Sprintf("D%d", row), formatEventMethods(event))
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatEventMethods(event ledger.SettlementEvent) string {
	if len(event.Lines) == 0 {
		return ""
	}
	parts := make([]string, 0, len(event.Lines))
	for _, line := range event.Lines {
		parts = append(parts, fmt.Sprintf("%s %.2f %s", line.Method, line.Amount.Value, line.Amount.Currency))
	}
	return strings.Join(parts, ", ")
}
