package export

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	billing "waterbill/internal/billing/domain"
)

const (
	FormatPDF  = "pdf"
	FormatXLSX = "xlsx"
)

// ErrUnsupportedFormat is returned for unknown export formats.
var ErrUnsupportedFormat = errors.New("export: unsupported format")

// BuildBillPDF renders a one-page bill.
func BuildBillPDF(bill *billing.Bill) ([]byte, error) {
	if bill == nil {
		return nil, errors.New("export: nil bill")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, fmt.Sprintf("Water Bill #%d", bill.ID))
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	for _, line := range []string{
		fmt.Sprintf("Customer: %s (#%d)", bill.CustomerName, bill.CustomerID),
		fmt.Sprintf("Period: %s to %s", bill.PeriodStart.Format(time.DateOnly), bill.PeriodEnd.AddDate(0, 0, -1).Format(time.DateOnly)),
		fmt.Sprintf("Bill date: %s", bill.BillDate.Format(time.DateOnly)),
		fmt.Sprintf("Due date: %s", bill.DueDate.Format(time.DateOnly)),
		fmt.Sprintf("Status: %s", bill.Status),
		fmt.Sprintf("Usage (m3): %.3f", bill.UsageM3),
	} {
		pdf.Cell(0, 6, line)
		pdf.Ln(5)
	}
	if bill.VoidReason != "" {
		pdf.Cell(0, 6, fmt.Sprintf("Void reason: %s", bill.VoidReason))
		pdf.Ln(5)
	}
	pdf.Ln(4)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(80, 6, "Description", "1", 0, "L", false, 0, "")
	pdf.CellFormat(30, 6, "Quantity", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Unit price", "1", 0, "C", false, 0, "")
	pdf.CellFormat(40, 6, "Amount", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, item := range bill.Items {
		pdf.CellFormat(80, 6, item.Description, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.3f", item.Quantity), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, item.UnitPrice.String(), "1", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, item.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Total (%s): %s", bill.Currency, bill.TotalAmount.StringFixed(2)))
	pdf.Ln(5)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Paid: %s  Balance: %s", bill.PaidAmount.StringFixed(2), bill.Balance().StringFixed(2)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBillXLSX renders a bill with summary and items sheets.
func BuildBillXLSX(bill *billing.Bill) ([]byte, error) {
	if bill == nil {
		return nil, errors.New("export: nil bill")
	}
	f := excelize.NewFile()
	defer f.Close()
	summarySheet := "summary"
	itemsSheet := "items"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemsSheet); err != nil {
		return nil, err
	}

	total, _ := bill.TotalAmount.Float64()
	paid, _ := bill.PaidAmount.Float64()
	summary := [][2]any{
		{"Water Bill", bill.ID},
		{"Customer", bill.CustomerName},
		{"Customer ID", bill.CustomerID},
		{"Period start", bill.PeriodStart.Format(time.DateOnly)},
		{"Period end", bill.PeriodEnd.Format(time.DateOnly)},
		{"Bill date", bill.BillDate.Format(time.DateOnly)},
		{"Due date", bill.DueDate.Format(time.DateOnly)},
		{"Status", string(bill.Status)},
		{"Usage (m3)", bill.UsageM3},
		{"Total", total},
		{"Paid", paid},
		{"Currency", bill.Currency},
	}
	for i, row := range summary {
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", i+1), row[0])
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", i+1), row[1])
	}

	_ = f.SetCellValue(itemsSheet, "A1", "Description")
	_ = f.SetCellValue(itemsSheet, "B1", "Quantity")
	_ = f.SetCellValue(itemsSheet, "C1", "Unit price")
	_ = f.SetCellValue(itemsSheet, "D1", "Amount")
	for i, item := range bill.Items {
		row := i + 2
		unit, _ := item.UnitPrice.Float64()
		amount, _ := item.Amount.Float64()
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("A%d", row), item.Description)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("B%d", row), item.Quantity)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("C%d", row), unit)
		_ = f.SetCellValue(itemsSheet, fmt.Sprintf("D%d", row), amount)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
