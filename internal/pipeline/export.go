package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"coretax/internal"
	"coretax/internal/util"
)

const (
	SheetItems   = "Items"
	SheetSummary = "Summary"
)

var itemHeaders = []string{
	"filename", "invoice_number", "no", "item_code", "nama_barang", "quantity", "unit",
	"unit_price", "discount", "total", "total_raw",
}

var summaryHeaders = []string{
	"filename", "status", "invoice_number", "invoice_date",
	"supplier_name", "supplier_npwp", "buyer_name", "buyer_npwp",
	"total_items", "calculated_total", "pdf_total", "difference", "is_valid", "error",
}

// ExportResultsToXLSX writes one row per line item and one summary row per document.
func ExportResultsToXLSX(results []internal.ParseResult, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetItems); err != nil {
		return err
	}
	if _, err := f.NewSheet(SheetSummary); err != nil {
		return err
	}
	writeHeaders(f, SheetItems, itemHeaders)
	writeHeaders(f, SheetSummary, summaryHeaders)

	r := 2
	for i, res := range results {
		invoice := util.Deref(res.Metadata.InvoiceNumber)
		for _, item := range res.Items {
			set := rowSetter(f, SheetItems, r)
			set(1, res.Filename)
			set(2, invoice)
			set(3, item.No)
			set(4, item.ItemCode)
			set(5, item.Name)
			set(6, item.Quantity)
			set(7, item.Unit)
			set(8, item.UnitPrice)
			set(9, item.Discount)
			set(10, item.Total)
			set(11, item.TotalRaw)
			r++
		}

		set := rowSetter(f, SheetSummary, i+2)
		set(1, res.Filename)
		set(2, string(res.Status))
		set(3, invoice)
		set(4, util.Deref(res.Metadata.InvoiceDate))
		set(5, util.Deref(res.Metadata.SupplierName))
		set(6, util.Deref(res.Metadata.SupplierNPWP))
		set(7, util.Deref(res.Metadata.BuyerName))
		set(8, util.Deref(res.Metadata.BuyerNPWP))
		set(9, res.TotalItems)
		if v := res.Validation; v != nil {
			set(10, v.CalculatedTotal)
			set(11, v.PDFTotal)
			set(12, v.Difference)
			set(13, v.IsValid)
		}
		set(14, res.Error)
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func writeHeaders(f *excelize.File, sheet string, headers []string) {
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
}

func rowSetter(f *excelize.File, sheet string, r int) func(col int, value any) {
	return func(col int, value any) {
		cell, _ := excelize.CoordinatesToCellName(col, r)
		_ = f.SetCellValue(sheet, cell, value)
	}
}
