package pipeline

import (
	"regexp"

	"coretax/internal"
	"coretax/internal/config"
	"coretax/internal/util"
)

const DefaultTolerance = config.DefaultTolerance

var reSummaryTotal = regexp.MustCompile(`Harga Jual\s*/\s*Penggantian\s*/\s*Uang Muka\s*/\s*Termin\s*:?\s*(\d[\d.,]*)`)

// SummaryTotal returns the printed "Harga Jual / Penggantian / Uang Muka / Termin" amount, or 0 when absent.
func SummaryTotal(fullText string) float64 {
	m := reSummaryTotal.FindStringSubmatch(fullText)
	if m == nil {
		return 0
	}
	return util.ParseIDR(m[1])
}

// Reconcile compares the sum of line totals with the printed summary. Valid when the gap is strictly below tolerance.
func Reconcile(items []internal.LineItem, pdfTotal, tolerance float64) internal.ValidationResult {
	totals := make([]float64, 0, len(items))
	for _, item := range items {
		totals = append(totals, item.Total)
	}
	calculated := util.SumExact(totals)
	diff := util.AbsDiff(calculated, pdfTotal)

	return internal.ValidationResult{
		CalculatedTotal:          calculated,
		CalculatedTotalFormatted: util.FormatRupiah(calculated),
		PDFTotal:                 pdfTotal,
		PDFTotalFormatted:        util.FormatRupiah(pdfTotal),
		IsValid:                  diff < tolerance,
		Difference:               diff,
		DifferenceFormatted:      util.FormatRupiah(diff),
		Tolerance:                tolerance,
	}
}
