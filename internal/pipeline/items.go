package pipeline

import (
	"coretax/internal"
	"coretax/internal/util"
)

// ExtractItems turns one flushed buffer into zero or more line items.
func ExtractItems(buf ItemBuffer, corr AuxiliaryFieldCorrelator) []internal.LineItem {
	if corr == nil {
		corr = IndexClampCorrelator{}
	}
	parsed := ParseDetail(util.CollapseSpaces(buf.Detail))
	if len(parsed.Items) == 0 {
		return nil
	}

	nos := splitField(buf.No)
	codes := splitField(buf.Code)
	totals := numericTokens(splitField(buf.TotalCol))

	items := make([]internal.LineItem, 0, len(parsed.Items))
	for i, p := range parsed.Items {
		no, _ := corr.Correlate(nos, i)
		code, _ := corr.Correlate(codes, i)
		totalRaw, _ := corr.Correlate(totals, i)

		discount := 0.0
		if raw, ok := corr.Correlate(parsed.Discounts, i); ok {
			discount = util.ParseIDR(raw)
		}

		unitPrice := util.ParseIDR(p.PriceRaw)
		total := util.ParseIDR(totalRaw)
		items = append(items, internal.LineItem{
			No:                 no,
			ItemCode:           code,
			Name:               p.Name,
			Quantity:           util.ParseIDR(p.QtyRaw),
			Unit:               p.Unit,
			UnitPrice:          unitPrice,
			UnitPriceFormatted: util.FormatIDR(unitPrice),
			Discount:           discount,
			DiscountFormatted:  util.FormatIDR(discount),
			Total:              total,
			TotalFormatted:     util.FormatIDR(total),
			TotalRaw:           totalRaw,
		})
	}
	return items
}

// numericTokens keeps numeral tokens, so a stray "Rp" in the total column does not shift positions.
func numericTokens(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		if util.IsNumericToken(t) {
			out = append(out, t)
		}
	}
	return out
}
