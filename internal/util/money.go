package util

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ParseIDR converts an Indonesian-locale numeral ("1.500.000,50") to a float.
// Empty or malformed input yields 0.
func ParseIDR(input string) float64 {
	s := strings.TrimSpace(input)
	if s == "" {
		return 0
	}
	if !IsNumericToken(strings.TrimPrefix(s, "-")) {
		return 0
	}
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	parsed, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
		return 0
	}
	return parsed
}

// FormatIDR renders v with two decimals, "." as thousands separator and "," as decimal separator.
// Non-finite values render as zero.
func FormatIDR(v float64) string {
	fixed := toDecimal(v).StringFixed(2)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign = "-"
		fixed = fixed[1:]
	}

	whole, frac, _ := strings.Cut(fixed, ".")
	var b strings.Builder
	b.WriteString(sign)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	b.WriteString(frac)
	return b.String()
}

// FormatRupiah is FormatIDR with the "Rp " prefix used in summaries.
func FormatRupiah(v float64) string {
	return "Rp " + FormatIDR(v)
}

// SumExact adds values in decimal arithmetic so two-decimal amounts sum without float drift.
// Sums beyond the float64 range clamp to ±math.MaxFloat64.
func SumExact(values []float64) float64 {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(toDecimal(v))
	}
	return clamp(sum)
}

// AbsDiff returns |a-b| computed in decimal arithmetic.
func AbsDiff(a, b float64) float64 {
	return clamp(toDecimal(a).Sub(toDecimal(b)).Abs())
}

// toDecimal maps NaN and ±Inf to zero; decimal.NewFromFloat panics on them.
func toDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// clamp keeps results beyond the float64 range finite.
func clamp(d decimal.Decimal) float64 {
	f := d.InexactFloat64()
	switch {
	case math.IsInf(f, 1):
		return math.MaxFloat64
	case math.IsInf(f, -1):
		return -math.MaxFloat64
	}
	return f
}
