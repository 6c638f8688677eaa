package pipeline

import (
	"regexp"
	"strings"
)

type DetectResult struct {
	IsInvoice bool
	Score     float64
	Reason    string
}

var detectKeywords = []string{"faktur", "pajak", "coretax", "e-faktur", "efaktur", "invoice", "tagihan", "ppn"}

// Serial numbers and NPWPs are long digit runs once separators are dropped.
var reTaxNumber = regexp.MustCompile(`\d[\d.\-]{13,}\d`)

// DetectInvoiceMail scores a message on keywords, tax-number patterns and PDF attachments.
func DetectInvoiceMail(subject, text, html string, attachmentNames []string) DetectResult {
	subject = strings.ToLower(subject)
	body := strings.ToLower(text + "\n" + html)

	score := 0.0
	for _, kw := range detectKeywords {
		if strings.Contains(subject, kw) {
			score += 0.2
		}
		if strings.Contains(body, kw) {
			score += 0.1
		}
	}

	if reTaxNumber.MatchString(body) {
		score += 0.2
	}

	hasPDF := false
	for _, name := range attachmentNames {
		if strings.HasSuffix(strings.ToLower(name), ".pdf") {
			hasPDF = true
			score += 0.4
			break
		}
	}
	if score > 1 {
		score = 1
	}

	reason := "rules_negative"
	isInvoice := hasPDF && score >= 0.45
	switch {
	case isInvoice:
		reason = "rules_positive"
	case !hasPDF:
		reason = "no_pdf_attachment"
	}

	return DetectResult{IsInvoice: isInvoice, Score: score, Reason: reason}
}
