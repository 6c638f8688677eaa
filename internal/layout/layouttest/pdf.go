// Package layouttest builds small, valid PDFs for tests.
package layouttest

import (
	"fmt"
	"strconv"
	"strings"
)

// Run is one string drawn at (X, Y) with Helvetica at Size points.
type Run struct {
	X, Y float64
	Size float64
	Text string
}

// Rule is a filled rectangle, used to draw table borders.
type Rule struct {
	X, Y, W, H float64
}

type Page struct {
	Runs  []Run
	Rules []Rule
}

// TextPDF returns a one-page PDF with each line drawn at the left margin, top to bottom.
func TextPDF(lines ...string) []byte {
	page := Page{}
	y := 760.0
	for _, line := range lines {
		page.Runs = append(page.Runs, Run{X: 40, Y: y, Size: 10, Text: line})
		y -= 14
	}
	return BuildPDF(page)
}

// BuildPDF assembles pages into a PDF with a hand-computed xref table.
func BuildPDF(pages ...Page) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")

	// 1 catalog, 2 page tree, 3 font, then a page and content object per page.
	total := 3 + 2*len(pages)
	offsets := make([]int, total+1)

	offsets[1] = b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := make([]string, 0, len(pages))
	for i := range pages {
		kids = append(kids, fmt.Sprintf("%d 0 R", 4+2*i))
	}
	offsets[2] = b.Len()
	fmt.Fprintf(&b, "2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", strings.Join(kids, " "), len(pages))

	widths := make([]string, 95)
	for i := range widths {
		widths[i] = "500"
	}
	offsets[3] = b.Len()
	fmt.Fprintf(&b, "3 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding /FirstChar 32 /LastChar 126 /Widths [%s] >>\nendobj\n", strings.Join(widths, " "))

	for i, page := range pages {
		pageObj, contentObj := 4+2*i, 5+2*i
		stream := contentStream(page)

		offsets[pageObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 3 0 R >> >> >>\nendobj\n", pageObj, contentObj)

		offsets[contentObj] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n", contentObj, len(stream), stream)
	}

	xrefOffset := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", total+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= total; i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", total+1, xrefOffset)
	return []byte(b.String())
}

func contentStream(page Page) string {
	var b strings.Builder
	for _, r := range page.Rules {
		fmt.Fprintf(&b, "%s %s %s %s re f\n", num(r.X), num(r.Y), num(r.W), num(r.H))
	}
	for _, r := range page.Runs {
		size := r.Size
		if size == 0 {
			size = 10
		}
		fmt.Fprintf(&b, "BT\n/F1 %s Tf\n%s %s Td\n(%s) Tj\nET\n", num(size), num(r.X), num(r.Y), escape(r.Text))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func escape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	return strings.ReplaceAll(s, ")", `\)`)
}
