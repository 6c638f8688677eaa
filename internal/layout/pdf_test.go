package layout

import (
	"context"
	"errors"
	"strings"
	"testing"

	"coretax/internal/layout/layouttest"
)

func ruledInvoicePage() layouttest.Page {
	page := layouttest.Page{}
	for _, x := range []float64{10, 40, 110, 300, 400} {
		page.Rules = append(page.Rules, layouttest.Rule{X: x - 0.25, Y: 600, W: 0.5, H: 100})
	}
	for _, y := range []float64{700, 680, 600} {
		page.Rules = append(page.Rules, layouttest.Rule{X: 10, Y: y - 0.25, W: 390, H: 0.5})
	}
	page.Runs = []layouttest.Run{
		{X: 50, Y: 750, Size: 10, Text: "Kode dan Nomor Seri Faktur Pajak: 0123456789"},
		{X: 12, Y: 688, Size: 8, Text: "No."},
		{X: 45, Y: 688, Size: 8, Text: "Kode"},
		{X: 115, Y: 688, Size: 8, Text: "Nama Barang"},
		{X: 305, Y: 688, Size: 8, Text: "Harga Jual"},
		{X: 15, Y: 665, Size: 8, Text: "1"},
		{X: 45, Y: 665, Size: 8, Text: "060100"},
		{X: 115, Y: 665, Size: 8, Text: "Barang A Rp 100.000,00 x 2 PCS"},
		{X: 305, Y: 665, Size: 8, Text: "200.000,00"},
	}
	return page
}

func TestDecodeTextPDF(t *testing.T) {
	raw := layouttest.TextPDF("Faktur Pajak", "Kode dan Nomor Seri Faktur Pajak: 0123456789")
	doc, err := NewPDFDecoder(DefaultTableSettings()).Decode(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Pages) != 1 {
		t.Fatalf("pages=%d", len(doc.Pages))
	}
	if !strings.Contains(doc.Pages[0].Text, "Nomor Seri Faktur Pajak: 0123456789") {
		t.Fatalf("text=%q", doc.Pages[0].Text)
	}
	if !strings.Contains(doc.FullText(), "Faktur Pajak") {
		t.Fatalf("full text=%q", doc.FullText())
	}
}

func TestDecodeRuledTable(t *testing.T) {
	raw := layouttest.BuildPDF(ruledInvoicePage())
	doc, err := NewPDFDecoder(DefaultTableSettings()).Decode(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}
	table := doc.Pages[0].Table
	if len(table) != 2 {
		t.Fatalf("rows=%d", len(table))
	}
	want := []string{"1", "060100", "Barang A Rp 100.000,00 x 2 PCS", "200.000,00"}
	for i, w := range want {
		if got := cellText(table[1][i]); got != w {
			t.Fatalf("cell %d got %q want %q", i, got, w)
		}
	}
}

func TestDecodeMultiPage(t *testing.T) {
	raw := layouttest.BuildPDF(
		layouttest.Page{Runs: []layouttest.Run{{X: 40, Y: 700, Text: "first page"}}},
		layouttest.Page{Runs: []layouttest.Run{{X: 40, Y: 700, Text: "second page"}}},
	)
	doc, err := NewPDFDecoder(DefaultTableSettings()).Decode(context.Background(), raw)
	if err != nil {
		t.Fatal(err)
	}
	if len(doc.Pages) != 2 || doc.Pages[1].Number != 2 {
		t.Fatalf("pages=%+v", doc.Pages)
	}
	if !strings.Contains(doc.FullText(), "first page") || !strings.Contains(doc.FullText(), "second page") {
		t.Fatalf("full text=%q", doc.FullText())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	dec := NewPDFDecoder(DefaultTableSettings())
	cases := map[string][]byte{
		"not a pdf":     []byte("hello, this is not a pdf"),
		"truncated pdf": layouttest.TextPDF("Faktur")[:60],
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			doc, err := dec.Decode(context.Background(), raw)
			if err == nil {
				t.Fatalf("expected error, got %+v", doc)
			}
		})
	}

	if _, err := dec.Decode(context.Background(), nil); !errors.Is(err, ErrEmptyPDF) {
		t.Fatalf("err=%v", err)
	}
}

func TestDecodeHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPDFDecoder(DefaultTableSettings()).Decode(ctx, layouttest.TextPDF("x"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v", err)
	}
}

func TestPreflight(t *testing.T) {
	pages, err := Preflight(layouttest.BuildPDF(ruledInvoicePage(), ruledInvoicePage()))
	if err != nil {
		t.Fatal(err)
	}
	if pages != 2 {
		t.Fatalf("pages=%d", pages)
	}
	if _, err := Preflight([]byte("%PDF-1.4\ngarbage")); err == nil {
		t.Fatal("expected error")
	}
}
