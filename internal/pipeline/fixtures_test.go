package pipeline

import (
	"context"
	"errors"

	"coretax/internal/layout"
	"coretax/internal/layout/layouttest"
)

func cell(s string) *string { return &s }

func row(cells ...string) layout.Row {
	out := make(layout.Row, len(cells))
	for i, c := range cells {
		if c != "" {
			out[i] = cell(c)
		}
	}
	return out
}

// staticDecoder returns documents keyed by the raw bytes and fails on anything else.
type staticDecoder map[string]*layout.Document

func (d staticDecoder) Decode(_ context.Context, raw []byte) (*layout.Document, error) {
	if doc, ok := d[string(raw)]; ok {
		return doc, nil
	}
	return nil, errors.New("malformed pdf header")
}

type blockingDecoder struct{}

func (blockingDecoder) Decode(ctx context.Context, _ []byte) (*layout.Document, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type panickingDecoder struct{}

func (panickingDecoder) Decode(context.Context, []byte) (*layout.Document, error) {
	panic("index out of range")
}

const invoiceText = `Faktur Pajak
Kode dan Nomor Seri Faktur Pajak: 0123456789
Pengusaha Kena Pajak:
Nama : PT Sumber Makmur
Alamat : Jl. Merdeka No. 1, Jakarta
NPWP : 01.234.567.8-901.000
Pembeli Barang Kena Pajak/Penerima Jasa Kena Pajak:
Nama : CV Toko Baru
Alamat : Jl. Sudirman 2
NPWP : 09.876.543.2-109.000
Harga Jual / Penggantian / Uang Muka / Termin 350.000,00
JAKARTA, 17 Januari 2025`

// invoicePDF draws a one-page ruled Coretax-style invoice with two items.
func invoicePDF() []byte {
	page := layouttest.Page{}
	for _, x := range []float64{10, 40, 110, 300, 400} {
		page.Rules = append(page.Rules, layouttest.Rule{X: x - 0.25, Y: 560, W: 0.5, H: 140})
	}
	for _, y := range []float64{700, 680, 620, 560} {
		page.Rules = append(page.Rules, layouttest.Rule{X: 10, Y: y - 0.25, W: 390, H: 0.5})
	}
	y := 780.0
	for _, line := range []string{
		"Faktur Pajak",
		"Kode dan Nomor Seri Faktur Pajak: 0123456789",
		"Pengusaha Kena Pajak:",
		"Nama : PT Sumber Makmur",
		"NPWP : 01.234.567.8-901.000",
	} {
		page.Runs = append(page.Runs, layouttest.Run{X: 20, Y: y, Size: 6, Text: line})
		y -= 8
	}
	page.Runs = append(page.Runs,
		layouttest.Run{X: 12, Y: 688, Size: 8, Text: "No."},
		layouttest.Run{X: 45, Y: 688, Size: 8, Text: "Kode"},
		layouttest.Run{X: 115, Y: 688, Size: 8, Text: "Nama Barang"},
		layouttest.Run{X: 305, Y: 688, Size: 8, Text: "Harga Jual"},

		layouttest.Run{X: 15, Y: 665, Size: 8, Text: "1"},
		layouttest.Run{X: 45, Y: 665, Size: 8, Text: "060100"},
		layouttest.Run{X: 115, Y: 665, Size: 8, Text: "Barang A Rp 100.000,00 x 2 PCS"},
		layouttest.Run{X: 115, Y: 650, Size: 8, Text: "Potongan Harga = Rp 0,00"},
		layouttest.Run{X: 305, Y: 665, Size: 8, Text: "200.000,00"},

		layouttest.Run{X: 15, Y: 605, Size: 8, Text: "2"},
		layouttest.Run{X: 45, Y: 605, Size: 8, Text: "000000"},
		layouttest.Run{X: 115, Y: 605, Size: 8, Text: "Barang B Rp 50.000,00 x 3 UNIT"},
		layouttest.Run{X: 305, Y: 605, Size: 8, Text: "150.000,00"},

		layouttest.Run{X: 20, Y: 540, Size: 6, Text: "Harga Jual / Penggantian / Uang Muka / Termin 350.000,00"},
		layouttest.Run{X: 20, Y: 530, Size: 6, Text: "JAKARTA, 17 Januari 2025"},
	)
	return layouttest.BuildPDF(page)
}

type panickingCorrelator struct{}

func (panickingCorrelator) Correlate([]string, int) (string, bool) {
	panic("correlator exploded")
}
