package pipeline

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"coretax/internal"
	"coretax/internal/layout"
	"coretax/internal/util"
)

func singleItemDocument() *layout.Document {
	return &layout.Document{Pages: []layout.Page{{
		Number: 1,
		Text:   "Kode dan Nomor Seri Faktur Pajak: 0123456789\nHarga Jual / Penggantian / Uang Muka / Termin 200.000,00\nJakarta, 17 Januari 2025",
		Table: []layout.Row{
			row("No.", "Kode Barang", "Nama Barang", "Harga Jual"),
			row("1", "060100", "Barang A Rp 100.000,00 x 2 PCS", "200.000,00"),
		},
	}}}
}

func TestExtractSingleItemDocument(t *testing.T) {
	p := NewParser(staticDecoder{})
	res := p.Extract(singleItemDocument(), "a.pdf")

	if res.Status != internal.StatusSuccess || res.Filename != "a.pdf" || res.Error != "" {
		t.Fatalf("res=%+v", res)
	}
	if res.TotalItems != 1 || len(res.Items) != 1 {
		t.Fatalf("items=%+v", res.Items)
	}
	if res.Items[0].Name != "Barang A" || res.Items[0].Total != 200000 {
		t.Fatalf("item=%+v", res.Items[0])
	}
	if res.Validation == nil || !res.Validation.IsValid || res.Validation.Difference != 0 {
		t.Fatalf("validation=%+v", res.Validation)
	}
	if util.Deref(res.Metadata.InvoiceNumber) != "0123456789" || util.Deref(res.Metadata.InvoiceDate) != "17 Januari 2025" {
		t.Fatalf("metadata=%+v", res.Metadata)
	}
}

func TestExtractEmptyDocumentHasEmptyItems(t *testing.T) {
	res := NewParser(staticDecoder{}).Extract(&layout.Document{}, "blank.pdf")
	if res.Items == nil || res.TotalItems != 0 {
		t.Fatalf("items=%#v", res.Items)
	}
	if res.Validation == nil || !res.Validation.IsValid {
		t.Fatalf("validation=%+v", res.Validation)
	}
}

func TestParseOneRealPDF(t *testing.T) {
	p := NewParser(layout.NewPDFDecoder(layout.DefaultTableSettings()))
	res := p.ParseOne(context.Background(), invoicePDF(), "invoice.pdf")

	if res.Status != internal.StatusSuccess {
		t.Fatalf("status=%s error=%s", res.Status, res.Error)
	}
	if res.TotalItems != 2 {
		t.Fatalf("items=%+v", res.Items)
	}
	first, second := res.Items[0], res.Items[1]
	if first.Name != "Barang A" || first.Quantity != 2 || first.Unit != "PCS" || first.Total != 200000 || first.No != "1" || first.ItemCode != "060100" {
		t.Fatalf("first=%+v", first)
	}
	if second.Name != "Barang B" || second.Quantity != 3 || second.Unit != "UNIT" || second.Total != 150000 || second.No != "2" {
		t.Fatalf("second=%+v", second)
	}
	v := res.Validation
	if v == nil || v.CalculatedTotal != 350000 || v.PDFTotal != 350000 || !v.IsValid {
		t.Fatalf("validation=%+v", v)
	}
	if util.Deref(res.Metadata.InvoiceNumber) != "0123456789" {
		t.Fatalf("invoice number=%q", util.Deref(res.Metadata.InvoiceNumber))
	}
	if util.Deref(res.Metadata.SupplierName) != "PT Sumber Makmur" {
		t.Fatalf("supplier=%q", util.Deref(res.Metadata.SupplierName))
	}
}

func TestParseOneDecodeError(t *testing.T) {
	res := NewParser(staticDecoder{}).ParseOne(context.Background(), []byte("not a pdf"), "bad.pdf")
	if res.Status != internal.StatusError || res.Filename != "bad.pdf" {
		t.Fatalf("res=%+v", res)
	}
	if !strings.Contains(res.Error, "malformed pdf header") || res.Validation != nil || res.Items == nil {
		t.Fatalf("res=%+v", res)
	}
}

func TestParseOneTimeout(t *testing.T) {
	p := NewParser(blockingDecoder{}, WithTimeout(20*time.Millisecond))
	start := time.Now()
	res := p.ParseOne(context.Background(), []byte("%PDF"), "slow.pdf")
	if res.Status != internal.StatusError || !strings.Contains(res.Error, "timed out") {
		t.Fatalf("res=%+v", res)
	}
	if time.Since(start) > 5*time.Second {
		t.Fatalf("timeout not enforced")
	}
}

func TestParseOneRecoversDecoderPanic(t *testing.T) {
	res := NewParser(panickingDecoder{}).ParseOne(context.Background(), []byte("%PDF"), "boom.pdf")
	if res.Status != internal.StatusError || !strings.Contains(res.Error, "index out of range") {
		t.Fatalf("res=%+v", res)
	}
}

func TestRunWrapsSentinels(t *testing.T) {
	_, _, err := NewParser(staticDecoder{}).run(context.Background(), []byte("x"), "x.pdf")
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("err=%v", err)
	}
	_, _, err = NewParser(blockingDecoder{}, WithTimeout(10*time.Millisecond)).run(context.Background(), nil, "x.pdf")
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err=%v", err)
	}
	p := NewParser(staticDecoder{"doc": singleItemDocument()}, WithCorrelator(panickingCorrelator{}))
	_, _, err = p.run(context.Background(), []byte("doc"), "x.pdf")
	if !errors.Is(err, ErrExtract) || !strings.Contains(err.Error(), "correlator exploded") {
		t.Fatalf("err=%v", err)
	}
}

func TestParseOneRecoversExtractPanic(t *testing.T) {
	p := NewParser(staticDecoder{"doc": singleItemDocument()}, WithCorrelator(panickingCorrelator{}))
	res := p.ParseOne(context.Background(), []byte("doc"), "boom.pdf")
	if res.Status != internal.StatusError || res.Validation != nil || res.Items == nil {
		t.Fatalf("res=%+v", res)
	}
	if !strings.Contains(res.Error, "document extraction failed") {
		t.Fatalf("error=%q", res.Error)
	}
}

// slowCorrelator blocks extraction past the document budget.
type slowCorrelator struct{ IndexClampCorrelator }

func (c slowCorrelator) Correlate(values []string, index int) (string, bool) {
	time.Sleep(200 * time.Millisecond)
	return c.IndexClampCorrelator.Correlate(values, index)
}

func TestParseOneTimeoutCoversExtraction(t *testing.T) {
	p := NewParser(staticDecoder{"doc": singleItemDocument()}, WithCorrelator(slowCorrelator{}), WithTimeout(20*time.Millisecond))
	res := p.ParseOne(context.Background(), []byte("doc"), "slow.pdf")
	if res.Status != internal.StatusError || !strings.Contains(res.Error, "timed out") {
		t.Fatalf("res=%+v", res)
	}
}

func overflowDocument() *layout.Document {
	huge := "1" + strings.Repeat("0", 308) + ",00"
	return &layout.Document{Pages: []layout.Page{{
		Number: 1,
		Text:   "Harga Jual / Penggantian / Uang Muka / Termin 100,00",
		Table: []layout.Row{
			row("1", "0", "A Rp 1,00 x 1 PCS", huge),
			row("2", "0", "B Rp 1,00 x 1 PCS", huge),
		},
	}}}
}

func TestParseOneOverflowingTotals(t *testing.T) {
	res := NewParser(staticDecoder{"doc": overflowDocument()}).ParseOne(context.Background(), []byte("doc"), "huge.pdf")
	if res.Status != internal.StatusSuccess || res.TotalItems != 2 {
		t.Fatalf("res=%+v", res)
	}
	v := res.Validation
	if v.IsValid || math.IsInf(v.CalculatedTotal, 0) || math.IsInf(v.Difference, 0) || v.CalculatedTotalFormatted == "" {
		t.Fatalf("validation=%+v", v)
	}
}

type memoryCache struct {
	mu   sync.Mutex
	data map[string]internal.ParseResult
	hits int
}

func (c *memoryCache) Get(_ context.Context, key string) (*internal.ParseResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, ok := c.data[key]
	if ok {
		c.hits++
	}
	return &res, ok
}

func (c *memoryCache) Set(_ context.Context, key string, result internal.ParseResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = result
}

func TestParseOneUsesCache(t *testing.T) {
	cache := &memoryCache{data: map[string]internal.ParseResult{}}
	raw := "doc"
	p := NewParser(staticDecoder{raw: singleItemDocument()}, WithCache(cache))

	first := p.ParseOne(context.Background(), []byte(raw), "one.pdf")
	second := p.ParseOne(context.Background(), []byte(raw), "two.pdf")
	if cache.hits != 1 {
		t.Fatalf("hits=%d", cache.hits)
	}
	if second.Filename != "two.pdf" || second.TotalItems != first.TotalItems {
		t.Fatalf("second=%+v", second)
	}

	// Failures are never cached.
	p.ParseOne(context.Background(), []byte("broken"), "x.pdf")
	if len(cache.data) != 1 {
		t.Fatalf("cached=%d", len(cache.data))
	}
}
