package pipeline

import (
	"testing"

	"coretax/internal/layout"
)

func TestAssemblerMergesContinuationRows(t *testing.T) {
	table := []layout.Row{
		row("No.", "Kode Barang", "Nama Barang", "Harga Jual"),
		row("1", "060100", "Barang A", "200.000,00"),
		row("", "", "Rp 100.000,00 x 2 PCS", ""),
		row("", "", "Potongan Harga = Rp 0,00", ""),
	}

	bufs := AssemblePage(table)
	if len(bufs) != 1 {
		t.Fatalf("len=%d", len(bufs))
	}
	got := bufs[0]
	if got.No != "1" || got.Code != "060100" || got.TotalCol != "200.000,00" {
		t.Fatalf("buffer=%+v", got)
	}
	want := "Barang A\nRp 100.000,00 x 2 PCS\nPotongan Harga = Rp 0,00"
	if got.Detail != want {
		t.Fatalf("detail=%q", got.Detail)
	}
}

func TestAssemblerFlushesOnNextItem(t *testing.T) {
	var a Assembler
	a.Feed(row("1", "A1", "first", "10"))
	if n := len(a.Take()); n != 0 {
		t.Fatalf("flushed early: %d", n)
	}
	a.Feed(row("2", "B1", "second", "20"))
	flushed := a.Take()
	if len(flushed) != 1 || flushed[0].Detail != "first" {
		t.Fatalf("flushed=%+v", flushed)
	}
	a.EndPage()
	flushed = a.Take()
	if len(flushed) != 1 || flushed[0].Detail != "second" {
		t.Fatalf("flushed=%+v", flushed)
	}
}

func TestAssemblerDoesNotSpanPages(t *testing.T) {
	var a Assembler
	a.Feed(row("1", "A1", "on page one", "10"))
	a.EndPage()
	// Continuation rows at the top of the next page have nothing to attach to.
	a.Feed(row("", "", "spill-over", ""))
	a.EndPage()

	bufs := a.Take()
	if len(bufs) != 1 {
		t.Fatalf("len=%d", len(bufs))
	}
	if bufs[0].Detail != "on page one" {
		t.Fatalf("detail=%q", bufs[0].Detail)
	}
}

func TestAssemblerIgnoresShortRowsAndEmptyCells(t *testing.T) {
	table := []layout.Row{
		row("1", "C1", "Barang", "5"),
		row("", "", ""),
		row("", "C2", "", ""),
		{nil, nil, nil, nil},
	}
	bufs := AssemblePage(table)
	if len(bufs) != 1 {
		t.Fatalf("len=%d", len(bufs))
	}
	if bufs[0].Code != "C1\nC2" || bufs[0].Detail != "Barang" || bufs[0].TotalCol != "5" || bufs[0].No != "1" {
		t.Fatalf("buffer=%+v", bufs[0])
	}
}

func TestAssemblerSequenceDetection(t *testing.T) {
	cases := []struct {
		first string
		want  bool
	}{
		{first: "1", want: true},
		{first: " 12 ", want: true},
		{first: "1234", want: true},
		{first: "12345", want: false},
		{first: "No.", want: false},
		{first: "Barang 2 meter", want: false},
		{first: "", want: false},
	}
	for _, tc := range cases {
		if got := startsItem(tc.first); got != tc.want {
			t.Fatalf("startsItem(%q)=%v want %v", tc.first, got, tc.want)
		}
	}
}

func TestAssemblerFoldsExtraColumnsIntoDetail(t *testing.T) {
	bufs := AssemblePage([]layout.Row{row("1", "060100", "Barang A", "Rp 100,00 x 2 PCS", "200,00")})
	if len(bufs) != 1 {
		t.Fatalf("len=%d", len(bufs))
	}
	if bufs[0].Detail != "Barang A Rp 100,00 x 2 PCS" || bufs[0].TotalCol != "200,00" {
		t.Fatalf("buffer=%+v", bufs[0])
	}
}
