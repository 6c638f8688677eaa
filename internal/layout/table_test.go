package layout

import "testing"

func cellText(c *string) string {
	if c == nil {
		return "<nil>"
	}
	return *c
}

func TestBuildTableRuledGrid(t *testing.T) {
	var boxes []Box
	for _, x := range []float64{10, 40, 110, 300, 400} {
		boxes = append(boxes, Box{X0: x - 0.25, Y0: 600, X1: x + 0.25, Y1: 700})
	}
	for _, y := range []float64{700, 680, 600} {
		boxes = append(boxes, Box{X0: 10, Y0: y - 0.25, X1: 400, Y1: y + 0.25})
	}

	glyphs := []Glyph{
		{X: 12, Y: 688, W: 12, FontSize: 8, S: "No."},
		{X: 45, Y: 688, W: 20, FontSize: 8, S: "Kode"},
		{X: 115, Y: 688, W: 50, FontSize: 8, S: "Nama Barang"},
		{X: 305, Y: 688, W: 40, FontSize: 8, S: "Harga Jual"},

		{X: 15, Y: 665, W: 4, FontSize: 8, S: "1"},
		{X: 45, Y: 665, W: 28, FontSize: 8, S: "060100"},
		{X: 115, Y: 665, W: 150, FontSize: 8, S: "Barang A Rp 100.000,00 x 2 PCS"},
		{X: 115, Y: 652, W: 100, FontSize: 8, S: "Potongan Harga = Rp 0,00"},
		{X: 305, Y: 665, W: 45, FontSize: 8, S: "200.000,00"},

		// Outside the ruled area.
		{X: 50, Y: 750, W: 100, FontSize: 8, S: "Faktur Pajak"},
	}

	rows := BuildTable(glyphs, boxes, DefaultTableSettings())
	if len(rows) != 2 {
		t.Fatalf("len=%d", len(rows))
	}

	header := rows[0]
	if cellText(header[0]) != "No." || cellText(header[3]) != "Harga Jual" {
		t.Fatalf("header=%v %v", cellText(header[0]), cellText(header[3]))
	}

	item := rows[1]
	if len(item) != 4 {
		t.Fatalf("cells=%d", len(item))
	}
	want := []string{"1", "060100", "Barang A Rp 100.000,00 x 2 PCS\nPotongan Harga = Rp 0,00", "200.000,00"}
	for i, w := range want {
		if cellText(item[i]) != w {
			t.Fatalf("cell %d got %q want %q", i, cellText(item[i]), w)
		}
	}
}

func TestBuildTableTextStrategy(t *testing.T) {
	settings := TableSettings{
		VerticalStrategy:   StrategyText,
		HorizontalStrategy: StrategyText,
		SnapTolerance:      3,
		MinColumnGap:       12,
	}
	glyphs := []Glyph{
		{X: 10, Y: 700, W: 5, FontSize: 10, S: "1"},
		{X: 50, Y: 700, W: 30, FontSize: 10, S: "060100"},
		{X: 120, Y: 700.5, W: 30, FontSize: 10, S: "Barang"},
		{X: 155, Y: 700, W: 6, FontSize: 10, S: "A"},
		{X: 350, Y: 700, W: 45, FontSize: 10, S: "200.000,00"},
		{X: 120, Y: 686, W: 40, FontSize: 10, S: "Potongan"},
	}

	rows := BuildTable(glyphs, nil, settings)
	if len(rows) != 2 {
		t.Fatalf("len=%d", len(rows))
	}
	first := rows[0]
	want := []string{"1", "060100", "Barang A", "200.000,00"}
	for i, w := range want {
		if cellText(first[i]) != w {
			t.Fatalf("cell %d got %q want %q", i, cellText(first[i]), w)
		}
	}
	second := rows[1]
	if second[0] != nil || second[1] != nil || cellText(second[2]) != "Potongan" || second[3] != nil {
		t.Fatalf("continuation row=%v", []string{cellText(second[0]), cellText(second[1]), cellText(second[2]), cellText(second[3])})
	}
}

func TestBuildTableLinesFallsBackToText(t *testing.T) {
	glyphs := []Glyph{
		{X: 10, Y: 700, W: 5, FontSize: 10, S: "1"},
		{X: 100, Y: 700, W: 20, FontSize: 10, S: "abc"},
	}
	rows := BuildTable(glyphs, nil, DefaultTableSettings())
	if len(rows) != 1 || len(rows[0]) != 2 {
		t.Fatalf("rows=%v", rows)
	}
}

func TestBuildTableEmpty(t *testing.T) {
	if rows := BuildTable(nil, nil, DefaultTableSettings()); rows != nil {
		t.Fatalf("rows=%v", rows)
	}
}

func TestClusterEdges(t *testing.T) {
	got := clusterEdges([]float64{100.5, 10, 11, 100, 50}, 3)
	if len(got) != 3 {
		t.Fatalf("len=%d %v", len(got), got)
	}
	if got[0] != 10.5 || got[1] != 50 || got[2] != 100.25 {
		t.Fatalf("got %v", got)
	}
}
