package layout

import (
	"math"
	"sort"
	"strings"
)

// Glyph is a positioned run of text in PDF user space (origin bottom-left).
type Glyph struct {
	X, Y     float64
	W        float64
	FontSize float64
	S        string
}

// Box is a filled or stroked rectangle; thin boxes are ruling lines.
type Box struct {
	X0, Y0, X1, Y1 float64
}

type segment struct {
	x0, x1 float64
	text   string
}

type textLine struct {
	y        float64
	segments []segment
}

type span struct {
	lo, hi float64
}

// BuildTable reconstructs the page table grid from glyph and rectangle geometry.
// Returns nil when the page has no text.
func BuildTable(glyphs []Glyph, boxes []Box, s TableSettings) []Row {
	if s.SnapTolerance <= 0 {
		s.SnapTolerance = DefaultTableSettings().SnapTolerance
	}
	lines := groupLines(glyphs, s)
	if len(lines) == 0 {
		return nil
	}

	var columns []span
	if s.VerticalStrategy == StrategyLines {
		columns = spansBetween(verticalEdges(boxes, s.SnapTolerance), s.SnapTolerance)
	}
	if len(columns) < 2 {
		columns = textColumns(lines, s.SnapTolerance)
	}

	var bands []span
	if s.HorizontalStrategy == StrategyLines {
		bands = spansBetween(horizontalEdges(boxes, s.SnapTolerance), s.SnapTolerance)
	}

	var rows []Row
	if len(bands) == 0 {
		for _, line := range lines {
			if row := fillRow([]textLine{line}, columns, s.SnapTolerance); row != nil {
				rows = append(rows, row)
			}
		}
		return rows
	}

	// Bands run top-down; PDF Y grows upward.
	for i := len(bands) - 1; i >= 0; i-- {
		band := bands[i]
		var members []textLine
		for _, line := range lines {
			if line.y > band.lo && line.y < band.hi {
				members = append(members, line)
			}
		}
		if row := fillRow(members, columns, s.SnapTolerance); row != nil {
			rows = append(rows, row)
		}
	}
	return rows
}

func groupLines(glyphs []Glyph, s TableSettings) []textLine {
	sorted := make([]Glyph, 0, len(glyphs))
	for _, g := range glyphs {
		if g.S != "" {
			sorted = append(sorted, g)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var groups [][]Glyph
	for _, g := range sorted {
		n := len(groups)
		if n > 0 && math.Abs(groups[n-1][0].Y-g.Y) <= s.SnapTolerance {
			groups[n-1] = append(groups[n-1], g)
			continue
		}
		groups = append(groups, []Glyph{g})
	}

	lines := make([]textLine, 0, len(groups))
	for _, group := range groups {
		sort.SliceStable(group, func(i, j int) bool { return group[i].X < group[j].X })
		line := textLine{y: group[0].Y}
		var cur *segment
		var b strings.Builder
		for _, g := range group {
			if cur != nil {
				gap := g.X - cur.x1
				if gap > s.MinColumnGap {
					cur.text = b.String()
					line.segments = append(line.segments, *cur)
					cur = nil
					b.Reset()
				} else if gap > spaceWidth(g) && !strings.HasSuffix(b.String(), " ") && !strings.HasPrefix(g.S, " ") {
					b.WriteByte(' ')
				}
			}
			if cur == nil {
				cur = &segment{x0: g.X, x1: g.X}
			}
			b.WriteString(g.S)
			if right := g.X + g.W; right > cur.x1 {
				cur.x1 = right
			}
		}
		if cur != nil {
			cur.text = b.String()
			line.segments = append(line.segments, *cur)
		}
		lines = append(lines, line)
	}
	return lines
}

func spaceWidth(g Glyph) float64 {
	if g.FontSize > 0 {
		return g.FontSize * 0.2
	}
	return 1
}

func verticalEdges(boxes []Box, snap float64) []float64 {
	var xs []float64
	for _, b := range boxes {
		w := math.Abs(b.X1 - b.X0)
		h := math.Abs(b.Y1 - b.Y0)
		switch {
		case w <= snap && h > snap:
			xs = append(xs, (b.X0+b.X1)/2)
		case w > snap && h > snap:
			xs = append(xs, math.Min(b.X0, b.X1), math.Max(b.X0, b.X1))
		}
	}
	return clusterEdges(xs, snap)
}

func horizontalEdges(boxes []Box, snap float64) []float64 {
	var ys []float64
	for _, b := range boxes {
		w := math.Abs(b.X1 - b.X0)
		h := math.Abs(b.Y1 - b.Y0)
		switch {
		case h <= snap && w > snap:
			ys = append(ys, (b.Y0+b.Y1)/2)
		case w > snap && h > snap:
			ys = append(ys, math.Min(b.Y0, b.Y1), math.Max(b.Y0, b.Y1))
		}
	}
	return clusterEdges(ys, snap)
}

// clusterEdges merges coordinates closer than snap into their mean.
func clusterEdges(values []float64, snap float64) []float64 {
	if len(values) == 0 {
		return nil
	}
	sort.Float64s(values)
	var out []float64
	sum, count := values[0], 1
	for _, v := range values[1:] {
		if v-sum/float64(count) <= snap {
			sum += v
			count++
			continue
		}
		out = append(out, sum/float64(count))
		sum, count = v, 1
	}
	return append(out, sum/float64(count))
}

func spansBetween(edges []float64, snap float64) []span {
	var out []span
	for i := 0; i+1 < len(edges); i++ {
		if edges[i+1]-edges[i] > snap {
			out = append(out, span{lo: edges[i], hi: edges[i+1]})
		}
	}
	return out
}

// textColumns projects every segment onto the X axis and merges overlapping ranges.
func textColumns(lines []textLine, snap float64) []span {
	var all []span
	for _, line := range lines {
		for _, seg := range line.segments {
			all = append(all, span{lo: seg.x0, hi: seg.x1})
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].lo < all[j].lo })

	var out []span
	for _, sp := range all {
		n := len(out)
		if n > 0 && sp.lo <= out[n-1].hi+snap {
			if sp.hi > out[n-1].hi {
				out[n-1].hi = sp.hi
			}
			continue
		}
		out = append(out, sp)
	}
	return out
}

func columnFor(seg segment, columns []span, snap float64) int {
	mid := (seg.x0 + seg.x1) / 2
	best, bestDist := -1, math.MaxFloat64
	for i, c := range columns {
		if mid >= c.lo && mid <= c.hi {
			return i
		}
		d := math.Min(math.Abs(mid-c.lo), math.Abs(mid-c.hi))
		if d < bestDist {
			best, bestDist = i, d
		}
	}
	if bestDist <= snap {
		return best
	}
	return -1
}

func fillRow(lines []textLine, columns []span, snap float64) Row {
	if len(lines) == 0 || len(columns) == 0 {
		return nil
	}
	parts := make([][]string, len(columns))
	for _, line := range lines {
		perLine := make([][]string, len(columns))
		for _, seg := range line.segments {
			idx := columnFor(seg, columns, snap)
			if idx < 0 {
				continue
			}
			if text := strings.TrimSpace(seg.text); text != "" {
				perLine[idx] = append(perLine[idx], text)
			}
		}
		for i, words := range perLine {
			if len(words) > 0 {
				parts[i] = append(parts[i], strings.Join(words, " "))
			}
		}
	}

	row := make(Row, len(columns))
	empty := true
	for i, p := range parts {
		if len(p) == 0 {
			continue
		}
		row[i] = Cell(strings.Join(p, "\n"))
		empty = false
	}
	if empty {
		return nil
	}
	return row
}
