package pipeline

import (
	"strings"
	"unicode/utf8"

	"coretax/internal/layout"
	"coretax/internal/util"
)

const (
	minItemCells = 4
	// Longer leading cells are wrapped description text, not a sequence number.
	maxSeqLen = 5
)

// ItemBuffer accumulates the cells of one logical item row. Fields are newline-joined fragments.
type ItemBuffer struct {
	No       string
	Code     string
	Detail   string
	TotalCol string
}

type assemblerState int

const (
	noActiveBuffer assemblerState = iota
	bufferOpen
)

// Assembler groups fragmented table rows into item buffers, one page at a time.
type Assembler struct {
	state   assemblerState
	current ItemBuffer
	flushed []ItemBuffer
}

// Feed consumes one table row.
func (a *Assembler) Feed(row layout.Row) {
	if len(row) < minItemCells {
		return
	}
	cells := rowFields(row)

	if startsItem(cells[0]) {
		a.flush()
		a.current = ItemBuffer{No: cells[0], Code: cells[1], Detail: cells[2], TotalCol: cells[3]}
		a.state = bufferOpen
		return
	}
	if a.state != bufferOpen {
		return
	}
	a.current.No = appendFragment(a.current.No, cells[0])
	a.current.Code = appendFragment(a.current.Code, cells[1])
	a.current.Detail = appendFragment(a.current.Detail, cells[2])
	a.current.TotalCol = appendFragment(a.current.TotalCol, cells[3])
}

// EndPage flushes the open buffer. Buffers never continue onto the next page.
func (a *Assembler) EndPage() {
	a.flush()
}

// Take returns the flushed buffers and resets the list.
func (a *Assembler) Take() []ItemBuffer {
	out := a.flushed
	a.flushed = nil
	return out
}

func (a *Assembler) flush() {
	if a.state != bufferOpen {
		return
	}
	a.flushed = append(a.flushed, a.current)
	a.current = ItemBuffer{}
	a.state = noActiveBuffer
}

// AssemblePage runs the assembler over one page table.
func AssemblePage(table []layout.Row) []ItemBuffer {
	var a Assembler
	for _, row := range table {
		a.Feed(row)
	}
	a.EndPage()
	return a.Take()
}

func startsItem(first string) bool {
	trimmed := strings.TrimSpace(first)
	return util.HasDigit(trimmed) && utf8.RuneCountInString(trimmed) < maxSeqLen
}

// rowFields maps a row onto no, code, detail and total. Extra middle columns fold into detail.
func rowFields(row layout.Row) [4]string {
	text := func(c *string) string {
		if c == nil {
			return ""
		}
		return *c
	}
	last := len(row) - 1
	var detail []string
	for _, c := range row[2:last] {
		if v := text(c); strings.TrimSpace(v) != "" {
			detail = append(detail, v)
		}
	}
	return [4]string{text(row[0]), text(row[1]), strings.Join(detail, " "), text(row[last])}
}

func appendFragment(acc, fragment string) string {
	if strings.TrimSpace(fragment) == "" {
		return acc
	}
	if acc == "" {
		return fragment
	}
	return acc + "\n" + fragment
}
