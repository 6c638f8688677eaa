package pipeline

import (
	"strings"

	"coretax/internal/util"
)

// Detail cells follow a small grammar:
//
//	detail   := { item | discount | ppnbm | word }
//	item     := name "Rp" AMOUNT ("x"|"×") AMOUNT unit
//	discount := "Potongan" "Harga" ... "Rp" AMOUNT
//	ppnbm    := "PPnBM" ... "Rp" AMOUNT
//
// A unit runs to the next "Potongan Harga", "PPnBM", "Rp" or the end of the text.

type tokenKind int

const (
	tokWord tokenKind = iota
	tokRp
	tokAmount
	tokTimes
	tokPotongan
	tokPPnBM
)

type token struct {
	kind tokenKind
	text string
}

// ParsedItem is one item recognised in a detail cell, before field correlation.
type ParsedItem struct {
	Name     string
	PriceRaw string
	QtyRaw   string
	Unit     string
}

type DetailParse struct {
	Items     []ParsedItem
	Discounts []string
}

func tokenize(detail string) []token {
	fields := strings.Fields(detail)
	out := make([]token, 0, len(fields))
	for i := 0; i < len(fields); i++ {
		f := fields[i]
		switch {
		case f == "Rp":
			out = append(out, token{kind: tokRp, text: f})
		case strings.HasPrefix(f, "Rp") && util.IsNumericToken(f[2:]):
			out = append(out, token{kind: tokRp, text: "Rp"}, token{kind: tokAmount, text: f[2:]})
		case f == "x" || f == "×":
			out = append(out, token{kind: tokTimes, text: f})
		case util.IsNumericToken(f):
			out = append(out, token{kind: tokAmount, text: f})
		case f == "Potongan" && i+1 < len(fields) && fields[i+1] == "Harga":
			out = append(out, token{kind: tokPotongan, text: "Potongan Harga"})
			i++
		case strings.HasPrefix(f, "PPnBM"):
			out = append(out, token{kind: tokPPnBM, text: f})
		default:
			out = append(out, token{kind: tokWord, text: f})
		}
	}
	return out
}

type detailParser struct {
	toks []token
	pos  int
}

// ParseDetail recognises every item and discount clause in a collapsed detail string.
func ParseDetail(detail string) DetailParse {
	p := &detailParser{toks: tokenize(detail)}
	var out DetailParse
	var pending []string

	for p.pos < len(p.toks) {
		switch tok := p.toks[p.pos]; tok.kind {
		case tokRp:
			if p.itemAt(p.pos) {
				item, carry := p.item(pending)
				out.Items = append(out.Items, item)
				pending = carry
				continue
			}
			pending = append(pending, tok.text)
			p.pos++
		case tokPotongan:
			if amount, ok := p.clause(); ok {
				out.Discounts = append(out.Discounts, amount)
			}
			pending = nil
		case tokPPnBM:
			p.clause()
			pending = nil
		default:
			pending = append(pending, tok.text)
			p.pos++
		}
	}
	return out
}

// itemAt reports whether "Rp AMOUNT x AMOUNT unit" starts at i.
func (p *detailParser) itemAt(i int) bool {
	if i+4 >= len(p.toks) ||
		p.toks[i].kind != tokRp ||
		p.toks[i+1].kind != tokAmount ||
		p.toks[i+2].kind != tokTimes ||
		p.toks[i+3].kind != tokAmount {
		return false
	}
	switch p.toks[i+4].kind {
	case tokRp, tokPotongan, tokPPnBM:
		return false
	}
	return true
}

// item consumes "Rp price x qty unit" and returns words that belong to the next item's name.
func (p *detailParser) item(pending []string) (ParsedItem, []string) {
	item := ParsedItem{
		Name:     cleanName(pending),
		PriceRaw: p.toks[p.pos+1].text,
		QtyRaw:   p.toks[p.pos+3].text,
	}
	p.pos += 4

	var unit []string
	for p.pos < len(p.toks) {
		k := p.toks[p.pos].kind
		if k == tokRp || k == tokPotongan || k == tokPPnBM {
			break
		}
		unit = append(unit, p.toks[p.pos].text)
		p.pos++
	}

	// Two items in one cell: "PCS Barang B Rp ..." keeps only the unit word.
	var carry []string
	if p.itemAt(p.pos) && len(unit) > 1 {
		carry = unit[1:]
		unit = unit[:1]
	}
	item.Unit = strings.Join(unit, " ")
	return item, carry
}

// clause consumes a keyword and its "... Rp AMOUNT" tail. Without a tail only the keyword is consumed.
func (p *detailParser) clause() (string, bool) {
	start := p.pos
	for i := start + 1; i < len(p.toks); i++ {
		if p.toks[i].kind == tokPotongan || p.toks[i].kind == tokPPnBM || p.itemAt(i) {
			break
		}
		if p.toks[i].kind == tokRp && i+1 < len(p.toks) && p.toks[i+1].kind == tokAmount {
			p.pos = i + 2
			return p.toks[i+1].text, true
		}
	}
	p.pos = start + 1
	return "", false
}

const fallbackItemName = "Detail Item"

// cleanName drops leading sequence numbers and codes that bled into the name column.
func cleanName(words []string) string {
	i := 0
	for i < len(words) && util.IsNumericToken(words[i]) {
		i++
	}
	name := util.CollapseSpaces(strings.Join(words[i:], " "))
	if name == "" {
		return fallbackItemName
	}
	return name
}
