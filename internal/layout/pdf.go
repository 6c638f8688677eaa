package layout

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	pdf "github.com/ledongthuc/pdf"
)

var ErrEmptyPDF = errors.New("empty pdf")

// PDFDecoder decodes PDFs with ledongthuc/pdf.
type PDFDecoder struct {
	settings  TableSettings
	preflight bool
	logger    *slog.Logger
}

type Option func(*PDFDecoder)

// WithPreflight runs pdfcpu structural validation before decoding.
func WithPreflight(enabled bool) Option {
	return func(d *PDFDecoder) { d.preflight = enabled }
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *PDFDecoder) {
		if logger != nil {
			d.logger = logger
		}
	}
}

func NewPDFDecoder(settings TableSettings, opts ...Option) *PDFDecoder {
	d := &PDFDecoder{settings: settings, logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *PDFDecoder) Decode(ctx context.Context, raw []byte) (doc *Document, err error) {
	if len(raw) == 0 {
		return nil, ErrEmptyPDF
	}
	// The reader panics on some malformed xref tables and content streams.
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = fmt.Errorf("decode pdf: %v", r)
		}
	}()

	if d.preflight {
		pages, err := Preflight(raw)
		if err != nil {
			return nil, err
		}
		d.logger.Debug("pdf preflight ok", "pages", pages)
	}

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	doc = &Document{}
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			d.logger.Warn("page text failed", "page", i, "error", err)
			text = ""
		}
		content := p.Content()
		doc.Pages = append(doc.Pages, Page{
			Number: i,
			Text:   text,
			Table:  BuildTable(toGlyphs(content.Text), toBoxes(content.Rect), d.settings),
		})
	}
	return doc, nil
}

func toGlyphs(texts []pdf.Text) []Glyph {
	out := make([]Glyph, 0, len(texts))
	for _, t := range texts {
		out = append(out, Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
	}
	return out
}

func toBoxes(rects []pdf.Rect) []Box {
	out := make([]Box, 0, len(rects))
	for _, r := range rects {
		out = append(out, Box{X0: r.Min.X, Y0: r.Min.Y, X1: r.Max.X, Y1: r.Max.Y})
	}
	return out
}
