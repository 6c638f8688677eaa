package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"coretax/internal"
	"coretax/internal/config"
	"coretax/internal/layout"
	"coretax/internal/util"
)

// ResultCache stores successful parse results by content hash.
type ResultCache interface {
	Get(ctx context.Context, key string) (*internal.ParseResult, bool)
	Set(ctx context.Context, key string, result internal.ParseResult)
}

type Parser struct {
	decoder    layout.Decoder
	correlator AuxiliaryFieldCorrelator
	tolerance  float64
	timeout    time.Duration
	workers    int
	cache      ResultCache
	logger     *slog.Logger
}

type ParserOption func(*Parser)

func WithTolerance(tolerance float64) ParserOption {
	return func(p *Parser) {
		if tolerance > 0 {
			p.tolerance = tolerance
		}
	}
}

// WithTimeout sets the wall-clock budget for one document.
func WithTimeout(d time.Duration) ParserOption {
	return func(p *Parser) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithWorkers bounds how many documents ParseMany decodes at once.
func WithWorkers(n int) ParserOption {
	return func(p *Parser) {
		if n > 0 {
			p.workers = n
		}
	}
}

func WithCorrelator(c AuxiliaryFieldCorrelator) ParserOption {
	return func(p *Parser) {
		if c != nil {
			p.correlator = c
		}
	}
}

func WithCache(c ResultCache) ParserOption {
	return func(p *Parser) { p.cache = c }
}

func WithLogger(logger *slog.Logger) ParserOption {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewParser(decoder layout.Decoder, opts ...ParserOption) *Parser {
	p := &Parser{
		decoder:    decoder,
		correlator: IndexClampCorrelator{},
		tolerance:  DefaultTolerance,
		timeout:    config.DefaultParseTimeout,
		workers:    config.DefaultWorkers,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewParserFromConfig wires the PDF decoder and limits from cfg.
func NewParserFromConfig(cfg config.Config, opts ...ParserOption) *Parser {
	logger := slog.Default()
	decoder := layout.NewPDFDecoder(
		layout.SettingsFromProfile(cfg.Profile()),
		layout.WithPreflight(cfg.PDFPreflight),
		layout.WithLogger(logger),
	)
	base := []ParserOption{
		WithTolerance(cfg.Tolerance),
		WithTimeout(cfg.ParseTimeout),
		WithWorkers(cfg.Workers),
	}
	return NewParser(decoder, append(base, opts...)...)
}

func (p *Parser) Tolerance() float64 { return p.tolerance }

// ParseOne runs the whole pipeline on one PDF. Failures become a result with status "error".
func (p *Parser) ParseOne(ctx context.Context, raw []byte, filename string) internal.ParseResult {
	start := time.Now()

	key := ""
	if p.cache != nil {
		key = fmt.Sprintf("%s:%g", util.SHA256Hex(raw), p.tolerance)
		if cached, ok := p.cache.Get(ctx, key); ok {
			res := *cached
			res.Filename = filename
			p.logger.Debug("parse cache hit", "filename", filename)
			return res
		}
	}

	res, pages, err := p.run(ctx, raw, filename)
	if err != nil {
		p.logger.Warn("document parse failed", "filename", filename, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return ErrorResult(filename, err)
	}

	p.logger.Info("document parsed",
		"filename", filename,
		"pages", pages,
		"items", res.TotalItems,
		"is_valid", res.Validation.IsValid,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if p.cache != nil {
		p.cache.Set(ctx, key, res)
	}
	return res
}

// Extract runs metadata, item and reconciliation stages over a decoded document.
func (p *Parser) Extract(doc *layout.Document, filename string) internal.ParseResult {
	fullText := doc.FullText()

	items := []internal.LineItem{}
	for _, page := range doc.Pages {
		for _, buf := range AssemblePage(page.Table) {
			items = append(items, ExtractItems(buf, p.correlator)...)
		}
	}

	validation := Reconcile(items, SummaryTotal(fullText), p.tolerance)
	return internal.ParseResult{
		Status:     internal.StatusSuccess,
		Filename:   filename,
		Metadata:   ExtractMetadata(fullText),
		Items:      items,
		TotalItems: len(items),
		Validation: &validation,
	}
}

// run decodes and extracts under one wall-clock budget. A panic in either stage becomes an error.
func (p *Parser) run(ctx context.Context, raw []byte, filename string) (internal.ParseResult, int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type outcome struct {
		res   internal.ParseResult
		pages int
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		sentinel := ErrDecode
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: panic: %v", sentinel, r)}
			}
		}()

		doc, err := p.decoder.Decode(ctx, raw)
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			done <- outcome{err: fmt.Errorf("%w after %s", ErrTimeout, p.timeout)}
			return
		case err != nil:
			done <- outcome{err: fmt.Errorf("%w: %v", ErrDecode, err)}
			return
		case doc == nil:
			done <- outcome{err: fmt.Errorf("%w: no document", ErrDecode)}
			return
		}

		sentinel = ErrExtract
		done <- outcome{res: p.Extract(doc, filename), pages: len(doc.Pages)}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return internal.ParseResult{}, 0, fmt.Errorf("%w after %s", ErrTimeout, p.timeout)
		}
		return internal.ParseResult{}, 0, ctx.Err()
	case o := <-done:
		return o.res, o.pages, o.err
	}
}

// ErrorResult is the per-document failure record.
func ErrorResult(filename string, err error) internal.ParseResult {
	return internal.ParseResult{
		Status:   internal.StatusError,
		Filename: filename,
		Items:    []internal.LineItem{},
		Error:    err.Error(),
	}
}
