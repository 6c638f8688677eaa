package pipeline

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"coretax/internal"
)

// File is one named PDF in a batch.
type File struct {
	Name string
	Data []byte
}

const BatchCompleted = "completed"

// ParseMany parses every file independently. Results keep input order and one failure never stops the batch.
func (p *Parser) ParseMany(ctx context.Context, files []File) internal.BatchResult {
	start := time.Now()
	results := make([]internal.ParseResult, len(files))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, f := range files {
		g.Go(func() error {
			results[i] = p.ParseOne(ctx, f.Data, f.Name)
			return nil
		})
	}
	_ = g.Wait()

	out := Tally(results)
	p.logger.Info("batch parsed",
		"files", out.TotalFiles,
		"success", out.TotalSuccess,
		"failed", out.TotalFailed,
		"workers", p.workers,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out
}

// Tally counts per-document outcomes.
func Tally(results []internal.ParseResult) internal.BatchResult {
	out := internal.BatchResult{Status: BatchCompleted, TotalFiles: len(results), Results: results}
	if out.Results == nil {
		out.Results = []internal.ParseResult{}
	}
	for _, r := range results {
		if r.Status == internal.StatusSuccess {
			out.TotalSuccess++
		} else {
			out.TotalFailed++
		}
	}
	return out
}
