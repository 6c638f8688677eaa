package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"coretax/internal"
	"coretax/internal/storage"
	"coretax/internal/util"
)

// ResultSink receives every persisted parse result, e.g. a reporting database.
type ResultSink interface {
	Save(ctx context.Context, res internal.ParseResult, source internal.DocumentSource, hash string) error
}

type ProcessingService struct {
	db     *storage.DB
	parser *Parser
	sinks  []ResultSink
	logger *slog.Logger
}

func NewProcessingService(db *storage.DB, parser *Parser, sinks ...ResultSink) *ProcessingService {
	return &ProcessingService{db: db, parser: parser, sinks: sinks, logger: slog.Default()}
}

type ProcessResult struct {
	EmailID   int
	Skipped   bool
	Documents int
	Failed    int
	Items     int
}

// Record stores a batch outcome. files and batch.Results must be index-aligned.
func (s *ProcessingService) Record(ctx context.Context, files []File, batch internal.BatchResult, source internal.DocumentSource, emailID *int) ([]int64, error) {
	ids := make([]int64, 0, len(batch.Results))
	for i, res := range batch.Results {
		hash := ""
		if i < len(files) {
			hash = util.SHA256Hex(files[i].Data)
		}
		id, err := s.db.InsertDocument(res, source, hash, emailID)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)

		for _, sink := range s.sinks {
			if err := sink.Save(ctx, res, source, hash); err != nil {
				s.logger.Warn("result sink failed", "filename", res.Filename, "error", err)
			}
		}
	}
	return ids, nil
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus("fetched", limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	processedDocs := 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return processedEmails, processedDocs, err
		}
		processedEmails++
		processedDocs += res.Documents
	}
	return processedEmails, processedDocs, nil
}

// ProcessEmail parses every PDF attached to a stored message. Reprocessing replaces earlier documents.
func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	mail, err := ReadMail(raw)
	if err != nil {
		return ProcessResult{}, fmt.Errorf("read mail %d: %w", email.ID, err)
	}

	detect := DetectInvoiceMail(util.FirstNonEmpty(mail.Subject, email.Subject), mail.Text, mail.HTMLText, mail.AttachmentNames)
	if err := s.db.ClearEmailProcessing(email.ID); err != nil {
		return ProcessResult{}, err
	}

	if !detect.IsInvoice {
		_ = s.db.UpdateEmailStatus(email.ID, "skipped")
		_ = s.db.InsertRun(traceID(), &email.ID, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, map[string]int{"documents": 0, "success": 0, "failed": 0, "items": 0})
		s.logger.Info("email skipped", "email_id", email.ID, "score", detect.Score, "reason", detect.Reason)
		return ProcessResult{EmailID: email.ID, Skipped: true}, nil
	}

	parseStart := time.Now()
	batch := s.parser.ParseMany(ctx, mail.PDFs)
	parseMs := float64(time.Since(parseStart).Milliseconds())

	if _, err := s.Record(ctx, mail.PDFs, batch, internal.SourceEmail, &email.ID); err != nil {
		return ProcessResult{}, err
	}

	items := 0
	for _, res := range batch.Results {
		items += res.TotalItems
	}

	if err := s.db.UpdateEmailStatus(email.ID, "processed"); err != nil {
		return ProcessResult{}, err
	}
	_ = s.db.InsertRun(traceID(), &email.ID,
		map[string]float64{"parseMs": parseMs, "totalMs": float64(time.Since(start).Milliseconds())},
		map[string]int{"documents": batch.TotalFiles, "success": batch.TotalSuccess, "failed": batch.TotalFailed, "items": items},
	)

	return ProcessResult{EmailID: email.ID, Documents: batch.TotalFiles, Failed: batch.TotalFailed, Items: items}, nil
}

func traceID() string {
	return uuid.NewString()
}
