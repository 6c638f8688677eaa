package listener

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"coretax/internal"
	"coretax/internal/config"
	"coretax/internal/connectors"
	gmailconnector "coretax/internal/connectors/gmail"
	imapconnector "coretax/internal/connectors/imap"
	"coretax/internal/pipeline"
	"coretax/internal/storage"
)

type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	connector connectors.MailConnector
	logger    *slog.Logger
}

type Option func(*Service)

// WithConnector replaces the provider lookup, mostly for tests.
func WithConnector(c connectors.MailConnector) Option {
	return func(s *Service) { s.connector = c }
}

func NewService(db *storage.DB, cfg config.Config, processor *pipeline.ProcessingService, opts ...Option) *Service {
	s := &Service{db: db, cfg: cfg, processor: processor, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Run(ctx context.Context) error {
	for {
		if err := s.RunCycle(ctx); err != nil {
			s.logger.Error("listener cycle failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(time.Duration(s.cfg.MailListenerIntervalSec) * time.Second):
		}
	}
}

// RunCycle fetches new mail, parses pending messages and optionally exports them.
func (s *Service) RunCycle(ctx context.Context) error {
	provider := strings.ToLower(strings.TrimSpace(s.cfg.MailListenerProvider))
	mailConnector := s.connector
	if mailConnector == nil {
		var err error
		if mailConnector, err = s.makeConnector(provider); err != nil {
			return err
		}
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return err
	}

	processedEmails, documents, err := s.processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return err
	}

	exported := 0
	if s.cfg.MailListenerAutoExport {
		if exported, err = s.exportProcessed(provider); err != nil {
			return err
		}
	}

	s.logger.Info("listener cycle done",
		"provider", provider,
		"fetched", fetchResult.Fetched,
		"stored", fetchResult.Stored,
		"processed", processedEmails,
		"documents", documents,
		"exported", exported,
	)
	return nil
}

func (s *Service) exportProcessed(provider string) (int, error) {
	emails, err := s.db.ListEmailsByStatus("processed", 200)
	if err != nil {
		return 0, err
	}

	exported := 0
	for _, email := range emails {
		if provider != "" && email.Provider != provider {
			continue
		}
		docs, err := s.db.ListDocumentsByEmail(email.ID)
		if err != nil {
			return exported, err
		}
		if len(docs) == 0 {
			continue
		}
		results := make([]internal.ParseResult, 0, len(docs))
		for _, doc := range docs {
			res, err := s.db.LoadResult(doc.ID)
			if err != nil {
				return exported, err
			}
			results = append(results, res)
		}

		filename := fmt.Sprintf("%d_%s.xlsx", email.ID, sanitizeMessageID(email.MessageID))
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
		if err := pipeline.ExportResultsToXLSX(results, outputPath); err != nil {
			return exported, err
		}
		_ = s.db.UpdateEmailStatus(email.ID, "exported")
		exported++
	}
	return exported, nil
}

func (s *Service) makeConnector(provider string) (connectors.MailConnector, error) {
	switch provider {
	case "gmail":
		return gmailconnector.NewConnector(s.cfg)
	case "imap":
		return imapconnector.NewConnector(s.cfg)
	default:
		return nil, fmt.Errorf("unsupported listener provider: %s", provider)
	}
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
