package connectors

import (
	"context"
	"log/slog"

	"coretax/internal/storage"
)

type FetchService struct {
	db        *storage.DB
	connector MailConnector
	store     *MailStoreService
}

type FetchResult struct {
	Fetched int
	Stored  int
	// Known counts messages already indexed, e.g. after a restart without IMAP_MARK_SEEN.
	Known int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector) *FetchService {
	return &FetchService{
		db:        db,
		connector: connector,
		store:     NewMailStoreService(db, rawMailDir),
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	result := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
		if err != nil {
			return result, err
		}
		if existing != nil {
			result.Known++
			continue
		}
		row, err := s.store.Store(msg)
		if err != nil {
			return result, err
		}
		slog.Debug("mail stored", "email_id", row.ID, "provider", row.Provider, "subject", row.Subject)
		result.Stored++
	}

	return result, nil
}
