package connectors

import (
	"context"

	"coretax/internal"
)

// MailConnector lists messages that may carry tax-invoice PDFs.
type MailConnector interface {
	FetchInbox(ctx context.Context, label string, max int) ([]internal.FetchedMailMessage, error)
}
