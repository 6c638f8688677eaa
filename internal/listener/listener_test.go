package listener

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"coretax/internal"
	"coretax/internal/config"
	"coretax/internal/layout"
	"coretax/internal/pipeline"
	"coretax/internal/storage"
)

type fakeConnector struct {
	messages []internal.FetchedMailMessage
}

func (f fakeConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return f.messages, nil
}

const plainMail = "From: teman@example.com\r\nSubject: Makan siang\r\nMessage-ID: <m1@example.com>\r\n\r\nAyo makan.\r\n"

func TestRunCycleSkipsNonInvoiceMail(t *testing.T) {
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	cfg := config.Config{
		RawMailDir:               filepath.Join(tmp, "raw"),
		OutputDir:                filepath.Join(tmp, "out"),
		MailListenerProvider:     "imap",
		MailListenerLabel:        "INBOX",
		MailListenerFetchMax:     10,
		MailListenerProcessBatch: 10,
		MailListenerAutoExport:   true,
	}
	conn := fakeConnector{messages: []internal.FetchedMailMessage{
		{Provider: "imap", MessageID: "<m1@example.com>", Subject: "Makan siang", Raw: []byte(plainMail)},
	}}
	parser := pipeline.NewParser(layout.NewPDFDecoder(layout.DefaultTableSettings()))
	svc := NewService(db, cfg, pipeline.NewProcessingService(db, parser), WithConnector(conn))

	if err := svc.RunCycle(context.Background()); err != nil {
		t.Fatal(err)
	}
	row, err := db.GetEmailByProviderMessageID("imap", "<m1@example.com>")
	if err != nil || row == nil {
		t.Fatalf("row=%v err=%v", row, err)
	}
	if row.Status != "skipped" {
		t.Fatalf("status=%s", row.Status)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, "listener")); !os.IsNotExist(err) {
		t.Fatalf("unexpected export dir: %v", err)
	}
}

func TestRunCycleRejectsUnknownProvider(t *testing.T) {
	svc := NewService(nil, config.Config{MailListenerProvider: "pop3"}, nil)
	if err := svc.RunCycle(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestSanitizeMessageID(t *testing.T) {
	if got := sanitizeMessageID("<a/b:c@example.com>"); got != "_a_b_c@example.com_" {
		t.Fatalf("got %q", got)
	}
}
