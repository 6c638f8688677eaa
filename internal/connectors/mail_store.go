package connectors

import (
	"fmt"
	"os"
	"path/filepath"

	"coretax/internal"
	"coretax/internal/storage"
	"coretax/internal/util"
)

const statusFetched = "fetched"

// MailStoreService keeps raw messages on disk under <dir>/<hash[:2]>/<hash>.eml and indexes them.
type MailStoreService struct {
	db         *storage.DB
	rawMailDir string
}

func NewMailStoreService(db *storage.DB, rawMailDir string) *MailStoreService {
	return &MailStoreService{db: db, rawMailDir: rawMailDir}
}

func (s *MailStoreService) Store(msg internal.FetchedMailMessage) (internal.EmailRow, error) {
	hash := util.SHA256Hex(msg.Raw)
	rawPath, err := s.writeRaw(hash, msg.Raw)
	if err != nil {
		return internal.EmailRow{}, fmt.Errorf("store raw message %s: %w", msg.MessageID, err)
	}
	return s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, statusFetched)
}

// writeRaw is idempotent; identical bytes land on the same path.
func (s *MailStoreService) writeRaw(hash string, raw []byte) (string, error) {
	dir := filepath.Join(s.rawMailDir, hash[:2])
	path := filepath.Join(dir, hash+".eml")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(dir, hash+".*.tmp")
	if err != nil {
		return "", err
	}
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return "", err
	}
	return path, os.Rename(tmp.Name(), path)
}
