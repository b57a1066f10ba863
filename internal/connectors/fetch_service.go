package connectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"nakasem/internal"
	"nakasem/internal/logging"
	"nakasem/internal/storage"
)

// FetchService pulls messages from a connector and keeps the raw bytes on
// disk, addressed by content hash, with one emails row per message.
type FetchService struct {
	db         *storage.DB
	connector  MailConnector
	rawMailDir string
	log        *zap.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
	// Known counts messages already stored with identical content.
	Known int
}

func NewFetchService(db *storage.DB, rawMailDir string, connector MailConnector, log *zap.Logger) *FetchService {
	return &FetchService{db: db, connector: connector, rawMailDir: rawMailDir, log: logging.OrNop(log)}
}

func (s *FetchService) FetchAndStore(ctx context.Context, label string, max int) (FetchResult, error) {
	messages, err := s.connector.FetchInbox(ctx, label, max)
	if err != nil {
		return FetchResult{}, err
	}

	res := FetchResult{Fetched: len(messages)}
	for _, msg := range messages {
		known, err := s.store(msg)
		if err != nil {
			return res, err
		}
		if known {
			res.Known++
			continue
		}
		res.Stored++
	}

	s.log.Info("mail fetched", zap.String("label", label), zap.Int("fetched", res.Fetched), zap.Int("stored", res.Stored), zap.Int("known", res.Known))
	return res, nil
}

func (s *FetchService) store(msg internal.FetchedMailMessage) (bool, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	existing, err := s.db.GetEmailByProviderMessageID(msg.Provider, msg.MessageID)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.Hash == hash {
		return true, nil
	}

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return false, err
	}
	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return false, err
		}
	}

	_, err = s.db.UpsertEmail(msg.Provider, msg.MessageID, msg.Subject, msg.From, msg.ReceivedAt, hash, rawPath, "fetched")
	return false, err
}
