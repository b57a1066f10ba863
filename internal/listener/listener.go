package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"nakasem/internal"
	"nakasem/internal/config"
	"nakasem/internal/connectors"
	gmailconnector "nakasem/internal/connectors/gmail"
	imapconnector "nakasem/internal/connectors/imap"
	"nakasem/internal/logging"
	"nakasem/internal/pipeline"
	"nakasem/internal/storage"
)

// ConnectorFactory builds a mailbox connector for a normalized provider name.
type ConnectorFactory func(ctx context.Context, provider string) (connectors.MailConnector, error)

// Service polls a mailbox, runs every new message through the processing
// service and optionally writes one workbook per processed email.
type Service struct {
	db        *storage.DB
	cfg       config.Config
	processor *pipeline.ProcessingService
	connect   ConnectorFactory
	log       *zap.Logger
}

func NewService(db *storage.DB, cfg config.Config, processor *pipeline.ProcessingService, log *zap.Logger) *Service {
	s := &Service{db: db, cfg: cfg, processor: processor, log: logging.OrNop(log)}
	s.connect = func(ctx context.Context, provider string) (connectors.MailConnector, error) {
		return NewConnector(ctx, s.cfg, provider, s.log)
	}
	return s
}

// WithConnectorFactory replaces the provider lookup; used by tests and by
// callers that already hold a connector.
func (s *Service) WithConnectorFactory(f ConnectorFactory) *Service {
	s.connect = f
	return s
}

type CycleResult struct {
	Provider  string
	Fetched   int
	Stored    int
	Processed int
	Notes     int
	Exported  int
}

func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.MailListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunCycle(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			s.log.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (s *Service) RunCycle(ctx context.Context) (CycleResult, error) {
	provider, err := connectors.NormalizeProvider(s.cfg.MailListenerProvider)
	if err != nil {
		return CycleResult{}, err
	}
	res := CycleResult{Provider: provider}

	mailConnector, err := s.connect(ctx, provider)
	if err != nil {
		return res, err
	}

	fetched, err := connectors.NewFetchService(s.db, s.cfg.RawMailDir, mailConnector, s.log).
		FetchAndStore(ctx, s.cfg.MailListenerLabel, s.cfg.MailListenerFetchMax)
	if err != nil {
		return res, err
	}
	res.Fetched, res.Stored = fetched.Fetched, fetched.Stored

	res.Processed, res.Notes, err = s.processor.ProcessPending(ctx, s.cfg.MailListenerProcessBatch, provider)
	if err != nil {
		return res, err
	}

	if s.cfg.MailListenerAutoExport {
		res.Exported, err = s.exportProcessed(provider)
		if err != nil {
			return res, err
		}
	}

	s.log.Info("listener cycle done",
		zap.String("provider", provider),
		zap.Int("fetched", res.Fetched),
		zap.Int("stored", res.Stored),
		zap.Int("processed", res.Processed),
		zap.Int("notes", res.Notes),
		zap.Int("exported", res.Exported),
	)
	return res, nil
}

func (s *Service) exportProcessed(provider string) (int, error) {
	emails, err := s.db.ListEmailsByStatus(pipeline.EmailProcessed, 200)
	if err != nil {
		return 0, err
	}

	exported := 0
	for _, email := range emails {
		if email.Provider != provider {
			continue
		}
		id := email.ID
		notes, err := s.db.ListNotes(storage.NoteFilter{EmailID: &id})
		if err != nil {
			return exported, err
		}
		if len(notes) == 0 {
			continue
		}
		outputPath := filepath.Join(s.cfg.OutputDir, "listener", exportFileName(email))
		if err := pipeline.ExportNotesToXLSX(notes, outputPath); err != nil {
			return exported, err
		}
		if err := s.db.UpdateEmailStatus(email.ID, pipeline.EmailExported); err != nil {
			return exported, err
		}
		exported++
	}
	return exported, nil
}

// NewConnector builds the mailbox connector for provider from cfg.
func NewConnector(ctx context.Context, cfg config.Config, provider string, log *zap.Logger) (connectors.MailConnector, error) {
	p, err := connectors.NormalizeProvider(provider)
	if err != nil {
		return nil, err
	}
	switch p {
	case connectors.ProviderGmail:
		return gmailconnector.NewConnector(ctx, cfg, log)
	default:
		return imapconnector.NewConnector(cfg, log)
	}
}

func exportFileName(email internal.EmailRow) string {
	return fmt.Sprintf("%d_%s.xlsx", email.ID, sanitizeMessageID(email.MessageID))
}

func sanitizeMessageID(input string) string {
	repl := strings.NewReplacer("<", "_", ">", "_", ":", "_", "/", "_", "\\", "_", "|", "_", "?", "_", "*", "_", " ", "_", "\"", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
