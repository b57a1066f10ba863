package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nakasem/internal"
	"nakasem/internal/catalog"
	"nakasem/internal/config"
	"nakasem/internal/logging"
	"nakasem/internal/storage"
)

const (
	EmailFetched   = "fetched"
	EmailProcessed = "processed"
	EmailSkipped   = "skipped"
	EmailEmpty     = "empty"
	EmailFailed    = "failed"
	EmailExported  = "exported"
)

// ProcessingService is the host around the extraction engine: it loads the
// catalog, feeds documents through the Assembler and stores the notes.
type ProcessingService struct {
	db         *storage.DB
	cfg        config.Config
	recognizer Recognizer
	rasterizer Rasterizer
	log        *zap.Logger
	now        func() time.Time
}

func NewProcessingService(db *storage.DB, cfg config.Config, recognizer Recognizer, rasterizer Rasterizer, log *zap.Logger) *ProcessingService {
	return &ProcessingService{
		db:         db,
		cfg:        cfg,
		recognizer: recognizer,
		rasterizer: rasterizer,
		log:        logging.OrNop(log),
		now:        time.Now,
	}
}

type FileResult struct {
	Result
	Saved []internal.DeliveryNote
}

// ExtractFile reads a document from disk, extracts its notes and stores them
// as pending, or accepted when accept is set.
func (s *ProcessingService) ExtractFile(ctx context.Context, path string, accept bool, progress ProgressFunc) (FileResult, error) {
	start := time.Now()
	source := filepath.Base(path)

	pages, err := LoadPages(ctx, path, s.rasterizer)
	if err != nil {
		return FileResult{}, err
	}
	loadMs := msSince(start)

	asm, err := s.assembler(progress)
	if err != nil {
		return FileResult{}, err
	}
	res, err := asm.ExtractPages(ctx, source, pages)
	counts := map[string]int{"pages": len(pages), "notes": len(res.Notes), "skippedCodes": len(res.Skipped), "failedPages": len(res.FailedPages)}
	if err != nil {
		s.recordRun("file:"+source, nil, map[string]float64{"loadMs": loadMs, "totalMs": msSince(start)}, counts)
		return FileResult{Result: res}, err
	}

	status := internal.NotePending
	if accept {
		status = internal.NoteAccepted
	}
	saved, err := s.SaveNotes(res.Notes, status, nil)
	if err != nil {
		return FileResult{Result: res}, err
	}

	s.recordRun("file:"+source, nil, map[string]float64{"loadMs": loadMs, "totalMs": msSince(start)}, counts)
	s.log.Info("document extracted",
		zap.String("source", source),
		zap.Int("pages", len(pages)),
		zap.Int("notes", len(saved)),
		zap.String("status", string(status)),
	)
	return FileResult{Result: res, Saved: saved}, nil
}

// SaveNotes assigns ids and creation times and appends the notes to storage.
func (s *ProcessingService) SaveNotes(notes []internal.DeliveryNote, status internal.NoteStatus, emailID *int) ([]internal.DeliveryNote, error) {
	saved := make([]internal.DeliveryNote, 0, len(notes))
	for _, note := range notes {
		note.ID = uuid.NewString()
		note.CreatedAt = s.now().UTC().Format(time.RFC3339)
		note.Status = status
		note.RecomputeTotals()
		if err := s.db.InsertNote(note, emailID); err != nil {
			return saved, fmt.Errorf("save note: %w", err)
		}
		saved = append(saved, note)
	}
	return saved, nil
}

func (s *ProcessingService) Accept(ids ...string) error {
	for _, id := range ids {
		if err := s.db.AcceptNote(id); err != nil {
			return err
		}
	}
	return nil
}

func (s *ProcessingService) AcceptAllPending() (int, error) {
	pending, err := s.db.ListNotes(storage.NoteFilter{Status: internal.NotePending})
	if err != nil {
		return 0, err
	}
	for _, note := range pending {
		if err := s.db.AcceptNote(note.ID); err != nil {
			return 0, err
		}
	}
	return len(pending), nil
}

type ProcessResult struct {
	EmailID int
	Status  string
	Notes   int
}

func (s *ProcessingService) ProcessByProviderMessageID(ctx context.Context, provider, messageID string) (ProcessResult, error) {
	email, err := s.db.MustEmailByProviderMessageID(provider, messageID)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessEmail(ctx, email)
}

func (s *ProcessingService) ProcessPending(ctx context.Context, limit int, provider string) (int, int, error) {
	pending, err := s.db.ListEmailsByStatus(EmailFetched, limit)
	if err != nil {
		return 0, 0, err
	}
	processedEmails := 0
	notes := 0
	for _, email := range pending {
		if provider != "" && email.Provider != provider {
			continue
		}
		res, err := s.ProcessEmail(ctx, email)
		if err != nil {
			return processedEmails, notes, err
		}
		processedEmails++
		notes += res.Notes
	}
	return processedEmails, notes, nil
}

func (s *ProcessingService) ProcessEmail(ctx context.Context, email internal.EmailRow) (ProcessResult, error) {
	start := time.Now()
	raw, err := os.ReadFile(email.RawRef)
	if err != nil {
		return ProcessResult{}, err
	}

	mail, err := ParseMail(ctx, raw, s.rasterizer, s.log)
	if err != nil {
		return ProcessResult{}, err
	}

	detect := DetectDeliveryNote(firstNonEmpty(mail.Subject, email.Subject), mail.Text, mail.HTML, mail.AttachmentNames, s.cfg.DetectNoteThreshold)
	if err := s.db.ClearEmailProcessing(email.ID); err != nil {
		return ProcessResult{}, err
	}

	source := "email:" + email.Provider
	if !detect.IsDeliveryNote {
		if err := s.db.UpdateEmailStatus(email.ID, EmailSkipped); err != nil {
			return ProcessResult{}, err
		}
		s.recordRun(source, &email.ID, map[string]float64{"totalMs": msSince(start)}, map[string]int{"documents": len(mail.Documents), "notes": 0})
		s.log.Info("email skipped", zap.Int("emailId", email.ID), zap.Float64("score", detect.Score))
		return ProcessResult{EmailID: email.ID, Status: EmailSkipped}, nil
	}

	asm, err := s.assembler(nil)
	if err != nil {
		return ProcessResult{}, err
	}

	var notes []internal.DeliveryNote
	for _, doc := range mail.Documents {
		res, err := asm.ExtractPages(ctx, doc.Name, doc.Pages)
		if errors.Is(err, ErrNothingRecognized) {
			continue
		}
		if err != nil {
			if statusErr := s.db.UpdateEmailStatus(email.ID, EmailFailed); statusErr != nil {
				s.log.Warn("email status not updated", zap.Int("emailId", email.ID), zap.Error(statusErr))
			}
			s.recordRun(source, &email.ID, map[string]float64{"totalMs": msSince(start)}, map[string]int{"documents": len(mail.Documents), "notes": 0})
			return ProcessResult{EmailID: email.ID, Status: EmailFailed}, fmt.Errorf("%s: %w", doc.Name, err)
		}
		notes = append(notes, res.Notes...)
	}

	status := internal.NotePending
	if s.cfg.AutoAcceptSingleMailDoc && len(notes) == 1 {
		status = internal.NoteAccepted
	}
	saved, err := s.SaveNotes(notes, status, &email.ID)
	if err != nil {
		return ProcessResult{}, err
	}

	emailStatus := EmailProcessed
	if len(saved) == 0 {
		emailStatus = EmailEmpty
	}
	if err := s.db.UpdateEmailStatus(email.ID, emailStatus); err != nil {
		return ProcessResult{}, err
	}
	s.recordRun(source, &email.ID, map[string]float64{"totalMs": msSince(start)}, map[string]int{"documents": len(mail.Documents), "notes": len(saved)})
	s.log.Info("email processed",
		zap.Int("emailId", email.ID),
		zap.Int("documents", len(mail.Documents)),
		zap.Int("notes", len(saved)),
		zap.String("noteStatus", string(status)),
	)

	return ProcessResult{EmailID: email.ID, Status: emailStatus, Notes: len(saved)}, nil
}

func (s *ProcessingService) assembler(progress ProgressFunc) (*Assembler, error) {
	cat, err := catalog.Load(s.db, s.cfg.OwnTaxID)
	if err != nil {
		return nil, err
	}
	return NewAssembler(cat, s.recognizer, Options{
		SplitBlocks:         s.cfg.SplitBlocks,
		ContinueOnPageError: s.cfg.ContinueOnPageError,
		Progress:            progress,
	}, s.log), nil
}

func (s *ProcessingService) recordRun(source string, emailID *int, timings map[string]float64, counts map[string]int) {
	if err := s.db.InsertRun(storage.Run{TraceID: uuid.NewString(), Source: source, EmailID: emailID, Timings: timings, Counts: counts}); err != nil {
		s.log.Warn("run not recorded", zap.Error(err))
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Milliseconds())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
