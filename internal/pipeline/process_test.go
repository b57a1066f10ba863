package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"nakasem/internal"
	"nakasem/internal/config"
	"nakasem/internal/storage"
)

func newTestService(t *testing.T, cfg config.Config) (*ProcessingService, *storage.DB) {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	c := testCatalog()
	require.NoError(t, db.UpsertClients(c.Clients))
	require.NoError(t, db.UpsertProducts(c.Products))
	require.NoError(t, db.UpsertPrices(c.Prices))

	if cfg.OwnTaxID == "" {
		cfg.OwnTaxID = ownTaxID
	}
	if cfg.DetectNoteThreshold == 0 {
		cfg.DetectNoteThreshold = 0.45
	}
	svc := NewProcessingService(db, cfg, nil, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC) }
	return svc, db
}

func TestExtractFileSavesPendingNotes(t *testing.T) {
	svc, db := newTestService(t, config.Config{SplitBlocks: true})

	path := filepath.Join(t.TempDir(), "batch.txt")
	body := "חשמל ישיר תל אביב\n12/000001\n01/06/2024\n5002116 10.00\n12/000002\nסניף חיפה\n5002116 2.00\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	var progress []int
	res, err := svc.ExtractFile(context.Background(), path, false, func(p int) { progress = append(progress, p) })
	require.NoError(t, err)
	require.Len(t, res.Saved, 2)
	assert.True(t, res.Multiple())
	assert.Equal(t, 100, progress[len(progress)-1])

	for _, note := range res.Saved {
		assert.NotEmpty(t, note.ID)
		assert.Equal(t, internal.NotePending, note.Status)
		assert.Equal(t, "2026-10-16T08:00:00Z", note.CreatedAt)
		assert.Equal(t, "batch.txt", note.SourceFile)
	}
	assert.Equal(t, 110.0, res.Saved[1].TotalRevenue)

	stored, err := db.ListNotes(storage.NoteFilter{Status: internal.NotePending})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, res.Saved[0].ID, stored[0].ID)
	assert.Equal(t, 620.0, stored[0].TotalRevenue)

	n, err := svc.AcceptAllPending()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	accepted, err := db.ListNotes(storage.NoteFilter{Status: internal.NoteAccepted})
	require.NoError(t, err)
	assert.Len(t, accepted, 2)

	runs, err := db.CountRuns()
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
}

func TestExtractFileAcceptAndNothingRecognized(t *testing.T) {
	svc, db := newTestService(t, config.Config{})

	dir := t.TempDir()
	good := filepath.Join(dir, "one.txt")
	require.NoError(t, os.WriteFile(good, []byte("אינסטלציה חיפה\n606850 3.00\n"), 0o644))
	res, err := svc.ExtractFile(context.Background(), good, true, nil)
	require.NoError(t, err)
	require.Len(t, res.Saved, 1)
	assert.Equal(t, internal.NoteAccepted, res.Saved[0].Status)
	require.NoError(t, svc.Accept(res.Saved[0].ID))

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, []byte("שלום\n"), 0o644))
	_, err = svc.ExtractFile(context.Background(), empty, false, nil)
	assert.ErrorIs(t, err, ErrNothingRecognized)

	all, err := db.ListNotes(storage.NoteFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestProcessEmailCreatesPendingNotes(t *testing.T) {
	svc, db := newTestService(t, config.Config{SplitBlocks: true})

	email, err := db.UpsertEmail("imap", "<note-1@example.com>", "", "warehouse@example.com", "2024-06-04T06:30:00Z", "hash",
		filepath.Join("testdata", "delivery_note.eml"), EmailFetched)
	require.NoError(t, err)

	emails, notes, err := svc.ProcessPending(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Equal(t, 1, emails)
	assert.Equal(t, 1, notes)

	stored, err := db.ListNotes(storage.NoteFilter{EmailID: &email.ID})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "note-12-000123.txt", stored[0].SourceFile)
	assert.Equal(t, internal.NotePending, stored[0].Status)
	assert.Equal(t, 620.0, stored[0].TotalRevenue)

	// Reprocessing replaces pending notes instead of duplicating them.
	res, err := svc.ProcessByProviderMessageID(context.Background(), "imap", "<note-1@example.com>")
	require.NoError(t, err)
	assert.Equal(t, EmailProcessed, res.Status)
	stored, err = db.ListNotes(storage.NoteFilter{EmailID: &email.ID})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestProcessEmailAutoAcceptsSingleNote(t *testing.T) {
	svc, db := newTestService(t, config.Config{AutoAcceptSingleMailDoc: true})

	_, err := db.UpsertEmail("imap", "<note-1@example.com>", "", "", "", "hash", filepath.Join("testdata", "delivery_note.eml"), EmailFetched)
	require.NoError(t, err)

	res, err := svc.ProcessByProviderMessageID(context.Background(), "imap", "<note-1@example.com>")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Notes)

	accepted, err := db.ListNotes(storage.NoteFilter{Status: internal.NoteAccepted})
	require.NoError(t, err)
	assert.Len(t, accepted, 1)
}

func TestProcessEmailSkipsUnrelatedMail(t *testing.T) {
	svc, db := newTestService(t, config.Config{})

	raw := "From: a@example.com\r\nSubject: newsletter\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nhello there\r\n"
	path := filepath.Join(t.TempDir(), "news.eml")
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	email, err := db.UpsertEmail("imap", "<news@example.com>", "newsletter", "a@example.com", "", "h", path, EmailFetched)
	require.NoError(t, err)

	res, err := svc.ProcessEmail(context.Background(), email)
	require.NoError(t, err)
	assert.Equal(t, EmailSkipped, res.Status)

	left, err := db.ListEmailsByStatus(EmailFetched, 10)
	require.NoError(t, err)
	assert.Empty(t, left)
}

const imageOnlyMail = "From: warehouse@example.com\r\n" +
	"Subject: Delivery note 12/000777\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/mixed; boundary=\"B\"\r\n\r\n" +
	"--B\r\nContent-Type: text/plain; charset=utf-8\r\n\r\nDelivery note attached.\r\n" +
	"--B\r\nContent-Type: image/png\r\nContent-Disposition: attachment; filename=\"scan.png\"\r\n" +
	"Content-Transfer-Encoding: base64\r\n\r\niVBORw0KGgo=\r\n--B--\r\n"

func writeImageOnlyMail(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scan.eml")
	require.NoError(t, os.WriteFile(path, []byte(imageOnlyMail), 0o644))
	return path
}

func TestProcessEmailMarksFailedOnPageError(t *testing.T) {
	svc, db := newTestService(t, config.Config{})

	email, err := db.UpsertEmail("imap", "<scan@example.com>", "", "", "", "h", writeImageOnlyMail(t), EmailFetched)
	require.NoError(t, err)

	res, err := svc.ProcessEmail(context.Background(), email)
	assert.ErrorIs(t, err, ErrNoRecognizer)
	var pageErr *PageError
	assert.True(t, errors.As(err, &pageErr))
	assert.Equal(t, EmailFailed, res.Status)

	stored, err := db.MustEmailByProviderMessageID("imap", "<scan@example.com>")
	require.NoError(t, err)
	assert.Equal(t, EmailFailed, stored.Status)
}

func TestProcessEmailLogsFailedStatusUpdate(t *testing.T) {
	svc, _ := newTestService(t, config.Config{})
	core, logs := observer.New(zap.WarnLevel)
	svc.log = zap.New(core)

	// The row was never stored, so the failed status cannot be written.
	email := internal.EmailRow{ID: 999, Provider: "imap", MessageID: "<gone@example.com>", RawRef: writeImageOnlyMail(t)}
	_, err := svc.ProcessEmail(context.Background(), email)
	assert.ErrorIs(t, err, ErrNoRecognizer)

	warned := logs.FilterMessage("email status not updated").All()
	require.Len(t, warned, 1)
	assert.Equal(t, int64(999), warned[0].ContextMap()["emailId"])
}
