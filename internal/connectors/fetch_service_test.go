package connectors

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nakasem/internal"
	"nakasem/internal/storage"
)

type stubConnector struct {
	messages []internal.FetchedMailMessage
	err      error
}

func (s stubConnector) FetchInbox(context.Context, string, int) ([]internal.FetchedMailMessage, error) {
	return s.messages, s.err
}

func TestFetchAndStore(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.Open(filepath.Join(dir, "app.db"))
	require.NoError(t, err)
	defer db.Close()

	msg := internal.FetchedMailMessage{
		Provider:   ProviderIMAP,
		MessageID:  "<m1@example.com>",
		Subject:    "תעודת משלוח",
		From:       "warehouse@example.com",
		ReceivedAt: "2026-10-16T08:00:00Z",
		Raw:        []byte("Subject: x\r\n\r\nbody"),
	}
	svc := NewFetchService(db, filepath.Join(dir, "raw"), stubConnector{messages: []internal.FetchedMailMessage{msg}}, nil)

	res, err := svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 1, Stored: 1}, res)

	row, err := db.MustEmailByProviderMessageID(ProviderIMAP, "<m1@example.com>")
	require.NoError(t, err)
	assert.Equal(t, "fetched", row.Status)
	blob, err := os.ReadFile(row.RawRef)
	require.NoError(t, err)
	assert.Equal(t, msg.Raw, blob)

	res, err = svc.FetchAndStore(context.Background(), "INBOX", 10)
	require.NoError(t, err)
	assert.Equal(t, FetchResult{Fetched: 1, Known: 1}, res)
}

func TestFetchAndStoreConnectorError(t *testing.T) {
	db, err := storage.Open(filepath.Join(t.TempDir(), "app.db"))
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("auth failed")
	_, err = NewFetchService(db, t.TempDir(), stubConnector{err: boom}, nil).FetchAndStore(context.Background(), "INBOX", 1)
	assert.ErrorIs(t, err, boom)
}

func TestNormalizeProvider(t *testing.T) {
	p, err := NormalizeProvider(" IMAP ")
	require.NoError(t, err)
	assert.Equal(t, ProviderIMAP, p)

	_, err = NormalizeProvider("pop3")
	assert.Error(t, err)
}
