package pipeline

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nakasem/internal"
	"nakasem/internal/catalog"
	"nakasem/internal/config"
	"nakasem/internal/storage"
)

func TestBackupRoundTrip(t *testing.T) {
	src, srcDB := newTestService(t, config.Config{})
	path := filepath.Join(t.TempDir(), "one.txt")
	require.NoError(t, os.WriteFile(path, []byte("אינסטלציה חיפה\n606850 3.00\n"), 0o644))
	res, err := src.ExtractFile(context.Background(), path, true, nil)
	require.NoError(t, err)
	require.Len(t, res.Saved, 1)
	require.NoError(t, srcDB.SetMetadata(metaClientTags, `{"חיפה":["vip"]}`))

	var buf bytes.Buffer
	require.NoError(t, src.ExportBackup(&buf))
	assert.Contains(t, buf.String(), `"version": "2.0.0"`)

	db, err := storage.Open(filepath.Join(t.TempDir(), "restored.db"))
	require.NoError(t, err)
	defer db.Close()
	dst := NewProcessingService(db, config.Config{OwnTaxID: ownTaxID}, nil, nil, nil)

	stats, err := dst.ImportBackup(bytes.NewReader(buf.Bytes()), catalog.ImportOptions{Replace: true})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Notes)
	assert.Equal(t, len(testCatalog().Clients), stats.Clients)

	notes, err := db.ListNotes(storage.NoteFilter{Status: internal.NoteAccepted})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, res.Saved[0].ID, notes[0].ID)
	assert.Equal(t, res.Saved[0].TotalRevenue, notes[0].TotalRevenue)

	tags, err := db.GetMetadata(metaClientTags)
	require.NoError(t, err)
	require.NotNil(t, tags)
	assert.JSONEq(t, `{"חיפה":["vip"]}`, *tags)

	// A second import of the same snapshot adds nothing.
	stats, err = dst.ImportBackup(bytes.NewReader(buf.Bytes()), catalog.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Notes)
	assert.Equal(t, 1, stats.KnownNotes)
}

func TestImportBackupAssignsMissingIDs(t *testing.T) {
	svc, db := newTestService(t, config.Config{})
	snapshot := `{"deliveryNotes":[{"clientName":"לא זוהה","items":[]}],"clientsDB":{},"productsDB":{},"exportDate":"2024-06-10T10:00:00Z"}`

	stats, err := svc.ImportBackup(strings.NewReader(snapshot), catalog.ImportOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Notes)

	notes, err := db.ListNotes(storage.NoteFilter{})
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.NotEmpty(t, notes[0].ID)
	assert.Equal(t, internal.NoteAccepted, notes[0].Status)
	assert.Equal(t, "2024-06-10T10:00:00Z", notes[0].CreatedAt)
}
