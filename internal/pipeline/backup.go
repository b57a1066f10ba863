package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"nakasem/internal"
	"nakasem/internal/backup"
	"nakasem/internal/catalog"
	"nakasem/internal/storage"
)

const (
	metaClientNotes = "backup.client_notes"
	metaClientTags  = "backup.client_tags"
)

type BackupStats struct {
	catalog.ImportStats
	Notes      int
	KnownNotes int
}

// ExportBackup writes every stored note and the full catalog as one snapshot.
func (s *ProcessingService) ExportBackup(w io.Writer) error {
	notes, err := s.db.ListNotes(storage.NoteFilter{})
	if err != nil {
		return err
	}
	cat, err := catalog.Load(s.db, s.cfg.OwnTaxID)
	if err != nil {
		return err
	}

	snap := backup.Snapshot{
		Notes:      notes,
		Clients:    cat.Clients,
		Products:   cat.Products,
		Prices:     cat.Prices,
		ExportDate: s.now().UTC().Format(time.RFC3339),
		Version:    backup.Version,
	}
	if v, err := s.db.GetMetadata(metaClientNotes); err == nil && v != nil {
		snap.ClientNotes = []byte(*v)
	}
	if v, err := s.db.GetMetadata(metaClientTags); err == nil && v != nil {
		snap.ClientTags = []byte(*v)
	}
	return backup.Encode(w, snap)
}

// ImportBackup merges a snapshot into storage. Notes already present by id
// are left untouched; notes without an id get a fresh one. Imported notes
// without a status count as accepted.
func (s *ProcessingService) ImportBackup(r io.Reader, opts catalog.ImportOptions) (BackupStats, error) {
	snap, err := backup.Decode(r)
	if err != nil {
		return BackupStats{}, err
	}

	var stats BackupStats
	stats.ImportStats, err = catalog.NewImportService(s.db, s.log).Import(catalog.Catalog{
		Clients:  snap.Clients,
		Products: snap.Products,
		Prices:   snap.Prices,
	}, opts)
	if err != nil {
		return stats, err
	}

	if len(snap.ClientNotes) > 0 {
		if err := s.db.SetMetadata(metaClientNotes, string(snap.ClientNotes)); err != nil {
			return stats, err
		}
	}
	if len(snap.ClientTags) > 0 {
		if err := s.db.SetMetadata(metaClientTags, string(snap.ClientTags)); err != nil {
			return stats, err
		}
	}

	for _, note := range snap.Notes {
		if note.ID == "" {
			note.ID = uuid.NewString()
		} else if existing, err := s.db.GetNote(note.ID); err != nil {
			return stats, err
		} else if existing != nil {
			stats.KnownNotes++
			continue
		}
		if note.Status == "" {
			note.Status = internal.NoteAccepted
		}
		if note.CreatedAt == "" {
			note.CreatedAt = firstNonEmpty(snap.ExportDate, s.now().UTC().Format(time.RFC3339))
		}
		note.RecomputeTotals()
		if err := s.db.InsertNote(note, nil); err != nil {
			return stats, fmt.Errorf("import note %s: %w", note.ID, err)
		}
		stats.Notes++
	}

	s.log.Info("backup imported",
		zap.String("version", snap.Version),
		zap.Int("clients", stats.Clients),
		zap.Int("products", stats.Products),
		zap.Int("notes", stats.Notes),
		zap.Int("knownNotes", stats.KnownNotes),
	)
	return stats, nil
}
