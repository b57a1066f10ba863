package catalog

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"nakasem/internal/logging"
	"nakasem/internal/storage"
)

type ImportOptions struct {
	// Replace clears the stored directories before importing.
	Replace bool
}

type ImportStats struct {
	Clients      int
	Products     int
	Prices       int
	// OrphanPrices counts stored overrides whose client or product is unknown.
	OrphanPrices int
}

// ImportService writes parsed catalogs into storage.
type ImportService struct {
	db  *storage.DB
	log *zap.Logger
}

func NewImportService(db *storage.DB, log *zap.Logger) *ImportService {
	return &ImportService{db: db, log: logging.OrNop(log)}
}

func (s *ImportService) ImportFile(path string, opts ImportOptions) (ImportStats, error) {
	c, err := ParseFile(path)
	if err != nil {
		return ImportStats{}, err
	}
	stats, err := s.Import(c, opts)
	if err != nil {
		return ImportStats{}, err
	}
	_ = s.db.SetMetadata("catalog.last_import_source", path)
	return stats, nil
}

func (s *ImportService) Import(c Catalog, opts ImportOptions) (ImportStats, error) {
	if err := c.Validate(); err != nil {
		return ImportStats{}, err
	}

	if opts.Replace {
		if err := s.db.ClearCatalog(); err != nil {
			return ImportStats{}, fmt.Errorf("clear catalog: %w", err)
		}
	}
	if err := s.db.UpsertClients(c.Clients); err != nil {
		return ImportStats{}, fmt.Errorf("upsert clients: %w", err)
	}
	if err := s.db.UpsertProducts(c.Products); err != nil {
		return ImportStats{}, fmt.Errorf("upsert products: %w", err)
	}
	if err := s.db.UpsertPrices(c.Prices); err != nil {
		return ImportStats{}, fmt.Errorf("upsert prices: %w", err)
	}
	_ = s.db.SetMetadata("catalog.last_import", time.Now().UTC().Format(time.RFC3339))

	stored, err := Load(s.db, "")
	if err != nil {
		return ImportStats{}, err
	}
	orphans := stored.OrphanPrices()
	for _, ref := range orphans {
		s.log.Warn("price override without catalog entry", zap.String("client", ref.ClientKey), zap.String("code", ref.Code))
	}

	stats := ImportStats{Clients: len(c.Clients), Products: len(c.Products), OrphanPrices: len(orphans)}
	for _, byCode := range c.Prices {
		stats.Prices += len(byCode)
	}
	s.log.Info("catalog imported",
		zap.Int("clients", stats.Clients),
		zap.Int("products", stats.Products),
		zap.Int("prices", stats.Prices),
		zap.Bool("replace", opts.Replace),
	)
	return stats, nil
}
