package store

import (
	"context"
	"log/slog"

	"github.com/oakmere/wallcal/pkg/models"
)

type Config struct {
	Logger    *slog.Logger
	Directory string
	AppCtx    context.Context
}

// Store owns the on-disk representation of calendar documents and the
// configuration record. One durable record per year plus one for
// configuration; no cross-year transactions.
type Store interface {
	// Read returns the persisted document for year. A record that cannot be
	// decoded is logged and reported as *ErrNotFound — reads fail soft.
	// Legacy day-entry shapes are normalized before the document is
	// returned.
	Read(year int) (*models.CalendarDocument, error)

	// Write validates the document shape, then replaces the prior record
	// wholesale. Concurrent writes for the same year are serialized; the
	// last one to commit wins. No partial write is ever observable.
	Write(year int, doc *models.CalendarDocument) error

	ReadConfig() (*models.Configuration, error)
	WriteConfig(cfg *models.Configuration) error

	Close() error
}
