package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"

	"github.com/oakmere/wallcal/pkg/models"
)

const (
	calendarKeyPrefix = "calendar:"
	configKey         = "config"
)

type docStore struct {
	logger *slog.Logger
	db     *badger.DB

	// Per-year write serialization. Badger transactions are already atomic;
	// the locks keep two admin saves for the same year from interleaving
	// validate/serialize/commit. Cross-session conflicts stay
	// last-write-wins.
	yearLocksMu sync.Mutex
	yearLocks   map[int]*sync.Mutex
}

var _ Store = &docStore{}

func New(config Config) (Store, error) {
	dir := filepath.Join(config.Directory, "documents")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, &ErrInternal{Err: err}
	}

	dbOpts := badger.DefaultOptions(dir).
		WithLogger(newBadgerLogger(config.Logger.WithGroup("badger"))).
		WithMemTableSize(16 << 20) // 16MB MemTableSize

	db, err := badger.Open(dbOpts)
	if err != nil {
		return nil, &ErrInternal{Err: err}
	}

	return &docStore{
		logger:    config.Logger.WithGroup("store"),
		db:        db,
		yearLocks: make(map[int]*sync.Mutex),
	}, nil
}

func (s *docStore) Close() error {
	if err := s.db.Close(); err != nil {
		s.logger.Error("error closing document db", "error", err)
		return &ErrInternal{Err: err}
	}
	return nil
}

func yearKey(year int) string {
	return fmt.Sprintf("%s%d", calendarKeyPrefix, year)
}

func (s *docStore) lockYear(year int) *sync.Mutex {
	s.yearLocksMu.Lock()
	defer s.yearLocksMu.Unlock()
	mu, ok := s.yearLocks[year]
	if !ok {
		mu = &sync.Mutex{}
		s.yearLocks[year] = mu
	}
	return mu
}

func (s *docStore) getRaw(key string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return &ErrNotFound{Key: key}
			}
			return &ErrInternal{Err: err}
		}
		value, err = item.ValueCopy(nil)
		if err != nil {
			return &ErrInternal{Err: err}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *docStore) setRaw(key string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(key), value); err != nil {
			return &ErrInternal{Err: err}
		}
		return nil
	})
}

func (s *docStore) Read(year int) (*models.CalendarDocument, error) {
	key := yearKey(year)
	raw, err := s.getRaw(key)
	if err != nil {
		return nil, err
	}

	var doc models.CalendarDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		// A record we cannot decode is served as absent rather than
		// crashing readers. The bytes stay on disk for operators.
		s.logger.Error("corrupt document record, treating as absent", "key", key, "error", err)
		return nil, &ErrNotFound{Key: key}
	}

	doc.NormalizeLegacy()
	return &doc, nil
}

func (s *docStore) Write(year int, doc *models.CalendarDocument) error {
	if err := models.ValidateDocument(doc); err != nil {
		return err
	}

	mu := s.lockYear(year)
	mu.Lock()
	defer mu.Unlock()

	raw, err := json.Marshal(doc)
	if err != nil {
		return &ErrInternal{Err: err}
	}

	if err := s.setRaw(yearKey(year), raw); err != nil {
		s.logger.Error("failed to persist document", "year", year, "error", err)
		return err
	}

	s.logger.Info("document persisted", "year", year, "days", len(doc.DayData), "key_items", len(doc.KeyItems))
	return nil
}

func (s *docStore) ReadConfig() (*models.Configuration, error) {
	raw, err := s.getRaw(configKey)
	if err != nil {
		return nil, err
	}

	var cfg models.Configuration
	if err := json.Unmarshal(raw, &cfg); err != nil {
		s.logger.Error("corrupt configuration record, treating as absent", "error", err)
		return nil, &ErrNotFound{Key: configKey}
	}
	return &cfg, nil
}

func (s *docStore) WriteConfig(cfg *models.Configuration) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return &ErrInternal{Err: err}
	}
	if err := s.setRaw(configKey, raw); err != nil {
		s.logger.Error("failed to persist configuration", "error", err)
		return err
	}
	s.logger.Info("configuration persisted")
	return nil
}
