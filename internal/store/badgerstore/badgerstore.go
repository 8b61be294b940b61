// Package badgerstore is a relation store on an embedded Badger key-value
// database. Records are JSON values under collection-prefixed keys, and
// mitigations are additionally indexed by their threat.
package badgerstore

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dgraph-io/badger/v4"

	"github.com/starford/threatmap/internal/store"
)

const (
	threatPrefix       = "threat/"
	mitigationPrefix   = "mitigation/"
	byThreatPrefix     = "mitigation-by-threat/"
	subdomainPrefix    = "subdomain/"
	iterationPrefix    = "iteration/"
	iterationSeqKey    = "meta/iteration-seq"
	iterationSeqLeases = 16
)

// Config controls how the database is opened.
type Config struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path     string
	InMemory bool
	Logger   *slog.Logger
}

// DB is a store.Store backed by Badger.
type DB struct {
	db  *badger.DB
	seq *badger.Sequence
}

var _ store.Store = (*DB)(nil)

// Open opens or creates the database described by cfg.
func Open(cfg Config) (*DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	seq, err := db.GetSequence([]byte(iterationSeqKey), iterationSeqLeases)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("badgerstore: iteration sequence: %w", err)
	}
	return &DB{db: db, seq: seq}, nil
}

// OpenInMemory opens a throwaway database.
func OpenInMemory() (*DB, error) {
	return Open(Config{InMemory: true})
}

// Close releases the sequence lease and closes the database.
func (d *DB) Close() error {
	if err := d.seq.Release(); err != nil {
		d.db.Close()
		return fmt.Errorf("badgerstore: release sequence: %w", err)
	}
	return d.db.Close()
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
