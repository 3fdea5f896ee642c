// Package sqlite implements storage.KV in a local SQLite file. It is the
// default store of the command line client, which starts a new process for
// every command.
package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/go-faster/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/xenking/resto-client/internal/storage"
)

var _ storage.KV = (*Store)(nil)

// busy_timeout lets two commands run against the same file without failing
// on a locked database.
const pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

type entry struct {
	Namespace string `gorm:"primaryKey"`
	Key       string `gorm:"primaryKey;column:state_key"`
	Value     []byte `gorm:"not null"`
	UpdatedAt time.Time
}

func (entry) TableName() string { return "client_state" }

// Store keeps client state rows scoped by namespace.
type Store struct {
	db        *gorm.DB
	namespace string
}

// Open creates the parent directory of path if needed, opens the database
// and migrates the schema.
func Open(ctx context.Context, path, namespace string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, errors.Wrap(err, "create state directory")
	}

	db, err := gorm.Open(gormsqlite.Open(path+pragmas), &gorm.Config{
		Logger: logger.Discard,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open %q", path)
	}

	s := New(db, namespace)
	if err := db.WithContext(ctx).AutoMigrate(&entry{}); err != nil {
		_ = s.Close()
		return nil, errors.Wrap(err, "migrate state table")
	}
	return s, nil
}

// New wraps an open database. The client_state table must exist.
func New(db *gorm.DB, namespace string) *Store {
	return &Store{db: db, namespace: namespace}
}

func (s *Store) scope(ctx context.Context, key string) *gorm.DB {
	return s.db.WithContext(ctx).Where("namespace = ? AND state_key = ?", s.namespace, key)
}

// Get returns storage.ErrNotFound when no row exists for key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var e entry
	if err := s.scope(ctx, key).Take(&e).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, storage.ErrNotFound
		}
		return nil, errors.Wrapf(err, "select %q", key)
	}
	return e.Value, nil
}

// Set upserts the value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	e := entry{Namespace: s.namespace, Key: key, Value: value}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "namespace"}, {Name: "state_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&e).Error
	if err != nil {
		return errors.Wrapf(err, "upsert %q", key)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.scope(ctx, key).Delete(&entry{}).Error; err != nil {
		return errors.Wrapf(err, "delete %q", key)
	}
	return nil
}

// Ping checks the database file is usable.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the underlying database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
