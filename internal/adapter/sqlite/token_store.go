// Package sqlite persists the client's bearer token in a local SQLite file
// through gorm, so a login survives restarts of the screen server.
package sqlite

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ishworii/jobboard/internal/domain"
)

// storageEntry is one row of the client_storage name/value table.
type storageEntry struct {
	Name  string `gorm:"primaryKey;size:64"`
	Value string
}

func (storageEntry) TableName() string { return "client_storage" }

// TokenStore keeps the bearer token in the client_storage row keyed "token".
type TokenStore struct {
	db *gorm.DB
}

var _ domain.TokenStore = (*TokenStore)(nil)

// Open opens (or creates) the SQLite database at path.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return db, nil
}

// NewTokenStore creates the client_storage table if it does not exist.
func NewTokenStore(db *gorm.DB) (*TokenStore, error) {
	if err := db.AutoMigrate(&storageEntry{}); err != nil {
		return nil, fmt.Errorf("migrate client_storage: %w", err)
	}
	return &TokenStore{db: db}, nil
}

func (s *TokenStore) Load(ctx context.Context) (string, error) {
	var entry storageEntry
	err := s.db.WithContext(ctx).Where(&storageEntry{Name: domain.TokenKey}).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && entry.Value == "") {
		return "", domain.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load token: %w", err)
	}
	return entry.Value, nil
}

func (s *TokenStore) Save(ctx context.Context, token string) error {
	var entry storageEntry
	err := s.db.WithContext(ctx).
		Where(storageEntry{Name: domain.TokenKey}).
		Assign(storageEntry{Value: token}).
		FirstOrCreate(&entry).Error
	if err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Where(&storageEntry{Name: domain.TokenKey}).Delete(&storageEntry{}).Error; err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *TokenStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql handle: %w", err)
	}
	return sqlDB.Close()
}

// Ping verifies the database is reachable.
func (s *TokenStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get sql handle: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
