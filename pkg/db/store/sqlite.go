package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mwantia/viewsync/pkg/db/migrations"
	"github.com/mwantia/viewsync/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteStore implements Storage using SQLite
type SQLiteStore struct {
	db           *gorm.DB
	path         string
	pollInterval time.Duration
}

// DB returns the underlying GORM database instance
func (s *SQLiteStore) DB() *gorm.DB {
	return s.db
}

// SQLiteConfig holds SQLite-specific configuration
type SQLiteConfig struct {
	Path         string
	PollInterval time.Duration
	LogLevel     logger.LogLevel
}

func NewSQLiteStore(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	// Default to silent logging
	if cfg.LogLevel == 0 {
		cfg.LogLevel = logger.Silent
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}

	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(cfg.LogLevel),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	return &SQLiteStore{
		db:           db,
		path:         cfg.Path,
		pollInterval: cfg.PollInterval,
	}, nil
}

func (s *SQLiteStore) Connect(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(1) // SQLite only supports 1 writer
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return sqlDB.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrations.NewMigrator(s.db).Migrate(ctx)
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Item operations

func (s *SQLiteStore) GetItem(ctx context.Context, key string) (string, error) {
	var entry models.Entry
	err := s.db.WithContext(ctx).Where("name = ?", key).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return entry.Value, nil
}

// SetItem upserts the entry, reviving it if it was previously removed.
func (s *SQLiteStore) SetItem(ctx context.Context, key, value string) error {
	entry := models.Entry{Name: key, Value: value}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]any{
				"value":      value,
				"updated_at": s.db.NowFunc(),
				"deleted_at": nil,
			}),
		}).
		Create(&entry).Error
}

func (s *SQLiteStore) RemoveItem(ctx context.Context, key string) error {
	return s.db.WithContext(ctx).Where("name = ?", key).Delete(&models.Entry{}).Error
}

func (s *SQLiteStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	if err := s.db.WithContext(ctx).Model(&models.Entry{}).Pluck("name", &names).Error; err != nil {
		return nil, err
	}

	// LIKE treats '_' as a wildcard, and key prefixes are full of them
	keys := names[:0]
	for _, name := range names {
		if strings.HasPrefix(name, prefix) {
			keys = append(keys, name)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Watch polls for rows changed or removed since the previous poll.
func (s *SQLiteStore) Watch(ctx context.Context) (<-chan Event, error) {
	events := make(chan Event)
	mark := s.db.NowFunc()

	go func() {
		defer close(events)

		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			var changed []models.Entry
			err := s.db.WithContext(ctx).Unscoped().
				Where("updated_at > ? OR deleted_at > ?", mark, mark).
				Order("updated_at").
				Find(&changed).Error
			if err != nil {
				continue
			}

			for _, entry := range changed {
				if entry.UpdatedAt.After(mark) {
					mark = entry.UpdatedAt
				}
				if entry.DeletedAt.Valid && entry.DeletedAt.Time.After(mark) {
					mark = entry.DeletedAt.Time
				}

				event := Event{Key: entry.Name, Removed: entry.DeletedAt.Valid}
				if !event.Removed {
					event.Value = entry.Value
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}
