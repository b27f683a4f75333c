package store

import (
	"fmt"
	"strings"

	config "github.com/mwantia/viewsync/internal/config/server"
)

// Open builds the Storage backend selected by cfg. The caller still has to
// Connect and Migrate it.
func Open(cfg config.StorageServerConfig) (Storage, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite":
		return NewSQLiteStore(SQLiteConfig{
			Path:         cfg.SQLite.Path,
			PollInterval: cfg.PollDuration(),
		})
	case "file":
		return NewFileStore(cfg.File.Dir)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage type '%s'", cfg.Type)
	}
}
