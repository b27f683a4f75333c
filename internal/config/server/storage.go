package server

import (
	"fmt"
	"strings"
	"time"
)

// StorageTypes lists the backends store.Open understands.
var StorageTypes = []string{"sqlite", "file", "memory"}

// StorageServerConfig selects the key/value backend that holds saved views.
type StorageServerConfig struct {
	Type         string              `mapstructure:"type"          yaml:"type"`
	PollInterval string              `mapstructure:"poll_interval" yaml:"poll_interval"`
	SQLite       StorageSQLiteConfig `mapstructure:"sqlite"        yaml:"sqlite"`
	File         StorageFileConfig   `mapstructure:"file"          yaml:"file"`
}

type StorageSQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type StorageFileConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

func (cfg StorageServerConfig) PollDuration() time.Duration {
	interval, err := time.ParseDuration(cfg.PollInterval)
	if err != nil || interval <= 0 {
		return time.Second
	}
	return interval
}

func (cfg StorageServerConfig) Validate() error {
	switch strings.ToLower(cfg.Type) {
	case "", "sqlite":
		if cfg.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required for sqlite storage")
		}
	case "file":
		if cfg.File.Dir == "" {
			return fmt.Errorf("storage.file.dir is required for file storage")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown storage type '%s', expected one of %s", cfg.Type, strings.Join(StorageTypes, ", "))
	}
	return nil
}
