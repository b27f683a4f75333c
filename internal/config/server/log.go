package server

import (
	"fmt"
	"slices"
	"strings"
)

var logLevels = []string{"TRACE", "DEBUG", "INFO", "WARN", "WARNING", "ERROR", "FATAL"}

// LogServerConfig controls the terminal output and the optional rotating
// log file shared by the agent and the client commands.
type LogServerConfig struct {
	Level      string            `mapstructure:"level"       yaml:"level"`
	TimeFormat string            `mapstructure:"time_format" yaml:"time_format"`
	File       string            `mapstructure:"file"        yaml:"file"`
	NoColor    bool              `mapstructure:"no_color"    yaml:"no_color"`
	JSON       bool              `mapstructure:"json"        yaml:"json"`
	NoTerminal bool              `mapstructure:"no_terminal" yaml:"no_terminal"`
	Rotation   LogRotationConfig `mapstructure:"rotation"    yaml:"rotation"`
}

// LogRotationConfig is only used when File is set. Sizes are in megabytes,
// MaxAge in days.
type LogRotationConfig struct {
	MaxSize    int  `mapstructure:"max_size"     yaml:"max_size"`
	MaxBackups int  `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAge     int  `mapstructure:"max_age"      yaml:"max_age"`
	Compress   bool `mapstructure:"compress"     yaml:"compress"`
}

func (cfg LogServerConfig) Validate() error {
	if cfg.Level != "" && !slices.Contains(logLevels, strings.ToUpper(strings.TrimSpace(cfg.Level))) {
		return fmt.Errorf("invalid log level '%s'", cfg.Level)
	}
	if cfg.File != "" && (cfg.Rotation.MaxSize < 0 || cfg.Rotation.MaxBackups < 0 || cfg.Rotation.MaxAge < 0) {
		return fmt.Errorf("log rotation limits must not be negative")
	}
	return nil
}
