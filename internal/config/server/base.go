package server

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type BaseServerConfig struct {
	ShutdownTimeout string `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`

	Log         LogServerConfig         `mapstructure:"log"         yaml:"log"`
	Storage     StorageServerConfig     `mapstructure:"storage"     yaml:"storage"`
	Views       ViewsServerConfig       `mapstructure:"views"       yaml:"views"`
	Toast       ToastServerConfig       `mapstructure:"toast"       yaml:"toast"`
	Permissions PermissionsServerConfig `mapstructure:"permissions" yaml:"permissions"`
}

func LoadServerConfig() (*BaseServerConfig, error) {
	cfg := &BaseServerConfig{}

	setDefaults()

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Log.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ShutdownDuration parses ShutdownTimeout, falling back to 60 seconds.
func (cfg *BaseServerConfig) ShutdownDuration() time.Duration {
	timeout, err := time.ParseDuration(cfg.ShutdownTimeout)
	if err != nil || timeout <= 0 {
		return 60 * time.Second
	}
	return timeout
}
