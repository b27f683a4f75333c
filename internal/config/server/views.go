package server

import "time"

type ViewsServerConfig struct {
	MaxViews  int      `mapstructure:"max_views"  yaml:"max_views"`
	KeyPrefix string   `mapstructure:"key_prefix" yaml:"key_prefix"`
	Tables    []string `mapstructure:"tables"     yaml:"tables"`
	// Schema maps a table id to its field kinds (string, number, bool, array, struct, date).
	Schema map[string]map[string]string `mapstructure:"schema" yaml:"schema,omitempty"`
}

type ToastServerConfig struct {
	Duration string `mapstructure:"duration" yaml:"duration"`
	Max      int    `mapstructure:"max"      yaml:"max"`
}

func (cfg ToastServerConfig) DurationValue() time.Duration {
	d, err := time.ParseDuration(cfg.Duration)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

type PermissionsServerConfig struct {
	Role string `mapstructure:"role" yaml:"role"`
}
