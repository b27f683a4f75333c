package server

import "github.com/spf13/viper"

func GetServerDefault() BaseServerConfig {
	return BaseServerConfig{
		ShutdownTimeout: "10s",

		Log: LogServerConfig{
			Level:      "INFO",
			TimeFormat: "2006-01-02 15:04:05",
			File:       "",
			NoColor:    false,
			JSON:       false,
			NoTerminal: false,
			Rotation: LogRotationConfig{
				MaxSize:    128,
				MaxBackups: 5,
				MaxAge:     16,
				Compress:   false,
			},
		},

		Storage: StorageServerConfig{
			Type:         "sqlite",
			PollInterval: "1s",
			SQLite: StorageSQLiteConfig{
				Path: "./viewsync.db",
			},
			File: StorageFileConfig{
				Dir: "./views",
			},
		},

		Views: ViewsServerConfig{
			MaxViews:  50,
			KeyPrefix: "saved_views_",
			Tables:    []string{},
		},

		Toast: ToastServerConfig{
			Duration: "5s",
			Max:      5,
		},

		Permissions: PermissionsServerConfig{
			Role: "admin",
		},
	}
}

func setDefaults() {
	defaults := GetServerDefault()

	viper.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)

	viper.SetDefault("log.level", defaults.Log.Level)
	viper.SetDefault("log.time_format", defaults.Log.TimeFormat)
	viper.SetDefault("log.file", defaults.Log.File)
	viper.SetDefault("log.no_color", defaults.Log.NoColor)
	viper.SetDefault("log.json", defaults.Log.JSON)
	viper.SetDefault("log.no_terminal", defaults.Log.NoTerminal)
	viper.SetDefault("log.rotation.max_size", defaults.Log.Rotation.MaxSize)
	viper.SetDefault("log.rotation.max_backups", defaults.Log.Rotation.MaxBackups)
	viper.SetDefault("log.rotation.max_age", defaults.Log.Rotation.MaxAge)
	viper.SetDefault("log.rotation.compress", defaults.Log.Rotation.Compress)

	viper.SetDefault("storage.type", defaults.Storage.Type)
	viper.SetDefault("storage.poll_interval", defaults.Storage.PollInterval)
	viper.SetDefault("storage.sqlite.path", defaults.Storage.SQLite.Path)
	viper.SetDefault("storage.file.dir", defaults.Storage.File.Dir)

	viper.SetDefault("views.max_views", defaults.Views.MaxViews)
	viper.SetDefault("views.key_prefix", defaults.Views.KeyPrefix)
	viper.SetDefault("views.tables", defaults.Views.Tables)

	viper.SetDefault("toast.duration", defaults.Toast.Duration)
	viper.SetDefault("toast.max", defaults.Toast.Max)

	viper.SetDefault("permissions.role", defaults.Permissions.Role)
}
