package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ConfigEnv names the config file when --config is not given.
const ConfigEnv = "VIEWSYNC_CONFIG"

// configDirs are searched in order for config.yaml.
var configDirs = []string{".", "./config", "/etc/viewsync", "$HOME/.viewsync"}

var envFiles = []string{".env", ".env.local"}

func initConfig(path string) error {
	loadEnvFiles(".")

	if path == "" {
		path = os.Getenv(ConfigEnv)
	}

	if path != "" {
		viper.SetConfigFile(path)
		loadEnvFiles(filepath.Dir(path))
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		for _, dir := range configDirs {
			viper.AddConfigPath(dir)
			loadEnvFiles(os.ExpandEnv(dir))
		}
	}

	// storage.sqlite.path is read from VIEWSYNC_STORAGE_SQLITE_PATH
	viper.SetEnvPrefix("VIEWSYNC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

// loadEnvFiles loads the .env files found in dir. Missing files are skipped
// and variables that are already set are not overridden.
func loadEnvFiles(dir string) {
	for _, name := range envFiles {
		_ = godotenv.Load(filepath.Join(dir, name))
	}
}
