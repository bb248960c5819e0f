package app

import (
	"os"
	"path/filepath"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	APIURL  string `env:"TRIPDESK_API_URL"`
	DataDir string `env:"TRIPDESK_DATA_DIR"`
	UserID  string `env:"TRIPDESK_USER_ID"`
	Logging struct {
		Level string `env:"TRIPDESK_LOG_LEVEL"`
	}
}

func DefaultConfig() Config {
	cfg := Config{}
	cfg.APIURL = "http://127.0.0.1:8000"
	cfg.DataDir = defaultDataDir()
	cfg.UserID = "default-user"
	cfg.Logging.Level = "info"
	return cfg
}

// LoadConfig returns the defaults with TRIPDESK_* environment overrides applied.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	if err := env.Parse(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".tripdesk"
	}
	return filepath.Join(home, ".tripdesk")
}
