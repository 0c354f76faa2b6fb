package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// envOverrides are applied on top of the file config on every parse, so
// secrets can stay out of the config file.
type envOverrides struct {
	Token          string `env:"TELEGRAM_BOT_TOKEN"`
	CallbackSecret string `env:"CALLBACK_SECRET"`
	LogLevel       string `env:"LOG_LEVEL"`
	AuditPath      string `env:"AUDIT_PATH"`
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the process environment. Missing files are ignored; existing
// variables are never overwritten.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return err
	}
	if v := strings.TrimSpace(o.Token); v != "" {
		cfg.Telegram.Token = v
	}
	if v := strings.TrimSpace(o.CallbackSecret); v != "" {
		cfg.Telegram.CallbackSecret = v
	}
	if v := strings.TrimSpace(o.LogLevel); v != "" {
		cfg.Logging.Level = v
	}
	if v := strings.TrimSpace(o.AuditPath); v != "" && cfg.Audit != nil {
		cfg.Audit.Path = v
	}
	return nil
}
