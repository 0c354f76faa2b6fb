package config

import (
	"errors"
	"fmt"
	"net"
	"strings"

	"signedkb/internal/task/scheduler"
)

// Validate checks fields that would otherwise fail late at runtime.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return errors.New("telegram.token is required (or set TELEGRAM_BOT_TOKEN)")
	}
	if _, err := ParseDurationField("telegram.poll_timeout", cfg.Telegram.PollTimeout); err != nil {
		return err
	}
	if cfg.Dispatcher.Workers < 0 || cfg.Dispatcher.QueueSize < 0 {
		return errors.New("dispatcher: workers and queue_size must be >= 0")
	}
	if _, err := ParseDurationField("dispatcher.hook_timeout", cfg.Dispatcher.HookTimeout); err != nil {
		return err
	}
	if a := cfg.Audit; a != nil {
		switch strings.ToLower(strings.TrimSpace(a.Driver)) {
		case "", "none", "sqlite", "sqlite3":
		default:
			return fmt.Errorf("audit.driver: unknown driver %q", a.Driver)
		}
		if _, err := ParseDurationField("audit.busy_timeout", a.BusyTimeout); err != nil {
			return err
		}
		if _, err := ParseDurationField("audit.retention", a.Retention); err != nil {
			return err
		}
		if spec := strings.TrimSpace(a.PruneSchedule); spec != "" {
			if err := scheduler.ValidateSpec(spec); err != nil {
				return fmt.Errorf("audit.prune_schedule: %w", err)
			}
		}
	}
	if d := cfg.Debug; d.Enabled && strings.TrimSpace(d.Addr) != "" {
		if _, _, err := net.SplitHostPort(strings.TrimSpace(d.Addr)); err != nil {
			return fmt.Errorf("debug.addr: %w", err)
		}
	}
	return nil
}
