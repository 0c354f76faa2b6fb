package app

import (
	"strings"
	"time"

	"signedkb/internal/config"
	"signedkb/internal/observability/debughttp"
	"signedkb/internal/storage"
	"signedkb/internal/transport/telegram/router"
	"signedkb/pkg/cbtoken"
	logx "signedkb/pkg/logx"
)

const defaultPruneSchedule = "@hourly"

func mapLogging(cfg *config.Config) logx.Config {
	l := cfg.Logging
	return logx.Config{
		Level:   l.Level,
		Console: l.Console,
		File:    logx.FileConfig{Enabled: l.File.Enabled, Path: l.File.Path},
		Telegram: logx.TelegramConfig{
			Enabled:    l.Telegram.Enabled,
			ChatID:     l.Telegram.ChatID,
			ThreadID:   l.Telegram.ThreadID,
			MinLevel:   l.Telegram.MinLevel,
			RatePerSec: l.Telegram.RatePerSec,
		},
	}
}

// callbackKey derives the signing key. Without an explicit secret the bot
// token is the key material.
func callbackKey(cfg *config.Config) cbtoken.Key {
	material := strings.TrimSpace(cfg.Telegram.CallbackSecret)
	if material == "" {
		material = strings.TrimSpace(cfg.Telegram.Token)
	}
	return cbtoken.NewKey(material)
}

func mapDispatcher(cfg *config.Config) (router.Options, error) {
	timeout, err := config.ParseDurationOrDefault("dispatcher.hook_timeout", cfg.Dispatcher.HookTimeout, 30*time.Second)
	if err != nil {
		return router.Options{}, err
	}
	return router.Options{
		Workers:     cfg.Dispatcher.Workers,
		QueueSize:   cfg.Dispatcher.QueueSize,
		HookTimeout: timeout,
	}, nil
}

// auditSettings is the mapped audit section. Enabled is false when the
// section is missing or the driver is none.
type auditSettings struct {
	Enabled   bool
	Storage   storage.Config
	Retention time.Duration
	Schedule  string
}

func mapAudit(cfg *config.Config) (auditSettings, error) {
	a := cfg.Audit
	if a == nil {
		return auditSettings{}, nil
	}
	driver := strings.ToLower(strings.TrimSpace(a.Driver))
	if driver == "" || driver == "none" {
		return auditSettings{}, nil
	}
	busy, err := config.ParseDurationOrDefault("audit.busy_timeout", a.BusyTimeout, time.Second)
	if err != nil {
		return auditSettings{}, err
	}
	retention, err := config.ParseDurationField("audit.retention", a.Retention)
	if err != nil {
		return auditSettings{}, err
	}
	schedule := strings.TrimSpace(a.PruneSchedule)
	if schedule == "" {
		schedule = defaultPruneSchedule
	}
	return auditSettings{
		Enabled:   true,
		Storage:   storage.Config{Driver: driver, Path: strings.TrimSpace(a.Path), BusyTimeout: busy},
		Retention: retention,
		Schedule:  schedule,
	}, nil
}

func mapDebug(cfg *config.Config) debughttp.Config {
	d := cfg.Debug
	return debughttp.Config{
		Enabled:       d.Enabled,
		Addr:          strings.TrimSpace(d.Addr),
		Token:         strings.TrimSpace(d.Token),
		AllowInsecure: d.AllowInsecure,
	}
}
