package config

import (
	"encoding/json"
	"strings"

	logx "signedkb/pkg/logx"
)

// Change describes what a config reload touched.
type Change struct {
	Sections []string
	Fields   []logx.Field

	// RestartRequired is set when a field that cannot be hot-applied changed
	// (bot token, callback secret, dispatcher sizing, audit).
	RestartRequired bool
}

// SummarizeChange compares two configs. Fields never include secrets.
func SummarizeChange(oldCfg, newCfg *Config) Change {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}
	var c Change

	if oldCfg.Telegram.Token != newCfg.Telegram.Token ||
		oldCfg.Telegram.CallbackSecret != newCfg.Telegram.CallbackSecret ||
		strings.TrimSpace(oldCfg.Telegram.PollTimeout) != strings.TrimSpace(newCfg.Telegram.PollTimeout) {
		c.Sections = append(c.Sections, "telegram")
		c.RestartRequired = true
		c.Fields = append(c.Fields,
			logx.String("telegram.poll_timeout", strings.TrimSpace(newCfg.Telegram.PollTimeout)),
			logx.Bool("telegram.callback_secret_set", newCfg.Telegram.CallbackSecret != ""),
		)
	}

	if oldCfg.Logging != newCfg.Logging {
		c.Sections = append(c.Sections, "logging")
		c.Fields = append(c.Fields,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.file", newCfg.Logging.File.Enabled),
			logx.Bool("logging.telegram", newCfg.Logging.Telegram.Enabled),
		)
	}

	if oldCfg.Dispatcher != newCfg.Dispatcher {
		c.Sections = append(c.Sections, "dispatcher")
		c.RestartRequired = true
	}

	if auditKey(oldCfg.Audit) != auditKey(newCfg.Audit) {
		c.Sections = append(c.Sections, "audit")
		c.RestartRequired = true
	}

	// never log the token
	if oldCfg.Debug != newCfg.Debug {
		c.Sections = append(c.Sections, "debug")
		c.Fields = append(c.Fields,
			logx.Bool("debug.enabled", newCfg.Debug.Enabled),
			logx.String("debug.addr", strings.TrimSpace(newCfg.Debug.Addr)),
		)
	}

	if pluginsKey(oldCfg) != pluginsKey(newCfg) {
		c.Sections = append(c.Sections, "plugins")
	}
	return c
}

func auditKey(a *AuditConfig) AuditConfig {
	if a == nil {
		return AuditConfig{}
	}
	return *a
}

func pluginsKey(cfg *Config) string {
	// encoding/json sorts map keys, so equal maps marshal equally
	b, _ := json.Marshal(cfg.Plugins)
	return string(b)
}
