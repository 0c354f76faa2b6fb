package config

import (
	"bytes"
	"encoding/json"
)

type Config struct {
	Telegram   TelegramConfig   `json:"telegram"`
	Logging    LoggingConfig    `json:"logging"`
	Dispatcher DispatcherConfig `json:"dispatcher"`

	// Audit is optional; omitted means no callback audit trail.
	Audit *AuditConfig `json:"audit,omitempty"`

	Debug DebugConfig `json:"debug"`

	Plugins map[string]PluginConfigRaw `json:"plugins"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// CallbackSecret keys the callback data signatures. If empty the key is
	// derived from Token, so rotating the token invalidates old buttons.
	CallbackSecret string `json:"callback_secret,omitempty"`

	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// DispatcherConfig sizes the update worker pool.
//
// Defaults: workers = NumCPU (min 2), queue_size = 256, hook_timeout = "30s".
type DispatcherConfig struct {
	Workers     int    `json:"workers,omitempty"`
	QueueSize   int    `json:"queue_size,omitempty"`
	HookTimeout string `json:"hook_timeout,omitempty"`
}

// AuditConfig controls the callback audit trail.
//
// Example:
//
//	"audit": { "driver": "sqlite", "path": "./data/audit.db", "retention": "720h" }
type AuditConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`

	// Retention drops entries older than this duration. "0s" keeps everything.
	Retention string `json:"retention,omitempty"`
	// PruneSchedule is a cron spec for the retention job. Default "@hourly".
	PruneSchedule string `json:"prune_schedule,omitempty"`
}

// DebugConfig controls the operator HTTP server (pprof, /debug/callbacks).
// Off by default; binds 127.0.0.1:6060 when addr is empty.
type DebugConfig struct {
	Enabled       bool   `json:"enabled"`
	Addr          string `json:"addr,omitempty"`
	Token         string `json:"token,omitempty"`
	AllowInsecure bool   `json:"allow_insecure,omitempty"`
}

type PluginConfigRaw struct {
	Enabled bool            `json:"enabled"`
	Config  json.RawMessage `json:"config,omitempty"`
}

// UnmarshalJSON rejects unknown keys so typos surface on reload.
func (p *PluginConfigRaw) UnmarshalJSON(b []byte) error {
	type tmp struct {
		Enabled bool            `json:"enabled"`
		Config  json.RawMessage `json:"config,omitempty"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var t tmp
	if err := dec.Decode(&t); err != nil {
		return err
	}
	*p = PluginConfigRaw{Enabled: t.Enabled, Config: t.Config}
	return nil
}

// PluginEnabled reports whether plugin name is enabled. Plugins missing from
// the config are enabled with an empty config.
func (c *Config) PluginEnabled(name string) bool {
	if c == nil || c.Plugins == nil {
		return true
	}
	p, ok := c.Plugins[name]
	return !ok || p.Enabled
}

// PluginConfig returns the raw config block of plugin name.
func (c *Config) PluginConfig(name string) json.RawMessage {
	if c == nil || c.Plugins == nil {
		return nil
	}
	return c.Plugins[name].Config
}
