// Package plugin turns the registered components into the dispatcher's
// hook and command tables, following the plugins section of the config.
package plugin

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"

	"signedkb/internal/config"
	"signedkb/internal/transport/telegram/router"
	logx "signedkb/pkg/logx"
)

// Plugin is a component the manager can enable and disable by name.
type Plugin interface {
	router.Component
}

// Configurable plugins receive their raw config block before being enabled
// and again whenever it changes. A Configure error keeps the plugin disabled.
type Configurable interface {
	Configure(raw json.RawMessage) error
}

// Installer receives the active component list, in registration order.
// *router.Dispatcher satisfies it.
type Installer interface {
	SetComponents(ctx context.Context, comps []router.Component)
}

type Manager struct {
	mu    sync.Mutex
	log   logx.Logger
	inst  Installer
	order []string
	reg   map[string]Plugin

	active  map[string]bool
	cfgHash map[string]uint64
}

func NewManager(log logx.Logger, inst Installer) *Manager {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Manager{
		log:     log,
		inst:    inst,
		reg:     map[string]Plugin{},
		active:  map[string]bool{},
		cfgHash: map[string]uint64{},
	}
}

// Register adds plugins. Registration order is hook order.
func (m *Manager) Register(ps ...Plugin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range ps {
		if p == nil {
			continue
		}
		name := p.Name()
		if _, dup := m.reg[name]; !dup {
			m.order = append(m.order, name)
		}
		m.reg[name] = p
	}
}

// Active returns the names of enabled plugins, sorted.
func (m *Manager) Active() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.active))
	for n, on := range m.active {
		if on {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out
}

// Apply reconciles plugins with cfg and reinstalls the active set.
func (m *Manager) Apply(ctx context.Context, cfg *config.Config) {
	m.mu.Lock()
	var comps []router.Component
	for _, name := range m.order {
		p := m.reg[name]
		want := cfg.PluginEnabled(name)
		raw := cfg.PluginConfig(name)
		h := configHash(raw)

		if !want {
			if m.active[name] {
				m.log.Info("plugin disabled", logx.String("plugin", name))
			}
			m.active[name] = false
			continue
		}

		if c, ok := p.(Configurable); ok && (!m.active[name] || m.cfgHash[name] != h) {
			if err := m.safeCall(name, func() error { return c.Configure(raw) }); err != nil {
				m.log.Error("plugin config rejected", logx.String("plugin", name), logx.Err(err))
				m.active[name] = false
				continue
			}
		}
		if !m.active[name] {
			m.log.Info("plugin enabled", logx.String("plugin", name))
		}
		m.active[name] = true
		m.cfgHash[name] = h
		comps = append(comps, p)
	}
	m.mu.Unlock()

	if m.inst != nil {
		m.inst.SetComponents(ctx, comps)
	}
}

func (m *Manager) safeCall(name string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("panic in plugin",
				logx.String("plugin", name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
