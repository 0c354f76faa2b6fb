// Package echo replies to /echo with a keyboard of signed callback buttons
// that rewrite the message in upper or lower case.
package echo

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"

	"signedkb/internal/transport/telegram/router"
	"signedkb/pkg/cbtoken"
	"signedkb/pkg/tgui"
	"signedkb/pkg/tgui/msg"
)

const name = "echo"

// maxInlineQuery is Telegram's limit for a prefilled inline query.
const maxInlineQuery = 256

type Config struct {
	Prefix  string `json:"prefix"`
	LinkURL string `json:"link_url"`
}

func defaultConfig() Config {
	return Config{LinkURL: "https://core.telegram.org/bots/api#inlinekeyboardbutton"}
}

type Plugin struct {
	cfg atomic.Pointer[Config]
}

func New() *Plugin {
	p := &Plugin{}
	c := defaultConfig()
	p.cfg.Store(&c)
	return p
}

func (p *Plugin) Name() string { return name }

func (p *Plugin) Configure(raw json.RawMessage) error {
	c := defaultConfig()
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return err
		}
	}
	p.cfg.Store(&c)
	return nil
}

// keyboard carries text (cut to the payload limit) on both transform buttons
// and (cut to the inline query limit) on the share buttons.
func (p *Plugin) keyboard(text string) *tgui.Buttons {
	cfg := p.cfg.Load()
	payload := tgui.TruncBytes(text, cbtoken.MaxPayloadLen)
	query := tgui.TruncBytes(text, maxInlineQuery)

	kb := tgui.New(name)
	kb.Row(0).
		Callback("⬆️ Upper", "upper", payload).
		Callback("⬇️ Lower", "lower", payload)
	if cfg.LinkURL != "" {
		kb.Row(1).URL("📖 Buttons", cfg.LinkURL)
	}
	kb.Row(2).
		SwitchInlineQuery("↗️ Share", query, false).
		SwitchInlineQuery("🔎 Here", query, true)
	return kb
}

func (p *Plugin) message(text string) msg.Message {
	return msg.New().
		ParseMode("").
		Line(p.cfg.Load().Prefix + text).
		Inline(p.keyboard(text)).
		Build()
}

func (p *Plugin) Commands() []router.Command {
	return []router.Command{{
		Name:        "echo",
		Description: "echo text with transform buttons",
		Usage:       "/echo <text>",
		Handle: func(ctx context.Context, req *router.Request) error {
			text := strings.TrimSpace(req.ArgLine())
			if text == "" {
				text = "hello world"
			}
			_, err := p.message(text).Send(ctx, req.Adapter, req.Chat)
			return err
		},
	}}
}

func (p *Plugin) Hooks() []router.Hook {
	return []router.Hook{
		router.CallbackHook(name, "upper", p.transform(strings.ToUpper)),
		router.CallbackHook(name, "lower", p.transform(strings.ToLower)),
	}
}

func (p *Plugin) transform(fn func(string) string) router.CallbackFunc {
	return func(ctx context.Context, req *router.Request, payload string) error {
		return p.message(fn(payload)).Edit(ctx, req.Adapter, req.MessageRef())
	}
}
