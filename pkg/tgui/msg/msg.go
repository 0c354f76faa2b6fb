// Package msg builds ready-to-send Telegram messages: formatted text plus
// the send options and signed keyboard that go with it.
//
//	m := msg.New().Title("🔢", "Counter").Code("5").Inline(kb).Build()
//	ref, err := m.Send(ctx, adapter, chat)
package msg

import (
	"context"
	"strings"

	kit "signedkb/internal/transport"
	"signedkb/pkg/tgui"
)

// Message is text plus send options. The keyboard, if any, is rendered by
// the adapter for the chat it is sent to.
type Message struct {
	Text string
	Opt  *kit.SendOptions
}

func (m Message) Send(ctx context.Context, ad kit.Adapter, to kit.ChatTarget) (kit.MessageRef, error) {
	return ad.SendText(ctx, to, m.Text, m.Opt)
}

// Edit replaces the text and keyboard of the message at ref.
func (m Message) Edit(ctx context.Context, ad kit.Adapter, ref kit.MessageRef) error {
	return ad.EditText(ctx, ref, m.Text, m.Opt)
}

// Builder defaults to ParseMode=HTML with link previews disabled.
type Builder struct {
	parseMode      string
	disablePreview bool
	kb             *tgui.Buttons
	lines          []string
}

func New() *Builder {
	return &Builder{parseMode: "HTML", disablePreview: true}
}

// ParseMode overrides the parse mode ("HTML", "Markdown", or "" for plain).
func (b *Builder) ParseMode(mode string) *Builder {
	b.parseMode = strings.TrimSpace(mode)
	return b
}

func (b *Builder) DisablePreview(v bool) *Builder {
	b.disablePreview = v
	return b
}

// Inline attaches a keyboard. nil removes it.
func (b *Builder) Inline(kb *tgui.Buttons) *Builder {
	b.kb = kb
	return b
}

func (b *Builder) html() bool { return strings.EqualFold(b.parseMode, "HTML") }

// Title adds a bold title line. emoji is optional.
func (b *Builder) Title(emoji, title string) *Builder {
	e, t := strings.TrimSpace(emoji), strings.TrimSpace(title)
	if t == "" {
		return b
	}
	if b.html() {
		t = tgui.B(t).String()
		e = tgui.Esc(e).String()
	}
	if e != "" {
		t = e + " " + t
	}
	b.lines = append(b.lines, t)
	return b
}

// Section adds a bold header line.
func (b *Builder) Section(title string) *Builder {
	return b.Title("", title)
}

// Line adds one line, escaped in HTML mode.
func (b *Builder) Line(s string) *Builder {
	if b.html() {
		s = tgui.Esc(s).String()
	}
	b.lines = append(b.lines, s)
	return b
}

// RawLine adds s unescaped. s must already be valid for the parse mode.
func (b *Builder) RawLine(s string) *Builder {
	b.lines = append(b.lines, s)
	return b
}

func (b *Builder) Blank() *Builder { return b.RawLine("") }

// KV adds a "• key: value" line with a bold key in HTML mode.
func (b *Builder) KV(key, value string) *Builder {
	key, value = strings.TrimSpace(key), strings.TrimSpace(value)
	if key == "" {
		return b
	}
	if b.html() {
		return b.RawLine("• " + tgui.B(key).String() + ": " + tgui.Esc(value).String())
	}
	if value == "" {
		return b.RawLine("• " + key)
	}
	return b.RawLine("• " + key + ": " + value)
}

// Code adds an inline code line, or plain text outside HTML mode.
func (b *Builder) Code(s string) *Builder {
	s = strings.TrimSpace(s)
	if s == "" {
		return b
	}
	if b.html() {
		return b.RawLine(tgui.Code(s).String())
	}
	return b.RawLine(s)
}

func (b *Builder) Build() Message {
	return Message{
		Text: strings.Trim(strings.Join(b.lines, "\n"), "\n"),
		Opt: &kit.SendOptions{
			ParseMode:      b.parseMode,
			DisablePreview: b.disablePreview,
			Keyboard:       b.kb,
		},
	}
}
