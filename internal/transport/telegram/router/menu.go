package router

import (
	"sort"
	"strings"
	"unicode"

	kit "signedkb/internal/transport"
	"signedkb/pkg/tgui"
	"signedkb/pkg/tgui/msg"
)

// sanitizeCommand converts an arbitrary name into a Telegram-safe bot
// command name ([a-z0-9_]{1,32}).
func sanitizeCommand(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if r == '_' || r == '-' || r == '/' || unicode.IsSpace(r) {
			if b.Len() > 0 && !lastUnderscore {
				b.WriteRune('_')
				lastUnderscore = true
			}
			continue
		}
	}

	out := strings.Trim(b.String(), "_")
	if len(out) > 32 {
		out = strings.TrimRight(out[:32], "_")
	}
	if out == "" {
		return ""
	}
	// clients expect a leading letter
	if out[0] >= '0' && out[0] <= '9' {
		out = "cmd_" + out
		if len(out) > 32 {
			out = strings.TrimRight(out[:32], "_")
		}
	}
	return out
}

func buildMenuCommands(cmds map[string]Command) []kit.BotCommand {
	names := make([]string, 0, len(cmds))
	for n := range cmds {
		names = append(names, n)
	}
	sort.Strings(names)

	out := make([]kit.BotCommand, 0, len(names))
	for _, n := range names {
		desc := strings.ReplaceAll(strings.TrimSpace(cmds[n].Description), "\n", " ")
		if desc == "" {
			desc = n
		}
		if len(desc) > 256 {
			desc = tgui.TruncBytes(desc, 256)
		}
		out = append(out, kit.BotCommand{Command: n, Description: desc})
		if len(out) >= 100 {
			break
		}
	}
	return out
}

func helpMessage(cmds map[string]Command) msg.Message {
	names := make([]string, 0, len(cmds))
	for n := range cmds {
		names = append(names, n)
	}
	sort.Strings(names)

	b := msg.New().Title("", "Commands").Blank()
	for _, n := range names {
		c := cmds[n]
		usage := c.Usage
		if usage == "" {
			usage = "/" + n
		}
		line := tgui.Code(usage).String()
		if c.Description != "" {
			line += " " + tgui.Esc(c.Description).String()
		}
		b.RawLine(line)
	}
	return b.Build()
}
