package adapter

import (
	"encoding/json"
	"fmt"
	"strings"

	kit "signedkb/internal/transport"
	"signedkb/pkg/tgui"
)

const telegramTextLimit = 4000

// messageParams builds a sendMessage/editMessageText body. The keyboard is
// rendered here, against chatID, and sent verbatim as reply_markup.
func (a *Adapter) messageParams(chatID int64, threadID int, text string, opt *kit.SendOptions) (map[string]any, error) {
	params := map[string]any{
		"chat_id": chatID,
		"text":    text,
	}
	if threadID != 0 {
		params["message_thread_id"] = threadID
	}
	if opt.ParseMode != "" {
		params["parse_mode"] = opt.ParseMode
	}
	if opt.DisablePreview {
		params["link_preview_options"] = map[string]bool{"is_disabled": true}
	}
	if opt.Keyboard != nil {
		mk, err := opt.Keyboard.Render(tgui.RenderContext{ChatID: chatID, Codec: a.codec})
		if err != nil {
			return nil, fmt.Errorf("render keyboard: %w", err)
		}
		raw, err := mk.JSON()
		if err != nil {
			return nil, err
		}
		params["reply_markup"] = json.RawMessage(raw)
	}
	return params, nil
}

func (a *Adapter) sendWithKeyboard(to kit.ChatTarget, text string, opt *kit.SendOptions) (int, error) {
	params, err := a.messageParams(to.ChatID, to.ThreadID, text, opt)
	if err != nil {
		return 0, err
	}
	data, err := a.bot.Raw("sendMessage", params)
	if err != nil {
		return 0, err
	}
	var resp struct {
		Result struct {
			MessageID int `json:"message_id"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return 0, fmt.Errorf("decode sendMessage response: %w", err)
	}
	return resp.Result.MessageID, nil
}

// splitTelegramText splits long messages into chunks Telegram accepts. It
// prefers newline boundaries and, for HTML, avoids cutting inside a tag.
// It always returns at least one chunk.
func splitTelegramText(s string, limit int, parseMode string) []string {
	if limit <= 0 {
		limit = telegramTextLimit
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return []string{s}
	}

	out := make([]string, 0, (len(rs)+limit-1)/limit)
	start := 0
	for start < len(rs) {
		end := min(start+limit, len(rs))

		if end < len(rs) {
			for i := end - 1; i > start; i-- {
				// avoid tiny chunks
				if rs[i] == '\n' && i-start >= limit/3 {
					end = i + 1
					break
				}
			}
		}

		if strings.EqualFold(parseMode, "HTML") && end < len(rs) {
			lastOpen, lastClose := -1, -1
			for i := start; i < end; i++ {
				switch rs[i] {
				case '<':
					lastOpen = i
				case '>':
					lastClose = i
				}
			}
			if lastOpen > lastClose && lastOpen > start+1 {
				end = lastOpen
			}
		}

		out = append(out, strings.TrimRight(string(rs[start:end]), "\n"))
		start = end
		for start < len(rs) && rs[start] == '\n' {
			start++
		}
	}
	return out
}
