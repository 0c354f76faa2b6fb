// Package tgui builds Telegram inline keyboards whose callback buttons carry
// signed callback data (see pkg/cbtoken).
//
// A keyboard is built once, possibly before the destination chat is known,
// and rendered at send time:
//
//	kb := tgui.New("echo")
//	kb.Row(0).Callback("Upper", "upper", text).Callback("Lower", "lower", text)
//	kb.Row(1).URL("Docs", "https://core.telegram.org/bots")
//	markup, err := kb.Render(tgui.RenderContext{ChatID: chatID, Codec: codec})
//
// Callback data is produced during Render, bound to RenderContext.ChatID, so
// the same keyboard can be sent to several chats.
//
// Also included: small HTML helpers for ParseMode="HTML" messages.
package tgui
