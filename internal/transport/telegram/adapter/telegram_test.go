package adapter

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	kit "signedkb/internal/transport"
	"signedkb/pkg/cbtoken"
	"signedkb/pkg/tgui"
)

var testCodec = cbtoken.NewCodec(cbtoken.NewKey("adapter-test"))

func TestMessageParamsRendersPerChat(t *testing.T) {
	a := &Adapter{codec: testCodec}
	kb := tgui.New("echo")
	kb.Row(0).Callback("UPPER", "upper", "hi")

	decode := func(chatID int64) string {
		t.Helper()
		p, err := a.messageParams(chatID, 3, "text", &kit.SendOptions{Keyboard: kb, ParseMode: "HTML"})
		if err != nil {
			t.Fatalf("messageParams: %v", err)
		}
		if p["message_thread_id"] != 3 || p["parse_mode"] != "HTML" {
			t.Fatalf("params = %v", p)
		}
		var mk tgui.Markup
		if err := json.Unmarshal(p["reply_markup"].(json.RawMessage), &mk); err != nil {
			t.Fatalf("unmarshal markup: %v", err)
		}
		return mk.InlineKeyboard[0][0][tgui.KeyCallbackData]
	}

	d1, d2 := decode(1), decode(2)
	if d1 == d2 {
		t.Fatal("same callback data for two chats")
	}
	name, payload, err := testCodec.Decode(2, d2)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if name != cbtoken.HashName("echo:upper") || payload != "hi" {
		t.Fatalf("decoded %s %q", name, payload)
	}
	if _, _, err := testCodec.Decode(2, d1); !errors.Is(err, cbtoken.ErrTampered) {
		t.Fatalf("chat 1 data accepted for chat 2: %v", err)
	}
}

func TestMessageParamsRenderError(t *testing.T) {
	a := &Adapter{codec: testCodec}
	kb := tgui.New("echo")
	kb.Row(0).Callback("big", "upper", strings.Repeat("x", cbtoken.MaxPayloadLen+1))

	_, err := a.messageParams(1, 0, "text", &kit.SendOptions{Keyboard: kb})
	if !errors.Is(err, cbtoken.ErrPayloadTooLarge) {
		t.Fatalf("err = %v, want ErrPayloadTooLarge", err)
	}
}

func TestMessageParamsPlain(t *testing.T) {
	a := &Adapter{codec: testCodec}
	p, err := a.messageParams(5, 0, "hi", &kit.SendOptions{DisablePreview: true})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := p["reply_markup"]; ok {
		t.Fatal("unexpected reply_markup")
	}
	if _, ok := p["message_thread_id"]; ok {
		t.Fatal("unexpected thread id")
	}
	if _, ok := p["link_preview_options"]; !ok {
		t.Fatal("missing link_preview_options")
	}
}

func TestSplitTelegramText(t *testing.T) {
	if got := splitTelegramText("short", 10, ""); len(got) != 1 || got[0] != "short" {
		t.Fatalf("short = %q", got)
	}
	if got := splitTelegramText("", 10, ""); len(got) != 1 {
		t.Fatalf("empty = %q", got)
	}

	text := strings.Repeat("a", 8) + "\n" + strings.Repeat("b", 8)
	got := splitTelegramText(text, 10, "")
	if len(got) != 2 || got[0] != strings.Repeat("a", 8) || got[1] != strings.Repeat("b", 8) {
		t.Fatalf("split = %q", got)
	}

	html := "abcdefgh<b>bold</b>"
	got = splitTelegramText(html, 10, "HTML")
	if got[0] != "abcdefgh" {
		t.Fatalf("html split = %q", got)
	}
	if strings.Join(got, "") != html {
		t.Fatalf("html chunks lost text: %q", got)
	}
}
