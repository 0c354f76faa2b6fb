// Package transporttest provides an in-memory transport.Adapter for tests.
package transporttest

import (
	"context"
	"sync"

	kit "signedkb/internal/transport"
	"signedkb/pkg/cbtoken"
	"signedkb/pkg/tgui"
)

// Call is one recorded SendText or EditText.
type Call struct {
	Ref  kit.MessageRef
	Text string
	Opt  *kit.SendOptions
}

// Recorder records outgoing calls. Sent messages get increasing ids.
type Recorder struct {
	mu       sync.Mutex
	Sent     []Call
	Edited   []Call
	Answered []string
}

func (r *Recorder) Start(ctx context.Context, out chan<- kit.Update) error { return nil }
func (r *Recorder) Stop(ctx context.Context) error                         { return nil }

func (r *Recorder) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ref := kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: len(r.Sent) + 1}
	r.Sent = append(r.Sent, Call{Ref: ref, Text: text, Opt: opt})
	return ref, nil
}

func (r *Recorder) EditText(ctx context.Context, ref kit.MessageRef, text string, opt *kit.SendOptions) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Edited = append(r.Edited, Call{Ref: ref, Text: text, Opt: opt})
	return nil
}

func (r *Recorder) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Answered = append(r.Answered, callbackID)
	return nil
}

// Last returns the newest sent or edited call, edits first.
func (r *Recorder) Last() (Call, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n := len(r.Edited); n > 0 {
		return r.Edited[n-1], true
	}
	if n := len(r.Sent); n > 0 {
		return r.Sent[n-1], true
	}
	return Call{}, false
}

// Press renders c's keyboard for its chat the way the Telegram adapter
// would and returns the callback update for the button labeled label.
func Press(c Call, codec cbtoken.Codec, label string) (kit.Update, bool) {
	if c.Opt == nil || c.Opt.Keyboard == nil {
		return kit.Update{}, false
	}
	mk, err := c.Opt.Keyboard.Render(tgui.RenderContext{ChatID: c.Ref.ChatID, Codec: codec})
	if err != nil {
		return kit.Update{}, false
	}
	for _, row := range mk.InlineKeyboard {
		for _, cell := range row {
			data, ok := cell[tgui.KeyCallbackData]
			if !ok || cell[tgui.KeyText] != label {
				continue
			}
			return kit.Update{
				ID:   c.Ref.MessageID,
				Kind: kit.UpdateCallback,
				Callback: &kit.Callback{
					ID:        "cb-" + label,
					ChatID:    c.Ref.ChatID,
					ThreadID:  c.Ref.ThreadID,
					MessageID: c.Ref.MessageID,
					Data:      data,
				},
			}, true
		}
	}
	return kit.Update{}, false
}

// Command builds a message update for text.
func Command(chatID int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{ChatID: chatID, FromID: chatID, Text: text}}
}
