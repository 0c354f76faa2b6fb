package tgui

import (
	"encoding/json"
	"fmt"
	"sort"

	"signedkb/pkg/cbtoken"
)

// Wire field names of an inline keyboard button.
const (
	KeyText                    = "text"
	KeyURL                     = "url"
	KeyCallbackData            = "callback_data"
	KeySwitchInlineQuery       = "switch_inline_query"
	KeySwitchInlineQueryInChat = "switch_inline_query_current_chat"
)

// MaxCallbackDataLen is Telegram's callback_data size limit in bytes.
// A signed token with a full payload uses all of it.
const MaxCallbackDataLen = cbtoken.PreludeLen + cbtoken.MaxPayloadLen

type fieldKV struct {
	key   string
	value Field
}

// Button is one inline keyboard cell. Fields keep construction order.
type Button struct {
	fields []fieldKV
}

func newButton(kv ...fieldKV) Button { return Button{fields: kv} }

// Row is an ordered list of buttons. Buttons are only ever appended.
type Row struct {
	component string
	buttons   []Button
}

// URL appends a button that opens url.
func (r *Row) URL(label, url string) *Row {
	r.buttons = append(r.buttons, newButton(
		fieldKV{KeyText, Static(label)},
		fieldKV{KeyURL, Static(url)},
	))
	return r
}

// Callback appends a button that triggers callback of the keyboard's
// component. payload is optional ("" for none) and limited to 32 bytes;
// the limit is enforced when the keyboard renders.
func (r *Row) Callback(label, callback, payload string) *Row {
	name := cbtoken.ScopedName(r.component, callback)
	r.buttons = append(r.buttons, newButton(
		fieldKV{KeyText, Static(label)},
		fieldKV{KeyCallbackData, signedCallback(name, payload)},
	))
	return r
}

// SwitchInlineQuery appends a button that switches the user to this bot's
// inline mode with query prefilled, either in the current chat or in a chat
// the user picks.
func (r *Row) SwitchInlineQuery(label, query string, currentChat bool) *Row {
	key := KeySwitchInlineQuery
	if currentChat {
		key = KeySwitchInlineQueryInChat
	}
	r.buttons = append(r.buttons, newButton(
		fieldKV{KeyText, Static(label)},
		fieldKV{key, Static(query)},
	))
	return r
}

// Len returns the number of buttons in the row.
func (r *Row) Len() int { return len(r.buttons) }

// Buttons is an inline keyboard addressed by row index.
//
// Not safe for concurrent mutation. Build it fully, then render it as many
// times as needed (Render does not mutate).
type Buttons struct {
	component string
	rows      map[int]*Row
}

// New creates an empty keyboard. component scopes the callback names of
// every callback button added to it.
func New(component string) *Buttons {
	return &Buttons{component: component, rows: map[int]*Row{}}
}

// Component returns the component that scopes this keyboard's callbacks.
func (b *Buttons) Component() string { return b.component }

// Row returns the row at index i, creating it on first access.
func (b *Buttons) Row(i int) *Row {
	if b.rows == nil {
		b.rows = map[int]*Row{}
	}
	r, ok := b.rows[i]
	if !ok {
		r = &Row{component: b.component}
		b.rows[i] = r
	}
	return r
}

// Len returns the number of rows that have been accessed.
func (b *Buttons) Len() int { return len(b.rows) }

// Cell is a rendered button: wire field name -> value.
type Cell map[string]string

// Markup is the reply_markup object Telegram expects for inline keyboards.
type Markup struct {
	InlineKeyboard [][]Cell `json:"inline_keyboard"`
}

// JSON marshals the markup for use as reply_markup.
func (m *Markup) JSON() ([]byte, error) { return json.Marshal(m) }

// Render resolves every field for rc, in ascending row index and then cell
// order. Gaps between row indices are dropped.
func (b *Buttons) Render(rc RenderContext) (*Markup, error) {
	idx := make([]int, 0, len(b.rows))
	for i := range b.rows {
		idx = append(idx, i)
	}
	sort.Ints(idx)

	out := &Markup{InlineKeyboard: make([][]Cell, 0, len(idx))}
	for _, i := range idx {
		row := b.rows[i]
		cells := make([]Cell, 0, len(row.buttons))
		for j, btn := range row.buttons {
			cell := make(Cell, len(btn.fields))
			for _, kv := range btn.fields {
				v, err := kv.value.Resolve(rc)
				if err != nil {
					return nil, fmt.Errorf("tgui: row %d button %d %s: %w", i, j, kv.key, err)
				}
				cell[kv.key] = v
			}
			cells = append(cells, cell)
		}
		out.InlineKeyboard = append(out.InlineKeyboard, cells)
	}
	return out, nil
}
