// Package counter keeps a number in the message itself: the +/- buttons
// carry the current value as their payload, so no server state is needed.
package counter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sync/atomic"

	"signedkb/internal/transport/telegram/router"
	"signedkb/pkg/tgui"
	"signedkb/pkg/tgui/msg"
)

const name = "counter"

type Config struct {
	Step int64 `json:"step"`
}

type Plugin struct {
	step atomic.Int64
}

func New() *Plugin {
	p := &Plugin{}
	p.step.Store(1)
	return p
}

func (p *Plugin) Name() string { return name }

func (p *Plugin) Configure(raw json.RawMessage) error {
	c := Config{Step: 1}
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&c); err != nil {
			return err
		}
	}
	if c.Step <= 0 {
		return fmt.Errorf("step must be > 0")
	}
	p.step.Store(c.Step)
	return nil
}


// keyboard puts the controls on row 0 and reset on row 9; nothing in
// between is rendered.
func keyboard(n int64) *tgui.Buttons {
	v := strconv.FormatInt(n, 10)
	kb := tgui.New(name)
	kb.Row(9).Callback("↺ Reset", "reset", "")
	kb.Row(0).
		Callback("➖", "dec", v).
		Callback("➕", "inc", v)
	return kb
}

func message(n int64) msg.Message {
	return msg.New().
		Title("🔢", "Counter").
		Code(strconv.FormatInt(n, 10)).
		Inline(keyboard(n)).
		Build()
}

// add returns n+delta, saturating at the int64 limits.
func add(n, delta int64) int64 {
	switch {
	case delta > 0 && n > math.MaxInt64-delta:
		return math.MaxInt64
	case delta < 0 && n < math.MinInt64-delta:
		return math.MinInt64
	}
	return n + delta
}

func (p *Plugin) Commands() []router.Command {
	return []router.Command{{
		Name:        "counter",
		Description: "a counter kept in signed buttons",
		Usage:       "/counter [start]",
		Handle: func(ctx context.Context, req *router.Request) error {
			var n int64
			if s := req.Arg(0); s != "" {
				v, err := strconv.ParseInt(s, 10, 64)
				if err != nil {
					_, err = req.Reply(ctx, "start must be a whole number", nil)
					return err
				}
				n = v
			}
			_, err := message(n).Send(ctx, req.Adapter, req.Chat)
			return err
		},
	}}
}

func (p *Plugin) Hooks() []router.Hook {
	return []router.Hook{
		router.CallbackHook(name, "inc", p.stepBy(1)),
		router.CallbackHook(name, "dec", p.stepBy(-1)),
		router.CallbackHook(name, "reset", func(ctx context.Context, req *router.Request, _ string) error {
			return message(0).Edit(ctx, req.Adapter, req.MessageRef())
		}),
	}
}

func (p *Plugin) stepBy(sign int64) router.CallbackFunc {
	return func(ctx context.Context, req *router.Request, payload string) error {
		n, err := strconv.ParseInt(payload, 10, 64)
		if err != nil {
			return fmt.Errorf("counter payload %q: %w", payload, err)
		}
		return message(add(n, sign*p.step.Load())).Edit(ctx, req.Adapter, req.MessageRef())
	}
}
