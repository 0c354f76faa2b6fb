package router

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	kit "signedkb/internal/transport"
	"signedkb/pkg/cbtoken"
	logx "signedkb/pkg/logx"
)

// HookFunc inspects a verified callback. It reports whether it claimed the
// callback; name is the hashed callback name carried by the token.
type HookFunc func(ctx context.Context, req *Request, name cbtoken.HashedName, payload string) (bool, error)

// Hook is one entry of the ordered callback hook list.
type Hook struct {
	Name string
	Call HookFunc
}

// CallbackFunc handles a callback already matched by name.
type CallbackFunc func(ctx context.Context, req *Request, payload string) error

// CallbackHook builds a hook that claims only callbacks produced by
// tgui Row.Callback(component, callback, ...).
func CallbackHook(component, callback string, fn CallbackFunc) Hook {
	scoped := cbtoken.ScopedName(component, callback)
	want := cbtoken.HashName(scoped)
	return Hook{
		Name: scoped,
		Call: func(ctx context.Context, req *Request, name cbtoken.HashedName, payload string) (bool, error) {
			if name != want {
				return false, nil
			}
			if fn == nil {
				return true, nil
			}
			return true, fn(ctx, req, payload)
		},
	}
}

type HandlerFunc func(ctx context.Context, req *Request) error

// Command is a plain "/word args..." handler.
type Command struct {
	Name        string
	Description string
	Usage       string
	Timeout     time.Duration // optional per-command override
	Handle      HandlerFunc
}

// Component groups the callback hooks and commands of one feature. Name is
// the scope used for its callback names.
type Component interface {
	Name() string
	Hooks() []Hook
	Commands() []Command
}

type Request struct {
	Update  kit.Update
	Chat    kit.ChatTarget
	FromID  int64
	Command string // command name, or the claiming hook name
	Args    []string
	ReqID   string

	Adapter kit.Adapter
	Logger  logx.Logger

	answered atomic.Bool
}

// MessageRef points at the message that carried the pressed keyboard, or at
// the command message.
func (r *Request) MessageRef() kit.MessageRef {
	ref := kit.MessageRef{ChatID: r.Chat.ChatID, ThreadID: r.Chat.ThreadID}
	switch {
	case r.Update.Callback != nil:
		ref.MessageID = r.Update.Callback.MessageID
	case r.Update.Message != nil:
		ref.MessageID = r.Update.Message.ID
	}
	return ref
}

// Answer answers the callback query once. Later calls and calls for
// message updates are no-ops.
func (r *Request) Answer(ctx context.Context, text string) error {
	if r.Update.Callback == nil || r.Adapter == nil {
		return nil
	}
	if !r.answered.CompareAndSwap(false, true) {
		return nil
	}
	return r.Adapter.AnswerCallback(ctx, r.Update.Callback.ID, text)
}

// Reply sends text to the request chat.
func (r *Request) Reply(ctx context.Context, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	return r.Adapter.SendText(ctx, r.Chat, text, opt)
}

func (r *Request) Arg(i int) string {
	if i < 0 || i >= len(r.Args) {
		return ""
	}
	return r.Args[i]
}

// ArgLine joins the arguments back into one string.
func (r *Request) ArgLine() string { return strings.Join(r.Args, " ") }
