package router

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	logx "signedkb/pkg/logx"
)

// Middleware wraps a command handler.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain wraps h so that m[0] runs first.
func Chain(h HandlerFunc, m ...Middleware) HandlerFunc {
	for i := len(m) - 1; i >= 0; i-- {
		h = m[i](h)
	}
	return h
}

// withTimeout bounds one command. d <= 0 leaves ctx alone.
func withTimeout(d time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, req *Request) error {
			cctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(cctx, req)
		}
	}
}

// recoverCommand turns a handler panic into an error. req.Logger already
// carries rid, chat and command.
func recoverCommand() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) (err error) {
			defer func() {
				if r := recover(); r != nil {
					req.Logger.Error("command panicked",
						logx.Any("panic", r),
						logx.String("stack", string(debug.Stack())),
					)
					err = fmt.Errorf("command %s: panic: %v", req.Command, r)
				}
			}()
			return next(ctx, req)
		}
	}
}

// logCommand logs the outcome. On failure the user gets the request id so
// the matching log line can be found.
func logCommand(slow time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *Request) error {
			start := time.Now()
			err := next(ctx, req)
			took := time.Since(start)

			fields := []logx.Field{logx.Int("args", len(req.Args)), logx.Duration("took", took)}
			if req.Chat.ThreadID != 0 {
				fields = append(fields, logx.Int("thread_id", req.Chat.ThreadID))
			}
			switch {
			case err != nil:
				req.Logger.Warn("command failed", append(fields, logx.Err(err))...)
				// the handler ctx may be what expired
				rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()
				if _, rerr := req.Reply(rctx, "command failed, ref "+req.ReqID, nil); rerr != nil {
					req.Logger.Debug("failure reply not sent", logx.Err(rerr))
				}
			case took >= slow:
				req.Logger.Info("command slow", fields...)
			default:
				req.Logger.Debug("command done", fields...)
			}
			return err
		}
	}
}
