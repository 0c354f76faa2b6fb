package router

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"signedkb/internal/runtime/supervisor"
	"signedkb/internal/storage"
	kit "signedkb/internal/transport"
	"signedkb/pkg/cbtoken"
	logx "signedkb/pkg/logx"
)

// Auditor receives one entry per processed callback. storage.Store
// satisfies it.
type Auditor interface {
	AppendAudit(ctx context.Context, e storage.AuditEntry) error
}

type Options struct {
	Workers     int           // 0 means max(2, NumCPU)
	QueueSize   int           // 0 means 256
	HookTimeout time.Duration // 0 means no timeout
}

// Dispatcher verifies callback data and hands it to the first hook that
// claims it. It also routes plain "/word" commands.
type Dispatcher struct {
	mu    sync.RWMutex
	hooks []Hook
	cmds  map[string]Command

	codec   cbtoken.Codec
	adapter kit.Adapter
	audit   Auditor
	log     logx.Logger
	opts    Options

	runMu   sync.Mutex
	running bool
	sup     *supervisor.Supervisor

	jobs chan func()
}

func NewDispatcher(codec cbtoken.Codec, adapter kit.Adapter, audit Auditor, log logx.Logger, opts Options) *Dispatcher {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opts.Workers <= 0 {
		opts.Workers = max(2, runtime.NumCPU())
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	return &Dispatcher{
		cmds:    map[string]Command{},
		codec:   codec,
		adapter: adapter,
		audit:   audit,
		log:     log.With(logx.String("comp", "telegram.router")),
		opts:    opts,
		jobs:    make(chan func(), opts.QueueSize),
	}
}

// SetHooks replaces the ordered hook list.
func (d *Dispatcher) SetHooks(hooks []Hook) {
	cp := make([]Hook, 0, len(hooks))
	for _, h := range hooks {
		if h.Call != nil {
			cp = append(cp, h)
		}
	}
	d.mu.Lock()
	d.hooks = cp
	d.mu.Unlock()
}

// Hooks returns a snapshot of the hook list.
func (d *Dispatcher) Hooks() []Hook {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]Hook(nil), d.hooks...)
}

// SetCommands replaces the command table. A /help command is always added.
func (d *Dispatcher) SetCommands(cmds []Command) {
	table := map[string]Command{}
	for _, c := range cmds {
		name := sanitizeCommand(c.Name)
		if name == "" || c.Handle == nil {
			continue
		}
		c.Name = name
		table[name] = c
	}
	if _, ok := table["help"]; !ok {
		table["help"] = Command{
			Name:        "help",
			Description: "list commands",
			Handle: func(ctx context.Context, req *Request) error {
				_, err := helpMessage(d.commands()).Send(ctx, req.Adapter, req.Chat)
				return err
			},
		}
	}

	d.mu.Lock()
	d.cmds = table
	d.mu.Unlock()
}

func (d *Dispatcher) commands() map[string]Command {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.cmds
}

// SetComponents installs the hooks and commands of comps, in order.
func (d *Dispatcher) SetComponents(ctx context.Context, comps []Component) {
	var (
		hooks []Hook
		cmds  []Command
	)
	for _, c := range comps {
		if c == nil {
			continue
		}
		hooks = append(hooks, c.Hooks()...)
		cmds = append(cmds, c.Commands()...)
	}
	d.SetHooks(hooks)
	d.SetCommands(cmds)
	d.log.Info("components installed",
		logx.Int("components", len(comps)),
		logx.Int("hooks", len(hooks)),
		logx.Int("commands", len(cmds)),
	)

	up, ok := d.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	menu := buildMenuCommands(d.commands())
	go func() {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := up.UpdateMenuCommands(cctx, menu); err != nil {
			d.log.Warn("menu update failed", logx.Err(err))
		}
	}()
}

// Process handles one update synchronously.
func (d *Dispatcher) Process(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateCallback:
		d.processCallback(ctx, up)
	case kit.UpdateMessage:
		d.processMessage(ctx, up)
	}
}

func (d *Dispatcher) processCallback(ctx context.Context, up kit.Update) storage.Outcome {
	cb := up.Callback
	if cb == nil {
		return ""
	}
	start := time.Now()
	entry := storage.AuditEntry{
		At:       start,
		UpdateID: up.ID,
		ChatID:   cb.ChatID,
		FromID:   cb.FromID,
	}

	name, payload, err := d.codec.Decode(cb.ChatID, cb.Data)
	if err != nil {
		d.log.Warn("tampered callback dropped",
			logx.Int("update_id", up.ID),
			logx.Int64("chat_id", cb.ChatID),
			logx.Int64("from_id", cb.FromID),
		)
		reason := cbtoken.TamperReason(err)
		d.log.Debug("tamper detail", logx.Int("update_id", up.ID), logx.String("reason", reason))
		entry.Outcome = storage.OutcomeTampered
		entry.Reason = reason
		d.record(ctx, entry)
		return entry.Outcome
	}

	rid := newReqID()
	req := &Request{
		Update:  up,
		Chat:    kit.ChatTarget{ChatID: cb.ChatID, ThreadID: cb.ThreadID},
		FromID:  cb.FromID,
		ReqID:   rid,
		Adapter: d.adapter,
		Logger: d.log.With(
			logx.String("rid", rid),
			logx.Int("update_id", up.ID),
			logx.Int64("chat_id", cb.ChatID),
			logx.Int64("from_id", cb.FromID),
		),
	}

	entry.Outcome = storage.OutcomeUnclaimed
	for _, h := range d.Hooks() {
		claimed, err := d.callHook(ctx, h, req, name, payload)
		if !claimed {
			continue
		}
		req.Command = h.Name
		entry.Hook = h.Name
		if err != nil {
			req.Logger.Warn("callback hook failed", logx.String("hook", h.Name), logx.Err(err))
			entry.Outcome = storage.OutcomeFailed
			entry.Reason = err.Error()
		} else {
			req.Logger.Debug("callback handled", logx.String("hook", h.Name), logx.Duration("dur", time.Since(start)))
			entry.Outcome = storage.OutcomeHandled
		}
		break
	}
	if entry.Outcome == storage.OutcomeUnclaimed {
		req.Logger.Debug("callback unclaimed", logx.String("name", name.String()))
	}

	// stop the client's loading indicator unless the hook already answered
	if err := req.Answer(ctx, ""); err != nil {
		req.Logger.Debug("answer callback failed", logx.Err(err))
	}

	entry.TookMS = time.Since(start).Milliseconds()
	d.record(ctx, entry)
	return entry.Outcome
}

// callHook runs one hook. An error or a panic counts as a claim.
func (d *Dispatcher) callHook(ctx context.Context, h Hook, req *Request, name cbtoken.HashedName, payload string) (claimed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			req.Logger.Error("panic in callback hook",
				logx.String("hook", h.Name),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
			claimed, err = true, fmt.Errorf("panic: %v", r)
		}
	}()
	if d.opts.HookTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.opts.HookTimeout)
		defer cancel()
	}
	claimed, err = h.Call(ctx, req, name, payload)
	return claimed || err != nil, err
}

func (d *Dispatcher) record(ctx context.Context, e storage.AuditEntry) {
	if d.audit == nil {
		return
	}
	if err := d.audit.AppendAudit(context.WithoutCancel(ctx), e); err != nil {
		d.log.Warn("audit append failed", logx.Err(err))
	}
}

func (d *Dispatcher) processMessage(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	parts := tokenizeCommandLine(msg.Text)
	if len(parts) == 0 {
		return
	}
	word, ok := commandWord(parts[0])
	if !ok {
		return
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	cmd, ok := d.commands()[word]
	if !ok {
		_, _ = d.adapter.SendText(ctx, chat, "unknown command, try /help", nil)
		return
	}

	rid := newReqID()
	req := &Request{
		Update:  up,
		Chat:    chat,
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    parts[1:],
		ReqID:   rid,
		Adapter: d.adapter,
		Logger: d.log.With(
			logx.String("rid", rid),
			logx.Int64("chat_id", msg.ChatID),
			logx.Int64("from_id", msg.FromID),
			logx.String("cmd", cmd.Name),
		),
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = d.opts.HookTimeout
	}
	final := Chain(
		cmd.Handle,
		logCommand(750*time.Millisecond),
		recoverCommand(),
		withTimeout(timeout),
	)
	_ = final(ctx, req)
}

func (d *Dispatcher) setSupervisor(sup *supervisor.Supervisor, running bool) {
	d.runMu.Lock()
	d.sup = sup
	d.running = running
	d.runMu.Unlock()
}

// Running reports whether DispatchLoop is active.
func (d *Dispatcher) Running() bool {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.running
}

// tryEnqueue is a panic-safe enqueue (the jobs channel may be closed).
func (d *Dispatcher) tryEnqueue(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	select {
	case d.jobs <- fn:
		return true
	default:
		return false
	}
}

// DispatchLoop reads updates until ctx is done or updates is closed and
// processes them on a bounded worker pool. It can run once per Dispatcher.
func (d *Dispatcher) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := supervisor.New(ctx,
		supervisor.WithLogger(d.log),
		supervisor.WithCancelOnError(false),
	)
	d.setSupervisor(sup, true)
	d.log.Info("dispatcher started", logx.Int("workers", d.opts.Workers), logx.Int("queue_cap", cap(d.jobs)))

	for i := 0; i < d.opts.Workers; i++ {
		idx := i
		sup.GoRestart("dispatch.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job, ok := <-d.jobs:
					if !ok {
						return nil
					}
					job()
				}
			}
		},
			supervisor.WithRestartBackoff(200*time.Millisecond, 5*time.Second),
			supervisor.WithStopOnCleanExit(true),
		)
	}

	defer func() {
		d.setSupervisor(sup, false)
		close(d.jobs)
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Wait(wctx)
		cancel()
		d.setSupervisor(nil, false)
		d.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			d.enqueue(ctx, up)
		}
	}
}

func (d *Dispatcher) enqueue(ctx context.Context, up kit.Update) {
	if d.tryEnqueue(func() { d.Process(ctx, up) }) {
		return
	}
	d.log.Warn("dispatch queue full, update dropped", logx.Int("update_id", up.ID), logx.String("kind", string(up.Kind)))
	// callbacks are not answered here, their data is not verified yet
	if up.Message != nil {
		chat := kit.ChatTarget{ChatID: up.Message.ChatID, ThreadID: up.Message.ThreadID}
		_, _ = d.adapter.SendText(ctx, chat, "busy, try again", nil)
	}
}
