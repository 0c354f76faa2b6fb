package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	logx "signedkb/pkg/logx"
)

// SecondOptional allows both 5-field and 6-field (with seconds) specs.
var parser = cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSpec reports whether spec is a cron expression or descriptor
// ("@hourly", "@every 10m") the scheduler accepts.
func ValidateSpec(spec string) error {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return fmt.Errorf("schedule required")
	}
	if _, err := parser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

type Config struct {
	Timezone string // IANA TZ, empty means local
}

// Info describes one registered job.
type Info struct {
	Name    string
	Spec    string
	Next    time.Time
	Prev    time.Time
	Runs    int64
	LastErr string
}

type job struct {
	name    string
	spec    string
	timeout time.Duration
	run     func(ctx context.Context) error
	entryID cron.EntryID

	running atomic.Bool
	runs    atomic.Int64
	lastErr atomic.Value // string
}

type Service struct {
	mu   sync.Mutex
	log  logx.Logger
	cfg  Config
	c    *cron.Cron
	jobs map[string]*job

	ctx    context.Context
	cancel context.CancelFunc
}

func New(cfg Config, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, log: log, jobs: map[string]*job{}}
}

func (s *Service) location() *time.Location {
	tz := strings.TrimSpace(s.cfg.Timezone)
	if tz == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.log.Warn("invalid timezone, using local", logx.String("tz", tz), logx.Err(err))
		return time.Local
	}
	return loc
}

// AddCron registers (or replaces) job name. It can be called before or
// after Start.
func (s *Service) AddCron(name, spec string, timeout time.Duration, run func(ctx context.Context) error) error {
	if strings.TrimSpace(name) == "" || run == nil {
		return fmt.Errorf("job name and func are required")
	}
	if err := ValidateSpec(spec); err != nil {
		return err
	}
	j := &job{name: name, spec: strings.TrimSpace(spec), timeout: timeout, run: run}
	j.lastErr.Store("")

	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.jobs[name]; ok && s.c != nil {
		s.c.Remove(old.entryID)
	}
	s.jobs[name] = j
	if s.c != nil {
		return s.scheduleLocked(j)
	}
	return nil
}

// Remove unregisters job name.
func (s *Service) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[name]
	if !ok {
		return false
	}
	if s.c != nil {
		s.c.Remove(j.entryID)
	}
	delete(s.jobs, name)
	return true
}

func (s *Service) scheduleLocked(j *job) error {
	id, err := s.c.AddFunc(j.spec, func() { s.runJob(j) })
	if err != nil {
		return err
	}
	j.entryID = id
	return nil
}

func (s *Service) runJob(j *job) {
	if !j.running.CompareAndSwap(false, true) {
		s.log.Debug("job still running, trigger skipped", logx.String("job", j.name))
		return
	}
	defer j.running.Store(false)

	s.mu.Lock()
	parent := s.ctx
	s.mu.Unlock()
	if parent == nil || parent.Err() != nil {
		return
	}

	ctx := parent
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, j.timeout)
		defer cancel()
	}

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error("panic in job", logx.String("job", j.name), logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return j.run(ctx)
	}()
	j.runs.Add(1)

	if err != nil {
		j.lastErr.Store(err.Error())
		s.log.Warn("job failed", logx.String("job", j.name), logx.Duration("took", time.Since(start)), logx.Err(err))
		return
	}
	j.lastErr.Store("")
	s.log.Debug("job done", logx.String("job", j.name), logx.Duration("took", time.Since(start)))
}

// Start begins triggering. Jobs receive a context derived from ctx.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.c != nil {
		return
	}
	loc := s.location()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithParser(parser), cron.WithLocation(loc))
	for _, j := range s.jobs {
		if err := s.scheduleLocked(j); err != nil {
			s.log.Warn("job not scheduled", logx.String("job", j.name), logx.Err(err))
		}
	}
	s.c.Start()
	s.log.Info("scheduler started", logx.String("tz", loc.String()), logx.Int("jobs", len(s.jobs)))
}

// Stop stops triggering and waits for running jobs or ctx, whichever
// comes first.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	cancel := s.cancel
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	stopped := c.Stop()
	if cancel != nil {
		cancel()
	}
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
	s.log.Info("scheduler stopped")
}

// Snapshot lists registered jobs sorted by name.
func (s *Service) Snapshot() []Info {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Info, 0, len(s.jobs))
	for _, j := range s.jobs {
		in := Info{Name: j.name, Spec: j.spec, Runs: j.runs.Load()}
		in.LastErr, _ = j.lastErr.Load().(string)
		if s.c != nil {
			e := s.c.Entry(j.entryID)
			in.Next, in.Prev = e.Next, e.Prev
		}
		out = append(out, in)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Name < out[b].Name })
	return out
}
