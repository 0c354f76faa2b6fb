package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	logx "signedkb/pkg/logx"
)

func TestValidateSpec(t *testing.T) {
	for _, ok := range []string{"@hourly", "@every 10m", "*/5 * * * *", "0 */5 * * * *"} {
		if err := ValidateSpec(ok); err != nil {
			t.Errorf("ValidateSpec(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "often", "61 * * * *"} {
		if err := ValidateSpec(bad); err == nil {
			t.Errorf("ValidateSpec(%q) = nil, want error", bad)
		}
	}
}

func TestAddCronRejectsBadInput(t *testing.T) {
	s := New(Config{}, logx.Nop())
	noop := func(context.Context) error { return nil }
	if err := s.AddCron("", "@hourly", 0, noop); err == nil {
		t.Fatal("empty name accepted")
	}
	if err := s.AddCron("x", "nope", 0, noop); err == nil {
		t.Fatal("bad spec accepted")
	}
	if err := s.AddCron("x", "@hourly", 0, nil); err == nil {
		t.Fatal("nil func accepted")
	}
}

func TestJobRunsAndRecordsErrors(t *testing.T) {
	s := New(Config{Timezone: "UTC"}, logx.Nop())
	var n atomic.Int64
	fired := make(chan struct{}, 4)
	err := s.AddCron("prune", "@every 1s", time.Second, func(ctx context.Context) error {
		n.Add(1)
		select {
		case fired <- struct{}{}:
		default:
		}
		return errors.New("disk full")
	})
	if err != nil {
		t.Fatalf("AddCron: %v", err)
	}

	s.Start(context.Background())
	defer s.Stop(context.Background())

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("job never fired")
	}

	// runJob records state after the job returns
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := s.Snapshot()
		if len(snap) != 1 || snap[0].Name != "prune" {
			t.Fatalf("snapshot = %+v", snap)
		}
		if snap[0].Runs >= 1 && snap[0].LastErr == "disk full" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("snapshot = %+v", snap[0])
		}
		time.Sleep(10 * time.Millisecond)
	}

	if !s.Remove("prune") || s.Remove("prune") {
		t.Fatal("Remove should succeed once")
	}
}

func TestOverlappingTriggerSkipped(t *testing.T) {
	s := New(Config{}, logx.Nop())
	var runs atomic.Int64
	release := make(chan struct{})
	_ = s.AddCron("slow", "@every 1h", 0, func(ctx context.Context) error {
		runs.Add(1)
		<-release
		return nil
	})
	s.ctx, s.cancel = context.WithCancel(context.Background())
	defer s.cancel()

	j := s.jobs["slow"]
	done := make(chan struct{})
	go func() {
		s.runJob(j)
		close(done)
	}()
	for !j.running.Load() {
		time.Sleep(time.Millisecond)
	}
	s.runJob(j) // skipped while the first run holds the flag
	close(release)
	<-done

	if got := runs.Load(); got != 1 {
		t.Fatalf("runs = %d, want 1", got)
	}
}
