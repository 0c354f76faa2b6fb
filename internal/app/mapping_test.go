package app

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"signedkb/internal/config"
	"signedkb/internal/storage"
	"signedkb/internal/task/scheduler"
	"signedkb/pkg/cbtoken"
	logx "signedkb/pkg/logx"
)

func TestCallbackKeyFallsBackToToken(t *testing.T) {
	withToken := &config.Config{Telegram: config.TelegramConfig{Token: "123:abc"}}
	withSecret := &config.Config{Telegram: config.TelegramConfig{Token: "123:abc", CallbackSecret: "s3cret"}}

	k1 := callbackKey(withToken)
	k2 := callbackKey(withSecret)
	if k1.IsZero() || k2.IsZero() {
		t.Fatal("zero key")
	}

	data, err := cbtoken.Encode(k1, 1, "echo:upper", "x")
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := cbtoken.Decode(cbtoken.NewKey("123:abc"), 1, data); err != nil {
		t.Fatalf("token-derived key mismatch: %v", err)
	}
	if _, _, err := cbtoken.Decode(k2, 1, data); err == nil {
		t.Fatal("secret key accepted token-key data")
	}
}

func TestMapAudit(t *testing.T) {
	as, err := mapAudit(&config.Config{})
	if err != nil || as.Enabled {
		t.Fatalf("nil audit: %+v %v", as, err)
	}
	as, err = mapAudit(&config.Config{Audit: &config.AuditConfig{Driver: "none"}})
	if err != nil || as.Enabled {
		t.Fatalf("none: %+v %v", as, err)
	}

	as, err = mapAudit(&config.Config{Audit: &config.AuditConfig{Driver: "SQLite", Path: " ./a.db ", Retention: "48h"}})
	if err != nil {
		t.Fatal(err)
	}
	if !as.Enabled || as.Storage.Driver != "sqlite" || as.Storage.Path != "./a.db" {
		t.Fatalf("mapped = %+v", as)
	}
	if as.Retention != 48*time.Hour || as.Schedule != defaultPruneSchedule || as.Storage.BusyTimeout != time.Second {
		t.Fatalf("mapped = %+v", as)
	}
}

func TestMapDispatcherDefaults(t *testing.T) {
	opts, err := mapDispatcher(&config.Config{Dispatcher: config.DispatcherConfig{Workers: 3}})
	if err != nil {
		t.Fatal(err)
	}
	if opts.Workers != 3 || opts.HookTimeout != 30*time.Second {
		t.Fatalf("opts = %+v", opts)
	}
	if _, err := mapDispatcher(&config.Config{Dispatcher: config.DispatcherConfig{HookTimeout: "soon"}}); err == nil {
		t.Fatal("bad timeout accepted")
	}
}

func TestRetention(t *testing.T) {
	st, err := storage.Open(storage.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "audit.db")}, logx.Nop())
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	ctx := context.Background()
	now := time.Now()
	_ = st.AppendAudit(ctx, storage.AuditEntry{At: now.Add(-3 * time.Hour), Outcome: storage.OutcomeTampered})
	_ = st.AppendAudit(ctx, storage.AuditEntry{At: now, Outcome: storage.OutcomeHandled})

	if err := pruneOnce(ctx, st, time.Hour, now, logx.Nop()); err != nil {
		t.Fatal(err)
	}
	left, _ := st.RecentAudit(ctx, 10)
	if len(left) != 1 || left[0].Outcome != storage.OutcomeHandled {
		t.Fatalf("left = %+v", left)
	}

	sched := scheduler.New(scheduler.Config{}, logx.Nop())
	if err := registerRetention(sched, st, auditSettings{Enabled: true, Schedule: "@hourly"}, logx.Nop()); err != nil {
		t.Fatal(err)
	}
	if n := len(sched.Snapshot()); n != 0 {
		t.Fatalf("zero retention registered %d jobs", n)
	}
	if err := registerRetention(sched, st, auditSettings{Enabled: true, Retention: time.Hour, Schedule: "@hourly"}, logx.Nop()); err != nil {
		t.Fatal(err)
	}
	if snap := sched.Snapshot(); len(snap) != 1 || snap[0].Name != pruneJobName {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestMapDebugTrims(t *testing.T) {
	got := mapDebug(&config.Config{Debug: config.DebugConfig{Enabled: true, Addr: " 127.0.0.1:7070 ", Token: " t "}})
	if !got.Enabled || got.Addr != "127.0.0.1:7070" || got.Token != "t" {
		t.Fatalf("debug = %+v", got)
	}
}

type fakeStore struct {
	storage.Store
	closed bool
}

func (f *fakeStore) Close() error {
	f.closed = true
	return nil
}

func TestOpenAuditClosesStoreWhenSetupFails(t *testing.T) {
	st := &fakeStore{}
	open := func(storage.Config, logx.Logger) (storage.Store, error) { return st, nil }
	as := auditSettings{Enabled: true, Storage: storage.Config{Driver: "sqlite"}}

	got, err := openAudit(as, open, func(storage.Store) error { return errors.New("bad schedule") }, logx.Nop())
	if err == nil || got != nil {
		t.Fatalf("openAudit = %v, %v", got, err)
	}
	if !st.closed {
		t.Fatal("store left open after setup failure")
	}

	st = &fakeStore{}
	got, err = openAudit(as, open, func(storage.Store) error { return nil }, logx.Nop())
	if err != nil || got != st || st.closed {
		t.Fatalf("openAudit = %v, %v (closed=%v)", got, err, st.closed)
	}
}

func TestOpenAuditDisabledOpensNothing(t *testing.T) {
	open := func(storage.Config, logx.Logger) (storage.Store, error) {
		t.Fatal("opened a store for disabled audit")
		return nil, nil
	}
	got, err := openAudit(auditSettings{}, open, nil, logx.Nop())
	if err != nil || got != nil {
		t.Fatalf("openAudit = %v, %v", got, err)
	}
}

func TestOpenAuditRealSQLite(t *testing.T) {
	as := auditSettings{Enabled: true, Storage: storage.Config{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "audit.db")}, Retention: time.Hour, Schedule: "not a schedule"}
	sched := scheduler.New(scheduler.Config{}, logx.Nop())
	_, err := openAudit(as, storage.Open, func(st storage.Store) error {
		return registerRetention(sched, st, as, logx.Nop())
	}, logx.Nop())
	if err == nil {
		t.Fatal("bad prune schedule accepted")
	}
}
