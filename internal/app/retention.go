package app

import (
	"context"
	"fmt"
	"time"

	"signedkb/internal/storage"
	"signedkb/internal/task/scheduler"
	logx "signedkb/pkg/logx"
)

const pruneJobName = "audit.prune"

type storeOpener func(cfg storage.Config, log logx.Logger) (storage.Store, error)

// openAudit opens the audit store and runs setup on it. A failed setup
// closes the store. Disabled audit returns (nil, nil).
func openAudit(as auditSettings, open storeOpener, setup func(storage.Store) error, log logx.Logger) (storage.Store, error) {
	if !as.Enabled {
		return nil, nil
	}
	st, err := open(as.Storage, log.With(logx.String("comp", "storage")))
	if err != nil {
		return nil, fmt.Errorf("audit storage: %w", err)
	}
	if st == nil {
		return nil, nil
	}
	if err := setup(st); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("audit setup: %w", err)
	}
	log.Info("audit enabled", logx.String("driver", as.Storage.Driver), logx.Duration("retention", as.Retention))
	return st, nil
}

// registerRetention schedules the audit prune job. Zero retention keeps
// everything and registers nothing.
func registerRetention(sched *scheduler.Service, store storage.Store, as auditSettings, log logx.Logger) error {
	if store == nil || as.Retention <= 0 {
		return nil
	}
	return sched.AddCron(pruneJobName, as.Schedule, time.Minute, func(ctx context.Context) error {
		return pruneOnce(ctx, store, as.Retention, time.Now(), log)
	})
}

func pruneOnce(ctx context.Context, store storage.Store, retention time.Duration, now time.Time, log logx.Logger) error {
	n, err := store.PruneAudit(ctx, now.Add(-retention))
	if err != nil {
		return err
	}
	if n > 0 {
		log.Info("audit entries pruned", logx.Int64("count", n), logx.Duration("retention", retention))
	}
	return nil
}
