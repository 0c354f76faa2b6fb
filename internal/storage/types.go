package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// Outcome is what the dispatcher did with a callback update.
type Outcome string

const (
	OutcomeHandled   Outcome = "handled"
	OutcomeFailed    Outcome = "failed"
	OutcomeUnclaimed Outcome = "unclaimed"
	OutcomeTampered  Outcome = "tampered"
)

// AuditEntry records one processed callback update.
type AuditEntry struct {
	At       time.Time `json:"at"`
	UpdateID int       `json:"update_id"`
	ChatID   int64     `json:"chat_id"`
	FromID   int64     `json:"from_id,omitempty"`
	Outcome  Outcome   `json:"outcome"`
	Hook     string    `json:"hook,omitempty"`   // hook that claimed the update, if any
	Reason   string    `json:"reason,omitempty"` // server-side detail (tamper reason, hook error)
	TookMS   int64     `json:"took_ms"`
}

// Store is the persistence API used by the dispatcher and the app.
type Store interface {
	AppendAudit(ctx context.Context, e AuditEntry) error
	// RecentAudit returns up to limit entries, newest first.
	RecentAudit(ctx context.Context, limit int) ([]AuditEntry, error)
	// PruneAudit deletes entries older than before and returns how many.
	PruneAudit(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
