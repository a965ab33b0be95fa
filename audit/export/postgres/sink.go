package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	goGuard "github.com/MrEthical07/goGuard"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

const schema = `
CREATE TABLE IF NOT EXISTS goguard_audit_events (
	id          TEXT PRIMARY KEY,
	occurred_at TIMESTAMPTZ NOT NULL,
	event_type  TEXT NOT NULL,
	user_id     TEXT,
	tenant_id   TEXT,
	ip          TEXT,
	category    TEXT,
	identifier  TEXT,
	success     BOOLEAN NOT NULL,
	error_code  TEXT,
	metadata    JSONB
);
CREATE INDEX IF NOT EXISTS goguard_audit_events_type_time
	ON goguard_audit_events (event_type, occurred_at DESC);
CREATE INDEX IF NOT EXISTS goguard_audit_events_tenant_user
	ON goguard_audit_events (tenant_id, user_id, occurred_at DESC)`

const insertEvent = `
INSERT INTO goguard_audit_events
	(id, occurred_at, event_type, user_id, tenant_id, ip, category, identifier, success, error_code, metadata)
VALUES
	(@id, @occurred_at, @event_type, @user_id, @tenant_id, @ip, @category, @identifier, @success, @error_code, @metadata::jsonb)
ON CONFLICT (id) DO NOTHING`

// Sink persists audit events. Emit runs on the engine's audit dispatcher
// goroutine.
type Sink struct {
	db      DB
	timeout time.Duration
	failed  atomic.Uint64
}

// NewSink writes through db. Each insert is bounded by timeout; zero means
// five seconds.
func NewSink(db DB, timeout time.Duration) *Sink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Sink{db: db, timeout: timeout}
}

// EnsureSchema creates the events table and its indexes if missing.
func (s *Sink) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create audit schema: %w", err)
	}
	return nil
}

func (s *Sink) Emit(ctx context.Context, ev goGuard.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()

	if err := s.insert(ctx, ev); err != nil {
		n := s.failed.Add(1)
		log.Printf("goGuard: audit insert %s (%s) failed (%d total): %v", ev.ID, ev.EventType, n, err)
	}
}

func (s *Sink) insert(ctx context.Context, ev goGuard.AuditEvent) error {
	var metadata *string
	if len(ev.Metadata) > 0 {
		raw, err := json.Marshal(ev.Metadata)
		if err != nil {
			return err
		}
		m := string(raw)
		metadata = &m
	}

	_, err := s.db.Exec(ctx, insertEvent, pgx.NamedArgs{
		"id":          ev.ID,
		"occurred_at": ev.Timestamp,
		"event_type":  ev.EventType,
		"user_id":     nullable(ev.UserID),
		"tenant_id":   nullable(ev.TenantID),
		"ip":          nullable(ev.IP),
		"category":    nullable(ev.Category),
		"identifier":  nullable(ev.Identifier),
		"success":     ev.Success,
		"error_code":  nullable(ev.Error),
		"metadata":    metadata,
	})
	return err
}

// Failed returns how many events could not be written.
func (s *Sink) Failed() uint64 {
	return s.failed.Load()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
