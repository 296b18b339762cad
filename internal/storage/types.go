package storage

import (
	"context"
	"errors"
	"time"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
)

var (
	// ErrNotFound is returned by point reads for missing rows.
	ErrNotFound = errors.New("storage: not found")
	// ErrBadTransition is returned when an execution status update would
	// violate the one-directional status machine.
	ErrBadTransition = errors.New("storage: illegal status transition")
)

// Config configures the sqlite store.
type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means driver default
}

// ExecUpdate is a partial update applied to an execution row. Nil fields are
// left untouched; Status is always applied and must be a legal transition
// from the row's current status.
type ExecUpdate struct {
	Status      domain.ExecStatus
	Result      *string
	SessionID   *string
	WorkTaskID  *string
	CostUSD     *float64
	CompletedAt *time.Time
}

// Store is the persistence API consumed by the scheduler and the admin API.
// The scheduler never bypasses this interface.
type Store interface {
	// Agents.
	PutAgent(ctx context.Context, a domain.Agent) error
	GetAgent(ctx context.Context, id string) (*domain.Agent, error)

	// Schedules.
	CreateSchedule(ctx context.Context, s domain.Schedule) error
	GetSchedule(ctx context.Context, id string) (*domain.Schedule, error)
	UpdateSchedule(ctx context.Context, s domain.Schedule) error
	ListSchedules(ctx context.Context) ([]domain.Schedule, error)
	// ListDueSchedules returns active schedules whose next_run_at is set and
	// <= now, ordered by due time.
	ListDueSchedules(ctx context.Context, now time.Time) ([]domain.Schedule, error)
	CountSchedulesByStatus(ctx context.Context, st domain.ScheduleStatus) (int, error)

	// Execution ledger.
	CreateExecution(ctx context.Context, e domain.Execution) error
	GetExecution(ctx context.Context, id string) (*domain.Execution, error)
	UpdateExecution(ctx context.Context, id string, u ExecUpdate) error
	ListExecutionsBySchedule(ctx context.Context, scheduleID string, limit int) ([]domain.Execution, error)
	CountExecutionsByStatus(ctx context.Context, st domain.ExecStatus) (int, error)
	CountFailedSince(ctx context.Context, since time.Time) (int, error)

	// Audit log.
	AppendAudit(ctx context.Context, e domain.AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error)

	Close() error
}
