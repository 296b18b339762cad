package scheduler

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

// CreateSchedule validates and persists a new schedule definition. The
// frequency floor is enforced here so a runaway cadence never reaches the
// tick loop. Returns the stored schedule with id and next-run set.
func (s *Service) CreateSchedule(ctx context.Context, sch domain.Schedule) (*domain.Schedule, error) {
	if strings.TrimSpace(sch.AgentID) == "" {
		return nil, validationf("agent id required")
	}
	if strings.TrimSpace(sch.Name) == "" {
		return nil, validationf("name required")
	}
	if len(sch.Actions) == 0 {
		return nil, validationf("at least one action required")
	}
	if err := ValidateFrequency(sch.CronExpr, sch.IntervalMs); err != nil {
		return nil, err
	}

	switch sch.ApprovalPolicy {
	case domain.ApprovalAuto, domain.ApprovalOwner, domain.ApprovalCouncil:
	case "":
		sch.ApprovalPolicy = domain.ApprovalAuto
	default:
		return nil, validationf("unknown approval policy %q", sch.ApprovalPolicy)
	}

	if sch.ID == "" {
		sch.ID = uuid.NewString()
	}
	if sch.Status == "" {
		sch.Status = domain.ScheduleActive
	}
	sch.ExecutionCount = 0

	next, err := NextRun(sch, s.now())
	if err != nil {
		return nil, err
	}
	sch.NextRunAt = next

	if err := s.store.CreateSchedule(ctx, sch); err != nil {
		return nil, err
	}
	if err := s.store.AppendAudit(ctx, domain.AuditEntry{
		At:     s.now(),
		Actor:  sch.AgentID,
		Action: "schedule_create",
		Detail: sch.Name,
	}); err != nil {
		s.log.Warn("append audit entry", logx.Err(err))
	}
	return &sch, nil
}

// GetSchedule returns nil when the id is unknown.
func (s *Service) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	return s.store.GetSchedule(ctx, id)
}

func (s *Service) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	return s.store.ListSchedules(ctx)
}

// ListExecutions returns the most recent executions of a schedule.
func (s *Service) ListExecutions(ctx context.Context, scheduleID string, limit int) ([]domain.Execution, error) {
	return s.store.ListExecutionsBySchedule(ctx, scheduleID, limit)
}
