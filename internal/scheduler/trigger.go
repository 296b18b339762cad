package scheduler

import (
	"context"
	"fmt"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/storage"
	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

// TriggerNow fires a schedule immediately, bypassing the concurrency
// bound. It fails with ErrNotFound for an unknown id and a validation
// error for a schedule that is not active.
func (s *Service) TriggerNow(ctx context.Context, scheduleID string) error {
	sch, err := s.store.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if sch == nil {
		return fmt.Errorf("%w: %s", ErrNotFound, scheduleID)
	}
	if sch.Status != domain.ScheduleActive {
		return validationf("schedule %s is not active (status %s)", sch.ID, sch.Status)
	}
	return s.fire(ctx, *sch)
}

// CancelExecution moves a running execution to cancelled and asks the
// process runtime to stop its session, if it has one. The stop is
// best-effort; the process may outlive this call briefly. Unknown ids and
// executions in any other state return (nil, nil) and emit nothing.
func (s *Service) CancelExecution(ctx context.Context, executionID string) (*domain.Execution, error) {
	exec, err := s.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if exec == nil || exec.Status != domain.ExecRunning {
		return nil, nil
	}

	now := s.now()
	result := "Cancelled by user"
	if err := s.store.UpdateExecution(ctx, exec.ID, storage.ExecUpdate{
		Status:      domain.ExecCancelled,
		Result:      &result,
		CompletedAt: &now,
	}); err != nil {
		return nil, err
	}

	if exec.SessionID != nil && s.col.Runtime != nil {
		if err := s.col.Runtime.StopSession(ctx, *exec.SessionID); err != nil {
			s.log.Warn("stop session for cancelled execution",
				logx.String("execution", exec.ID),
				logx.String("session", *exec.SessionID),
				logx.Err(err))
		}
	}

	s.publishUpdate(*exec, domain.ExecCancelled, result)
	return s.store.GetExecution(ctx, executionID)
}
