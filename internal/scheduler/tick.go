package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/eventbus"
	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

// tick scans for due schedules and fires them, respecting the concurrency
// bound. Schedules beyond the bound stay due and are picked up on a later
// tick.
func (s *Service) tick(ctx context.Context) {
	now := s.now()

	running, err := s.store.CountExecutionsByStatus(ctx, domain.ExecRunning)
	if err != nil {
		s.log.Error("count running executions", logx.Err(err))
		return
	}
	capacity := s.cfg.MaxConcurrent - running

	due, err := s.store.ListDueSchedules(ctx, now)
	if err != nil {
		s.log.Error("list due schedules", logx.Err(err))
		return
	}

	for _, sch := range due {
		if sch.MaxExecutions != nil && sch.ExecutionCount >= *sch.MaxExecutions {
			sch.Status = domain.ScheduleCompleted
			sch.NextRunAt = nil
			if err := s.store.UpdateSchedule(ctx, sch); err != nil {
				s.log.Error("complete schedule", logx.String("schedule", sch.ID), logx.Err(err))
			} else {
				s.log.Info("schedule reached execution cap",
					logx.String("schedule", sch.ID), logx.Int("count", sch.ExecutionCount))
			}
			continue
		}
		if capacity <= 0 {
			s.log.Debug("concurrency bound reached, deferring firing",
				logx.String("schedule", sch.ID))
			return
		}
		capacity--
		if err := s.fire(ctx, sch); err != nil {
			s.log.Error("fire schedule", logx.String("schedule", sch.ID), logx.Err(err))
		}
	}
}

// fire runs one firing of a schedule: one execution per action, executed
// sequentially, each isolated from its siblings' outcomes. The schedule's
// last-run, next-run and execution count are updated once per firing.
func (s *Service) fire(ctx context.Context, sch domain.Schedule) error {
	now := s.now()

	agent, err := s.store.GetAgent(ctx, sch.AgentID)
	if err != nil {
		return err
	}
	if agent == nil {
		// The owning agent was deleted out from under the schedule.
		// Skip quietly so the tick loop stays alive.
		s.log.Warn("schedule references missing agent, skipping firing",
			logx.String("schedule", sch.ID), logx.String("agent", sch.AgentID))
		return s.advance(ctx, sch, now)
	}

	s.notify(ctx, sch, fmt.Sprintf("Schedule %q firing with %d action(s)", sch.Name, len(sch.Actions)))

	snapshot := domain.ConfigSnapshot{
		ApprovalPolicy: sch.ApprovalPolicy,
		CronExpr:       sch.CronExpr,
		IntervalMs:     sch.IntervalMs,
	}

	for _, action := range sch.Actions {
		exec := domain.Execution{
			ID:         uuid.NewString(),
			ScheduleID: sch.ID,
			AgentID:    sch.AgentID,
			ActionType: action.Type,
			Action:     action,
			Snapshot:   snapshot,
			StartedAt:  now,
		}

		if requiresApproval(sch.ApprovalPolicy, action.Type) {
			s.deferForApproval(ctx, sch, exec)
		} else {
			exec.Status = domain.ExecRunning
			if err := s.store.CreateExecution(ctx, exec); err != nil {
				s.log.Error("create execution", logx.String("schedule", sch.ID), logx.Err(err))
				continue
			}
			s.runAction(ctx, agent, exec)
		}

		if err := s.store.AppendAudit(ctx, domain.AuditEntry{
			At:     now,
			Actor:  sch.AgentID,
			Action: "schedule_execute",
			Detail: fmt.Sprintf("%s: %s", action.Type, actionDetail(action)),
		}); err != nil {
			s.log.Warn("append audit entry", logx.Err(err))
		}
	}

	if err := s.advance(ctx, sch, now); err != nil {
		return err
	}
	s.notify(ctx, sch, fmt.Sprintf("Schedule %q firing complete", sch.Name))
	return nil
}

// advance stamps last-run, recomputes next-run and bumps the execution
// count exactly once per firing call.
func (s *Service) advance(ctx context.Context, sch domain.Schedule, now time.Time) error {
	next, err := NextRun(sch, now)
	if err != nil {
		return err
	}
	sch.LastRunAt = &now
	sch.NextRunAt = next
	sch.ExecutionCount++
	return s.store.UpdateSchedule(ctx, sch)
}

// notify sends a lifecycle notice for schedules that carry a notify
// address, when a messenger is wired. Best-effort.
func (s *Service) notify(ctx context.Context, sch domain.Schedule, text string) {
	if sch.NotifyAddress == nil || s.col.Messenger == nil {
		return
	}
	if err := s.col.Messenger.SendNotice(ctx, *sch.NotifyAddress, text); err != nil {
		s.log.Warn("send schedule notice",
			logx.String("schedule", sch.ID), logx.Err(err))
	}
}

// deferForApproval parks the execution as awaiting_approval without
// performing the side effect, and raises the approval request.
func (s *Service) deferForApproval(ctx context.Context, sch domain.Schedule, exec domain.Execution) {
	exec.Status = domain.ExecAwaitingApproval
	if err := s.store.CreateExecution(ctx, exec); err != nil {
		s.log.Error("create awaiting execution", logx.String("schedule", sch.ID), logx.Err(err))
		return
	}

	s.publish(eventbus.TypeApprovalRequest, ApprovalRequest{
		ExecutionID: exec.ID,
		ScheduleID:  sch.ID,
		AgentID:     sch.AgentID,
		ActionType:  string(exec.ActionType),
	})

	if s.col.Alerter != nil {
		title := fmt.Sprintf("Approval needed: %s", exec.ActionType)
		body := fmt.Sprintf("Schedule %q wants to run %s", sch.Name, actionDetail(exec.Action))
		if err := s.col.Alerter.Alert(ctx, title, body); err != nil {
			s.log.Warn("send approval alert", logx.String("execution", exec.ID), logx.Err(err))
		}
	}
}

func (s *Service) publish(eventType string, payload any) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(eventbus.Event{
		Type: eventType,
		Time: s.now(),
		Data: payload,
	})
}

func (s *Service) publishUpdate(exec domain.Execution, status domain.ExecStatus, result string) {
	s.publish(eventbus.TypeExecutionUpdate, ExecutionUpdate{
		ExecutionID: exec.ID,
		ScheduleID:  exec.ScheduleID,
		Status:      string(status),
		Result:      result,
	})
}

func actionDetail(a domain.ActionSpec) string {
	switch {
	case len(a.Repos) > 0:
		return fmt.Sprintf("repos=%v", a.Repos)
	case a.Description != "":
		return a.Description
	case a.Message != "":
		return a.Message
	case a.Prompt != "":
		return a.Prompt
	default:
		return string(a.Type)
	}
}
