package scheduler

import (
	"context"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/storage"
	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

// destructiveKinds is the set of action kinds that require sign-off under
// the owner_approve policy. They either mutate external repositories or
// spawn paid agent work.
var destructiveKinds = map[domain.ActionType]struct{}{
	domain.ActionWorkTask:        {},
	domain.ActionGitHubSuggest:   {},
	domain.ActionForkRepo:        {},
	domain.ActionCodebaseReview:  {},
	domain.ActionDependencyAudit: {},
	domain.ActionImprovementLoop: {},
}

// requiresApproval is evaluated per action, not per schedule.
func requiresApproval(policy domain.ApprovalPolicy, kind domain.ActionType) bool {
	switch policy {
	case domain.ApprovalCouncil:
		return true
	case domain.ApprovalOwner:
		_, ok := destructiveKinds[kind]
		return ok
	default:
		return false
	}
}

// ResolveApproval settles an awaiting_approval execution. On approval the
// underlying executor runs synchronously and the execution lands on
// completed or failed; on rejection it moves to denied without executing.
// Unknown ids and executions in any other state return (nil, nil) and
// emit nothing.
func (s *Service) ResolveApproval(ctx context.Context, executionID string, approved bool) (*domain.Execution, error) {
	exec, err := s.store.GetExecution(ctx, executionID)
	if err != nil {
		return nil, err
	}
	if exec == nil || exec.Status != domain.ExecAwaitingApproval {
		return nil, nil
	}

	if !approved {
		now := s.now()
		result := "Denied by approver"
		if err := s.store.UpdateExecution(ctx, exec.ID, storage.ExecUpdate{
			Status:      domain.ExecDenied,
			Result:      &result,
			CompletedAt: &now,
		}); err != nil {
			return nil, err
		}
		s.publishUpdate(*exec, domain.ExecDenied, result)
		return s.store.GetExecution(ctx, executionID)
	}

	if err := s.store.UpdateExecution(ctx, exec.ID, storage.ExecUpdate{
		Status: domain.ExecApproved,
	}); err != nil {
		return nil, err
	}
	s.publishUpdate(*exec, domain.ExecApproved, "")

	agent, err := s.store.GetAgent(ctx, exec.AgentID)
	if err != nil {
		return nil, err
	}
	if agent == nil {
		s.log.Warn("approved execution references missing agent",
			logx.String("execution", exec.ID), logx.String("agent", exec.AgentID))
		s.conclude(ctx, *exec, domain.ExecFailed, "agent no longer exists", nil)
		return s.store.GetExecution(ctx, executionID)
	}

	exec.Status = domain.ExecApproved
	s.runAction(ctx, agent, *exec)
	return s.store.GetExecution(ctx, executionID)
}
