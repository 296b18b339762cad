package scheduler

import (
	"context"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
)

// GetStats returns a read-only projection of scheduler state. SystemState
// and PriorityRules come from the optional reporters and stay empty when
// none are wired.
func (s *Service) GetStats(ctx context.Context) (Stats, error) {
	st := Stats{
		Running:       s.isRunning(),
		MaxConcurrent: s.cfg.MaxConcurrent,
	}

	var err error
	if st.ActiveSchedules, err = s.store.CountSchedulesByStatus(ctx, domain.ScheduleActive); err != nil {
		return Stats{}, err
	}
	if st.PausedSchedules, err = s.store.CountSchedulesByStatus(ctx, domain.SchedulePaused); err != nil {
		return Stats{}, err
	}
	if st.RunningExecutions, err = s.store.CountExecutionsByStatus(ctx, domain.ExecRunning); err != nil {
		return Stats{}, err
	}
	if st.RecentFailures, err = s.store.CountFailedSince(ctx, s.now().Add(-s.cfg.FailureWindow)); err != nil {
		return Stats{}, err
	}

	if s.col.State != nil {
		st.SystemState = s.col.State.SystemState()
	}
	if s.col.Priorities != nil {
		st.PriorityRules = s.col.Priorities.PriorityRules()
	}
	return st, nil
}
