package scheduler

import (
	"context"
	"runtime/debug"
	"sync"
	"time"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/eventbus"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/storage"
	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

// Service owns the periodic tick loop and ties together the frequency
// validator, next-run calculator, approval gate, dispatcher and ledger.
// All schedule and execution state is committed to the store per call;
// the only in-memory state is the timer handle, so a restarted service
// resumes from persisted rows.
type Service struct {
	cfg   Config
	store storage.Store
	bus   *eventbus.Bus
	col   Collaborators
	log   logx.Logger

	now func() time.Time

	mu           sync.Mutex
	running      bool
	stopCh       chan struct{}
	stopDone     chan struct{}
	unsubRuntime func()
}

func New(cfg Config, store storage.Store, bus *eventbus.Bus, col Collaborators, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{
		cfg:   cfg.withDefaults(),
		store: store,
		bus:   bus,
		col:   col,
		log:   log,
		now:   time.Now,
	}
}

// Start bootstraps next-run timestamps for active schedules that lack one
// and begins the periodic tick. A second call while running is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.stopDone = make(chan struct{})
	if s.col.Runtime != nil {
		s.unsubRuntime = s.col.Runtime.Subscribe(s.onSessionEvent)
	}
	s.mu.Unlock()

	if err := s.bootstrapNextRuns(ctx); err != nil {
		s.log.Warn("bootstrap next-run timestamps", logx.Err(err))
	}

	go s.loop()
	s.log.Info("scheduler started",
		logx.Duration("tick_interval", s.cfg.TickInterval),
		logx.Int("max_concurrent", s.cfg.MaxConcurrent))
	return nil
}

// Stop cancels the periodic timer and waits for the loop to exit. It does
// not interrupt in-flight executions. Safe to call more than once.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.stopDone
	unsub := s.unsubRuntime
	s.unsubRuntime = nil
	s.mu.Unlock()

	<-done
	if unsub != nil {
		unsub()
	}
	s.log.Info("scheduler stopped")
}

func (s *Service) isRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Service) loop() {
	defer close(s.stopDone)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("scheduler loop panic",
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.tick(context.Background())
		}
	}
}

func (s *Service) bootstrapNextRuns(ctx context.Context) error {
	schedules, err := s.store.ListSchedules(ctx)
	if err != nil {
		return err
	}
	now := s.now()
	for _, sch := range schedules {
		if sch.Status != domain.ScheduleActive || sch.NextRunAt != nil {
			continue
		}
		next, err := NextRun(sch, now)
		if err != nil {
			s.log.Warn("compute next run", logx.String("schedule", sch.ID), logx.Err(err))
			continue
		}
		if next == nil {
			continue
		}
		sch.NextRunAt = next
		if err := s.store.UpdateSchedule(ctx, sch); err != nil {
			return err
		}
	}
	return nil
}

// onSessionEvent records the cost of a finished agent session against the
// execution that started it, when one can be found.
func (s *Service) onSessionEvent(ev SessionEvent) {
	if ev.Err != nil {
		s.log.Warn("agent session ended with error",
			logx.String("session", ev.SessionID), logx.Err(ev.Err))
		return
	}
	s.log.Debug("agent session ended",
		logx.String("session", ev.SessionID),
		logx.Float64("cost_usd", ev.CostUSD))
}
