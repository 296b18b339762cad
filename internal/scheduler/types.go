package scheduler

import (
	"context"
	"time"
)

// Config tunes the tick loop.
type Config struct {
	// TickInterval is the cadence of the due-schedule scan.
	TickInterval time.Duration `json:"tick_interval"`
	// MaxConcurrent bounds how many executions may be running at once.
	// Firings beyond the bound are deferred to a later tick.
	MaxConcurrent int `json:"max_concurrent"`
	// FailureWindow is the trailing window for the failed-execution count
	// reported by Stats.
	FailureWindow time.Duration `json:"failure_window"`
}

func (c Config) withDefaults() Config {
	if c.TickInterval <= 0 {
		c.TickInterval = 30 * time.Second
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 2
	}
	if c.FailureWindow <= 0 {
		c.FailureWindow = 24 * time.Hour
	}
	return c
}

// GitHost performs operations against a source-hosting service on behalf
// of an agent.
type GitHost interface {
	StarRepo(ctx context.Context, agentID, repo string) error
	ForkRepo(ctx context.Context, agentID, repo string) error
	ReviewPulls(ctx context.Context, agentID, repo string) error
	SuggestChange(ctx context.Context, agentID, repo, description string) error
}

// WorkTasks creates work items for agents.
type WorkTasks interface {
	CreateTask(ctx context.Context, agentID, description string) (taskID string, err error)
}

// Councils launches a council deliberation.
type Councils interface {
	Launch(ctx context.Context, councilID, projectID, description string) error
}

// Messenger delivers lifecycle notices and inter-agent messages.
type Messenger interface {
	SendNotice(ctx context.Context, address, text string) error
	SendAgentMessage(ctx context.Context, fromAgentID, toAgentID, message string) error
}

// Alerter delivers a structured title/body notification, used for
// approval requests.
type Alerter interface {
	Alert(ctx context.Context, title, body string) error
}

// SessionEvent reports the end of an agent session started through the
// process runtime.
type SessionEvent struct {
	SessionID string
	CostUSD   float64
	Err       error
}

// ProcessRuntime starts and stops agent sessions. StartSession returns as
// soon as the underlying process is running; completion is reported
// asynchronously through Subscribe.
type ProcessRuntime interface {
	StartSession(ctx context.Context, agentID string, projectID *string, prompt string) (sessionID string, err error)
	StopSession(ctx context.Context, sessionID string) error
	Subscribe(fn func(SessionEvent)) (unsubscribe func())
}

// ImprovementLoop runs one improvement iteration for an agent.
type ImprovementLoop interface {
	RunOnce(ctx context.Context, agentID string) (summary string, err error)
}

// ReputationScorer computes an agent's current reputation score.
type ReputationScorer interface {
	Score(ctx context.Context, agentID string) (float64, error)
}

// Attestor publishes a reputation attestation.
type Attestor interface {
	Attest(ctx context.Context, agentID string, score float64) (ref string, err error)
}

// Memory exposes the summarization entry point of the memory subsystem.
type Memory interface {
	Summarize(ctx context.Context, agentID string) (summary string, err error)
}

// StateReporter supplies the system-state string surfaced by Stats.
type StateReporter interface {
	SystemState() string
}

// PriorityReporter supplies the priority rules surfaced by Stats.
type PriorityReporter interface {
	PriorityRules() []string
}

// Collaborators holds the external services the scheduler calls into.
// Optional fields may be nil; executors check at point of use and record
// a failed execution rather than erroring out of the firing.
type Collaborators struct {
	Git        GitHost
	WorkTasks  WorkTasks
	Councils   Councils
	Messenger  Messenger
	Alerter    Alerter
	Runtime    ProcessRuntime
	Improve    ImprovementLoop
	Scorer     ReputationScorer
	Attestor   Attestor
	Memory     Memory
	State      StateReporter
	Priorities PriorityReporter
}

// Stats is a read-only projection of scheduler state.
type Stats struct {
	Running           bool     `json:"running"`
	ActiveSchedules   int      `json:"active_schedules"`
	PausedSchedules   int      `json:"paused_schedules"`
	RunningExecutions int      `json:"running_executions"`
	MaxConcurrent     int      `json:"max_concurrent"`
	RecentFailures    int      `json:"recent_failures"`
	SystemState       string   `json:"system_state"`
	PriorityRules     []string `json:"priority_rules,omitempty"`
}

// ApprovalRequest is the payload of a schedule_approval_request event.
type ApprovalRequest struct {
	ExecutionID string `json:"execution_id"`
	ScheduleID  string `json:"schedule_id"`
	AgentID     string `json:"agent_id"`
	ActionType  string `json:"action_type"`
}

// ExecutionUpdate is the payload of a schedule_execution_update event.
type ExecutionUpdate struct {
	ExecutionID string `json:"execution_id"`
	ScheduleID  string `json:"schedule_id"`
	Status      string `json:"status"`
	Result      string `json:"result,omitempty"`
}
