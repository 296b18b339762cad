// Package domain defines the persisted model shared by the scheduler,
// the storage layer and the admin API.
package domain

import "time"

// ScheduleStatus is the lifecycle state of a schedule.
type ScheduleStatus string

const (
	ScheduleActive    ScheduleStatus = "active"
	SchedulePaused    ScheduleStatus = "paused"
	ScheduleCompleted ScheduleStatus = "completed"
)

// ApprovalPolicy decides whether a fired action pauses for sign-off.
type ApprovalPolicy string

const (
	ApprovalAuto    ApprovalPolicy = "auto"
	ApprovalOwner   ApprovalPolicy = "owner_approve"
	ApprovalCouncil ApprovalPolicy = "council_approve"
)

// ActionType is the closed set of things a schedule can do.
type ActionType string

const (
	ActionStarRepo        ActionType = "star_repo"
	ActionForkRepo        ActionType = "fork_repo"
	ActionReviewPRs       ActionType = "review_prs"
	ActionGitHubSuggest   ActionType = "github_suggest"
	ActionWorkTask        ActionType = "work_task"
	ActionCouncilLaunch   ActionType = "council_launch"
	ActionSendMessage     ActionType = "send_message"
	ActionCustom          ActionType = "custom"
	ActionCodebaseReview  ActionType = "codebase_review"
	ActionDependencyAudit ActionType = "dependency_audit"
	ActionImprovementLoop ActionType = "improvement_loop"
	ActionReputation      ActionType = "reputation_attestation"
	ActionMemoryMaint     ActionType = "memory_maintenance"
)

// ActionSpec is one entry in a schedule's ordered action list. Only the
// fields relevant to the action type are set; the rest stay empty. Specs
// are immutable once stored and are copied verbatim into the execution's
// config snapshot at fire time.
type ActionSpec struct {
	Type        ActionType `json:"type"`
	Repos       []string   `json:"repos,omitempty"`
	Description string     `json:"description,omitempty"`
	CouncilID   string     `json:"council_id,omitempty"`
	ProjectID   string     `json:"project_id,omitempty"`
	ToAgentID   string     `json:"to_agent_id,omitempty"`
	Message     string     `json:"message,omitempty"`
	Prompt      string     `json:"prompt,omitempty"`
}

// Schedule is a persisted automation definition: when to fire and what to run.
//
// A schedule with both CronExpr and IntervalMs nil only fires via manual
// trigger. ExecutionCount is monotonically non-decreasing; once it reaches
// MaxExecutions the schedule transitions to completed and is excluded from
// future ticks.
type Schedule struct {
	ID             string         `json:"id"`
	AgentID        string         `json:"agent_id"`
	Name           string         `json:"name"`
	Description    string         `json:"description,omitempty"`
	CronExpr       *string        `json:"cron_expr,omitempty"`
	IntervalMs     *int64         `json:"interval_ms,omitempty"`
	Actions        []ActionSpec   `json:"actions"`
	ApprovalPolicy ApprovalPolicy `json:"approval_policy"`
	Status         ScheduleStatus `json:"status"`
	MaxExecutions  *int           `json:"max_executions,omitempty"`
	ExecutionCount int            `json:"execution_count"`
	MaxBudgetUSD   *float64       `json:"max_budget_per_run,omitempty"`
	NotifyAddress  *string        `json:"notify_address,omitempty"`
	LastRunAt      *time.Time     `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time     `json:"next_run_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// ExecStatus is the state of one recorded action attempt.
type ExecStatus string

const (
	ExecRunning          ExecStatus = "running"
	ExecAwaitingApproval ExecStatus = "awaiting_approval"
	ExecApproved         ExecStatus = "approved"
	ExecDenied           ExecStatus = "denied"
	ExecCompleted        ExecStatus = "completed"
	ExecFailed           ExecStatus = "failed"
	ExecCancelled        ExecStatus = "cancelled"
)

// execTransitions is the one-directional status machine. No edge re-enters
// running or awaiting_approval once left.
var execTransitions = map[ExecStatus]map[ExecStatus]struct{}{
	ExecRunning: {
		ExecCompleted: {},
		ExecFailed:    {},
		ExecCancelled: {},
	},
	ExecAwaitingApproval: {
		ExecApproved: {},
		ExecDenied:   {},
	},
	ExecApproved: {
		ExecCompleted: {},
		ExecFailed:    {},
	},
}

// CanTransition reports whether an execution may move from one status to
// another.
func CanTransition(from, to ExecStatus) bool {
	next, ok := execTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Terminal reports whether the status is an end state.
func (s ExecStatus) Terminal() bool {
	switch s {
	case ExecCompleted, ExecFailed, ExecCancelled, ExecDenied:
		return true
	}
	return false
}

// ConfigSnapshot captures the schedule's policy and cadence at the moment of
// firing, independent of later schedule edits.
type ConfigSnapshot struct {
	ApprovalPolicy ApprovalPolicy `json:"approval_policy"`
	CronExpr       *string        `json:"cron_expr,omitempty"`
	IntervalMs     *int64         `json:"interval_ms,omitempty"`
}

// Execution is one recorded attempt of a single action from a firing.
// Created exactly once per action per firing, never deleted.
type Execution struct {
	ID          string         `json:"id"`
	ScheduleID  string         `json:"schedule_id"`
	AgentID     string         `json:"agent_id"`
	Status      ExecStatus     `json:"status"`
	ActionType  ActionType     `json:"action_type"`
	Action      ActionSpec     `json:"action"`
	Result      *string        `json:"result,omitempty"`
	SessionID   *string        `json:"session_id,omitempty"`
	WorkTaskID  *string        `json:"work_task_id,omitempty"`
	CostUSD     float64        `json:"cost_usd"`
	Snapshot    ConfigSnapshot `json:"config_snapshot"`
	StartedAt   time.Time      `json:"started_at"`
	CompletedAt *time.Time     `json:"completed_at,omitempty"`
}

// Agent is the minimal agent record the scheduler reads. Agent lifecycle is
// owned elsewhere; a dangling AgentID on a schedule is tolerated.
type Agent struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Status           string    `json:"status"`
	DefaultProjectID *string   `json:"default_project_id,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// AuditEntry records one scheduler-initiated action for the audit log.
type AuditEntry struct {
	At     time.Time `json:"at"`
	Actor  string    `json:"actor"`
	Action string    `json:"action"`
	Detail string    `json:"detail,omitempty"`
}
