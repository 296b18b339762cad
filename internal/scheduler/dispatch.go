package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/storage"
	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

// execOutcome is what an executor hands back on success. sessionID and
// workTaskID are recorded on the execution when set.
type execOutcome struct {
	result     string
	sessionID  *string
	workTaskID *string
}

// runAction dispatches an already-persisted running execution to its
// executor and writes the terminal status. Every failure, including a
// panic, lands as status=failed with a readable message so sibling
// actions in the same firing are never affected.
func (s *Service) runAction(ctx context.Context, agent *domain.Agent, exec domain.Execution) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("executor panic",
				logx.String("execution", exec.ID),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
			s.conclude(ctx, exec, domain.ExecFailed, fmt.Sprintf("panic: %v", r), nil)
		}
	}()

	out, err := s.execute(ctx, agent, exec.Action)
	if err != nil {
		s.conclude(ctx, exec, domain.ExecFailed, err.Error(), nil)
		return
	}
	s.conclude(ctx, exec, domain.ExecCompleted, out.result, &out)
}

// conclude writes the terminal status plus result to the ledger and
// publishes the execution update.
func (s *Service) conclude(ctx context.Context, exec domain.Execution, status domain.ExecStatus, result string, out *execOutcome) {
	now := s.now()
	upd := storage.ExecUpdate{
		Status:      status,
		Result:      &result,
		CompletedAt: &now,
	}
	if out != nil {
		upd.SessionID = out.sessionID
		upd.WorkTaskID = out.workTaskID
	}
	if err := s.store.UpdateExecution(ctx, exec.ID, upd); err != nil {
		s.log.Error("record execution outcome",
			logx.String("execution", exec.ID),
			logx.String("status", string(status)),
			logx.Err(err))
	}
	s.publishUpdate(exec, status, result)
}

// execute validates the action's inputs and invokes the collaborator for
// its kind. The switch is exhaustive over the known kinds; the default
// arm only fires for kinds stored by a newer build.
func (s *Service) execute(ctx context.Context, agent *domain.Agent, a domain.ActionSpec) (execOutcome, error) {
	switch a.Type {
	case domain.ActionStarRepo, domain.ActionForkRepo, domain.ActionReviewPRs, domain.ActionGitHubSuggest:
		return s.execGit(ctx, agent.ID, a)
	case domain.ActionWorkTask:
		return s.execWorkTask(ctx, agent.ID, a)
	case domain.ActionCouncilLaunch:
		return s.execCouncilLaunch(ctx, a)
	case domain.ActionSendMessage:
		return s.execSendMessage(ctx, agent.ID, a)
	case domain.ActionCustom:
		return s.execSession(ctx, agent, a.Prompt, "No prompt provided")
	case domain.ActionCodebaseReview:
		return s.execProjectSession(ctx, agent, "Review the codebase of the default project and report findings")
	case domain.ActionDependencyAudit:
		return s.execProjectSession(ctx, agent, "Audit the default project's dependencies for risk and staleness")
	case domain.ActionImprovementLoop:
		return s.execImprovementLoop(ctx, agent.ID)
	case domain.ActionReputation:
		return s.execReputation(ctx, agent.ID)
	case domain.ActionMemoryMaint:
		return s.execMemoryMaintenance(ctx, agent.ID)
	default:
		return execOutcome{}, fmt.Errorf("Unknown action type: %s", a.Type)
	}
}

func (s *Service) execGit(ctx context.Context, agentID string, a domain.ActionSpec) (execOutcome, error) {
	if len(a.Repos) == 0 {
		return execOutcome{}, fmt.Errorf("No repos specified")
	}
	if s.col.Git == nil {
		return execOutcome{}, fmt.Errorf("source hosting service not configured")
	}
	var failed []string
	for _, repo := range a.Repos {
		var err error
		switch a.Type {
		case domain.ActionStarRepo:
			err = s.col.Git.StarRepo(ctx, agentID, repo)
		case domain.ActionForkRepo:
			err = s.col.Git.ForkRepo(ctx, agentID, repo)
		case domain.ActionReviewPRs:
			err = s.col.Git.ReviewPulls(ctx, agentID, repo)
		case domain.ActionGitHubSuggest:
			err = s.col.Git.SuggestChange(ctx, agentID, repo, a.Description)
		}
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", repo, err))
		}
	}
	if len(failed) > 0 {
		return execOutcome{}, fmt.Errorf("%s failed for %s", a.Type, strings.Join(failed, "; "))
	}
	return execOutcome{result: fmt.Sprintf("%s done for %d repo(s)", a.Type, len(a.Repos))}, nil
}

func (s *Service) execWorkTask(ctx context.Context, agentID string, a domain.ActionSpec) (execOutcome, error) {
	if s.col.WorkTasks == nil {
		return execOutcome{}, fmt.Errorf("Work task service not available")
	}
	if strings.TrimSpace(a.Description) == "" {
		return execOutcome{}, fmt.Errorf("No description provided")
	}
	taskID, err := s.col.WorkTasks.CreateTask(ctx, agentID, a.Description)
	if err != nil {
		return execOutcome{}, fmt.Errorf("create work task: %w", err)
	}
	return execOutcome{
		result:     fmt.Sprintf("Work task %s created", taskID),
		workTaskID: &taskID,
	}, nil
}

func (s *Service) execCouncilLaunch(ctx context.Context, a domain.ActionSpec) (execOutcome, error) {
	if a.CouncilID == "" {
		return execOutcome{}, fmt.Errorf("councilId required")
	}
	if a.ProjectID == "" {
		return execOutcome{}, fmt.Errorf("projectId required")
	}
	if a.Description == "" {
		return execOutcome{}, fmt.Errorf("description required")
	}
	if s.col.Councils == nil {
		return execOutcome{}, fmt.Errorf("council service not configured")
	}
	if err := s.col.Councils.Launch(ctx, a.CouncilID, a.ProjectID, a.Description); err != nil {
		return execOutcome{}, fmt.Errorf("launch council: %w", err)
	}
	return execOutcome{result: fmt.Sprintf("Council %s launched for project %s", a.CouncilID, a.ProjectID)}, nil
}

func (s *Service) execSendMessage(ctx context.Context, agentID string, a domain.ActionSpec) (execOutcome, error) {
	if a.ToAgentID == "" {
		return execOutcome{}, fmt.Errorf("toAgentId required")
	}
	if a.Message == "" {
		return execOutcome{}, fmt.Errorf("message required")
	}
	if s.col.Messenger == nil {
		return execOutcome{}, fmt.Errorf("messenger not available")
	}
	if err := s.col.Messenger.SendAgentMessage(ctx, agentID, a.ToAgentID, a.Message); err != nil {
		return execOutcome{}, fmt.Errorf("send message: %w", err)
	}
	return execOutcome{result: fmt.Sprintf("Message sent to %s", a.ToAgentID)}, nil
}

// execSession starts an agent session for a free-form prompt. It returns
// once the process is running; completion is observed via the runtime
// subscription, not awaited here.
func (s *Service) execSession(ctx context.Context, agent *domain.Agent, prompt, emptyMsg string) (execOutcome, error) {
	if strings.TrimSpace(prompt) == "" {
		return execOutcome{}, fmt.Errorf("%s", emptyMsg)
	}
	if s.col.Runtime == nil {
		return execOutcome{}, fmt.Errorf("process runtime not configured")
	}
	sessionID, err := s.col.Runtime.StartSession(ctx, agent.ID, agent.DefaultProjectID, prompt)
	if err != nil {
		return execOutcome{}, fmt.Errorf("start session: %w", err)
	}
	return execOutcome{
		result:    fmt.Sprintf("Agent session started: %s", sessionID),
		sessionID: &sessionID,
	}, nil
}

// execProjectSession is execSession for kinds that operate on the agent's
// default project.
func (s *Service) execProjectSession(ctx context.Context, agent *domain.Agent, prompt string) (execOutcome, error) {
	if agent.DefaultProjectID == nil || *agent.DefaultProjectID == "" {
		return execOutcome{}, fmt.Errorf("No project configured for agent %s", agent.ID)
	}
	return s.execSession(ctx, agent, prompt, "No prompt provided")
}

func (s *Service) execImprovementLoop(ctx context.Context, agentID string) (execOutcome, error) {
	if s.col.Improve == nil {
		return execOutcome{}, fmt.Errorf("improvement loop not configured")
	}
	summary, err := s.col.Improve.RunOnce(ctx, agentID)
	if err != nil {
		return execOutcome{}, fmt.Errorf("improvement loop: %w", err)
	}
	return execOutcome{result: summary}, nil
}

func (s *Service) execReputation(ctx context.Context, agentID string) (execOutcome, error) {
	if s.col.Scorer == nil || s.col.Attestor == nil {
		return execOutcome{}, fmt.Errorf("reputation attestation not configured")
	}
	score, err := s.col.Scorer.Score(ctx, agentID)
	if err != nil {
		return execOutcome{}, fmt.Errorf("score reputation: %w", err)
	}
	ref, err := s.col.Attestor.Attest(ctx, agentID, score)
	if err != nil {
		return execOutcome{}, fmt.Errorf("publish attestation: %w", err)
	}
	return execOutcome{result: fmt.Sprintf("Attestation %s published (score %.2f)", ref, score)}, nil
}

func (s *Service) execMemoryMaintenance(ctx context.Context, agentID string) (execOutcome, error) {
	if s.col.Memory == nil {
		return execOutcome{}, fmt.Errorf("memory service not configured")
	}
	summary, err := s.col.Memory.Summarize(ctx, agentID)
	if err != nil {
		return execOutcome{}, fmt.Errorf("summarize memory: %w", err)
	}
	return execOutcome{result: fmt.Sprintf("Memory summarized: %s", summary)}, nil
}
