// Package agentproc runs agent sessions as child processes. Each session
// is one invocation of the configured agent command; completion is
// reported to subscribers, never awaited by the caller.
package agentproc

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/scheduler"
	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

type Config struct {
	// Command is the agent binary; Args are passed before the prompt.
	Command string
	Args    []string
	WorkDir string
	// StopGrace is how long StopSession waits after SIGTERM before SIGKILL.
	StopGrace time.Duration
}

type Runtime struct {
	cfg Config
	log logx.Logger

	mu    sync.Mutex
	procs map[string]*exec.Cmd
	subs  map[uint64]func(scheduler.SessionEvent)
	seq   uint64
}

func New(cfg Config, log logx.Logger) *Runtime {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = 5 * time.Second
	}
	return &Runtime{
		cfg:   cfg,
		log:   log,
		procs: make(map[string]*exec.Cmd),
		subs:  make(map[uint64]func(scheduler.SessionEvent)),
	}
}

// StartSession launches one agent process and returns as soon as it is
// running. The process's exit is reported through Subscribe.
func (r *Runtime) StartSession(ctx context.Context, agentID string, projectID *string, prompt string) (string, error) {
	if r.cfg.Command == "" {
		return "", fmt.Errorf("agent command not configured")
	}
	sessionID := uuid.NewString()

	args := append(append([]string(nil), r.cfg.Args...), prompt)
	cmd := exec.Command(r.cfg.Command, args...)
	cmd.Dir = r.cfg.WorkDir
	cmd.Env = append(os.Environ(),
		"AGENT_ID="+agentID,
		"SESSION_ID="+sessionID,
	)
	if projectID != nil {
		cmd.Env = append(cmd.Env, "PROJECT_ID="+*projectID)
	}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("start agent process: %w", err)
	}

	r.mu.Lock()
	r.procs[sessionID] = cmd
	r.mu.Unlock()

	r.log.Info("agent session started",
		logx.String("session", sessionID),
		logx.String("agent", agentID),
		logx.Int("pid", cmd.Process.Pid))

	go r.reap(sessionID, cmd)
	return sessionID, nil
}

func (r *Runtime) reap(sessionID string, cmd *exec.Cmd) {
	err := cmd.Wait()

	r.mu.Lock()
	delete(r.procs, sessionID)
	subs := make([]func(scheduler.SessionEvent), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.mu.Unlock()

	ev := scheduler.SessionEvent{SessionID: sessionID, Err: err}
	for _, fn := range subs {
		fn(ev)
	}
}

// StopSession signals the session's process with SIGTERM and escalates to
// SIGKILL after the grace period. Unknown sessions are a no-op; the
// process may already have exited.
func (r *Runtime) StopSession(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	cmd := r.procs[sessionID]
	r.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return err
	}

	pid := cmd.Process.Pid
	grace := r.cfg.StopGrace
	go func() {
		time.Sleep(grace)
		r.mu.Lock()
		still := r.procs[sessionID]
		r.mu.Unlock()
		if still != nil && still.Process != nil {
			r.log.Warn("agent session ignored SIGTERM, killing",
				logx.String("session", sessionID), logx.Int("pid", pid))
			_ = still.Process.Kill()
		}
	}()
	return nil
}

// Subscribe registers a session-exit callback and returns its unsubscribe
// function.
func (r *Runtime) Subscribe(fn func(scheduler.SessionEvent)) func() {
	r.mu.Lock()
	r.seq++
	id := r.seq
	r.subs[id] = fn
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}
