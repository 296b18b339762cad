package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the sqlite store, creating the file and schema if needed.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// ---- agents ----

func (s *sqliteStore) PutAgent(ctx context.Context, a domain.Agent) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO agents(id, name, status, default_project_id, created_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   name=excluded.name, status=excluded.status,
		   default_project_id=excluded.default_project_id`,
		a.ID, a.Name, a.Status, nullStrPtr(a.DefaultProjectID), fmtTime(a.CreatedAt),
	)
	return err
}

func (s *sqliteStore) GetAgent(ctx context.Context, id string) (*domain.Agent, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, default_project_id, created_at FROM agents WHERE id = ?`, id)
	var a domain.Agent
	var project sql.NullString
	var created string
	err := row.Scan(&a.ID, &a.Name, &a.Status, &project, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	a.DefaultProjectID = strPtr(project)
	a.CreatedAt = parseTime(created)
	return &a, nil
}

// ---- schedules ----

const scheduleCols = `id, agent_id, name, description, cron_expr, interval_ms,
	actions, approval_policy, status, max_executions, execution_count,
	max_budget_usd, notify_address, last_run_at, next_run_at, created_at, updated_at`

func (s *sqliteStore) CreateSchedule(ctx context.Context, sch domain.Schedule) error {
	actions, err := json.Marshal(sch.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	now := time.Now()
	if sch.CreatedAt.IsZero() {
		sch.CreatedAt = now
	}
	if sch.UpdatedAt.IsZero() {
		sch.UpdatedAt = now
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO schedules(`+scheduleCols+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		sch.ID, sch.AgentID, sch.Name, sch.Description,
		nullStrPtr(sch.CronExpr), nullInt64Ptr(sch.IntervalMs),
		string(actions), string(sch.ApprovalPolicy), string(sch.Status),
		nullIntPtr(sch.MaxExecutions), sch.ExecutionCount,
		nullFloatPtr(sch.MaxBudgetUSD), nullStrPtr(sch.NotifyAddress),
		nullTimePtr(sch.LastRunAt), nullTimePtr(sch.NextRunAt),
		fmtTime(sch.CreatedAt), fmtTime(sch.UpdatedAt),
	)
	return err
}

func (s *sqliteStore) UpdateSchedule(ctx context.Context, sch domain.Schedule) error {
	actions, err := json.Marshal(sch.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET agent_id=?, name=?, description=?, cron_expr=?,
		   interval_ms=?, actions=?, approval_policy=?, status=?, max_executions=?,
		   execution_count=?, max_budget_usd=?, notify_address=?, last_run_at=?,
		   next_run_at=?, updated_at=?
		 WHERE id=?`,
		sch.AgentID, sch.Name, sch.Description,
		nullStrPtr(sch.CronExpr), nullInt64Ptr(sch.IntervalMs),
		string(actions), string(sch.ApprovalPolicy), string(sch.Status),
		nullIntPtr(sch.MaxExecutions), sch.ExecutionCount,
		nullFloatPtr(sch.MaxBudgetUSD), nullStrPtr(sch.NotifyAddress),
		nullTimePtr(sch.LastRunAt), nullTimePtr(sch.NextRunAt),
		fmtTime(time.Now()), sch.ID,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) GetSchedule(ctx context.Context, id string) (*domain.Schedule, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+scheduleCols+` FROM schedules WHERE id = ?`, id)
	sch, err := scanSchedule(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sch, nil
}

func (s *sqliteStore) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleCols+` FROM schedules ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (s *sqliteStore) ListDueSchedules(ctx context.Context, now time.Time) ([]domain.Schedule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+scheduleCols+` FROM schedules
		 WHERE status = ? AND next_run_at IS NOT NULL AND next_run_at <= ?
		 ORDER BY next_run_at, id`,
		string(domain.ScheduleActive), fmtTime(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectSchedules(rows)
}

func (s *sqliteStore) CountSchedulesByStatus(ctx context.Context, st domain.ScheduleStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM schedules WHERE status = ?`, string(st)).Scan(&n)
	return n, err
}

func collectSchedules(rows *sql.Rows) ([]domain.Schedule, error) {
	var out []domain.Schedule
	for rows.Next() {
		sch, err := scanSchedule(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *sch)
	}
	return out, rows.Err()
}

func scanSchedule(scan func(dest ...any) error) (*domain.Schedule, error) {
	var (
		sch        domain.Schedule
		cron       sql.NullString
		intervalMs sql.NullInt64
		actions    string
		policy     string
		status     string
		maxExec    sql.NullInt64
		budget     sql.NullFloat64
		notify     sql.NullString
		lastRun    sql.NullString
		nextRun    sql.NullString
		created    string
		updated    string
	)
	if err := scan(
		&sch.ID, &sch.AgentID, &sch.Name, &sch.Description, &cron, &intervalMs,
		&actions, &policy, &status, &maxExec, &sch.ExecutionCount,
		&budget, &notify, &lastRun, &nextRun, &created, &updated,
	); err != nil {
		return nil, err
	}
	sch.CronExpr = strPtr(cron)
	if intervalMs.Valid {
		v := intervalMs.Int64
		sch.IntervalMs = &v
	}
	if err := json.Unmarshal([]byte(actions), &sch.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions for schedule %s: %w", sch.ID, err)
	}
	sch.ApprovalPolicy = domain.ApprovalPolicy(policy)
	sch.Status = domain.ScheduleStatus(status)
	if maxExec.Valid {
		v := int(maxExec.Int64)
		sch.MaxExecutions = &v
	}
	if budget.Valid {
		v := budget.Float64
		sch.MaxBudgetUSD = &v
	}
	sch.NotifyAddress = strPtr(notify)
	sch.LastRunAt = timePtr(lastRun)
	sch.NextRunAt = timePtr(nextRun)
	sch.CreatedAt = parseTime(created)
	sch.UpdatedAt = parseTime(updated)
	return &sch, nil
}

// ---- executions ----

const executionCols = `id, schedule_id, agent_id, status, action_type, action,
	result, session_id, work_task_id, cost_usd, snapshot, started_at, completed_at`

func (s *sqliteStore) CreateExecution(ctx context.Context, e domain.Execution) error {
	action, err := json.Marshal(e.Action)
	if err != nil {
		return fmt.Errorf("marshal action: %w", err)
	}
	snapshot, err := json.Marshal(e.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO executions(`+executionCols+`) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.ScheduleID, e.AgentID, string(e.Status), string(e.ActionType),
		string(action), nullStrPtr(e.Result), nullStrPtr(e.SessionID),
		nullStrPtr(e.WorkTaskID), e.CostUSD, string(snapshot),
		fmtTime(e.StartedAt), nullTimePtr(e.CompletedAt),
	)
	return err
}

func (s *sqliteStore) GetExecution(ctx context.Context, id string) (*domain.Execution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+executionCols+` FROM executions WHERE id = ?`, id)
	e, err := scanExecution(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// UpdateExecution applies a partial update, enforcing the one-directional
// status machine against the row's current status.
func (s *sqliteStore) UpdateExecution(ctx context.Context, id string, u ExecUpdate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var cur string
	err = tx.QueryRowContext(ctx, `SELECT status FROM executions WHERE id = ?`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if !domain.CanTransition(domain.ExecStatus(cur), u.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, cur, u.Status)
	}

	set := []string{"status = ?"}
	args := []any{string(u.Status)}
	if u.Result != nil {
		set = append(set, "result = ?")
		args = append(args, *u.Result)
	}
	if u.SessionID != nil {
		set = append(set, "session_id = ?")
		args = append(args, *u.SessionID)
	}
	if u.WorkTaskID != nil {
		set = append(set, "work_task_id = ?")
		args = append(args, *u.WorkTaskID)
	}
	if u.CostUSD != nil {
		set = append(set, "cost_usd = ?")
		args = append(args, *u.CostUSD)
	}
	if u.CompletedAt != nil {
		set = append(set, "completed_at = ?")
		args = append(args, fmtTime(*u.CompletedAt))
	}
	args = append(args, id)

	if _, err := tx.ExecContext(ctx,
		`UPDATE executions SET `+strings.Join(set, ", ")+` WHERE id = ?`, args...); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) ListExecutionsBySchedule(ctx context.Context, scheduleID string, limit int) ([]domain.Execution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+executionCols+` FROM executions
		 WHERE schedule_id = ? ORDER BY started_at DESC, id LIMIT ?`,
		scheduleID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Execution
	for rows.Next() {
		e, err := scanExecution(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *sqliteStore) CountExecutionsByStatus(ctx context.Context, st domain.ExecStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM executions WHERE status = ?`, string(st)).Scan(&n)
	return n, err
}

func (s *sqliteStore) CountFailedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM executions WHERE status = ? AND started_at >= ?`,
		string(domain.ExecFailed), fmtTime(since)).Scan(&n)
	return n, err
}

func scanExecution(scan func(dest ...any) error) (*domain.Execution, error) {
	var (
		e         domain.Execution
		status    string
		action    string
		result    sql.NullString
		session   sql.NullString
		workTask  sql.NullString
		snapshot  string
		started   string
		completed sql.NullString
	)
	if err := scan(
		&e.ID, &e.ScheduleID, &e.AgentID, &status, &e.ActionType, &action,
		&result, &session, &workTask, &e.CostUSD, &snapshot, &started, &completed,
	); err != nil {
		return nil, err
	}
	e.Status = domain.ExecStatus(status)
	if err := json.Unmarshal([]byte(action), &e.Action); err != nil {
		return nil, fmt.Errorf("unmarshal action for execution %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(snapshot), &e.Snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot for execution %s: %w", e.ID, err)
	}
	e.Result = strPtr(result)
	e.SessionID = strPtr(session)
	e.WorkTaskID = strPtr(workTask)
	e.StartedAt = parseTime(started)
	e.CompletedAt = timePtr(completed)
	return &e, nil
}

// ---- audit ----

func (s *sqliteStore) AppendAudit(ctx context.Context, e domain.AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log(at, actor, action, detail) VALUES(?,?,?,?)`,
		fmtTime(e.At), e.Actor, e.Action, e.Detail,
	)
	return err
}

func (s *sqliteStore) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, actor, action, detail FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var e domain.AuditEntry
		var at string
		if err := rows.Scan(&at, &e.Actor, &e.Action, &e.Detail); err != nil {
			return nil, err
		}
		e.At = parseTime(at)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ---- helpers ----

// timeFormat is fixed-width so stored timestamps compare correctly as
// strings in SQL (RFC3339Nano trims trailing zeros and does not).
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func fmtTime(t time.Time) string { return t.UTC().Format(timeFormat) }

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func strPtr(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func timePtr(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t := parseTime(v.String)
	return &t
}

func nullStrPtr(v *string) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullFloatPtr(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullTimePtr(v *time.Time) any {
	if v == nil {
		return nil
	}
	return fmtTime(*v)
}
