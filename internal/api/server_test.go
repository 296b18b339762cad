package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CorvidLabs/corvid-agent-sub008/internal/domain"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/eventbus"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/scheduler"
	"github.com/CorvidLabs/corvid-agent-sub008/internal/storage"
	logx "github.com/CorvidLabs/corvid-agent-sub008/pkg/logx"
)

func newTestServer(t *testing.T) (*Server, storage.Store) {
	t.Helper()
	store, err := storage.Open(storage.Config{
		Path: filepath.Join(t.TempDir(), "api.db"),
	}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	bus := eventbus.New(logx.Nop())
	svc := scheduler.New(scheduler.Config{}, store, bus, scheduler.Collaborators{}, logx.Nop())
	return New(Config{}, svc, logx.Nop()), store
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func seedAgent(t *testing.T, store storage.Store) string {
	t.Helper()
	require.NoError(t, store.PutAgent(context.Background(), domain.Agent{
		ID: "agent-1", Name: "tester", Status: "active",
	}))
	return "agent-1"
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateAndGetSchedule(t *testing.T) {
	s, store := newTestServer(t)
	agentID := seedAgent(t, store)

	rec := do(t, s, http.MethodPost, "/v1/schedules", `{
		"agent_id": "`+agentID+`",
		"name": "hourly",
		"cron_expr": "0 * * * *",
		"actions": [{"type": "memory_maintenance"}]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created domain.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)
	assert.NotNil(t, created.NextRunAt)

	rec = do(t, s, http.MethodGet, "/v1/schedules/"+created.ID, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/schedules", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreateScheduleRejectsFastCadence(t *testing.T) {
	s, store := newTestServer(t)
	agentID := seedAgent(t, store)

	rec := do(t, s, http.MethodPost, "/v1/schedules", `{
		"agent_id": "`+agentID+`",
		"name": "too fast",
		"cron_expr": "* * * * *",
		"actions": [{"type": "memory_maintenance"}]
	}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "fires every")
}

func TestGetScheduleNotFound(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/v1/schedules/ghost", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerEndpoint(t *testing.T) {
	s, store := newTestServer(t)
	agentID := seedAgent(t, store)

	rec := do(t, s, http.MethodPost, "/v1/schedules", `{
		"agent_id": "`+agentID+`",
		"name": "manual",
		"actions": [{"type": "memory_maintenance"}]
	}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created domain.Schedule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = do(t, s, http.MethodPost, "/v1/schedules/"+created.ID+"/trigger", "")
	assert.Equal(t, http.StatusAccepted, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/schedules/ghost/trigger", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/v1/schedules/"+created.ID+"/executions", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var execs []domain.Execution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &execs))
	require.Len(t, execs, 1)
	// No memory collaborator wired, so the action records a failure.
	assert.Equal(t, domain.ExecFailed, execs[0].Status)
}

func TestApprovalAndCancelNotFound(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/v1/executions/ghost/approval", `{"approved": true}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodPost, "/v1/executions/ghost/cancel", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var st scheduler.Stats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
	assert.Equal(t, 2, st.MaxConcurrent)
	assert.False(t, st.Running)
}
