package storage

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/fableflow/pkg/engine"
	"github.com/dshills/fableflow/pkg/flow"
)

func newTestRepository(t *testing.T) *SQLiteSessionRepository {
	t.Helper()
	repo, err := NewSQLiteSessionRepositoryWithPath(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func newTestTrace(sessionID, flowID string) *SessionTrace {
	return &SessionTrace{
		SessionID:     sessionID,
		FlowID:        flowID,
		Status:        string(engine.StatusFinished),
		StepCount:     5,
		FinishedAt:    time.Now(),
		ExecutionPath: []string{"n1", "n2", "n3"},
		Variables: map[string]interface{}{
			"player.health": 80.0,
			"player.alive":  true,
		},
		Console: []engine.ConsoleEntry{
			{Level: engine.LevelInfo, NodeID: "n1", Message: "Debug session started", Timestamp: time.Now()},
			{Level: engine.LevelError, NodeID: "n3", Message: "something went wrong", Timestamp: time.Now()},
		},
	}
}

func TestRepositorySaveAndGet(t *testing.T) {
	repo := newTestRepository(t)

	trace := newTestTrace("sess-1", "flow-1")
	require.NoError(t, repo.Save(trace))

	got, err := repo.Get("sess-1")
	require.NoError(t, err)

	assert.Equal(t, trace.SessionID, got.SessionID)
	assert.Equal(t, trace.FlowID, got.FlowID)
	assert.Equal(t, trace.Status, got.Status)
	assert.Equal(t, trace.StepCount, got.StepCount)
	assert.Equal(t, trace.ExecutionPath, got.ExecutionPath)
	assert.Equal(t, trace.Variables, got.Variables)
	assert.WithinDuration(t, trace.FinishedAt, got.FinishedAt, time.Second)

	require.Len(t, got.Console, 2)
	assert.Equal(t, engine.LevelInfo, got.Console[0].Level)
	assert.Equal(t, "n1", got.Console[0].NodeID)
	assert.Equal(t, "Debug session started", got.Console[0].Message)
	assert.Equal(t, engine.LevelError, got.Console[1].Level)
	assert.Equal(t, "something went wrong", got.Console[1].Message)
}

func TestRepositorySaveValidation(t *testing.T) {
	repo := newTestRepository(t)

	assert.Error(t, repo.Save(nil))
	assert.Error(t, repo.Save(&SessionTrace{}))
}

func TestRepositorySaveReplaces(t *testing.T) {
	repo := newTestRepository(t)

	trace := newTestTrace("sess-1", "flow-1")
	require.NoError(t, repo.Save(trace))

	trace.Status = string(engine.StatusPaused)
	trace.StepCount = 9
	trace.Console = trace.Console[:1]
	require.NoError(t, repo.Save(trace))

	got, err := repo.Get("sess-1")
	require.NoError(t, err)
	assert.Equal(t, string(engine.StatusPaused), got.Status)
	assert.Equal(t, 9, got.StepCount)
	assert.Len(t, got.Console, 1)
}

func TestRepositoryGetMissing(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestRepositoryGetEmptyID(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get("")
	assert.Error(t, err)
}

func TestRepositoryEmptyPathAndVariables(t *testing.T) {
	repo := newTestRepository(t)

	trace := &SessionTrace{
		SessionID:  "sess-bare",
		FlowID:     "flow-1",
		Status:     string(engine.StatusFinished),
		FinishedAt: time.Now(),
	}
	require.NoError(t, repo.Save(trace))

	got, err := repo.Get("sess-bare")
	require.NoError(t, err)
	assert.Empty(t, got.ExecutionPath)
	assert.Empty(t, got.Variables)
	assert.Empty(t, got.Console)
}

func TestRepositoryList(t *testing.T) {
	repo := newTestRepository(t)

	base := time.Now()
	for i := 0; i < 3; i++ {
		trace := newTestTrace(fmt.Sprintf("sess-%d", i), "flow-1")
		trace.FinishedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Save(trace))
	}
	other := newTestTrace("sess-other", "flow-2")
	other.FinishedAt = base.Add(time.Hour)
	require.NoError(t, repo.Save(other))

	traces, err := repo.List("", 0)
	require.NoError(t, err)
	require.Len(t, traces, 4)

	// Most recent first.
	assert.Equal(t, "sess-other", traces[0].SessionID)
	assert.Equal(t, "sess-2", traces[1].SessionID)
	assert.Equal(t, "sess-0", traces[3].SessionID)

	// Summaries omit the console transcript.
	assert.Empty(t, traces[0].Console)
}

func TestRepositoryListByFlow(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Save(newTestTrace("sess-1", "flow-1")))
	require.NoError(t, repo.Save(newTestTrace("sess-2", "flow-2")))

	traces, err := repo.List("flow-2", 0)
	require.NoError(t, err)
	require.Len(t, traces, 1)
	assert.Equal(t, "sess-2", traces[0].SessionID)
}

func TestRepositoryListLimit(t *testing.T) {
	repo := newTestRepository(t)

	base := time.Now()
	for i := 0; i < 5; i++ {
		trace := newTestTrace(fmt.Sprintf("sess-%d", i), "flow-1")
		trace.FinishedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Save(trace))
	}

	traces, err := repo.List("", 2)
	require.NoError(t, err)
	require.Len(t, traces, 2)
	assert.Equal(t, "sess-4", traces[0].SessionID)
}

func TestRepositoryDelete(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.Save(newTestTrace("sess-1", "flow-1")))
	require.NoError(t, repo.Delete("sess-1"))

	_, err := repo.Get("sess-1")
	assert.Error(t, err)

	// Deleting a missing session is not an error.
	assert.NoError(t, repo.Delete("sess-1"))
	assert.Error(t, repo.Delete(""))
}

func TestNewSessionTrace(t *testing.T) {
	eng := engine.NewEngine()

	env := flow.Environment{
		"player.health": &flow.VariableEntry{
			Value:         100.0,
			InitialValue:  100.0,
			Source:        flow.SourceInitial,
			BlockType:     flow.BlockTypeNumber,
			SheetShortcut: "player",
			VariableName:  "health",
		},
	}
	s := eng.Init(env, "n1", "flow-1")
	s.Status = engine.StatusFinished

	trace := NewSessionTrace(s)

	assert.Equal(t, s.SessionID.String(), trace.SessionID)
	assert.Equal(t, "flow-1", trace.FlowID)
	assert.Equal(t, string(engine.StatusFinished), trace.Status)
	assert.Equal(t, []string{"n1"}, trace.ExecutionPath)
	assert.Equal(t, 100.0, trace.Variables["player.health"])
	require.Len(t, trace.Console, 1)
	assert.Equal(t, "Debug session started", trace.Console[0].Message)
}
