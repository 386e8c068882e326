package telemetry

import (
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, capacity int) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := NewWithCapacity(dir, capacity)
	require.NoError(t, err)
	t.Cleanup(s.Shutdown)
	return s
}

func TestLogAppendsAndTailReturnsOldestFirst(t *testing.T) {
	s := newTestStore(t, 10)
	s.Log(CallLog{Timestamp: time.Now(), Tool: "echo_say", ClientID: "cli", Success: true})
	s.Log(CallLog{Timestamp: time.Now(), Tool: "echo_shout", ClientID: "cli", Success: true})

	tail := s.Tail(0)
	require.Len(t, tail, 2)
	assert.Equal(t, "echo_say", tail[0].Tool)
	assert.Equal(t, "echo_shout", tail[1].Tool)
}

func TestRingBufferDropsOldestOverCapacity(t *testing.T) {
	s := newTestStore(t, 3)
	for i := 0; i < 5; i++ {
		s.Log(CallLog{Timestamp: time.Now(), Tool: "t" + string(rune('0'+i)), Success: true})
	}
	tail := s.Tail(0)
	require.Len(t, tail, 3)
	assert.Equal(t, "t2", tail[0].Tool)
	assert.Equal(t, "t4", tail[2].Tool)
}

func TestStatsAccumulate(t *testing.T) {
	s := newTestStore(t, 10)
	s.Log(CallLog{Timestamp: time.Now(), Tool: "echo_say", Success: true, DurationMs: 10, RequestBytes: 5, ResponseBytes: 7})
	s.Log(CallLog{Timestamp: time.Now(), Tool: "echo_say", Success: false, DurationMs: 20, RequestBytes: 3, ResponseBytes: 0})

	stats := s.Stats()
	per := stats.PerTool["echo_say"]
	assert.Equal(t, int64(2), per.Calls)
	assert.Equal(t, int64(1), per.Success)
	assert.Equal(t, int64(1), per.Errors)
	assert.Equal(t, int64(30), per.TotalDurationMs)
	assert.Equal(t, int64(2), stats.Totals.Calls)
}

func TestResetStatsClearsCountersAndAdvancesSince(t *testing.T) {
	s := newTestStore(t, 10)
	s.Log(CallLog{Timestamp: time.Now(), Tool: "echo_say", Success: true})
	before := s.Stats().Since

	time.Sleep(time.Millisecond)
	s.ResetStats()

	after := s.Stats()
	assert.Empty(t, after.PerTool)
	assert.True(t, after.Since.After(before))
}

func TestSubscribePanicIsolation(t *testing.T) {
	s := newTestStore(t, 10)
	var gotSecond bool
	s.Subscribe(func(CallLog) { panic("boom") })
	s.Subscribe(func(CallLog) { gotSecond = true })

	assert.NotPanics(t, func() {
		s.Log(CallLog{Timestamp: time.Now(), Tool: "echo_say", Success: true})
	})
	assert.True(t, gotSecond)
}

func TestAppendJournalWritesOneJSONLinePerCall(t *testing.T) {
	dir := t.TempDir()
	s, err := NewWithCapacity(dir, 10)
	require.NoError(t, err)
	defer s.Shutdown()

	now := time.Now()
	s.Log(CallLog{Timestamp: now, Tool: "echo_say", ClientID: "cli", Success: true})

	// The write queue is asynchronous; give it a moment to land.
	deadline := time.Now().Add(2 * time.Second)
	path := filepath.Join(dir, "calls-"+now.Format("2006-01-02")+".jsonl")
	var data []byte
	for time.Now().Before(deadline) {
		data, err = os.ReadFile(path)
		if err == nil && len(data) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.NoError(t, err)

	var decoded CallLog
	require.NoError(t, json.Unmarshal(data[:len(data)-1], &decoded))
	assert.Equal(t, "echo_say", decoded.Tool)
}

func TestHandlerExposesCallCountersAfterLog(t *testing.T) {
	s := newTestStore(t, 10)
	s.Log(CallLog{Timestamp: time.Now(), Tool: "echo_say", ClientID: "cli", Success: true, DurationMs: 5})
	s.Log(CallLog{Timestamp: time.Now(), Tool: "echo_say", ClientID: "cli", Success: false, DurationMs: 3})

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, `mcphost_tool_calls_total{tool="echo_say"} 2`)
	assert.Contains(t, body, `mcphost_tool_errors_total{tool="echo_say"} 1`)
	assert.True(t, strings.Contains(body, "mcphost_tool_call_duration_ms"))
}

func TestNewDegradesToMemoryOnlyWhenStateDirUnavailable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	// A plain file in the way of the state dir's path makes MkdirAll fail.
	unusable := filepath.Join(blocker, "logs")

	s, err := NewWithCapacity(unusable, 10)
	require.NoError(t, err, "telemetry failures must not abort startup")
	defer s.Shutdown()

	s.Log(CallLog{Timestamp: time.Now(), Tool: "echo_say", ClientID: "cli", Success: true})

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.Totals.Calls)

	_, statErr := os.Stat(unusable)
	assert.True(t, os.IsNotExist(statErr), "memory-only store must not create the journal directory")
}
