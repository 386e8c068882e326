// Package telemetry implements the persistent call log and aggregated
// statistics store (spec §4.5): a bounded in-memory ring buffer, an
// append-only daily JSONL journal, and a debounced stats.json writer,
// all serialized through one write queue so concurrent calls never
// interleave bytes within a line.
//
// Grounded on the teacher's XDG-style state-directory convention
// (internal/config/loader.go, internal/agent/oauth/token_store.go use
// os.UserHomeDir + filepath.Join under a dotted directory) and its
// single-goroutine worker-queue idiom used for serialized background
// work elsewhere in the aggregator.
package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mcphost/pkg/logging"
)

const (
	defaultCapacity = 1000
	statsDebounce   = time.Second
)

// CallLog is one recorded tool invocation.
type CallLog struct {
	Timestamp    time.Time `json:"ts"`
	ClientID     string    `json:"client"`
	Tool         string    `json:"tool"`
	Params       any       `json:"params"`
	Success      bool      `json:"ok"`
	Error        string    `json:"err,omitempty"`
	DurationMs   int64     `json:"ms"`
	RequestBytes int       `json:"reqBytes"`
	ResponseBytes int      `json:"resBytes"`
}

// ToolStats is the aggregated counters for one fully-qualified tool name.
type ToolStats struct {
	Calls             int64     `json:"calls"`
	Success           int64     `json:"success"`
	Errors            int64     `json:"errors"`
	TotalDurationMs   int64     `json:"totalDurationMs"`
	TotalRequestBytes int64     `json:"totalRequestBytes"`
	TotalResponseBytes int64    `json:"totalResponseBytes"`
	LastUsed          time.Time `json:"lastUsed"`
}

// StatsSnapshot is the full persisted stats.json shape.
type StatsSnapshot struct {
	Since   time.Time            `json:"since"`
	Totals  ToolStats            `json:"totals"`
	PerTool map[string]ToolStats `json:"perTool"`
}

// Store owns the circular call-log buffer, per-tool stats, and the
// background persistence queue.
type Store struct {
	mu       sync.RWMutex
	capacity int
	buffer   []CallLog
	next     int
	filled   bool

	stats StatsSnapshot

	subsMu sync.RWMutex
	subs   []func(CallLog)

	stateDir   string
	memoryOnly bool
	writeQueue chan func()
	done       chan struct{}

	debounceMu    sync.Mutex
	debounceTimer *time.Timer

	metrics *metrics
}

// New creates a Store rooted at stateDir (typically <home>/.mcp-cli/logs),
// with the default ring-buffer capacity of 1000.
func New(stateDir string) (*Store, error) {
	return NewWithCapacity(stateDir, defaultCapacity)
}

// NewWithCapacity is New with an explicit ring-buffer size, used by tests.
//
// A telemetry failure must never keep the host from starting (spec §4.5,
// §7): if stateDir cannot be created, the store degrades to an
// in-memory-only ring buffer and skips the JSONL journal and stats.json
// writer instead of returning an error.
func NewWithCapacity(stateDir string, capacity int) (*Store, error) {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	memoryOnly := false
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		logging.Error("Telemetry", err, "creating state dir %s, falling back to in-memory-only telemetry", stateDir)
		memoryOnly = true
	}
	s := &Store{
		capacity:   capacity,
		buffer:     make([]CallLog, capacity),
		stateDir:   stateDir,
		memoryOnly: memoryOnly,
		writeQueue: make(chan func(), 256),
		done:       make(chan struct{}),
		stats: StatsSnapshot{
			Since:   time.Now(),
			PerTool: make(map[string]ToolStats),
		},
		metrics: newMetrics(),
	}
	go s.runWriteQueue()
	return s, nil
}

// DefaultStateDir returns "<home>/.mcp-cli/logs", creating no directories.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".mcp-cli", "logs"), nil
}

func (s *Store) runWriteQueue() {
	for {
		select {
		case fn := <-s.writeQueue:
			fn()
		case <-s.done:
			// Drain whatever is already queued before exiting, so Shutdown
			// can rely on every prior Log call's writes having landed.
			for {
				select {
				case fn := <-s.writeQueue:
					fn()
				default:
					return
				}
			}
		}
	}
}

// Shutdown stops the write queue after draining pending work. A stats.json
// write still waiting on its debounce timer is queued immediately, and
// Shutdown returns only once every queued write has run.
func (s *Store) Shutdown() {
	s.debounceMu.Lock()
	if s.debounceTimer != nil && s.debounceTimer.Stop() {
		snapshot := s.Stats()
		s.writeQueue <- func() { s.writeStatsFile(snapshot) }
	}
	s.debounceMu.Unlock()

	flushed := make(chan struct{})
	s.writeQueue <- func() { close(flushed) }
	<-flushed
	close(s.done)
}

// Subscribe attaches cb to receive every newly-appended CallLog
// synchronously. A panicking subscriber is recovered so it cannot affect
// other subscribers or the caller.
func (s *Store) Subscribe(cb func(CallLog)) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subs = append(s.subs, cb)
}

// Log appends entry to the ring buffer, notifies subscribers, updates
// stats, and enqueues the JSONL append and debounced stats.json write.
func (s *Store) Log(entry CallLog) {
	s.mu.Lock()
	s.buffer[s.next] = entry
	s.next = (s.next + 1) % s.capacity
	if s.next == 0 {
		s.filled = true
	}
	s.updateStatsLocked(entry)
	snapshot := s.cloneStatsLocked()
	s.mu.Unlock()

	s.metrics.observe(entry)
	s.notifySubscribers(entry)

	s.writeQueue <- func() { s.appendJournal(entry) }
	s.scheduleStatsWrite(snapshot)
}

func (s *Store) notifySubscribers(entry CallLog) {
	s.subsMu.RLock()
	subs := make([]func(CallLog), len(s.subs))
	copy(subs, s.subs)
	s.subsMu.RUnlock()

	for _, cb := range subs {
		func() {
			defer func() { _ = recover() }()
			cb(entry)
		}()
	}
}

func (s *Store) updateStatsLocked(entry CallLog) {
	per := s.stats.PerTool[entry.Tool]
	per.Calls++
	if entry.Success {
		per.Success++
	} else {
		per.Errors++
	}
	per.TotalDurationMs += entry.DurationMs
	per.TotalRequestBytes += int64(entry.RequestBytes)
	per.TotalResponseBytes += int64(entry.ResponseBytes)
	per.LastUsed = entry.Timestamp
	s.stats.PerTool[entry.Tool] = per

	s.stats.Totals.Calls++
	if entry.Success {
		s.stats.Totals.Success++
	} else {
		s.stats.Totals.Errors++
	}
	s.stats.Totals.TotalDurationMs += entry.DurationMs
	s.stats.Totals.TotalRequestBytes += int64(entry.RequestBytes)
	s.stats.Totals.TotalResponseBytes += int64(entry.ResponseBytes)
	s.stats.Totals.LastUsed = entry.Timestamp
}

func (s *Store) cloneStatsLocked() StatsSnapshot {
	perTool := make(map[string]ToolStats, len(s.stats.PerTool))
	for k, v := range s.stats.PerTool {
		perTool[k] = v
	}
	return StatsSnapshot{Since: s.stats.Since, Totals: s.stats.Totals, PerTool: perTool}
}

// Tail returns up to n most recent entries, oldest first.
func (s *Store) Tail(n int) []CallLog {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.orderedLocked()
	if n <= 0 || n > len(all) {
		n = len(all)
	}
	return append([]CallLog(nil), all[len(all)-n:]...)
}

func (s *Store) orderedLocked() []CallLog {
	if !s.filled {
		return append([]CallLog(nil), s.buffer[:s.next]...)
	}
	out := make([]CallLog, 0, s.capacity)
	out = append(out, s.buffer[s.next:]...)
	out = append(out, s.buffer[:s.next]...)
	return out
}

// ClearHistory empties the in-memory ring buffer. Persisted stats and the
// JSONL journal are untouched.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = make([]CallLog, s.capacity)
	s.next = 0
	s.filled = false
}

// Stats returns a snapshot of the current aggregated statistics.
func (s *Store) Stats() StatsSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cloneStatsLocked()
}

// ResetStats rewrites the stats with a fresh "since" timestamp, discarding
// all accumulated counters.
func (s *Store) ResetStats() {
	s.mu.Lock()
	s.stats = StatsSnapshot{Since: time.Now(), PerTool: make(map[string]ToolStats)}
	snapshot := s.cloneStatsLocked()
	s.mu.Unlock()
	s.scheduleStatsWrite(snapshot)
}

func (s *Store) appendJournal(entry CallLog) {
	if s.memoryOnly {
		return
	}
	path := filepath.Join(s.stateDir, fmt.Sprintf("calls-%s.jsonl", entry.Timestamp.Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logging.Error("Telemetry", err, "opening journal %s", path)
		return
	}
	defer f.Close()

	line, err := json.Marshal(entry)
	if err != nil {
		logging.Error("Telemetry", err, "marshaling call log entry")
		return
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		logging.Error("Telemetry", err, "appending to journal %s", path)
	}
}

func (s *Store) scheduleStatsWrite(snapshot StatsSnapshot) {
	s.debounceMu.Lock()
	defer s.debounceMu.Unlock()
	if s.debounceTimer != nil {
		s.debounceTimer.Stop()
	}
	s.debounceTimer = time.AfterFunc(statsDebounce, func() {
		s.writeQueue <- func() { s.writeStatsFile(snapshot) }
	})
}

func (s *Store) writeStatsFile(snapshot StatsSnapshot) {
	if s.memoryOnly {
		return
	}
	path := filepath.Join(s.stateDir, "stats.json")
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		logging.Error("Telemetry", err, "marshaling stats snapshot")
		return
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		logging.Error("Telemetry", err, "writing %s", path)
	}
}
