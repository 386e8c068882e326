package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// CommandView adapts a Store to the command.Telemetry interface the
// `logs`/`stats` built-ins use, rendering entries as the short text lines
// the interactive shell prints.
type CommandView struct {
	s *Store

	mu       sync.Mutex
	uiActive bool
}

// NewCommandView wraps s for use as a command.Deps.Telemetry value.
func NewCommandView(s *Store) *CommandView {
	return &CommandView{s: s}
}

func (v *CommandView) Tail(n int) []string {
	entries := v.s.Tail(n)
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = formatEntry(e)
	}
	return out
}

// SubscribeUI attaches (on=true) or detaches (on=false) the shell as a
// telemetry subscriber. Detaching is a no-op on the underlying Store,
// which has no unsubscribe primitive; instead the printing callback
// checks uiActive before writing, matching "logs off" silencing output
// without needing to mutate the subscriber list.
func (v *CommandView) SubscribeUI(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if on && !v.uiActive {
		v.s.Subscribe(func(e CallLog) {
			v.mu.Lock()
			active := v.uiActive
			v.mu.Unlock()
			if active {
				fmt.Println(formatEntry(e))
			}
		})
	}
	v.uiActive = on
}

func (v *CommandView) ClearHistory() { v.s.ClearHistory() }
func (v *CommandView) ResetStats()   { v.s.ResetStats() }

func (v *CommandView) StatsSummary(tool string) string {
	snap := v.s.Stats()
	if tool != "" {
		per, ok := snap.PerTool[tool]
		if !ok {
			return fmt.Sprintf("no stats for %s", tool)
		}
		return formatToolStats(tool, per)
	}

	names := make([]string, 0, len(snap.PerTool))
	for name := range snap.PerTool {
		names = append(names, name)
	}
	sort.Strings(names)

	var sb strings.Builder
	fmt.Fprintf(&sb, "since %s\n", snap.Since.Format("2006-01-02T15:04:05Z07:00"))
	fmt.Fprintf(&sb, "total: %d calls, %d ok, %d errors\n", snap.Totals.Calls, snap.Totals.Success, snap.Totals.Errors)
	for _, name := range names {
		sb.WriteString(formatToolStats(name, snap.PerTool[name]))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func formatToolStats(name string, s ToolStats) string {
	return fmt.Sprintf("%-30s calls=%d ok=%d err=%d avgMs=%s", name, s.Calls, s.Success, s.Errors, avgMs(s))
}

func avgMs(s ToolStats) string {
	if s.Calls == 0 {
		return "0"
	}
	return fmt.Sprintf("%.1f", float64(s.TotalDurationMs)/float64(s.Calls))
}

func formatEntry(e CallLog) string {
	status := "ok"
	if !e.Success {
		status = "ERR " + e.Error
	}
	return fmt.Sprintf("%s %-8s %-30s %5dms %s", e.Timestamp.Format("15:04:05"), e.ClientID, e.Tool, e.DurationMs, status)
}
