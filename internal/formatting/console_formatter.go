package formatting

import (
	"fmt"
	"strings"
)

// ConsoleFormatter renders plain, unstyled listings.
type ConsoleFormatter struct {
	options Options
}

// NewConsoleFormatter creates a console formatter.
func NewConsoleFormatter(options Options) Formatter {
	return &ConsoleFormatter{options: options}
}

func (f *ConsoleFormatter) FormatPlugins(rows []PluginRow) string {
	if len(rows) == 0 {
		return "No plugins loaded."
	}
	var out []string
	out = append(out, fmt.Sprintf("Loaded plugins (%d):", len(rows)))
	for i, r := range rows {
		state := "enabled"
		if !r.Enabled {
			state = "disabled"
		}
		out = append(out, fmt.Sprintf("  %d. %-20s %-10s %s (%s)", i+1, r.Name, state, r.Indicator, r.StatusText))
	}
	return strings.Join(out, "\n")
}

func (f *ConsoleFormatter) FormatTools(rows []ToolRow) string {
	if len(rows) == 0 {
		return "No tools available."
	}
	var out []string
	out = append(out, fmt.Sprintf("Available tools (%d):", len(rows)))
	for i, r := range rows {
		out = append(out, fmt.Sprintf("  %d. %-30s - %s", i+1, r.Exposed, r.Description))
	}
	return strings.Join(out, "\n")
}

func (f *ConsoleFormatter) FormatStats(rows []StatRow) string {
	if len(rows) == 0 {
		return "No stats recorded."
	}
	var out []string
	for _, r := range rows {
		out = append(out, fmt.Sprintf("%-30s calls=%d ok=%d err=%d avgMs=%.1f",
			r.Tool, r.Calls, r.Success, r.Errors, r.AvgDurationMs))
	}
	return strings.Join(out, "\n")
}

func (f *ConsoleFormatter) SetOptions(options Options) { f.options = options }
func (f *ConsoleFormatter) GetOptions() Options         { return f.options }
