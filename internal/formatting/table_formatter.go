package formatting

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	descutil "mcphost/pkg/strings"
)

// TableFormatter renders listings as rounded-border tables.
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a table formatter.
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{options: options}
}

func (f *TableFormatter) createTable(result *strings.Builder) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(result)
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) formatDescription(desc string) string {
	truncated := descutil.TruncateDescription(desc, descutil.DefaultDescriptionMaxLen)
	if truncated != desc && strings.HasSuffix(truncated, "...") {
		return strings.TrimSuffix(truncated, "...") + text.FgHiBlack.Sprint("...")
	}
	return truncated
}

func (f *TableFormatter) formatEmptyMessage(icon, message string) string {
	return fmt.Sprintf("%s %s\n", text.FgYellow.Sprint(icon), text.FgYellow.Sprint(message))
}

func (f *TableFormatter) FormatPlugins(rows []PluginRow) string {
	if len(rows) == 0 {
		return f.formatEmptyMessage("\U0001F4E6", "No plugins loaded")
	}

	var result strings.Builder
	t := f.createTable(&result)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("STATE"),
		text.FgHiCyan.Sprint("STATUS"),
		text.FgHiCyan.Sprint("DETAIL"),
	})
	for _, r := range rows {
		state := text.FgGreen.Sprint("enabled")
		if !r.Enabled {
			state = text.FgHiBlack.Sprint("disabled")
		}
		t.AppendRow(table.Row{
			text.FgHiCyan.Sprint(r.Name),
			state,
			formatIndicator(r.Indicator),
			f.formatDescription(r.StatusText),
		})
	}
	t.Render()

	fmt.Fprintf(&result, "\n\U0001F4E6 %s %s %s\n",
		text.FgHiBlue.Sprint("Total:"), text.FgHiWhite.Sprint(len(rows)), text.FgHiBlue.Sprint("plugins"))
	return result.String()
}

func (f *TableFormatter) FormatTools(rows []ToolRow) string {
	if len(rows) == 0 {
		return f.formatEmptyMessage("\U0001F4CB", "No tools found")
	}

	var result strings.Builder
	t := f.createTable(&result)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("NAME"),
		text.FgHiCyan.Sprint("PLUGIN"),
		text.FgHiCyan.Sprint("DESCRIPTION"),
	})
	for _, r := range rows {
		t.AppendRow(table.Row{
			text.FgHiCyan.Sprint(r.Exposed),
			r.Plugin,
			f.formatDescription(r.Description),
		})
	}
	t.Render()

	fmt.Fprintf(&result, "\n\U0001F527 %s %s %s\n",
		text.FgHiBlue.Sprint("Total:"), text.FgHiWhite.Sprint(len(rows)), text.FgHiBlue.Sprint("tools"))
	return result.String()
}

func (f *TableFormatter) FormatStats(rows []StatRow) string {
	if len(rows) == 0 {
		return f.formatEmptyMessage("\U0001F4CA", "No stats recorded")
	}

	var result strings.Builder
	t := f.createTable(&result)
	t.AppendHeader(table.Row{
		text.FgHiCyan.Sprint("TOOL"),
		text.FgHiCyan.Sprint("CALLS"),
		text.FgHiCyan.Sprint("OK"),
		text.FgHiCyan.Sprint("ERRORS"),
		text.FgHiCyan.Sprint("AVG MS"),
	})
	for _, r := range rows {
		t.AppendRow(table.Row{
			r.Tool,
			r.Calls,
			text.FgGreen.Sprint(r.Success),
			text.FgRed.Sprint(r.Errors),
			fmt.Sprintf("%.1f", r.AvgDurationMs),
		})
	}
	t.Render()
	return result.String()
}

func formatIndicator(indicator string) string {
	switch indicator {
	case "green":
		return text.FgGreen.Sprint("green")
	case "yellow":
		return text.FgYellow.Sprint("yellow")
	case "red":
		return text.FgRed.Sprint("red")
	default:
		return text.FgHiBlack.Sprint(indicator)
	}
}

func (f *TableFormatter) SetOptions(options Options) { f.options = options }
func (f *TableFormatter) GetOptions() Options         { return f.options }
