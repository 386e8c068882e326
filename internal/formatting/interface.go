// Package formatting renders plugins, tools, and telemetry stats in the
// output format a CLI invocation asked for.
//
// Adapted from the teacher's formatting package, which offered the same
// console/JSON/YAML/table shape over mcp.Tool/Resource/Prompt; this
// rework narrows the Formatter surface to the three listings mcphost's
// `plugins`/`tools`/`stats` verbs actually produce, since this runtime
// has no resources or prompts concept of its own.
package formatting

// OutputFormat is the desired rendering of a listing.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatTable   OutputFormat = "table"
)

// Options configures formatter behavior.
type Options struct {
	Format OutputFormat
	Quiet  bool
	Color  bool
}

// PluginRow is one row of a `plugins list` listing.
type PluginRow struct {
	Name        string
	Enabled     bool
	Indicator   string
	StatusText  string
	Description string
}

// ToolRow is one row of a `tools list` listing.
type ToolRow struct {
	Exposed     string
	Plugin      string
	Local       string
	Description string
}

// StatRow is one row of a `stats` listing.
type StatRow struct {
	Tool          string
	Calls         int64
	Success       int64
	Errors        int64
	AvgDurationMs float64
}

// Formatter renders the three listing kinds mcphost's CLI produces.
type Formatter interface {
	FormatPlugins(rows []PluginRow) string
	FormatTools(rows []ToolRow) string
	FormatStats(rows []StatRow) string

	SetOptions(options Options)
	GetOptions() Options
}

// Factory creates formatters for a given output format.
type Factory interface {
	CreateFormatter(options Options) Formatter
}

// NewFactory creates the default Factory.
func NewFactory() Factory {
	return &factory{}
}

type factory struct{}

func (f *factory) CreateFormatter(options Options) Formatter {
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	case FormatTable:
		return NewTableFormatter(options)
	case FormatConsole:
		fallthrough
	default:
		return NewConsoleFormatter(options)
	}
}
