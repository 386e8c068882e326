package formatting

// JSONFormatter renders listings as indented JSON arrays.
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a JSON formatter.
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{options: options}
}

func (f *JSONFormatter) FormatPlugins(rows []PluginRow) string { return PrettyJSON(rows) }
func (f *JSONFormatter) FormatTools(rows []ToolRow) string     { return PrettyJSON(rows) }
func (f *JSONFormatter) FormatStats(rows []StatRow) string     { return PrettyJSON(rows) }

func (f *JSONFormatter) SetOptions(options Options) { f.options = options }
func (f *JSONFormatter) GetOptions() Options         { return f.options }
