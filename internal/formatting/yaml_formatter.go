package formatting

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter renders listings as YAML documents.
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a YAML formatter.
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{options: options}
}

func (f *YAMLFormatter) marshal(v any) string {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func (f *YAMLFormatter) FormatPlugins(rows []PluginRow) string { return f.marshal(rows) }
func (f *YAMLFormatter) FormatTools(rows []ToolRow) string     { return f.marshal(rows) }
func (f *YAMLFormatter) FormatStats(rows []StatRow) string     { return f.marshal(rows) }

func (f *YAMLFormatter) SetOptions(options Options) { f.options = options }
func (f *YAMLFormatter) GetOptions() Options         { return f.options }
