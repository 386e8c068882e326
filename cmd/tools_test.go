package cmd

import "testing"

func TestToolsCommandProperties(t *testing.T) {
	if toolsCmd.Use != "tools" {
		t.Errorf("expected Use to be 'tools', got %s", toolsCmd.Use)
	}
	if toolsCmd.RunE == nil {
		t.Error("expected RunE to be set")
	}
}

func TestToolsFormatFlagDefault(t *testing.T) {
	flag := toolsCmd.Flags().Lookup("format")
	if flag == nil {
		t.Fatal("expected a --format flag")
	}
	if flag.DefValue != "console" {
		t.Errorf("expected default --format to be console, got %s", flag.DefValue)
	}
}

func TestToolsRegisteredOnRoot(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c == toolsCmd {
			return
		}
	}
	t.Error("expected toolsCmd to be registered on rootCmd")
}
