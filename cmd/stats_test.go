package cmd

import "testing"

func TestStatsCommandProperties(t *testing.T) {
	if statsCmd.Use != "stats" {
		t.Errorf("expected Use to be 'stats', got %s", statsCmd.Use)
	}
	if statsCmd.RunE == nil {
		t.Error("expected RunE to be set")
	}
}

func TestStatsFormatFlagDefault(t *testing.T) {
	flag := statsCmd.Flags().Lookup("format")
	if flag == nil {
		t.Fatal("expected a --format flag")
	}
	if flag.DefValue != "console" {
		t.Errorf("expected default --format to be console, got %s", flag.DefValue)
	}
}

func TestStatsRegisteredOnRoot(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c == statsCmd {
			return
		}
	}
	t.Error("expected statsCmd to be registered on rootCmd")
}
