package cmd

import (
	"bytes"
	"testing"
)

func TestSetVersion(t *testing.T) {
	original := rootCmd.Version
	defer func() { rootCmd.Version = original }()

	SetVersion("1.2.3-test")

	if rootCmd.Version != "1.2.3-test" {
		t.Errorf("expected version to be 1.2.3-test, got %s", rootCmd.Version)
	}
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "mcphost" {
		t.Errorf("expected Use to be 'mcphost', got %s", rootCmd.Use)
	}
	if rootCmd.Short == "" {
		t.Error("expected Short description to be set")
	}
	if rootCmd.Long == "" {
		t.Error("expected Long description to be set")
	}
	if !rootCmd.SilenceUsage {
		t.Error("expected SilenceUsage to be true")
	}
	if !rootCmd.SilenceErrors {
		t.Error("expected SilenceErrors to be true")
	}
	if rootCmd.RunE == nil {
		t.Error("expected RunE to be set so a bare invocation starts the interactive shell")
	}
}

func TestConfigPathFlagRegistered(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("config-path")
	if flag == nil {
		t.Fatal("expected a --config-path persistent flag")
	}
	if flag.DefValue != "" {
		t.Errorf("expected default --config-path to be empty, got %q", flag.DefValue)
	}
}

func TestRootCommandHelp(t *testing.T) {
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs([]string{"--help"})
	defer rootCmd.SetArgs(nil)

	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("error executing root help: %v", err)
	}
	if !bytes.Contains(buf.Bytes(), []byte("Model Context Protocol")) {
		t.Errorf("expected help output to describe the host, got: %q", buf.String())
	}
}
