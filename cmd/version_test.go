package cmd

import (
	"bytes"
	"testing"
)

func TestVersionCommandProperties(t *testing.T) {
	if versionCmd.Use != "version" {
		t.Errorf("expected Use to be 'version', got %s", versionCmd.Use)
	}
	if versionCmd.Short == "" {
		t.Error("expected Short description to be set")
	}
	if versionCmd.Run == nil {
		t.Error("expected Run function to be set")
	}
}

func TestVersionCommandExecution(t *testing.T) {
	original := rootCmd.Version
	defer func() { rootCmd.Version = original }()
	rootCmd.Version = "1.2.3-test"

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, []string{})

	want := "mcphost version 1.2.3-test\n"
	if buf.String() != want {
		t.Errorf("expected output %q, got %q", want, buf.String())
	}
}

func TestVersionCommandWithEmptyVersion(t *testing.T) {
	original := rootCmd.Version
	defer func() { rootCmd.Version = original }()
	rootCmd.Version = ""

	var buf bytes.Buffer
	versionCmd.SetOut(&buf)
	versionCmd.Run(versionCmd, []string{})

	if !bytes.Contains(buf.Bytes(), []byte("mcphost version")) {
		t.Errorf("expected output to contain 'mcphost version', got %q", buf.String())
	}
}

func TestVersionRegisteredOnRoot(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c == versionCmd {
			return
		}
	}
	t.Error("expected versionCmd to be registered on rootCmd")
}
