package cli

import (
	"bytes"
	"strings"
	"testing"
)

func TestVersionCommand(t *testing.T) {
	InitCLI()

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs([]string{"version"})

	if err := RootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out.String(), "BiliTrack Version") {
		t.Errorf("expected version output, got %q", out.String())
	}
}

func TestKeygenCommand(t *testing.T) {
	InitCLI()

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs([]string{"keygen"})

	if err := RootCmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	key := strings.TrimSpace(out.String())
	if len(key) != 64 {
		t.Errorf("expected 64 hex characters, got %d: %q", len(key), key)
	}
}

func TestServeRejectsMissingConfig(t *testing.T) {
	InitCLI()

	RootCmd.SetArgs([]string{"serve", "--config", "/nonexistent/config.yaml"})
	if err := RootCmd.Execute(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
