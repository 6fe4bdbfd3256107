package main

import (
	"os"
	"testing"
)

func TestBuildRootCmd_HasAllSubcommands(t *testing.T) {
	root := buildRootCmd()
	names := map[string]bool{}
	for _, cmd := range root.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"serve", "chat", "tools"} {
		if !names[want] {
			t.Errorf("expected a %q subcommand, got %v", want, names)
		}
	}
}

func TestResolveConfigPath_FlagWins(t *testing.T) {
	if got := resolveConfigPath("explicit.yaml"); got != "explicit.yaml" {
		t.Errorf("resolveConfigPath(explicit.yaml) = %q, want explicit.yaml", got)
	}
}

func TestResolveConfigPath_FallsBackToEnv(t *testing.T) {
	t.Setenv("MCPHOST_CONFIG", "env.yaml")
	if got := resolveConfigPath(""); got != "env.yaml" {
		t.Errorf("resolveConfigPath(\"\") = %q, want env.yaml", got)
	}
}

func TestResolveConfigPath_DefaultWhenUnset(t *testing.T) {
	os.Unsetenv("MCPHOST_CONFIG")
	if got := resolveConfigPath(""); got != defaultConfigPath {
		t.Errorf("resolveConfigPath(\"\") = %q, want %q", got, defaultConfigPath)
	}
}
