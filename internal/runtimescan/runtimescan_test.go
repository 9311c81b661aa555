package runtimescan

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestParseVersion(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "semver", input: "claude 2.1.32", want: "2.1.32"},
		{name: "prefixed", input: "Codex CLI v1.4.2-beta.1", want: "1.4.2-beta.1"},
		{name: "fallback first line", input: "version unknown\nextra", want: "version unknown"},
		{name: "empty", input: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseVersion(tt.input); got != tt.want {
				t.Fatalf("parseVersion() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBinaryFor(t *testing.T) {
	if got := BinaryFor("claude-code"); got != "claude" {
		t.Errorf("BinaryFor(claude-code) = %q", got)
	}
	if got := BinaryFor("codex"); got != "codex" {
		t.Errorf("BinaryFor(codex) = %q", got)
	}
	if got := BinaryFor("aider"); got != "aider" {
		t.Errorf("BinaryFor passes unknown names through, got %q", got)
	}
}

func TestScanDetectsRuntimesAndExtras(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("script-based detection test is unix-only")
	}

	tmp := t.TempDir()
	mustWriteVersionScript(t, filepath.Join(tmp, "claude"), "claude", "1.0.0")
	mustWriteVersionScript(t, filepath.Join(tmp, "codex"), "codex", "2.0.0")
	mustWriteVersionScript(t, filepath.Join(tmp, "aider"), "aider", "3.0.0")

	t.Setenv("PATH", tmp)
	t.Setenv(extraBinsEnv, "aider")

	index := make(map[string]Runtime)
	for _, rt := range Scan() {
		index[rt.Name] = rt
	}

	for name, version := range map[string]string{
		"claude-code": "1.0.0",
		"codex":       "2.0.0",
		"aider":       "3.0.0",
	} {
		rec, ok := index[name]
		if !ok {
			t.Fatalf("expected %s to be detected", name)
		}
		if rec.Version != version {
			t.Fatalf("%s version = %q, want %q", name, rec.Version, version)
		}
		if rec.Path == "" {
			t.Fatalf("%s has no path", name)
		}
	}
}

func TestDetectMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	if _, ok := Detect("definitely-not-installed-anywhere"); ok {
		t.Error("Detect found a binary that does not exist")
	}
}

func mustWriteVersionScript(t *testing.T, path, name, version string) {
	t.Helper()
	script := fmt.Sprintf("#!/bin/sh\necho \"%s %s\"\n", name, version)
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("writing script %s: %v", path, err)
	}
}
