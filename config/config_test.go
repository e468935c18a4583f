package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/procmachine/machine"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[interpreter]
param-policy = "lenient"
alphabet = "abc"

[harness]
cases = 5
server-cases = 3
timeout = "250ms"
workers = 4
puzzles = "puzzles"

[store]
path = ".procmachine/state.db"

[log]
verbosity = 2
file = "pm.log"
`)

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if p, _ := c.Policy(); p != machine.Lenient {
		t.Errorf("policy = %v, want lenient", p)
	}
	a, err := c.AlphabetTable()
	if err != nil || a.Size() != 3 {
		t.Errorf("alphabet = %v, %v; want 3 characters", a, err)
	}
	if c.Harness.Cases != 5 || c.Harness.ServerCases != 3 || c.Harness.Workers != 4 {
		t.Errorf("harness = %+v", c.Harness)
	}
	if c.Harness.Timeout.Duration != 250*time.Millisecond {
		t.Errorf("timeout = %v, want 250ms", c.Harness.Timeout.Duration)
	}
	if want := filepath.Join(c.Dir, ".procmachine", "state.db"); c.StorePath() != want {
		t.Errorf("store path = %q, want %q", c.StorePath(), want)
	}
	if want := filepath.Join(c.Dir, "puzzles"); c.PuzzleDir() != want {
		t.Errorf("puzzle dir = %q, want %q", c.PuzzleDir(), want)
	}
	if c.Log.Verbosity != 2 || c.LogFile() != filepath.Join(c.Dir, "pm.log") {
		t.Errorf("log = %+v", c.Log)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[log]\nverbosity = 1\n")

	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if c.Harness.Cases != 15 || c.Harness.ServerCases != 10 || c.Harness.Workers != 2 {
		t.Errorf("harness defaults = %+v", c.Harness)
	}
	if c.Harness.Timeout.Duration != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", c.Harness.Timeout.Duration)
	}
	if p, _ := c.Policy(); p != machine.Strict {
		t.Errorf("policy = %v, want strict", p)
	}
	if a, _ := c.AlphabetTable(); a != machine.DefaultAlphabet {
		t.Error("expected the default alphabet")
	}
	if c.StorePath() != "" {
		t.Errorf("store path = %q, want in-memory", c.StorePath())
	}
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	for _, content := range []string{
		"[interpreter]\nparam-policy = \"sloppy\"\n",
		"[interpreter]\nalphabet = \"a a\"\n",
		"[harness]\ntimeout = \"soon\"\n",
		"[harness\n",
	} {
		dir := t.TempDir()
		writeConfig(t, dir, content)
		if _, err := Load(dir); err == nil {
			t.Errorf("Load(%q) should fail", content)
		}
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, dir, "[harness]\nworkers = 7\n")

	c, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if c.Harness.Workers != 7 {
		t.Errorf("workers = %d, want 7", c.Harness.Workers)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	c, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if c.Harness.Cases != 15 || c.Dir != "" {
		t.Errorf("expected defaults, got %+v", c)
	}
}
