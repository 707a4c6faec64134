package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tvrec/internal/lineup"
)

func TestConfigInitWritesConfigAndLineup(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	target := filepath.Join(home, "tvrec.toml")

	out, _, err := runCLI(t, []string{"config", "init", "--path", target}, filepath.Join(home, "x.sock"), "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration to "+target)
	requireContains(t, out, "Wrote sample lineup to")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file: %v", err)
	}

	lineupPath := filepath.Join(home, ".config", "tvrec", "lineup.yaml")
	programs, err := lineup.Load(lineupPath)
	if err != nil {
		t.Fatalf("load sample lineup: %v", err)
	}
	if len(programs.ListingNames()) == 0 {
		t.Fatal("expected sample lineup to contain listings")
	}

	_, _, err = runCLI(t, []string{"config", "init", "--path", target}, filepath.Join(home, "x.sock"), "")
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing config error, got %v", err)
	}

	out, _, err = runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, filepath.Join(home, "x.sock"), "")
	if err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
	requireContains(t, out, "Keeping existing lineup file")
}

func TestConfigValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Config path: "+env.configPath)
	requireContains(t, out, "(not present)")
	requireContains(t, out, "Configuration valid")

	if err := os.WriteFile(env.cfg.Paths.LineupFile, []byte("listings: [\n"), 0o644); err != nil {
		t.Fatalf("write broken lineup: %v", err)
	}
	_, _, err = runCLI(t, []string{"config", "validate"}, env.socketPath, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "invalid lineup") {
		t.Fatalf("expected invalid lineup error, got %v", err)
	}
}
