package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeConfig(t *testing.T) string {
	dir := t.TempDir()
	cfg := fmt.Sprintf(`
cards:
  - name: main
    credentials: "u:p"
    card: "1234"
    purchases: 3
    amount_limits: [5, 10]
    day_limits: [1, 31]
state:
  backend: sqlite
database:
  sqlite_path: %s
executor:
  kind: dryrun
log:
  level: error
`, filepath.Join(dir, "reload.db"))
	path := filepath.Join(dir, "reloads.yaml")
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRunThenStatus(t *testing.T) {
	path := writeConfig(t)

	if _, err := execute(t, "run", "--config", path); err != nil {
		t.Fatalf("run: %v", err)
	}
	out, err := execute(t, "status", "-c", path)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "main") || !strings.Contains(out, "1/3") {
		t.Errorf("unexpected status output:\n%s", out)
	}

	// same day again: no duplicate reload
	if _, err := execute(t, "run", "--config", path); err != nil {
		t.Fatalf("second run: %v", err)
	}
	out, _ = execute(t, "status", "-c", path)
	if !strings.Contains(out, "1/3") {
		t.Errorf("expected progress unchanged after repeat run:\n%s", out)
	}
}

func TestRun_MissingConfig(t *testing.T) {
	if _, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config")
	}
}

func TestStatus_MergesRepeatedConfig(t *testing.T) {
	path := writeConfig(t)
	extra := filepath.Join(filepath.Dir(path), "more.yaml")
	more := `
cards:
  - name: spare
    credentials: "x:y"
    card: "9999"
    purchases: 2
    amount_limits: [1, 2]
    day_limits: [1, 31]
`
	if err := os.WriteFile(extra, []byte(more), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := execute(t, "run", "-c", path, "-c", extra); err != nil {
		t.Fatalf("run: %v", err)
	}
	out, err := execute(t, "status", "-c", path, "-c", extra)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "main") || !strings.Contains(out, "spare") || !strings.Contains(out, "1/2") {
		t.Errorf("expected both accounts in status:\n%s", out)
	}
}
