package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"culler/internal/phase"
)

type cliTestEnv struct {
	baseDir       string
	configPath    string
	quarantineDir string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		baseDir:       base,
		configPath:    filepath.Join(base, "config.toml"),
		quarantineDir: filepath.Join(base, "quarantine"),
	}

	contents := fmt.Sprintf(`[paths]
catalog_dir = %q
quarantine_dir = %q
log_dir = %q

[scan]
workers = 2

[logging]
format = "json"
level = "error"
`, filepath.Join(base, "catalog"), env.quarantineDir, filepath.Join(base, "logs"))

	if err := os.WriteFile(env.configPath, []byte(contents), 0o644); err != nil {
		t.Fatalf("write test config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append(args, "--config", env.configPath))
	err := cmd.Execute()
	return out.String(), err
}

func writeMedia(t *testing.T, path string, contents []byte, modTime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, contents, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, modTime, modTime); err != nil {
		t.Fatal(err)
	}
}

func TestFullWorkflowQuarantinesDuplicates(t *testing.T) {
	env := setupCLITestEnv(t)
	root := filepath.Join(env.baseDir, "photos")
	payload := []byte("identical photo bytes")
	base := time.Now().Add(-48 * time.Hour)

	writeMedia(t, filepath.Join(root, "orig.jpg"), payload, base)
	writeMedia(t, filepath.Join(root, "album", "copy.jpg"), payload, base.Add(time.Hour))
	writeMedia(t, filepath.Join(root, "unique.jpg"), []byte("one of a kind"), base)

	if _, err := runCLI(t, env, "--scan", root, "--flag-deletions"); err != nil {
		t.Fatalf("scan+flag failed: %v", err)
	}

	out, err := runCLI(t, env, "--execute-deletions", "--report")
	if err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if _, statErr := os.Stat(filepath.Join(root, "orig.jpg")); statErr != nil {
		t.Fatalf("original must survive: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(root, "unique.jpg")); statErr != nil {
		t.Fatalf("unique file must survive: %v", statErr)
	}
	if _, statErr := os.Stat(filepath.Join(root, "album", "copy.jpg")); !os.IsNotExist(statErr) {
		t.Fatalf("duplicate should be moved, stat err = %v", statErr)
	}

	quarantined := filepath.Join(env.quarantineDir, "photos", "album", "copy.jpg")
	data, readErr := os.ReadFile(quarantined)
	if readErr != nil {
		t.Fatalf("expected quarantined copy at %s: %v", quarantined, readErr)
	}
	if !bytes.Equal(data, payload) {
		t.Fatal("quarantined bytes differ from source")
	}

	if !strings.Contains(out, "orig.jpg") || !strings.Contains(out, "removed") {
		t.Fatalf("report missing expected content:\n%s", out)
	}
}

func TestFlagWithoutScanFailsPrecondition(t *testing.T) {
	env := setupCLITestEnv(t)

	_, err := runCLI(t, env, "--flag-deletions")
	if !errors.Is(err, phase.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
	if phase.ExitCode(err) != 1 {
		t.Fatalf("expected exit code 1, got %d", phase.ExitCode(err))
	}
}

func TestExecuteWithoutFlagFailsPrecondition(t *testing.T) {
	env := setupCLITestEnv(t)
	root := filepath.Join(env.baseDir, "photos")
	writeMedia(t, filepath.Join(root, "a.jpg"), []byte("x"), time.Now().Add(-time.Hour))

	if _, err := runCLI(t, env, "--scan", root); err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	if _, err := runCLI(t, env, "--execute-deletions"); !errors.Is(err, phase.ErrPrecondition) {
		t.Fatalf("expected precondition error, got %v", err)
	}
}

func TestModeFlagsAreMutuallyExclusive(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := runCLI(t, env, "--scan", env.baseDir, "--safety-mode", "--performance-mode"); err == nil {
		t.Fatal("expected mutual exclusion error")
	}
}

func TestJSONReportWithoutPhases(t *testing.T) {
	env := setupCLITestEnv(t)
	root := filepath.Join(env.baseDir, "photos")
	writeMedia(t, filepath.Join(root, "a.jpg"), []byte("x"), time.Now().Add(-time.Hour))

	if _, err := runCLI(t, env, "--scan", root); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	out, err := runCLI(t, env, "--json")
	if err != nil {
		t.Fatalf("report failed: %v", err)
	}
	if !strings.Contains(out, `"totals"`) || !strings.Contains(out, `"by_status"`) {
		t.Fatalf("unexpected JSON report:\n%s", out)
	}
}

func TestJSONReportWritesToFile(t *testing.T) {
	env := setupCLITestEnv(t)
	root := filepath.Join(env.baseDir, "photos")
	writeMedia(t, filepath.Join(root, "a.jpg"), []byte("x"), time.Now().Add(-time.Hour))

	if _, err := runCLI(t, env, "--scan", root); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	target := filepath.Join(env.baseDir, "report.json")
	if _, err := runCLI(t, env, "--json="+target); err != nil {
		t.Fatalf("report failed: %v", err)
	}
	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("expected report file: %v", err)
	}
	if !strings.Contains(string(data), `"totals"`) {
		t.Fatalf("unexpected report file contents:\n%s", data)
	}
}

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)
	root := filepath.Join(env.baseDir, "photos")
	writeMedia(t, filepath.Join(root, "a.jpg"), []byte("x"), time.Now().Add(-time.Hour))

	if _, err := runCLI(t, env, "--scan", root); err != nil {
		t.Fatalf("scan failed: %v", err)
	}

	out, err := runCLI(t, env, "status")
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out, "Health: ok") {
		t.Fatalf("expected healthy status:\n%s", out)
	}

	out, err = runCLI(t, env, "status", "--verify-moves")
	if err != nil {
		t.Fatalf("status --verify-moves failed: %v", err)
	}
	if !strings.Contains(out, "No quarantined files") {
		t.Fatalf("unexpected verify output:\n%s", out)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	tmp := t.TempDir()
	target := filepath.Join(tmp, "config.toml")
	out, err := runCLI(t, env, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	if !strings.Contains(out, "Wrote sample configuration") {
		t.Fatalf("unexpected output: %s", out)
	}
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, err := runCLI(t, env, "config", "init", "--path", target); err == nil {
		t.Fatal("expected error when target exists without --overwrite")
	}
}
