package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	configPath string
	dbPath     string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	env := &cliTestEnv{
		configPath: filepath.Join(base, "config.toml"),
		dbPath:     filepath.Join(base, "data", "jobs.db"),
		baseDir:    base,
	}
	content := fmt.Sprintf(
		"[store]\nbackend = \"sqlite\"\nsqlite_path = %q\n\n[queue]\nconsumer_id = \"cli-tests\"\n\n[worker]\nheartbeat = 0.01\n\n[logging]\nlevel = \"error\"\n",
		env.dbPath,
	)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func appendConfig(t *testing.T, env *cliTestEnv, content string) {
	t.Helper()
	file, err := os.OpenFile(env.configPath, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open config: %v", err)
	}
	defer file.Close()
	if _, err := file.WriteString("\n" + content); err != nil {
		t.Fatalf("append config: %v", err)
	}
}

func runCLI(t *testing.T, env *cliTestEnv, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if env != nil {
		flags = append(flags, "--config", env.configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func mustRunCLI(t *testing.T, env *cliTestEnv, args ...string) string {
	t.Helper()
	out, stderr, err := runCLI(t, env, args...)
	if err != nil {
		t.Fatalf("mqas %s: %v\nstdout: %s\nstderr: %s", strings.Join(args, " "), err, out, stderr)
	}
	return out
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func queuedID(t *testing.T, output string) string {
	t.Helper()
	const prefix = "Job successfully queued, "
	line := strings.TrimSpace(output)
	if !strings.HasPrefix(line, prefix) {
		t.Fatalf("unexpected queue output %q", output)
	}
	return strings.TrimPrefix(line, prefix)
}
