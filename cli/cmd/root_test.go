package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brotherdetjr/deltabanana/config"
	"github.com/brotherdetjr/deltabanana/faults"
)

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	root := newRootCommand()
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("version returned error: %v", err)
	}
	if !strings.HasPrefix(stdout, "deltabanana ") {
		t.Fatalf("unexpected version output %q", stdout)
	}
}

func TestConfigCheckReportsValidFile(t *testing.T) {
	t.Setenv(config.TokenEnvVar, "secret-token")

	path := filepath.Join(t.TempDir(), "deltabanana.yaml")
	content := "collections:\n" +
		"  - url: https://example.com/words.git\n" +
		"    path: greetings\n" +
		"    title: Greetings\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	_, stderr, err := executeCommand(t, "config", "check", "--config", path)
	if err != nil {
		t.Fatalf("config check returned error: %v", err)
	}
	if !strings.Contains(stderr, "configuration valid: 1 collections") {
		t.Fatalf("unexpected status output %q", stderr)
	}
}

func TestConfigCheckMissingFile(t *testing.T) {
	_, _, err := executeCommand(t, "config", "check", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	if !faults.IsCategory(err, faults.NotFoundError) {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
