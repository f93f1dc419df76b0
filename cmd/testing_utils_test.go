package cmd

import (
	"bytes"
	"context"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/esicorp/securetransfer/internal/configs"
	logger "github.com/esicorp/securetransfer/internal/logging"
	"github.com/esicorp/securetransfer/internal/workflows"
)

// captureOutput captures both stdout and stderr during function execution.
func captureOutput(fn func() error) (string, error) {
	originalStdout := os.Stdout
	originalStderr := os.Stderr

	stdoutReader, stdoutWriter, _ := os.Pipe()
	stderrReader, stderrWriter, _ := os.Pipe()

	os.Stdout = stdoutWriter
	os.Stderr = stderrWriter

	outputChan := make(chan string, 2)

	go func() {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, stdoutReader); err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		outputChan <- buf.String()
	}()

	go func() {
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, stderrReader); err != nil {
			log.Fatalf("Failed to run copy command: %s", err)
		}
		outputChan <- buf.String()
	}()

	err := fn()

	stdoutWriter.Close()
	stderrWriter.Close()

	os.Stdout = originalStdout
	os.Stderr = originalStderr

	stdout := <-outputChan
	stderr := <-outputChan

	return stdout + stderr, err
}

// setupTestDir creates a base directory with a config file that keeps the
// SSH directory inside it.
func setupTestDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	content := "[paths]\nssh_dir = \"ssh\"\n"
	if err := os.WriteFile(filepath.Join(dir, configs.FileName), []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return dir
}

// runCLI executes the root command against dir with the given arguments.
func runCLI(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	return runCLIWithInput(t, dir, "", args...)
}

// runCLIWithInput is runCLI with scripted answers for prompts.
func runCLIWithInput(t *testing.T, dir, answers string, args ...string) (string, error) {
	t.Helper()
	return runCLIContext(t, context.Background(), dir, answers, args...)
}

// runCLIContext runs the root command under ctx. The context is always set
// explicitly since cobra keeps the last one on RootCmd.
func runCLIContext(t *testing.T, ctx context.Context, dir, answers string, args ...string) (string, error) {
	t.Helper()
	ResetGlobalState()
	t.Cleanup(ResetGlobalState)
	stdin = strings.NewReader(answers)

	full := append([]string{"--dir", dir, "--config", filepath.Join(dir, configs.FileName)}, args...)
	RootCmd.SetArgs(full)
	return captureOutput(func() error {
		return RootCmd.ExecuteContext(ctx)
	})
}

// testEnv builds the environment the CLI would build for dir, for preparing
// fixtures.
func testEnv(t *testing.T, dir string) *workflows.Env {
	t.Helper()
	cfg, err := configs.Load(filepath.Join(dir, configs.FileName))
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	e, err := workflows.NewEnv(cfg, dir, logger.Logger{})
	if err != nil {
		t.Fatalf("Failed to build environment: %v", err)
	}
	return e
}

// writeFile creates a file under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}
	return path
}
