package actions

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"autoplan/internal/workgraph"
)

// maxOutput caps the output kept on a Result.
const maxOutput = 16 * 1024

// ShellExecutor runs a task's command through the shell in Dir.
type ShellExecutor struct {
	Dir   string
	Shell string
	// Env overrides the environment (nil inherits).
	Env []string
}

func NewShellExecutor(dir string) *ShellExecutor {
	return &ShellExecutor{Dir: dir, Shell: "sh"}
}

func (s *ShellExecutor) Execute(ctx context.Context, task *workgraph.Task, timeout time.Duration) Result {
	command := strings.TrimSpace(task.Command)
	if command == "" {
		return Failed("shell task has no command", "")
	}
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	out, err := s.run(ctx, command)
	if err != nil {
		return failure(ctx, fmt.Errorf("command failed: %w", err), out)
	}
	return Succeeded(out)
}

func (s *ShellExecutor) run(ctx context.Context, command string) (string, error) {
	shell := s.Shell
	if shell == "" {
		shell = "sh"
	}
	cmd := exec.CommandContext(ctx, shell, "-c", command)
	cmd.Dir = s.Dir
	if s.Env != nil {
		cmd.Env = s.Env
	}
	// Let a killed shell return promptly even if children hold the pipes.
	cmd.WaitDelay = time.Second
	b, err := cmd.CombinedOutput()
	return truncate(string(b), maxOutput), err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "\n... (truncated)"
}
