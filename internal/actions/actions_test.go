package actions

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoplan/internal/workgraph"
)

type fakeGenerator struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeGenerator) GenerateJSON(_ context.Context, prompt, _ string, _ any) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestDispatcherRoutesByExecutorKind(t *testing.T) {
	var got []string
	record := func(kind string) Executor {
		return ExecutorFunc(func(_ context.Context, task *workgraph.Task, _ time.Duration) Result {
			got = append(got, kind+":"+task.ID)
			return Succeeded("")
		})
	}
	d := NewDispatcher().Register(workgraph.ExecutorAgent, record("agent")).Register(workgraph.ExecutorShell, record("shell"))

	assert.True(t, d.Execute(context.Background(), &workgraph.Task{ID: "a"}, 0).Success)
	assert.True(t, d.Execute(context.Background(), &workgraph.Task{ID: "b", Executor: "shell"}, 0).Success)
	res := d.Execute(context.Background(), &workgraph.Task{ID: "c", Executor: "robot"}, 0)
	assert.False(t, res.Success)
	assert.Contains(t, res.Reason, "robot")
	assert.Equal(t, []string{"agent:a", "shell:b"}, got)
}

func TestShellExecutor(t *testing.T) {
	dir := t.TempDir()
	sh := NewShellExecutor(dir)

	testCases := []struct {
		name        string
		command     string
		timeout     time.Duration
		wantSuccess bool
		wantReason  string
		wantOutput  string
	}{
		{name: "Success", command: "echo hello > out.txt && cat out.txt", timeout: 5 * time.Second, wantSuccess: true, wantOutput: "hello\n"},
		{name: "Non-zero exit", command: "echo nope; exit 3", timeout: 5 * time.Second, wantReason: "command failed", wantOutput: "nope\n"},
		{name: "Timeout", command: "sleep 5", timeout: 50 * time.Millisecond, wantReason: ReasonTimeout},
		{name: "Empty command", command: "  ", wantReason: "no command"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			res := sh.Execute(context.Background(), &workgraph.Task{ID: "x", Executor: "shell", Command: tc.command}, tc.timeout)
			assert.Equal(t, tc.wantSuccess, res.Success)
			if tc.wantReason != "" {
				assert.Contains(t, res.Reason, tc.wantReason)
			}
			if tc.wantOutput != "" {
				assert.Equal(t, tc.wantOutput, res.Output)
			}
		})
	}
	assert.FileExists(t, filepath.Join(dir, "out.txt"))
}

func TestAgentExecutor(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "spec.txt"), []byte("make it blue"), 0o644))
	task := &workgraph.Task{
		ID:      "t1",
		Title:   "Implement(A)",
		Intent:  "Carry out Implement(A)",
		Inputs:  []string{"spec.txt", "missing.txt"},
		Outputs: []string{"src/a.go"},
		DefinitionOfDone: []workgraph.Criterion{
			{Kind: workgraph.DoneFile, Value: "src/*.go"},
		},
	}

	testCases := []struct {
		name        string
		gen         *fakeGenerator
		wantSuccess bool
		wantReason  string
	}{
		{
			name:        "Applies files on success",
			gen:         &fakeGenerator{reply: "```json\n{\"success\": true, \"summary\": \"done\", \"files\": [{\"path\": \"src/a.go\", \"content\": \"package a\\n\"}]}\n```"},
			wantSuccess: true,
		},
		{
			name:       "Agent reports failure",
			gen:        &fakeGenerator{reply: `{"success": false, "summary": "cannot reach spec"}`},
			wantReason: "cannot reach spec",
		},
		{
			name:       "Invalid JSON",
			gen:        &fakeGenerator{reply: "sure thing!"},
			wantReason: "not valid JSON",
		},
		{
			name:       "Path outside workspace",
			gen:        &fakeGenerator{reply: `{"success": true, "summary": "x", "files": [{"path": "../evil", "content": "x"}]}`},
			wantReason: "escapes workspace",
		},
		{
			name:       "Provider timeout",
			gen:        &fakeGenerator{err: context.DeadlineExceeded},
			wantReason: ReasonTimeout,
		},
		{
			name:       "Provider error",
			gen:        &fakeGenerator{err: errors.New("quota exceeded")},
			wantReason: "agent call failed",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			a := NewAgentExecutor(tc.gen, "", dir)
			res := a.Execute(context.Background(), task, time.Second)
			assert.Equal(t, tc.wantSuccess, res.Success)
			if tc.wantReason != "" {
				assert.Contains(t, res.Reason, tc.wantReason)
			}
			assert.Contains(t, tc.gen.prompt, "make it blue")
			assert.Contains(t, tc.gen.prompt, "file: src/*.go")
			assert.NotContains(t, tc.gen.prompt, "missing.txt")
		})
	}

	data, err := os.ReadFile(filepath.Join(dir, "src", "a.go"))
	require.NoError(t, err)
	assert.Equal(t, "package a\n", string(data))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(dir), "evil"))
}

func TestStubExecutor(t *testing.T) {
	stub := NewStubExecutor()
	stub.Fail["t2"] = "boom"
	stub.Fail["Show(B)"] = "flaky"

	assert.True(t, stub.Execute(context.Background(), &workgraph.Task{ID: "t1"}, 0).Success)
	assert.Equal(t, "boom", stub.Execute(context.Background(), &workgraph.Task{ID: "t2"}, 0).Reason)
	assert.Equal(t, "flaky", stub.Execute(context.Background(), &workgraph.Task{ID: "t3", Title: "Show(B)"}, 0).Reason)

	stub.Delay = time.Second
	res := stub.Execute(context.Background(), &workgraph.Task{ID: "t4"}, 10*time.Millisecond)
	assert.Equal(t, ReasonTimeout, res.Reason)
	assert.Equal(t, []string{"t1", "t2", "t3", "t4"}, stub.Calls())
}

func TestVerifier(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "internal", "app"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "internal", "app", "app.go"), []byte("package app\n\nfunc Run() {}\n"), 0o644))
	v := NewVerifier(dir)

	testCases := []struct {
		name     string
		criteria []workgraph.Criterion
		wantErr  []string
	}{
		{name: "No criteria"},
		{
			name: "All met",
			criteria: []workgraph.Criterion{
				{Kind: workgraph.DoneCommand, Value: "test -f internal/app/app.go"},
				{Kind: workgraph.DoneFile, Value: "./internal/**/*.go"},
				{Kind: workgraph.DoneCode, Value: "internal/**/*.go::func Run\\("},
			},
		},
		{
			name: "Every unmet item is reported",
			criteria: []workgraph.Criterion{
				{Kind: workgraph.DoneCommand, Value: "exit 1"},
				{Kind: workgraph.DoneFile, Value: "docs/*.md"},
				{Kind: workgraph.DoneCode, Value: "internal/app/app.go::func Stop"},
				{Kind: workgraph.DoneCode, Value: "no separator"},
				{Kind: workgraph.DoneFile, Value: "/etc/passwd"},
			},
			wantErr: []string{"definition of done not met", `command "exit 1"`, "no matching file", "pattern not found", "path::regex", "invalid pattern"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Verify(context.Background(), &workgraph.Task{ID: "x", DefinitionOfDone: tc.criteria})
			if len(tc.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tc.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}
