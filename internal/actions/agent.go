package actions

import (
	"context"
	"fmt"
	"time"

	"autoplan/internal/actions/llm"
	"autoplan/internal/actions/system"
	"autoplan/internal/llm_client"
	"autoplan/internal/workgraph"
)

// maxInputBytes caps how much of each input file goes into the prompt.
const maxInputBytes = 32 * 1024

// Generator is the part of llm_client.Provider the agent needs.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error)
}

var _ Generator = llm_client.Provider(nil)

// AgentExecutor hands a task to an LLM and applies the file edits it returns
// inside Dir.
type AgentExecutor struct {
	LLM   Generator
	Model string
	Dir   string
}

func NewAgentExecutor(gen Generator, model, dir string) *AgentExecutor {
	return &AgentExecutor{LLM: gen, Model: model, Dir: dir}
}

func (a *AgentExecutor) Execute(ctx context.Context, task *workgraph.Task, timeout time.Duration) Result {
	if a.LLM == nil {
		return Failed(llm_client.ErrNotInitialized.Error(), "")
	}
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	brief := llm.Brief{
		Title:    task.Title,
		Intent:   task.Intent,
		Outputs:  task.Outputs,
		Attempts: task.Attempts,
		LastFail: task.FailureReason,
	}
	for _, c := range task.DefinitionOfDone {
		brief.Done = append(brief.Done, fmt.Sprintf("%s: %s", c.Kind, c.Value))
	}
	for _, in := range task.Inputs {
		content, truncated, err := system.ReadFile(a.Dir, in, maxInputBytes)
		if err != nil {
			// Inputs may be produced by a later task or be globs.
			continue
		}
		brief.Inputs = append(brief.Inputs, llm.FileContext{Path: in, Content: content, Truncated: truncated})
	}

	raw, err := a.LLM.GenerateJSON(ctx, llm.BuildPrompt(brief), a.Model, llm.ReplySchema)
	if err != nil {
		return failure(ctx, fmt.Errorf("agent call failed: %w", err), "")
	}
	reply, err := llm.ParseReply(raw)
	if err != nil {
		return Failed(err.Error(), raw)
	}
	for _, f := range reply.Files {
		if f.Delete {
			err = system.DeleteFile(a.Dir, f.Path)
		} else {
			err = system.WriteFileAtomic(a.Dir, f.Path, f.Content)
		}
		if err != nil {
			return Failed(fmt.Sprintf("apply %s: %v", f.Path, err), reply.Summary)
		}
	}
	if !reply.Success {
		reason := reply.Summary
		if reason == "" {
			reason = "agent reported failure"
		}
		return Failed(reason, reply.Summary)
	}
	return Succeeded(reply.Summary)
}
