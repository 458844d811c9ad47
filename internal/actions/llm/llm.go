// Package llm builds agent prompts for tasks and decodes the agent's reply.
package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// FileContext is one input file shown to the agent.
type FileContext struct {
	Path      string
	Content   string
	Truncated bool
}

// Brief is everything the agent is told about a task.
type Brief struct {
	Title    string
	Intent   string
	Inputs   []FileContext
	Outputs  []string
	Done     []string
	Attempts int
	LastFail string
}

type FileEdit struct {
	Path    string `json:"path"`
	Content string `json:"content,omitempty"`
	Delete  bool   `json:"delete,omitempty"`
}

// Reply is the JSON object the agent must answer with.
type Reply struct {
	Success bool       `json:"success"`
	Summary string     `json:"summary"`
	Files   []FileEdit `json:"files,omitempty"`
}

// ReplySchema is passed to providers that support structured output.
var ReplySchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"success": map[string]any{"type": "boolean"},
		"summary": map[string]any{"type": "string"},
		"files": map[string]any{
			"type": "array",
			"items": map[string]any{
				"type": "object",
				"properties": map[string]any{
					"path":    map[string]any{"type": "string"},
					"content": map[string]any{"type": "string"},
					"delete":  map[string]any{"type": "boolean"},
				},
				"required": []string{"path"},
			},
		},
	},
	"required": []string{"success", "summary"},
}

func BuildPrompt(b Brief) string {
	var sb strings.Builder
	sb.WriteString("You are a coding agent working inside a project workspace.\n")
	sb.WriteString("Complete the task below. Reply with a JSON object: ")
	sb.WriteString(`{"success": bool, "summary": string, "files": [{"path": string, "content": string, "delete": bool}]}`)
	sb.WriteString(". Paths are relative to the workspace root; each file you list is replaced with the given content.\n\n")

	fmt.Fprintf(&sb, "Task: %s\n", b.Title)
	fmt.Fprintf(&sb, "Intent: %s\n", b.Intent)
	if len(b.Outputs) > 0 {
		fmt.Fprintf(&sb, "Expected outputs: %s\n", strings.Join(b.Outputs, ", "))
	}
	if len(b.Done) > 0 {
		sb.WriteString("Definition of done:\n")
		for _, d := range b.Done {
			fmt.Fprintf(&sb, "- %s\n", d)
		}
	}
	if b.Attempts > 0 && b.LastFail != "" {
		fmt.Fprintf(&sb, "Previous attempt %d failed: %s\n", b.Attempts, b.LastFail)
	}
	for _, in := range b.Inputs {
		fmt.Fprintf(&sb, "\n--- %s", in.Path)
		if in.Truncated {
			sb.WriteString(" (truncated)")
		}
		sb.WriteString(" ---\n")
		sb.WriteString(in.Content)
		if !strings.HasSuffix(in.Content, "\n") {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

// ParseReply decodes the agent's answer, tolerating a fenced code block
// around the JSON.
func ParseReply(raw string) (*Reply, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, errors.New("agent returned an empty reply")
	}
	var r Reply
	if err := json.Unmarshal([]byte(s), &r); err != nil {
		return nil, fmt.Errorf("agent reply is not valid JSON: %w", err)
	}
	for _, f := range r.Files {
		if strings.TrimSpace(f.Path) == "" {
			return nil, errors.New("agent reply lists a file without a path")
		}
	}
	return &r, nil
}
