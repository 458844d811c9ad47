// Package llm_client wraps the LLM backends that drive agent tasks.
package llm_client

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNotInitialized = errors.New("llm client not initialized")

const (
	BackendGemini = "gemini"
	BackendOllama = "ollama"
)

type Config struct {
	Backend    string
	Model      string
	APIKey     string
	OllamaHost string
}

type Provider interface {
	Init(cfg Config) error
	Name() string
	DefaultModel() string
	AllowedModelOrDefault(model string) string
	Generate(ctx context.Context, prompt, model string) (string, error)
	GenerateJSON(ctx context.Context, prompt, model string, schema any) (string, error)
}

// New builds and initializes the provider named by cfg.Backend
// (gemini when empty).
func New(cfg Config) (Provider, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	if backend == "" {
		backend = BackendGemini
	}
	var p Provider
	switch backend {
	case BackendOllama:
		p = &ollamaProvider{}
	case BackendGemini:
		p = &geminiProvider{}
	default:
		return nil, fmt.Errorf("unsupported LLM backend: %s", backend)
	}
	if err := p.Init(cfg); err != nil {
		return nil, err
	}
	return p, nil
}
