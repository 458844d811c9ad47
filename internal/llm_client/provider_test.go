package llm_client

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	testCases := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  string
	}{
		{name: "Unsupported backend", cfg: Config{Backend: "gpt"}, wantErr: "unsupported LLM backend"},
		{name: "Gemini without key", cfg: Config{}, wantErr: "GEMINI_API_KEY"},
		{name: "Ollama with explicit host", cfg: Config{Backend: " Ollama ", OllamaHost: "http://127.0.0.1:11434", Model: "llama3"}, wantName: BackendOllama},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(tc.cfg)
			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantName, p.Name())
			assert.Equal(t, "llama3", p.AllowedModelOrDefault(""))
			assert.Equal(t, "qwen", p.AllowedModelOrDefault("qwen"))
		})
	}
}

func TestGeminiModelGuard(t *testing.T) {
	p := &geminiProvider{model: "gemini-2.5-pro"}
	assert.Equal(t, "gemini-2.5-pro", p.AllowedModelOrDefault(""))
	assert.Equal(t, "gemini-1.5-flash", p.AllowedModelOrDefault("gemini-1.5-flash"))
	assert.Equal(t, geminiDefault, p.AllowedModelOrDefault("phi4"))

	_, err := p.Generate(context.Background(), "hi", "")
	assert.True(t, errors.Is(err, ErrNotInitialized))
}
