package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoplan/internal/planner"
	"autoplan/internal/scorer"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "autoplan.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "absent.toml")

	cfg, err := Load(missing, false)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, planner.DefaultMaxIterations, cfg.Search.MaxIterations)

	_, err = Load(missing, true)
	assert.ErrorContains(t, err, "config file not found")
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[search]
max_iterations = 50

[run]
timeout = "90s"
executor = "shell"

[llm]
backend = "ollama"
model = "llama3"

[quota]
daily_limit = 20

[[profiles]]
name = "docs-first"
description = "tasks that produce files"
weights = { has_outputs = 4, pending = 10 }
`)

	cfg, err := Load(path, true)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Search.MaxIterations)
	assert.Equal(t, "plans", cfg.Search.PlansDir)
	assert.Equal(t, 90*time.Second, cfg.Run.Timeout)
	assert.Equal(t, "shell", cfg.Run.Executor)
	assert.Equal(t, 2*time.Minute, cfg.Run.VerifyTimeout)
	assert.Equal(t, "ollama", cfg.LLM.Backend)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 20, cfg.Quota.DailyLimit)
	require.Len(t, cfg.Profiles, 1)
	assert.Equal(t, 4.0, cfg.Profiles[0].Weights["has_outputs"])
}

func TestLoadRejectsBadConfig(t *testing.T) {
	testCases := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "Unknown key", content: "[run]\nretries = 3\n", wantErr: "unknown keys: run.retries"},
		{name: "Unknown section", content: "[cache]\nsize = 1\n", wantErr: "unknown keys: cache"},
		{name: "Malformed toml", content: "[run\n", wantErr: "failed to parse config"},
		{name: "Unknown executor", content: "[run]\nexecutor = \"docker\"\n", wantErr: "unknown executor"},
		{name: "Negative iterations", content: "[search]\nmax_iterations = -1\n", wantErr: "must not be negative"},
		{name: "Unknown level", content: "[log]\nlevel = \"loud\"\n", wantErr: "unknown level"},
		{name: "Profile without name", content: "[[profiles]]\nweights = { cost = 1 }\n", wantErr: "name is required"},
		{name: "Unknown feature", content: "[[profiles]]\nname = \"x\"\nweights = { speed = 1 }\n", wantErr: "unknown scoring feature"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tc.content), true)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestApplyProfiles(t *testing.T) {
	cfg := Default()
	cfg.Profiles = []ProfileConfig{
		{Name: "default", Weights: map[string]float64{"cost": 1, "pending": 10}},
		{Name: "custom", Description: "d", Weights: map[string]float64{"failed": 1}},
	}
	s := scorer.New()
	require.NoError(t, cfg.ApplyProfiles(s))

	p, err := s.Profile("")
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Weights[scorer.Cost])

	p, err = s.Profile("custom")
	require.NoError(t, err)
	assert.Equal(t, scorer.DefaultStrategy, p.Strategy)

	cfg.Profiles = []ProfileConfig{{Name: "bad", Strategy: "nope", Weights: map[string]float64{"cost": 1}}}
	err = cfg.ApplyProfiles(s)
	assert.True(t, errors.Is(err, scorer.ErrUnknownStrategy))
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	env := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(env, []byte("AUTOPLAN_TEST_FROM_ENV=file\nAUTOPLAN_TEST_PRESET=file\n"), 0o644))
	t.Setenv("AUTOPLAN_TEST_PRESET", "process")
	t.Setenv("AUTOPLAN_TEST_FROM_ENV", "")
	require.NoError(t, os.Unsetenv("AUTOPLAN_TEST_FROM_ENV"))

	require.NoError(t, LoadEnv(env, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "file", os.Getenv("AUTOPLAN_TEST_FROM_ENV"))
	assert.Equal(t, "process", os.Getenv("AUTOPLAN_TEST_PRESET"))
	os.Unsetenv("AUTOPLAN_TEST_FROM_ENV")
}
