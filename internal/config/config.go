// Package config loads autoplan.toml and the process environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"autoplan/internal/planner"
	"autoplan/internal/scorer"
)

const (
	DefaultFile     = "autoplan.toml"
	DefaultStateDir = ".autoplan"
)

type Config struct {
	Search   SearchConfig    `toml:"search"`
	Run      RunConfig       `toml:"run"`
	LLM      LLMConfig       `toml:"llm"`
	Quota    QuotaConfig     `toml:"quota"`
	Journal  JournalConfig   `toml:"journal"`
	Log      LogConfig       `toml:"log"`
	Profiles []ProfileConfig `toml:"profiles"`
}

type SearchConfig struct {
	MaxIterations int    `toml:"max_iterations"`
	PlansDir      string `toml:"plans_dir"`
}

type RunConfig struct {
	Timeout           time.Duration `toml:"timeout"`
	Executor          string        `toml:"executor"`
	Workdir           string        `toml:"workdir"`
	VerifyTimeout     time.Duration `toml:"verify_timeout"`
	VerifyConcurrency int           `toml:"verify_concurrency"`
}

type LLMConfig struct {
	Backend    string `toml:"backend"`
	Model      string `toml:"model"`
	OllamaHost string `toml:"ollama_host"`
}

type QuotaConfig struct {
	// DailyLimit <= 0 disables the quota.
	DailyLimit int    `toml:"daily_limit"`
	File       string `toml:"file"`
}

type JournalConfig struct {
	Disabled bool   `toml:"disabled"`
	Path     string `toml:"path"`
}

type LogConfig struct {
	File  string `toml:"file"`
	Level string `toml:"level"`
}

type ProfileConfig struct {
	Name        string             `toml:"name"`
	Description string             `toml:"description"`
	Strategy    string             `toml:"strategy"`
	Weights     map[string]float64 `toml:"weights"`
}

func Default() *Config {
	return &Config{
		Search: SearchConfig{MaxIterations: planner.DefaultMaxIterations, PlansDir: "plans"},
		Run: RunConfig{
			Timeout:           10 * time.Minute,
			Executor:          "",
			Workdir:           ".",
			VerifyTimeout:     2 * time.Minute,
			VerifyConcurrency: 4,
		},
		LLM:     LLMConfig{Backend: "gemini"},
		Quota:   QuotaConfig{File: filepath.Join(DefaultStateDir, "quota.json")},
		Journal: JournalConfig{Path: filepath.Join(DefaultStateDir, "journal.db")},
		Log:     LogConfig{File: filepath.Join(DefaultStateDir, "autoplan.log"), Level: "info"},
	}
}

// Load reads path over the defaults. A missing file is an error only when
// the path was given explicitly. Unknown keys are rejected.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		path = DefaultFile
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Search.MaxIterations < 0 {
		return errors.New("search.max_iterations must not be negative")
	}
	if c.Run.Timeout < 0 || c.Run.VerifyTimeout < 0 {
		return errors.New("run timeouts must not be negative")
	}
	switch c.Run.Executor {
	case "", "agent", "shell", "stub":
	default:
		return fmt.Errorf("run.executor: unknown executor %q", c.Run.Executor)
	}
	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level: unknown level %q", c.Log.Level)
	}
	seen := map[string]struct{}{}
	for i, p := range c.Profiles {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("profiles[%d]: name is required", i)
		}
		if _, dup := seen[p.Name]; dup {
			return fmt.Errorf("profiles: duplicate profile %q", p.Name)
		}
		seen[p.Name] = struct{}{}
		for k := range p.Weights {
			if !scorer.Feature(k).Valid() {
				return fmt.Errorf("profile %q: %w: %s", p.Name, scorer.ErrUnknownFeature, k)
			}
		}
	}
	return nil
}

// ApplyProfiles registers the configured profiles on s, overriding presets
// of the same name.
func (c *Config) ApplyProfiles(s *scorer.Scorer) error {
	for _, p := range c.Profiles {
		weights := make(map[scorer.Feature]float64, len(p.Weights))
		for k, w := range p.Weights {
			weights[scorer.Feature(k)] = w
		}
		if err := s.AddProfile(scorer.Profile{
			Name:        p.Name,
			Description: p.Description,
			Strategy:    p.Strategy,
			Weights:     weights,
		}); err != nil {
			return err
		}
	}
	return nil
}

// LoadEnv loads .env files into the environment without overriding values
// already set. Missing files are ignored.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}
