package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

/*
LoadGoalSpecs reads one or more goal specs from a YAML (or JSON)
file. Multiple specs are separated by YAML document markers:

	title: first
	...
	---
	title: second
	...

Unknown keys are rejected. Untitled specs are named "<base>#<index>".
*/
func LoadGoalSpecs(path string) ([]GoalSpec, error) {
	clean := filepath.Clean(path)
	data, err := os.ReadFile(clean)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("goal spec not found: %s", clean)
		}
		return nil, fmt.Errorf("read %s: %w", clean, err)
	}
	specs, err := ParseGoalSpecs(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", clean, err)
	}
	base := filepath.Base(clean)
	for i := range specs {
		if strings.TrimSpace(specs[i].Title) == "" {
			specs[i].Title = fmt.Sprintf("%s#%d", base, i+1)
		}
	}
	return specs, nil
}

// ParseGoalSpecs decodes and validates every document in data.
func ParseGoalSpecs(data []byte) ([]GoalSpec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var specs []GoalSpec
	for i := 1; ; i++ {
		var spec GoalSpec
		err := dec.Decode(&spec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("goal spec #%d: %w", i, err)
		}
		if err := ValidateSpec(&spec); err != nil {
			return nil, fmt.Errorf("goal spec #%d: %w", i, err)
		}
		specs = append(specs, spec)
	}
	if len(specs) == 0 {
		return nil, errors.New("no goal specs found")
	}
	return specs, nil
}

// SelectSpecsByTitle returns specs matching the given titles (case-insensitive),
// in the order requested, plus any titles that were not found.
func SelectSpecsByTitle(specs []GoalSpec, titles []string) ([]GoalSpec, []string) {
	if len(titles) == 0 {
		return specs, nil
	}

	var selected []GoalSpec
	var missing []string
	for _, want := range titles {
		w := strings.TrimSpace(want)
		if w == "" {
			continue
		}
		found := false
		for i := range specs {
			if strings.EqualFold(specs[i].Title, w) {
				selected = append(selected, specs[i])
				found = true
				break
			}
		}
		if !found {
			missing = append(missing, want)
		}
	}
	return selected, missing
}
