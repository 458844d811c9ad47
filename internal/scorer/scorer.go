// Package scorer ranks WorkGraph tasks with named scoring profiles.
package scorer

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"autoplan/internal/workgraph"
)

var (
	ErrUnknownProfile  = errors.New("unknown scoring profile")
	ErrUnknownStrategy = errors.New("unknown scoring strategy")
	ErrUnknownFeature  = errors.New("unknown scoring feature")
)

type Feature string

const (
	HasOutputs    Feature = "has_outputs"
	HasInputs     Feature = "has_inputs"
	PhasePosition Feature = "phase_position"
	TaskPosition  Feature = "task_position"
	Cost          Feature = "cost"
	InverseCost   Feature = "inverse_cost"
	DoDCount      Feature = "dod_count"
	Pending       Feature = "pending"
	Failed        Feature = "failed"
)

// Features lists every recognised feature in display order.
var Features = []Feature{HasOutputs, HasInputs, PhasePosition, TaskPosition, Cost, InverseCost, DoDCount, Pending, Failed}

func (f Feature) Valid() bool {
	for _, known := range Features {
		if f == known {
			return true
		}
	}
	return false
}

// Vector holds a task's feature values.
type Vector map[Feature]float64

// Strategy turns a feature vector into a score under a profile.
type Strategy interface {
	Score(v Vector, p Profile) float64
}

type StrategyFunc func(v Vector, p Profile) float64

func (f StrategyFunc) Score(v Vector, p Profile) float64 { return f(v, p) }

// Weighted is the built-in weighted-sum strategy.
var Weighted = StrategyFunc(func(v Vector, p Profile) float64 {
	// Fixed feature order keeps float sums, and so ties, reproducible.
	s := 0.0
	for _, f := range Features {
		s += p.Weights[f] * v[f]
	}
	return s
})

const (
	DefaultProfile  = "default"
	WeightedName    = "weighted"
	DefaultStrategy = WeightedName
)

type Profile struct {
	Name        string
	Description string
	Strategy    string
	Weights     map[Feature]float64
}

// Ranked is one scored task. Task is a copy; the graph is never modified.
type Ranked struct {
	Ref      workgraph.TaskRef
	Phase    string
	Task     workgraph.Task
	Score    float64
	Features Vector
}

// Filter selects which tasks are ranked.
type Filter func(t *workgraph.Task) bool

func PendingOnly(t *workgraph.Task) bool { return t.Status == workgraph.StatusTodo }

// Scorer holds the profile and strategy registries.
type Scorer struct {
	strategies map[string]Strategy
	profiles   map[string]Profile
	order      []string
}

// New returns a scorer with the weighted strategy and the preset profiles.
func New() *Scorer {
	s := &Scorer{strategies: map[string]Strategy{}, profiles: map[string]Profile{}}
	s.strategies[WeightedName] = Weighted
	for _, p := range presets() {
		if err := s.AddProfile(p); err != nil {
			panic(err)
		}
	}
	return s
}

func presets() []Profile {
	return []Profile{
		{
			Name:        DefaultProfile,
			Description: "pending work first, earlier and better-specified tasks ahead",
			Weights:     map[Feature]float64{Pending: 10, TaskPosition: 2, HasOutputs: 1, DoDCount: 0.5, InverseCost: 1},
		},
		{
			Name:        "quick-wins",
			Description: "cheap pending tasks with few acceptance checks",
			Weights:     map[Feature]float64{Pending: 10, InverseCost: 5, DoDCount: -0.5, TaskPosition: 0.5},
		},
		{
			Name:        "in-order",
			Description: "strict plan order among pending tasks",
			Weights:     map[Feature]float64{Pending: 10, PhasePosition: 5, TaskPosition: 3},
		},
		{
			Name:        "retry",
			Description: "failed tasks worth resetting, cheapest first",
			Weights:     map[Feature]float64{Failed: 10, InverseCost: 1, TaskPosition: 1},
		},
	}
}

// RegisterStrategy adds or replaces a named strategy.
func (s *Scorer) RegisterStrategy(name string, st Strategy) error {
	name = strings.TrimSpace(name)
	if name == "" || st == nil {
		return errors.New("strategy needs a name and an implementation")
	}
	s.strategies[name] = st
	return nil
}

// AddProfile validates and registers a profile, replacing one of the same name.
func (s *Scorer) AddProfile(p Profile) error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return errors.New("profile name is required")
	}
	if p.Strategy == "" {
		p.Strategy = DefaultStrategy
	}
	if _, ok := s.strategies[p.Strategy]; !ok {
		return fmt.Errorf("profile %q: %w: %s", p.Name, ErrUnknownStrategy, p.Strategy)
	}
	if len(p.Weights) == 0 {
		return fmt.Errorf("profile %q has no weights", p.Name)
	}
	for f := range p.Weights {
		if !f.Valid() {
			return fmt.Errorf("profile %q: %w: %s", p.Name, ErrUnknownFeature, f)
		}
	}
	if _, exists := s.profiles[p.Name]; !exists {
		s.order = append(s.order, p.Name)
	}
	s.profiles[p.Name] = p
	return nil
}

func (s *Scorer) Profile(name string) (Profile, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultProfile
	}
	p, ok := s.profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %s", ErrUnknownProfile, name)
	}
	return p, nil
}

// Profiles lists registered profiles in registration order.
func (s *Scorer) Profiles() []Profile {
	out := make([]Profile, len(s.order))
	for i, name := range s.order {
		out[i] = s.profiles[name]
	}
	return out
}

// Extract computes the feature vector of every task, keyed by task id.
// Positional features are 1 for the first phase or task and fall toward 0.
func Extract(wg *workgraph.WorkGraph) map[string]Vector {
	total := 0
	for _, p := range wg.Phases {
		total += len(p.Tasks)
	}
	out := make(map[string]Vector, total)
	idx := 0
	for pi, p := range wg.Phases {
		for ti := range p.Tasks {
			t := &p.Tasks[ti]
			v := Vector{
				PhasePosition: float64(len(wg.Phases)-pi) / float64(len(wg.Phases)),
				TaskPosition:  float64(total-idx) / float64(total),
				Cost:          t.Cost,
				InverseCost:   1 / (1 + t.Cost),
				DoDCount:      float64(len(t.DefinitionOfDone)),
			}
			if len(t.Outputs) > 0 {
				v[HasOutputs] = 1
			}
			if len(t.Inputs) > 0 {
				v[HasInputs] = 1
			}
			switch t.Status {
			case workgraph.StatusTodo:
				v[Pending] = 1
			case workgraph.StatusFailed:
				v[Failed] = 1
			}
			out[t.ID] = v
			idx++
		}
	}
	return out
}

// Rank scores tasks passing filter (all when nil) with the named profile and
// returns the top n (all when n <= 0), highest first. Ties keep graph order.
func (s *Scorer) Rank(wg *workgraph.WorkGraph, profile string, n int, filter Filter) ([]Ranked, error) {
	p, err := s.Profile(profile)
	if err != nil {
		return nil, err
	}
	st := s.strategies[p.Strategy]
	vectors := Extract(wg)

	var ranked []Ranked
	for pi := range wg.Phases {
		phase := &wg.Phases[pi]
		for ti := range phase.Tasks {
			t := &phase.Tasks[ti]
			if filter != nil && !filter(t) {
				continue
			}
			v := vectors[t.ID]
			ranked = append(ranked, Ranked{
				Ref:      workgraph.TaskRef{Phase: pi, Task: ti},
				Phase:    phase.Name,
				Task:     cloneTask(t),
				Score:    st.Score(v, p),
				Features: v,
			})
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked, nil
}

func cloneTask(t *workgraph.Task) workgraph.Task {
	c := *t
	c.Inputs = append([]string(nil), t.Inputs...)
	c.Outputs = append([]string(nil), t.Outputs...)
	c.DefinitionOfDone = append([]workgraph.Criterion(nil), t.DefinitionOfDone...)
	if t.UpdatedAt != nil {
		at := *t.UpdatedAt
		c.UpdatedAt = &at
	}
	return c
}
