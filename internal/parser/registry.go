package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"autoplan/internal/planner"
	"autoplan/internal/workgraph"
)

// ErrUnknownAtom marks a goal that references a fact no template mentions.
var ErrUnknownAtom = errors.New("unknown atom")

const entityPlaceholder = "{entity}"

var factRe = regexp.MustCompile(`^(!?)\s*([A-Za-z_][A-Za-z0-9_\-\.]*)\s*(?:\(([^()]*)\))?$`)

// ParseFact parses "name", "name(arg, ...)" and their "!"-negated forms.
func ParseFact(s string) (Fact, error) {
	m := factRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Fact{}, fmt.Errorf("malformed fact %q", s)
	}
	f := Fact{Negated: m[1] == "!", Name: m[2]}
	if m[3] != "" {
		for _, arg := range strings.Split(m[3], ",") {
			arg = strings.TrimSpace(arg)
			if arg == "" {
				return Fact{}, fmt.Errorf("malformed fact %q: empty argument", s)
			}
			f.Args = append(f.Args, arg)
		}
	}
	return f, nil
}

// ValidateSpec checks a decoded spec before any atoms are created.
func ValidateSpec(spec *GoalSpec) error {
	if len(spec.Actions) == 0 {
		return errors.New("at least one action template is required")
	}

	entities := map[string]struct{}{}
	for _, e := range spec.Entities {
		if strings.TrimSpace(e) == "" {
			return errors.New("entity names must not be empty")
		}
		if strings.ContainsAny(e, "(),!") {
			return fmt.Errorf("entity %q contains reserved characters", e)
		}
		if _, dup := entities[e]; dup {
			return fmt.Errorf("duplicate entity %q", e)
		}
		entities[e] = struct{}{}
	}

	names := map[string]struct{}{}
	for i := range spec.Actions {
		t := &spec.Actions[i]
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("action template #%d has no name", i+1)
		}
		if _, dup := names[t.Name]; dup {
			return fmt.Errorf("duplicate action template %q", t.Name)
		}
		names[t.Name] = struct{}{}
		if !t.Global && len(spec.Entities) == 0 {
			return fmt.Errorf("action %q is per-entity but no entities are declared (set global: true?)", t.Name)
		}
		if t.Cost < 0 {
			return fmt.Errorf("action %q: cost must not be negative", t.Name)
		}
		for _, s := range append(append([]string{}, t.Requires...), t.Effects...) {
			if t.Global && strings.Contains(s, entityPlaceholder) {
				return fmt.Errorf("action %q: global templates cannot use %s", t.Name, entityPlaceholder)
			}
			if _, err := ParseFact(strings.ReplaceAll(s, entityPlaceholder, "x")); err != nil {
				return fmt.Errorf("action %q: %w", t.Name, err)
			}
		}
		switch t.Executor {
		case "", workgraph.ExecutorAgent:
		case workgraph.ExecutorShell:
			if strings.TrimSpace(t.Command) == "" {
				return fmt.Errorf("action %q: shell executor requires a command", t.Name)
			}
		default:
			return fmt.Errorf("action %q: unknown executor %q", t.Name, t.Executor)
		}
		for _, c := range t.Done {
			switch workgraph.DoneKind(c.Kind) {
			case workgraph.DoneCommand, workgraph.DoneFile, workgraph.DoneCode:
			default:
				return fmt.Errorf("action %q: unknown definition-of-done kind %q", t.Name, c.Kind)
			}
		}
	}

	for _, g := range spec.Goal {
		if _, err := ParseFact(g); err != nil {
			return fmt.Errorf("goal: %w", err)
		}
	}
	return nil
}

// instantiate resolves a template fact for one entity: bare names become
// name(entity); explicit arguments have {entity} substituted.
func instantiate(raw, entity string, global bool) (Fact, error) {
	if !global {
		raw = strings.ReplaceAll(raw, entityPlaceholder, entity)
	}
	f, err := ParseFact(raw)
	if err != nil {
		return Fact{}, err
	}
	if !global && len(f.Args) == 0 {
		f.Args = []string{entity}
	}
	return f, nil
}

// Domain is the output of BuildRegistry: the populated registry plus the
// template instance behind every action name.
type Domain struct {
	Registry  *planner.Registry
	Instances map[string]Instance
}

// BuildRegistry instantiates every template and the goal-check action.
// Actions are registered entity-major (each entity runs through every
// per-entity template in declaration order), then global templates; search
// enumerates them in that order.
func BuildRegistry(spec *GoalSpec) (*Domain, error) {
	r := planner.NewRegistry()
	d := &Domain{Registry: r, Instances: map[string]Instance{}}

	add := func(t *ActionTemplate, entity string) error {
		name := t.Name
		if !t.Global {
			name = fmt.Sprintf("%s(%s)", t.Name, entity)
		}
		id, err := r.DefineAction(name)
		if err != nil {
			return err
		}
		if err := r.SetCost(id, t.Cost); err != nil {
			return err
		}
		for _, raw := range t.Requires {
			f, err := instantiate(raw, entity, t.Global)
			if err != nil {
				return fmt.Errorf("action %q: %w", name, err)
			}
			atom, err := r.GetOrCreateAtom(f.Atom())
			if err != nil {
				return err
			}
			if err := r.AddPrecondition(id, atom, !f.Negated); err != nil {
				return err
			}
		}
		for _, raw := range t.Effects {
			f, err := instantiate(raw, entity, t.Global)
			if err != nil {
				return fmt.Errorf("action %q: %w", name, err)
			}
			atom, err := r.GetOrCreateAtom(f.Atom())
			if err != nil {
				return err
			}
			if err := r.AddEffect(id, atom, !f.Negated); err != nil {
				return err
			}
		}
		d.Instances[name] = Instance{Name: name, Template: t, Entity: entity}
		return nil
	}

	for _, e := range spec.Entities {
		for i := range spec.Actions {
			if spec.Actions[i].Global {
				continue
			}
			if err := add(&spec.Actions[i], e); err != nil {
				return nil, err
			}
		}
	}
	for i := range spec.Actions {
		if !spec.Actions[i].Global {
			continue
		}
		if err := add(&spec.Actions[i], ""); err != nil {
			return nil, err
		}
	}

	goal, err := r.DefineGoal()
	if err != nil {
		return nil, err
	}
	for _, raw := range spec.Goal {
		f, err := ParseFact(raw)
		if err != nil {
			return nil, fmt.Errorf("goal: %w", err)
		}
		atom, ok := r.LookupAtom(f.Atom())
		if !ok {
			return nil, fmt.Errorf("goal fact %q: %w", raw, ErrUnknownAtom)
		}
		if err := r.AddPrecondition(goal, atom, !f.Negated); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// GoalDescription renders the goal facts as a single conjunction.
func GoalDescription(spec *GoalSpec) string {
	parts := make([]string, len(spec.Goal))
	for i, g := range spec.Goal {
		parts[i] = strings.TrimSpace(g)
	}
	return strings.Join(parts, " & ")
}

// Enrich fills executor, command, inputs, outputs and definition-of-done on
// synthesized tasks from the template each task was instantiated from.
func (d *Domain) Enrich(wg *workgraph.WorkGraph) {
	wg.Each(func(_ workgraph.TaskRef, t *workgraph.Task) bool {
		inst, ok := d.Instances[t.Title]
		if !ok {
			return true
		}
		tpl := inst.Template
		sub := func(s string) string {
			if inst.Entity == "" {
				return s
			}
			return strings.ReplaceAll(s, entityPlaceholder, inst.Entity)
		}
		t.Executor = tpl.Executor
		t.Command = sub(tpl.Command)
		for _, in := range tpl.Inputs {
			t.Inputs = append(t.Inputs, sub(in))
		}
		for _, out := range tpl.Outputs {
			t.Outputs = append(t.Outputs, sub(out))
		}
		for _, c := range tpl.Done {
			t.DefinitionOfDone = append(t.DefinitionOfDone, workgraph.Criterion{
				Kind:  workgraph.DoneKind(c.Kind),
				Value: sub(c.Value),
			})
		}
		return true
	})
}
