package planner

import (
	"errors"
	"fmt"
	"strings"
)

type AtomID int
type ActionID int

// Reserved name of the synthetic goal-check action.
const GoalActionName = "__goal__"

var (
	ErrSealed          = errors.New("registry is sealed")
	ErrUnknownAction   = errors.New("unknown action")
	ErrDuplicateAction = errors.New("action already defined")
	ErrNoGoal          = errors.New("no goal-check action defined")
)

type Action struct {
	Name        string
	PreTrue     []AtomID
	PreFalse    []AtomID
	EffectTrue  []AtomID
	EffectFalse []AtomID
	Cost        float64
	goal        bool
}

// IsGoal reports whether this is the synthetic goal-check action.
func (a *Action) IsGoal() bool { return a.goal }

// Registry collects atoms and actions for a single planning run. Once sealed
// the atom universe is closed and no further definitions are accepted.
type Registry struct {
	atoms     map[string]AtomID
	atomNames []string
	actions   []*Action
	byName    map[string]ActionID
	goal      ActionID
	sealed    bool
}

func NewRegistry() *Registry {
	return &Registry{
		atoms:  make(map[string]AtomID),
		byName: make(map[string]ActionID),
		goal:   -1,
	}
}

// GetOrCreateAtom returns the bit index for name, assigning the next free one
// on first reference.
func (r *Registry) GetOrCreateAtom(name string) (AtomID, error) {
	if id, ok := r.atoms[name]; ok {
		return id, nil
	}
	if r.sealed {
		return 0, fmt.Errorf("atom %q: %w", name, ErrSealed)
	}
	if strings.TrimSpace(name) == "" {
		return 0, errors.New("atom name must not be empty")
	}
	id := AtomID(len(r.atomNames))
	r.atoms[name] = id
	r.atomNames = append(r.atomNames, name)
	return id, nil
}

// LookupAtom returns the id of an existing atom without creating it.
func (r *Registry) LookupAtom(name string) (AtomID, bool) {
	id, ok := r.atoms[name]
	return id, ok
}

func (r *Registry) AtomName(id AtomID) string {
	if int(id) < 0 || int(id) >= len(r.atomNames) {
		return ""
	}
	return r.atomNames[id]
}

func (r *Registry) NumAtoms() int { return len(r.atomNames) }

func (r *Registry) DefineAction(name string) (ActionID, error) {
	if r.sealed {
		return 0, fmt.Errorf("action %q: %w", name, ErrSealed)
	}
	if name == GoalActionName {
		return 0, fmt.Errorf("action name %q is reserved", name)
	}
	return r.define(name, false)
}

// DefineGoal registers the goal-check action. Its preconditions encode the
// desired end state; it never has effects.
func (r *Registry) DefineGoal() (ActionID, error) {
	if r.sealed {
		return 0, fmt.Errorf("goal: %w", ErrSealed)
	}
	if r.goal >= 0 {
		return 0, errors.New("goal-check action already defined")
	}
	id, err := r.define(GoalActionName, true)
	if err != nil {
		return 0, err
	}
	r.goal = id
	return id, nil
}

func (r *Registry) define(name string, goal bool) (ActionID, error) {
	if _, ok := r.byName[name]; ok {
		return 0, fmt.Errorf("%q: %w", name, ErrDuplicateAction)
	}
	id := ActionID(len(r.actions))
	r.actions = append(r.actions, &Action{Name: name, goal: goal})
	r.byName[name] = id
	return id, nil
}

func (r *Registry) ActionByName(name string) (ActionID, error) {
	id, ok := r.byName[name]
	if !ok {
		return 0, fmt.Errorf("%q: %w", name, ErrUnknownAction)
	}
	return id, nil
}

func (r *Registry) action(id ActionID) (*Action, error) {
	if int(id) < 0 || int(id) >= len(r.actions) {
		return nil, fmt.Errorf("action #%d: %w", id, ErrUnknownAction)
	}
	return r.actions[id], nil
}

func (r *Registry) AddPrecondition(id ActionID, atom AtomID, value bool) error {
	if r.sealed {
		return ErrSealed
	}
	a, err := r.action(id)
	if err != nil {
		return err
	}
	if err := r.checkAtom(atom); err != nil {
		return err
	}
	if value {
		a.PreTrue = appendUnique(a.PreTrue, atom)
	} else {
		a.PreFalse = appendUnique(a.PreFalse, atom)
	}
	return nil
}

func (r *Registry) AddEffect(id ActionID, atom AtomID, value bool) error {
	if r.sealed {
		return ErrSealed
	}
	a, err := r.action(id)
	if err != nil {
		return err
	}
	if a.goal {
		return errors.New("goal-check action cannot have effects")
	}
	if err := r.checkAtom(atom); err != nil {
		return err
	}
	if value {
		a.EffectTrue = appendUnique(a.EffectTrue, atom)
	} else {
		a.EffectFalse = appendUnique(a.EffectFalse, atom)
	}
	return nil
}

func (r *Registry) SetCost(id ActionID, cost float64) error {
	if r.sealed {
		return ErrSealed
	}
	a, err := r.action(id)
	if err != nil {
		return err
	}
	if cost < 0 {
		return fmt.Errorf("action %q: cost must not be negative", a.Name)
	}
	a.Cost = cost
	return nil
}

func (r *Registry) checkAtom(atom AtomID) error {
	if int(atom) < 0 || int(atom) >= len(r.atomNames) {
		return fmt.Errorf("unknown atom #%d", atom)
	}
	return nil
}

// Seal closes the atom universe and compiles every action into bit masks.
func (r *Registry) Seal() (*Domain, error) {
	if r.goal < 0 {
		return nil, ErrNoGoal
	}
	r.sealed = true

	width := len(r.atomNames)
	d := &Domain{
		registry: r,
		width:    width,
		goal:     r.goal,
		compiled: make([]compiledAction, len(r.actions)),
	}
	for i, a := range r.actions {
		d.compiled[i] = compiledAction{
			preTrue:     maskOf(width, a.PreTrue),
			preFalse:    maskOf(width, a.PreFalse),
			effectTrue:  maskOf(width, a.EffectTrue),
			effectFalse: maskOf(width, a.EffectFalse),
		}
	}
	return d, nil
}

func appendUnique(ids []AtomID, id AtomID) []AtomID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

// Domain is a sealed registry: a fixed atom width plus compiled actions.
type Domain struct {
	registry *Registry
	width    int
	goal     ActionID
	compiled []compiledAction
}

type compiledAction struct {
	preTrue, preFalse, effectTrue, effectFalse WorldState
}

func (d *Domain) Width() int { return d.width }
func (d *Domain) NumActions() int { return len(d.compiled) }
func (d *Domain) Goal() ActionID { return d.goal }
func (d *Domain) Action(id ActionID) *Action { return d.registry.actions[id] }
func (d *Domain) AtomName(id AtomID) string { return d.registry.AtomName(id) }

// EmptyState returns the all-false state for this domain.
func (d *Domain) EmptyState() WorldState { return newState(d.width) }

// StateOf builds a state with the given atoms set.
func (d *Domain) StateOf(atoms ...AtomID) WorldState {
	return maskOf(d.width, atoms)
}

func (d *Domain) Applicable(id ActionID, s WorldState) bool {
	c := &d.compiled[id]
	return s.containsAll(c.preTrue) && !s.intersects(c.preFalse)
}

func (d *Domain) Apply(id ActionID, s WorldState) WorldState {
	c := &d.compiled[id]
	return s.apply(c.effectFalse, c.effectTrue)
}

// ActionNames maps a plan to its action names.
func (d *Domain) ActionNames(plan []ActionID) []string {
	names := make([]string, len(plan))
	for i, id := range plan {
		names[i] = d.registry.actions[id].Name
	}
	return names
}
