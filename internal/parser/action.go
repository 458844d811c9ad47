package parser

// GoalSpec is the document a `plan` invocation starts from: entities, action
// templates instantiated per entity, and the facts that must hold at the end.
type GoalSpec struct {
	Title    string           `yaml:"title"`
	Phase    string           `yaml:"phase,omitempty"`
	Intent   string           `yaml:"intent,omitempty"`
	Entities []string         `yaml:"entities,omitempty"`
	Actions  []ActionTemplate `yaml:"actions"`
	Goal     []string         `yaml:"goal"`
}

type ActionTemplate struct {
	Name     string   `yaml:"name"`
	Cost     float64  `yaml:"cost,omitempty"`
	Global   bool     `yaml:"global,omitempty"`
	Requires []string `yaml:"requires,omitempty"`
	Effects  []string `yaml:"effects,omitempty"`

	// Enrichment copied onto synthesized tasks; "{entity}" is substituted.
	Executor string          `yaml:"executor,omitempty"`
	Command  string          `yaml:"command,omitempty"`
	Inputs   []string        `yaml:"inputs,omitempty"`
	Outputs  []string        `yaml:"outputs,omitempty"`
	Done     []CriterionSpec `yaml:"done,omitempty"`
}

type CriterionSpec struct {
	Kind  string `yaml:"kind"`
	Value string `yaml:"value"`
}

// Instance is one concrete action produced from a template.
type Instance struct {
	Name     string
	Template *ActionTemplate
	Entity   string // empty for global templates
}

// Fact is a parsed literal such as "visible(A)" or "!frozen".
type Fact struct {
	Name    string
	Args    []string
	Negated bool
}

// Atom renders the fact without its polarity, e.g. "visible(A)".
func (f Fact) Atom() string {
	if len(f.Args) == 0 {
		return f.Name
	}
	s := f.Name + "("
	for i, a := range f.Args {
		if i > 0 {
			s += ","
		}
		s += a
	}
	return s + ")"
}
