package planner

import (
	"errors"
	"fmt"
)

// DefaultMaxIterations bounds node expansions when SearchOptions leaves it unset.
const DefaultMaxIterations = 1000

var (
	ErrNoSolution    = errors.New("no solution: goal is unreachable")
	ErrSearchAborted = errors.New("search aborted: iteration limit reached")
)

// SearchError reports a failed search together with how far it got.
// errors.Is matches ErrNoSolution or ErrSearchAborted.
type SearchError struct {
	Outcome  error
	Visited  int
	Expanded int
}

func (e *SearchError) Error() string {
	return fmt.Sprintf("%v (visited %d states, expanded %d)", e.Outcome, e.Visited, e.Expanded)
}

func (e *SearchError) Unwrap() error { return e.Outcome }

type SearchNode struct {
	State WorldState
	Plan  []ActionID
	Cost  float64
}

// Frontier orders nodes awaiting expansion. FIFO order gives breadth-first
// search with first-discovered tie-breaking; a cost-ordered frontier would
// plug in here.
type Frontier interface {
	Push(SearchNode)
	Pop() (SearchNode, bool)
	Len() int
}

type fifoFrontier struct {
	nodes []SearchNode
	head  int
}

func NewFIFOFrontier() Frontier { return &fifoFrontier{} }

func (f *fifoFrontier) Push(n SearchNode) { f.nodes = append(f.nodes, n) }

func (f *fifoFrontier) Pop() (SearchNode, bool) {
	if f.head >= len(f.nodes) {
		return SearchNode{}, false
	}
	n := f.nodes[f.head]
	f.nodes[f.head] = SearchNode{}
	f.head++
	// Compact once the consumed prefix dominates the backing array.
	if f.head > 1024 && f.head*2 > len(f.nodes) {
		f.nodes = append([]SearchNode(nil), f.nodes[f.head:]...)
		f.head = 0
	}
	return n, true
}

func (f *fifoFrontier) Len() int { return len(f.nodes) - f.head }

type SearchOptions struct {
	// MaxIterations caps node expansions; <= 0 means DefaultMaxIterations.
	MaxIterations int
	// Frontier defaults to NewFIFOFrontier().
	Frontier Frontier
}

type SearchResult struct {
	Plan     []ActionID
	Cost     float64
	Visited  int
	Expanded int
}

// Search runs forward state-space search from the all-false state until the
// goal-check action becomes applicable.
//
// With the FIFO frontier the returned plan has the fewest actions; total cost
// is accumulated but is not minimised when action costs differ.
func Search(d *Domain, opts SearchOptions) (*SearchResult, error) {
	maxIter := opts.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	frontier := opts.Frontier
	if frontier == nil {
		frontier = NewFIFOFrontier()
	}

	start := d.EmptyState()
	visited := map[uint64]struct{}{start.Hash(): {}}
	frontier.Push(SearchNode{State: start})

	expanded := 0
	for frontier.Len() > 0 {
		if expanded >= maxIter {
			return nil, &SearchError{Outcome: ErrSearchAborted, Visited: len(visited), Expanded: expanded}
		}
		node, _ := frontier.Pop()
		expanded++

		if d.Applicable(d.goal, node.State) {
			return &SearchResult{
				Plan:     node.Plan,
				Cost:     node.Cost,
				Visited:  len(visited),
				Expanded: expanded,
			}, nil
		}

		for i := range d.compiled {
			id := ActionID(i)
			if id == d.goal || !d.Applicable(id, node.State) {
				continue
			}
			next := d.Apply(id, node.State)
			h := next.Hash()
			if _, seen := visited[h]; seen {
				continue
			}
			visited[h] = struct{}{}

			plan := make([]ActionID, len(node.Plan)+1)
			copy(plan, node.Plan)
			plan[len(node.Plan)] = id
			frontier.Push(SearchNode{
				State: next,
				Plan:  plan,
				Cost:  node.Cost + d.registry.actions[id].Cost,
			})
		}
	}
	return nil, &SearchError{Outcome: ErrNoSolution, Visited: len(visited), Expanded: expanded}
}
