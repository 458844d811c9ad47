package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"

	"autoplan/internal/display"
	"autoplan/internal/parser"
	"autoplan/internal/planner"
	"autoplan/internal/workgraph"
)

func newPlanCmd(a *app) *cobra.Command {
	var (
		outDir        string
		maxIterations int
		titles        []string
		list          bool
	)
	cmd := &cobra.Command{
		Use:   "plan <goal-spec>",
		Short: "Search for a plan and write it as a WorkGraph",
		Long: `plan reads a goal spec document (YAML, possibly several documents), searches
for the shortest action sequence reaching each goal, and writes one WorkGraph
per spec to <out-dir>/<slug>-<ulid>.json.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			specs, err := parser.LoadGoalSpecs(args[0])
			if err != nil {
				return err
			}
			if list {
				a.println(display.FormatSpecsCatalog(args[0], specs))
				return nil
			}
			specs, missing := parser.SelectSpecsByTitle(specs, titles)
			if len(missing) > 0 {
				return fmt.Errorf("goal spec(s) not found in %s: %s", args[0], strings.Join(missing, ", "))
			}
			if outDir == "" {
				outDir = a.cfg.Search.PlansDir
			}
			if !cmd.Flags().Changed("max-iterations") {
				maxIterations = a.cfg.Search.MaxIterations
			}

			var firstErr error
			for i := range specs {
				wg, res, path, err := planSpec(a.store, &specs[i], outDir, maxIterations)
				if err != nil {
					a.log.Error("planning failed", "spec", specs[i].Title, "err", err)
					a.println(describePlanError(specs[i].Title, err))
					if firstErr == nil {
						firstErr = err
					}
					continue
				}
				a.log.Info("plan written", "spec", specs[i].Title, "path", path, "actions", len(res.Plan), "expanded", res.Expanded)
				a.println(display.FormatPlan(wg, res, path))
			}
			return firstErr
		},
	}
	cmd.Flags().StringVarP(&outDir, "out-dir", "o", "", "directory for generated WorkGraphs (default from config)")
	cmd.Flags().IntVar(&maxIterations, "max-iterations", planner.DefaultMaxIterations, "maximum search node expansions")
	cmd.Flags().StringSliceVarP(&titles, "title", "t", nil, "plan only the specs with these titles")
	cmd.Flags().BoolVar(&list, "list", false, "list the specs in the document and exit")
	return cmd
}

// planSpec builds the domain for spec, searches it, and saves the resulting
// WorkGraph under outDir.
func planSpec(store workgraph.Store, spec *parser.GoalSpec, outDir string, maxIterations int) (*workgraph.WorkGraph, *planner.SearchResult, string, error) {
	dom, err := parser.BuildRegistry(spec)
	if err != nil {
		return nil, nil, "", fmt.Errorf("build domain for %q: %w", spec.Title, err)
	}
	sealed, err := dom.Registry.Seal()
	if err != nil {
		return nil, nil, "", fmt.Errorf("seal domain for %q: %w", spec.Title, err)
	}
	res, err := planner.Search(sealed, planner.SearchOptions{MaxIterations: maxIterations})
	if err != nil {
		return nil, nil, "", err
	}

	names := sealed.ActionNames(res.Plan)
	costs := make([]float64, len(names))
	for i, name := range names {
		if inst, ok := dom.Instances[name]; ok {
			costs[i] = inst.Template.Cost
		}
	}
	wg := workgraph.Synthesize(names, workgraph.SynthesisOptions{
		Title:          spec.Title,
		Goal:           parser.GoalDescription(spec),
		PhaseName:      spec.Phase,
		IntentTemplate: spec.Intent,
		Costs:          costs,
	})
	dom.Enrich(wg)

	path := filepath.Join(outDir, graphFileName(spec.Title))
	if err := store.Save(wg, path); err != nil {
		return nil, nil, "", err
	}
	return wg, res, path, nil
}

// graphFileName is "<slug>-<ulid>.json"; ulids sort by creation time.
func graphFileName(title string) string {
	s := slug.Make(title)
	if s == "" {
		s = "workgraph"
	}
	return fmt.Sprintf("%s-%s.json", s, strings.ToLower(ulid.Make().String()))
}

func describePlanError(title string, err error) string {
	var se *planner.SearchError
	switch {
	case errors.Is(err, planner.ErrNoSolution) && errors.As(err, &se):
		return fmt.Sprintf("No solution for %q: the goal is unreachable from the empty state (%d states visited).", title, se.Visited)
	case errors.Is(err, planner.ErrSearchAborted) && errors.As(err, &se):
		return fmt.Sprintf("Search aborted for %q after %d expansions; raise --max-iterations to search further.", title, se.Expanded)
	default:
		return fmt.Sprintf("Planning failed for %q: %v", title, err)
	}
}
