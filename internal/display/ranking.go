package display

import (
	"fmt"
	"strings"

	"autoplan/internal/scorer"
)

func FormatRanking(profile string, ranked []scorer.Ranked) string {
	if len(ranked) == 0 {
		return fmt.Sprintf("No tasks to rank with profile %q.", profile)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Top %d task(s) by profile %q:\n", len(ranked), profile)
	for i, r := range ranked {
		fmt.Fprintf(&sb, "  %2d. %8.3f  %s %-8s %s  [%s]\n",
			i+1, r.Score, StatusLabel(r.Task.Status), r.Task.ID, r.Task.Title, r.Phase)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func FormatProfiles(profiles []scorer.Profile) string {
	var sb strings.Builder
	sb.WriteString("Scoring profiles:\n")
	for _, p := range profiles {
		fmt.Fprintf(&sb, "  %-12s %s (strategy %s)\n", p.Name, p.Description, p.Strategy)
		var parts []string
		for _, f := range scorer.Features {
			if w, ok := p.Weights[f]; ok {
				parts = append(parts, fmt.Sprintf("%s=%g", f, w))
			}
		}
		fmt.Fprintf(&sb, "  %-12s %s\n", "", strings.Join(parts, " "))
	}
	return strings.TrimRight(sb.String(), "\n")
}
