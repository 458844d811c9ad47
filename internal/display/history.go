package display

import (
	"fmt"
	"strings"
	"time"

	"autoplan/internal/journal"
	"autoplan/internal/workgraph"
)

func FormatHistory(path string, entries []journal.Entry) string {
	if len(entries) == 0 {
		return fmt.Sprintf("No recorded attempts for %s.", path)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Attempts for %s:\n", path)
	for _, e := range entries {
		fmt.Fprintf(&sb, "  %s  %s %-8s %-24s %6d ms  run=%s",
			e.StartedAt.Local().Format(time.DateTime), StatusLabel(workgraph.Status(e.Status)),
			e.TaskID, e.Title, e.DurationMs, shortID(e.RunID))
		if e.Reason != "" {
			fmt.Fprintf(&sb, "  reason=%s", formatValueForDisplay(e.Reason, maxValueLength))
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
