package utils

import (
	"regexp"

	"autoplan/internal/workgraph"
)

// Commands that destroy data or publish irreversibly need an explicit
// confirmation before a run executes them.
var riskyCommands = []*regexp.Regexp{
	regexp.MustCompile(`\brm\s+(-\S+\s+)*(-[a-zA-Z]*[rR]|--recursive)`),
	regexp.MustCompile(`\bgit\s+push\b.*(\s--force\b|\s-f\b)`),
	regexp.MustCompile(`\bgit\s+(reset\s+--hard|clean\s+-[a-zA-Z]*f)`),
	regexp.MustCompile(`\b(mkfs(\.\w+)?|shutdown|reboot)\b`),
	regexp.MustCompile(`\bdd\s+.*\bof=`),
	regexp.MustCompile(`\bchmod\s+-R\s+0?777\b`),
	regexp.MustCompile(`\b(curl|wget)\b[^|]*\|\s*(sudo\s+)?(ba|z)?sh\b`),
	regexp.MustCompile(`\bsudo\b`),
}

func IsCommandRisky(command string) bool {
	for _, re := range riskyCommands {
		if re.MatchString(command) {
			return true
		}
	}
	return false
}

// RiskyTasks returns the ids of pending tasks whose shell command or
// definition-of-done commands look destructive.
func RiskyTasks(wg *workgraph.WorkGraph) []string {
	var ids []string
	wg.Each(func(_ workgraph.TaskRef, t *workgraph.Task) bool {
		if t.Status == workgraph.StatusDone {
			return true
		}
		risky := t.ExecutorKind() == workgraph.ExecutorShell && IsCommandRisky(t.Command)
		for _, c := range t.DefinitionOfDone {
			if c.Kind == workgraph.DoneCommand && IsCommandRisky(c.Value) {
				risky = true
			}
		}
		if risky {
			ids = append(ids, t.ID)
		}
		return true
	})
	return ids
}

func IsGraphRisky(wg *workgraph.WorkGraph) bool {
	return len(RiskyTasks(wg)) > 0
}
