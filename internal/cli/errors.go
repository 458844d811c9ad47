package cli

import (
	"errors"

	"autoplan/internal/planner"
)

// Exit codes returned by ExitCode.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitNoSolution  = 2
	ExitAborted     = 3
	ExitInterrupted = 130
)

// exitError carries an exit code for a failure already reported to the user.
type exitError struct {
	code int
	msg  string
}

func (e *exitError) Error() string { return e.msg }

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	switch {
	case errors.Is(err, planner.ErrNoSolution):
		return ExitNoSolution
	case errors.Is(err, planner.ErrSearchAborted):
		return ExitAborted
	}
	return ExitFailure
}
