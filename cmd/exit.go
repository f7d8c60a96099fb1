package main

import (
	"fmt"

	"github.com/ebogdum/easylock/locker"
)

// Exit statuses from sysexits.h
const (
	exitSoftware = 70 // EX_SOFTWARE: lock store unusable
	exitTempFail = 75 // EX_TEMPFAIL: lock held elsewhere, try again later
)

// exitError carries a process exit status out of a cobra command
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

// exitStatus maps the outcome of a locked run to a process exit status.
// result is the wrapped command's exit code when it ran.
func exitStatus(result any, err error) int {
	switch {
	case err == nil:
		if code, ok := result.(int); ok {
			return code
		}
		return 0
	case locker.IsFatal(err):
		return exitSoftware
	case locker.IsRetryable(err):
		return exitTempFail
	default:
		return 1
	}
}
