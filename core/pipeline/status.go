package pipeline

import (
	"fmt"
	"os"
	"syscall"
)

// Status is the termination status of a stage.
// The zero value is a normal exit with code zero.
type Status struct {
	ExitCode int
	// Signaled is true if the stage was killed by Signal, ExitCode is
	// meaningless then.
	Signaled bool
	Signal   syscall.Signal
}

// exitedWith returns a normal termination status with the given code.
func exitedWith(code int) Status {
	return Status{ExitCode: code}
}

func statusFromState(ps *os.ProcessState) Status {
	if ps == nil {
		return exitedWith(ExitFailure)
	}

	if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return Status{Signaled: true, Signal: ws.Signal()}
	}

	return exitedWith(ps.ExitCode())
}

// Code is the raw exit status used when propagating the stage's outcome.
// Signal deaths follow the shell convention of 128 plus the signal number.
func (s Status) Code() int {
	if s.Signaled {
		return 128 + int(s.Signal)
	}
	return s.ExitCode
}

// Success reports whether the stage exited normally with code zero.
func (s Status) Success() bool {
	return !s.Signaled && s.ExitCode == 0
}

func (s Status) String() string {
	if s.Signaled {
		return fmt.Sprintf("signal: %v", s.Signal)
	}
	return fmt.Sprintf("exit status %d", s.ExitCode)
}
