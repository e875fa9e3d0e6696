package pipeline

import (
	"errors"
	"io/fs"
	"syscall"

	"golang.org/x/sys/unix"
)

// ExitFailure is the generic failure code, used for orchestrator errors and
// for stages whose program could not be launched.
const ExitFailure = 1

// ResourceError is an orchestrator level failure to create a pipe, open the
// output file or create a process. It aborts the whole pipeline.
type ResourceError struct {
	Op  string
	Err error
}

func (e *ResourceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ResourceError) Unwrap() error {
	return e.Err
}

// LaunchError is a failure to resolve or execute a stage's program. It is
// reported on behalf of the stage and becomes that stage's exit status.
type LaunchError struct {
	Program string
	Err     error
}

func (e *LaunchError) Error() string {
	return "exec " + e.Program + ": " + e.Err.Error()
}

func (e *LaunchError) Unwrap() error {
	return e.Err
}

// isLaunchFailure reports whether err came from resolving or loading the
// program image rather than from creating the process itself.
func isLaunchFailure(err error) bool {
	if errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrPermission) {
		return true
	}

	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false
	}

	switch errno {
	case unix.ENOENT, unix.EACCES, unix.EPERM, unix.ENOEXEC, unix.ENOTDIR,
		unix.EISDIR, unix.ELOOP, unix.ETXTBSY, unix.E2BIG, unix.ENAMETOOLONG:
		return true
	default:
		return false
	}
}

// errnoName gives the symbolic errno behind err, or "" if there is none.
func errnoName(err error) string {
	var errno syscall.Errno
	if errors.As(err, &errno) {
		return unix.ErrnoName(errno)
	}
	return ""
}
