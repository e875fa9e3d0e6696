package pipeline

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os/exec"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// shellPath runs executable files the kernel can't, like scripts without a
// "#!" line.
const shellPath = "/bin/sh"

// startCmd starts a command, tests swap it out to inject start failures.
var startCmd = (*exec.Cmd).Start

// StageResult records what happened to one launched stage.
type StageResult struct {
	Stage Stage
	// Path is the resolved program path, empty if resolution failed.
	Path string
	// PID is zero if the program never started.
	PID    int
	Status Status
	// Err holds a *LaunchError, or a wait failure, for diagnostics.
	Err error
}

// process is a started stage. Each one is waited on exactly once.
type process struct {
	cmd    *exec.Cmd
	result StageResult
	waited bool
	log    *zap.Logger
}

// start launches stage with the given streams. Launch failures are reported
// to stderr and turned into a finished process with ExitFailure, any other
// error means no process exists.
func start(log *zap.Logger, getenv func(string) string, stage Stage, stdin io.Reader, stdout, stderr io.Writer) (*process, error) {
	p := &process{
		result: StageResult{Stage: stage},
		log: log.With(
			zap.Stringer("stage", stage.Role),
			zap.String("program", stage.Program),
		),
	}

	path, err := LookPath(getenv, stage.Program)
	if err == nil {
		p.result.Path = path
		p.cmd = &exec.Cmd{
			Path:   path,
			Args:   []string{stage.Program},
			Stdin:  stdin,
			Stdout: stdout,
			Stderr: stderr,
		}
		err = startCmd(p.cmd)

		if errors.Is(err, unix.ENOEXEC) {
			// Same fallback as execvp. A Cmd can't be started twice.
			p.log.Debug("running program with the shell", zap.String("shell", shellPath))
			p.cmd = &exec.Cmd{
				Path:   shellPath,
				Args:   []string{stage.Program, path},
				Stdin:  stdin,
				Stdout: stdout,
				Stderr: stderr,
			}
			err = startCmd(p.cmd)
		}
	}

	switch {
	case err == nil:
		p.result.PID = p.cmd.Process.Pid
		p.log.Debug("stage started", zap.String("path", path), zap.Int("pid", p.result.PID))
		return p, nil

	case isLaunchFailure(err):
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			err = pathErr.Err
		}
		launchErr := &LaunchError{Program: stage.Program, Err: err}
		if stderr != nil {
			fmt.Fprintln(stderr, launchErr)
		}

		p.cmd = nil
		p.waited = true
		p.result.Err = launchErr
		p.result.Status = exitedWith(ExitFailure)
		p.log.Info("stage failed to launch", zap.Error(err), zap.String("errno", errnoName(err)))
		return p, nil

	default:
		return nil, &ResourceError{Op: "start " + stage.Role.String(), Err: err}
	}
}

// wait blocks until the process terminates and returns its result. Calling
// wait again returns the same result without waiting.
func (p *process) wait() StageResult {
	if p.waited {
		return p.result
	}
	p.waited = true

	err := p.cmd.Wait()
	p.result.Status = statusFromState(p.cmd.ProcessState)

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.result.Err = err
	}

	p.log.Debug("stage finished",
		zap.Int("pid", p.result.PID),
		zap.Int("code", p.result.Status.Code()),
		zap.Stringer("status", p.result.Status))
	return p.result
}
