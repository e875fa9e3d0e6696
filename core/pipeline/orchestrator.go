// Package pipeline runs `gate && (source | sink) > output` as real processes.
package pipeline

import (
	"io"
	"os"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultOutputMode is the permission the output file is created with.
const DefaultOutputMode os.FileMode = 0777

// State is a step of the orchestrator's lifecycle.
type State int

const (
	StateStart State = iota
	StateGateRunning
	StateGateFailed
	StateGateOK
	StatePipeSetup
	StateStagesRunning
	StateWaitSource
	StateWaitSink
	StateDone
)

var stateNames = map[State]string{
	StateStart:         "start",
	StateGateRunning:   "gate-running",
	StateGateFailed:    "gate-failed",
	StateGateOK:        "gate-ok",
	StatePipeSetup:     "pipe-setup",
	StateStagesRunning: "stages-running",
	StateWaitSource:    "wait-source",
	StateWaitSink:      "wait-sink",
	StateDone:          "done",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Result holds the per-stage outcome of a run. Source and Sink are nil when
// the pipe stages were never launched.
type Result struct {
	RunID  string
	State  State
	Gate   StageResult
	Source *StageResult
	Sink   *StageResult
}

// ExitCode is the status the whole pipeline exits with: the gate's status if
// it failed, otherwise the bitwise OR of the source and sink statuses.
func (r *Result) ExitCode() int {
	if r.Source == nil || r.Sink == nil {
		return r.Gate.Status.Code()
	}
	return r.Source.Status.Code() | r.Sink.Status.Code()
}

// Orchestrator launches pipelines. The zero value is not usable, use New.
type Orchestrator struct {
	// Standard streams inherited by the stages that are not redirected.
	// Stderr is shared by concurrently running stages and also receives
	// launch failure reports, so it must be an *os.File or safe for
	// concurrent writes.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// OutputMode is used if the output file has to be created.
	OutputMode os.FileMode

	// Getenv looks up PATH for program resolution.
	Getenv func(string) string

	Logger *zap.Logger
}

// New creates an orchestrator wired to the process's own standard streams
// and environment.
func New(logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		Stdin:      os.Stdin,
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		OutputMode: DefaultOutputMode,
		Getenv:     os.Getenv,
		Logger:     logger,
	}
}

// Run executes the pipeline and waits for every process it started.
//
// A non-nil error is always a *ResourceError; the returned Result still
// describes how far the run got. Programs that fail to launch are not errors,
// they show up as a stage status of ExitFailure.
func (o *Orchestrator) Run(p Pipeline) (*Result, error) {
	res := &Result{RunID: uuid.NewString(), State: StateStart}
	log := o.Logger.With(zap.String("run_id", res.RunID))
	stages := p.Stages()

	gate, err := start(log, o.Getenv, stages[0], o.Stdin, o.Stdout, o.Stderr)
	if err != nil {
		return res, err
	}
	res.State = StateGateRunning
	res.Gate = gate.wait()

	if !res.Gate.Status.Success() {
		res.State = StateGateFailed
		log.Info("gate failed, skipping pipe stages", zap.Int("code", res.Gate.Status.Code()))
		return res, nil
	}
	res.State = StateGateOK

	var handles listCloser
	defer handles.Close()

	pipeRead, pipeWrite, err := os.Pipe()
	if err != nil {
		return res, &ResourceError{Op: "pipe", Err: err}
	}
	handles.Add(pipeRead)
	handles.Add(pipeWrite)

	// The sink file is opened before either pipe stage exists so a failure
	// here never leaves children behind.
	output, err := os.OpenFile(p.Output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, o.outputMode())
	if err != nil {
		return res, &ResourceError{Op: "open " + p.Output, Err: err}
	}
	handles.Add(output)
	res.State = StatePipeSetup

	source, err := start(log, o.Getenv, stages[1], o.Stdin, pipeWrite, o.Stderr)
	if err != nil {
		return res, err
	}

	sink, err := start(log, o.Getenv, stages[2], pipeRead, output, o.Stderr)
	if err != nil {
		// Release our endpoints so the source can finish, then reap it.
		handles.Close()
		sourceResult := source.wait()
		res.Source = &sourceResult
		return res, err
	}

	// Both children hold their own copies now. Keeping the write end open
	// here would stop the sink from ever seeing end of stream.
	if err := handles.Close(); err != nil {
		log.Debug("closing pipe handles", zap.Error(err))
	}
	res.State = StateStagesRunning

	res.State = StateWaitSource
	sourceResult := source.wait()
	res.Source = &sourceResult

	res.State = StateWaitSink
	sinkResult := sink.wait()
	res.Sink = &sinkResult

	res.State = StateDone
	log.Info("pipeline finished",
		zap.Int("source_code", sourceResult.Status.Code()),
		zap.Int("sink_code", sinkResult.Status.Code()),
		zap.Int("code", res.ExitCode()))
	return res, nil
}

func (o *Orchestrator) outputMode() os.FileMode {
	if o.OutputMode == 0 {
		return DefaultOutputMode
	}
	return o.OutputMode
}
