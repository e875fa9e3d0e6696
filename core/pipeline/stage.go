package pipeline

// Role is the position a stage occupies in the pipeline.
type Role int

const (
	// RoleStandalone runs with the orchestrator's own standard streams.
	RoleStandalone Role = iota
	// RolePipeSource writes its standard output into the channel.
	RolePipeSource
	// RolePipeSink reads the channel and writes its output to the sink file.
	RolePipeSink
)

func (r Role) String() string {
	switch r {
	case RoleStandalone:
		return "standalone"
	case RolePipeSource:
		return "pipe-source"
	case RolePipeSink:
		return "pipe-sink"
	default:
		return "unknown"
	}
}

// Stage is one program in the pipeline. Program is resolved against PATH
// when the stage is launched and is run without arguments.
type Stage struct {
	Program string
	Role    Role
}

// Pipeline names the pieces of `Gate && (Source | Sink) > Output`.
type Pipeline struct {
	Gate   string
	Source string
	Sink   string
	Output string
}

// Stages returns the three stages in launch order.
func (p Pipeline) Stages() []Stage {
	return []Stage{
		{Program: p.Gate, Role: RoleStandalone},
		{Program: p.Source, Role: RolePipeSource},
		{Program: p.Sink, Role: RolePipeSink},
	}
}
