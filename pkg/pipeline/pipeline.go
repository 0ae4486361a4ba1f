// Package pipeline provides an ordered chain of frame processors.
//
// A Pipeline links processors head to tail. Frames pushed downstream visit
// processors in order; frames pushed upstream visit them in reverse. Each
// processor may forward, transform, absorb, or emit additional frames.
// Processing is synchronous on the calling goroutine; a Task (task.go)
// serializes all frame traffic for a running pipeline.
package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/teslashibe/go-voicebot/pkg/frames"
)

// Common errors returned by pipelines.
var (
	ErrAlreadyRunning = errors.New("pipeline: task already running")
	ErrEmptyPipeline  = errors.New("pipeline: no processors")
)

// Direction indicates which way a frame is traveling.
type Direction int

const (
	// Downstream frames flow from the first processor toward the last.
	Downstream Direction = iota
	// Upstream frames flow from the last processor toward the first.
	Upstream
)

// String returns the direction name for logging.
func (d Direction) String() string {
	if d == Upstream {
		return "upstream"
	}
	return "downstream"
}

// Emit forwards a frame out of the current processor in the given
// direction. Processors call it for pass-through and for any frames they
// generate themselves.
type Emit func(f frames.Frame, d Direction) error

// Processor handles frames flowing through a pipeline.
//
// Process is called once per frame. A processor that does not handle a
// frame type must still forward it with out(f, d). Frames emitted via out
// are processed synchronously by the neighboring processor before Process
// returns.
type Processor interface {
	// Name identifies the processor in logs.
	Name() string

	// Process handles one frame traveling in direction d.
	Process(ctx context.Context, f frames.Frame, d Direction, out Emit) error
}

// Source is implemented by processors that produce frames asynchronously,
// such as network-fed STT or LLM stages. The task starts sources when it
// runs and stops them when it exits. Frames passed to inject enter the
// pipeline at the source's position, serialized with all other traffic.
type Source interface {
	Start(ctx context.Context, inject Emit) error
	Stop() error
}

// Pipeline is an immutable ordered chain of processors.
type Pipeline struct {
	procs  []Processor
	logger *slog.Logger
}

// New creates a pipeline from processors in head-to-tail order.
func New(procs ...Processor) *Pipeline {
	return &Pipeline{
		procs:  procs,
		logger: slog.Default().With("component", "pipeline"),
	}
}

// WithLogger returns the pipeline with a replacement logger.
func (p *Pipeline) WithLogger(logger *slog.Logger) *Pipeline {
	p.logger = logger.With("component", "pipeline")
	return p
}

// Len returns the number of processors.
func (p *Pipeline) Len() int { return len(p.procs) }

// Push enters a frame into the pipeline: at the head for downstream
// frames, at the tail for upstream frames.
func (p *Pipeline) Push(ctx context.Context, f frames.Frame, d Direction) error {
	if len(p.procs) == 0 {
		return ErrEmptyPipeline
	}
	if d == Upstream {
		return p.process(ctx, len(p.procs)-1, f, d)
	}
	return p.process(ctx, 0, f, d)
}

// process dispatches frame f to processor i and routes whatever it emits.
// Frames that run off either end of the chain are dropped; the transport
// endpoints sit at the edges and absorb everything meaningful.
func (p *Pipeline) process(ctx context.Context, i int, f frames.Frame, d Direction) error {
	if i < 0 || i >= len(p.procs) {
		return nil
	}

	proc := p.procs[i]
	out := func(emitted frames.Frame, dir Direction) error {
		if dir == Upstream {
			return p.process(ctx, i-1, emitted, dir)
		}
		return p.process(ctx, i+1, emitted, dir)
	}

	if err := proc.Process(ctx, f, d, out); err != nil {
		p.logger.Error("processor failed",
			"processor", proc.Name(),
			"frame", f.Name(),
			"direction", d.String(),
			"error", err,
		)
		return err
	}
	return nil
}

// emitFrom returns an Emit that routes frames as if emitted by processor i.
// Used by the task to inject source-produced frames at the right position.
func (p *Pipeline) emitFrom(ctx context.Context, i int) Emit {
	return func(f frames.Frame, d Direction) error {
		if d == Upstream {
			return p.process(ctx, i-1, f, d)
		}
		return p.process(ctx, i+1, f, d)
	}
}
