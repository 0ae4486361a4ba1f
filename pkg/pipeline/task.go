package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/teslashibe/go-voicebot/pkg/frames"
)

// queueSize bounds pending frames per task. Sources block (rather than
// drop) when the queue is full so LLM deltas are never lost.
const queueSize = 256

// queued is one pending frame with its entry point into the pipeline.
// origin < 0 means the frame enters at the pipeline edge; otherwise it was
// injected by the source at that index and continues from its neighbor.
type queued struct {
	frame  frames.Frame
	dir    Direction
	origin int
}

// Task runs a pipeline: it owns the frame queue, starts and stops source
// processors, and serializes all frame processing on a single goroutine.
type Task struct {
	pipeline *Pipeline
	queue    chan queued
	logger   *slog.Logger

	running  atomic.Bool
	cancel   context.CancelFunc
	cancelMu sync.Mutex
	done     chan struct{}
}

// NewTask wraps a pipeline in a runnable task.
func NewTask(p *Pipeline) *Task {
	return &Task{
		pipeline: p,
		queue:    make(chan queued, queueSize),
		logger:   p.logger.With("component", "pipeline.task"),
		done:     make(chan struct{}),
	}
}

// Queue submits a frame to enter the pipeline downstream at the head.
// Safe to call from any goroutine while the task is running.
func (t *Task) Queue(f frames.Frame) {
	select {
	case t.queue <- queued{frame: f, dir: Downstream, origin: -1}:
	case <-t.done:
	}
}

// QueueUpstream submits a frame to enter the pipeline at the tail.
func (t *Task) QueueUpstream(f frames.Frame) {
	select {
	case t.queue <- queued{frame: f, dir: Upstream, origin: -1}:
	case <-t.done:
	}
}

// Run executes the task until an End frame completes its traversal, the
// context is canceled, or Cancel is called. It starts sources before
// processing and stops them in reverse order on exit.
func (t *Task) Run(ctx context.Context) error {
	if t.pipeline.Len() == 0 {
		return ErrEmptyPipeline
	}
	if !t.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancelMu.Lock()
	t.cancel = cancel
	t.cancelMu.Unlock()
	defer cancel()
	defer close(t.done)

	started, err := t.startSources(ctx)
	defer t.stopSources(started)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case q := <-t.queue:
			if err := t.dispatch(ctx, q); err != nil {
				return err
			}
			if _, isEnd := q.frame.(frames.End); isEnd && q.origin < 0 {
				t.logger.Debug("pipeline task finished")
				return nil
			}
		}
	}
}

// Cancel stops the task immediately without draining queued frames.
func (t *Task) Cancel() {
	t.cancelMu.Lock()
	defer t.cancelMu.Unlock()
	if t.cancel != nil {
		t.cancel()
	}
}

// StopWhenDone requests an orderly shutdown: queued frames ahead of the End
// frame are still processed.
func (t *Task) StopWhenDone() {
	t.Queue(frames.End{})
}

// Done is closed when the task has exited.
func (t *Task) Done() <-chan struct{} { return t.done }

func (t *Task) dispatch(ctx context.Context, q queued) error {
	if q.origin < 0 {
		return t.pipeline.Push(ctx, q.frame, q.dir)
	}
	return t.pipeline.emitFrom(ctx, q.origin)(q.frame, q.dir)
}

// startSources starts each Source processor with an inject function bound
// to its pipeline position. Returns the sources that started successfully.
func (t *Task) startSources(ctx context.Context) ([]Source, error) {
	var started []Source
	for i, proc := range t.pipeline.procs {
		src, ok := proc.(Source)
		if !ok {
			continue
		}
		origin := i
		inject := func(f frames.Frame, d Direction) error {
			select {
			case t.queue <- queued{frame: f, dir: d, origin: origin}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := src.Start(ctx, inject); err != nil {
			t.logger.Error("source failed to start", "processor", proc.Name(), "error", err)
			return started, err
		}
		started = append(started, src)
	}
	return started, nil
}

func (t *Task) stopSources(started []Source) {
	for i := len(started) - 1; i >= 0; i-- {
		if err := started[i].Stop(); err != nil {
			t.logger.Warn("source stop failed", "error", err)
		}
	}
}
