package tracer

import (
	"cmp"

	"github.com/jsign/vm-gas-calibration/analysis"
)

// Tracer is an append-only analysis.Profiler. It keeps every sample in
// memory until Finish, so memory grows linearly with the number of
// dispatched instructions; for long invocations this is the dominant cost.
// A Tracer must only be used from the goroutine driving the interpreter.
type Tracer[I cmp.Ordered] struct {
	clock   *analysis.Clock
	samples []analysis.Sample[I]
}

var _ analysis.Profiler[byte] = (*Tracer[byte])(nil)

type options struct {
	capacity int
}

type Option func(*options)

// WithCapacity pre-allocates room for n samples so Record does not have to
// grow the trace while the interpreter is being timed.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

func New[I cmp.Ordered](clock *analysis.Clock, opts ...Option) *Tracer[I] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return &Tracer[I]{
		clock:   clock,
		samples: make([]analysis.Sample[I], 0, o.capacity),
	}
}

func (t *Tracer[I]) Record(instruction I, ts analysis.Timestamp) {
	t.samples = append(t.samples, analysis.Sample[I]{Instruction: instruction, Time: ts})
}

func (t *Tracer[I]) SampleClock() analysis.Timestamp {
	return t.clock.Now()
}

func (t *Tracer[I]) Len() int {
	return len(t.samples)
}

// Finish hands the recorded trace over to the caller. The tracer starts a
// new, empty trace afterwards.
func (t *Tracer[I]) Finish() analysis.Trace[I] {
	trace := analysis.Trace[I](t.samples)
	t.samples = nil
	return trace
}
