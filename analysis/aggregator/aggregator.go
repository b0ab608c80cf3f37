package aggregator

import (
	"cmp"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/codahale/hdrhistogram"
	"github.com/google/btree"

	"github.com/jsign/vm-gas-calibration/analysis"
)

const (
	btreeDegree = 8

	// Step latencies above maxStepLatency are clamped. Two significant
	// figures keep one histogram per instruction around 25KiB.
	maxStepLatency     = int64(time.Second)
	stepLatencySigFigs = 2
)

// InstructionStats summarizes every sample of one instruction.
type InstructionStats[I cmp.Ordered] struct {
	Instruction I
	Count       uint64
	First       analysis.Timestamp
	Last        analysis.Timestamp
}

// AverageSpacing returns (Last-First)/Count in nanoseconds. It is undefined
// for fewer than two samples and returns analysis.ErrInsufficientSamples.
func (s InstructionStats[I]) AverageSpacing() (float64, error) {
	if s.Count < 2 {
		return 0, errors.Wrapf(analysis.ErrInsufficientSamples, "%v observed %d time(s)", s.Instruction, s.Count)
	}
	return float64(s.Last.Sub(s.First)) / float64(s.Count), nil
}

// Delta is the time elapsed since the previous sample of the trace. It is
// absent for the first sample and for samples earlier than their predecessor.
type Delta struct {
	Elapsed time.Duration
	Present bool
}

// Latency describes the distribution of the time from an instruction's
// dispatch to the next dispatch.
type Latency struct {
	Count int64
	Min   time.Duration
	P50   time.Duration
	P75   time.Duration
	P99   time.Duration
	Max   time.Duration
	Mean  time.Duration
}

type entry[I cmp.Ordered] struct {
	stats InstructionStats[I]
	steps *hdrhistogram.Histogram
}

func (e *entry[I]) recordStep(d time.Duration) {
	v := int64(d)
	if v > maxStepLatency {
		v = maxStepLatency
	}
	// v is within the histogram range, RecordValue cannot fail.
	_ = e.steps.RecordValue(v)
}

// Stats is the read-only result of aggregating one trace.
type Stats[I cmp.Ordered] struct {
	TotalSamples uint64
	GlobalFirst  analysis.Timestamp
	GlobalLast   analysis.Timestamp

	// Deltas is index-aligned with the aggregated trace.
	Deltas []Delta
	// Regressions counts samples whose timestamp is before the previous
	// sample of a different instruction.
	Regressions int

	index *btree.BTreeG[*entry[I]]
}

func less[I cmp.Ordered](a, b *entry[I]) bool {
	return cmp.Less(a.stats.Instruction, b.stats.Instruction)
}

// Aggregate reduces a trace in a single pass. It fails with
// analysis.ErrEmptyTrace for an empty trace and with
// *analysis.NonMonotonicTraceError when the samples of one instruction are not
// in non-decreasing time order.
func Aggregate[I cmp.Ordered](trace analysis.Trace[I]) (*Stats[I], error) {
	if len(trace) == 0 {
		return nil, analysis.ErrEmptyTrace
	}

	st := &Stats[I]{
		TotalSamples: uint64(len(trace)),
		GlobalFirst:  trace[0].Time,
		GlobalLast:   trace[len(trace)-1].Time,
		Deltas:       make([]Delta, len(trace)),
		index:        btree.NewG(btreeDegree, less[I]),
	}

	var (
		probe    = &entry[I]{}
		previous *analysis.Sample[I]
		prevEnt  *entry[I]
	)
	for i := range trace {
		s := &trace[i]

		probe.stats.Instruction = s.Instruction
		e, ok := st.index.Get(probe)
		if !ok {
			e = &entry[I]{
				stats: InstructionStats[I]{Instruction: s.Instruction, First: s.Time, Last: s.Time},
				steps: hdrhistogram.New(1, maxStepLatency, stepLatencySigFigs),
			}
			st.index.ReplaceOrInsert(e)
		} else if s.Time < e.stats.Last {
			return nil, &analysis.NonMonotonicTraceError{
				Instruction: fmt.Sprint(s.Instruction),
				Index:       i,
				Previous:    e.stats.Last,
				Current:     s.Time,
			}
		}
		e.stats.Count++
		e.stats.Last = s.Time

		if previous != nil {
			if elapsed, ok := s.Time.Since(previous.Time); ok {
				st.Deltas[i] = Delta{Elapsed: elapsed, Present: true}
				prevEnt.recordStep(elapsed)
			} else {
				st.Regressions++
			}
		}
		previous, prevEnt = s, e
	}
	return st, nil
}

// Len returns the number of distinct instructions.
func (s *Stats[I]) Len() int {
	return s.index.Len()
}

// Instructions returns per-instruction statistics in instruction order.
func (s *Stats[I]) Instructions() []InstructionStats[I] {
	out := make([]InstructionStats[I], 0, s.index.Len())
	s.index.Ascend(func(e *entry[I]) bool {
		out = append(out, e.stats)
		return true
	})
	return out
}

func (s *Stats[I]) Lookup(instruction I) (InstructionStats[I], bool) {
	e, ok := s.index.Get(&entry[I]{stats: InstructionStats[I]{Instruction: instruction}})
	if !ok {
		return InstructionStats[I]{}, false
	}
	return e.stats, true
}

// StepLatency reports false if the instruction was never followed by another
// sample.
func (s *Stats[I]) StepLatency(instruction I) (Latency, bool) {
	e, ok := s.index.Get(&entry[I]{stats: InstructionStats[I]{Instruction: instruction}})
	if !ok || e.steps.TotalCount() == 0 {
		return Latency{}, false
	}
	h := e.steps
	return Latency{
		Count: h.TotalCount(),
		Min:   time.Duration(h.Min()),
		P50:   time.Duration(h.ValueAtQuantile(50)),
		P75:   time.Duration(h.ValueAtQuantile(75)),
		P99:   time.Duration(h.ValueAtQuantile(99)),
		Max:   time.Duration(h.Max()),
		Mean:  time.Duration(h.Mean()),
	}, true
}
