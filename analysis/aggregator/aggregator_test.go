package aggregator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsign/vm-gas-calibration/analysis"
)

const t0 = analysis.Timestamp(1_000)

func scenarioTrace() analysis.Trace[string] {
	return analysis.Trace[string]{
		{Instruction: "A", Time: t0},
		{Instruction: "B", Time: t0 + 10},
		{Instruction: "A", Time: t0 + 20},
		{Instruction: "B", Time: t0 + 35},
	}
}

func TestAggregate_Scenario_PerInstructionStats(t *testing.T) {
	// GIVEN the trace [(A,t0),(B,t0+10),(A,t0+20),(B,t0+35)]
	trace := scenarioTrace()

	// WHEN aggregated
	st, err := Aggregate(trace)
	require.NoError(t, err)

	// THEN each instruction has its count, first and last timestamps
	assert.Equal(t, []InstructionStats[string]{
		{Instruction: "A", Count: 2, First: t0, Last: t0 + 20},
		{Instruction: "B", Count: 2, First: t0 + 10, Last: t0 + 35},
	}, st.Instructions())

	// AND the average spacings are (last-first)/count
	a, _ := st.Lookup("A")
	b, _ := st.Lookup("B")
	spacingA, err := a.AverageSpacing()
	require.NoError(t, err)
	spacingB, err := b.AverageSpacing()
	require.NoError(t, err)
	assert.Equal(t, 10.0, spacingA)
	assert.Equal(t, 12.5, spacingB)

	// AND the global totals cover the whole trace
	assert.Equal(t, uint64(4), st.TotalSamples)
	assert.Equal(t, t0, st.GlobalFirst)
	assert.Equal(t, t0+35, st.GlobalLast)
}

func TestAggregate_Deltas_FirstSampleAbsent(t *testing.T) {
	st, err := Aggregate(scenarioTrace())
	require.NoError(t, err)

	assert.Equal(t, []Delta{
		{},
		{Elapsed: 10, Present: true},
		{Elapsed: 10, Present: true},
		{Elapsed: 15, Present: true},
	}, st.Deltas)
	assert.Zero(t, st.Regressions)
}

func TestAggregate_EmptyTrace_Fails(t *testing.T) {
	// GIVEN an empty trace
	// WHEN aggregated
	st, err := Aggregate(analysis.Trace[string]{})

	// THEN it fails with ErrEmptyTrace and produces nothing
	assert.ErrorIs(t, err, analysis.ErrEmptyTrace)
	assert.Nil(t, st)

	st, err = Aggregate[string](nil)
	assert.ErrorIs(t, err, analysis.ErrEmptyTrace)
	assert.Nil(t, st)
}

func TestAggregate_NonMonotonicInstruction_Fails(t *testing.T) {
	// GIVEN a trace where A's second sample is earlier than its first
	trace := analysis.Trace[string]{
		{Instruction: "A", Time: t0 + 50},
		{Instruction: "B", Time: t0 + 60},
		{Instruction: "A", Time: t0 + 40},
	}

	// WHEN aggregated
	st, err := Aggregate(trace)

	// THEN it fails naming the instruction and the offending sample
	require.Error(t, err)
	assert.Nil(t, st)
	var nonMono *analysis.NonMonotonicTraceError
	require.True(t, errors.As(err, &nonMono))
	assert.Equal(t, "A", nonMono.Instruction)
	assert.Equal(t, 2, nonMono.Index)
	assert.Equal(t, t0+50, nonMono.Previous)
	assert.Equal(t, t0+40, nonMono.Current)
}

func TestAggregate_GlobalRegression_RecordsAbsentDelta(t *testing.T) {
	// GIVEN a trace whose instructions are each monotonic but B precedes A in time
	trace := analysis.Trace[string]{
		{Instruction: "A", Time: t0 + 10},
		{Instruction: "B", Time: t0 + 5},
		{Instruction: "A", Time: t0 + 20},
	}

	// WHEN aggregated
	st, err := Aggregate(trace)

	// THEN aggregation succeeds, the regressed delta is absent and counted
	require.NoError(t, err)
	assert.False(t, st.Deltas[1].Present)
	assert.True(t, st.Deltas[2].Present)
	assert.Equal(t, 15*time.Nanosecond, st.Deltas[2].Elapsed)
	assert.Equal(t, 1, st.Regressions)
}

func TestAggregate_EqualTimestamps_Allowed(t *testing.T) {
	trace := analysis.Trace[string]{
		{Instruction: "A", Time: t0},
		{Instruction: "A", Time: t0},
		{Instruction: "A", Time: t0},
	}
	st, err := Aggregate(trace)
	require.NoError(t, err)

	a, ok := st.Lookup("A")
	require.True(t, ok)
	spacing, err := a.AverageSpacing()
	require.NoError(t, err)
	assert.Zero(t, spacing)
}

func TestAverageSpacing_SingleSample_Flagged(t *testing.T) {
	// GIVEN an instruction dispatched exactly once
	st, err := Aggregate(analysis.Trace[string]{
		{Instruction: "A", Time: t0},
		{Instruction: "B", Time: t0 + 10},
		{Instruction: "A", Time: t0 + 20},
	})
	require.NoError(t, err)
	b, ok := st.Lookup("B")
	require.True(t, ok)

	// WHEN its average spacing is requested
	_, err = b.AverageSpacing()

	// THEN it is signaled as undefined rather than defaulted
	assert.ErrorIs(t, err, analysis.ErrInsufficientSamples)
}

func TestAggregate_RandomTraces_CountsSumToTotal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ops := []byte{0x01, 0x02, 0x03, 0x10, 0x56, 0x60}

	for run := 0; run < 50; run++ {
		// GIVEN a random monotonic trace
		n := 1 + rng.Intn(500)
		trace := make(analysis.Trace[byte], n)
		ts := analysis.Timestamp(rng.Int63n(1000))
		for i := range trace {
			ts += analysis.Timestamp(rng.Intn(100))
			trace[i] = analysis.Sample[byte]{Instruction: ops[rng.Intn(len(ops))], Time: ts}
		}

		// WHEN aggregated
		st, err := Aggregate(trace)
		require.NoError(t, err)

		// THEN total samples equals the trace length and the counts sum to it
		assert.Equal(t, uint64(n), st.TotalSamples)
		var sum uint64
		prev := -1
		for _, s := range st.Instructions() {
			sum += s.Count
			assert.Greater(t, int(s.Instruction), prev, "instructions must be ordered")
			prev = int(s.Instruction)
			assert.LessOrEqual(t, s.First, s.Last)
		}
		assert.Equal(t, st.TotalSamples, sum)
		assert.Equal(t, len(st.Instructions()), st.Len())
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	trace := scenarioTrace()

	first, err := Aggregate(trace)
	require.NoError(t, err)
	second, err := Aggregate(trace)
	require.NoError(t, err)

	assert.Equal(t, first.Instructions(), second.Instructions())
	assert.Equal(t, first.Deltas, second.Deltas)
	assert.Equal(t, first.GlobalFirst, second.GlobalFirst)
	assert.Equal(t, first.GlobalLast, second.GlobalLast)
}

func TestStepLatency_AttributedToPreviousInstruction(t *testing.T) {
	// GIVEN the scenario trace
	st, err := Aggregate(scenarioTrace())
	require.NoError(t, err)

	// THEN A's steps are A->B twice (10ns, 15ns)
	a, ok := st.StepLatency("A")
	require.True(t, ok)
	assert.Equal(t, int64(2), a.Count)
	assert.LessOrEqual(t, a.Min, a.P50)
	assert.LessOrEqual(t, a.P50, a.Max)
	assert.InDelta(t, 10, float64(a.Min), 1)
	assert.InDelta(t, 15, float64(a.Max), 1)

	// AND B is followed once (B->A, 10ns); the last B has no successor
	b, ok := st.StepLatency("B")
	require.True(t, ok)
	assert.Equal(t, int64(1), b.Count)

	_, ok = st.StepLatency("C")
	assert.False(t, ok)
}

func TestStepLatency_LastOnlyInstruction_Absent(t *testing.T) {
	st, err := Aggregate(analysis.Trace[string]{
		{Instruction: "A", Time: t0},
		{Instruction: "Z", Time: t0 + 5},
	})
	require.NoError(t, err)

	_, ok := st.StepLatency("Z")
	assert.False(t, ok)
}
