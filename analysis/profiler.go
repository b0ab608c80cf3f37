package analysis

import (
	"cmp"
	"strconv"
	"time"

	"github.com/benbjohnson/clock"
)

// Timestamp is a monotonic point in time, in nanoseconds since the epoch of
// the Clock that sampled it.
type Timestamp int64

// Sub returns t-u. The result is negative if u is after t.
func (t Timestamp) Sub(u Timestamp) time.Duration {
	return time.Duration(t - u)
}

// Since returns the time elapsed between earlier and t. It reports false if
// earlier is after t, which only happens when the clock went backwards.
func (t Timestamp) Since(earlier Timestamp) (time.Duration, bool) {
	if earlier > t {
		return 0, false
	}
	return time.Duration(t - earlier), true
}

func (t Timestamp) String() string {
	return strconv.FormatInt(int64(t), 10) + "ns"
}

// Clock samples Timestamps from a single monotonic source.
type Clock struct {
	clock clock.Clock
	epoch time.Time
}

func NewClock() *Clock {
	return NewClockFrom(clock.New())
}

func NewClockFrom(c clock.Clock) *Clock {
	return &Clock{clock: c, epoch: c.Now()}
}

func (c *Clock) Now() Timestamp {
	return Timestamp(c.clock.Since(c.epoch))
}

// Sample is one dispatched instruction and the time it was observed.
type Sample[I cmp.Ordered] struct {
	Instruction I
	Time        Timestamp
}

// Trace holds samples in dispatch order.
type Trace[I cmp.Ordered] []Sample[I]

// Profiler is what an interpreter calls on every instruction dispatch.
type Profiler[I cmp.Ordered] interface {
	Record(instruction I, ts Timestamp)
	SampleClock() Timestamp
}
