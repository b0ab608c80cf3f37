package analysis

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	ErrEmptyTrace          = errors.New("empty trace: the invocation dispatched no instruction")
	ErrInsufficientSamples = errors.New("fewer than two samples")
)

// NonMonotonicTraceError reports a sample whose timestamp is earlier than the
// previous sample of the same instruction. Every statistic derived from such a
// trace is meaningless.
type NonMonotonicTraceError struct {
	Instruction string
	Index       int
	Previous    Timestamp
	Current     Timestamp
}

func (e *NonMonotonicTraceError) Error() string {
	return fmt.Sprintf("non-monotonic trace: %s at sample %d has timestamp %v, before previous %v",
		e.Instruction, e.Index, e.Current, e.Previous)
}

// InvalidBudgetError reports a calibration constant that is not strictly positive.
type InvalidBudgetError struct {
	Name  string
	Value any
}

func (e *InvalidBudgetError) Error() string {
	return fmt.Sprintf("invalid %s: %v must be positive", e.Name, e.Value)
}
