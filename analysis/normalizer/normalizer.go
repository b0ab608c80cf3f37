package normalizer

import (
	"cmp"
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/jsign/vm-gas-calibration/analysis"
	"github.com/jsign/vm-gas-calibration/analysis/aggregator"
)

type Status int

const (
	Priced Status = iota
	// InsufficientSamples marks instructions observed once: no spacing can
	// be derived, so no gas is assigned.
	InsufficientSamples
	// NonFinite marks instructions whose gas overflowed or was NaN.
	NonFinite
)

func (s Status) String() string {
	switch s {
	case Priced:
		return "priced"
	case InsufficientSamples:
		return "insufficient-samples"
	case NonFinite:
		return "non-finite"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Entry is the cost of one instruction. AverageSpacing is in nanoseconds;
// AverageSpacing, TimeShare and Gas are only meaningful when Status is Priced.
type Entry[I cmp.Ordered] struct {
	Instruction    I
	Count          uint64
	AverageSpacing float64
	TimeShare      float64
	Gas            float64
	Status         Status
}

// CostTable has one entry per distinct instruction, in instruction order.
type CostTable[I cmp.Ordered] struct {
	Budget  Budget
	Entries []Entry[I]
}

// NonFiniteCostError lists the instructions whose gas could not be computed
// as a finite number.
type NonFiniteCostError struct {
	Instructions []string
}

func (e *NonFiniteCostError) Error() string {
	return "non-finite gas for " + strings.Join(e.Instructions, ", ")
}

// Normalize derives the gas of every instruction from its average spacing:
// gas = spacing / budget.Time * budget.MaxCost.
func Normalize[I cmp.Ordered](stats *aggregator.Stats[I], budget Budget) (*CostTable[I], error) {
	if err := budget.Validate(); err != nil {
		return nil, err
	}

	instrs := stats.Instructions()
	table := &CostTable[I]{Budget: budget, Entries: make([]Entry[I], 0, len(instrs))}
	for _, s := range instrs {
		e := Entry[I]{Instruction: s.Instruction, Count: s.Count}
		spacing, err := s.AverageSpacing()
		switch {
		case errors.Is(err, analysis.ErrInsufficientSamples):
			e.Status = InsufficientSamples
		case err != nil:
			return nil, err
		default:
			e.AverageSpacing = spacing
			e.TimeShare, e.Gas = budget.Gas(spacing)
			if !finite(e.TimeShare, e.Gas) {
				e.Status = NonFinite
			}
		}
		table.Entries = append(table.Entries, e)
	}
	return table, nil
}

// Err returns a *NonFiniteCostError naming every NonFinite entry, or nil.
func (t *CostTable[I]) Err() error {
	var bad []string
	for _, e := range t.Entries {
		if e.Status == NonFinite {
			bad = append(bad, fmt.Sprint(e.Instruction))
		}
	}
	if len(bad) == 0 {
		return nil
	}
	return &NonFiniteCostError{Instructions: bad}
}

// Gas returns the gas of a priced instruction.
func (t *CostTable[I]) Gas(instruction I) (float64, error) {
	for _, e := range t.Entries {
		if e.Instruction != instruction {
			continue
		}
		switch e.Status {
		case Priced:
			return e.Gas, nil
		case InsufficientSamples:
			return 0, errors.Wrapf(analysis.ErrInsufficientSamples, "%v observed %d time(s)", instruction, e.Count)
		default:
			return 0, &NonFiniteCostError{Instructions: []string{fmt.Sprint(instruction)}}
		}
	}
	return 0, errors.Newf("instruction %v not in cost table", instruction)
}

// Priced returns the entries that carry a gas value.
func (t *CostTable[I]) Priced() []Entry[I] {
	out := make([]Entry[I], 0, len(t.Entries))
	for _, e := range t.Entries {
		if e.Status == Priced {
			out = append(out, e)
		}
	}
	return out
}
