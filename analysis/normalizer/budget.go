package normalizer

import (
	"math"
	"time"

	"github.com/jsign/vm-gas-calibration/analysis"
)

// Budget maps a wall-clock time budget onto an abstract cost ceiling: an
// execution that takes Time consumes MaxCost gas.
type Budget struct {
	MaxCost float64
	Time    time.Duration
}

// DefaultBudget is a 3.6e12 gas ceiling per 16.384s execution unit.
var DefaultBudget = Budget{
	MaxCost: 3_600_000_000_000,
	Time:    16384 * time.Millisecond,
}

func (b Budget) Validate() error {
	if !(b.MaxCost > 0) || math.IsInf(b.MaxCost, 0) {
		return &analysis.InvalidBudgetError{Name: "max_cost_budget", Value: b.MaxCost}
	}
	if b.Time <= 0 {
		return &analysis.InvalidBudgetError{Name: "time_budget", Value: b.Time}
	}
	return nil
}

// Gas converts a duration in nanoseconds into its share of the time budget
// and the corresponding gas.
func (b Budget) Gas(ns float64) (share, gas float64) {
	share = ns / float64(b.Time.Nanoseconds())
	return share, share * b.MaxCost
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
