package normalizer

import (
	"cmp"
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"

	"github.com/jsign/vm-gas-calibration/analysis"
	"github.com/jsign/vm-gas-calibration/analysis/aggregator"
)

// VerificationTolerance is the relative tolerance between the global gas
// estimate and the sum of its proportional shares.
const VerificationTolerance = 1e-6

var ErrVerificationMismatch = errors.New("proportional gas shares do not add up to the global estimate")

// Share is the part of the global gas estimate attributed to one instruction
// by its occurrence frequency.
type Share[I cmp.Ordered] struct {
	Instruction I
	Proportion  float64
	Gas         float64
}

// Verification cross-checks the per-instruction derivation against a single
// estimate over the whole trace. It is diagnostic and not part of the
// published cost table.
type Verification[I cmp.Ordered] struct {
	GlobalSpacing float64
	GlobalGas     float64
	Shares        []Share[I]
	Sum           float64
	RelativeError float64
}

// Verify computes the global average spacing (global_last-global_first)/total,
// its gas, and redistributes that gas by count/total. It fails with
// ErrVerificationMismatch if the shares do not reconstruct the estimate.
func Verify[I cmp.Ordered](stats *aggregator.Stats[I], budget Budget) (*Verification[I], error) {
	if err := budget.Validate(); err != nil {
		return nil, err
	}

	span, ok := stats.GlobalLast.Since(stats.GlobalFirst)
	if !ok {
		return nil, &analysis.NonMonotonicTraceError{
			Instruction: "trace",
			Index:       int(stats.TotalSamples) - 1,
			Previous:    stats.GlobalFirst,
			Current:     stats.GlobalLast,
		}
	}

	v := &Verification[I]{GlobalSpacing: float64(span) / float64(stats.TotalSamples)}
	_, v.GlobalGas = budget.Gas(v.GlobalSpacing)
	if !finite(v.GlobalGas) {
		return nil, &NonFiniteCostError{Instructions: []string{"global estimate"}}
	}

	instrs := stats.Instructions()
	v.Shares = make([]Share[I], 0, len(instrs))
	gas := make([]float64, 0, len(instrs))
	for _, s := range instrs {
		p := float64(s.Count) / float64(stats.TotalSamples)
		sh := Share[I]{Instruction: s.Instruction, Proportion: p, Gas: v.GlobalGas * p}
		v.Shares = append(v.Shares, sh)
		gas = append(gas, sh.Gas)
	}
	v.Sum = floats.Sum(gas)
	if v.GlobalGas != 0 {
		v.RelativeError = math.Abs(v.Sum-v.GlobalGas) / math.Abs(v.GlobalGas)
	}

	if !scalar.EqualWithinAbsOrRel(v.Sum, v.GlobalGas, 0, VerificationTolerance) {
		return v, errors.Wrapf(ErrVerificationMismatch, "sum %g, estimate %g", v.Sum, v.GlobalGas)
	}
	return v, nil
}
