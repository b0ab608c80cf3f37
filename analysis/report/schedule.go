package report

import (
	"cmp"
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/jsign/vm-gas-calibration/analysis/normalizer"
)

// Schedule is the published gas schedule. Instructions observed only once are
// listed with their status and no gas.
type Schedule struct {
	MaxCostBudget float64         `yaml:"max_cost_budget"`
	TimeBudget    string          `yaml:"time_budget"`
	Instructions  []ScheduleEntry `yaml:"instructions"`
}

type ScheduleEntry struct {
	Instruction      string   `yaml:"instruction"`
	Count            uint64   `yaml:"count"`
	AverageSpacingNs *float64 `yaml:"average_spacing_ns,omitempty"`
	Gas              *float64 `yaml:"gas,omitempty"`
	Status           string   `yaml:"status"`
}

func NewSchedule[I cmp.Ordered](table *normalizer.CostTable[I]) Schedule {
	s := Schedule{
		MaxCostBudget: table.Budget.MaxCost,
		TimeBudget:    table.Budget.Time.String(),
		Instructions:  make([]ScheduleEntry, 0, len(table.Entries)),
	}
	for _, e := range table.Entries {
		se := ScheduleEntry{
			Instruction: fmt.Sprint(e.Instruction),
			Count:       e.Count,
			Status:      e.Status.String(),
		}
		if e.Status == normalizer.Priced {
			spacing, gas := e.AverageSpacing, e.Gas
			se.AverageSpacingNs, se.Gas = &spacing, &gas
		}
		s.Instructions = append(s.Instructions, se)
	}
	return s
}

func WriteSchedule[I cmp.Ordered](w io.Writer, table *normalizer.CostTable[I]) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewSchedule(table)); err != nil {
		return errors.Wrap(err, "encoding gas schedule")
	}
	return errors.Wrap(enc.Close(), "encoding gas schedule")
}
