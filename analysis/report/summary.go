package report

import (
	"cmp"
	"fmt"
	"io"
	"math"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jsign/vm-gas-calibration/analysis/aggregator"
	"github.com/jsign/vm-gas-calibration/analysis/normalizer"
)

// Summary is everything printed to the console after a calibration run.
type Summary[I cmp.Ordered] struct {
	Stats        *aggregator.Stats[I]
	Table        *normalizer.CostTable[I]
	Verification *normalizer.Verification[I]
	// Elapsed is the wall time of the whole invocation, including
	// instantiation and the tracing overhead itself.
	Elapsed time.Duration
}

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	warnColor = color.New(color.FgYellow)
)

func PrintSummary[I cmp.Ordered](w io.Writer, s Summary[I]) {
	p := message.NewPrinter(language.English)

	p.Fprintf(w, "instructions: %d (%d distinct)\n", s.Stats.TotalSamples, s.Stats.Len())
	span := s.Stats.GlobalLast.Sub(s.Stats.GlobalFirst)
	if s.Elapsed > 0 {
		overhead := s.Elapsed - span
		fmt.Fprintf(w, "invocation: %v, traced span: %v, interpreter overhead: %v (%.2f%% traced)\n",
			s.Elapsed, span, overhead, 100*float64(span)/float64(s.Elapsed))
	}
	fmt.Fprintf(w, "budget: %s gas per %v\n\n", formatCost(p, s.Table.Budget.MaxCost), s.Table.Budget.Time)

	shares := make(map[I]normalizer.Share[I], len(s.Verification.Shares))
	for _, sh := range s.Verification.Shares {
		shares[sh.Instruction] = sh
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"instruction", "count", "share", "avg spacing", "step p50", "step p99", "gas", "adjusted gas"})
	table.SetAutoFormatHeaders(true)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.SetBorder(false)
	for _, e := range s.Table.Entries {
		sh := shares[e.Instruction]
		row := []string{
			fmt.Sprint(e.Instruction),
			p.Sprintf("%d", e.Count),
			fmt.Sprintf("%.4f%%", 100*sh.Proportion),
			"-", "-", "-", "-",
			p.Sprintf("%.4f", sh.Gas),
		}
		if lat, ok := s.Stats.StepLatency(e.Instruction); ok {
			row[4], row[5] = lat.P50.String(), lat.P99.String()
		}
		switch e.Status {
		case normalizer.Priced:
			row[3] = fmt.Sprintf("%.2fns", e.AverageSpacing)
			row[6] = p.Sprintf("%.4f", e.Gas)
		default:
			row[6] = e.Status.String()
		}
		table.Append(row)
	}
	table.Render()

	v := s.Verification
	fmt.Fprintln(w)
	p.Fprintf(w, "global average spacing: %.2fns, gas = %.4f\n", v.GlobalSpacing, v.GlobalGas)
	p.Fprintf(w, "verification: sum of adjusted gas = %.4f (relative error %.3g) ", v.Sum, v.RelativeError)
	if v.RelativeError <= normalizer.VerificationTolerance {
		okColor.Fprintln(w, "OK")
	} else {
		warnColor.Fprintln(w, "MISMATCH")
	}

	var unpriced []string
	for _, e := range s.Table.Entries {
		if e.Status == normalizer.InsufficientSamples {
			unpriced = append(unpriced, fmt.Sprint(e.Instruction))
		}
	}
	if len(unpriced) > 0 {
		warnColor.Fprintf(w, "not priced, observed once: %s\n", strings.Join(unpriced, ", "))
	}
}

func formatCost(p *message.Printer, v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1<<63 {
		return p.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
