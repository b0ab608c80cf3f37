package report

import (
	"cmp"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"

	"github.com/jsign/vm-gas-calibration/analysis"
	"github.com/jsign/vm-gas-calibration/analysis/aggregator"
)

// AbsentMarker fills the elapsed column of samples without a predecessor.
const AbsentMarker = "none"

var traceHeader = []string{"instruction", "timestamp_ns", "elapsed_ns"}

// WriteTraceCSV writes one row per sample. deltas must be the Deltas of the
// aggregation of trace.
func WriteTraceCSV[I cmp.Ordered](w io.Writer, trace analysis.Trace[I], deltas []aggregator.Delta) error {
	if len(deltas) != len(trace) {
		return errors.Newf("trace has %d samples but %d deltas", len(trace), len(deltas))
	}

	csvWriter := csv.NewWriter(w)
	if err := csvWriter.Write(traceHeader); err != nil {
		return errors.Wrap(err, "writing trace header")
	}
	for i, s := range trace {
		elapsed := AbsentMarker
		if deltas[i].Present {
			elapsed = strconv.FormatInt(deltas[i].Elapsed.Nanoseconds(), 10)
		}
		row := []string{fmt.Sprint(s.Instruction), strconv.FormatInt(int64(s.Time), 10), elapsed}
		if err := csvWriter.Write(row); err != nil {
			return errors.Wrapf(err, "writing trace row %d", i)
		}
	}
	csvWriter.Flush()
	return errors.Wrap(csvWriter.Error(), "flushing trace")
}
