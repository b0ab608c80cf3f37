package report

import (
	"cmp"
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jsign/vm-gas-calibration/analysis/normalizer"
)

// WriteMetrics writes the cost table in the Prometheus text format, for the
// node_exporter textfile collector.
func WriteMetrics[I cmp.Ordered](path string, table *normalizer.CostTable[I]) error {
	var (
		labels = []string{"instruction"}
		gas    = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vm",
			Subsystem: "instruction",
			Name:      "gas",
			Help:      "Calibrated gas per instruction.",
		}, labels)
		count = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vm",
			Subsystem: "instruction",
			Name:      "count",
			Help:      "Number of times the instruction was dispatched.",
		}, labels)
		spacing = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vm",
			Subsystem: "instruction",
			Name:      "average_spacing_seconds",
			Help:      "Average spacing between samples of the instruction.",
		}, labels)
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(gas, count, spacing)
	for _, e := range table.Entries {
		label := fmt.Sprint(e.Instruction)
		count.WithLabelValues(label).Set(float64(e.Count))
		if e.Status != normalizer.Priced {
			continue
		}
		gas.WithLabelValues(label).Set(e.Gas)
		spacing.WithLabelValues(label).Set(e.AverageSpacing / 1e9)
	}
	return errors.Wrapf(prometheus.WriteToTextfile(path, reg), "writing metrics to %s", path)
}
