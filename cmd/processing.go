package cmd

import (
	"cmp"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/jsign/vm-gas-calibration/analysis"
	"github.com/jsign/vm-gas-calibration/analysis/aggregator"
	"github.com/jsign/vm-gas-calibration/analysis/normalizer"
	"github.com/jsign/vm-gas-calibration/analysis/report"
)

type calibrationResult[I cmp.Ordered] struct {
	trace        analysis.Trace[I]
	stats        *aggregator.Stats[I]
	table        *normalizer.CostTable[I]
	verification *normalizer.Verification[I]
}

func processTrace[I cmp.Ordered](trace analysis.Trace[I], budget normalizer.Budget) (calibrationResult[I], error) {
	res := calibrationResult[I]{trace: trace}

	stats, err := aggregator.Aggregate(trace)
	if err != nil {
		return res, errors.Wrap(err, "aggregating trace")
	}
	if stats.Regressions > 0 {
		logrus.Warnf("%d sample(s) earlier than their predecessor, elapsed left empty", stats.Regressions)
	}
	res.stats = stats

	table, err := normalizer.Normalize(stats, budget)
	if err != nil {
		return res, errors.Wrap(err, "normalizing costs")
	}
	if err := table.Err(); err != nil {
		return res, err
	}
	res.table = table

	v, err := normalizer.Verify(stats, budget)
	if err != nil {
		return res, err
	}
	res.verification = v
	logrus.Infof("calibrated %d instruction(s) from %d samples", stats.Len(), stats.TotalSamples)
	return res, nil
}

// calibrate turns a finished trace into a cost table, writes the configured
// outputs and prints the summary to w.
func calibrate[I cmp.Ordered](w io.Writer, cfg Config, trace analysis.Trace[I], elapsed time.Duration) error {
	res, err := processTrace(trace, cfg.Budget())
	if err != nil {
		return err
	}
	if err := writeOutputs(cfg, res); err != nil {
		return err
	}
	report.PrintSummary(w, report.Summary[I]{
		Stats:        res.stats,
		Table:        res.table,
		Verification: res.verification,
		Elapsed:      elapsed,
	})
	return nil
}

func writeOutputs[I cmp.Ordered](cfg Config, res calibrationResult[I]) error {
	if cfg.TraceOut != "" {
		if err := writeFile(cfg.TraceOut, func(w io.Writer) error {
			return report.WriteTraceCSV(w, res.trace, res.stats.Deltas)
		}); err != nil {
			return err
		}
		logrus.Infof("trace written to %s", cfg.TraceOut)
	}
	if cfg.ScheduleOut != "" {
		if err := writeFile(cfg.ScheduleOut, func(w io.Writer) error {
			return report.WriteSchedule(w, res.table)
		}); err != nil {
			return err
		}
		logrus.Infof("gas schedule written to %s", cfg.ScheduleOut)
	}
	if cfg.MetricsOut != "" {
		if err := report.WriteMetrics(cfg.MetricsOut, res.table); err != nil {
			return err
		}
		logrus.Infof("metrics written to %s", cfg.MetricsOut)
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.Wrapf(f.Close(), "closing %s", path)
}
