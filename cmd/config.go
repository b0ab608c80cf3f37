package cmd

import (
	"bytes"
	"io"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jsign/vm-gas-calibration/analysis/normalizer"
)

// Config is a calibration profile. Keys missing from the file keep their
// defaults; unknown keys are rejected.
type Config struct {
	MaxCostBudget float64       `yaml:"max_cost_budget"`
	TimeBudget    time.Duration `yaml:"time_budget"`
	TraceOut      string        `yaml:"trace_out"`
	ScheduleOut   string        `yaml:"schedule_out"`
	MetricsOut    string        `yaml:"metrics_out"`
}

func DefaultConfig() Config {
	return Config{
		MaxCostBudget: normalizer.DefaultBudget.MaxCost,
		TimeBudget:    normalizer.DefaultBudget.Time,
		TraceOut:      "trace.csv",
	}
}

func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "reading config")
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, errors.Wrapf(err, "parsing config %s", path)
	}
	return cfg, nil
}

func (c Config) Budget() normalizer.Budget {
	return normalizer.Budget{MaxCost: c.MaxCostBudget, Time: c.TimeBudget}
}

// resolveConfig loads --config if given and lets flags set on the command
// line override it.
func resolveConfig(cmd *cobra.Command) (Config, error) {
	cfg := DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("max-cost") {
		cfg.MaxCostBudget = maxCost
	}
	if flags.Changed("time-budget") {
		cfg.TimeBudget = timeBudget
	}
	if flags.Changed("trace-out") {
		cfg.TraceOut = traceOut
	}
	if flags.Changed("schedule-out") {
		cfg.ScheduleOut = scheduleOut
	}
	if flags.Changed("metrics-out") {
		cfg.MetricsOut = metricsOut
	}
	return cfg, nil
}
