package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/jsign/vm-gas-calibration/analysis"
	"github.com/jsign/vm-gas-calibration/analysis/tracer"
	"github.com/jsign/vm-gas-calibration/engine/evm"
	"github.com/jsign/vm-gas-calibration/engine/wasm"
)

const (
	engineAuto = "auto"
	engineWASM = "wasm"
	engineEVM  = "evm"
)

var (
	engineName  string        // Interpreter back-end
	configPath  string        // Calibration profile
	maxCost     float64       // Gas ceiling per time budget
	timeBudget  time.Duration // Wall time the gas ceiling corresponds to
	traceOut    string        // Per-sample CSV path
	scheduleOut string        // Gas schedule YAML path
	metricsOut  string        // Prometheus textfile path
	capacity    int           // Pre-allocated trace samples
	gasLimit    uint64        // EVM gas limit of the invocation
)

var invokeCmd = &cobra.Command{
	Use:   "invoke <module-file> <exported-function-name> [<arg>...]",
	Short: "Invoke an exported function under the tracer and print its gas costs",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Budget().Validate(); err != nil {
			return err
		}

		path, export, callArgs := args[0], args[1], args[2:]
		kind, err := detectEngine(engineName, path)
		if err != nil {
			return err
		}
		logrus.Debugf("invoking %s in %s with the %s engine", export, path, kind)

		out := cmd.OutOrStdout()
		switch kind {
		case engineWASM:
			return runWASM(cmd.Context(), out, cfg, path, export, callArgs)
		default:
			return runEVM(out, cfg, path, export, callArgs)
		}
	},
}

// detectEngine resolves auto by the binary module magic; anything else is
// taken to be a contract artifact.
func detectEngine(name, path string) (string, error) {
	switch name {
	case engineWASM, engineEVM:
		return name, nil
	case engineAuto:
	default:
		return "", errors.Newf("unknown engine %q, expected %s, %s or %s", name, engineAuto, engineWASM, engineEVM)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, "detecting engine")
	}
	defer f.Close()
	magic := make([]byte, len(wasm.Magic))
	if _, err := io.ReadFull(f, magic); err == nil && bytes.Equal(magic, wasm.Magic) {
		return engineWASM, nil
	}
	return engineEVM, nil
}

func runWASM(ctx context.Context, out io.Writer, cfg Config, path, export string, callArgs []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	m, err := wasm.Load(ctx, path)
	if err != nil {
		return err
	}
	defer m.Close(ctx)

	index, err := m.FunctionIndex(export)
	if err != nil {
		return err
	}
	paramTypes, _ := m.Params(index)
	resultTypes, _ := m.Results(index)
	params, err := wasm.ParseArgs(paramTypes, callArgs)
	if err != nil {
		return err
	}

	clock := analysis.NewClock()
	tr := tracer.New[wasm.Instruction](clock, tracer.WithCapacity(capacity))
	start := clock.Now()
	results, err := m.Invoke(ctx, export, params, tr)
	elapsed := clock.Now().Sub(start)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s = %s\n", formatCall(export, callArgs), wasm.FormatResults(resultTypes, results))
	return calibrate(out, cfg, tr.Finish(), elapsed)
}

func runEVM(out io.Writer, cfg Config, path, export string, callArgs []string) error {
	contract, err := evm.Load(path)
	if err != nil {
		return err
	}
	method, err := contract.Method(export)
	if err != nil {
		return err
	}
	values, err := evm.ParseArgs(method, callArgs)
	if err != nil {
		return err
	}

	clock := analysis.NewClock()
	tr := tracer.New[vm.OpCode](clock, tracer.WithCapacity(capacity))
	start := clock.Now()
	ret, err := contract.Invoke(method, values, tr, gasLimit)
	elapsed := clock.Now().Sub(start)
	if err != nil {
		return err
	}
	results, err := evm.FormatResults(method, ret)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "%s = %s\n", formatCall(method.Name, callArgs), results)
	return calibrate(out, cfg, tr.Finish(), elapsed)
}

func formatCall(name string, args []string) string {
	return name + "(" + strings.Join(args, ", ") + ")"
}

func init() {
	invokeCmd.Flags().StringVar(&engineName, "engine", engineAuto, "Interpreter (auto, wasm, evm)")
	invokeCmd.Flags().StringVar(&configPath, "config", "", "Calibration profile (YAML)")
	invokeCmd.Flags().Float64Var(&maxCost, "max-cost", DefaultConfig().MaxCostBudget, "Gas available per time budget")
	invokeCmd.Flags().DurationVar(&timeBudget, "time-budget", DefaultConfig().TimeBudget, "Wall time the gas budget corresponds to")
	invokeCmd.Flags().StringVar(&traceOut, "trace-out", DefaultConfig().TraceOut, "Per-sample trace CSV, empty to skip")
	invokeCmd.Flags().StringVar(&scheduleOut, "schedule-out", "", "Gas schedule YAML, empty to skip")
	invokeCmd.Flags().StringVar(&metricsOut, "metrics-out", "", "Prometheus textfile, empty to skip")
	invokeCmd.Flags().IntVar(&capacity, "capacity", 1<<16, "Trace samples to pre-allocate")
	invokeCmd.Flags().Uint64Var(&gasLimit, "gas-limit", evm.DefaultGasLimit, "EVM gas limit of the invocation")
}
