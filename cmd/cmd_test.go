package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsign/vm-gas-calibration/analysis"
	"github.com/jsign/vm-gas-calibration/engine"
)

func TestMain(m *testing.M) {
	logrus.SetLevel(logrus.WarnLevel)
	os.Exit(m.Run())
}

// run executes the CLI with args from a clean flag state.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	for _, fs := range []*pflag.FlagSet{rootCmd.PersistentFlags(), invokeCmd.Flags()} {
		fs.VisitAll(func(f *pflag.Flag) {
			require.NoError(t, f.Value.Set(f.DefValue))
			f.Changed = false
		})
	}
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	logrus.SetLevel(logrus.WarnLevel)
	return out.String(), err
}

func writeTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// $0 increments its argument; the exported run calls it twice.
var nestedModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x06, 0x01, 0x60, 0x01, 0x7f, 0x01, 0x7f,
	0x03, 0x03, 0x02, 0x00, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x72, 0x75, 0x6e, 0x00, 0x01,
	0x0a, 0x12, 0x02,
	0x07, 0x00, 0x20, 0x00, 0x41, 0x01, 0x6a, 0x0b,
	0x08, 0x00, 0x20, 0x00, 0x10, 0x00, 0x10, 0x00, 0x0b,
}

// answer() returns 42 from runtime code PUSH1 0x2a PUSH1 0 MSTORE PUSH1 0x20 PUSH1 0 RETURN.
const answerArtifact = `{
	"contractName": "Answer",
	"abi": [{"type":"function","name":"answer","inputs":[],"outputs":[{"name":"","type":"uint256"}],"stateMutability":"pure"}],
	"bytecode": "0x600a600c600039600a6000f3602a60005260206000f3",
	"deployedBytecode": "0x602a60005260206000f3"
}`

func TestLoadConfig(t *testing.T) {
	t.Run("partial file keeps defaults", func(t *testing.T) {
		path := writeTemp(t, "c.yaml", []byte("max_cost_budget: 1000\ntime_budget: 1us\n"))
		cfg, err := LoadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 1000.0, cfg.MaxCostBudget)
		assert.Equal(t, time.Microsecond, cfg.TimeBudget)
		assert.Equal(t, "trace.csv", cfg.TraceOut)
	})

	t.Run("empty file", func(t *testing.T) {
		cfg, err := LoadConfig(writeTemp(t, "c.yaml", nil))
		require.NoError(t, err)
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("unknown key rejected", func(t *testing.T) {
		_, err := LoadConfig(writeTemp(t, "c.yaml", []byte("max_cost: 1000\n")))
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})
}

func TestDefaultConfig_Budget(t *testing.T) {
	b := DefaultConfig().Budget()
	assert.Equal(t, 3.6e12, b.MaxCost)
	assert.Equal(t, 16384*time.Millisecond, b.Time)
	assert.NoError(t, b.Validate())
}

func TestDetectEngine(t *testing.T) {
	wasmPath := writeTemp(t, "m.wasm", nestedModule)
	jsonPath := writeTemp(t, "a.json", []byte(answerArtifact))

	for _, tc := range []struct {
		name, engine, path, want string
	}{
		{"auto wasm", engineAuto, wasmPath, engineWASM},
		{"auto artifact", engineAuto, jsonPath, engineEVM},
		{"forced", engineEVM, wasmPath, engineEVM},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := detectEngine(tc.engine, tc.path)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := detectEngine("jvm", wasmPath)
	assert.Error(t, err)
}

func TestInvoke_WASM(t *testing.T) {
	// GIVEN a module on disk and output paths
	dir := t.TempDir()
	module := writeTemp(t, "nested.wasm", nestedModule)
	tracePath := filepath.Join(dir, "trace.csv")
	schedulePath := filepath.Join(dir, "schedule.yaml")
	metricsPath := filepath.Join(dir, "gas.prom")

	// WHEN invoked through the CLI
	out, err := run(t, "invoke", module, "run", "5",
		"--trace-out", tracePath, "--schedule-out", schedulePath, "--metrics-out", metricsPath)
	require.NoError(t, err)

	// THEN the result and the summary are printed
	assert.Contains(t, out, "run(5) = 7")
	assert.Contains(t, out, "instructions: 3 (2 distinct)")
	assert.Contains(t, out, "not priced, observed once: run")

	// AND every output was written
	trace, err := os.ReadFile(tracePath)
	require.NoError(t, err)
	assert.Len(t, bytes.Split(bytes.TrimSpace(trace), []byte("\n")), 4)
	assert.FileExists(t, schedulePath)
	assert.FileExists(t, metricsPath)
}

func TestInvoke_EVM(t *testing.T) {
	artifact := writeTemp(t, "Answer.json", []byte(answerArtifact))
	tracePath := filepath.Join(t.TempDir(), "trace.csv")

	out, err := run(t, "invoke", artifact, "answer", "--trace-out", tracePath)
	require.NoError(t, err)

	assert.Contains(t, out, "answer() = 42")
	assert.Contains(t, out, "instructions: 6 (3 distinct)")
	assert.Contains(t, out, "PUSH1")
}

func TestInvoke_Errors(t *testing.T) {
	module := writeTemp(t, "nested.wasm", nestedModule)
	noTrace := []string{"--trace-out", ""}

	t.Run("unknown export", func(t *testing.T) {
		_, err := run(t, append([]string{"invoke", module, "missing"}, noTrace...)...)
		var notFound *engine.ExportNotFoundError
		assert.True(t, errors.As(err, &notFound))
	})

	t.Run("bad argument", func(t *testing.T) {
		_, err := run(t, append([]string{"invoke", module, "run", "x"}, noTrace...)...)
		var argErr *engine.ArgumentParseError
		require.True(t, errors.As(err, &argErr))
		assert.Equal(t, 0, argErr.Index)
		assert.Equal(t, "i32", argErr.Expected)
	})

	t.Run("missing module", func(t *testing.T) {
		_, err := run(t, append([]string{"invoke", "--engine", "wasm", filepath.Join(t.TempDir(), "none.wasm"), "run"}, noTrace...)...)
		var loadErr *engine.ModuleLoadError
		assert.True(t, errors.As(err, &loadErr))
	})

	t.Run("invalid budget", func(t *testing.T) {
		out, err := run(t, append([]string{"invoke", module, "run", "1", "--max-cost", "0"}, noTrace...)...)
		var budgetErr *analysis.InvalidBudgetError
		require.True(t, errors.As(err, &budgetErr))
		assert.Equal(t, "max_cost_budget", budgetErr.Name)
		assert.NotContains(t, out, "instructions:")
	})

	t.Run("invalid log level", func(t *testing.T) {
		_, err := run(t, append([]string{"invoke", module, "run", "1", "--log", "loud"}, noTrace...)...)
		assert.Error(t, err)
	})
}

func TestInvoke_FlagsOverrideConfig(t *testing.T) {
	// GIVEN a profile with an invalid budget
	module := writeTemp(t, "nested.wasm", nestedModule)
	profile := writeTemp(t, "c.yaml", []byte("max_cost_budget: 0\ntrace_out: \"\"\n"))

	// WHEN the file alone is used, the budget is rejected
	_, err := run(t, "invoke", module, "run", "1", "--config", profile)
	var budgetErr *analysis.InvalidBudgetError
	require.True(t, errors.As(err, &budgetErr))

	// THEN a flag on the command line takes precedence
	out, err := run(t, "invoke", module, "run", "1", "--config", profile, "--max-cost", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "budget: 1,000 gas per 16.384s")
}
