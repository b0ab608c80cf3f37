package evm

import (
	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/tracing"
	"github.com/ethereum/go-ethereum/core/vm"
	"github.com/ethereum/go-ethereum/core/vm/runtime"
	"github.com/sirupsen/logrus"

	"github.com/jsign/vm-gas-calibration/analysis"
)

// DefaultGasLimit bounds a single invocation.
const DefaultGasLimit = 30_000_000

func hooks(p analysis.Profiler[vm.OpCode]) *tracing.Hooks {
	return &tracing.Hooks{
		OnOpcode: func(pc uint64, op byte, gas, cost uint64, scope tracing.OpContext, rData []byte, depth int, err error) {
			p.Record(vm.OpCode(op), p.SampleClock())
		},
	}
}

// Execute runs code as the runtime code of a fresh account, recording every
// dispatched opcode in profiler.
func Execute(code, input []byte, profiler analysis.Profiler[vm.OpCode], gasLimit uint64) ([]byte, error) {
	cfg := &runtime.Config{
		GasLimit:  gasLimit,
		EVMConfig: vm.Config{Tracer: hooks(profiler)},
	}
	ret, _, err := runtime.Execute(code, input, cfg)
	return ret, executionError(ret, err)
}

// Invoke calls method with args. A contract with creation code is deployed
// first, untraced, so its constructor has initialised storage; otherwise the
// runtime code is executed directly.
func (c *Contract) Invoke(method abi.Method, args []any, profiler analysis.Profiler[vm.OpCode], gasLimit uint64) ([]byte, error) {
	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		return nil, errors.Wrapf(err, "packing arguments of %s", method.Sig)
	}
	input := append(append([]byte{}, method.ID...), packed...)

	if len(c.Bytecode) == 0 {
		logrus.Debugf("%s has no creation code, executing runtime code", c.Name)
		return Execute(c.DeployedBytecode, input, profiler, gasLimit)
	}

	cfg := &runtime.Config{GasLimit: gasLimit}
	_, address, leftOver, err := runtime.Create(c.Bytecode, cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "deploying %s", c.Name)
	}
	logrus.Debugf("deployed %s at %s using %d gas", c.Name, address, cfg.GasLimit-leftOver)

	cfg.EVMConfig.Tracer = hooks(profiler)
	ret, _, err := runtime.Call(address, input, cfg)
	return ret, executionError(ret, err)
}

func executionError(ret []byte, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, vm.ErrExecutionReverted) {
		if reason, uerr := abi.UnpackRevert(ret); uerr == nil {
			return errors.Wrapf(err, "reason %q", reason)
		}
	}
	return errors.Wrap(err, "executing")
}

// FormatResults decodes the return data of method.
func FormatResults(method abi.Method, ret []byte) (string, error) {
	if len(method.Outputs) == 0 {
		return "", nil
	}
	values, err := method.Outputs.Unpack(ret)
	if err != nil {
		return "", errors.Wrapf(err, "unpacking results of %s", method.Sig)
	}
	return formatValues(values), nil
}
