package wasm

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"

	"github.com/jsign/vm-gas-calibration/analysis"
)

// Instruction identifies a dispatched function. wazero does not hook
// individual opcodes, so a function call is the finest unit of dispatch a
// host can observe.
type Instruction string

type profilerKey struct{}

func withProfiler(ctx context.Context, p analysis.Profiler[Instruction]) context.Context {
	return context.WithValue(ctx, profilerKey{}, p)
}

func profilerFrom(ctx context.Context) analysis.Profiler[Instruction] {
	p, _ := ctx.Value(profilerKey{}).(analysis.Profiler[Instruction])
	return p
}

type listenerFactory struct{}

func (listenerFactory) NewFunctionListener(def api.FunctionDefinition) experimental.FunctionListener {
	return &listener{instruction: instructionOf(def)}
}

type listener struct {
	instruction Instruction
}

func (l *listener) Before(ctx context.Context, _ api.Module, _ api.FunctionDefinition, _ []uint64, _ experimental.StackIterator) {
	if p := profilerFrom(ctx); p != nil {
		p.Record(l.instruction, p.SampleClock())
	}
}

func (l *listener) After(context.Context, api.Module, api.FunctionDefinition, []uint64) {}

func (l *listener) Abort(context.Context, api.Module, api.FunctionDefinition, error) {}

// instructionOf prefers the name section, then the first export name, then
// the function index.
func instructionOf(def api.FunctionDefinition) Instruction {
	if name := def.Name(); name != "" {
		return Instruction(name)
	}
	if names := def.ExportNames(); len(names) > 0 {
		return Instruction(names[0])
	}
	if mod, name, ok := def.Import(); ok {
		return Instruction(mod + "." + name)
	}
	return Instruction(fmt.Sprintf("$%d", def.Index()))
}
