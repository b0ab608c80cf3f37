// Package wasm runs WebAssembly exports on the wazero interpreter while a
// profiler observes every function dispatch.
package wasm

import (
	"context"
	"os"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/jsign/vm-gas-calibration/analysis"
	"github.com/jsign/vm-gas-calibration/engine"
)

// Magic is the preamble of every binary module.
var Magic = []byte{0x00, 0x61, 0x73, 0x6d}

// Module is a compiled module ready to be instantiated once per invocation.
type Module struct {
	name     string
	runtime  wazero.Runtime
	compiled wazero.CompiledModule
	imports  []api.FunctionDefinition
	exports  map[string]api.FunctionDefinition
}

func Load(ctx context.Context, path string) (*Module, error) {
	code, err := os.ReadFile(path)
	if err != nil {
		return nil, &engine.ModuleLoadError{Path: path, Err: err}
	}
	return Compile(ctx, path, code)
}

// Compile validates and compiles code. name only identifies the module in
// errors.
func Compile(ctx context.Context, name string, code []byte) (*Module, error) {
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfigInterpreter())

	// Listeners are bound at compile time; the profiler is looked up per call.
	ctx = experimental.WithFunctionListenerFactory(ctx, listenerFactory{})
	compiled, err := r.CompileModule(ctx, code)
	if err != nil {
		_ = r.Close(ctx)
		return nil, &engine.ModuleLoadError{Path: name, Err: err}
	}

	m := &Module{
		name:     name,
		runtime:  r,
		compiled: compiled,
		imports:  compiled.ImportedFunctions(),
		exports:  compiled.ExportedFunctions(),
	}
	if m.importsModule(wasi_snapshot_preview1.ModuleName) {
		if _, err := wasi_snapshot_preview1.Instantiate(ctx, r); err != nil {
			_ = r.Close(ctx)
			return nil, &engine.ModuleLoadError{Path: name, Err: errors.Wrap(err, "instantiating WASI")}
		}
		logrus.Debugf("%s: instantiated %s", name, wasi_snapshot_preview1.ModuleName)
	}
	logrus.Debugf("%s: compiled, %d imported and %d exported functions", name, len(m.imports), len(m.exports))
	return m, nil
}

func (m *Module) importsModule(module string) bool {
	for _, def := range m.imports {
		if mod, _, ok := def.Import(); ok && mod == module {
			return true
		}
	}
	return false
}

// Exports lists the exported function names in ascending order.
func (m *Module) Exports() []string {
	names := make([]string, 0, len(m.exports))
	for name := range m.exports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FunctionIndex resolves an export to its index in the function index space,
// where imported functions come first.
func (m *Module) FunctionIndex(name string) (uint32, error) {
	def, ok := m.exports[name]
	if !ok {
		return 0, &engine.ExportNotFoundError{Name: name, Available: m.Exports()}
	}
	return def.Index(), nil
}

// ImportCount is the number of imported functions.
func (m *Module) ImportCount() uint32 {
	return uint32(len(m.imports))
}

// LocalIndex translates an absolute function index into an index of the
// module's function section. It fails for imported functions.
func (m *Module) LocalIndex(index uint32) (uint32, bool) {
	if index < m.ImportCount() {
		return 0, false
	}
	return index - m.ImportCount(), true
}

// Params returns the parameter types of the function at the absolute index.
// Only imported and exported functions are visible.
func (m *Module) Params(index uint32) ([]api.ValueType, bool) {
	if def := m.definition(index); def != nil {
		return def.ParamTypes(), true
	}
	return nil, false
}

func (m *Module) Results(index uint32) ([]api.ValueType, bool) {
	if def := m.definition(index); def != nil {
		return def.ResultTypes(), true
	}
	return nil, false
}

func (m *Module) definition(index uint32) api.FunctionDefinition {
	if index < m.ImportCount() {
		return m.imports[index]
	}
	for _, def := range m.exports {
		if def.Index() == index {
			return def
		}
	}
	return nil
}

// Invoke instantiates a fresh instance, running its start function, and calls
// the export with params. Every function entered while doing so, the start
// function included, is recorded in profiler.
func (m *Module) Invoke(ctx context.Context, name string, params []uint64, profiler analysis.Profiler[Instruction]) ([]uint64, error) {
	if _, err := m.FunctionIndex(name); err != nil {
		return nil, err
	}

	ctx = withProfiler(ctx, profiler)
	mod, err := m.runtime.InstantiateModule(ctx, m.compiled, wazero.NewModuleConfig().WithName("").WithStartFunctions())
	if err != nil {
		return nil, errors.Wrapf(err, "instantiating %s", m.name)
	}
	defer mod.Close(ctx)

	fn := mod.ExportedFunction(name)
	if fn == nil {
		return nil, &engine.ExportNotFoundError{Name: name, Available: m.Exports()}
	}
	results, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.Wrapf(err, "calling %s", name)
	}
	return results, nil
}

func (m *Module) Close(ctx context.Context) error {
	return m.runtime.Close(ctx)
}
