// Package wasmnet is a WebAssembly execution engine: a binary decoder, an
// instantiator that resolves imports and builds runtime state, and a
// tree-walking interpreter that runs function bodies against an operand
// stack. Embedders drive it entirely through this package and
// ./api; ./internal holds the decoder, instance model and execution core.
package wasmnet

import (
	"context"
	"fmt"

	"github.com/DanielCarmingham/WasmNet/api"
	"github.com/DanielCarmingham/WasmNet/internal/engine/interpreter"
	"github.com/DanielCarmingham/WasmNet/internal/wasm"
	"github.com/DanielCarmingham/WasmNet/internal/wasm/binary"
)

// Runtime is the embedding surface: register host imports via
// NewHostModuleBuilder, turn a binary into a running Module via
// Instantiate, and look modules back up by name.
type Runtime interface {
	// NewHostModuleBuilder begins defining a set of host-supplied imports
	// under moduleName.
	NewHostModuleBuilder(moduleName string) HostModuleBuilder

	// Instantiate decodes wasmBytes, links it against every module
	// previously instantiated in this Runtime, initializes its memories,
	// tables and globals, applies its active segments, and runs its start
	// function if any. It fails with a *wasm.DecodeError, a
	// *wasm.LinkError, an error wrapping a *wasmruntime.Trap (out-of-bounds
	// table or memory) if an active element or data segment does not fit,
	// a *wasmruntime.Trap wrapped in a LinkError if the start function
	// itself traps, or a plain error if a constant expression cannot be
	// evaluated or a segment names a table or memory the module lacks.
	Instantiate(moduleName string, wasmBytes []byte) (api.Module, error)

	// Module looks up a previously instantiated module by name.
	Module(moduleName string) (api.Module, bool)

	// Close releases every module this Runtime instantiated. The Runtime
	// itself holds no external resource beyond the modules in its Store, so
	// this never fails.
	Close(ctx context.Context) error
}

type runtime struct {
	store    *wasm.Store
	engine   *interpreter.Engine
	features binary.Features
}

// NewRuntime returns a Runtime configured with NewRuntimeConfig's defaults.
func NewRuntime() Runtime {
	return NewRuntimeWithConfig(NewRuntimeConfig())
}

// NewRuntimeWithConfig returns a Runtime with cfg's memory-growth ceiling
// applied to every module it instantiates.
func NewRuntimeWithConfig(cfg *RuntimeConfig) Runtime {
	if cfg == nil {
		cfg = NewRuntimeConfig()
	}
	store := wasm.NewStore()
	store.MemoryMaxPages = cfg.memoryMaxPages
	return &runtime{store: store, engine: interpreter.NewEngine(), features: cfg.features}
}

func (r *runtime) Instantiate(moduleName string, wasmBytes []byte) (api.Module, error) {
	m, err := binary.DecodeModule(wasmBytes, r.features)
	if err != nil {
		return nil, err
	}

	inst, err := r.store.Instantiate(moduleName, m)
	if err != nil {
		return nil, err
	}

	if err := wasm.RunStart(inst, m.StartSection, func(fn *wasm.FunctionInstance) error {
		_, callErr := r.engine.Call(fn, nil)
		return callErr
	}); err != nil {
		// A trapping start function fails the whole instantiation: the
		// partially initialized instance is discarded, not registered.
		r.store.CloseModule(moduleName)
		return nil, err
	}

	return &moduleWrapper{inst: inst, r: r}, nil
}

func (r *runtime) Module(moduleName string) (api.Module, bool) {
	inst, ok := r.store.Module(moduleName)
	if !ok {
		return nil, false
	}
	return &moduleWrapper{inst: inst, r: r}, true
}

func (r *runtime) Close(context.Context) error {
	r.store.CloseWithExitCode()
	return nil
}

// moduleWrapper adapts a linked *wasm.ModuleInstance to api.Module, the
// handle embedders hold after Runtime.Instantiate.
type moduleWrapper struct {
	inst *wasm.ModuleInstance
	r    *runtime
}

func (m *moduleWrapper) Name() string { return m.inst.Name }

func (m *moduleWrapper) String() string { return fmt.Sprintf("Module[%s]", m.inst.Name) }

func (m *moduleWrapper) Memory() api.Memory {
	if len(m.inst.Memories) == 0 {
		return nil
	}
	return &memoryWrapper{m.inst.Memories[0]}
}

func (m *moduleWrapper) ExportedFunction(name string) api.Function {
	fn := m.inst.ExportedFunction(name)
	if fn == nil {
		return nil
	}
	return &functionWrapper{fn: fn, r: m.r}
}

func (m *moduleWrapper) ExportedMemory(name string) api.Memory {
	mem := m.inst.ExportedMemory(name)
	if mem == nil {
		return nil
	}
	return &memoryWrapper{mem}
}

func (m *moduleWrapper) ExportedGlobal(name string) api.Global {
	g := m.inst.ExportedGlobal(name)
	if g == nil {
		return nil
	}
	if g.Type.Mutable {
		return &mutableGlobalWrapper{globalWrapper{g}}
	}
	return &globalWrapper{g}
}

func (m *moduleWrapper) Close(context.Context) error {
	m.r.store.CloseModule(m.inst.Name)
	return nil
}

// functionWrapper adapts a *wasm.FunctionInstance to api.Function, routing
// Call through the owning Runtime's interpreter.Engine.
type functionWrapper struct {
	fn *wasm.FunctionInstance
	r  *runtime
}

func (f *functionWrapper) ParamTypes() []api.ValueType  { return f.fn.Type.Params }
func (f *functionWrapper) ResultTypes() []api.ValueType { return f.fn.Type.Results }

// Call invokes the function. The argument count must match the function's
// declared parameter count exactly: this engine coerces nothing at the
// boundary beyond what EncodeI32/EncodeF32/etc. already committed the
// caller to, so a wrong-arity call is rejected here rather than reading
// garbage off a mis-aligned stack.
func (f *functionWrapper) Call(ctx context.Context, params ...uint64) ([]uint64, error) {
	if len(params) != len(f.fn.Type.Params) {
		return nil, fmt.Errorf("wasmnet: wrong number of arguments, expected %d, got %d", len(f.fn.Type.Params), len(params))
	}
	return f.r.engine.Call(f.fn, params)
}

// globalWrapper adapts an immutable *wasm.GlobalInstance to api.Global.
type globalWrapper struct{ g *wasm.GlobalInstance }

func (g *globalWrapper) Type() api.ValueType { return g.g.Type.ValType }
func (g *globalWrapper) Get() uint64         { return g.g.Get() }
func (g *globalWrapper) String() string {
	return fmt.Sprintf("global(%s)=%d", api.ValueTypeName(g.g.Type.ValType), g.g.Get())
}

// mutableGlobalWrapper additionally implements api.MutableGlobal; only
// ExportedGlobal returns one, and only when the underlying global is
// declared mutable, so a caller's type assertion to api.MutableGlobal is a
// reliable mutability check.
type mutableGlobalWrapper struct{ globalWrapper }

func (g *mutableGlobalWrapper) Set(v uint64) { g.g.Set(v) }

// memoryWrapper adapts a *wasm.MemoryInstance to api.Memory.
type memoryWrapper struct{ m *wasm.MemoryInstance }

func (w *memoryWrapper) Size() uint32 { return uint32(wasm.MemoryPagesToBytesNum(w.m.PageSize())) }

func (w *memoryWrapper) Grow(delta uint32) (uint32, bool) {
	prev := w.m.Grow(delta)
	if prev == 0xffffffff {
		return 0, false
	}
	return prev, true
}

func (w *memoryWrapper) ReadByte(offset uint32) (byte, bool)       { return w.m.ReadByte(offset) }
func (w *memoryWrapper) ReadUint32Le(offset uint32) (uint32, bool) { return w.m.ReadUint32Le(offset) }
func (w *memoryWrapper) ReadUint64Le(offset uint32) (uint64, bool) { return w.m.ReadUint64Le(offset) }
func (w *memoryWrapper) Read(offset, byteCount uint32) ([]byte, bool) {
	return w.m.Read(offset, byteCount)
}
func (w *memoryWrapper) WriteByte(offset uint32, v byte) bool { return w.m.WriteByte(offset, v) }
func (w *memoryWrapper) WriteUint32Le(offset, v uint32) bool  { return w.m.WriteUint32Le(offset, v) }
func (w *memoryWrapper) WriteUint64Le(offset uint32, v uint64) bool {
	return w.m.WriteUint64Le(offset, v)
}
func (w *memoryWrapper) Write(offset uint32, v []byte) bool { return w.m.Write(offset, v) }
