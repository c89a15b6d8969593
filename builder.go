package wasmnet

import (
	"context"
	"fmt"
	"reflect"

	"github.com/DanielCarmingham/WasmNet/api"
	"github.com/DanielCarmingham/WasmNet/internal/wasm"
)

// HostFunctionBuilder defines a host function (in Go) so a Wasm module can
// import and call it.
//
//	hostModuleBuilder.NewFunctionBuilder().
//		WithFunc(func(x, y uint32) uint32 { return x + y }).
//		Export("add")
//
// # Notes
//
//   - This is an interface for decoupling, not third-party implementations.
//     All implementations are in this module.
type HostFunctionBuilder interface {
	// WithGoFunction is the raw-stack calling convention: fn reads its
	// arguments off stack[:len(params)] and writes any result to stack[0].
	// Use this when WithFunc's reflection overhead matters.
	WithGoFunction(fn api.GoFunc, params, results []api.ValueType) HostFunctionBuilder

	// WithFunc uses reflect.Value to map a Go func to a Wasm-compatible
	// signature. Parameters and results must be uint32, int32, uint64,
	// int64, float32 or float64 — the only types Wasm numerics represent.
	WithFunc(fn interface{}) HostFunctionBuilder

	// WithName defines the optional module-local name of this function,
	// used only in trap backtraces.
	WithName(name string) HostFunctionBuilder

	// Export exports this function from the HostModuleBuilder under name.
	Export(name string) HostModuleBuilder
}

// HostModuleBuilder builds a set of host functions a guest module can
// import, analogous to how wasm.Module's import section names them: a
// (module, name) pair.
//
//	env, _ := r.NewHostModuleBuilder("env").
//		NewFunctionBuilder().WithFunc(func() { println("hello!") }).Export("hello").
//		Instantiate()
type HostModuleBuilder interface {
	// NewFunctionBuilder begins the definition of a host function.
	NewFunctionBuilder() HostFunctionBuilder

	// ExportMemory adds a linear memory a guest module can import.
	ExportMemory(name string, minPages uint32) HostModuleBuilder

	// Instantiate builds and instantiates this host module in the owning
	// Runtime's Store, making its exports available to later imports.
	Instantiate() (api.Module, error)
}

type hostModuleBuilder struct {
	r            *runtime
	moduleName   string
	exportOrder  []string
	nameToFunc   map[string]*wasm.FunctionInstance
	nameToMemory map[string]*wasm.Memory
}

func (r *runtime) NewHostModuleBuilder(moduleName string) HostModuleBuilder {
	return &hostModuleBuilder{
		r:            r,
		moduleName:   moduleName,
		nameToFunc:   map[string]*wasm.FunctionInstance{},
		nameToMemory: map[string]*wasm.Memory{},
	}
}

type hostFunctionBuilder struct {
	b    *hostModuleBuilder
	fn   *wasm.FunctionInstance
	name string
}

func (h *hostFunctionBuilder) WithGoFunction(fn api.GoFunc, params, results []api.ValueType) HostFunctionBuilder {
	h.fn = &wasm.FunctionInstance{
		Kind: wasm.FunctionKindHost,
		Type: &wasm.FunctionType{Params: params, Results: results},
		// wasm.GoFunc carries no context: execution is synchronous with no
		// suspension points, so the context is fixed to Background here; a
		// host function that needs cancellation gets it from its own
		// captured state instead.
		GoFunc: func(stack []uint64) { fn.Call(context.Background(), stack) },
	}
	return h
}

func (h *hostFunctionBuilder) WithFunc(fn interface{}) HostFunctionBuilder {
	goFn, params, results, err := reflectGoFunc(fn)
	if err != nil {
		panic(fmt.Errorf("wasmnet: %w", err)) // a non-numeric signature is a programming error, not a runtime condition
	}
	h.fn = &wasm.FunctionInstance{
		Kind:   wasm.FunctionKindHost,
		Type:   &wasm.FunctionType{Params: params, Results: results},
		GoFunc: goFn,
	}
	return h
}

func (h *hostFunctionBuilder) WithName(name string) HostFunctionBuilder {
	h.name = name
	return h
}

func (h *hostFunctionBuilder) Export(exportName string) HostModuleBuilder {
	name := h.name
	if name == "" {
		name = exportName
	}
	h.fn.HostName = h.b.moduleName + "." + name
	h.b.ExportHostFunc(exportName, h.fn)
	return h.b
}

func (b *hostModuleBuilder) ExportMemory(name string, minPages uint32) HostModuleBuilder {
	b.nameToMemory[name] = &wasm.Memory{Min: minPages}
	return b
}

func (b *hostModuleBuilder) ExportHostFunc(exportName string, fn *wasm.FunctionInstance) {
	if _, ok := b.nameToFunc[exportName]; !ok {
		b.exportOrder = append(b.exportOrder, exportName)
	}
	b.nameToFunc[exportName] = fn
}

func (b *hostModuleBuilder) NewFunctionBuilder() HostFunctionBuilder {
	return &hostFunctionBuilder{b: b}
}

// Instantiate builds a synthetic wasm.Module (one function type per
// exported host function, one export per entry) and instantiates it
// through the owning Store, so host modules resolve imports exactly the
// way wasm-defined modules do.
func (b *hostModuleBuilder) Instantiate() (api.Module, error) {
	m := &wasm.Module{}
	for _, name := range b.exportOrder {
		fn := b.nameToFunc[name]
		typeIdx := wasm.Index(len(m.TypeSection))
		m.TypeSection = append(m.TypeSection, *fn.Type)
		m.FunctionSection = append(m.FunctionSection, typeIdx)
		m.CodeSection = append(m.CodeSection, wasm.Code{}) // placeholder; host functions never read Body
		m.ExportSection = append(m.ExportSection, wasm.Export{Name: name, Kind: wasm.ExternKindFunc, Index: wasm.Index(len(m.FunctionSection) - 1)})
	}
	for name, mem := range b.nameToMemory {
		idx := wasm.Index(len(m.MemorySection))
		m.MemorySection = append(m.MemorySection, *mem)
		m.ExportSection = append(m.ExportSection, wasm.Export{Name: name, Kind: wasm.ExternKindMemory, Index: idx})
	}

	inst, err := b.r.store.Instantiate(b.moduleName, m)
	if err != nil {
		return nil, err
	}
	// Overwrite, in place, each exported placeholder FunctionInstance that
	// the Store built for the synthetic module with the real host
	// FunctionInstance; the whole struct is copied, so the export keeps its
	// pointer while every field comes from the builder.
	for _, name := range b.exportOrder {
		exp := inst.Exports[name]
		*exp.Function = *b.nameToFunc[name]
	}
	return &moduleWrapper{inst: inst, r: b.r}, nil
}

// reflectGoFunc adapts an arbitrary Go func into the raw-stack api.GoFunc
// convention, validating that every parameter and result is one of the
// four Wasm numeric types.
func reflectGoFunc(fn interface{}) (wasm.GoFunc, []api.ValueType, []api.ValueType, error) {
	v := reflect.ValueOf(fn)
	t := v.Type()
	if t.Kind() != reflect.Func {
		return nil, nil, nil, fmt.Errorf("not a func: %v", t)
	}

	params := make([]api.ValueType, t.NumIn())
	for i := range params {
		vt, err := goKindToValueType(t.In(i).Kind())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("parameter %d: %w", i, err)
		}
		params[i] = vt
	}
	results := make([]api.ValueType, t.NumOut())
	for i := range results {
		vt, err := goKindToValueType(t.Out(i).Kind())
		if err != nil {
			return nil, nil, nil, fmt.Errorf("result %d: %w", i, err)
		}
		results[i] = vt
	}

	goFunc := func(stack []uint64) {
		in := make([]reflect.Value, len(params))
		for i, pt := range params {
			in[i] = decodeReflectArg(pt, stack[i], t.In(i))
		}
		out := v.Call(in)
		for i, ot := range out {
			stack[i] = encodeReflectResult(results[i], ot)
		}
	}
	return goFunc, params, results, nil
}

func goKindToValueType(k reflect.Kind) (api.ValueType, error) {
	switch k {
	case reflect.Uint32, reflect.Int32:
		return api.ValueTypeI32, nil
	case reflect.Uint64, reflect.Int64:
		return api.ValueTypeI64, nil
	case reflect.Float32:
		return api.ValueTypeF32, nil
	case reflect.Float64:
		return api.ValueTypeF64, nil
	default:
		return 0, fmt.Errorf("unsupported type kind %s", k)
	}
}

func decodeReflectArg(vt api.ValueType, raw uint64, goType reflect.Type) reflect.Value {
	switch vt {
	case api.ValueTypeI32:
		if goType.Kind() == reflect.Int32 {
			return reflect.ValueOf(int32(uint32(raw)))
		}
		return reflect.ValueOf(uint32(raw))
	case api.ValueTypeI64:
		if goType.Kind() == reflect.Int64 {
			return reflect.ValueOf(int64(raw))
		}
		return reflect.ValueOf(raw)
	case api.ValueTypeF32:
		return reflect.ValueOf(api.DecodeF32(raw))
	case api.ValueTypeF64:
		return reflect.ValueOf(api.DecodeF64(raw))
	default:
		panic("unreachable")
	}
}

func encodeReflectResult(vt api.ValueType, v reflect.Value) uint64 {
	switch vt {
	case api.ValueTypeI32:
		if v.Kind() == reflect.Int32 {
			return api.EncodeI32(int32(v.Int()))
		}
		return uint64(uint32(v.Uint()))
	case api.ValueTypeI64:
		if v.Kind() == reflect.Int64 {
			return api.EncodeI64(v.Int())
		}
		return v.Uint()
	case api.ValueTypeF32:
		return api.EncodeF32(float32(v.Float()))
	case api.ValueTypeF64:
		return api.EncodeF64(v.Float())
	default:
		panic("unreachable")
	}
}
