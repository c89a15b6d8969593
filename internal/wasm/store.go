package wasm

import (
	"fmt"
	"sync"

	"github.com/DanielCarmingham/WasmNet/api"
	"github.com/DanielCarmingham/WasmNet/internal/wasmruntime"
)

// Store is the process-wide arena of instantiated modules, each addressable
// by the name it was instantiated under. A single mutex guards the module
// map; ModuleInstance contents themselves are not synchronized, so hosts
// sharing an instance across goroutines must serialize calls externally.
type Store struct {
	mux     sync.Mutex
	modules map[string]*ModuleInstance

	// MemoryMaxPages caps the max page count memories allocate with when the
	// binary itself declares no max; defaults to MemoryMaxPages, the
	// absolute ceiling a 32-bit offset can address. Set from
	// RuntimeConfig.WithMemoryMaxPages.
	MemoryMaxPages uint32
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{modules: map[string]*ModuleInstance{}, MemoryMaxPages: MemoryMaxPages}
}

// Module looks up a previously instantiated module by name.
func (s *Store) Module(name string) (*ModuleInstance, bool) {
	s.mux.Lock()
	defer s.mux.Unlock()
	m, ok := s.modules[name]
	return m, ok
}

// CloseWithExitCode marks every instantiated module closed. It exists so
// callers have a single place to release a Store's modules; neither
// memories nor tables hold any external resource in this engine, so closing
// is a bookkeeping-only operation.
func (s *Store) CloseWithExitCode() {
	s.mux.Lock()
	defer s.mux.Unlock()
	for _, m := range s.modules {
		m.closed = true
	}
}

// CloseModule marks name closed and removes it from the Store, freeing the
// name for a later Instantiate. Modules that imported from it keep their
// already-resolved bindings (an imported object lives as long as its
// longest holder); only Store lookups by name stop seeing it.
func (s *Store) CloseModule(name string) {
	s.mux.Lock()
	defer s.mux.Unlock()
	if m, ok := s.modules[name]; ok {
		m.closed = true
		delete(s.modules, name)
	}
}

// Instantiate links module against every previously instantiated module in
// s and registers the result under name. The initialization order is fixed:
// imports resolve, memories and tables are allocated, globals are evaluated
// from imports only, active element segments populate tables, and active
// data segments populate memories, in that order. The start function is the
// caller's last step, via RunStart.
func (s *Store) Instantiate(name string, module *Module) (*ModuleInstance, error) {
	s.mux.Lock()
	defer s.mux.Unlock()

	if _, exists := s.modules[name]; exists {
		return nil, &LinkError{Kind: LinkErrorDuplicateModule, ModuleName: name}
	}

	inst := &ModuleInstance{Name: name, Types: module.TypeSection}

	if err := s.resolveImports(module, inst); err != nil {
		return nil, err
	}

	// Allocate module-defined tables and memories.
	for _, t := range module.TableSection {
		inst.Tables = append(inst.Tables, NewTableInstance(t.Min, t.Max))
	}
	for _, m := range module.MemorySection {
		max := m.Max
		if max == nil {
			cap := s.MemoryMaxPages
			max = &cap
		}
		inst.Memories = append(inst.Memories, NewMemoryInstance(m.Min, max))
	}

	// Globals initialize strictly from imported globals, in declaration
	// order, before anything module-defined is visible to later globals.
	importedGlobalCount := len(inst.Globals)
	for _, g := range module.GlobalSection {
		v, err := EvalConstExpr(g.Init, ConstExprContext{ImportedGlobals: inst.Globals[:importedGlobalCount]})
		if err != nil {
			return nil, fmt.Errorf("wasm: evaluating global initializer: %w", err)
		}
		inst.Globals = append(inst.Globals, &GlobalInstance{Type: g.Type, Val: v})
	}

	// Build the function index space: imports first, then module-defined.
	for i, typeIdx := range module.FunctionSection {
		code := module.CodeSection[i]
		fn := &FunctionInstance{
			Kind:       FunctionKindWasm,
			Type:       &module.TypeSection[typeIdx],
			Body:       code.Body,
			LocalTypes: code.LocalTypes,
			Module:     inst,
		}
		if module.NameSection != nil {
			if n, ok := module.NameSection.FunctionNames[Index(len(inst.Functions))]; ok {
				fn.DebugName = n
			}
		}
		inst.Functions = append(inst.Functions, fn)
	}

	// Active element segments populate tables; dropped/passive segments
	// still get an ElemInstance so table.init/elem.drop can reference them
	// by index later.
	for _, es := range module.ElementSection {
		refs := make([]Reference, len(es.Init))
		for i, fnIdx := range es.Init {
			if fnIdx == ^Index(0) {
				// The all-ones index is the decoder's spelling of a ref.null
				// element entry; it must land in the table as a null
				// reference, not as a (nonsensical) function index.
				refs[i] = api.ReferenceNull
			} else {
				refs[i] = uint64(fnIdx)
			}
		}
		inst.ElemInstances = append(inst.ElemInstances, ElemInstance{Refs: refs})
		if es.Passive || es.Declarative {
			continue
		}
		offset, err := EvalConstExpr(es.OffsetExpr, ConstExprContext{ImportedGlobals: inst.Globals[:importedGlobalCount]})
		if err != nil {
			return nil, fmt.Errorf("wasm: evaluating element offset: %w", err)
		}
		if int(es.TableIndex) >= len(inst.Tables) {
			return nil, fmt.Errorf("wasm: element segment references out-of-range table %d", es.TableIndex)
		}
		tbl := inst.Tables[es.TableIndex]
		if !tbl.Init(refs, uint32(offset), 0, uint32(len(refs))) {
			return nil, fmt.Errorf("wasm: active element segment: %w", wasmruntime.ErrOutOfBoundsTable)
		}
	}

	// Active data segments populate memories.
	for _, ds := range module.DataSection {
		inst.DataInstances = append(inst.DataInstances, DataInstance{Bytes: ds.Init})
		if ds.Passive {
			continue
		}
		offset, err := EvalConstExpr(ds.OffsetExpr, ConstExprContext{ImportedGlobals: inst.Globals[:importedGlobalCount]})
		if err != nil {
			return nil, fmt.Errorf("wasm: evaluating data offset: %w", err)
		}
		if int(ds.MemoryIndex) >= len(inst.Memories) {
			return nil, fmt.Errorf("wasm: data segment references out-of-range memory %d", ds.MemoryIndex)
		}
		mem := inst.Memories[ds.MemoryIndex]
		if !mem.InitData(ds.Init, uint32(offset), 0, uint32(len(ds.Init))) {
			return nil, fmt.Errorf("wasm: active data segment: %w", wasmruntime.ErrOutOfBoundsMemory)
		}
	}

	// Exports.
	inst.Exports = make(map[string]*ExportInstance, len(module.ExportSection))
	for _, e := range module.ExportSection {
		exp := &ExportInstance{Name: e.Name, Kind: e.Kind}
		switch e.Kind {
		case ExternKindFunc:
			exp.Function = inst.Functions[e.Index]
		case ExternKindTable:
			exp.Table = inst.Tables[e.Index]
		case ExternKindMemory:
			exp.Memory = inst.Memories[e.Index]
		case ExternKindGlobal:
			exp.Global = inst.Globals[e.Index]
		}
		inst.Exports[e.Name] = exp
	}

	s.modules[name] = inst
	return inst, nil
}

func (s *Store) resolveImports(module *Module, inst *ModuleInstance) error {
	for i, imp := range module.ImportSection {
		src, ok := s.modules[imp.Module]
		if !ok {
			return &LinkError{Kind: LinkErrorMissingImport, ImportIndex: i, ModuleName: imp.Module, FieldName: imp.Name, Message: "module not instantiated"}
		}
		exp, ok := src.Exports[imp.Name]
		if !ok {
			return &LinkError{Kind: LinkErrorMissingImport, ImportIndex: i, ModuleName: imp.Module, FieldName: imp.Name, Message: "name not exported"}
		}
		if exp.Kind != imp.Kind {
			return &LinkError{Kind: LinkErrorKindMismatch, ImportIndex: i, ModuleName: imp.Module, FieldName: imp.Name,
				Message: fmt.Sprintf("expected %s, got %s", imp.Kind, exp.Kind)}
		}

		switch imp.Kind {
		case ExternKindFunc:
			want := &module.TypeSection[imp.TypeIndex]
			if !want.EqualsSignature(exp.Function.Type.Params, exp.Function.Type.Results) {
				return &LinkError{Kind: LinkErrorSignatureMismatch, ImportIndex: i, ModuleName: imp.Module, FieldName: imp.Name,
					Message: fmt.Sprintf("expected %s, got %s", want, exp.Function.Type)}
			}
			inst.Functions = append(inst.Functions, exp.Function)
		case ExternKindTable:
			if !limitsCompatible(imp.Table.Min, imp.Table.Max, exp.Table.Min, exp.Table.Max) {
				return &LinkError{Kind: LinkErrorLimitsMismatch, ImportIndex: i, ModuleName: imp.Module, FieldName: imp.Name, Message: "table limits incompatible"}
			}
			inst.Tables = append(inst.Tables, exp.Table)
		case ExternKindMemory:
			if !limitsCompatible(imp.Memory.Min, imp.Memory.Max, exp.Memory.Min, exp.Memory.Max) {
				return &LinkError{Kind: LinkErrorLimitsMismatch, ImportIndex: i, ModuleName: imp.Module, FieldName: imp.Name, Message: "memory limits incompatible"}
			}
			inst.Memories = append(inst.Memories, exp.Memory)
		case ExternKindGlobal:
			if exp.Global.Type.ValType != imp.GlobalType.ValType {
				return &LinkError{Kind: LinkErrorKindMismatch, ImportIndex: i, ModuleName: imp.Module, FieldName: imp.Name, Message: "global value type mismatch"}
			}
			if exp.Global.Type.Mutable != imp.GlobalType.Mutable {
				return &LinkError{Kind: LinkErrorMutabilityMismatch, ImportIndex: i, ModuleName: imp.Module, FieldName: imp.Name, Message: "global mutability mismatch"}
			}
			inst.Globals = append(inst.Globals, exp.Global)
		}
	}
	return nil
}

// limitsCompatible reports whether an actual (min,max) pair satisfies an
// import's requested (min,max): the actual instance must be at least as
// large, and at least as tightly bounded, as requested.
func limitsCompatible(wantMin uint32, wantMax *uint32, gotMin uint32, gotMax *uint32) bool {
	if gotMin < wantMin {
		return false
	}
	if wantMax == nil {
		return true
	}
	return gotMax != nil && *gotMax <= *wantMax
}

// RunStart invokes module's start function, if present, via call, wrapping
// any trap as a LinkError{StartTrapped}. Call is supplied by the
// interpreter package to avoid an import cycle (internal/wasm does not
// depend on internal/engine/interpreter).
func RunStart(inst *ModuleInstance, startIndex *Index, call func(fn *FunctionInstance) error) error {
	if startIndex == nil {
		return nil
	}
	fn := inst.Functions[*startIndex]
	if err := call(fn); err != nil {
		return &LinkError{Kind: LinkErrorStartTrapped, ModuleName: inst.Name, Cause: err}
	}
	return nil
}
