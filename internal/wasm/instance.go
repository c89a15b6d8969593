package wasm

// ExportInstance resolves one export's name to the runtime object it names,
// post-linking.
type ExportInstance struct {
	Name string
	Kind ExternKind

	// Exactly one of these is populated, selected by Kind.
	Function *FunctionInstance
	Table    *TableInstance
	Memory   *MemoryInstance
	Global   *GlobalInstance
}

// ModuleInstance is a Module after instantiation: every index space
// (function, table, memory, global) fully resolved, imports and
// module-defined entries sitting side by side in the same slices in import
// order followed by definition order, exactly as the binary format's index
// spaces are defined.
type ModuleInstance struct {
	Name string

	Types []FunctionType

	Functions []*FunctionInstance
	Tables    []*TableInstance
	Memories  []*MemoryInstance
	Globals   []*GlobalInstance

	Exports map[string]*ExportInstance

	DataInstances []DataInstance
	ElemInstances []ElemInstance

	closed bool
}

// DataInstance is a data segment's runtime state: its bytes, and whether
// "data.drop" has been executed against it. Dropped makes a subsequent
// memory.init read from an empty segment rather than failing outright, per
// the bulk-memory proposal.
type DataInstance struct {
	Bytes   []byte
	Dropped bool
}

// ElemInstance is an element segment's runtime state, mirroring DataInstance
// for "elem.drop"/"table.init".
type ElemInstance struct {
	Refs    []Reference
	Dropped bool
}

// ExportedFunction looks up a function export by name.
func (m *ModuleInstance) ExportedFunction(name string) *FunctionInstance {
	if e, ok := m.Exports[name]; ok && e.Kind == ExternKindFunc {
		return e.Function
	}
	return nil
}

// ExportedMemory looks up a memory export by name.
func (m *ModuleInstance) ExportedMemory(name string) *MemoryInstance {
	if e, ok := m.Exports[name]; ok && e.Kind == ExternKindMemory {
		return e.Memory
	}
	return nil
}

// ExportedGlobal looks up a global export by name.
func (m *ModuleInstance) ExportedGlobal(name string) *GlobalInstance {
	if e, ok := m.Exports[name]; ok && e.Kind == ExternKindGlobal {
		return e.Global
	}
	return nil
}

// ExportedTable looks up a table export by name.
func (m *ModuleInstance) ExportedTable(name string) *TableInstance {
	if e, ok := m.Exports[name]; ok && e.Kind == ExternKindTable {
		return e.Table
	}
	return nil
}
