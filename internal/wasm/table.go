package wasm

import "github.com/DanielCarmingham/WasmNet/api"

// Reference is a table element: either api.ReferenceNull or a function
// index into the owning ModuleInstance.Functions.
type Reference = uint64

// Table describes a table's limits as declared in the binary (static, not
// yet allocated).
type Table struct {
	Min uint32
	Max *uint32
}

// TableInstance is the runtime representation of a table: a vector of
// function references, all null by default.
type TableInstance struct {
	References []Reference
	Min        uint32
	Max        *uint32
}

// NewTableInstance allocates a table of min null references.
func NewTableInstance(min uint32, max *uint32) *TableInstance {
	refs := make([]Reference, min)
	for i := range refs {
		refs[i] = api.ReferenceNull
	}
	return &TableInstance{References: refs, Min: min, Max: max}
}

// Len returns the current number of entries.
func (t *TableInstance) Len() int { return len(t.References) }

// Get returns the reference at i, or false if i is out of bounds.
func (t *TableInstance) Get(i uint32) (Reference, bool) {
	if i >= uint32(len(t.References)) {
		return 0, false
	}
	return t.References[i], true
}

// Set writes ref at i, or returns false if i is out of bounds.
func (t *TableInstance) Set(i uint32, ref Reference) bool {
	if i >= uint32(len(t.References)) {
		return false
	}
	t.References[i] = ref
	return true
}

// Init copies length references from elems[src:src+length] into the table at
// dest, bounds-checked against both the element vector and the table.
func (t *TableInstance) Init(elems []Reference, dest, src, length uint32) bool {
	if uint64(src)+uint64(length) > uint64(len(elems)) {
		return false
	}
	if uint64(dest)+uint64(length) > uint64(len(t.References)) {
		return false
	}
	copy(t.References[dest:dest+length], elems[src:src+length])
	return true
}
