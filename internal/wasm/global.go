package wasm

// GlobalType describes a global's value type and mutability, as declared in
// the binary or by a host import.
type GlobalType struct {
	ValType ValueType
	Mutable bool
}

// GlobalInstance is the runtime representation of a global. Val's kind
// always matches Type.ValType; immutable globals never change after
// initialization.
type GlobalInstance struct {
	Type *GlobalType
	Val  uint64
}

// Get returns the current value.
func (g *GlobalInstance) Get() uint64 { return g.Val }

// Set writes v, returning false if the global is immutable. Mutability is a
// single runtime attribute: any mismatch between a declaration and its
// import is caught at link time (LinkErrorMutabilityMismatch), never here.
func (g *GlobalInstance) Set(v uint64) bool {
	if !g.Type.Mutable {
		return false
	}
	g.Val = v
	return true
}
