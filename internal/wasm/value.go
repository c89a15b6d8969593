package wasm

import "github.com/DanielCarmingham/WasmNet/api"

// ValueType is re-exported so internal/wasm call sites don't need to import
// api directly for the common case.
type ValueType = api.ValueType

const (
	ValueTypeI32     = api.ValueTypeI32
	ValueTypeI64     = api.ValueTypeI64
	ValueTypeF32     = api.ValueTypeF32
	ValueTypeF64     = api.ValueTypeF64
	ValueTypeFuncRef = api.ValueTypeFuncRef
)

// Index is a position in one of a Module's index namespaces (type, function,
// table, memory, global).
type Index = uint32

// FunctionType is the signature of a function: its parameter and result
// value types. Results has length 0 or 1; multi-value is out of scope.
type FunctionType struct {
	Params  []ValueType
	Results []ValueType
}

// EqualsSignature reports whether two FunctionTypes accept the same
// parameters and return the same results, used for call_indirect and
// import signature matching.
func (t *FunctionType) EqualsSignature(params, results []ValueType) bool {
	return sliceEq(t.Params, params) && sliceEq(t.Results, results)
}

func sliceEq(a, b []ValueType) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// String renders the signature in a debug-friendly form, e.g. "(i32,i32)->i32".
func (t *FunctionType) String() string {
	s := "("
	for i, p := range t.Params {
		if i > 0 {
			s += ","
		}
		s += api.ValueTypeName(p)
	}
	s += ")->"
	if len(t.Results) == 0 {
		s += "()"
	} else {
		s += api.ValueTypeName(t.Results[0])
	}
	return s
}

// ParamNumInUint64 and ResultNumInUint64 are always len(Params)/len(Results)
// since every ValueType here occupies exactly one uint64 stack/local slot.
func (t *FunctionType) ParamNumInUint64() int  { return len(t.Params) }
func (t *FunctionType) ResultNumInUint64() int { return len(t.Results) }
