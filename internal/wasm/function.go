package wasm

// FunctionKind distinguishes a function backed by a decoded Wasm body from
// one backed by a host callback.
type FunctionKind byte

const (
	FunctionKindWasm FunctionKind = iota
	FunctionKindHost
)

// GoFunc is the raw-stack calling convention a host function body is
// invoked with: it reads its arguments off stack[:len(Type.Params)] and
// writes its result (if any) back to stack[0].
type GoFunc func(stack []uint64)

// Code is a decoded function body: its locals (beyond the parameters, which
// live in the same local index space at indices [0,len(Params))) and its
// instruction tree.
type Code struct {
	NumLocals  uint32        // count of declared (non-parameter) locals
	LocalTypes []ValueType   // one entry per declared local, in declaration order
	Body       []Instruction
}

// FunctionInstance is the runtime representation of a function, whether
// defined in the module or supplied by the host. Exactly one of GoFunc or
// Body is meaningful, selected by Kind.
type FunctionInstance struct {
	Kind FunctionKind
	Type *FunctionType

	// FunctionKindWasm
	Body       []Instruction
	LocalTypes []ValueType
	Module     *ModuleInstance // owning instance; nil for FunctionKindHost

	// FunctionKindHost
	GoFunc     GoFunc
	HostName   string // debug name, e.g. "env.log", used in backtraces

	// DebugName is the function's name if any, from the optional "name"
	// custom section; host functions leave it empty and backtraces use
	// HostName. Used only for wasmdebug backtraces, never for linking.
	DebugName string
}

// IsHost reports whether this function is backed by a host callback.
func (f *FunctionInstance) IsHost() bool { return f.Kind == FunctionKindHost }
