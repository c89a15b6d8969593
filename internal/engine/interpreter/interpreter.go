// Package interpreter implements the execution core: a tree-walking
// interpreter that runs directly over the nested instruction representation
// internal/wasm/binary decodes, rather than first compiling to a flattened
// intermediate representation.
package interpreter

import (
	"fmt"
	"math"

	"github.com/DanielCarmingham/WasmNet/internal/buildoptions"
	"github.com/DanielCarmingham/WasmNet/internal/wasm"
	"github.com/DanielCarmingham/WasmNet/internal/wasmdebug"
	"github.com/DanielCarmingham/WasmNet/internal/wasmruntime"
)

// Engine runs FunctionInstances. It holds no per-module compiled state,
// since a FunctionInstance's Body is already directly executable; Engine
// exists as the stable entry point the public Runtime/Store calls into, and
// as the seam a future second backend (e.g. one that does compile to a
// flattened IR) would implement the same interface against.
type Engine struct{}

// NewEngine returns an Engine. It carries no configuration of its own.
func NewEngine() *Engine { return &Engine{} }

// Call invokes fn with args and returns its results, or an error
// describing a trap. args and the returned results are raw uint64 stack
// slots; see api.ValueType for the encoding of each value type.
func (e *Engine) Call(fn *wasm.FunctionInstance, args []uint64) (results []uint64, err error) {
	ce := &callEngine{}
	defer func() {
		if r := recover(); r != nil {
			eb := wasmdebug.NewErrorBuilder()
			for i := len(ce.callNames) - 1; i >= 0; i-- {
				eb.AddFrame(ce.callNames[i])
			}
			err = eb.FromRecovered(r)
		}
	}()
	results = ce.callFunction(fn, args)
	return results, nil
}

type callEngine struct {
	stack     []uint64
	depth     int
	callNames []string
}

func (ce *callEngine) push(v uint64) { ce.stack = append(ce.stack, v) }
func (ce *callEngine) pop() uint64 {
	v := ce.stack[len(ce.stack)-1]
	ce.stack = ce.stack[:len(ce.stack)-1]
	return v
}
func (ce *callEngine) popI32() int32     { return int32(uint32(ce.pop())) }
func (ce *callEngine) popU32() uint32    { return uint32(ce.pop()) }
func (ce *callEngine) popI64() int64     { return int64(ce.pop()) }
func (ce *callEngine) popU64() uint64    { return ce.pop() }
func (ce *callEngine) pushI32(v int32)   { ce.push(uint64(uint32(v))) }
func (ce *callEngine) pushU32(v uint32)  { ce.push(uint64(v)) }
func (ce *callEngine) pushI64(v int64)   { ce.push(uint64(v)) }
func (ce *callEngine) pushU64(v uint64)  { ce.push(v) }
func (ce *callEngine) popF32() float32   { return math.Float32frombits(uint32(ce.pop())) }
func (ce *callEngine) popF64() float64   { return math.Float64frombits(ce.pop()) }
func (ce *callEngine) pushF32(v float32) { ce.push(uint64(math.Float32bits(v))) }
func (ce *callEngine) pushF64(v float64) { ce.push(math.Float64bits(v)) }
func (ce *callEngine) pushBool(b bool) {
	if b {
		ce.push(1)
	} else {
		ce.push(0)
	}
}

type callFrame struct {
	fn     *wasm.FunctionInstance
	locals []uint64
}

// callFunction invokes fn, recursing through evalInstrs for wasm functions
// or calling GoFunc directly for host functions. Traps propagate as Go
// panics; nested calls let them propagate further rather than recovering,
// so the single recover in Engine.Call is what finally converts a panic
// into an error, after callNames has recorded every frame on the way down.
func (ce *callEngine) callFunction(fn *wasm.FunctionInstance, args []uint64) []uint64 {
	ce.depth++
	if ce.depth > buildoptions.CallStackCeiling {
		panic(wasmruntime.ErrStackOverflow)
	}
	name := fn.DebugName
	if name == "" {
		name = fn.HostName
	}
	ce.callNames = append(ce.callNames, name)
	defer func() {
		ce.depth--
		// callNames is intentionally left untruncated when unwinding from a
		// panic, so Engine.Call's recover sees the full call chain; it is
		// only popped on the non-panicking path below.
	}()

	if fn.IsHost() {
		width := len(fn.Type.Params)
		if len(fn.Type.Results) > width {
			width = len(fn.Type.Results)
		}
		stack := make([]uint64, width)
		copy(stack, args)
		ce.callHost(fn, stack)
		results := append([]uint64(nil), stack[:len(fn.Type.Results)]...)
		ce.callNames = ce.callNames[:len(ce.callNames)-1]
		return results
	}

	locals := make([]uint64, len(fn.Type.Params)+len(fn.LocalTypes))
	copy(locals, args)
	frame := &callFrame{fn: fn, locals: locals}

	base := len(ce.stack)
	ce.evalInstrs(frame, fn.Body)
	nres := len(fn.Type.Results)
	results := append([]uint64(nil), ce.stack[len(ce.stack)-nres:]...)
	ce.stack = ce.stack[:base]
	ce.callNames = ce.callNames[:len(ce.callNames)-1]
	return results
}

// callHost runs a host function body, converting any panic it raises into
// the Host trap variant so an aborting import unwinds like a Wasm trap
// instead of masquerading as an engine bug. A *wasmruntime.Trap panicked by
// the host (e.g. one it got back from a reentrant call) passes through
// untouched.
func (ce *callEngine) callHost(fn *wasm.FunctionInstance, stack []uint64) {
	defer func() {
		if r := recover(); r != nil {
			if trap, ok := r.(*wasmruntime.Trap); ok {
				panic(trap)
			}
			if err, ok := r.(error); ok {
				panic(wasmruntime.HostTrap(err))
			}
			panic(wasmruntime.HostTrap(fmt.Errorf("%v", r)))
		}
	}()
	fn.GoFunc(stack)
}

type ctrlKind int

const (
	ctrlNone ctrlKind = iota
	ctrlBranch
	ctrlReturn
)

type ctrlSignal struct {
	kind  ctrlKind
	depth uint32
}

func (ce *callEngine) evalInstrs(frame *callFrame, instrs []wasm.Instruction) ctrlSignal {
	for i := range instrs {
		if sig := ce.evalInstr(frame, &instrs[i]); sig.kind != ctrlNone {
			return sig
		}
	}
	return ctrlSignal{}
}

// exitLabel truncates the operand stack back to height, preserving the top
// arity values: the stack-transfer rule a structured-control-flow label
// applies whether it is reached by falling through or by a branch.
func (ce *callEngine) exitLabel(height int, arity int) {
	if arity == 0 {
		ce.stack = ce.stack[:height]
		return
	}
	saved := append([]uint64(nil), ce.stack[len(ce.stack)-arity:]...)
	ce.stack = ce.stack[:height]
	ce.stack = append(ce.stack, saved...)
}

func (ce *callEngine) evalBlock(frame *callFrame, blk *wasm.ControlBlock) ctrlSignal {
	height := len(ce.stack)
	sig := ce.evalInstrs(frame, blk.Then)
	switch sig.kind {
	case ctrlBranch:
		if sig.depth == 0 {
			ce.exitLabel(height, blk.Type.ResultArity())
			return ctrlSignal{}
		}
		return ctrlSignal{kind: ctrlBranch, depth: sig.depth - 1}
	case ctrlReturn:
		return sig
	default:
		ce.exitLabel(height, blk.Type.ResultArity())
		return ctrlSignal{}
	}
}

func (ce *callEngine) evalLoop(frame *callFrame, blk *wasm.ControlBlock) ctrlSignal {
	for {
		height := len(ce.stack)
		sig := ce.evalInstrs(frame, blk.Then)
		switch sig.kind {
		case ctrlBranch:
			if sig.depth == 0 {
				ce.exitLabel(height, 0) // loop's re-entry arity is its param count: always 0 here
				continue
			}
			return ctrlSignal{kind: ctrlBranch, depth: sig.depth - 1}
		case ctrlReturn:
			return sig
		default:
			ce.exitLabel(height, blk.Type.ResultArity())
			return ctrlSignal{}
		}
	}
}

func (ce *callEngine) evalIf(frame *callFrame, blk *wasm.ControlBlock) ctrlSignal {
	cond := ce.popU32()
	height := len(ce.stack)
	body := blk.Else
	if cond != 0 {
		body = blk.Then
	}
	sig := ce.evalInstrs(frame, body)
	switch sig.kind {
	case ctrlBranch:
		if sig.depth == 0 {
			ce.exitLabel(height, blk.Type.ResultArity())
			return ctrlSignal{}
		}
		return ctrlSignal{kind: ctrlBranch, depth: sig.depth - 1}
	case ctrlReturn:
		return sig
	default:
		ce.exitLabel(height, blk.Type.ResultArity())
		return ctrlSignal{}
	}
}

func (ce *callEngine) doCall(frame *callFrame, idx wasm.Index) {
	fn := frame.fn.Module.Functions[idx]
	args := ce.popArgs(len(fn.Type.Params))
	results := ce.callFunction(fn, args)
	for _, v := range results {
		ce.push(v)
	}
}

func (ce *callEngine) doCallIndirect(frame *callFrame, instr *wasm.Instruction) {
	tbl := frame.fn.Module.Tables[instr.Index2]
	elemIdx := ce.popU32()
	ref, ok := tbl.Get(elemIdx)
	if !ok || ref == wasmNullRef {
		panic(wasmruntime.ErrUndefinedElement)
	}
	fn := frame.fn.Module.Functions[wasm.Index(ref)]
	want := &frame.fn.Module.Types[instr.Index]
	if !want.EqualsSignature(fn.Type.Params, fn.Type.Results) {
		panic(wasmruntime.ErrIndirectCallTypeMismatch)
	}
	args := ce.popArgs(len(fn.Type.Params))
	results := ce.callFunction(fn, args)
	for _, v := range results {
		ce.push(v)
	}
}

// wasmNullRef has the value of api.ReferenceNull (all bits set); this
// package spells it locally rather than importing api directly.
const wasmNullRef = ^uint64(0)

func (ce *callEngine) popArgs(n int) []uint64 {
	args := append([]uint64(nil), ce.stack[len(ce.stack)-n:]...)
	ce.stack = ce.stack[:len(ce.stack)-n]
	return args
}

func errUnknownOpcode(op wasm.Opcode) error {
	return fmt.Errorf("interpreter: unhandled opcode %#x", op)
}

func (ce *callEngine) evalInstr(frame *callFrame, instr *wasm.Instruction) ctrlSignal {
	switch instr.Opcode {
	case wasm.OpcodeBlock:
		return ce.evalBlock(frame, instr.Block)
	case wasm.OpcodeLoop:
		return ce.evalLoop(frame, instr.Block)
	case wasm.OpcodeIf:
		return ce.evalIf(frame, instr.Block)
	case wasm.OpcodeBr:
		return ctrlSignal{kind: ctrlBranch, depth: instr.Index}
	case wasm.OpcodeBrIf:
		if ce.popU32() != 0 {
			return ctrlSignal{kind: ctrlBranch, depth: instr.Index}
		}
		return ctrlSignal{}
	case wasm.OpcodeBrTable:
		idx := ce.popU32()
		target := instr.Default
		if idx < uint32(len(instr.Labels)) {
			target = instr.Labels[idx]
		}
		return ctrlSignal{kind: ctrlBranch, depth: target}
	case wasm.OpcodeReturn:
		return ctrlSignal{kind: ctrlReturn}
	case wasm.OpcodeUnreachable:
		panic(wasmruntime.ErrUnreachable)
	case wasm.OpcodeNop, wasm.OpcodeEnd:
		// An end at the outermost body falls through to the implicit return;
		// the expression decoder consumes block-internal ends, so one only
		// appears here in hand-constructed bodies.
		return ctrlSignal{}
	case wasm.OpcodeCall:
		ce.doCall(frame, instr.Index)
		return ctrlSignal{}
	case wasm.OpcodeCallIndirect:
		ce.doCallIndirect(frame, instr)
		return ctrlSignal{}
	case wasm.OpcodeDrop:
		ce.pop()
		return ctrlSignal{}
	case wasm.OpcodeSelect:
		c := ce.popU32()
		v2 := ce.pop()
		v1 := ce.pop()
		if c != 0 {
			ce.push(v1)
		} else {
			ce.push(v2)
		}
		return ctrlSignal{}

	case wasm.OpcodeLocalGet:
		ce.push(frame.locals[instr.Index])
		return ctrlSignal{}
	case wasm.OpcodeLocalSet:
		frame.locals[instr.Index] = ce.pop()
		return ctrlSignal{}
	case wasm.OpcodeLocalTee:
		frame.locals[instr.Index] = ce.stack[len(ce.stack)-1]
		return ctrlSignal{}
	case wasm.OpcodeGlobalGet:
		ce.push(frame.fn.Module.Globals[instr.Index].Get())
		return ctrlSignal{}
	case wasm.OpcodeGlobalSet:
		frame.fn.Module.Globals[instr.Index].Set(ce.pop())
		return ctrlSignal{}

	case wasm.OpcodeTableGet:
		tbl := frame.fn.Module.Tables[instr.Index]
		idx := ce.popU32()
		v, ok := tbl.Get(idx)
		if !ok {
			panic(wasmruntime.ErrOutOfBoundsTable)
		}
		ce.push(v)
		return ctrlSignal{}
	case wasm.OpcodeTableSet:
		tbl := frame.fn.Module.Tables[instr.Index]
		v := ce.pop()
		idx := ce.popU32()
		if !tbl.Set(idx, v) {
			panic(wasmruntime.ErrOutOfBoundsTable)
		}
		return ctrlSignal{}

	case wasm.OpcodeRefNull:
		ce.push(wasmNullRef)
		return ctrlSignal{}
	case wasm.OpcodeRefIsNull:
		ce.pushBool(ce.pop() == wasmNullRef)
		return ctrlSignal{}
	case wasm.OpcodeRefFunc:
		ce.push(uint64(instr.Index))
		return ctrlSignal{}

	case wasm.OpcodeI32Const:
		ce.pushI32(instr.I32)
		return ctrlSignal{}
	case wasm.OpcodeI64Const:
		ce.pushI64(instr.I64)
		return ctrlSignal{}
	case wasm.OpcodeF32Const:
		ce.push(uint64(instr.F32))
		return ctrlSignal{}
	case wasm.OpcodeF64Const:
		ce.push(instr.F64)
		return ctrlSignal{}
	}

	if sig, ok := ce.evalNumeric(instr.Opcode); ok {
		return sig
	}
	if sig, ok := ce.evalMemory(frame, instr); ok {
		return sig
	}
	panic(wasmruntime.HostTrap(errUnknownOpcode(instr.Opcode)))
}
