package wasm

import "fmt"

// ExternKind is the kind of an import or export: func, table, memory or
// global, per the binary format's single-byte discriminant.
type ExternKind byte

const (
	ExternKindFunc ExternKind = iota
	ExternKindTable
	ExternKindMemory
	ExternKindGlobal
)

func (k ExternKind) String() string {
	switch k {
	case ExternKindFunc:
		return "func"
	case ExternKindTable:
		return "table"
	case ExternKindMemory:
		return "memory"
	case ExternKindGlobal:
		return "global"
	default:
		return "unknown"
	}
}

// Import is one entry of the import section: a (module, name) pair together
// with the kind and shape of extern it expects to be satisfied by.
type Import struct {
	Module, Name string
	Kind         ExternKind

	// Exactly one of these is populated, selected by Kind.
	TypeIndex  Index
	Table      *Table
	Memory     *Memory
	GlobalType *GlobalType
}

// Memory is a memory's declared limits (static, not yet allocated).
type Memory struct {
	Min uint32
	Max *uint32
}

// Export is one entry of the export section.
type Export struct {
	Name  string
	Kind  ExternKind
	Index Index
}

// GlobalDecl is a module-defined (i.e. non-imported) global: its type and
// the constant expression that initializes it.
type GlobalDecl struct {
	Type *GlobalType
	Init []Instruction // a constant expression
}

// DataSegment is one entry of the data section.
type DataSegment struct {
	Passive     bool
	MemoryIndex Index         // always 0 until multi-memory; kept for forward fit
	OffsetExpr  []Instruction // constant expression; nil if Passive
	Init        []byte
}

// ElementSegment is one entry of the element section.
type ElementSegment struct {
	Passive     bool
	Declarative bool
	TableIndex  Index
	OffsetExpr  []Instruction // constant expression; nil if Passive or Declarative
	Init        []Index       // function indices this element vector holds
}

// Module is the statically-decoded, unlinked contents of a single binary.
// It owns no runtime state: instantiating it produces a ModuleInstance.
type Module struct {
	TypeSection   []FunctionType
	ImportSection []Import

	// FunctionSection maps a module-defined function's index (within the
	// function index space, after all imported funcs) to its type index.
	FunctionSection []Index
	CodeSection     []Code

	TableSection  []Table
	MemorySection []Memory

	GlobalSection []GlobalDecl

	ExportSection []Export

	StartSection *Index

	ElementSection []ElementSegment
	DataSection    []DataSegment

	// DataCountSection, when present, pins the number of data segments ahead
	// of the code section so memory.init/data.drop can be validated without
	// a forward reference. Nil if the section was absent.
	DataCountSection *uint32

	// NameSection carries human-readable names recovered from the optional
	// "name" custom section, used only for wasmdebug backtraces.
	NameSection *NameSection
}

// NameSection holds the subset of the custom "name" section this engine
// makes use of: the module's own name and its functions' names.
type NameSection struct {
	ModuleName    string
	FunctionNames map[Index]string
}

// DecodeErrorKind classifies a binary decoding failure.
type DecodeErrorKind int

const (
	DecodeErrorUnexpectedEOF DecodeErrorKind = iota
	DecodeErrorBadMagic
	DecodeErrorBadVersion
	DecodeErrorBadSectionID
	DecodeErrorBadSectionOrder
	DecodeErrorBadLEB128
	DecodeErrorBadValueType
	DecodeErrorBadOpcode
	DecodeErrorBadUTF8
	DecodeErrorDuplicateSection
	DecodeErrorOversizedSection
	DecodeErrorInvalidModule
	DecodeErrorDisabledFeature
)

func (k DecodeErrorKind) String() string {
	switch k {
	case DecodeErrorUnexpectedEOF:
		return "unexpected EOF"
	case DecodeErrorBadMagic:
		return "bad magic"
	case DecodeErrorBadVersion:
		return "bad version"
	case DecodeErrorBadSectionID:
		return "bad section id"
	case DecodeErrorBadSectionOrder:
		return "bad section order"
	case DecodeErrorBadLEB128:
		return "bad leb128"
	case DecodeErrorBadValueType:
		return "bad value type"
	case DecodeErrorBadOpcode:
		return "bad opcode"
	case DecodeErrorBadUTF8:
		return "bad utf8"
	case DecodeErrorDuplicateSection:
		return "duplicate section"
	case DecodeErrorOversizedSection:
		return "oversized section"
	case DecodeErrorInvalidModule:
		return "invalid module"
	case DecodeErrorDisabledFeature:
		return "disabled feature"
	default:
		return "unknown"
	}
}

// DecodeError reports a failure to parse a binary, with the byte offset it
// was detected at where known.
type DecodeError struct {
	Kind    DecodeErrorKind
	Offset  uint64
	Message string
}

func (e *DecodeError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("wasm: invalid binary at offset %#x: %s: %s", e.Offset, e.Kind, e.Message)
	}
	return fmt.Sprintf("wasm: invalid binary at offset %#x: %s", e.Offset, e.Kind)
}

func NewDecodeError(kind DecodeErrorKind, offset uint64, message string) *DecodeError {
	return &DecodeError{Kind: kind, Offset: offset, Message: message}
}
