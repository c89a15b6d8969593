package binary

import (
	"io"

	"github.com/DanielCarmingham/WasmNet/internal/wasm"
)

var magic = [4]byte{0x00, 0x61, 0x73, 0x6d}
var version = [4]byte{0x01, 0x00, 0x00, 0x00}

// Features gates which decoder-level extensions a module may use. Both
// default to true (NewFeatures); with a toggle off, the decoder rejects the
// corresponding opcodes with DecodeErrorDisabledFeature instead of silently
// accepting them.
type Features struct {
	BulkMemoryOperations bool
	ReferenceTypes       bool
}

// NewFeatures returns both feature toggles enabled, the default this core's
// RuntimeConfig starts from.
func NewFeatures() Features {
	return Features{BulkMemoryOperations: true, ReferenceTypes: true}
}

// DecodeModule parses a complete binary into a *wasm.Module. It performs
// only the structural validation the binary format itself demands (section
// order, vector/LEB well-formedness, value types); the fuller
// well-formedness checks a validating engine would run (stack-effect
// type-checking, label depth bounds) are deferred to execution-time traps,
// keeping the decoder a pure structural parser.
func DecodeModule(data []byte, features Features) (*wasm.Module, error) {
	r := newReader(data)
	r.features = features

	var magicBuf [4]byte
	for i := range magicBuf {
		b, err := r.readByte()
		if err != nil {
			return nil, wasm.NewDecodeError(wasm.DecodeErrorUnexpectedEOF, r.offset, "reading magic")
		}
		magicBuf[i] = b
	}
	if magicBuf != magic {
		return nil, wasm.NewDecodeError(wasm.DecodeErrorBadMagic, 0, "")
	}
	var versionBuf [4]byte
	for i := range versionBuf {
		b, err := r.readByte()
		if err != nil {
			return nil, wasm.NewDecodeError(wasm.DecodeErrorUnexpectedEOF, r.offset, "reading version")
		}
		versionBuf[i] = b
	}
	if versionBuf != version {
		return nil, wasm.NewDecodeError(wasm.DecodeErrorBadVersion, 4, "")
	}

	m := &wasm.Module{}
	seenSections := map[byte]bool{}
	lastOrderedRank := -1

	for r.remaining() > 0 {
		id, err := r.readByte()
		if err != nil {
			return nil, wasm.NewDecodeError(wasm.DecodeErrorUnexpectedEOF, r.offset, "reading section id")
		}
		size, err := r.u32()
		if err != nil {
			return nil, decodeErrAt(err, r.offset, "reading section size")
		}
		sectionStart := r.offset
		if r.remaining() < int(size) {
			return nil, wasm.NewDecodeError(wasm.DecodeErrorOversizedSection, sectionStart, "section runs past end of module")
		}
		sectionBytes, err := r.readBytes(size)
		if err != nil {
			return nil, err
		}
		sr := newReader(sectionBytes)
		sr.offset = sectionStart
		sr.features = r.features

		if id != sectionIDCustom {
			if seenSections[id] {
				return nil, wasm.NewDecodeError(wasm.DecodeErrorDuplicateSection, sectionStart, "")
			}
			seenSections[id] = true
			rank, known := sectionRank(id)
			if !known {
				return nil, wasm.NewDecodeError(wasm.DecodeErrorBadSectionID, sectionStart-1, "")
			}
			if rank < lastOrderedRank {
				return nil, wasm.NewDecodeError(wasm.DecodeErrorBadSectionOrder, sectionStart, "")
			}
			lastOrderedRank = rank
		}

		switch id {
		case sectionIDCustom:
			name, nerr := sr.name()
			if nerr == nil && name == "name" {
				m.NameSection, _ = decodeNameSection(sr) // best-effort; a malformed name section is never fatal
			}
		case sectionIDType:
			if m.TypeSection, err = decodeTypeSection(sr); err != nil {
				return nil, err
			}
		case sectionIDImport:
			if m.ImportSection, err = decodeImportSection(sr); err != nil {
				return nil, err
			}
		case sectionIDFunction:
			if m.FunctionSection, err = decodeFunctionSection(sr); err != nil {
				return nil, err
			}
		case sectionIDTable:
			if m.TableSection, err = decodeTableSection(sr); err != nil {
				return nil, err
			}
		case sectionIDMemory:
			if m.MemorySection, err = decodeMemorySection(sr); err != nil {
				return nil, err
			}
		case sectionIDGlobal:
			if m.GlobalSection, err = decodeGlobalSection(sr); err != nil {
				return nil, err
			}
		case sectionIDExport:
			if m.ExportSection, err = decodeExportSection(sr); err != nil {
				return nil, err
			}
		case sectionIDStart:
			if m.StartSection, err = decodeStartSection(sr); err != nil {
				return nil, err
			}
		case sectionIDElement:
			if m.ElementSection, err = decodeElementSection(sr); err != nil {
				return nil, err
			}
		case sectionIDCode:
			if m.CodeSection, err = decodeCodeSection(sr, m.TypeSection); err != nil {
				return nil, err
			}
		case sectionIDData:
			if m.DataSection, err = decodeDataSection(sr); err != nil {
				return nil, err
			}
		case sectionIDDataCount:
			if m.DataCountSection, err = decodeDataCountSection(sr); err != nil {
				return nil, err
			}
		default:
			return nil, wasm.NewDecodeError(wasm.DecodeErrorBadSectionID, sectionStart-1, "")
		}
	}

	if len(m.FunctionSection) != len(m.CodeSection) {
		return nil, wasm.NewDecodeError(wasm.DecodeErrorInvalidModule, r.offset, "function and code section counts differ")
	}
	return m, nil
}

// sectionRank maps a section id to its required position in the binary.
// Ranks mostly follow ids, except the data-count section (id 12), which the
// bulk-memory proposal slots between the element and code sections so the
// code section can be checked against the data segment count up front.
func sectionRank(id byte) (int, bool) {
	switch id {
	case sectionIDType, sectionIDImport, sectionIDFunction, sectionIDTable,
		sectionIDMemory, sectionIDGlobal, sectionIDExport, sectionIDStart, sectionIDElement:
		return int(id), true
	case sectionIDDataCount:
		return int(sectionIDElement) + 1, true
	case sectionIDCode:
		return int(sectionIDCode) + 1, true
	case sectionIDData:
		return int(sectionIDData) + 1, true
	default:
		return 0, false
	}
}

func decodeErrAt(err error, offset uint64, msg string) error {
	if err == io.ErrUnexpectedEOF || err == io.EOF {
		return wasm.NewDecodeError(wasm.DecodeErrorUnexpectedEOF, offset, msg)
	}
	return err
}

func decodeNameSection(r *reader) (*wasm.NameSection, error) {
	ns := &wasm.NameSection{FunctionNames: map[wasm.Index]string{}}
	for r.remaining() > 0 {
		subID, err := r.readByte()
		if err != nil {
			return ns, nil
		}
		size, err := r.u32()
		if err != nil {
			return ns, nil
		}
		sub, err := r.readBytes(size)
		if err != nil {
			return ns, nil
		}
		subr := newReader(sub)
		switch subID {
		case 0:
			if n, err := subr.name(); err == nil {
				ns.ModuleName = n
			}
		case 1:
			count, err := subr.u32()
			if err != nil {
				continue
			}
			for i := uint32(0); i < count; i++ {
				idx, err := subr.u32()
				if err != nil {
					break
				}
				name, err := subr.name()
				if err != nil {
					break
				}
				ns.FunctionNames[idx] = name
			}
		}
	}
	return ns, nil
}
