package binary

import (
	"github.com/DanielCarmingham/WasmNet/internal/wasm"
)

const (
	sectionIDCustom    = 0
	sectionIDType      = 1
	sectionIDImport    = 2
	sectionIDFunction  = 3
	sectionIDTable     = 4
	sectionIDMemory    = 5
	sectionIDGlobal    = 6
	sectionIDExport    = 7
	sectionIDStart     = 8
	sectionIDElement   = 9
	sectionIDCode      = 10
	sectionIDData      = 11
	sectionIDDataCount = 12
)

func decodeTypeSection(r *reader) ([]wasm.FunctionType, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	types := make([]wasm.FunctionType, count)
	for i := range types {
		tag, err := r.readByte()
		if err != nil {
			return nil, err
		}
		if tag != 0x60 {
			return nil, wasm.NewDecodeError(wasm.DecodeErrorInvalidModule, r.offset-1, "expected func type tag 0x60")
		}
		numParams, err := r.u32()
		if err != nil {
			return nil, err
		}
		params := make([]wasm.ValueType, numParams)
		for j := range params {
			if params[j], err = r.valueType(); err != nil {
				return nil, err
			}
		}
		numResults, err := r.u32()
		if err != nil {
			return nil, err
		}
		if numResults > 1 {
			return nil, wasm.NewDecodeError(wasm.DecodeErrorInvalidModule, r.offset, "multi-value results are unsupported")
		}
		results := make([]wasm.ValueType, numResults)
		for j := range results {
			if results[j], err = r.valueType(); err != nil {
				return nil, err
			}
		}
		types[i] = wasm.FunctionType{Params: params, Results: results}
	}
	return types, nil
}

func decodeImportSection(r *reader) ([]wasm.Import, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	imports := make([]wasm.Import, count)
	for i := range imports {
		mod, err := r.name()
		if err != nil {
			return nil, err
		}
		field, err := r.name()
		if err != nil {
			return nil, err
		}
		kind, err := r.readByte()
		if err != nil {
			return nil, err
		}
		imp := wasm.Import{Module: mod, Name: field, Kind: wasm.ExternKind(kind)}
		switch imp.Kind {
		case wasm.ExternKindFunc:
			if imp.TypeIndex, err = r.u32(); err != nil {
				return nil, err
			}
		case wasm.ExternKindTable:
			if _, err := r.readByte(); err != nil { // reftype, always funcref in this subset
				return nil, err
			}
			min, max, err := r.limits()
			if err != nil {
				return nil, err
			}
			imp.Table = &wasm.Table{Min: min, Max: max}
		case wasm.ExternKindMemory:
			min, max, err := r.limits()
			if err != nil {
				return nil, err
			}
			imp.Memory = &wasm.Memory{Min: min, Max: max}
		case wasm.ExternKindGlobal:
			vt, err := r.valueType()
			if err != nil {
				return nil, err
			}
			mutFlag, err := r.readByte()
			if err != nil {
				return nil, err
			}
			imp.GlobalType = &wasm.GlobalType{ValType: vt, Mutable: mutFlag == 1}
		default:
			return nil, wasm.NewDecodeError(wasm.DecodeErrorInvalidModule, r.offset-1, "bad import kind")
		}
		imports[i] = imp
	}
	return imports, nil
}

func decodeFunctionSection(r *reader) ([]wasm.Index, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Index, count)
	for i := range out {
		if out[i], err = r.u32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func decodeTableSection(r *reader) ([]wasm.Table, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Table, count)
	for i := range out {
		if _, err := r.readByte(); err != nil { // reftype
			return nil, err
		}
		min, max, err := r.limits()
		if err != nil {
			return nil, err
		}
		out[i] = wasm.Table{Min: min, Max: max}
	}
	return out, nil
}

func decodeMemorySection(r *reader) ([]wasm.Memory, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Memory, count)
	for i := range out {
		min, max, err := r.limits()
		if err != nil {
			return nil, err
		}
		out[i] = wasm.Memory{Min: min, Max: max}
	}
	return out, nil
}

func decodeGlobalSection(r *reader) ([]wasm.GlobalDecl, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.GlobalDecl, count)
	for i := range out {
		vt, err := r.valueType()
		if err != nil {
			return nil, err
		}
		mutFlag, err := r.readByte()
		if err != nil {
			return nil, err
		}
		expr, err := decodeExpr(r, nil)
		if err != nil {
			return nil, err
		}
		out[i] = wasm.GlobalDecl{Type: &wasm.GlobalType{ValType: vt, Mutable: mutFlag == 1}, Init: expr}
	}
	return out, nil
}

func decodeExportSection(r *reader) ([]wasm.Export, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Export, count)
	for i := range out {
		name, err := r.name()
		if err != nil {
			return nil, err
		}
		kind, err := r.readByte()
		if err != nil {
			return nil, err
		}
		idx, err := r.u32()
		if err != nil {
			return nil, err
		}
		out[i] = wasm.Export{Name: name, Kind: wasm.ExternKind(kind), Index: idx}
	}
	return out, nil
}

func decodeStartSection(r *reader) (*wasm.Index, error) {
	idx, err := r.u32()
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

func decodeElementSection(r *reader) ([]wasm.ElementSegment, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.ElementSegment, count)
	for i := range out {
		flag, err := r.u32()
		if err != nil {
			return nil, err
		}
		seg := wasm.ElementSegment{}
		switch flag {
		case 0:
			seg.OffsetExpr, err = decodeExpr(r, nil)
			if err != nil {
				return nil, err
			}
			seg.Init, err = decodeFuncIndexVec(r)
		case 1:
			if _, err = r.readByte(); err != nil { // elemkind
				return nil, err
			}
			seg.Passive = true
			seg.Init, err = decodeFuncIndexVec(r)
		case 2:
			seg.TableIndex, err = r.u32()
			if err != nil {
				return nil, err
			}
			seg.OffsetExpr, err = decodeExpr(r, nil)
			if err != nil {
				return nil, err
			}
			if _, err = r.readByte(); err != nil {
				return nil, err
			}
			seg.Init, err = decodeFuncIndexVec(r)
		case 3:
			if _, err = r.readByte(); err != nil {
				return nil, err
			}
			seg.Declarative = true
			seg.Init, err = decodeFuncIndexVec(r)
		case 4:
			seg.OffsetExpr, err = decodeExpr(r, nil)
			if err != nil {
				return nil, err
			}
			seg.Init, err = decodeExprIndexVec(r)
		case 5, 7:
			if _, err = r.readByte(); err != nil { // reftype, always funcref in this subset
				return nil, err
			}
			seg.Passive = flag == 5
			seg.Declarative = flag == 7
			seg.Init, err = decodeExprIndexVec(r)
		case 6:
			seg.TableIndex, err = r.u32()
			if err != nil {
				return nil, err
			}
			seg.OffsetExpr, err = decodeExpr(r, nil)
			if err != nil {
				return nil, err
			}
			if _, err = r.readByte(); err != nil {
				return nil, err
			}
			seg.Init, err = decodeExprIndexVec(r)
		default:
			return nil, wasm.NewDecodeError(wasm.DecodeErrorInvalidModule, r.offset, "bad element segment flag")
		}
		if err != nil {
			return nil, err
		}
		out[i] = seg
	}
	return out, nil
}

func decodeFuncIndexVec(r *reader) ([]wasm.Index, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Index, count)
	for i := range out {
		if out[i], err = r.u32(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// decodeExprIndexVec decodes a vector of ref.func constant expressions (used
// by the element segment encodings whose entries are exprs rather than bare
// indices) down to the function index each one carries. ref.null entries
// become api.ReferenceNull's function-index analogue, the all-ones index,
// which can never name a real function.
func decodeExprIndexVec(r *reader) ([]wasm.Index, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Index, count)
	for i := range out {
		expr, err := decodeExpr(r, nil)
		if err != nil {
			return nil, err
		}
		if len(expr) == 1 && expr[0].Opcode == wasm.OpcodeRefFunc {
			out[i] = expr[0].Index
		} else {
			out[i] = ^wasm.Index(0)
		}
	}
	return out, nil
}

func decodeDataCountSection(r *reader) (*uint32, error) {
	v, err := r.u32()
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeDataSection(r *reader) ([]wasm.DataSegment, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.DataSegment, count)
	for i := range out {
		flag, err := r.u32()
		if err != nil {
			return nil, err
		}
		seg := wasm.DataSegment{}
		switch flag {
		case 0:
			seg.OffsetExpr, err = decodeExpr(r, nil)
			if err != nil {
				return nil, err
			}
		case 1:
			seg.Passive = true
		case 2:
			seg.MemoryIndex, err = r.u32()
			if err != nil {
				return nil, err
			}
			seg.OffsetExpr, err = decodeExpr(r, nil)
			if err != nil {
				return nil, err
			}
		default:
			return nil, wasm.NewDecodeError(wasm.DecodeErrorInvalidModule, r.offset, "bad data segment flag")
		}
		n, err := r.u32()
		if err != nil {
			return nil, err
		}
		seg.Init, err = r.readBytes(n)
		if err != nil {
			return nil, err
		}
		out[i] = seg
	}
	return out, nil
}

func decodeCodeSection(r *reader, types []wasm.FunctionType) ([]wasm.Code, error) {
	count, err := r.u32()
	if err != nil {
		return nil, err
	}
	out := make([]wasm.Code, count)
	for i := range out {
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		bodyStart := r.offset
		localDeclCount, err := r.u32()
		if err != nil {
			return nil, err
		}
		var localTypes []wasm.ValueType
		for j := uint32(0); j < localDeclCount; j++ {
			n, err := r.u32()
			if err != nil {
				return nil, err
			}
			vt, err := r.valueType()
			if err != nil {
				return nil, err
			}
			for k := uint32(0); k < n; k++ {
				localTypes = append(localTypes, vt)
			}
		}
		body, err := decodeExpr(r, types)
		if err != nil {
			return nil, err
		}
		if r.offset-bodyStart != uint64(size) {
			return nil, wasm.NewDecodeError(wasm.DecodeErrorInvalidModule, bodyStart, "code entry size mismatch")
		}
		out[i] = wasm.Code{NumLocals: uint32(len(localTypes)), LocalTypes: localTypes, Body: body}
	}
	return out, nil
}
