package wasmnet

import (
	"github.com/DanielCarmingham/WasmNet/internal/wasm"
	"github.com/DanielCarmingham/WasmNet/internal/wasm/binary"
)

// RuntimeConfig controls properties of a Runtime that apply to every module
// it instantiates, with the default supplied by NewRuntimeConfig. Each
// WithXxx method returns a copy, so a config value can be shared and forked
// safely. The knobs cover what the decoder and instance model actually
// consult: memory max defaulting and the two optional proposal groups this
// engine implements.
type RuntimeConfig struct {
	memoryMaxPages uint32
	features       binary.Features
}

// NewRuntimeConfig returns the default RuntimeConfig: memories with no
// declared max are capped at wasm.MemoryMaxPages (the full 4 GiB a 32-bit
// offset can address), and both optional proposal groups this core
// implements (bulk-memory operations, reference types) are enabled.
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{memoryMaxPages: wasm.MemoryMaxPages, features: binary.NewFeatures()}
}

func (c *RuntimeConfig) clone() *RuntimeConfig {
	cp := *c
	return &cp
}

// WithMemoryMaxPages lowers the default max page count a memory grows to
// when the binary itself declares none.
//
//   - If a module defines no memory max, instantiation sets it to this value.
//   - Any "memory.grow" that would exceed it fails (returns -1) rather than
//     trapping.
func (c *RuntimeConfig) WithMemoryMaxPages(memoryMaxPages uint32) *RuntimeConfig {
	ret := c.clone()
	ret.memoryMaxPages = memoryMaxPages
	return ret
}

// WithFeatureBulkMemoryOperations toggles memory.init/copy/fill,
// data.drop, table.init/copy and elem.drop. A module using one of these
// opcodes while the feature is disabled fails to decode.
func (c *RuntimeConfig) WithFeatureBulkMemoryOperations(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.features.BulkMemoryOperations = enabled
	return ret
}

// WithFeatureReferenceTypes toggles table.get/set, ref.null, ref.is_null
// and ref.func. A module using one of these opcodes while the feature is
// disabled fails to decode.
func (c *RuntimeConfig) WithFeatureReferenceTypes(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.features.ReferenceTypes = enabled
	return ret
}
