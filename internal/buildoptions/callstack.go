package buildoptions

// CallStackCeiling bounds the depth of nested wasm-to-wasm calls a single
// callEngine will make before raising a StackOverflow trap. Go's own stack
// grows but is not unbounded either; this ceiling fails fast with a trap
// instead of crashing the host process.
const CallStackCeiling = 2000
