package luavm

import "errors"

// Sentinel errors for the Lua runtime's error taxonomy tier (spec §7,
// "Expansion errors"): every one of these becomes an inline error
// marker at the #invoke call site, never a failed render.
var (
	// ErrModuleNotFound means the Module: page #invoke named has no
	// entry in the dump.
	ErrModuleNotFound = errors.New("module not found")
	// ErrFunctionNotFound means the module loaded but does not export
	// the named function.
	ErrFunctionNotFound = errors.New("function not found in module")
	// ErrTableReturn means the invoked function returned a Lua table;
	// per spec §4.6 point 5, only scalars convert to wikitext.
	ErrTableReturn = errors.New("#invoke function returned a table, not a scalar")
	// ErrBudgetExceeded means the per-invoke wall-clock budget
	// (Limits.WallClock) ran out mid-call; no instruction count is
	// enforced.
	ErrBudgetExceeded = errors.New("lua invocation exceeded its budget")
	// ErrRuntime wraps an uncaught Lua-level error (a runtime error
	// inside the module, or a compile error loading its source).
	ErrRuntime = errors.New("lua runtime error")
)
