package luavm

import lua "github.com/yuin/gopher-lua"

// whitelistedLibs are the only standard library tables a module sees,
// per spec §4.6 point 3. Notably absent: io, package (so require is
// unavailable), debug, channel, coroutine.
var whitelistedLibs = []struct {
	name string
	fn   lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
	{lua.OsLibName, lua.OpenOs},
}

// dangerousBaseGlobals are removed from the base library after it's
// opened: Lua 5.1's load/loadstring/dofile/loadfile can all load and
// run arbitrary new code, which would defeat the sandbox.
var dangerousBaseGlobals = []string{"load", "loadstring", "dofile", "loadfile", "module", "require"}

// allowedOsFuncs are the only os.* entries spec §4.6 point 3 permits;
// everything else OpenOs installs (exit, getenv, remove, rename,
// tmpname, execute) is stripped.
var allowedOsFuncs = map[string]bool{
	"date":     true,
	"time":     true,
	"difftime": true,
	"clock":    true,
}

// newSandbox builds a fresh LState with only the whitelisted standard
// library surface installed, per limits' registry bound.
func newSandbox(limits Limits) *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:       true,
		RegistryMaxSize:    limits.RegistryMaxSize,
		IncludeGoStackTrace: false,
	})

	for _, lib := range whitelistedLibs {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range dangerousBaseGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	if osTable, ok := L.GetGlobal(lua.OsLibName).(*lua.LTable); ok {
		osTable.ForEach(func(k, _ lua.LValue) {
			name, isStr := k.(lua.LString)
			if isStr && !allowedOsFuncs[string(name)] {
				osTable.RawSetString(string(name), lua.LNil)
			}
		})
	}

	return L
}
