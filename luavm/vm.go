// Package luavm implements C6: a Scribunto-style sandboxed Lua virtual
// machine that executes Module: pages for {{#invoke:...}} calls. It is
// the sole implementation of package template's Invoker interface; the
// expander and renderer never import gopher-lua directly, so the VM
// choice can be swapped (spec §9, "embedded VM boundary") by providing
// a different Invoker.
package luavm

import (
	"context"
	"fmt"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"

	"github.com/pkg/errors"

	"github.com/kepler-wiki/wikireader/cache"
	"github.com/kepler-wiki/wikireader/template"
	"github.com/kepler-wiki/wikireader/title"
)

// Fetcher resolves a Module: title to its source, the same narrow
// boundary package template uses to reach C1/C2.
type Fetcher = template.Fetcher

// Limits bounds one #invoke call, per spec §4.6 point 4.
type Limits struct {
	// InstructionBudget is carried as configuration but not enforced:
	// gopher-lua exposes no public opcode-count hook (unlike PUC Lua's
	// debug.sethook count hook), and Invoke does not read this field.
	// The only per-call bound on Lua work is WallClock, applied through
	// the LState's context, which the VM checks at loop back-edges.
	InstructionBudget int
	WallClock         time.Duration
	// RegistryMaxSize bounds the VM's value stack / registry growth, the
	// closest gopher-lua analog to "the VM's allocator limit" the spec
	// calls for; there is no separate heap-byte limit to set.
	RegistryMaxSize int
}

// DefaultLimits are conservative per-invoke budgets tuned so that a
// well-behaved infobox/navbox module completes in well under the
// sub-second cold-load target while a runaway module is cut off
// promptly.
var DefaultLimits = Limits{
	InstructionBudget: 10_000_000,
	WallClock:         200 * time.Millisecond,
	RegistryMaxSize:   1 << 20,
}

// compiledModule is what the compiled-module cache (C8) actually holds:
// the bytecode prototype plus the source size used for its byte-budget
// accounting.
type compiledModule struct {
	proto      *lua.FunctionProto
	sourceSize int64
}

// VM is the shared, request-agnostic Lua execution engine: it owns the
// compiled-chunk cache and the fetcher used to resolve Module: pages.
// Every #invoke call gets a brand-new LState (spec §4.6 point 3, "a
// per-call sandbox"); nothing here is request-scoped or mutated by a
// running script, so VM is safe for concurrent use.
type VM struct {
	fetch  Fetcher
	nsmap  *title.Map
	protos *cache.Cache[string, compiledModule]
	limits Limits
}

// New builds a VM backed by fetch (for resolving Module: source) and a
// compiled-chunk cache bounded to moduleCacheBytes. nsmap is used only
// to resolve bare template names passed to Lua's frame:expandTemplate.
func New(fetch Fetcher, nsmap *title.Map, moduleCacheBytes int64, limits Limits) *VM {
	return &VM{
		fetch: fetch,
		nsmap: nsmap,
		protos: cache.New[string](moduleCacheBytes, func(m compiledModule) int64 {
			return m.sourceSize
		}),
		limits: limits,
	}
}

// Invoke implements template.Invoker: it resolves module, compiles (or
// reuses the cached compiled form of) its source, runs fn under a fresh
// sandboxed LState with frame bound as the function's single argument,
// and converts the scalar return value back to a wikitext string for
// re-expansion.
func (v *VM) Invoke(ctx context.Context, module title.Title, fn string, frame *template.Frame, bridge template.HostBridge) (string, error) {
	proto, err := v.compiled(ctx, module)
	if err != nil {
		return "", err
	}

	L := newSandbox(v.limits)
	defer L.Close()

	callCtx, cancel := context.WithTimeout(ctx, v.limits.WallClock)
	defer cancel()
	callCtx = context.WithValue(callCtx, nsMapContextKey{}, v.nsmap)
	L.SetContext(callCtx)

	installMwLibrary(L, frame)

	chunkFn := L.NewFunctionFromProto(proto.proto)
	L.Push(chunkFn)
	if err := L.PCall(0, 1, nil); err != nil {
		return "", errors.Wrap(classify(err), "loading module "+module.Key())
	}
	modTable, ok := L.Get(-1).(*lua.LTable)
	L.Pop(1)
	if !ok {
		return "", errors.Wrapf(ErrRuntime, "module %s did not return a table", module.Key())
	}

	target := modTable.RawGetString(fn)
	if target == lua.LNil {
		return "", errors.Wrapf(ErrFunctionNotFound, "%s.%s", module.Key(), fn)
	}
	fnVal, ok := target.(*lua.LFunction)
	if !ok {
		return "", errors.Wrapf(ErrFunctionNotFound, "%s.%s is not a function", module.Key(), fn)
	}

	frameVal := newFrameTable(L, frame, bridge, callCtx)
	L.SetGlobal("__wr_frame", frameVal)

	L.Push(fnVal)
	L.Push(frameVal)
	if err := L.PCall(1, 1, nil); err != nil {
		return "", errors.Wrap(classify(err), fmt.Sprintf("invoking %s.%s", module.Key(), fn))
	}
	ret := L.Get(-1)
	L.Pop(1)

	return luaToWikitext(ret)
}

// classify maps a context-deadline-driven Lua error to ErrBudgetExceeded
// so callers can distinguish a budget cut from an ordinary script bug.
func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrBudgetExceeded
	}
	return errors.Wrap(ErrRuntime, err.Error())
}

// compiled returns the cached FunctionProto for module, compiling it
// (via the setfenv/getfenv compatibility shim, see shim.go) on a miss.
func (v *VM) compiled(ctx context.Context, module title.Title) (compiledModule, error) {
	return v.protos.GetOrLoad(ctx, module.Key(), func(ctx context.Context) (compiledModule, error) {
		src, found, err := v.fetch.FetchWikitext(ctx, module)
		if err != nil {
			return compiledModule{}, errors.Wrap(err, "fetching module source")
		}
		if !found {
			return compiledModule{}, errors.Wrap(ErrModuleNotFound, module.Key())
		}
		src = applyCompatShim(module, src)

		chunk, err := parse.Parse(strings.NewReader(src), module.Key())
		if err != nil {
			return compiledModule{}, errors.Wrap(ErrRuntime, "parsing module: "+err.Error())
		}
		proto, err := lua.Compile(chunk, module.Key())
		if err != nil {
			return compiledModule{}, errors.Wrap(ErrRuntime, "compiling module: "+err.Error())
		}
		return compiledModule{proto: proto, sourceSize: int64(len(src))}, nil
	})
}

// luaToWikitext converts an #invoke return value to a wikitext string
// per spec §4.6 point 5: scalars convert via Lua's own tostring
// semantics, table returns are rejected.
func luaToWikitext(v lua.LValue) (string, error) {
	switch v.Type() {
	case lua.LTNil:
		return "", nil
	case lua.LTTable:
		return "", ErrTableReturn
	default:
		return v.String(), nil
	}
}
