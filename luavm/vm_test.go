package luavm

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/kepler-wiki/wikireader/template"
	"github.com/kepler-wiki/wikireader/title"
	"github.com/kepler-wiki/wikireader/wiki"
	"github.com/kepler-wiki/wikireader/wikitext"
)

type memFetcher struct {
	pages map[string]string
}

func (f *memFetcher) FetchWikitext(ctx context.Context, t title.Title) (string, bool, error) {
	src, ok := f.pages[t.Key()]
	return src, ok, nil
}

func (f *memFetcher) Exists(ctx context.Context, t title.Title) bool {
	_, ok := f.pages[t.Key()]
	return ok
}

type memCache struct{}

func (memCache) GetOrParse(ctx context.Context, t title.Title, mode wikitext.Mode, src func() (string, error)) (*wikitext.Base, error) {
	s, err := src()
	if err != nil {
		return nil, err
	}
	return wikitext.Parse(s, mode), nil
}

func newTestExpander(pages map[string]string, vm *VM) *template.Expander {
	nsmap := title.Default
	fetch := &memFetcher{pages: pages}
	rc := wiki.NewRenderContext(title.Normalize("Test Page", nsmap), time.Date(2024, 3, 15, 12, 30, 0, 0, time.UTC), func(t title.Title) bool { return fetch.Exists(context.Background(), t) })
	return template.NewExpander(rc, fetch, memCache{}, vm, nsmap, template.DefaultLimits)
}

func renderPlain(t *testing.T, e *template.Expander, src string) string {
	t.Helper()
	nodes := e.ExpandPage(context.Background(), src)
	return template.RenderPlainText(nodes)
}

func TestInvokeBasicRoundTrip(t *testing.T) {
	nsmap := title.Default
	fetch := &memFetcher{pages: map[string]string{
		"Module:Greeter": `
local p = {}
function p.hi(frame)
	return "hi " .. frame.args[1]
end
return p
`,
	}}
	vm := New(fetch, nsmap, 1<<20, DefaultLimits)
	e := newTestExpander(fetch.pages, vm)

	got := renderPlain(t, e, "{{#invoke:Greeter|hi|world}}")
	if got != "hi world" {
		t.Fatalf("got %q", got)
	}
}

func TestInvokeNamedArgs(t *testing.T) {
	nsmap := title.Default
	fetch := &memFetcher{pages: map[string]string{
		"Module:Greeter": `
local p = {}
function p.hi(frame)
	return "hi " .. frame.args.name
end
return p
`,
	}}
	vm := New(fetch, nsmap, 1<<20, DefaultLimits)
	e := newTestExpander(fetch.pages, vm)

	got := renderPlain(t, e, "{{#invoke:Greeter|hi|name=Ada}}")
	if got != "hi Ada" {
		t.Fatalf("got %q", got)
	}
}

func TestInvokeModuleNotFound(t *testing.T) {
	nsmap := title.Default
	fetch := &memFetcher{pages: map[string]string{}}
	vm := New(fetch, nsmap, 1<<20, DefaultLimits)

	_, err := vm.Invoke(context.Background(), title.Normalize("Module:Missing", nsmap), "f", &template.Frame{Named: map[string][]template.Node{}}, nil)
	if err == nil {
		t.Fatal("expected error for missing module")
	}
}

func TestInvokeFunctionNotFound(t *testing.T) {
	nsmap := title.Default
	fetch := &memFetcher{pages: map[string]string{
		"Module:M": "local p = {}\nreturn p\n",
	}}
	vm := New(fetch, nsmap, 1<<20, DefaultLimits)

	_, err := vm.Invoke(context.Background(), title.Normalize("Module:M", nsmap), "missing", &template.Frame{Named: map[string][]template.Node{}}, nil)
	if err == nil {
		t.Fatal("expected error for missing function")
	}
}

func TestInvokeTableReturnRejected(t *testing.T) {
	nsmap := title.Default
	fetch := &memFetcher{pages: map[string]string{
		"Module:M": "local p = {}\nfunction p.f(frame) return {1,2,3} end\nreturn p\n",
	}}
	vm := New(fetch, nsmap, 1<<20, DefaultLimits)

	_, err := vm.Invoke(context.Background(), title.Normalize("Module:M", nsmap), "f", &template.Frame{Named: map[string][]template.Node{}}, nil)
	if err == nil {
		t.Fatal("expected error for table return")
	}
}

func TestInvokeBudgetExceeded(t *testing.T) {
	nsmap := title.Default
	fetch := &memFetcher{pages: map[string]string{
		"Module:M": "local p = {}\nfunction p.f(frame) while true do end end\nreturn p\n",
	}}
	limits := DefaultLimits
	limits.WallClock = 20 * time.Millisecond
	vm := New(fetch, nsmap, 1<<20, limits)

	_, err := vm.Invoke(context.Background(), title.Normalize("Module:M", nsmap), "f", &template.Frame{Named: map[string][]template.Node{}}, nil)
	if err == nil {
		t.Fatal("expected budget-exceeded error")
	}
}

func TestSandboxHasNoIOOrLoad(t *testing.T) {
	nsmap := title.Default
	fetch := &memFetcher{pages: map[string]string{
		"Module:M": `
local p = {}
function p.f(frame)
	if io ~= nil then return "io leaked" end
	if load ~= nil then return "load leaked" end
	if require ~= nil then return "require leaked" end
	if debug ~= nil then return "debug leaked" end
	return "clean"
end
return p
`,
	}}
	vm := New(fetch, nsmap, 1<<20, DefaultLimits)

	out, err := vm.Invoke(context.Background(), title.Normalize("Module:M", nsmap), "f", &template.Frame{Named: map[string][]template.Node{}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "clean" {
		t.Fatalf("sandbox leaked a library: %s", out)
	}
}

func TestMwTextTrim(t *testing.T) {
	nsmap := title.Default
	fetch := &memFetcher{pages: map[string]string{
		"Module:M": `
local p = {}
function p.f(frame)
	return mw.text.trim("  padded  ")
end
return p
`,
	}}
	vm := New(fetch, nsmap, 1<<20, DefaultLimits)

	out, err := vm.Invoke(context.Background(), title.Normalize("Module:M", nsmap), "f", &template.Frame{Named: map[string][]template.Node{}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "padded" {
		t.Fatalf("got %q", out)
	}
}

func TestMwTitleGetCurrentTitle(t *testing.T) {
	nsmap := title.Default
	fetch := &memFetcher{pages: map[string]string{
		"Module:M": `
local p = {}
function p.f(frame)
	return mw.title.getCurrentTitle().text
end
return p
`,
	}}
	vm := New(fetch, nsmap, 1<<20, DefaultLimits)

	invoking := title.Normalize("Some Page", nsmap)
	frame := &template.Frame{InvokingTitle: invoking, Named: map[string][]template.Node{}}
	out, err := vm.Invoke(context.Background(), title.Normalize("Module:M", nsmap), "f", frame, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != invoking.Text {
		t.Fatalf("got %q, want %q", out, invoking.Text)
	}
}

func TestInvokeCompiledModuleCacheReused(t *testing.T) {
	nsmap := title.Default
	calls := 0
	fetch := &countingFetcher{
		memFetcher: memFetcher{pages: map[string]string{
			"Module:M": "local p = {}\nfunction p.f(frame) return \"ok\" end\nreturn p\n",
		}},
		onFetch: func() { calls++ },
	}
	vm := New(fetch, nsmap, 1<<20, DefaultLimits)
	mod := title.Normalize("Module:M", nsmap)

	for i := 0; i < 3; i++ {
		if _, err := vm.Invoke(context.Background(), mod, "f", &template.Frame{Named: map[string][]template.Node{}}, nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected source to be fetched once (cached after), got %d fetches", calls)
	}
}

type countingFetcher struct {
	memFetcher
	onFetch func()
}

func (f *countingFetcher) FetchWikitext(ctx context.Context, t title.Title) (string, bool, error) {
	f.onFetch()
	return f.memFetcher.FetchWikitext(ctx, t)
}

func TestMwUstringLen(t *testing.T) {
	nsmap := title.Default
	fetch := &memFetcher{pages: map[string]string{
		"Module:M": `
local p = {}
function p.f(frame)
	return tostring(mw.ustring.len("héllo"))
end
return p
`,
	}}
	vm := New(fetch, nsmap, 1<<20, DefaultLimits)

	out, err := vm.Invoke(context.Background(), title.Normalize("Module:M", nsmap), "f", &template.Frame{Named: map[string][]template.Node{}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "5" {
		t.Fatalf("got %q", out)
	}
}

func TestExpanderInvokeExpandTemplateCall(t *testing.T) {
	nsmap := title.Default
	fetch := &memFetcher{pages: map[string]string{
		"Template:Wrapped": "wrapped-text",
		"Module:M": `
local p = {}
function p.f(frame)
	return frame:expandTemplate{title="Wrapped"}
end
return p
`,
	}}
	vm := New(fetch, nsmap, 1<<20, DefaultLimits)
	e := newTestExpander(fetch.pages, vm)

	got := renderPlain(t, e, "{{#invoke:M|f}}")
	if !strings.Contains(got, "wrapped-text") {
		t.Fatalf("got %q", got)
	}
}
