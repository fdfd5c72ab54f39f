package luavm

import "github.com/kepler-wiki/wikireader/title"

// applyCompatShim intercepts the known modules whose MediaWiki source
// depends on PUC Lua 5.4's removal of setfenv/getfenv (they call
// mw.environment-style polyfills that branch on _VERSION). gopher-lua
// implements Lua 5.1 natively and already carries setfenv/getfenv, so
// no source rewriting is required today; this stays a real interception
// point rather than being folded into compiled() so a future VM swap
// (spec §9) has one place to patch per-module source before compiling.
func applyCompatShim(module title.Title, src string) string {
	return src
}
