package server

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kepler-wiki/wikireader/dump"
	"github.com/kepler-wiki/wikireader/internal/config"
	"github.com/kepler-wiki/wikireader/internal/embedded"
	"github.com/kepler-wiki/wikireader/internal/pipeline"
	"github.com/kepler-wiki/wikireader/internal/renderqueue"
	"github.com/kepler-wiki/wikireader/luavm"
	"github.com/kepler-wiki/wikireader/special"
	"github.com/kepler-wiki/wikireader/template"
	"github.com/kepler-wiki/wikireader/templater"
	"github.com/kepler-wiki/wikireader/title"
	"github.com/kepler-wiki/wikireader/wiki"
)

// Setup loads configuration, opens the dump, and assembles the full
// rendering pipeline (C1-C8) plus the HTTP-facing App. Exit code 3 on
// index/dump open failure, per spec §6.
func Setup() *App {
	cfg := config.Setup()

	nsmap := title.Default

	store, err := dump.Open(cfg.IndexPath, cfg.ArchivePath, nsmap, cfg.BlockCacheBytes)
	if err != nil {
		slog.Error("failed to open dump", "error", err, "index", cfg.IndexPath, "archive", cfg.ArchivePath)
		os.Exit(3)
	}
	slog.Info("dump index loaded",
		"titles", store.Index.Len(),
		"block_cache", humanize.IBytes(uint64(cfg.BlockCacheBytes)),
		"page_cache", humanize.IBytes(uint64(cfg.PageCacheBytes)),
		"module_cache", humanize.IBytes(uint64(cfg.ModuleCacheBytes)),
	)

	limits := template.Limits{
		MaxDepth:        cfg.MaxExpansionDepth,
		MaxNodeBudget:   cfg.MaxNodeBudget,
		MaxIncludeBytes: cfg.MaxIncludeBytes,
	}

	svc := pipeline.New(store, nsmap, nil, cfg.PageCacheBytes, limits)

	// The Lua VM (C6) needs the same Fetcher boundary the expander uses
	// to resolve Module: pages; svc itself implements template.Fetcher,
	// so it is its own Invoker's fetcher too.
	vm := luavm.New(svc, nsmap, cfg.ModuleCacheBytes, luavmLimits(cfg))
	svc.Invoke = vm

	tpl, err := templater.New(embedded.Templates(), "templates/*.html")
	if err != nil {
		slog.Error("failed to load page-chrome templates", "error", err)
		os.Exit(3)
	}

	specialPages := special.NewRegistry()
	specialPages.Register("Random", special.NewRandomPage(svc))

	// The render queue gives concurrent requests for the same title
	// single-flight coalescing at the whole-article level (on top of
	// the block/page/module caches C8 already coalesces internally),
	// and spreads work across a worker pool per spec §5's "pool of
	// worker tasks serves HTTP requests in parallel".
	workers := runtime.NumCPU()
	queue := renderqueue.New(workers, func(rawTitle string) (string, error) {
		result, err := svc.RenderArticle(context.Background(), rawTitle)
		if err != nil {
			return "", err
		}
		return result.HTML, nil
	})
	slog.Info("render queue initialized", "workers", workers)

	return &App{
		Service:      svc,
		Templater:    tpl,
		SpecialPages: specialPages,
		Config:       cfg,
		Queue:        queue,
	}
}

func luavmLimits(cfg *wiki.Config) luavm.Limits {
	lim := luavm.DefaultLimits
	if cfg.LuaInstructionBudget > 0 {
		lim.InstructionBudget = cfg.LuaInstructionBudget
	}
	if cfg.LuaWallClockMillis > 0 {
		lim.WallClock = time.Duration(cfg.LuaWallClockMillis) * time.Millisecond
	}
	return lim
}
