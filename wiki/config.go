package wiki

// Config holds the file-based configuration for wikireader: the dump
// locations, server listen settings, cache budgets, and expansion
// limits, loaded from config.yaml by internal/config.
type Config struct {
	IndexPath   string `yaml:"index_path"`
	ArchivePath string `yaml:"archive_path"`
	Host        string `yaml:"host"`
	LogFormat   string `yaml:"log_format"`
	LogLevel    string `yaml:"log_level"`

	BlockCacheBytes  int64 `yaml:"block_cache_bytes"`
	PageCacheBytes   int64 `yaml:"page_cache_bytes"`
	ModuleCacheBytes int64 `yaml:"module_cache_bytes"`

	MaxExpansionDepth int `yaml:"max_expansion_depth"`
	MaxNodeBudget     int `yaml:"max_node_budget"`
	MaxIncludeBytes   int64 `yaml:"max_include_bytes"`

	LuaInstructionBudget int   `yaml:"lua_instruction_budget"`
	LuaWallClockMillis   int64 `yaml:"lua_wall_clock_millis"`
}
