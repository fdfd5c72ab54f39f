// Package config loads wikireader's file-based configuration: dump
// locations, server listen settings, and the cache/expansion budgets
// from SPEC_FULL §2.2, using the same viper + yaml.v3 layering the
// teacher uses for its own config.yaml.
package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kepler-wiki/wikireader/internal/logger"
	"github.com/kepler-wiki/wikireader/wiki"
)

const configFilename = "config.yaml"

// Setup loads config.yaml (writing a default one on first run), and
// initializes the process-wide logger from its log_format/log_level
// keys before returning the parsed *wiki.Config.
func Setup() *wiki.Config {
	viper.SetDefault("index_path", "index.txt")
	viper.SetDefault("archive_path", "database.xml.bz2")
	viper.SetDefault("host", "localhost:3000")
	viper.SetDefault("log_format", "pretty")
	viper.SetDefault("log_level", "info")

	viper.SetDefault("block_cache_bytes", int64(256<<20))
	viper.SetDefault("page_cache_bytes", int64(64<<20))
	viper.SetDefault("module_cache_bytes", int64(32<<20))

	viper.SetDefault("max_expansion_depth", 40)
	viper.SetDefault("max_node_budget", 200_000)
	viper.SetDefault("max_include_bytes", int64(8<<20))

	viper.SetDefault("lua_instruction_budget", 10_000_000)
	viper.SetDefault("lua_wall_clock_millis", int64(200))

	viper.SetConfigFile(configFilename)
	viper.AddConfigPath(".")
	err := viper.ReadInConfig()

	createDefaultConfigFile := false
	if err != nil {
		if strings.Contains(err.Error(), "no such file or directory") {
			createDefaultConfigFile = true
		} else {
			slog.Error("failed to read config", "error", err)
			os.Exit(2)
		}
	}

	// WIKIREADER_LOG overrides config.yaml's log_level with a
	// RUST_LOG-style per-package directive string, per spec §6.
	filter := os.Getenv("WIKIREADER_LOG")
	if filter == "" {
		filter = viper.GetString("log_level")
	}
	logger.Init(logger.ParseFormat(viper.GetString("log_format")), filter)

	cfg := &wiki.Config{
		IndexPath:   viper.GetString("index_path"),
		ArchivePath: viper.GetString("archive_path"),
		Host:        viper.GetString("host"),
		LogFormat:   viper.GetString("log_format"),
		LogLevel:    viper.GetString("log_level"),

		BlockCacheBytes:  viper.GetInt64("block_cache_bytes"),
		PageCacheBytes:   viper.GetInt64("page_cache_bytes"),
		ModuleCacheBytes: viper.GetInt64("module_cache_bytes"),

		MaxExpansionDepth: viper.GetInt("max_expansion_depth"),
		MaxNodeBudget:     viper.GetInt("max_node_budget"),
		MaxIncludeBytes:   viper.GetInt64("max_include_bytes"),

		LuaInstructionBudget: viper.GetInt("lua_instruction_budget"),
		LuaWallClockMillis:   viper.GetInt64("lua_wall_clock_millis"),
	}

	if createDefaultConfigFile {
		slog.Info("config not found, writing defaults", "file", configFilename)
		f, err := os.Create(configFilename)
		if err != nil {
			slog.Error("failed to create config file", "error", err)
			os.Exit(2)
		}
		defer f.Close()
		if err := yaml.NewEncoder(f).Encode(cfg); err != nil {
			slog.Error("failed to write config file", "error", err)
			os.Exit(2)
		}
	}

	return cfg
}
