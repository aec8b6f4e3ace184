// =============================================================================
// GraphRAG 优化层命令行工具
// =============================================================================
// 缓存运维与性能报告对比工具
//
// 使用方法:
//
//	graphrag stats                          # 查看持久缓存统计
//	graphrag stats --cache-dir .cache/foo   # 指定缓存目录
//	graphrag clear --cache-dir .cache/foo   # 清空持久缓存
//	graphrag compare --baseline a.json --optimized b.json
//	graphrag version                        # 显示版本信息
// =============================================================================
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/iim0663418/graphrag/cache"
	"github.com/iim0663418/graphrag/config"
	"github.com/iim0663418/graphrag/perf"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "stats":
		runStats(os.Args[2:])
	case "clear":
		runClear(os.Args[2:])
	case "compare":
		runCompare(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// =============================================================================
// 📊 stats 命令
// =============================================================================

func runStats(args []string) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	cacheDir := fs.String("cache-dir", "", "Cache directory")
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, logger := loadConfigAndLogger(*configPath)
	defer logger.Sync()

	store := openStore(cfg, *cacheDir, logger)
	defer store.Close()

	if store.Degraded() {
		fmt.Fprintln(os.Stderr, "Warning: cache store is degraded, stats may be empty")
	}

	printJSON(store.Stats())
}

// =============================================================================
// 🧹 clear 命令
// =============================================================================

func runClear(args []string) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	cacheDir := fs.String("cache-dir", "", "Cache directory")
	configPath := fs.String("config", "", "Path to config file")
	fs.Parse(args)

	cfg, logger := loadConfigAndLogger(*configPath)
	defer logger.Sync()

	store := openStore(cfg, *cacheDir, logger)
	defer store.Close()

	if err := store.Clear(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to clear cache: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Cache cleared")
}

// =============================================================================
// ⚖️ compare 命令
// =============================================================================

func runCompare(args []string) {
	fs := flag.NewFlagSet("compare", flag.ExitOnError)
	baseline := fs.String("baseline", "", "Path to baseline metrics JSON")
	optimized := fs.String("optimized", "", "Path to optimized metrics JSON")
	fs.Parse(args)

	if *baseline == "" || *optimized == "" {
		fmt.Fprintln(os.Stderr, "Both --baseline and --optimized are required")
		os.Exit(1)
	}

	cmp := perf.NewComparison()
	if err := cmp.LoadBaseline(*baseline); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load baseline: %v\n", err)
		os.Exit(1)
	}
	if err := cmp.LoadOptimized(*optimized); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load optimized: %v\n", err)
		os.Exit(1)
	}

	result, err := cmp.Compare()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to compare: %v\n", err)
		os.Exit(1)
	}

	printJSON(result)
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("graphrag %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`graphrag - GraphRAG optimization toolkit

Usage:
  graphrag <command> [options]

Commands:
  stats     Show persistent cache statistics
  clear     Clear the persistent cache
  compare   Compare two exported metrics reports
  version   Show version information
  help      Show this help message

Options for 'stats' and 'clear':
  --cache-dir <path>   Cache directory (overrides config)
  --config <path>      Path to configuration file (YAML)

Options for 'compare':
  --baseline <path>    Baseline metrics JSON
  --optimized <path>   Optimized metrics JSON

Examples:
  graphrag stats
  graphrag stats --cache-dir .cache/graphrag
  graphrag clear --cache-dir .cache/graphrag
  graphrag compare --baseline baseline.json --optimized optimized.json
  graphrag version`)
}

// =============================================================================
// 🔧 初始化辅助
// =============================================================================

func loadConfigAndLogger(configPath string) (*config.Config, *zap.Logger) {
	loader := config.NewLoader()
	if configPath != "" {
		loader = loader.WithConfigPath(configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	return cfg, initLogger(cfg.Log)
}

func openStore(cfg *config.Config, cacheDir string, logger *zap.Logger) *cache.PersistentStore {
	storeCfg := cache.StoreConfig{
		Dir:       cfg.Cache.Dir,
		TTL:       cfg.Cache.TTL,
		MaxSizeMB: cfg.Cache.MaxSizeMB,
	}
	if cacheDir != "" {
		storeCfg.Dir = cacheDir
	}
	return cache.NewPersistentStore(storeCfg, logger)
}

func printJSON(v any) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode output: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(string(data))
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	// 构建配置
	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         "json",
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	if cfg.Format == "console" {
		zapConfig.Encoding = "console"
	}

	// 构建 logger
	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
