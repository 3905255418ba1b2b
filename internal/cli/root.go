// Package cli implements the entityscan command line.
//
// Usage:
//
//	entityscan analyze <file> [--chunk_size N]   # entities of one file as one JSON line
//	entityscan scan <dir>                        # one JSON line per text file below dir
//	entityscan serve                             # MCP server on stdio
//	entityscan version
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/entityscan/internal/analyzer"
	"github.com/dshills/entityscan/internal/config"
	"github.com/dshills/entityscan/internal/engine"
	"github.com/dshills/entityscan/internal/logging"
	"github.com/dshills/entityscan/internal/metrics"
	"github.com/dshills/entityscan/internal/storage"
)

// Version is set from main before Execute
var Version = "dev"

// app carries the state shared by all commands of one invocation
type app struct {
	v          *viper.Viper
	configFile string
}

// NewRootCmd builds the command tree. Every invocation gets its own viper
// instance so commands can be executed repeatedly in tests.
func NewRootCmd() *cobra.Command {
	v, err := config.NewViper("")
	if err != nil {
		// Only reading a config file can fail and none is given here
		panic(err)
	}
	a := &app{v: v}

	root := &cobra.Command{
		Use:   "entityscan",
		Short: "Find named entities in text files with line-accurate positions",
		Long: `entityscan splits a document into line-aligned chunks, runs an entity
recognition engine on each chunk and reports every entity with its line,
line-relative offsets and the surrounding lines.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if a.configFile == "" {
				return nil
			}
			a.v.SetConfigFile(a.configFile)
			if err := a.v.ReadInConfig(); err != nil {
				return fmt.Errorf("read config %s: %w", a.configFile, err)
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, toml or json)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-style", "", "log style: terminal, json, noop")
	mustBindPFlag(v, config.KeyLogLevel, flags.Lookup("log-level"))
	mustBindPFlag(v, config.KeyLogStyle, flags.Lookup("log-style"))

	root.AddCommand(
		a.newAnalyzeCmd(),
		a.newScanCmd(),
		a.newServeCmd(),
		a.newExportsCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command with ctx
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func mustBindPFlag(v *viper.Viper, key string, flag *pflag.Flag) {
	if err := v.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

// bindFlags binds the named flags of cmd to config keys. It runs when the
// command executes since several commands share keys.
func (a *app) bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for name, key := range keys {
		flag := cmd.Flags().Lookup(name)
		if flag == nil {
			return fmt.Errorf("unknown flag %q", name)
		}
		if err := a.v.BindPFlag(key, flag); err != nil {
			return err
		}
	}
	return nil
}

// addAnalysisFlags registers the flags shared by analyze, scan and serve
func addAnalysisFlags(flags *pflag.FlagSet) {
	d := config.Default()
	flags.IntP("chunk_size", "c", d.ChunkSize, "maximum characters per engine call")
	flags.Int("workers", d.Workers, "chunks processed concurrently")
	flags.String("on-engine-error", d.OnEngineError, "engine failure policy: fail or skip")
	flags.String("cross-line", d.CrossLine, "spans crossing a line end: clip or keep")
	flags.String("engine", d.Engine.Kind, "engine: regex, http or multi")
	flags.String("engine-url", "", "base URL of the recognition service")
	flags.StringSlice("labels", nil, "entity labels requested from the http engine")
	flags.String("export-db", "", "SQLite file to export results to")
}

var analysisFlagKeys = map[string]string{
	"chunk_size":      config.KeyChunkSize,
	"workers":         config.KeyWorkers,
	"on-engine-error": config.KeyOnEngineError,
	"cross-line":      config.KeyCrossLine,
	"engine":          config.KeyEngineKind,
	"engine-url":      config.KeyEngineURL,
	"labels":          config.KeyEngineLabels,
	"export-db":       config.KeyExportDB,
}

// session holds everything built from the configuration for one command
type session struct {
	cfg      *config.Config
	logger   *zap.Logger
	engine   engine.Engine
	storage  storage.Storage
	metrics  *metrics.Metrics
	analyzer *analyzer.Analyzer
}

// setup loads the configuration and builds the pipeline. The returned
// session must be closed.
func (a *app) setup(cmd *cobra.Command, withMetrics bool) (*session, error) {
	cfg, err := config.Load(a.v)
	if err != nil {
		return nil, err
	}

	rt := &session{
		cfg:    cfg,
		logger: logging.NewWithSink(cfg.LoggingConfig(), zapcore.AddSync(cmd.ErrOrStderr())),
	}

	rt.engine, err = engine.New(cfg.EngineConfig(), rt.logger.Named("engine"))
	if err != nil {
		rt.Close()
		return nil, err
	}

	if cfg.Export.DB != "" {
		var store *storage.SQLiteStorage
		store, err = storage.NewSQLiteStorage(cfg.Export.DB)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("open export db: %w", err)
		}
		rt.storage = store
	}

	if withMetrics {
		rt.metrics = metrics.New()
	}

	rt.analyzer, err = analyzer.New(rt.engine, rt.analyzerOptions())
	if err != nil {
		rt.Close()
		return nil, err
	}

	rt.logger.Debug("configuration loaded",
		zap.Int("chunk_size", cfg.ChunkSize),
		zap.Int("workers", cfg.Workers),
		zap.String("engine", rt.engine.Name()),
		zap.String("export_db", cfg.Export.DB))
	return rt, nil
}

func (rt *session) analyzerOptions() analyzer.Options {
	return analyzer.Options{
		ChunkSize: rt.cfg.ChunkSize,
		Collector: rt.cfg.CollectorConfig(),
		Storage:   rt.storage,
		Metrics:   rt.metrics,
		Logger:    rt.logger.Named("analyzer"),
	}
}

// Close releases the engine and export database and flushes the logger
func (rt *session) Close() {
	if stats, ok := engine.CacheStatsOf(rt.engine); ok {
		rt.logger.Info("engine cache",
			zap.Uint64("hits", stats.Hits),
			zap.Uint64("misses", stats.Misses),
			zap.Int("items", stats.Items))
	}
	if rt.engine != nil {
		if err := rt.engine.Close(); err != nil {
			rt.logger.Warn("closing engine", zap.Error(err))
		}
	}
	if rt.storage != nil {
		if err := rt.storage.Close(); err != nil {
			rt.logger.Warn("closing export db", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}
