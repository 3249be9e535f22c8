package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/trilochan-behera-dev/database-query/loader"
	"github.com/trilochan-behera-dev/database-query/northwind"
	"github.com/trilochan-behera-dev/database-query/table"
)

// config is resolved from flags, DBQ_* environment variables and an
// optional dbq.yaml, in that order of precedence.
type config struct {
	Data      string `mapstructure:"data"`
	SQLite    string `mapstructure:"sqlite"`
	Format    string `mapstructure:"format"`
	LogLevel  string `mapstructure:"log-level"`
	LogFormat string `mapstructure:"log-format"`
}

func loadConfig(flags *pflag.FlagSet) (*config, error) {
	v := viper.New()
	v.SetEnvPrefix("DBQ")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flags); err != nil {
		return nil, err
	}

	path, _ := flags.GetString("config")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dbq")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	switch cfg.Format {
	case "table", "json", "csv":
	default:
		return nil, fmt.Errorf("unknown output format %q (want table, json or csv)", cfg.Format)
	}
	return &cfg, nil
}

func newLogger(cfg *config, w io.Writer) *slog.Logger {
	var level slog.Level
	switch strings.ToUpper(cfg.LogLevel) {
	case "DEBUG":
		level = slog.LevelDebug
	case "INFO":
		level = slog.LevelInfo
	case "ERROR":
		level = slog.LevelError
	default:
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// openSource loads the dataset from the SQLite database when one is
// configured, otherwise from the data directory.
func openSource(ctx context.Context, cfg *config, logger *slog.Logger) (table.Source, func() error, error) {
	if cfg.SQLite != "" {
		src, err := loader.OpenSQLite(ctx, cfg.SQLite, northwind.Catalog())
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened database", "sqlite", cfg.SQLite)
		return src, src.Close, nil
	}
	store, err := loader.LoadDir(ctx, cfg.Data, northwind.Catalog())
	if err != nil {
		return nil, nil, err
	}
	logger.Info("loaded tables", "dir", cfg.Data, "tables", len(store.Names()))
	return store, func() error { return nil }, nil
}
