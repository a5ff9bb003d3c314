// Package scenario implements the scenario command: it loads a Lua playtest
// script and runs it against a locally assembled stunt engine.
package scenario

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"time"

	"github.com/louisbranch/improv.engine/internal/app"
	"github.com/louisbranch/improv.engine/internal/platform/config"
	"github.com/louisbranch/improv.engine/internal/platform/otel"
	"github.com/louisbranch/improv.engine/internal/tools/scenario"
)

const (
	serviceName         = "scenario"
	otelShutdownTimeout = 5 * time.Second
)

// Config holds scenario command configuration. The engine's own settings
// (system, pool, dice seed) come from the IMPROV_ENGINE_* environment.
type Config struct {
	Scenario string `env:"IMPROV_ENGINE_SCENARIO_FILE"`
	Verbose  bool   `env:"IMPROV_ENGINE_SCENARIO_VERBOSE"`
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := config.ParseEnv(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Scenario, "scenario", cfg.Scenario, "path to scenario lua file")
	fs.BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable verbose logging")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes the scenario command. Tracing is set up around the run so the
// pipeline's spans export when an OTLP endpoint is configured.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	if cfg.Scenario == "" {
		return errors.New("scenario path is required")
	}

	var engineCfg app.Config
	if err := config.ParseEnv(&engineCfg); err != nil {
		return err
	}

	level := slog.LevelWarn
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(errOut, &slog.HandlerOptions{Level: level}))

	shutdown, err := otel.Setup(ctx, serviceName)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			logger.Warn("otel shutdown", "error", err)
		}
	}()

	script, err := scenario.LoadFile(cfg.Scenario)
	if err != nil {
		return err
	}
	return scenario.Run(ctx, script, engineCfg, out, logger)
}
