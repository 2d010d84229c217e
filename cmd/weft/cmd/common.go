package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/viper"

	"github.com/weft-dev/weft/internal/adapters/store"
	"github.com/weft-dev/weft/internal/config"
	"github.com/weft-dev/weft/internal/core"
	"github.com/weft-dev/weft/internal/engine"
	"github.com/weft-dev/weft/internal/events"
	"github.com/weft-dev/weft/internal/logging"
	"github.com/weft-dev/weft/internal/xjson"
)

// errRunFailed makes the process exit non-zero after a failed run. The
// failure itself has already been printed.
var errRunFailed = errors.New("workflow failed")

// app holds what every command that touches the store needs.
type app struct {
	cfg    *config.Config
	logger *logging.Logger
	store  core.Store
	bus    *events.EventBus
	engine *engine.Engine
}

// loadConfig loads and validates the configuration, flags included.
func loadConfig() (*config.Config, error) {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// newApp opens the store and builds an engine from the configuration.
// withBus attaches an event bus for subscribers such as the SSE endpoint.
func newApp(withBus bool) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Logging())
	slog.SetDefault(logger.Logger)

	st, err := store.Open(cfg.State.Path, logger)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, logger: logger, store: st}
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMaxParallel(cfg.Engine.MaxParallel),
		engine.WithTaskTimeout(cfg.TaskTimeout()),
		engine.WithCursorDefaults(cfg.CursorDefaults()),
	}
	if withBus {
		a.bus = events.New(256)
		opts = append(opts, engine.WithEventBus(a.bus))
	}
	a.engine = engine.New(st, opts...)
	return a, nil
}

// Close stops subprocesses and releases the store.
func (a *app) Close() {
	a.engine.Shutdown()
	if a.bus != nil {
		a.bus.Close()
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing store", "error", err)
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// liveOutput prints task log lines as they arrive, prefixed by task id.
func liveOutput(out io.Writer) core.OutputCallback {
	if quiet {
		return nil
	}
	var mu sync.Mutex
	return func(taskID core.TaskID, line string) {
		mu.Lock()
		defer mu.Unlock()
		if taskID == "" {
			fmt.Fprintln(out, styles().muted.Render(line))
			return
		}
		fmt.Fprintf(out, "%s %s\n", styles().task.Render("["+string(taskID)+"]"), line)
	}
}

func outputJSON(out io.Writer, v interface{}) error {
	data, err := xjson.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
