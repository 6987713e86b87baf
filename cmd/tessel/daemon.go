package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/1broseidon/tessel/internal/config"
	"github.com/1broseidon/tessel/internal/daemon"
	"github.com/1broseidon/tessel/internal/hotkeys"
	"github.com/1broseidon/tessel/internal/ipc"
	"github.com/1broseidon/tessel/internal/layout"
	"github.com/1broseidon/tessel/internal/metrics"
	"github.com/1broseidon/tessel/internal/platform"
	"github.com/1broseidon/tessel/internal/rules"
	"github.com/1broseidon/tessel/internal/store"
	"github.com/1broseidon/tessel/internal/tiling"
)

// daemonRuntime holds the components a configuration reload touches.
type daemonRuntime struct {
	configPath string
	logger     *slog.Logger
	level      *slog.LevelVar
	registry   *layout.Registry
	classifier *rules.Classifier
	manager    *tiling.Manager
	hotkeys    *hotkeys.Handler
	poller     *daemon.Poller
	metrics    *metrics.Metrics

	mu sync.Mutex
}

// apply pushes a loaded configuration into every component. Scripts load
// before the options so a newly configured custom layout is known when the
// cycle changes.
func (d *daemonRuntime) apply(res *config.LoadResult) {
	d.mu.Lock()
	defer d.mu.Unlock()

	cfg := res.Config
	d.level.Set(cfg.Level())
	if err := loadScripts(d.registry, cfg, d.configPath); err != nil {
		d.logger.Warn("custom layouts failed to load", "error", err)
	}
	d.classifier.Update(cfg.FloatApps, cfg.FloatTitles)
	d.manager.SetOptions(cfg.TilingOptions())
	if d.hotkeys != nil {
		if err := d.hotkeys.Bind(cfg.Hotkeys); err != nil {
			d.logger.Warn("some hotkeys could not be bound", "error", err)
		}
	}
	d.poller.SetInterval(cfg.PollInterval())
}

// reload reads the configuration again. An invalid file leaves the running
// configuration in place.
func (d *daemonRuntime) reload() error {
	res, err := config.LoadFromPath(d.configPath)
	d.metrics.ConfigReloaded(err)
	if err != nil {
		d.logger.Warn("config reload failed, keeping previous configuration", "error", err)
		return err
	}
	d.apply(res)
	d.logger.Info("config reloaded", "path", d.configPath)
	return nil
}

func (d *daemonRuntime) watched(res *config.LoadResult) {
	d.metrics.ConfigReloaded(nil)
	d.apply(res)
}

func runDaemon(args []string) int {
	fs := flag.NewFlagSet("daemon", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: tessel daemon [--config PATH]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Run the tiling daemon in the foreground.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	configPath := fs.String("config", "", "Config file path (default: $TESSEL_CONFIG or ~/.config/tessel/config.yaml)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(os.Stderr, "daemon takes no arguments")
		fs.Usage()
		return 2
	}

	res, path, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg := res.Config

	level := new(slog.LevelVar)
	level.Set(cfg.Level())
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "path", path, "layouts", cfg.Layouts)

	backend, err := platform.NewLinuxBackendFromDisplay(cfg.Display)
	if err != nil {
		log.Fatalf("Failed to connect to display: %v", err)
	}
	defer backend.Disconnect()

	registry := layout.NewRegistry(logger)
	if err := loadScripts(registry, cfg, path); err != nil {
		logger.Warn("custom layouts failed to load", "error", err)
	}

	storePath, err := store.DefaultPath()
	if err != nil {
		log.Fatalf("Failed to resolve state directory: %v", err)
	}
	st, err := store.Open(storePath)
	if err != nil {
		if !errors.Is(err, store.ErrCorrupt) {
			log.Fatalf("Failed to open layout store: %v", err)
		}
		logger.Warn("layout store is corrupt, starting empty", "path", storePath, "error", err)
	}

	m := metrics.New()
	classifier := rules.NewClassifier(cfg.FloatApps, cfg.FloatTitles)
	driver := tiling.NewBackendDriver(backend)
	manager := tiling.NewManager(tiling.ManagerConfig{
		Options:  cfg.TilingOptions(),
		Registry: registry,
		Applier:  tiling.NewApplier(driver, logger.With("component", "applier")),
		Focuser:  driver,
		Store:    st,
		Floater:  classifier,
		Recorder: m,
		Logger:   logger.With("component", "tiling"),
	})
	defer manager.Close()

	poller := daemon.NewPoller(daemon.PollerConfig{
		Interval: cfg.PollInterval(),
		Logger:   logger.With("component", "poller"),
	}, backend, manager)

	hk := hotkeys.NewHandler(backend, manager, logger.With("component", "hotkeys"))
	if err := hk.Bind(cfg.Hotkeys); err != nil {
		logger.Warn("some hotkeys could not be bound", "error", err)
	}

	rt := &daemonRuntime{
		configPath: path,
		logger:     logger,
		level:      level,
		registry:   registry,
		classifier: classifier,
		manager:    manager,
		hotkeys:    hk,
		poller:     poller,
		metrics:    m,
	}

	ipcServer, err := ipc.NewServer(ipc.ServerConfig{
		Controller: manager,
		Reload:     rt.reload,
		Logger:     logger.With("component", "ipc"),
	})
	if err != nil {
		log.Fatalf("Failed to create IPC server: %v", err)
	}
	if err := ipcServer.Start(); err != nil {
		log.Fatalf("Failed to start IPC server: %v", err)
	}
	defer ipcServer.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go poller.Run(ctx)

	watcher := config.NewWatcher(config.WatcherConfig{
		Path:     path,
		Files:    res.Files,
		OnChange: rt.watched,
		Logger:   logger.With("component", "config"),
	})
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Warn("config watcher stopped", "error", err)
		}
	}()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := m.Serve(ctx, cfg.MetricsAddr, logger); err != nil {
				logger.Error("metrics server failed", "addr", cfg.MetricsAddr, "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		for sig := range sigCh {
			switch sig {
			case syscall.SIGHUP:
				logger.Info("received SIGHUP, reloading config")
				_ = rt.reload()
			default:
				logger.Info("shutting down tessel daemon")
				cancel()
				backend.Quit()
				return
			}
		}
	}()

	logger.Info("tessel daemon started", "socket", ipcServer.SocketPath())
	backend.EventLoop()
	return 0
}
