package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/tcpfs/internal/logger"
	"github.com/marmos91/tcpfs/pkg/config"
	"github.com/marmos91/tcpfs/pkg/gc"
	"github.com/marmos91/tcpfs/pkg/metrics"
	"github.com/marmos91/tcpfs/pkg/objectstore"
	"github.com/marmos91/tcpfs/pkg/server"
	"github.com/marmos91/tcpfs/pkg/store/content"
	"github.com/marmos91/tcpfs/pkg/store/metadata"
)

func runInit(args []string) error {
	fs := newFlagSet("init", "[flags]")
	configPath := fs.String("config", "", "Path to write the config file (default: $XDG_CONFIG_HOME/tcpfs/config.yaml)")
	force := fs.Bool("force", false, "Overwrite an existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	path := *configPath
	if path == "" {
		var err error
		if path, err = config.InitConfig(*force); err != nil {
			return err
		}
	} else if err := config.InitConfigToPath(path, *force); err != nil {
		return err
	}

	fmt.Printf("Configuration written to %s\n", path)
	fmt.Println("Start the server with: tcpfs start")
	return nil
}

func runStart(ctx context.Context, args []string) error {
	fs := newFlagSet("start", "[flags]")
	configPath := fs.String("config", "", "Path to the config file (default: $XDG_CONFIG_HOME/tcpfs/config.yaml)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	fmt.Println("tcpfs - TCP binary object store")
	logger.Info("Log level: %s, format: %s, output: %s", cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)

	m := config.InitializeMetrics(cfg)

	index, store, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}

	svc := objectstore.New(index, store, objectstore.Config{
		ImplicitNamespaces: cfg.Server.ImplicitNamespacesEnabled(),
	}, m.ObjectStoreMetrics)

	collector, err := newCollector(cfg, index, store, m.GCMetrics)
	if err != nil {
		_ = svc.Close()
		return err
	}

	srv := server.New(svc, server.Config{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Collector:       collector,
		Metrics:         m.Server,
	})

	adapters, err := config.CreateAdapters(cfg, m.TCPFSMetrics)
	if err != nil {
		_ = svc.Close()
		return err
	}
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			_ = svc.Close()
			return fmt.Errorf("failed to register %s adapter: %w", a.Protocol(), err)
		}
	}

	logger.Info("Server is running. Press Ctrl+C to stop.")

	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}

	logger.Info("Server stopped gracefully")
	return nil
}

func runGC(ctx context.Context, args []string) error {
	fs := newFlagSet("gc", "[flags]")
	configPath := fs.String("config", "", "Path to the config file (default: $XDG_CONFIG_HOME/tcpfs/config.yaml)")
	dryRun := fs.Bool("dry-run", false, "Report orphans without deleting them")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		return err
	}
	cfg.GC.DryRun = cfg.GC.DryRun || *dryRun

	index, store, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = index.Close()
		_ = store.Close()
	}()

	collector, err := gc.NewCollector(index, store, gcConfig(cfg), nil)
	if err != nil {
		return err
	}

	stats, err := collector.RunNow(ctx)
	if err != nil {
		return err
	}

	fmt.Println(stats.Summary())
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Configure(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}); err != nil {
		return nil, fmt.Errorf("failed to configure logger: %w", err)
	}
	return cfg, nil
}

func openStores(ctx context.Context, cfg *config.Config) (metadata.Index, content.ContentStore, error) {
	index, err := config.CreateMetadataStore(ctx, &cfg.Metadata)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create metadata store: %w", err)
	}

	store, err := config.CreateContentStore(ctx, &cfg.Content)
	if err != nil {
		_ = index.Close()
		return nil, nil, fmt.Errorf("failed to create content store: %w", err)
	}
	return index, store, nil
}

// newCollector returns nil when gc is disabled or the store cannot be swept.
func newCollector(cfg *config.Config, index metadata.Index, store content.ContentStore, m metrics.GCMetrics) (*gc.Collector, error) {
	if !cfg.GC.IsEnabled() {
		logger.Info("Garbage collection disabled")
		return nil, nil
	}

	collector, err := gc.NewCollector(index, store, gcConfig(cfg), m)
	if err != nil {
		if _, ok := store.(content.GarbageCollectableStore); !ok {
			logger.Warn("Content store %s cannot enumerate locations; garbage collection disabled", cfg.Content.Type)
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create garbage collector: %w", err)
	}
	return collector, nil
}

func gcConfig(cfg *config.Config) gc.Config {
	return gc.Config{
		Enabled:     cfg.GC.IsEnabled(),
		Interval:    cfg.GC.Interval,
		GracePeriod: cfg.GC.GracePeriod,
		BatchSize:   cfg.GC.BatchSize,
		RunTimeout:  cfg.GC.RunTimeout,
		DryRun:      cfg.GC.DryRun,
	}
}
