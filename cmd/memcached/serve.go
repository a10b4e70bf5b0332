package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pior/memcached"
	"github.com/pior/memcached/cache"
	"github.com/pior/memcached/config"
	"github.com/pior/memcached/internal/logging"
	"github.com/pior/memcached/metrics"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var (
		configPath string
		flagCfg    = config.Default()
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the cache server",
		Long:  "Run the cache server until SIGINT or SIGTERM",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags(), flagCfg)
			if err != nil {
				return err
			}

			if err := logging.Init(os.Stderr, cfg.LogFormat, cfg.LogLevel); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML configuration file")
	bindFlags(cmd.Flags(), flagCfg)

	return cmd
}

// run serves until ctx is done or a listener fails.
func run(ctx context.Context, cfg *config.Config) error {
	logger := logging.Op()

	cacheCfg := cfg.CacheConfig()
	cacheCfg.Logger = logger
	c := cache.New(cacheCfg)
	defer c.Close()

	processorCfg, err := cfg.ProcessorConfig()
	if err != nil {
		return err
	}
	processor := memcached.NewProcessor(c, processorCfg)

	serverCfg := cfg.ServerConfig()
	serverCfg.Logger = logger
	server := memcached.NewServer(processor, serverCfg)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.ListenAndServe(cfg.Addr); !errors.Is(err, memcached.ErrServerClosed) {
			return err
		}
		return nil
	})

	if cfg.MetricsAddr != "" {
		exporter := metrics.NewExporter(metrics.Sources{
			Cache:     c.Stats,
			Processor: processor.Stats,
			Server:    server.Stats,
		})
		g.Go(func() error {
			logger.Info("metrics listening", "addr", cfg.MetricsAddr)
			if err := exporter.ListenAndServe(gctx, cfg.MetricsAddr); err != nil {
				return fmt.Errorf("metrics: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	logger.Info("server stopped", "items", c.Len())
	return err
}
