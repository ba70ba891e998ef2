package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/svcbackup/internal/config"
	"github.com/alfredjeanlab/svcbackup/internal/events"
	"github.com/alfredjeanlab/svcbackup/internal/export"
	"github.com/alfredjeanlab/svcbackup/internal/hooks"
	"github.com/alfredjeanlab/svcbackup/internal/metrics"
	"github.com/alfredjeanlab/svcbackup/internal/server"
	"github.com/alfredjeanlab/svcbackup/internal/service"
	"github.com/alfredjeanlab/svcbackup/internal/store/postgres"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Start the HTTP and gRPC servers",
	GroupID:           "system",
	PersistentPreRunE: localCommand,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
		slog.SetDefault(logger)

		cfg, err := config.Load()
		if err != nil {
			return err
		}

		// Connect to Postgres and apply pending migrations.
		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}

		// Lifecycle events go to NATS (when configured) and the SSE stream.
		stream := server.NewStream()
		publisher := events.MultiPublisher{stream}
		if cfg.NATSURL != "" {
			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				store.Close()
				return err
			}
			publisher = append(publisher, pub)
			logger.Info("events enabled", "nats_url", cfg.NATSURL)
		} else {
			logger.Info("events disabled (SVCB_NATS_URL not set)")
		}

		collector := metrics.NewCollector()
		svc := service.New(store, publisher,
			service.WithMigrator(store),
			service.WithLogger(logger),
			service.WithMetrics(collector),
			service.WithPluginDefaults(cfg.Plugins),
		)
		logger.Info("plugins registered", "plugins", svc.Plugins())

		srv := server.New(svc, store, metrics.NewRegistry(collector), stream)
		grpcServer := server.NewGRPCServer(srv, cfg.AuthToken)

		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			publisher.Close()
			store.Close()
			return err
		}

		go func() {
			logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
			if err := grpcServer.Serve(lis); err != nil {
				logger.Error("gRPC server error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("HTTP server error", "err", err)
			}
		}()

		// Start the off-site export when a bucket is configured.
		var scheduler *export.Scheduler
		if cfg.ExportInterval > 0 && cfg.ExportS3Bucket != "" {
			dest, err := export.NewS3Destination(context.Background(),
				cfg.ExportS3Bucket,
				cfg.ExportS3Key,
				cfg.ExportS3Region,
				cfg.ExportS3Endpoint,
			)
			if err != nil {
				logger.Error("failed to create S3 export destination", "err", err)
			} else {
				scheduler = export.NewScheduler(store, []export.Destination{dest}, cfg.ExportInterval, logger)
				scheduler.Start()
				logger.Info("export scheduler started",
					"interval", cfg.ExportInterval, "bucket", cfg.ExportS3Bucket, "key", cfg.ExportS3Key)
			}
		}

		// Consume order events from the order engine if NATS is available.
		var hooksCancel context.CancelFunc
		if cfg.NATSURL != "" {
			hooksSub, err := events.NewNATSSubscriber(cfg.NATSURL)
			if err != nil {
				logger.Error("failed to create order event subscriber", "err", err)
			} else {
				handler := hooks.NewHandler(svc, logger)
				var hooksCtx context.Context
				hooksCtx, hooksCancel = context.WithCancel(context.Background())
				go func() {
					if err := handler.StartSubscriber(hooksCtx, hooksSub); err != nil {
						logger.Error("order event subscriber error", "err", err)
					}
					hooksSub.Close()
				}()
			}
		}

		logger.Info("svcbackup server started",
			"grpc_addr", cfg.GRPCAddr,
			"http_addr", cfg.HTTPAddr,
		)

		// Wait for SIGINT or SIGTERM.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)

		if hooksCancel != nil {
			hooksCancel()
			logger.Info("order event subscriber stopped")
		}

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("export scheduler stopped")
		}

		grpcServer.GracefulStop()
		logger.Info("gRPC server stopped")

		// SSE clients hold requests open; Shutdown gives up on them after the
		// timeout.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("HTTP server stopped")

		if err := publisher.Close(); err != nil {
			logger.Error("error closing publisher", "err", err)
		}
		if err := store.Close(); err != nil {
			logger.Error("error closing store", "err", err)
		}

		logger.Info("shutdown complete")
		return nil
	},
}
