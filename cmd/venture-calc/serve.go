package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iwvelando/venture-calc/internal/cache"
	"github.com/iwvelando/venture-calc/internal/server"
	"github.com/iwvelando/venture-calc/internal/store"
	"github.com/iwvelando/venture-calc/internal/worksheet"
	"github.com/iwvelando/venture-calc/pkg/calc"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calculation and worksheet HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if address != "" {
				opts.conf.Server.Address = address
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "listen address override, e.g. :8080")
	return cmd
}

// runServer serves until ctx is cancelled, then drains in-flight requests.
func runServer(ctx context.Context, opts *rootOptions) error {
	logger := opts.logger
	conf := opts.conf
	if conf.Server.Version == "" || conf.Server.Version == "dev" {
		conf.Server.Version = Version
	}

	serverOpts, err := server.NewOptions(conf.Server)
	if err != nil {
		return err
	}

	db, err := store.Open(ctx, conf.Store.Path, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	resultCache, err := cache.New(conf.Cache, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.Close(resultCache); err != nil {
			logger.Warn("failed to close cache", zap.String("op", "main.runServer"), zap.Error(err))
		}
	}()

	svc := worksheet.NewService(db, calc.NewEngine(logger), resultCache, logger)
	handler := server.NewHandler(svc, logger, serverOpts)
	defer handler.Close()

	httpServer := &http.Server{
		Addr:              serverOpts.Address,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server",
			zap.String("op", "main.runServer"),
			zap.String("address", serverOpts.Address),
			zap.String("store", conf.Store.Path),
			zap.String("cache", conf.Cache.Backend),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server", zap.String("op", "main.runServer"))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
