package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zeebo/errs"
	"go.uber.org/zap"

	"github.com/adfharrison1/go-odm/pkg/models"
	"github.com/adfharrison1/go-odm/pkg/odm"
	"github.com/adfharrison1/go-odm/pkg/server"
)

// shutdownTimeout bounds how long outstanding requests may take once a
// shutdown signal arrives.
const shutdownTimeout = 30 * time.Second

func cmdServe(cmd *cobra.Command, args []string) (err error) {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := server.OpenDatabase(ctx, cfg, logger)
	if err != nil {
		return Error.Wrap(err)
	}

	registry := odm.NewRegistry(
		odm.WithLogger(logger.Named("odm")),
		odm.WithAutoIndex(cfg.AutoIndex),
	)
	catalog, err := models.Register(registry)
	if err != nil {
		_ = db.Close(context.Background())
		return Error.Wrap(err)
	}
	if err := registry.Connect(ctx, db); err != nil {
		_ = db.Close(context.Background())
		return Error.Wrap(err)
	}
	defer func() {
		// Closing the memory database writes its final snapshot
		if cerr := registry.Close(context.Background()); cerr != nil {
			logger.Error("closing database failed", zap.Error(cerr))
			err = errs.Combine(err, Error.Wrap(cerr))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.NewServer(catalog, logger.Named("http")).Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting go-odm server", zap.String("addr", cfg.Addr), zap.String("database", db.Name()))
		serveErr <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return Error.Wrap(err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return Error.New("server forced to shutdown: %v", err)
	}
	logger.Info("server exited")
	return nil
}
