package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/feichai0017/format-converter/api/handlers"
	"github.com/feichai0017/format-converter/api/routes"
	"github.com/feichai0017/format-converter/config"
	"github.com/feichai0017/format-converter/internal/service/conversion"
	"github.com/feichai0017/format-converter/pkg/logger"
	"github.com/feichai0017/format-converter/pkg/worker"
)

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		panic(err)
	}

	// init logger
	log, err := logger.NewLogger(
		logger.WithLevel(cfg.Log.Level),
		logger.WithEncoding(cfg.Log.Encoding),
		logger.WithOutputPaths(cfg.Log.OutputPaths),
		logger.WithDevelopment(cfg.Log.Development),
	)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	// 上传目录不存在时创建
	if err := os.MkdirAll(cfg.Storage.UploadDir, 0700); err != nil {
		log.Fatal("Failed to create upload directory",
			logger.String("dir", cfg.Storage.UploadDir),
			logger.Error(err),
		)
	}

	// init conversion service
	convService, err := conversion.GetService(cfg, log)
	if err != nil {
		log.Fatal("Failed to get conversion service", logger.Error(err))
	}

	// init handlers
	h := handlers.NewHandlers(convService, cfg.Conversion.MaxFileSize, log.Named("http"))
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	routes.SetupRoutes(r, h, log.Named("http"))

	srv := &http.Server{
		Addr:    cfg.Addr(),
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// start server
	g.Go(func() error {
		log.Info("Server starting", logger.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	// start janitor
	if cfg.Storage.SweepInterval > 0 && cfg.Storage.Retention > 0 {
		janitor, err := worker.NewJanitor(&worker.Config{
			Interval:  cfg.Storage.SweepInterval,
			Retention: cfg.Storage.Retention,
		}, convService.Storage(), log.Named("janitor"))
		if err != nil {
			log.Fatal("Failed to create janitor", logger.Error(err))
		}
		g.Go(func() error {
			return janitor.Start(gctx)
		})
	}

	// wait for interrupt signal (or a server failure) to gracefully shut down
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Server forced to shutdown", logger.Error(err))
			return err
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error("Server exited with error", logger.Error(err))
		_ = log.Sync()
		os.Exit(1)
	}
	log.Info("Server stopped")
}
