package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/tnqbao/gau-share-service/config"
	"github.com/tnqbao/gau-share-service/http/controller"
	"github.com/tnqbao/gau-share-service/http/route"
	infraPkg "github.com/tnqbao/gau-share-service/infra"
	"github.com/tnqbao/gau-share-service/repository"
	"github.com/tnqbao/gau-share-service/service"
)

func main() {
	err := godotenv.Load("staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)

	ctrl := controller.NewController(cfg, infra, repo)
	router := routes.SetupRouter(ctrl)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              ":" + cfg.EnvConfig.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		infra.Logger.InfoWithContextf(gctx, "HTTP Server started on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		infra.Logger.InfoWithContextf(context.Background(), "Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if interval := cfg.EnvConfig.Reaper.IntervalSeconds; interval > 0 {
		reaper := newReaper(cfg, infra, repo, ctrl.Policy)
		g.Go(func() error {
			return reaper.Run(gctx, time.Duration(interval)*time.Second)
		})
	} else {
		infra.Logger.WarningWithContextf(ctx, "Reaper disabled, expired files are not purged")
	}

	if err := g.Wait(); err != nil {
		infra.Logger.ErrorWithContextf(context.Background(), err, "Server stopped with error: %v", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := infra.Close(closeCtx); err != nil {
		log.Printf("Failed to flush telemetry: %v", err)
	}
	log.Println("Server exited properly")
}

// newReaper publishes blob deletes to RabbitMQ when it is up and deletes inline otherwise.
func newReaper(cfg *config.Config, infra *infraPkg.Infra, repo *repository.Repository, policy service.Policy) *service.ReaperService {
	var deleter service.BlobDeletePublisher = service.InlineBlobDeleter{Blobs: infra.Blob}
	if infra.Produce != nil {
		deleter = infra.Produce.BlobService
	}

	grace := time.Duration(cfg.EnvConfig.Reaper.OrphanGraceMinutes) * time.Minute
	return service.NewReaperService(policy, repo.FileEntryRepo, repo.BulkBatchRepo, infra.Blob, deleter, grace, infra.Logger, infra.Metrics)
}
