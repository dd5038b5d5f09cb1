package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tnqbao/gau-share-service/config"
	"github.com/tnqbao/gau-share-service/consumer/worker"
	infraPkg "github.com/tnqbao/gau-share-service/infra"
	"github.com/tnqbao/gau-share-service/repository"
)

func main() {
	err := godotenv.Load("../staging.env")
	if err != nil {
		log.Println("No .env file found, continuing with environment variables")
	}

	cfg := config.NewConfig()
	infra := infraPkg.InitInfra(cfg)
	repo := repository.InitRepository(infra)

	// Initialize context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if infra.RabbitMQ == nil {
		log.Fatalf("RabbitMQ is required by the consumer")
	}

	// Start Blob Consumer (deletes blobs of purged or orphaned entries)
	blobConsumer := worker.NewBlobConsumer(infra.RabbitMQ.Channel, infra, repo)
	if err := blobConsumer.Start(ctx); err != nil {
		infra.Logger.ErrorWithContextf(ctx, err, "Failed to start Blob consumer: %v", err)
		log.Fatalf("Failed to start Blob consumer: %v", err)
	}

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	infra.Logger.InfoWithContextf(ctx, "Shutting down consumer...")
	cancel()

	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	_ = infra.Close(closeCtx)

	log.Println("Consumer exited properly")
}
