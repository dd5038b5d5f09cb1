package infra

import (
	"context"

	"github.com/tnqbao/gau-share-service/config"
	"github.com/tnqbao/gau-share-service/infra/produce"
)

type Infra struct {
	Redis    *RedisClient
	Postgres *PostgresClient
	Logger   *LoggerClient
	Metrics  *Metrics
	RabbitMQ *RabbitMQClient
	Produce  *produce.Produce
	Blob     BlobStore
	QRCode   *QRCodeGenerator

	shutdownTelemetry ShutdownFunc
}

var infraInstance *Infra

func InitInfra(cfg *config.Config) *Infra {
	if infraInstance != nil {
		return infraInstance
	}

	ctx := context.Background()

	shutdown, err := InitTelemetry(ctx, cfg.EnvConfig)
	if err != nil {
		panic("Failed to initialize telemetry: " + err.Error())
	}

	logger := InitLoggerClient(cfg.EnvConfig)
	if logger == nil {
		panic("Failed to initialize Logger service")
	}

	metrics, err := InitMetrics()
	if err != nil {
		panic("Failed to initialize Metrics: " + err.Error())
	}

	postgres, err := InitPostgresClient(cfg.EnvConfig)
	if err != nil {
		panic("Failed to initialize Postgres service: " + err.Error())
	}

	blob, err := InitBlobStore(ctx, cfg.EnvConfig)
	if err != nil {
		panic("Failed to initialize Blob store: " + err.Error())
	}

	// Redis only backs rate limiting; without it the limiter is disabled.
	redis, err := InitRedisClient(cfg.EnvConfig)
	if err != nil {
		logger.WarningWithContextf(ctx, "Failed to initialize Redis service: %v (rate limiting disabled)", err)
		redis = nil
	}

	// RabbitMQ is optional for the HTTP process; blob deletes fall back to inline removal.
	var produceService *produce.Produce
	rabbitMQ, err := InitRabbitMQClient(cfg.EnvConfig)
	if err != nil {
		logger.WarningWithContextf(ctx, "Failed to initialize RabbitMQ service: %v (blob deletes run inline)", err)
		rabbitMQ = nil
	} else {
		produceService = produce.InitProduce(rabbitMQ.Channel)
	}

	infraInstance = &Infra{
		Redis:             redis,
		Postgres:          postgres,
		Logger:            logger,
		Metrics:           metrics,
		RabbitMQ:          rabbitMQ,
		Produce:           produceService,
		Blob:              blob,
		QRCode:            NewQRCodeGenerator(),
		shutdownTelemetry: shutdown,
	}

	return infraInstance
}

func GetClient() *Infra {
	if infraInstance == nil {
		panic("Infra not initialized. Call InitInfra() first.")
	}
	return infraInstance
}

// Close releases connections and flushes telemetry.
func (i *Infra) Close(ctx context.Context) error {
	if i.RabbitMQ != nil {
		i.RabbitMQ.Close()
	}
	if i.Redis != nil {
		_ = i.Redis.Close()
	}
	if i.Postgres != nil {
		if sqlDB, err := i.Postgres.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if i.shutdownTelemetry != nil {
		return i.shutdownTelemetry(ctx)
	}
	return nil
}
