package config

import (
	"os"
	"strconv"
	"strings"
)

// DefaultAllowedMimeTypes is the fixed set of content types accepted for upload.
var DefaultAllowedMimeTypes = []string{
	"image/jpeg",
	"image/jpg",
	"image/png",
	"image/gif",
	"image/webp",
	"application/pdf",
	"text/plain",
	"text/csv",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"application/vnd.ms-excel",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	"application/zip",
	"application/x-rar-compressed",
	"video/mp4",
	"video/avi",
	"video/mkv",
	"audio/mpeg",
	"audio/wav",
}

type EnvConfig struct {
	Database struct {
		Driver     string // postgres | sqlite
		SQLitePath string
	}
	Postgres struct {
		HOST     string
		Database string
		Username string
		Password string
		Port     string
	}
	CORS struct {
		AllowOrigins []string
	}
	Redis struct {
		Password  string
		Database  int
		RedisHost string
		RedisPort string
	}
	RabbitMQ struct {
		Host     string
		Port     string
		Username string
		Password string
	}
	Storage struct {
		Driver    string // local | minio | s3
		LocalPath string
	}
	Minio struct {
		Endpoint     string
		RootUser     string
		RootPassword string
		Bucket       string
		UseSSL       bool
	}
	S3 struct {
		Region       string
		Bucket       string
		AccessKey    string
		SecretKey    string
		BaseEndpoint string
	}
	Upload struct {
		ExpiryMinutes    int
		MaxFileSize      int64
		MaxBulkFiles     int
		MaxDownloads     int
		AllowedMimeTypes []string
	}
	RateLimit struct {
		WindowMs    int64
		MaxRequests int
	}
	Reaper struct {
		IntervalSeconds    int
		OrphanGraceMinutes int
	}
	Grafana struct {
		OTLPEndpoint string
		ServiceName  string
	}
	Environment struct {
		Mode string
	}
	PublicBaseURL  string
	// X-Forwarded-* headers are honoured only from these addresses or CIDRs
	TrustedProxies []string
	HTTPPort       string
}

func LoadEnvConfig() *EnvConfig {
	var config EnvConfig

	config.Database.Driver = strings.ToLower(os.Getenv("DB_DRIVER"))
	if config.Database.Driver == "" {
		config.Database.Driver = "postgres"
	}
	config.Database.SQLitePath = os.Getenv("SQLITE_PATH")
	if config.Database.SQLitePath == "" {
		config.Database.SQLitePath = "data/share.db"
	}

	// Postgres
	config.Postgres.HOST = os.Getenv("PGPOOL_HOST")
	config.Postgres.Database = os.Getenv("PGPOOL_DB")
	config.Postgres.Username = os.Getenv("PGPOOL_USER")
	config.Postgres.Password = os.Getenv("PGPOOL_PASSWORD")
	config.Postgres.Port = os.Getenv("PGPOOL_PORT")
	if config.Postgres.Port == "" {
		config.Postgres.Port = "5432"
	}

	config.CORS.AllowOrigins = splitList(os.Getenv("CORS_ORIGIN"))
	if len(config.CORS.AllowOrigins) == 0 {
		config.CORS.AllowOrigins = []string{"http://localhost:5173"}
	}

	config.Redis.Password = os.Getenv("REDIS_PASSWORD")
	config.Redis.Database, _ = strconv.Atoi(os.Getenv("REDIS_DB"))
	config.Redis.RedisHost = os.Getenv("REDIS_HOST")
	config.Redis.RedisPort = os.Getenv("REDIS_PORT")
	if config.Redis.RedisPort == "" {
		config.Redis.RedisPort = "6379"
	}

	// RabbitMQ
	config.RabbitMQ.Host = os.Getenv("RABBITMQ_HOST")
	if config.RabbitMQ.Host == "" {
		config.RabbitMQ.Host = "localhost"
	}
	config.RabbitMQ.Port = os.Getenv("RABBITMQ_PORT")
	if config.RabbitMQ.Port == "" {
		config.RabbitMQ.Port = "5672"
	}
	config.RabbitMQ.Username = os.Getenv("RABBITMQ_USER")
	if config.RabbitMQ.Username == "" {
		config.RabbitMQ.Username = "guest"
	}
	config.RabbitMQ.Password = os.Getenv("RABBITMQ_PASSWORD")
	if config.RabbitMQ.Password == "" {
		config.RabbitMQ.Password = "guest"
	}

	// Blob storage
	config.Storage.Driver = strings.ToLower(os.Getenv("STORAGE_DRIVER"))
	if config.Storage.Driver == "" {
		config.Storage.Driver = "local"
	}
	config.Storage.LocalPath = os.Getenv("STORAGE_LOCAL_PATH")
	if config.Storage.LocalPath == "" {
		config.Storage.LocalPath = "public/temp"
	}

	config.Minio.Endpoint = os.Getenv("MINIO_ENDPOINT")
	config.Minio.RootUser = os.Getenv("MINIO_ROOT_USER")
	config.Minio.RootPassword = os.Getenv("MINIO_ROOT_PASSWORD")
	config.Minio.Bucket = os.Getenv("MINIO_BUCKET")
	if config.Minio.Bucket == "" {
		config.Minio.Bucket = "share-files"
	}
	config.Minio.UseSSL = os.Getenv("MINIO_USE_SSL") == "true"

	config.S3.Region = os.Getenv("S3_REGION")
	if config.S3.Region == "" {
		config.S3.Region = "us-east-1"
	}
	config.S3.Bucket = os.Getenv("S3_BUCKET")
	if config.S3.Bucket == "" {
		config.S3.Bucket = "share-files"
	}
	config.S3.AccessKey = os.Getenv("S3_ACCESS_KEY")
	config.S3.SecretKey = os.Getenv("S3_SECRET_KEY")
	config.S3.BaseEndpoint = os.Getenv("S3_BASE_ENDPOINT")

	// Upload limits
	config.Upload.ExpiryMinutes = intFromEnv("FILE_EXPIRY_MINUTES", 5)
	config.Upload.MaxFileSize = int64FromEnv("MAX_FILE_SIZE", 20*1024*1024) // 20MB
	config.Upload.MaxBulkFiles = intFromEnv("MAX_BULK_FILES", 10)
	config.Upload.MaxDownloads = intFromEnv("MAX_DOWNLOADS", 10)
	config.Upload.AllowedMimeTypes = append([]string(nil), DefaultAllowedMimeTypes...)

	config.RateLimit.WindowMs = int64FromEnv("RATE_LIMIT_WINDOW_MS", 15*60*1000)
	config.RateLimit.MaxRequests = intFromEnv("RATE_LIMIT_MAX_REQUESTS", 5)

	// 0 turns the reaper off
	config.Reaper.IntervalSeconds = 60
	if val := os.Getenv("REAPER_INTERVAL_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			config.Reaper.IntervalSeconds = n
		}
	}
	config.Reaper.OrphanGraceMinutes = intFromEnv("REAPER_ORPHAN_GRACE_MINUTES", 10)

	// Grafana/OpenTelemetry; empty endpoint keeps telemetry local
	grafanaEndpoint := os.Getenv("GRAFANA_OTLP_ENDPOINT")
	if strings.HasPrefix(grafanaEndpoint, "https://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "https://")
	} else if strings.HasPrefix(grafanaEndpoint, "http://") {
		config.Grafana.OTLPEndpoint = strings.TrimPrefix(grafanaEndpoint, "http://")
	} else {
		config.Grafana.OTLPEndpoint = grafanaEndpoint
	}
	config.Grafana.ServiceName = os.Getenv("SERVICE_NAME")
	if config.Grafana.ServiceName == "" {
		config.Grafana.ServiceName = "gau-share-service"
	}

	config.Environment.Mode = os.Getenv("DEPLOY_ENV")
	if config.Environment.Mode == "" {
		config.Environment.Mode = "development"
	}

	config.PublicBaseURL = strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")
	config.TrustedProxies = splitList(os.Getenv("TRUSTED_PROXIES"))
	config.HTTPPort = os.Getenv("HTTP_PORT")
	if config.HTTPPort == "" {
		config.HTTPPort = "8080"
	}

	return &config
}

func intFromEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func int64FromEnv(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.ParseInt(val, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
