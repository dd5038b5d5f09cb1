package infra

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tnqbao/gau-share-service/config"
	"github.com/tnqbao/gau-share-service/entity"
)

type PostgresClient struct {
	DB *gorm.DB
}

// InitPostgresClient opens the entry registry database. DB_DRIVER=sqlite swaps the
// postgres pool for a single-file database, which suits single-node deployments.
func InitPostgresClient(cfg *config.EnvConfig) (*PostgresClient, error) {
	var (
		db  *gorm.DB
		err error
	)

	switch cfg.Database.Driver {
	case "sqlite":
		db, err = NewSQLiteDB(cfg.Database.SQLitePath)
	case "postgres":
		dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
			cfg.Postgres.HOST,
			cfg.Postgres.Username,
			cfg.Postgres.Password,
			cfg.Postgres.Database,
			cfg.Postgres.Port,
		)
		db, err = gorm.Open(postgres.Open(dsn), gormConfig())
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.Driver == "postgres" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := MigrateSchema(db); err != nil {
		return nil, err
	}

	log.Printf("Connected to %s registry", cfg.Database.Driver)

	return &PostgresClient{DB: db}, nil
}

// NewSQLiteDB opens a sqlite database file. One connection serialises writers so
// the conditional download increment never races inside the driver.
func NewSQLiteDB(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create sqlite directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"), gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	return db, nil
}

func MigrateSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(&entity.FileEntry{}, &entity.BulkBatch{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}
