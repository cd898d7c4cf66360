package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type DB struct {
	*sqlx.DB
}

type DBConfig struct {
	Host     string
	Port     int
	UserName string
	Password string
	DBName   string
	SSLMode  string
}

// NewDB opens a traced connection pool against Postgres.
func NewDB(cfg *DBConfig) (*DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.UserName,
		cfg.Password,
		cfg.DBName,
		cfg.SSLMode,
	)

	db, err := xray.SQLContext("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create X-Ray SQL context: %w", err)
	}

	conn := sqlx.NewDb(db, "postgres")

	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(25)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("DB connected successfully")

	return &DB{conn}, nil
}

// RunMigrations applies the SQL migrations found under dirPath.
func (db *DB) RunMigrations(dirPath string) error {
	driver, err := migratepg.WithInstance(db.DB.DB, &migratepg.Config{})
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dirPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}

// BeginTx starts a new transaction.
func (db *DB) BeginTx(ctx context.Context) (*sqlx.Tx, error) {
	return db.DB.BeginTxx(ctx, nil)
}

// QueryxContext wraps sqlx.DB.QueryxContext with X-Ray tracing.
func (db *DB) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Queryx")
	if seg == nil {
		return db.DB.QueryxContext(ctx, query, args...)
	}
	defer seg.Close(nil)

	if err := seg.AddMetadata("query", query); err != nil {
		log.Printf("Failed to add query metadata: %v", err)
	}

	rows, err := db.DB.QueryxContext(ctx, query, args...)
	if err != nil {
		seg.Close(err)
		return nil, err
	}

	return rows, nil
}

// ExecContext wraps sqlx.DB.ExecContext with X-Ray tracing.
func (db *DB) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	ctx, seg := xray.BeginSubsegment(ctx, "DB.Exec")
	if seg == nil {
		return db.DB.ExecContext(ctx, query, args...)
	}
	defer seg.Close(nil)

	if err := seg.AddMetadata("query", query); err != nil {
		log.Printf("Failed to add query metadata: %v", err)
	}

	result, err := db.DB.ExecContext(ctx, query, args...)
	if err != nil {
		seg.Close(err)
		return nil, err
	}

	return result, nil
}
