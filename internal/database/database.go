package database

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"ecommerce-api/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/joho/godotenv/autoload"
)

// Service wraps the database connection pool and exposes health information.
type Service interface {
	// DB returns the underlying connection pool.
	DB() *sql.DB

	// Health returns connectivity and pool statistics.
	Health() map[string]string

	// Close terminates the connection pool.
	Close() error
}

type service struct {
	db *sql.DB
}

// New opens a connection pool for the configured PostgreSQL database. The
// handle is passed down explicitly; nothing else in the application holds
// global connection state.
func New(cfg config.DatabaseConfig) Service {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database, cfg.Schema)

	db, err := sql.Open("pgx", connStr)
	if err != nil {
		// sql.Open only fails on a malformed DSN
		panic(err)
	}

	return &service{db: db}
}

func (s *service) DB() *sql.DB {
	return s.db
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	if err := s.db.PingContext(ctx); err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("db down: %v", err)
		return stats
	}

	dbStats := s.db.Stats()
	stats["status"] = "up"
	stats["message"] = "It's healthy"
	stats["open_connections"] = strconv.Itoa(dbStats.OpenConnections)
	stats["in_use"] = strconv.Itoa(dbStats.InUse)
	stats["idle"] = strconv.Itoa(dbStats.Idle)
	stats["wait_count"] = strconv.FormatInt(dbStats.WaitCount, 10)

	return stats
}

func (s *service) Close() error {
	return s.db.Close()
}
