package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/elektromontazh/orderbot/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS orders (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		display_name TEXT NOT NULL,
		wall_type TEXT NOT NULL,
		channeling INTEGER NOT NULL,
		area_sqm REAL NOT NULL,
		full_name TEXT NOT NULL,
		phone TEXT NOT NULL,
		address TEXT NOT NULL,
		total REAL NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_created ON orders(created_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InsertOrder appends a new order record and returns its identifier.
func (s *SQLiteStore) InsertOrder(ctx context.Context, order *domain.Order) (int64, error) {
	query := `
	INSERT INTO orders (display_name, wall_type, channeling, area_sqm,
	                    full_name, phone, address, total, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	res, err := s.db.ExecContext(ctx, query,
		order.DisplayName, string(order.WallType), order.Channeling, order.AreaSqm,
		order.FullName, order.Phone, order.Address, order.Total,
		order.CreatedAt.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("order insert id: %w", err)
	}
	return id, nil
}

// GetOrder retrieves an order by identifier.
func (s *SQLiteStore) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	query := `
	SELECT id, display_name, wall_type, channeling, area_sqm,
	       full_name, phone, address, total, created_at
	FROM orders WHERE id = ?`

	row := s.db.QueryRowContext(ctx, query, id)

	var order domain.Order
	var wallType string
	var createdAt int64

	err := row.Scan(
		&order.ID, &order.DisplayName, &wallType, &order.Channeling, &order.AreaSqm,
		&order.FullName, &order.Phone, &order.Address, &order.Total, &createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan order row: %w", err)
	}

	order.WallType = domain.WallType(wallType)
	order.CreatedAt = time.Unix(createdAt, 0)

	return &order, nil
}

// CountOrders returns the number of committed orders.
func (s *SQLiteStore) CountOrders(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count orders: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
