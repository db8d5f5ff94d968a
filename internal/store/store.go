// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"github.com/elektromontazh/orderbot/internal/domain"
)

// Repository defines the interface for persisting committed orders.
// The orders table is append-only: records are never updated or deleted.
type Repository interface {
	// InsertOrder appends a new order record and returns its identifier.
	InsertOrder(ctx context.Context, order *domain.Order) (int64, error)

	// GetOrder retrieves an order by identifier. Returns nil if not found.
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)

	// CountOrders returns the number of committed orders.
	CountOrders(ctx context.Context) (int64, error)

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
