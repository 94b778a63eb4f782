package repositories

import (
	"context"
	"time"

	domain "github.com/dido-commerce/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// OrderRepository persists order documents and their lifecycle state.
type OrderRepository interface {
	FindByID(ctx context.Context, orderID string) (domain.OrderSnapshot, error)
	UpdateStatus(ctx context.Context, orderID string, status domain.OrderStatus, at time.Time) error
	MarkPaymentComplete(ctx context.Context, orderID string, status domain.OrderStatus, paidAt time.Time) error
}

// CartRepository manages the shopping cart attached to a checkout session.
type CartRepository interface {
	Clear(ctx context.Context, cartID string) error
}

// HealthRepository aggregates dependency probes into a system report.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
