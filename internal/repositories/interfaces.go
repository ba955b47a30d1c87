package repositories

import (
	"context"
	"time"

	domain "github.com/printbound/api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// OrderRepository persists order aggregates. All reads are tenant-scoped: a
// lookup for a different tenant behaves exactly like a missing order. Update
// enforces optimistic versioning and reports stale writes as conflicts.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, tenantID, orderID string) (domain.Order, error)
	FindByNumber(ctx context.Context, tenantID, orderNumber string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) ([]domain.Order, error)
}

// OrderListFilter narrows and orders the result set. List returns the whole
// filtered, sorted set; pagination and stats are computed by the caller.
type OrderListFilter struct {
	TenantID      string
	UserID        string
	Status        []domain.OrderStatus
	PaymentStatus []domain.PaymentStatus
	DateRange     domain.RangeQuery[time.Time]
	SortBy        domain.OrderSort
	SortOrder     domain.SortOrder
}

// CounterRepository provides transaction-safe sequence numbers.
type CounterRepository interface {
	Next(ctx context.Context, counterID string, step int64) (int64, error)
	Configure(ctx context.Context, counterID string, cfg CounterConfig) error
}

// CounterConfig customises increment behaviour and bounds for a counter.
type CounterConfig struct {
	Step         int64
	MaxValue     *int64
	InitialValue *int64
}

// HealthRepository exposes status of downstream dependencies for health checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
