// Package memory provides in-process repository implementations used for
// local development and as the reference store in tests.
package memory

import (
	"cmp"
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	domain "github.com/printbound/api/internal/domain"
	"github.com/printbound/api/internal/repositories"
)

type orderKey struct {
	tenantID string
	orderID  string
}

// OrderRepository is a mutex-guarded map store with optimistic versioning.
type OrderRepository struct {
	mu       sync.RWMutex
	orders   map[orderKey]domain.Order
	byNumber map[string]orderKey
}

// NewOrderRepository constructs an empty memory-backed order repository.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders:   make(map[orderKey]domain.Order),
		byNumber: make(map[string]orderKey),
	}
}

// Insert stores a new order. Duplicate IDs or order numbers are conflicts.
func (r *OrderRepository) Insert(_ context.Context, order domain.Order) error {
	key := orderKey{tenantID: order.TenantID, orderID: order.ID}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[key]; exists {
		return repositories.NewConflictError("orders.insert", "order "+order.ID+" already exists")
	}
	numberKey := numberIndexKey(order.TenantID, order.OrderNumber)
	if _, exists := r.byNumber[numberKey]; exists {
		return repositories.NewConflictError("orders.insert", "order number "+order.OrderNumber+" already exists")
	}

	order.Version = 1
	r.orders[key] = cloneOrder(order)
	r.byNumber[numberKey] = key
	return nil
}

// Update applies a compare-and-swap on Order.Version: the stored version must
// match the caller's snapshot, otherwise the write is stale and rejected.
func (r *OrderRepository) Update(_ context.Context, order domain.Order) (domain.Order, error) {
	key := orderKey{tenantID: order.TenantID, orderID: order.ID}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.orders[key]
	if !exists {
		return domain.Order{}, repositories.NewNotFoundError("orders.update", "order "+order.ID+" not found")
	}
	if current.Version != order.Version {
		return domain.Order{}, repositories.NewConflictError("orders.update", "stale version for order "+order.ID)
	}

	order.Version = current.Version + 1
	r.orders[key] = cloneOrder(order)
	return cloneOrder(order), nil
}

// FindByID returns the order or a not-found error when absent or owned by a
// different tenant.
func (r *OrderRepository) FindByID(_ context.Context, tenantID, orderID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, exists := r.orders[orderKey{tenantID: tenantID, orderID: orderID}]
	if !exists {
		return domain.Order{}, repositories.NewNotFoundError("orders.find", "order "+orderID+" not found")
	}
	return cloneOrder(order), nil
}

// FindByNumber resolves the tenant-scoped human readable order number.
func (r *OrderRepository) FindByNumber(_ context.Context, tenantID, orderNumber string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key, exists := r.byNumber[numberIndexKey(tenantID, orderNumber)]
	if !exists {
		return domain.Order{}, repositories.NewNotFoundError("orders.find", "order number "+orderNumber+" not found")
	}
	return cloneOrder(r.orders[key]), nil
}

// List returns the whole filtered, sorted set for the tenant/user scope.
func (r *OrderRepository) List(_ context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]domain.Order, 0)
	for key, order := range r.orders {
		if key.tenantID != filter.TenantID {
			continue
		}
		if filter.UserID != "" && order.UserID != filter.UserID {
			continue
		}
		if len(filter.Status) > 0 && !slices.Contains(filter.Status, order.Status) {
			continue
		}
		if len(filter.PaymentStatus) > 0 && !slices.Contains(filter.PaymentStatus, order.PaymentStatus) {
			continue
		}
		if !inDateRange(order.CreatedAt, filter.DateRange) {
			continue
		}
		matched = append(matched, cloneOrder(order))
	}

	sortOrders(matched, filter.SortBy, filter.SortOrder)
	return matched, nil
}

func numberIndexKey(tenantID, orderNumber string) string {
	return tenantID + "/" + orderNumber
}

func inDateRange(ts time.Time, r domain.RangeQuery[time.Time]) bool {
	if r.From != nil && ts.Before(*r.From) {
		return false
	}
	if r.To != nil && ts.After(*r.To) {
		return false
	}
	return true
}

func sortOrders(orders []domain.Order, sortBy domain.OrderSort, order domain.SortOrder) {
	key := func(a, b domain.Order) int {
		switch sortBy {
		case domain.OrderSortAmount:
			return cmp.Compare(a.Totals.Total, b.Totals.Total)
		case domain.OrderSortStatus:
			return strings.Compare(string(a.Status), string(b.Status))
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}
	desc := order == domain.SortDesc
	// Descending swaps the operands instead of negating: negation would
	// report equal keys as "less" both ways. Ties break on creation time
	// then ID so pagination over the map store stays deterministic.
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if desc {
			a, b = b, a
		}
		if c := key(a, b); c != 0 {
			return c < 0
		}
		if c := orders[i].CreatedAt.Compare(orders[j].CreatedAt); c != 0 {
			return c < 0
		}
		return orders[i].ID < orders[j].ID
	})
}

func cloneOrder(order domain.Order) domain.Order {
	cloned := order
	cloned.Items = slices.Clone(order.Items)
	cloned.StatusHistory = slices.Clone(order.StatusHistory)
	if order.Production != nil {
		production := *order.Production
		production.Files = slices.Clone(order.Production.Files)
		cloned.Production = &production
	}
	if order.Shipping != nil {
		shipping := *order.Shipping
		shipping.TrackingEvents = slices.Clone(order.Shipping.TrackingEvents)
		cloned.Shipping = &shipping
	}
	if order.Metadata != nil {
		metadata := make(map[string]any, len(order.Metadata))
		for k, v := range order.Metadata {
			metadata[k] = v
		}
		cloned.Metadata = metadata
	}
	return cloned
}
