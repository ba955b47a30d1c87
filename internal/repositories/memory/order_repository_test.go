package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/printbound/api/internal/domain"
	"github.com/printbound/api/internal/repositories"
)

func testOrder(id, number, tenant, user string, status domain.OrderStatus, total int64, createdAt time.Time) domain.Order {
	return domain.Order{
		ID:            id,
		OrderNumber:   number,
		TenantID:      tenant,
		UserID:        user,
		Status:        status,
		PaymentStatus: domain.PaymentStatusPending,
		Currency:      "BRL",
		Totals:        domain.OrderTotals{Subtotal: total, Total: total},
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
}

func TestOrderRepositoryInsertAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	order := testOrder("ord_1", "PB-2026-000001", "tenant-a", "user-1", domain.OrderStatusPending, 1000, now)
	if err := repo.Insert(ctx, order); err != nil {
		t.Fatalf("insert: %v", err)
	}

	found, err := repo.FindByID(ctx, "tenant-a", "ord_1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.Version != 1 {
		t.Fatalf("expected version 1 after insert, got %d", found.Version)
	}

	byNumber, err := repo.FindByNumber(ctx, "tenant-a", "PB-2026-000001")
	if err != nil {
		t.Fatalf("find by number: %v", err)
	}
	if byNumber.ID != "ord_1" {
		t.Fatalf("expected ord_1, got %s", byNumber.ID)
	}

	if err := repo.Insert(ctx, order); err == nil {
		t.Fatalf("expected conflict on duplicate insert")
	}
}

func TestOrderRepositoryTenantScoping(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	if err := repo.Insert(ctx, testOrder("ord_1", "PB-2026-000001", "tenant-a", "user-1", domain.OrderStatusPending, 1000, now)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err := repo.FindByID(ctx, "tenant-b", "ord_1")
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not-found for tenant mismatch, got %v", err)
	}
}

func TestOrderRepositoryOptimisticVersioning(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)

	if err := repo.Insert(ctx, testOrder("ord_1", "PB-2026-000001", "tenant-a", "user-1", domain.OrderStatusPending, 1000, now)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	first, err := repo.FindByID(ctx, "tenant-a", "ord_1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	second := first

	first.Status = domain.OrderStatusPaid
	updated, err := repo.Update(ctx, first)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Version != 2 {
		t.Fatalf("expected version 2, got %d", updated.Version)
	}

	second.Status = domain.OrderStatusCancelled
	_, err = repo.Update(ctx, second)
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
		t.Fatalf("expected conflict for stale write, got %v", err)
	}

	current, err := repo.FindByID(ctx, "tenant-a", "ord_1")
	if err != nil {
		t.Fatalf("find after conflict: %v", err)
	}
	if current.Status != domain.OrderStatusPaid {
		t.Fatalf("stale write must not overwrite, got status %s", current.Status)
	}
}

func TestOrderRepositoryListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	orders := []domain.Order{
		testOrder("ord_1", "PB-2026-000001", "tenant-a", "user-1", domain.OrderStatusPending, 1000, base),
		testOrder("ord_2", "PB-2026-000002", "tenant-a", "user-1", domain.OrderStatusPaid, 3000, base.AddDate(0, 0, 1)),
		testOrder("ord_3", "PB-2026-000003", "tenant-a", "user-2", domain.OrderStatusPaid, 2000, base.AddDate(0, 0, 2)),
		testOrder("ord_4", "PB-2026-000004", "tenant-b", "user-1", domain.OrderStatusPaid, 4000, base.AddDate(0, 0, 3)),
	}
	for _, order := range orders {
		if err := repo.Insert(ctx, order); err != nil {
			t.Fatalf("insert %s: %v", order.ID, err)
		}
	}

	listed, err := repo.List(ctx, repositories.OrderListFilter{
		TenantID: "tenant-a",
		UserID:   "user-1",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 orders for tenant-a/user-1, got %d", len(listed))
	}

	paid, err := repo.List(ctx, repositories.OrderListFilter{
		TenantID:  "tenant-a",
		Status:    []domain.OrderStatus{domain.OrderStatusPaid},
		SortBy:    domain.OrderSortAmount,
		SortOrder: domain.SortDesc,
	})
	if err != nil {
		t.Fatalf("list paid: %v", err)
	}
	if len(paid) != 2 || paid[0].ID != "ord_2" || paid[1].ID != "ord_3" {
		t.Fatalf("expected amount-desc [ord_2 ord_3], got %#v", ids(paid))
	}

	from := base.AddDate(0, 0, 1)
	to := base.AddDate(0, 0, 2)
	ranged, err := repo.List(ctx, repositories.OrderListFilter{
		TenantID:  "tenant-a",
		DateRange: domain.RangeQuery[time.Time]{From: &from, To: &to},
	})
	if err != nil {
		t.Fatalf("list range: %v", err)
	}
	if len(ranged) != 2 {
		t.Fatalf("expected 2 orders in range, got %d", len(ranged))
	}
}

func TestOrderRepositoryDescendingSortIsStableOnTies(t *testing.T) {
	ctx := context.Background()
	repo := NewOrderRepository()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	orders := []domain.Order{
		testOrder("ord_1", "PB-2026-000001", "tenant-a", "user-1", domain.OrderStatusPaid, 2000, base),
		testOrder("ord_2", "PB-2026-000002", "tenant-a", "user-1", domain.OrderStatusPaid, 2000, base.AddDate(0, 0, 1)),
		testOrder("ord_3", "PB-2026-000003", "tenant-a", "user-1", domain.OrderStatusPaid, 5000, base.AddDate(0, 0, 2)),
	}
	for _, order := range orders {
		if err := repo.Insert(ctx, order); err != nil {
			t.Fatalf("insert %s: %v", order.ID, err)
		}
	}

	listed, err := repo.List(ctx, repositories.OrderListFilter{
		TenantID:  "tenant-a",
		SortBy:    domain.OrderSortAmount,
		SortOrder: domain.SortDesc,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	// The two equal-amount orders must fall back to creation order under
	// the descending comparator.
	if len(listed) != 3 || listed[0].ID != "ord_3" || listed[1].ID != "ord_1" || listed[2].ID != "ord_2" {
		t.Fatalf("expected [ord_3 ord_1 ord_2], got %v", ids(listed))
	}
}

func TestCounterRepositoryNext(t *testing.T) {
	ctx := context.Background()
	repo := NewCounterRepository()

	for want := int64(1); want <= 3; want++ {
		got, err := repo.Next(ctx, "orders", 1)
		if err != nil {
			t.Fatalf("next: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d, got %d", want, got)
		}
	}

	if _, err := repo.Next(ctx, "  ", 1); err == nil {
		t.Fatalf("expected error for blank counter id")
	}

	max := int64(3)
	if err := repo.Configure(ctx, "orders", repositories.CounterConfig{MaxValue: &max}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if _, err := repo.Next(ctx, "orders", 1); err == nil {
		t.Fatalf("expected exhausted counter error")
	}
}

func ids(orders []domain.Order) []string {
	out := make([]string, len(orders))
	for i, order := range orders {
		out[i] = order.ID
	}
	return out
}
