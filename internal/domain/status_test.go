package domain

import "testing"

func TestCanTransitionTable(t *testing.T) {
	allowed := []struct {
		from OrderStatus
		to   OrderStatus
	}{
		{OrderStatusPending, OrderStatusPaid},
		{OrderStatusPending, OrderStatusCancelled},
		{OrderStatusPaid, OrderStatusProduction},
		{OrderStatusPaid, OrderStatusCancelled},
		{OrderStatusPaid, OrderStatusRefunded},
		{OrderStatusProduction, OrderStatusQualityCheck},
		{OrderStatusProduction, OrderStatusReadyToShip},
		{OrderStatusQualityCheck, OrderStatusProduction},
		{OrderStatusQualityCheck, OrderStatusReadyToShip},
		{OrderStatusReadyToShip, OrderStatusShipped},
		{OrderStatusShipped, OrderStatusDelivered},
		{OrderStatusDelivered, OrderStatusCompleted},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("expected %s -> %s to be allowed", tc.from, tc.to)
		}
	}
}

func TestCanTransitionRejectsEverythingElse(t *testing.T) {
	statuses := []OrderStatus{
		OrderStatusPending, OrderStatusPaid, OrderStatusProduction,
		OrderStatusQualityCheck, OrderStatusReadyToShip, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCompleted, OrderStatusCancelled,
		OrderStatusRefunded,
	}
	allowedCount := 0
	for _, from := range statuses {
		for _, to := range statuses {
			if CanTransition(from, to) {
				allowedCount++
			}
		}
	}
	if allowedCount != 12 {
		t.Fatalf("expected exactly 12 allowed edges, counted %d", allowedCount)
	}

	if CanTransition(OrderStatusPending, OrderStatusPending) {
		t.Fatalf("self transition must be rejected")
	}
	if CanTransition(OrderStatusPending, OrderStatusShipped) {
		t.Fatalf("pending -> shipped must be rejected")
	}
	if CanTransition("unknown", OrderStatusPaid) {
		t.Fatalf("unknown source status must be rejected")
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, status := range []OrderStatus{OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded} {
		if !IsTerminal(status) {
			t.Errorf("expected %s to be terminal", status)
		}
	}
	for _, status := range []OrderStatus{OrderStatusPending, OrderStatusShipped, OrderStatusDelivered} {
		if IsTerminal(status) {
			t.Errorf("expected %s to be non-terminal", status)
		}
	}
	if IsTerminal("unknown") {
		t.Fatalf("unknown status must not report terminal")
	}
}

func TestCancelAndReorderPredicates(t *testing.T) {
	if !CanCancel(OrderStatusPending) || !CanCancel(OrderStatusPaid) {
		t.Fatalf("pending and paid must be cancellable")
	}
	for _, status := range []OrderStatus{OrderStatusProduction, OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled} {
		if CanCancel(status) {
			t.Errorf("expected %s not cancellable", status)
		}
	}

	for _, status := range []OrderStatus{OrderStatusCompleted, OrderStatusDelivered, OrderStatusCancelled} {
		if !CanReorder(status) {
			t.Errorf("expected %s reorderable", status)
		}
	}
	if CanReorder(OrderStatusPending) || CanReorder(OrderStatusRefunded) {
		t.Fatalf("pending/refunded must not be reorderable")
	}
}
