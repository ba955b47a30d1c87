package domain

import "slices"

// orderStateTransitions is the single source of truth for main-axis status
// writes. No component mutates Order.Status without consulting it, with the
// documented exception of the refund override in the payment cascade.
var orderStateTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:      {OrderStatusPaid, OrderStatusCancelled},
	OrderStatusPaid:         {OrderStatusProduction, OrderStatusCancelled, OrderStatusRefunded},
	OrderStatusProduction:   {OrderStatusQualityCheck, OrderStatusReadyToShip},
	OrderStatusQualityCheck: {OrderStatusProduction, OrderStatusReadyToShip},
	OrderStatusReadyToShip:  {OrderStatusShipped},
	OrderStatusShipped:      {OrderStatusDelivered},
	OrderStatusDelivered:    {OrderStatusCompleted},
	OrderStatusCompleted:    {},
	OrderStatusCancelled:    {},
	OrderStatusRefunded:     {},
}

var cancellableStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusPaid,
}

var reorderableStatuses = []OrderStatus{
	OrderStatusCompleted,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// CanTransition reports whether the edge from -> to exists in the transition table.
func CanTransition(from, to OrderStatus) bool {
	next, ok := orderStateTransitions[from]
	if !ok {
		return false
	}
	return slices.Contains(next, to)
}

// IsTerminal reports whether no further main-axis transitions are allowed.
func IsTerminal(status OrderStatus) bool {
	next, ok := orderStateTransitions[status]
	return ok && len(next) == 0
}

// IsKnownStatus reports whether the status participates in the state machine.
func IsKnownStatus(status OrderStatus) bool {
	_, ok := orderStateTransitions[status]
	return ok
}

// CanCancel reports whether an order in the given status may still be cancelled
// by the customer. Recomputed on every read, never stored.
func CanCancel(status OrderStatus) bool {
	return slices.Contains(cancellableStatuses, status)
}

// CanReorder reports whether a fresh order may be cloned from one in the given status.
func CanReorder(status OrderStatus) bool {
	return slices.Contains(reorderableStatuses, status)
}
