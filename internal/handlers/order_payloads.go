package handlers

import (
	"strings"

	domain "github.com/printbound/api/internal/domain"
	"github.com/printbound/api/internal/services"
)

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Items   []orderSummaryPayload `json:"items"`
	Total   int                   `json:"total"`
	Offset  int                   `json:"offset"`
	Limit   int                   `json:"limit"`
	HasMore bool                  `json:"has_more"`
	Stats   orderStatsPayload     `json:"stats"`
}

type orderStatsPayload struct {
	Count        int            `json:"count"`
	TotalSpend   int64          `json:"total_spend"`
	AverageSpend int64          `json:"average_spend"`
	ByStatus     map[string]int `json:"by_status"`
}

type orderSummaryPayload struct {
	ID             string `json:"id"`
	OrderNumber    string `json:"order_number"`
	Status         string `json:"status"`
	PaymentStatus  string `json:"payment_status"`
	ShippingStatus string `json:"shipping_status"`
	Currency       string `json:"currency"`
	Total          int64  `json:"total"`
	ItemCount      int    `json:"item_count"`
	CanCancel      bool   `json:"can_cancel"`
	CanReorder     bool   `json:"can_reorder"`
	CreatedAt      string `json:"created_at"`
}

type orderPayload struct {
	ID               string                `json:"id"`
	OrderNumber      string                `json:"order_number"`
	UserID           string                `json:"user_id"`
	Status           string                `json:"status"`
	PaymentStatus    string                `json:"payment_status"`
	ProductionStatus string                `json:"production_status,omitempty"`
	ShippingStatus   string                `json:"shipping_status"`
	PaymentRef       string                `json:"payment_ref,omitempty"`
	Currency         string                `json:"currency"`
	Customer         customerPayload       `json:"customer"`
	BillingAddress   *addressPayload       `json:"billing_address,omitempty"`
	ShippingAddress  *addressPayload       `json:"shipping_address,omitempty"`
	Items            []orderItemPayload    `json:"items"`
	Totals           totalsPayload         `json:"totals"`
	Production       *productionPayload    `json:"production,omitempty"`
	Shipping         *shippingPayload      `json:"shipping,omitempty"`
	StatusHistory    []statusEntryPayload  `json:"status_history,omitempty"`
	Metadata         map[string]any        `json:"metadata,omitempty"`
	CanCancel        bool                  `json:"can_cancel"`
	CanReorder       bool                  `json:"can_reorder"`
	Version          int64                 `json:"version"`
	CreatedAt        string                `json:"created_at"`
	UpdatedAt        string                `json:"updated_at,omitempty"`
	PaidAt           string                `json:"paid_at,omitempty"`
	DeliveredAt      string                `json:"delivered_at,omitempty"`
	CompletedAt      string                `json:"completed_at,omitempty"`
	CancelledAt      string                `json:"cancelled_at,omitempty"`
	CancelReason     string                `json:"cancel_reason,omitempty"`
}

type customerPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
}

type addressPayload struct {
	Recipient  string `json:"recipient"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type orderItemPayload struct {
	ID         string         `json:"id"`
	ProductRef string         `json:"product_ref"`
	SKU        string         `json:"sku"`
	Name       string         `json:"name,omitempty"`
	Options    map[string]any `json:"options,omitempty"`
	Quantity   int            `json:"quantity"`
	UnitPrice  int64          `json:"unit_price"`
	Total      int64          `json:"total"`
	Status     string         `json:"status"`
}

type totalsPayload struct {
	Subtotal  int64 `json:"subtotal"`
	Discounts int64 `json:"discounts"`
	Taxes     int64 `json:"taxes"`
	Shipping  int64 `json:"shipping"`
	Total     int64 `json:"total"`
}

type productionPayload struct {
	StartedAt   string                  `json:"started_at,omitempty"`
	CompletedAt string                  `json:"completed_at,omitempty"`
	Station     string                  `json:"station,omitempty"`
	Notes       string                  `json:"notes,omitempty"`
	Files       []productionFilePayload `json:"files,omitempty"`
}

type productionFilePayload struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	URL       string `json:"url"`
	CreatedAt string `json:"created_at"`
}

type shippingPayload struct {
	TrackingCode      string                 `json:"tracking_code"`
	Carrier           string                 `json:"carrier"`
	Service           string                 `json:"service,omitempty"`
	EstimatedDelivery string                 `json:"estimated_delivery,omitempty"`
	TrackingEvents    []trackingEventPayload `json:"tracking_events"`
}

type trackingEventPayload struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	Description string `json:"description,omitempty"`
	Location    string `json:"location,omitempty"`
	Timestamp   string `json:"timestamp"`
	RecordedAt  string `json:"recorded_at"`
}

type statusEntryPayload struct {
	Status    string `json:"status"`
	Notes     string `json:"notes,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	CreatedAt string `json:"created_at"`
}

type timelineResponse struct {
	Events []timelineEventPayload `json:"events"`
}

type timelineEventPayload struct {
	Type        string `json:"type"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Status      string `json:"status,omitempty"`
	Timestamp   string `json:"timestamp"`
}

func buildOrderSummary(order services.Order) orderSummaryPayload {
	return orderSummaryPayload{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		Status:         string(order.Status),
		PaymentStatus:  string(order.PaymentStatus),
		ShippingStatus: string(order.ShippingStatus),
		Currency:       strings.ToUpper(order.Currency),
		Total:          order.Totals.Total,
		ItemCount:      len(order.Items),
		CanCancel:      domain.CanCancel(order.Status),
		CanReorder:     domain.CanReorder(order.Status),
		CreatedAt:      formatTime(order.CreatedAt),
	}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:               order.ID,
		OrderNumber:      order.OrderNumber,
		UserID:           order.UserID,
		Status:           string(order.Status),
		PaymentStatus:    string(order.PaymentStatus),
		ProductionStatus: string(order.ProductionStatus),
		ShippingStatus:   string(order.ShippingStatus),
		PaymentRef:       order.PaymentRef,
		Currency:         strings.ToUpper(order.Currency),
		Customer: customerPayload{
			Name:     order.Customer.Name,
			Email:    order.Customer.Email,
			Phone:    order.Customer.Phone,
			Document: order.Customer.Document,
		},
		BillingAddress:  encodeAddressPayload(order.BillingAddress),
		ShippingAddress: encodeAddressPayload(order.ShippingAddress),
		Items:           make([]orderItemPayload, 0, len(order.Items)),
		Totals: totalsPayload{
			Subtotal:  order.Totals.Subtotal,
			Discounts: order.Totals.Discounts,
			Taxes:     order.Totals.Taxes,
			Shipping:  order.Totals.Shipping,
			Total:     order.Totals.Total,
		},
		Metadata:    cloneMap(order.Metadata),
		CanCancel:   domain.CanCancel(order.Status),
		CanReorder:  domain.CanReorder(order.Status),
		Version:     order.Version,
		CreatedAt:   formatTime(order.CreatedAt),
		UpdatedAt:   formatTime(order.UpdatedAt),
		PaidAt:      formatTimePtr(order.PaidAt),
		DeliveredAt: formatTimePtr(order.DeliveredAt),
		CompletedAt: formatTimePtr(order.CompletedAt),
		CancelledAt: formatTimePtr(order.CancelledAt),
	}
	if order.CancelReason != nil {
		payload.CancelReason = *order.CancelReason
	}

	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ID:         item.ID,
			ProductRef: item.ProductRef,
			SKU:        item.SKU,
			Name:       item.Name,
			Options:    cloneMap(item.Options),
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
			Status:     string(item.Status),
		})
	}

	if order.Production != nil {
		production := productionPayload{
			StartedAt:   formatTimePtr(order.Production.StartedAt),
			CompletedAt: formatTimePtr(order.Production.CompletedAt),
			Station:     order.Production.Station,
			Notes:       order.Production.Notes,
		}
		for _, file := range order.Production.Files {
			production.Files = append(production.Files, productionFilePayload{
				ID:        file.ID,
				Kind:      file.Kind,
				URL:       file.URL,
				CreatedAt: formatTime(file.CreatedAt),
			})
		}
		payload.Production = &production
	}

	if order.Shipping != nil {
		shipping := shippingPayload{
			TrackingCode:      order.Shipping.TrackingCode,
			Carrier:           order.Shipping.Carrier,
			Service:           order.Shipping.Service,
			EstimatedDelivery: formatTimePtr(order.Shipping.EstimatedDelivery),
			TrackingEvents:    make([]trackingEventPayload, 0, len(order.Shipping.TrackingEvents)),
		}
		for _, event := range order.Shipping.TrackingEvents {
			shipping.TrackingEvents = append(shipping.TrackingEvents, trackingEventPayload{
				ID:          event.ID,
				Status:      string(event.Status),
				Description: event.Description,
				Location:    event.Location,
				Timestamp:   formatTime(event.Timestamp),
				RecordedAt:  formatTime(event.RecordedAt),
			})
		}
		payload.Shipping = &shipping
	}

	for _, entry := range order.StatusHistory {
		payload.StatusHistory = append(payload.StatusHistory, statusEntryPayload{
			Status:    string(entry.Status),
			Notes:     entry.Notes,
			ActorID:   entry.ActorID,
			CreatedAt: formatTime(entry.CreatedAt),
		})
	}

	return payload
}

func encodeAddressPayload(addr *domain.Address) *addressPayload {
	if addr == nil {
		return nil
	}
	payload := addressPayload{
		Recipient:  addr.Recipient,
		Line1:      addr.Line1,
		City:       addr.City,
		PostalCode: addr.PostalCode,
		Country:    addr.Country,
	}
	if addr.Line2 != nil {
		payload.Line2 = *addr.Line2
	}
	if addr.State != nil {
		payload.State = *addr.State
	}
	if addr.Phone != nil {
		payload.Phone = *addr.Phone
	}
	return &payload
}

func decodeAddressPayload(payload *addressPayload) *domain.Address {
	if payload == nil {
		return nil
	}
	addr := domain.Address{
		Recipient:  strings.TrimSpace(payload.Recipient),
		Line1:      strings.TrimSpace(payload.Line1),
		City:       strings.TrimSpace(payload.City),
		PostalCode: strings.TrimSpace(payload.PostalCode),
		Country:    strings.TrimSpace(payload.Country),
	}
	if line2 := strings.TrimSpace(payload.Line2); line2 != "" {
		addr.Line2 = &line2
	}
	if state := strings.TrimSpace(payload.State); state != "" {
		addr.State = &state
	}
	if phone := strings.TrimSpace(payload.Phone); phone != "" {
		addr.Phone = &phone
	}
	return &addr
}
