package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/printbound/api/internal/domain"
	pfirestore "github.com/printbound/api/internal/platform/firestore"
	"github.com/printbound/api/internal/repositories"
)

const ordersCollection = "orders"

// OrderRepository implements repositories.OrderRepository on Firestore. Orders
// live in a single collection keyed by order ID; tenant scoping is enforced on
// every read so a cross-tenant lookup behaves like a missing document.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.BaseRepository[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	base := pfirestore.NewBaseRepository[orderDocument](provider, ordersCollection, nil, nil)
	return &OrderRepository{
		provider: provider,
		orders:   base,
	}, nil
}

// Insert creates the order document, failing on duplicate IDs. The stored
// version starts at 1 regardless of the incoming value.
func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if r == nil || r.provider == nil {
		return errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return repositories.NewConflictError("orders.insert", "order id is required")
	}

	order.Version = 1
	ref, err := r.orders.DocumentRef(ctx, id)
	if err != nil {
		return err
	}
	if _, err := ref.Create(ctx, encodeOrder(order)); err != nil {
		return pfirestore.WrapError("orders.insert", err)
	}
	return nil
}

// Update persists the order under optimistic versioning: the write only
// succeeds when the stored version matches the incoming one, and the stored
// copy comes back with the bumped version.
func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	if r == nil || r.provider == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	id := strings.TrimSpace(order.ID)
	if id == "" {
		return domain.Order{}, repositories.NewNotFoundError("orders.update", "order id is required")
	}

	var stored domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		ref, err := r.orders.DocumentRef(ctx, id)
		if err != nil {
			return err
		}

		snapshot, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return repositories.NewNotFoundError("orders.update", fmt.Sprintf("order %s not found", id))
		}
		if err != nil {
			return err
		}

		current, err := r.orders.Decode(ctx, snapshot)
		if err != nil {
			return fmt.Errorf("firestore orders decode %s: %w", id, err)
		}
		if current.TenantID != order.TenantID {
			return repositories.NewNotFoundError("orders.update", fmt.Sprintf("order %s not found", id))
		}
		if current.Version != order.Version {
			return repositories.NewConflictError("orders.update", fmt.Sprintf("order %s version %d is stale (stored %d)", id, order.Version, current.Version))
		}

		order.Version++
		if err := tx.Set(ref, encodeOrder(order)); err != nil {
			return err
		}
		stored = order
		return nil
	})
	if err != nil {
		var repoErr repositories.RepositoryError
		if errors.As(err, &repoErr) {
			return domain.Order{}, err
		}
		return domain.Order{}, pfirestore.WrapError("orders.update", err)
	}
	return stored, nil
}

// FindByID loads one order scoped to the tenant.
func (r *OrderRepository) FindByID(ctx context.Context, tenantID, orderID string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	tenantID = strings.TrimSpace(tenantID)
	orderID = strings.TrimSpace(orderID)
	if tenantID == "" || orderID == "" {
		return domain.Order{}, repositories.NewNotFoundError("orders.get", "tenant id and order id are required")
	}

	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	order := decodeOrder(doc.ID, doc.Data)
	if order.TenantID != tenantID {
		return domain.Order{}, repositories.NewNotFoundError("orders.get", fmt.Sprintf("order %s not found", orderID))
	}
	return order, nil
}

// FindByNumber loads one order by its human-facing number within the tenant.
func (r *OrderRepository) FindByNumber(ctx context.Context, tenantID, orderNumber string) (domain.Order, error) {
	if r == nil || r.orders == nil {
		return domain.Order{}, errors.New("order repository not initialised")
	}
	tenantID = strings.TrimSpace(tenantID)
	orderNumber = strings.TrimSpace(orderNumber)
	if tenantID == "" || orderNumber == "" {
		return domain.Order{}, repositories.NewNotFoundError("orders.get", "tenant id and order number are required")
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		return query.
			Where("tenantId", "==", tenantID).
			Where("orderNumber", "==", orderNumber).
			Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, repositories.NewNotFoundError("orders.get", fmt.Sprintf("order number %s not found", orderNumber))
	}
	return decodeOrder(docs[0].ID, docs[0].Data), nil
}

// List returns the whole filtered, sorted set for the tenant. Pagination and
// aggregation happen in the service layer.
func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) ([]domain.Order, error) {
	if r == nil || r.orders == nil {
		return nil, errors.New("order repository not initialised")
	}
	tenantID := strings.TrimSpace(filter.TenantID)
	if tenantID == "" {
		return nil, repositories.NewNotFoundError("orders.list", "tenant id is required")
	}

	docs, err := r.orders.Query(ctx, func(query firestore.Query) firestore.Query {
		query = query.Where("tenantId", "==", tenantID)
		if userID := strings.TrimSpace(filter.UserID); userID != "" {
			query = query.Where("userId", "==", userID)
		}
		if len(filter.Status) > 0 {
			query = query.Where("status", "in", statusStrings(filter.Status))
		}
		if len(filter.PaymentStatus) > 0 {
			query = query.Where("paymentStatus", "in", paymentStatusStrings(filter.PaymentStatus))
		}
		if filter.DateRange.From != nil {
			query = query.Where("createdAt", ">=", filter.DateRange.From.UTC())
		}
		if filter.DateRange.To != nil {
			query = query.Where("createdAt", "<=", filter.DateRange.To.UTC())
		}
		return query.OrderBy(orderByField(filter.SortBy), sortDirection(filter.SortOrder))
	})
	if err != nil {
		return nil, err
	}

	orders := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		orders = append(orders, decodeOrder(doc.ID, doc.Data))
	}
	return orders, nil
}

func orderByField(sort domain.OrderSort) string {
	switch sort {
	case domain.OrderSortAmount:
		return "totals.total"
	case domain.OrderSortStatus:
		return "status"
	default:
		return "createdAt"
	}
}

func sortDirection(order domain.SortOrder) firestore.Direction {
	if order == domain.SortAsc {
		return firestore.Asc
	}
	return firestore.Desc
}

func statusStrings(statuses []domain.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func paymentStatusStrings(statuses []domain.PaymentStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)

// Document mapping ------------------------------------------------------------

type orderDocument struct {
	OrderNumber      string                      `firestore:"orderNumber"`
	TenantID         string                      `firestore:"tenantId"`
	UserID           string                      `firestore:"userId"`
	Status           string                      `firestore:"status"`
	PaymentStatus    string                      `firestore:"paymentStatus"`
	ProductionStatus string                      `firestore:"productionStatus,omitempty"`
	ShippingStatus   string                      `firestore:"shippingStatus"`
	PaymentRef       string                      `firestore:"paymentRef,omitempty"`
	Currency         string                      `firestore:"currency"`
	Customer         customerDocument            `firestore:"customer"`
	BillingAddress   *addressDocument            `firestore:"billingAddress,omitempty"`
	ShippingAddress  *addressDocument            `firestore:"shippingAddress,omitempty"`
	Items            []orderItemDocument         `firestore:"items"`
	Totals           orderTotalsDocument         `firestore:"totals"`
	Production       *productionDocument         `firestore:"production,omitempty"`
	Shipping         *shippingDocument           `firestore:"shipping,omitempty"`
	StatusHistory    []statusHistoryEntryDocument `firestore:"statusHistory,omitempty"`
	Metadata         map[string]any              `firestore:"metadata,omitempty"`
	Version          int64                       `firestore:"version"`
	CreatedAt        time.Time                   `firestore:"createdAt"`
	UpdatedAt        time.Time                   `firestore:"updatedAt"`
	PaidAt           *time.Time                  `firestore:"paidAt,omitempty"`
	DeliveredAt      *time.Time                  `firestore:"deliveredAt,omitempty"`
	CompletedAt      *time.Time                  `firestore:"completedAt,omitempty"`
	CancelledAt      *time.Time                  `firestore:"cancelledAt,omitempty"`
	CancelReason     *string                     `firestore:"cancelReason,omitempty"`
}

type customerDocument struct {
	Name     string `firestore:"name"`
	Email    string `firestore:"email"`
	Phone    string `firestore:"phone,omitempty"`
	Document string `firestore:"document,omitempty"`
}

type addressDocument struct {
	Recipient  string  `firestore:"recipient"`
	Line1      string  `firestore:"line1"`
	Line2      *string `firestore:"line2,omitempty"`
	City       string  `firestore:"city"`
	State      *string `firestore:"state,omitempty"`
	PostalCode string  `firestore:"postalCode"`
	Country    string  `firestore:"country"`
	Phone      *string `firestore:"phone,omitempty"`
}

type orderItemDocument struct {
	ID         string         `firestore:"id"`
	ProductRef string         `firestore:"productRef,omitempty"`
	SKU        string         `firestore:"sku"`
	Name       string         `firestore:"name,omitempty"`
	Options    map[string]any `firestore:"options,omitempty"`
	Quantity   int            `firestore:"quantity"`
	UnitPrice  int64          `firestore:"unitPrice"`
	Total      int64          `firestore:"total"`
	Status     string         `firestore:"status"`
}

type orderTotalsDocument struct {
	Subtotal  int64 `firestore:"subtotal"`
	Discounts int64 `firestore:"discounts"`
	Taxes     int64 `firestore:"taxes"`
	Shipping  int64 `firestore:"shipping"`
	Total     int64 `firestore:"total"`
}

type productionDocument struct {
	StartedAt   *time.Time               `firestore:"startedAt,omitempty"`
	CompletedAt *time.Time               `firestore:"completedAt,omitempty"`
	Station     string                   `firestore:"station,omitempty"`
	Notes       string                   `firestore:"notes,omitempty"`
	Files       []productionFileDocument `firestore:"files,omitempty"`
}

type productionFileDocument struct {
	ID        string    `firestore:"id"`
	Kind      string    `firestore:"kind,omitempty"`
	URL       string    `firestore:"url"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type shippingDocument struct {
	TrackingCode      string                  `firestore:"trackingCode"`
	Carrier           string                  `firestore:"carrier"`
	Service           string                  `firestore:"service,omitempty"`
	EstimatedDelivery *time.Time              `firestore:"estimatedDelivery,omitempty"`
	TrackingEvents    []trackingEventDocument `firestore:"trackingEvents,omitempty"`
}

type trackingEventDocument struct {
	ID          string    `firestore:"id"`
	Status      string    `firestore:"status"`
	Description string    `firestore:"description,omitempty"`
	Location    string    `firestore:"location,omitempty"`
	Timestamp   time.Time `firestore:"timestamp"`
	RecordedAt  time.Time `firestore:"recordedAt"`
}

type statusHistoryEntryDocument struct {
	Status    string    `firestore:"status"`
	Notes     string    `firestore:"notes,omitempty"`
	ActorID   string    `firestore:"actorId,omitempty"`
	CreatedAt time.Time `firestore:"createdAt"`
}

func encodeOrder(order domain.Order) orderDocument {
	doc := orderDocument{
		OrderNumber:      order.OrderNumber,
		TenantID:         order.TenantID,
		UserID:           order.UserID,
		Status:           string(order.Status),
		PaymentStatus:    string(order.PaymentStatus),
		ProductionStatus: string(order.ProductionStatus),
		ShippingStatus:   string(order.ShippingStatus),
		PaymentRef:       order.PaymentRef,
		Currency:         order.Currency,
		Customer: customerDocument{
			Name:     order.Customer.Name,
			Email:    order.Customer.Email,
			Phone:    order.Customer.Phone,
			Document: order.Customer.Document,
		},
		BillingAddress:  encodeAddress(order.BillingAddress),
		ShippingAddress: encodeAddress(order.ShippingAddress),
		Totals: orderTotalsDocument{
			Subtotal:  order.Totals.Subtotal,
			Discounts: order.Totals.Discounts,
			Taxes:     order.Totals.Taxes,
			Shipping:  order.Totals.Shipping,
			Total:     order.Totals.Total,
		},
		Metadata:     order.Metadata,
		Version:      order.Version,
		CreatedAt:    order.CreatedAt,
		UpdatedAt:    order.UpdatedAt,
		PaidAt:       order.PaidAt,
		DeliveredAt:  order.DeliveredAt,
		CompletedAt:  order.CompletedAt,
		CancelledAt:  order.CancelledAt,
		CancelReason: order.CancelReason,
	}

	doc.Items = make([]orderItemDocument, len(order.Items))
	for i, item := range order.Items {
		doc.Items[i] = orderItemDocument{
			ID:         item.ID,
			ProductRef: item.ProductRef,
			SKU:        item.SKU,
			Name:       item.Name,
			Options:    item.Options,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
			Status:     string(item.Status),
		}
	}

	if order.Production != nil {
		production := &productionDocument{
			StartedAt:   order.Production.StartedAt,
			CompletedAt: order.Production.CompletedAt,
			Station:     order.Production.Station,
			Notes:       order.Production.Notes,
		}
		for _, file := range order.Production.Files {
			production.Files = append(production.Files, productionFileDocument(file))
		}
		doc.Production = production
	}

	if order.Shipping != nil {
		shipping := &shippingDocument{
			TrackingCode:      order.Shipping.TrackingCode,
			Carrier:           order.Shipping.Carrier,
			Service:           order.Shipping.Service,
			EstimatedDelivery: order.Shipping.EstimatedDelivery,
		}
		for _, event := range order.Shipping.TrackingEvents {
			shipping.TrackingEvents = append(shipping.TrackingEvents, trackingEventDocument{
				ID:          event.ID,
				Status:      string(event.Status),
				Description: event.Description,
				Location:    event.Location,
				Timestamp:   event.Timestamp,
				RecordedAt:  event.RecordedAt,
			})
		}
		doc.Shipping = shipping
	}

	for _, entry := range order.StatusHistory {
		doc.StatusHistory = append(doc.StatusHistory, statusHistoryEntryDocument{
			Status:    string(entry.Status),
			Notes:     entry.Notes,
			ActorID:   entry.ActorID,
			CreatedAt: entry.CreatedAt,
		})
	}

	return doc
}

func decodeOrder(id string, doc orderDocument) domain.Order {
	order := domain.Order{
		ID:               id,
		OrderNumber:      doc.OrderNumber,
		TenantID:         doc.TenantID,
		UserID:           doc.UserID,
		Status:           domain.OrderStatus(doc.Status),
		PaymentStatus:    domain.PaymentStatus(doc.PaymentStatus),
		ProductionStatus: domain.ProductionStatus(doc.ProductionStatus),
		ShippingStatus:   domain.ShippingStatus(doc.ShippingStatus),
		PaymentRef:       doc.PaymentRef,
		Currency:         doc.Currency,
		Customer: domain.CustomerSnapshot{
			Name:     doc.Customer.Name,
			Email:    doc.Customer.Email,
			Phone:    doc.Customer.Phone,
			Document: doc.Customer.Document,
		},
		BillingAddress:  decodeAddress(doc.BillingAddress),
		ShippingAddress: decodeAddress(doc.ShippingAddress),
		Totals: domain.OrderTotals{
			Subtotal:  doc.Totals.Subtotal,
			Discounts: doc.Totals.Discounts,
			Taxes:     doc.Totals.Taxes,
			Shipping:  doc.Totals.Shipping,
			Total:     doc.Totals.Total,
		},
		Metadata:     doc.Metadata,
		Version:      doc.Version,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		PaidAt:       doc.PaidAt,
		DeliveredAt:  doc.DeliveredAt,
		CompletedAt:  doc.CompletedAt,
		CancelledAt:  doc.CancelledAt,
		CancelReason: doc.CancelReason,
	}

	order.Items = make([]domain.OrderItem, len(doc.Items))
	for i, item := range doc.Items {
		order.Items[i] = domain.OrderItem{
			ID:         item.ID,
			ProductRef: item.ProductRef,
			SKU:        item.SKU,
			Name:       item.Name,
			Options:    item.Options,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Total:      item.Total,
			Status:     domain.OrderItemStatus(item.Status),
		}
	}

	if doc.Production != nil {
		production := &domain.ProductionData{
			StartedAt:   doc.Production.StartedAt,
			CompletedAt: doc.Production.CompletedAt,
			Station:     doc.Production.Station,
			Notes:       doc.Production.Notes,
		}
		for _, file := range doc.Production.Files {
			production.Files = append(production.Files, domain.ProductionFile(file))
		}
		order.Production = production
	}

	if doc.Shipping != nil {
		shipping := &domain.ShippingData{
			TrackingCode:      doc.Shipping.TrackingCode,
			Carrier:           doc.Shipping.Carrier,
			Service:           doc.Shipping.Service,
			EstimatedDelivery: doc.Shipping.EstimatedDelivery,
		}
		for _, event := range doc.Shipping.TrackingEvents {
			shipping.TrackingEvents = append(shipping.TrackingEvents, domain.TrackingEvent{
				ID:          event.ID,
				Status:      domain.ShippingStatus(event.Status),
				Description: event.Description,
				Location:    event.Location,
				Timestamp:   event.Timestamp,
				RecordedAt:  event.RecordedAt,
			})
		}
		order.Shipping = shipping
	}

	for _, entry := range doc.StatusHistory {
		order.StatusHistory = append(order.StatusHistory, domain.StatusHistoryEntry{
			Status:    domain.OrderStatus(entry.Status),
			Notes:     entry.Notes,
			ActorID:   entry.ActorID,
			CreatedAt: entry.CreatedAt,
		})
	}

	return order
}

func encodeAddress(addr *domain.Address) *addressDocument {
	if addr == nil {
		return nil
	}
	doc := addressDocument(*addr)
	return &doc
}

func decodeAddress(doc *addressDocument) *domain.Address {
	if doc == nil {
		return nil
	}
	addr := domain.Address(*doc)
	return &addr
}
