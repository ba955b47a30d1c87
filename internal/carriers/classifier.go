package carriers

import (
	"strings"

	domain "github.com/printbound/api/internal/domain"
)

// classification maps carrier event descriptions onto shipping statuses by
// case-insensitive substring match. Order matters: the first hit wins.
// Descriptions follow the Brazilian carriers' pt-BR wording.
var classification = []struct {
	needle string
	status domain.ShippingStatus
}{
	{"objeto postado", domain.ShippingStatusShipped},
	{"saiu para entrega", domain.ShippingStatusOutForDelivery},
	{"entregue", domain.ShippingStatusDelivered},
}

// ClassifyDescription derives the shipping status for a raw carrier event
// description. Unrecognised descriptions classify as in transit.
func ClassifyDescription(description string) domain.ShippingStatus {
	normalised := strings.ToLower(description)
	for _, entry := range classification {
		if strings.Contains(normalised, entry.needle) {
			return entry.status
		}
	}
	return domain.ShippingStatusInTransit
}
