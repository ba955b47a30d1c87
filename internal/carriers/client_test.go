package carriers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/printbound/api/internal/platform/config"

	domain "github.com/printbound/api/internal/domain"
)

func TestClassifyDescription(t *testing.T) {
	cases := []struct {
		description string
		want        domain.ShippingStatus
	}{
		{"Objeto postado", domain.ShippingStatusShipped},
		{"OBJETO POSTADO apos o horario limite", domain.ShippingStatusShipped},
		{"Saiu para entrega ao destinatario", domain.ShippingStatusOutForDelivery},
		{"Objeto entregue ao destinatario", domain.ShippingStatusDelivered},
		{"ENTREGUE", domain.ShippingStatusDelivered},
		{"Objeto em transito - por favor aguarde", domain.ShippingStatusInTransit},
		{"Objeto encaminhado para unidade de tratamento", domain.ShippingStatusInTransit},
		{"", domain.ShippingStatusInTransit},
	}

	for _, tc := range cases {
		if got := ClassifyDescription(tc.description); got != tc.want {
			t.Errorf("ClassifyDescription(%q) = %s, want %s", tc.description, got, tc.want)
		}
	}
}

func TestClientFetchTracking(t *testing.T) {
	var requestedPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestedPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"eventos": [
				{"descricao": "Objeto postado", "local": "Curitiba / PR", "data": "2025-04-28T14:00:00Z"},
				{"descricao": "Objeto em transito", "local": "Sao Paulo / SP", "data": "2025-04-29T09:30:00Z"},
				{"descricao": "Saiu para entrega ao destinatario", "local": "Sao Paulo / SP", "data": "2025-04-30T08:15:00Z"}
			],
			"previsaoEntrega": "2025-04-30T23:59:59Z"
		}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		Carriers: config.CarrierConfig{
			BaseURLs: map[string]string{"correios": server.URL},
			Timeout:  2 * time.Second,
		},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	result, err := client.FetchTracking(context.Background(), "Correios", "BR123456789BR")
	if err != nil {
		t.Fatalf("FetchTracking returned error: %v", err)
	}

	if requestedPath != "/BR123456789BR" {
		t.Errorf("unexpected request path %s", requestedPath)
	}
	if len(result.Events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(result.Events))
	}
	if result.Events[0].Status != domain.ShippingStatusShipped {
		t.Errorf("unexpected first status %s", result.Events[0].Status)
	}
	if result.Events[1].Status != domain.ShippingStatusInTransit {
		t.Errorf("unexpected second status %s", result.Events[1].Status)
	}
	if result.CurrentStatus != domain.ShippingStatusOutForDelivery {
		t.Errorf("unexpected current status %s", result.CurrentStatus)
	}
	if result.EstimatedDelivery == nil {
		t.Error("expected estimated delivery")
	}
	if result.LastUpdate == nil || !result.LastUpdate.Equal(time.Date(2025, 4, 30, 8, 15, 0, 0, time.UTC)) {
		t.Errorf("unexpected last update %v", result.LastUpdate)
	}
}

func TestClientFetchTrackingUnknownCarrier(t *testing.T) {
	client, err := NewClient(ClientConfig{
		Carriers: config.CarrierConfig{
			BaseURLs: map[string]string{"correios": "http://localhost:0"},
		},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	_, err = client.FetchTracking(context.Background(), "jadlog", "ABC123")
	if !errors.Is(err, ErrUnknownCarrier) {
		t.Fatalf("expected ErrUnknownCarrier, got %v", err)
	}
}

func TestClientFetchTrackingUpstreamError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{
		Carriers: config.CarrierConfig{
			BaseURLs: map[string]string{"correios": server.URL},
		},
	})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if _, err := client.FetchTracking(context.Background(), "correios", "BR123"); err == nil {
		t.Fatal("expected error for upstream failure")
	}
}
