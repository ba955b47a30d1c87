// Package carriers fetches and normalises shipment tracking data from the
// configured carrier tracking endpoints.
package carriers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/printbound/api/internal/platform/config"
	"github.com/printbound/api/internal/services"

	domain "github.com/printbound/api/internal/domain"
)

// ErrUnknownCarrier indicates no tracking endpoint is configured for the carrier.
var ErrUnknownCarrier = errors.New("carriers: unknown carrier")

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig configures the tracking client.
type ClientConfig struct {
	Carriers   config.CarrierConfig
	HTTPClient httpDoer
	Clock      func() time.Time
}

// Client implements services.CarrierTrackingProvider over the carriers' HTTP
// tracking APIs.
type Client struct {
	baseURLs map[string]string
	http     httpDoer
	clock    func() time.Time
}

// NewClient constructs a carrier tracking client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if len(cfg.Carriers.BaseURLs) == 0 {
		return nil, errors.New("carriers: at least one base url is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Carriers.Timeout
		if timeout <= 0 {
			timeout = 8 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	baseURLs := make(map[string]string, len(cfg.Carriers.BaseURLs))
	for name, base := range cfg.Carriers.BaseURLs {
		baseURLs[strings.ToLower(strings.TrimSpace(name))] = strings.TrimRight(strings.TrimSpace(base), "/")
	}

	return &Client{
		baseURLs: baseURLs,
		http:     httpClient,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

// trackingResponse is the carriers' wire format for a tracking lookup.
type trackingResponse struct {
	Events []struct {
		Description string    `json:"descricao"`
		Location    string    `json:"local"`
		Timestamp   time.Time `json:"data"`
	} `json:"eventos"`
	EstimatedDelivery *time.Time `json:"previsaoEntrega"`
}

// FetchTracking retrieves the full tracking history for the code and maps
// each carrier event onto the shipping status axis.
func (c *Client) FetchTracking(ctx context.Context, carrier, trackingCode string) (domain.CarrierTrackingResult, error) {
	if c == nil {
		return domain.CarrierTrackingResult{}, errors.New("carriers: client is nil")
	}
	code := strings.TrimSpace(trackingCode)
	if code == "" {
		return domain.CarrierTrackingResult{}, errors.New("carriers: tracking code is required")
	}

	base, ok := c.baseURLs[strings.ToLower(strings.TrimSpace(carrier))]
	if !ok {
		return domain.CarrierTrackingResult{}, fmt.Errorf("%w: %s", ErrUnknownCarrier, carrier)
	}

	endpoint := base + "/" + url.PathEscape(code)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return domain.CarrierTrackingResult{}, fmt.Errorf("carriers: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.CarrierTrackingResult{}, fmt.Errorf("carriers: fetch tracking: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.CarrierTrackingResult{}, fmt.Errorf("carriers: tracking code %s not found", code)
	}
	if resp.StatusCode != http.StatusOK {
		return domain.CarrierTrackingResult{}, fmt.Errorf("carriers: unexpected status %d", resp.StatusCode)
	}

	var payload trackingResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return domain.CarrierTrackingResult{}, fmt.Errorf("carriers: decode response: %w", err)
	}

	now := c.clock()
	result := domain.CarrierTrackingResult{
		EstimatedDelivery: payload.EstimatedDelivery,
	}
	for _, raw := range payload.Events {
		event := domain.TrackingEvent{
			Status:      ClassifyDescription(raw.Description),
			Description: strings.TrimSpace(raw.Description),
			Location:    strings.TrimSpace(raw.Location),
			Timestamp:   raw.Timestamp.UTC(),
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = now
		}
		result.Events = append(result.Events, event)
	}
	if n := len(result.Events); n > 0 {
		last := result.Events[n-1]
		result.CurrentStatus = last.Status
		result.LastUpdate = &last.Timestamp
	}
	return result, nil
}

var _ services.CarrierTrackingProvider = (*Client)(nil)
