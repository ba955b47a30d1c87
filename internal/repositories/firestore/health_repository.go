package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	domain "github.com/printbound/api/internal/domain"
	"github.com/printbound/api/internal/repositories"
	pfirestore "github.com/printbound/api/internal/platform/firestore"
)

const healthProbeDoc = "healthcheck"

// HealthRepository reports Firestore availability for the readiness endpoint.
type HealthRepository struct {
	provider *pfirestore.Provider
}

// NewHealthRepository constructs the Firestore health probe.
func NewHealthRepository(provider *pfirestore.Provider) (*HealthRepository, error) {
	if provider == nil {
		return nil, errors.New("firestore: provider is required")
	}
	return &HealthRepository{provider: provider}, nil
}

// Collect probes Firestore with a single document read. A missing probe
// document still proves the backend answered, so NotFound counts as healthy.
func (r *HealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	report := domain.SystemHealthReport{
		Components: map[string]domain.ComponentHealth{},
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		report.Components["firestore"] = domain.ComponentHealth{Healthy: false, Detail: err.Error()}
		return report, nil
	}

	_, err = client.Collection(ordersCollection).Doc(healthProbeDoc).Get(ctx)
	switch {
	case err == nil, status.Code(err) == codes.NotFound:
		report.Components["firestore"] = domain.ComponentHealth{Healthy: true}
	default:
		report.Components["firestore"] = domain.ComponentHealth{Healthy: false, Detail: err.Error()}
	}
	return report, nil
}

var _ repositories.HealthRepository = (*HealthRepository)(nil)
