package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/printbound/api/internal/domain"
	"github.com/printbound/api/internal/repositories"
)

// SystemServiceDeps bundles collaborators required to construct a system service.
type SystemServiceDeps struct {
	Health repositories.HealthRepository
	Clock  func() time.Time
}

type systemService struct {
	health repositories.HealthRepository
	clock  func() time.Time
}

var _ SystemService = (*systemService)(nil)

// NewSystemService assembles the utility service backing the readiness endpoint.
func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.Health == nil {
		return nil, errors.New("system service: health repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &systemService{
		health: deps.Health,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *systemService) HealthReport(ctx context.Context) (SystemHealthReport, error) {
	if ctx == nil {
		return SystemHealthReport{}, errors.New("system service: context is required")
	}

	report, err := s.health.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	if report.CheckedAt.IsZero() {
		report.CheckedAt = s.clock()
	} else {
		report.CheckedAt = report.CheckedAt.UTC()
	}
	if report.Components == nil {
		report.Components = map[string]domain.ComponentHealth{}
	}
	return report, nil
}
