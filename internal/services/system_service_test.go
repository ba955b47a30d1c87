package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/printbound/api/internal/domain"
)

type stubHealthRepository struct {
	report domain.SystemHealthReport
	err    error
	calls  int
}

func (s *stubHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	s.calls++
	return s.report, s.err
}

func TestSystemServiceHealthReportStampsCheckedAt(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{
			Components: map[string]domain.ComponentHealth{
				"firestore": {Healthy: true},
			},
		},
	}

	svc, err := NewSystemService(SystemServiceDeps{
		Health: repo,
		Clock:  func() time.Time { return now },
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if repo.calls != 1 {
		t.Fatalf("expected one collect call, got %d", repo.calls)
	}
	if !report.CheckedAt.Equal(now) {
		t.Errorf("expected CheckedAt %v, got %v", now, report.CheckedAt)
	}
	if component, ok := report.Components["firestore"]; !ok || !component.Healthy {
		t.Errorf("expected healthy firestore component, got %#v", report.Components)
	}
}

func TestSystemServiceHealthReportPreservesRepositoryTimestamp(t *testing.T) {
	collected := time.Date(2025, 5, 1, 8, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	repo := &stubHealthRepository{
		report: domain.SystemHealthReport{CheckedAt: collected},
	}

	svc, err := NewSystemService(SystemServiceDeps{Health: repo})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if !report.CheckedAt.Equal(collected) {
		t.Errorf("expected CheckedAt preserved, got %v", report.CheckedAt)
	}
	if report.CheckedAt.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %v", report.CheckedAt.Location())
	}
	if report.Components == nil {
		t.Error("expected components map to be initialised")
	}
}

func TestSystemServiceHealthReportPropagatesErrors(t *testing.T) {
	expected := errors.New("firestore unreachable")
	svc, err := NewSystemService(SystemServiceDeps{Health: &stubHealthRepository{err: expected}})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	if _, err := svc.HealthReport(context.Background()); !errors.Is(err, expected) {
		t.Fatalf("expected collect error, got %v", err)
	}
}

func TestNewSystemServiceRequiresHealthRepository(t *testing.T) {
	if _, err := NewSystemService(SystemServiceDeps{}); err == nil {
		t.Fatal("expected error when health repository is missing")
	}
}
