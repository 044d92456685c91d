package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/clovermart/api/internal/domain"
)

type stubHealthRepository struct {
	collect func(ctx context.Context) (domain.SystemHealthReport, error)
}

func (s *stubHealthRepository) Collect(ctx context.Context) (domain.SystemHealthReport, error) {
	if s.collect == nil {
		return domain.SystemHealthReport{}, errors.New("collect not configured")
	}
	return s.collect(ctx)
}

func TestHealthReportDerivesStatus(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{
			collect: func(context.Context) (domain.SystemHealthReport, error) {
				return domain.SystemHealthReport{
					Checks: map[string]domain.SystemHealthCheck{
						"firestore": {Status: domain.HealthStatusOK},
						"redis":     {Status: domain.HealthStatusDegraded},
					},
				}, nil
			},
		},
		Clock: fixedClock(now),
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	report, err := svc.HealthReport(context.Background())
	if err != nil {
		t.Fatalf("HealthReport: %v", err)
	}
	if report.Status != domain.HealthStatusDegraded {
		t.Fatalf("status = %s, want degraded", report.Status)
	}
	if !report.GeneratedAt.Equal(now) {
		t.Fatalf("generated at %v, want %v", report.GeneratedAt, now)
	}
}

func TestNextCounterValueDefaultsStep(t *testing.T) {
	svc, err := NewSystemService(SystemServiceDeps{
		HealthRepository: &stubHealthRepository{},
		Counters: &stubCounterRepository{
			next: func(_ context.Context, counterID string, step int64) (int64, error) {
				if counterID != "invoices" || step != 1 {
					t.Fatalf("next(%q, %d)", counterID, step)
				}
				return 42, nil
			},
		},
	})
	if err != nil {
		t.Fatalf("NewSystemService: %v", err)
	}

	value, err := svc.NextCounterValue(context.Background(), CounterCommand{CounterID: "invoices"})
	if err != nil {
		t.Fatalf("NextCounterValue: %v", err)
	}
	if value != 42 {
		t.Fatalf("value = %d", value)
	}
}
