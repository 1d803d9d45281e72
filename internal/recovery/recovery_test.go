package recovery

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/secops-bot/engine/internal/models"
)

func TestRunRetriesThenSucceeds(t *testing.T) {
	m := New(0, slog.Default())
	attempts := 0
	result, err := m.Run(context.Background(), models.ToolClassWeather, func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", errors.New("boom")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result != "ok" || attempts != 2 {
		t.Fatalf("expected success on 2nd attempt, got result=%q attempts=%d", result, attempts)
	}
	if !m.Available(models.ToolClassWeather) {
		t.Fatal("expected class available after eventual success")
	}
}

func TestRunExhaustsRetriesAndReturnsLastError(t *testing.T) {
	m := New(0, slog.Default())
	wantErr := errors.New("persistent failure")
	_, err := m.Run(context.Background(), models.ToolClassDocSearch, func(ctx context.Context) (string, error) {
		return "", wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped persistent failure, got %v", err)
	}
}

func TestAvailableGoesFalseAfterThresholdErrors(t *testing.T) {
	m := New(0, slog.Default())
	for i := 0; i < 6; i++ {
		m.recordError(models.ToolClassEDR, errors.New("fail"))
	}
	if m.Available(models.ToolClassEDR) {
		t.Fatal("expected EDR unavailable after exceeding its threshold")
	}
}

func TestFallbackEDRStatusVsDetails(t *testing.T) {
	m := New(0, slog.Default())
	if got := m.Fallback(models.ToolClassEDR, "device_status"); got == "" {
		t.Fatal("expected non-empty EDR status fallback")
	}
	if got := m.Fallback(models.ToolClassEDR, "device_details"); got == "" {
		t.Fatal("expected non-empty EDR details fallback")
	}
	if m.Fallback(models.ToolClassEDR, "status") == m.Fallback(models.ToolClassEDR, "details") {
		t.Fatal("expected status and details fallback text to differ")
	}
}

func TestHealthSnapshotReportsCounts(t *testing.T) {
	m := New(0, slog.Default())
	_, _ = m.Run(context.Background(), models.ToolClassWeather, func(ctx context.Context) (string, error) {
		return "", errors.New("fail")
	})
	health := m.HealthSnapshot()
	if health.Counts[models.ToolClassWeather] == 0 {
		t.Fatal("expected non-zero error count for weather class")
	}
}
