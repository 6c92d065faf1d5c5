package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/seu-repo/mirror-voice/internal/mocks"
)

type fakeQueue struct{ up bool }

func (f fakeQueue) Connected() bool { return f.up }

type fakeBreaker string

func (f fakeBreaker) BreakerState() string { return string(f) }

type fakeSessions int

func (f fakeSessions) ClientCount() int { return int(f) }

func TestReady_AllHealthy(t *testing.T) {
	svc := NewService(&Config{
		Version:    "v1",
		Cache:      mocks.NewMockCache(),
		Queue:      fakeQueue{up: true},
		Completion: fakeBreaker("closed"),
		Sessions:   fakeSessions(2),
	}, zap.NewNop())

	resp := svc.Ready(context.Background())

	if !resp.Ready || resp.Status != StatusHealthy {
		t.Fatalf("expected ready and healthy, got %+v", resp)
	}
	if len(resp.Checks) != 4 {
		t.Errorf("expected 4 checks, got %d", len(resp.Checks))
	}
	if got := resp.Checks["push_channel"].Message; got != "2 connected" {
		t.Errorf("unexpected push channel message %q", got)
	}
	if resp.Checks["cache"].Name != "cache" {
		t.Errorf("expected check name to be filled in, got %q", resp.Checks["cache"].Name)
	}
}

func TestReady_DegradedDependenciesStayReady(t *testing.T) {
	cache := mocks.NewMockCache()
	cache.PingFunc = func() error { return errors.New("connection refused") }
	svc := NewService(&Config{
		Cache:      cache,
		Queue:      fakeQueue{up: false},
		Completion: fakeBreaker("open"),
	}, zap.NewNop())

	resp := svc.Ready(context.Background())

	if !resp.Ready {
		t.Error("degraded dependencies must not fail readiness")
	}
	if resp.Status != StatusDegraded {
		t.Errorf("expected degraded, got '%s'", resp.Status)
	}
	for _, name := range []string{"cache", "relay", "completion"} {
		if resp.Checks[name].Status != StatusDegraded {
			t.Errorf("expected %s degraded, got %s", name, resp.Checks[name].Status)
		}
	}
}

func TestReady_PanickingCheckerIsUnhealthy(t *testing.T) {
	svc := NewService(&Config{}, zap.NewNop())
	svc.RegisterChecker("speech", func(ctx context.Context) CheckResult {
		panic("boom")
	})

	resp := svc.Ready(context.Background())

	if resp.Ready {
		t.Error("expected not ready")
	}
	if resp.Checks["speech"].Status != StatusUnhealthy {
		t.Errorf("expected unhealthy, got %s", resp.Checks["speech"].Status)
	}
}

func TestReadyHandler_Unhealthy(t *testing.T) {
	svc := NewService(&Config{}, zap.NewNop())
	svc.RegisterChecker("speech", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusUnhealthy}
	})

	app := fiber.New()
	NewFiberHandler(svc).RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/ready", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestLiveHandler(t *testing.T) {
	svc := NewService(&Config{Version: "v1.2.3"}, zap.NewNop())
	app := fiber.New()
	NewFiberHandler(svc).RegisterRoutes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/health/live", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var body HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Version != "v1.2.3" || body.Status != StatusHealthy {
		t.Errorf("unexpected body %+v", body)
	}
}
