package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func ok(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("down") }

func serve(t *testing.T, h *Handler, path string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	e := echo.New()
	h.RegisterRoutes(e)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

	var resp HealthResponse
	if path == "/health/ready" {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode: %v (body %s)", err, rec.Body.String())
		}
	}
	return rec, resp
}

func TestLiveness(t *testing.T) {
	rec, _ := serve(t, NewHandler(nil, "test"), "/health")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		components []Component
		wantCode   int
		wantStatus Status
	}{
		{
			name:       "no components",
			wantCode:   http.StatusOK,
			wantStatus: StatusHealthy,
		},
		{
			name: "all healthy",
			components: []Component{
				{Name: "command_socket", Critical: true, Check: ok},
				{Name: "database", Critical: true, Check: ok},
				{Name: "perception", Check: ok},
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusHealthy,
		},
		{
			name: "optional failure degrades",
			components: []Component{
				{Name: "database", Critical: true, Check: ok},
				{Name: "perception", Check: failing},
			},
			wantCode:   http.StatusOK,
			wantStatus: StatusDegraded,
		},
		{
			name: "critical failure is unhealthy",
			components: []Component{
				{Name: "database", Critical: true, Check: failing},
				{Name: "perception", Check: failing},
			},
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: StatusUnhealthy,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := serve(t, NewHandler(tt.components, "test"), "/health/ready")
			if rec.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", rec.Code, tt.wantCode)
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", resp.Status, tt.wantStatus)
			}
			if len(resp.Components) != len(tt.components) {
				t.Errorf("components = %d, want %d", len(resp.Components), len(tt.components))
			}
			if resp.Version != "test" {
				t.Errorf("version = %q", resp.Version)
			}
		})
	}
}

func TestCheck_ReportsErrors(t *testing.T) {
	h := NewHandler([]Component{
		{Name: "redis", Check: failing},
		{Name: "database", Critical: true, Check: failing},
	}, "test")

	got := h.Check(context.Background())
	if got["redis"].Status != StatusDegraded || got["redis"].Error != "down" {
		t.Errorf("redis = %+v", got["redis"])
	}
	if got["database"].Status != StatusUnhealthy {
		t.Errorf("database = %+v", got["database"])
	}
}

func TestCheck_Deadline(t *testing.T) {
	h := NewHandler([]Component{
		{Name: "slow", Check: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}},
	}, "test")
	h.timeout = 20 * time.Millisecond

	start := time.Now()
	got := h.Check(context.Background())
	if time.Since(start) > time.Second {
		t.Fatal("check did not honor the deadline")
	}
	if got["slow"].Status != StatusDegraded {
		t.Errorf("slow = %+v", got["slow"])
	}
}

func TestRequestCounters(t *testing.T) {
	h := NewHandler(nil, "test")
	h.IncrementRequests()
	h.IncrementConnections()
	h.IncrementConnections()
	h.DecrementConnections()

	_, resp := serve(t, h, "/health/ready")
	if resp.Stats.Requests.TotalRequests != 1 {
		t.Errorf("total = %d", resp.Stats.Requests.TotalRequests)
	}
	if resp.Stats.Requests.ActiveConnections != 1 {
		t.Errorf("active = %d", resp.Stats.Requests.ActiveConnections)
	}
}
