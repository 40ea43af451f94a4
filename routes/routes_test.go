package routes

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/sharath018/health-management-backend/config"
	"github.com/sharath018/health-management-backend/internal/access"
	"github.com/sharath018/health-management-backend/middleware"
)

func init() { gin.SetMode(gin.TestMode) }

func testConfig() *config.Config {
	return &config.Config{
		CORSOrigins:           []string{"http://localhost:3000"},
		RateLimitPerMinute:    100,
		OTPRateLimitPerMinute: 5,
		UploadPath:            "./uploads",
	}
}

func TestSetup_RegistersSurface(t *testing.T) {
	r := NewRouter(Deps{Config: testConfig()}, Handlers{})

	have := map[string]bool{}
	for _, ri := range r.Routes() {
		have[ri.Method+" "+ri.Path] = true
	}
	for _, want := range []string{
		"POST /api/v1/auth/otp/request",
		"POST /api/v1/auth/otp/verify",
		"GET /api/v1/me",
		"POST /api/v1/admins",
		"PATCH /api/v1/questions/:id",
		"POST /api/v1/diet-plans/status",
		"GET /api/v1/diet-plans/:id/pdf",
		"POST /api/v1/exercises/:id/status",
		"GET /api/v1/lab-reports/export",
		"GET /api/v1/health-status/current",
		"GET /api/v1/doctor/dashboard/export",
		"PATCH /api/v1/doctor/patients/:id/assign",
		"GET /api/v1/notifications/stream",
		"PATCH /api/v1/notifications/read-all",
		"GET /api/v1/audit-logs",
		"GET /healthz",
	} {
		if !have[want] {
			t.Errorf("route %q not registered", want)
		}
	}
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name string
		ping func() error
		want int
	}{
		{"no probe", nil, http.StatusOK},
		{"db up", func() error { return nil }, http.StatusOK},
		{"db down", func() error { return errors.New("refused") }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(Deps{Config: testConfig(), Ping: tt.ping}, Handlers{})
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	r := NewRouter(Deps{Config: testConfig()}, Handlers{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/lab-reports", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestSetup_GatedResourcesAreRegistered(t *testing.T) {
	NewRouter(Deps{Config: testConfig()}, Handlers{})

	gated := middleware.GatedResources()
	if err := access.ValidateRegistry(access.DefaultGroups(), gated); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, r := range gated {
		if r == access.ResourcePatient {
			found = true
		}
	}
	if !found {
		t.Fatal("patient assignment route is not gated on the patient resource")
	}
}
