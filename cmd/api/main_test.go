package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cosmetica/clinic-booking/internal/api/router"
	appconfig "github.com/cosmetica/clinic-booking/internal/config"
	"github.com/cosmetica/clinic-booking/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, bookingMetrics := setupMetrics()
	if handler == nil || bookingMetrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	bookingMetrics.ObserveBooking("public", "created")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "clinic_bookings_attempts_total") {
		t.Fatalf("expected booking counter to be exported")
	}
	if !strings.Contains(rr.Body.String(), "go_goroutines") {
		t.Fatalf("expected runtime collectors")
	}
}

func TestNewServerServesHealth(t *testing.T) {
	srv := newServer(&appconfig.Config{Port: "9999"}, &router.Config{Logger: logging.Discard()})
	if srv.Addr != ":9999" {
		t.Fatalf("unexpected addr %q", srv.Addr)
	}

	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", rr.Code)
	}
}
