package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_PassesThroughStatus(t *testing.T) {
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/workspace", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestMetrics_InFlightReturnsToZero(t *testing.T) {
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if val := testutil.ToFloat64(requestsInFlight); val < 1 {
			t.Errorf("in-flight during request: got %f, want >= 1", val)
		}
	}))

	before := testutil.ToFloat64(requestsInFlight)
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/workspace", nil))

	if after := testutil.ToFloat64(requestsInFlight); after != before {
		t.Errorf("in-flight after request: got %f, want %f", after, before)
	}
}

func TestMetrics_LabelsByRoutePattern(t *testing.T) {
	mux := chi.NewRouter()
	mux.Use(Metrics)
	mux.Delete("/v1/sheets/{sheet_code}", func(w http.ResponseWriter, r *http.Request) {})

	counter := requestsTotal.WithLabelValues(http.MethodDelete, "/v1/sheets/{sheet_code}", "2xx")
	before := testutil.ToFloat64(counter)

	req := httptest.NewRequest(http.MethodDelete, "/v1/sheets/550e8400-e29b-41d4-a716-446655440000", nil)
	mux.ServeHTTP(httptest.NewRecorder(), req)

	if delta := testutil.ToFloat64(counter) - before; delta != 1 {
		t.Errorf("requests_total delta: got %f, want 1", delta)
	}
}

func TestStatusClass(t *testing.T) {
	tests := map[int]string{200: "2xx", 201: "2xx", 404: "4xx", 503: "5xx", 0: "other", 999: "other"}
	for status, want := range tests {
		if got := statusClass(status); got != want {
			t.Errorf("statusClass(%d): got %q, want %q", status, got, want)
		}
	}
}

func TestMetrics_SkipsScrapes(t *testing.T) {
	handler := Metrics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if val := testutil.ToFloat64(requestsInFlight); val != 0 {
			t.Errorf("in-flight during scrape: got %f, want 0", val)
		}
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
}
