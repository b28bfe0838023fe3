package obs

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestInstrument_LabelsByRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Instrument)
	r.Get("/sessions/{sessionID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	for _, path := range []string{"/sessions/" + t.Name(), "/sessions/another-id"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
	}

	// Both requests land on the one pattern series, not on per-id series.
	byPattern := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/sessions/{sessionID}", "200"))
	assert.Equal(t, float64(2), byPattern)

	byRawPath := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/sessions/"+t.Name(), "200"))
	assert.Zero(t, byRawPath)
}
