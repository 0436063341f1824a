package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareCountsByStatus(t *testing.T) {
	Init()
	r := chi.NewRouter()
	r.Use(Middleware)
	r.Post("/v1/codes", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"codes":[]}`))
	})
	r.Post("/v1/evaluate", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})

	ok := httpRequestsTotal.WithLabelValues(http.MethodPost, "200")
	bad := httpRequestsTotal.WithLabelValues(http.MethodPost, "400")
	notFound := httpRequestsTotal.WithLabelValues(http.MethodPost, "404")
	okBefore, badBefore, nfBefore := testutil.ToFloat64(ok), testutil.ToFloat64(bad), testutil.ToFloat64(notFound)

	for _, path := range []string{"/v1/codes", "/v1/evaluate", "/v1/missing"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, path, strings.NewReader("{}")))
	}

	require.InDelta(t, okBefore+1, testutil.ToFloat64(ok), 0)
	require.InDelta(t, badBefore+1, testutil.ToFloat64(bad), 0)
	require.InDelta(t, nfBefore+1, testutil.ToFloat64(notFound), 0)
	require.Positive(t, testutil.CollectAndCount(httpRequestDurationSeconds))
}

func TestRoutePatternFallsBackToUnmatched(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/anything", nil)
	require.Equal(t, unmatchedRoute, routePattern(req))
}

func TestStatusWriterKeepsFirstStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	_, err := sw.Write([]byte("body"))
	require.NoError(t, err)
	sw.WriteHeader(http.StatusInternalServerError)
	require.Equal(t, http.StatusOK, sw.status)
}
