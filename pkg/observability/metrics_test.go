package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, c *Collector) string {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestCollector_ObserveOrdering(t *testing.T) {
	c := NewCollector("recipes")

	c.ObserveOrdering("insert", 3)
	c.ObserveOrdering("insert", 1)
	c.ObserveOrdering("reorder", 2)

	body := scrape(t, c)
	assert.Contains(t, body, `recipes_instruction_ordering_operations_total{operation="insert"} 2`)
	assert.Contains(t, body, `recipes_instruction_ordering_operations_total{operation="reorder"} 1`)
	assert.Contains(t, body, `recipes_instruction_ordering_rows_written_sum{operation="insert"} 4`)
}

func TestCollector_MiddlewareUsesRoutePattern(t *testing.T) {
	c := NewCollector("recipes")
	router := chi.NewRouter()
	router.Use(c.Middleware)
	router.Get("/recipe/{recipeId}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/recipe/r-1", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)

	assert.Contains(t, scrape(t, c), `recipes_http_requests_total{method="GET",route="/recipe/{recipeId}",status="404"} 1`)
}
