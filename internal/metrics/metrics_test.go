package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareLabelsByRoutePattern(t *testing.T) {
	router := chi.NewRouter()
	router.Use(Middleware)
	router.Get("/api/recipe/recipes/{recipeID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/recipe/recipes/{recipeID}", "418"))
	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/recipe/recipes/"+id, nil))
		require.Equal(t, http.StatusTeapot, rec.Code)
	}
	after := testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/recipe/recipes/{recipeID}", "418"))
	assert.Equal(t, 2.0, after-before)
}

func TestRecordImageDiscard(t *testing.T) {
	okBefore := testutil.ToFloat64(imageDiscards.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(imageDiscards.WithLabelValues("error"))

	RecordImageDiscard(nil)
	RecordImageDiscard(errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(imageDiscards.WithLabelValues("ok"))-okBefore)
	assert.Equal(t, 1.0, testutil.ToFloat64(imageDiscards.WithLabelValues("error"))-errBefore)
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordImageDiscard(nil)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "recipe_api_images_discards_total")
}
