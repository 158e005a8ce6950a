package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("write metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestEchoMiddleware_UsesRouteTemplate(t *testing.T) {
	e := echo.New()
	e.Use(EchoMiddleware())
	e.GET("/actor/:type/:token/validate", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	series := httpRequestsTotal.WithLabelValues(http.MethodGet, "/actor/:type/:token/validate", "204")
	before := counterValue(t, series)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/actor/tenant/secret-token/validate", nil))

	if got := counterValue(t, series); got != before+1 {
		t.Fatalf("counter = %v, want %v", got, before+1)
	}
}

func TestObserveTransition(t *testing.T) {
	series := policyTransitions.WithLabelValues("ALL_COMPLETE", "ok")
	before := counterValue(t, series)
	ObserveTransition("ALL_COMPLETE", "ok")
	if got := counterValue(t, series); got != before+1 {
		t.Fatalf("transitions = %v", got)
	}
}
