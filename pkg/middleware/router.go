package middleware

import (
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/docrank/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router is a ServeMux whose routes are instrumented with request count,
// latency and in-flight metrics. The route label is the pattern's path, so
// unknown URLs never create new series.
type Router struct {
	mux     *http.ServeMux
	metrics *metrics.Metrics
}

func NewRouter(m *metrics.Metrics) *Router {
	return &Router{mux: http.NewServeMux(), metrics: m}
}

// Handle registers h under a ServeMux pattern such as "GET /api/v1/search".
func (rt *Router) Handle(pattern string, h http.HandlerFunc) {
	rt.mux.Handle(pattern, Instrument(rt.metrics, routeOf(pattern), h))
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mux.ServeHTTP(w, r)
}

// Instrument wraps h with the HTTP collectors of m, labelled with route.
func Instrument(m *metrics.Metrics, route string, h http.Handler) http.Handler {
	labels := prometheus.Labels{"route": route}
	h = promhttp.InstrumentHandlerDuration(m.RequestDuration.MustCurryWith(labels), h)
	h = promhttp.InstrumentHandlerCounter(m.Requests.MustCurryWith(labels), h)
	return promhttp.InstrumentHandlerInFlight(m.InFlight, h)
}

func routeOf(pattern string) string {
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return strings.TrimSpace(path)
	}
	return pattern
}
