// Package metrics exposes engine and HTTP counters in Prometheus text
// format on a dedicated listener.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	vmetrics "github.com/VictoriaMetrics/metrics"
)

// MetricsServer serves the Prometheus scrape endpoint.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr. An empty addr returns a
// server whose ListenAndServe is a no-op, so callers need not special-case a
// disabled metrics listener.
func New(addr string) (*MetricsServer, error) {
	if addr == "" {
		return &MetricsServer{}, nil
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, r *http.Request) {
		vmetrics.WritePrometheus(w, true)
	})

	return &MetricsServer{
		srv: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
	}, nil
}

// ListenAndServe blocks serving scrapes until Shutdown.
func (m *MetricsServer) ListenAndServe() error {
	if m.srv == nil {
		return nil
	}
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the listener.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	if m.srv == nil {
		return nil
	}
	return m.srv.Shutdown(ctx)
}

// IncOperation counts one completed market operation.
func IncOperation(op string) {
	l := fmt.Sprintf(`haulbid_operations_total{op=%q}`, op)
	vmetrics.GetOrCreateCounter(l).Inc()
}

// IncOperationError counts one rejected market operation.
func IncOperationError(op string) {
	l := fmt.Sprintf(`haulbid_operation_errors_total{op=%q}`, op)
	vmetrics.GetOrCreateCounter(l).Inc()
}

// IncRevealCallback counts oracle callbacks by outcome.
func IncRevealCallback(outcome string) {
	l := fmt.Sprintf(`haulbid_reveal_callbacks_total{outcome=%q}`, outcome)
	vmetrics.GetOrCreateCounter(l).Inc()
}
