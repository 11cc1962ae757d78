// Package metrics exposes the server's Prometheus counters and gauges,
// following this corpus's pattern of promauto-registered globals served
// over a gorilla/mux router mounted at /metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "miniredis"

var (
	CommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Commands processed, by command name.",
		},
		[]string{"command"},
	)

	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Currently open client connections.",
		},
	)

	PubSubMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pubsub_messages_total",
			Help:      "Messages delivered to subscribers, by channel.",
		},
		[]string{"channel"},
	)
)

// Server serves the /metrics endpoint on its own listener, independent
// of the RESP listener, so scraping never contends with client traffic.
type Server struct {
	httpServer *http.Server
}

// NewServer builds a metrics HTTP server bound to addr. It does not
// start listening until Start is called.
func NewServer(addr string) *Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return &Server{httpServer: &http.Server{Addr: addr, Handler: router}}
}

// Start begins serving in the background. Errors other than a clean
// shutdown are sent on the returned channel.
func (s *Server) Start() <-chan error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()
	return errCh
}

// Shutdown gracefully stops the metrics server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
