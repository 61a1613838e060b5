package prometheus

import (
	"context"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	defaultReadHeaderTimeout = 10 * time.Second

	// DefaultPath is where metrics are served.
	DefaultPath = "/metrics"
)

// Exporter serves Prometheus metrics over HTTP.
type Exporter struct {
	addr     string
	path     string
	registry *prometheus.Registry

	mu      sync.Mutex
	server  *http.Server
	started bool
	closed  bool
}

// NewExporter creates an exporter with every session metric and the Go
// runtime collectors registered.
func NewExporter(addr, path string) *Exporter {
	reg := prometheus.NewRegistry()
	for _, collector := range allMetrics {
		reg.MustRegister(collector)
	}
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewExporterWithRegistry(addr, path, reg)
}

// NewExporterWithRegistry creates an exporter serving a caller-owned registry.
func NewExporterWithRegistry(addr, path string, registry *prometheus.Registry) *Exporter {
	if path == "" {
		path = DefaultPath
	}
	return &Exporter{addr: addr, path: path, registry: registry}
}

// Registry returns the underlying Prometheus registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler returns an http.Handler for the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Start serves metrics until Shutdown. It blocks and returns
// http.ErrServerClosed after a graceful shutdown.
func (e *Exporter) Start() error {
	ln, err := net.Listen("tcp", e.addr)
	if err != nil {
		return err
	}
	return e.Serve(ln)
}

// Serve is Start on an existing listener.
func (e *Exporter) Serve(ln net.Listener) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		_ = ln.Close()
		return http.ErrServerClosed
	}
	if e.started {
		e.mu.Unlock()
		_ = ln.Close()
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle(e.path, e.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	e.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: defaultReadHeaderTimeout,
	}
	e.started = true
	server := e.server
	e.mu.Unlock()

	return server.Serve(ln)
}

// Shutdown gracefully stops the exporter. A later Start returns
// http.ErrServerClosed.
func (e *Exporter) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.closed = true
	if e.server != nil && e.started {
		e.started = false
		return e.server.Shutdown(ctx)
	}
	return nil
}

// MustRegister registers additional collectors. Panics if registration fails.
func (e *Exporter) MustRegister(cs ...prometheus.Collector) {
	e.registry.MustRegister(cs...)
}
