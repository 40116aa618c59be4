package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/mpas/sequencer/common/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Telemetry serves pprof and Prometheus metrics on side ports
type Telemetry struct {
	log      *logger.Logger
	registry *prometheus.Registry
	servers  []*http.Server
}

// Options selects which endpoints to expose
type Options struct {
	EnablePprof   bool
	PprofPort     int
	EnableMetrics bool
	MetricsPort   int
}

// New creates telemetry components
func New(opts Options, registry *prometheus.Registry, log *logger.Logger) *Telemetry {
	t := &Telemetry{
		log:      log,
		registry: registry,
	}

	if opts.EnablePprof {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
		t.servers = append(t.servers, &http.Server{
			Addr:    fmt.Sprintf("localhost:%d", opts.PprofPort),
			Handler: mux,
		})
	}

	if opts.EnableMetrics && registry != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", t.MetricsHandler())
		t.servers = append(t.servers, &http.Server{
			Addr:    fmt.Sprintf(":%d", opts.MetricsPort),
			Handler: mux,
		})
	}

	return t
}

// MetricsHandler exposes the registry in the Prometheus text format
func (t *Telemetry) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(t.registry, promhttp.HandlerOpts{Registry: t.registry})
}

// Start launches the telemetry listeners in the background
func (t *Telemetry) Start(ctx context.Context) error {
	for _, srv := range t.servers {
		srv := srv
		go func() {
			t.log.Info("telemetry server starting", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				t.log.Warn("telemetry server error", "addr", srv.Addr, "error", err)
			}
		}()
	}
	return nil
}

// Shutdown stops the telemetry listeners
func (t *Telemetry) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var errs []error
	for _, srv := range t.servers {
		if err := srv.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
		}
	}
	return errors.Join(errs...)
}
