// Package metrics exposes run counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roach88/hlaservices/internal/monitor"
)

const namespace = "hlaservices"

// Collector holds the monitor's Prometheus collectors. It implements
// monitor.Recorder.
type Collector struct {
	events       *prometheus.CounterVec
	reports      *prometheus.CounterVec
	arming       *prometheus.CounterVec
	verdicts     *prometheus.CounterVec
	observed     *prometheus.GaugeVec
	observations *prometheus.CounterVec
}

var _ monitor.Recorder = (*Collector)(nil)

// NewCollector creates unregistered collectors.
func NewCollector() *Collector {
	return &Collector{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Federation callbacks processed by the monitor, by kind.",
			},
			[]string{"kind"},
		),
		reports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reports_total",
				Help:      "Interactions received, by handling outcome.",
			},
			[]string{"outcome"},
		),
		arming: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "arming_total",
				Help:      "Service reporting arming attempts, by outcome.",
			},
			[]string{"outcome"},
		),
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verdicts_total",
				Help:      "Completed runs, by verdict.",
			},
			[]string{"outcome"},
		),
		observed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "services_observed",
				Help:      "Catalogue services observed in the current run, by source.",
			},
			[]string{"source"},
		),
		observations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "observations_total",
				Help:      "Services marked observed, by source.",
			},
			[]string{"source"},
		),
	}
}

// Register attaches the collectors to reg. Collectors already registered
// are skipped.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, collector := range []prometheus.Collector{
		c.events,
		c.reports,
		c.arming,
		c.verdicts,
		c.observed,
		c.observations,
	} {
		if err := reg.Register(collector); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				continue
			}
			return err
		}
	}
	return nil
}

// RecordEvent counts the event and, for interactions, its outcome.
func (c *Collector) RecordEvent(rec monitor.EventRecord) {
	c.events.WithLabelValues(rec.Kind).Inc()
	if rec.Kind == monitor.EventInteractionReceived.String() {
		c.reports.WithLabelValues(rec.Outcome).Inc()
	}
}

// RecordObservation counts a newly observed service.
func (c *Collector) RecordObservation(rec monitor.ObservationRecord) {
	c.observed.WithLabelValues(rec.Source.String()).Inc()
	c.observations.WithLabelValues(rec.Source.String()).Inc()
}

// RecordArming counts an arming attempt.
func (c *Collector) RecordArming(ok bool) {
	outcome := "failed"
	if ok {
		outcome = "armed"
	}
	c.arming.WithLabelValues(outcome).Inc()
}

// ObserveVerdict counts a finished run. outcome is "passed", "failed" or
// "inconclusive".
func (c *Collector) ObserveVerdict(outcome string) {
	c.verdicts.WithLabelValues(outcome).Inc()
}

// ResetRun clears the per-run gauge.
func (c *Collector) ResetRun() {
	c.observed.Reset()
}

// Server serves /metrics on a side listener while a run is in progress.
type Server struct {
	srv    *http.Server
	logger *slog.Logger
	errc   chan error
}

// Start listens on addr and serves the metrics gathered by g. The listener
// runs until Shutdown.
func Start(addr string, g prometheus.Gatherer, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	s := &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      15 * time.Second,
		},
		logger: logger,
		errc:   make(chan error, 1),
	}
	go func() {
		logger.Info("metrics server listening", "address", addr)
		err := s.srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server exited", "error", err)
		} else {
			err = nil
		}
		s.errc <- err
	}()
	return s
}

// Shutdown stops the listener and returns the serve error, if any.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Warn("metrics server shutdown", "error", err)
		return err
	}
	return <-s.errc
}
