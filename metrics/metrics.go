package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "opinit_bots"

type Metricer interface {
	RecordSyncedHeight(monitor string, height int64)
	RecordRetry(monitor string)
	RecordRotation(monitor string)
	RecordResurrected(n int)
	RecordPermanentFailure(n int)
	RecordOutput(index uint64)
	RecordOutputSubmitted(index uint64)
}

type Metrics struct {
	SyncedHeight      *prometheus.GaugeVec
	Retries           *prometheus.CounterVec
	Rotations         *prometheus.CounterVec
	Resurrected       prometheus.Counter
	PermanentFailures prometheus.Counter
	OutputIndex       prometheus.Gauge
	SubmittedIndex    prometheus.Gauge

	registry *prometheus.Registry
}

var _ Metricer = (*Metrics)(nil)

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = Namespace
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	reg.MustRegister(collectors.NewGoCollector())

	factory := promauto.With(reg)
	return &Metrics{
		SyncedHeight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "synced_height",
			Help:      "last block height committed by a monitor",
		}, []string{"monitor"}),
		Retries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "not_indexed_retries_total",
			Help:      "number of times a block's events were not indexed yet",
		}, []string{"monitor"}),
		Rotations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_rotations_total",
			Help:      "number of RPC endpoint rotations",
		}, []string{"monitor"}),
		Resurrected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resurrected_deposits_total",
			Help:      "unconfirmed deposits finalized on a later pass",
		}),
		PermanentFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retired_deposits_total",
			Help:      "unconfirmed deposits retired after a permanent failure",
		}),
		OutputIndex: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "output_index",
			Help:      "index of the last output built",
		}),
		SubmittedIndex: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "submitted_output_index",
			Help:      "index of the last output proposed to L1",
		}),
		registry: reg,
	}
}

func (m *Metrics) RecordSyncedHeight(monitor string, height int64) {
	m.SyncedHeight.WithLabelValues(monitor).Set(float64(height))
}

func (m *Metrics) RecordRetry(monitor string) {
	m.Retries.WithLabelValues(monitor).Inc()
}

func (m *Metrics) RecordRotation(monitor string) {
	m.Rotations.WithLabelValues(monitor).Inc()
}

func (m *Metrics) RecordResurrected(n int) {
	m.Resurrected.Add(float64(n))
}

func (m *Metrics) RecordPermanentFailure(n int) {
	m.PermanentFailures.Add(float64(n))
}

func (m *Metrics) RecordOutput(index uint64) {
	m.OutputIndex.Set(float64(index))
}

func (m *Metrics) RecordOutputSubmitted(index uint64) {
	m.SubmittedIndex.Set(float64(index))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}

type noopMetrics struct{}

var NoopMetrics Metricer = noopMetrics{}

func (noopMetrics) RecordSyncedHeight(string, int64) {}
func (noopMetrics) RecordRetry(string)               {}
func (noopMetrics) RecordRotation(string)            {}
func (noopMetrics) RecordResurrected(int)            {}
func (noopMetrics) RecordPermanentFailure(int)       {}
func (noopMetrics) RecordOutput(uint64)              {}
func (noopMetrics) RecordOutputSubmitted(uint64)     {}
