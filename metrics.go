package sftpclient

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the client's Prometheus collectors. A nil *metrics records
// nothing.
type metrics struct {
	operations      *prometheus.CounterVec
	duration        *prometheus.HistogramVec
	connectAttempts *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}

	m := &metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sftpclient_operations_total",
				Help: "Total number of SFTP operations by result",
			},
			[]string{"op", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sftpclient_operation_duration_seconds",
				Help:    "SFTP operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		connectAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sftpclient_connect_attempts_total",
				Help: "Total number of connection attempts by result",
			},
			[]string{"result"},
		),
	}

	m.operations = register(reg, m.operations)
	m.duration = register(reg, m.duration)
	m.connectAttempts = register(reg, m.connectAttempts)
	return m
}

// register adds c to reg, reusing the collector already registered by
// another client on the same registry.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(op, result(err)).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metrics) connectAttempt(err error) {
	if m == nil {
		return
	}
	m.connectAttempts.WithLabelValues(result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
