// Package metrics defines the prometheus collectors exported by dq-core.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dq"

// Metrics holds the dq-core collectors.
type Metrics struct {
	connectorListDuration *prometheus.HistogramVec
	batchesLoaded         *prometheus.CounterVec
	batchRows             *prometheus.GaugeVec
	expectationsEvaluated *prometheus.CounterVec
	validations           *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		// connectorListDuration tracks how long asset discovery listings take.
		connectorListDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "connector_list_duration_seconds",
				Help:      "Duration of data connector object listings in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"connector_class"},
		),
		batchesLoaded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_loaded_total",
				Help:      "Total number of batches materialized by the execution engine",
			},
			[]string{"datasource", "reader_method"},
		),
		// batchRows reports the row count of the most recently loaded batch.
		batchRows: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "batch_rows",
				Help:      "Row count of the last batch loaded per datasource",
			},
			[]string{"datasource"},
		),
		expectationsEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "expectations_evaluated_total",
				Help:      "Total number of expectations evaluated",
			},
			[]string{"expectation_type", "success"},
		),
		validations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "validations_total",
				Help:      "Total number of suite validations",
			},
			[]string{"suite", "success"},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{
			m.connectorListDuration,
			m.batchesLoaded,
			m.batchRows,
			m.expectationsEvaluated,
			m.validations,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// ObserveConnectorList records a listing duration.
func (m *Metrics) ObserveConnectorList(className string, d time.Duration) {
	if m == nil {
		return
	}
	m.connectorListDuration.WithLabelValues(className).Observe(d.Seconds())
}

// BatchLoaded records a materialized batch.
func (m *Metrics) BatchLoaded(datasource, readerMethod string, rows int) {
	if m == nil {
		return
	}
	if readerMethod == "" {
		readerMethod = "in_memory"
	}
	m.batchesLoaded.WithLabelValues(datasource, readerMethod).Inc()
	m.batchRows.WithLabelValues(datasource).Set(float64(rows))
}

// ExpectationEvaluated records one expectation outcome.
func (m *Metrics) ExpectationEvaluated(expectationType string, success bool) {
	if m == nil {
		return
	}
	m.expectationsEvaluated.WithLabelValues(expectationType, strconv.FormatBool(success)).Inc()
}

// ValidationCompleted records one suite validation outcome.
func (m *Metrics) ValidationCompleted(suite string, success bool) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(suite, strconv.FormatBool(success)).Inc()
}
