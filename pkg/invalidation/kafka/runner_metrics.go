package kafka

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metricSet holds the consumer-side collectors. They live on the registerer
// passed to New so tests can use a throwaway registry per runner.
type metricSet struct {
	msgs       *prometheus.CounterVec
	apply      *prometheus.CounterVec
	proc       *prometheus.HistogramVec
	lagGauge   prometheus.Gauge
	generation prometheus.Gauge
}

func newMetricSet(r prometheus.Registerer) *metricSet {
	m := &metricSet{
		msgs: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elev_inval_msgs_total",
				Help: "Index change messages consumed, by result.",
			},
			[]string{"result"},
		),
		apply: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "elev_inval_apply_total",
				Help: "Result cache actions taken for index change messages.",
			},
			[]string{"action"},
		),
		proc: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "elev_inval_processing_seconds",
				Help:    "Time to apply one message to the result cache.",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
			},
			[]string{"op"},
		),
		lagGauge: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "elev_inval_lag_seconds",
				Help: "Approximate lag: now - message.timestamp.",
			},
		),
		generation: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "elev_inval_generation",
				Help: "Last index generation applied from a regenerated event.",
			},
		),
	}
	if r != nil {
		r.MustRegister(m.msgs, m.apply, m.proc, m.lagGauge, m.generation)
	}
	return m
}

func (m *metricSet) message(err error) {
	if err != nil {
		m.msgs.WithLabelValues("error").Inc()
		return
	}
	m.msgs.WithLabelValues("ok").Inc()
}

func (m *metricSet) lag(ts time.Time) {
	if !ts.IsZero() {
		m.lagGauge.Set(time.Since(ts).Seconds())
	}
}
