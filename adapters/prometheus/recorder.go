// Package prometheus exports manager metrics through client_golang.
package prometheus

import (
	"context"
	"net/http"
	"strings"

	"github.com/anishxyz/integrations/core"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "integrations"

var labelNames = []string{"metric", "operation", "status", "service_key", "container_key"}

// DurationBuckets are in milliseconds, matching the manager's histograms.
var DurationBuckets = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Recorder is a core.MetricsRecorder backed by one counter vector and one
// histogram vector. The manager's dotted metric name becomes the "metric"
// label.
type Recorder struct {
	registry  *prometheus.Registry
	events    *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewRecorder registers the collectors on registerer, or on a fresh registry
// when registerer is nil.
func NewRecorder(registerer prometheus.Registerer) (*Recorder, error) {
	recorder := &Recorder{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Credential manager operations by outcome.",
		}, labelNames),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_milliseconds",
			Help:      "Credential manager operation latency.",
			Buckets:   DurationBuckets,
		}, labelNames),
	}
	if registerer == nil {
		recorder.registry = prometheus.NewRegistry()
		registerer = recorder.registry
	}
	for _, collector := range []prometheus.Collector{recorder.events, recorder.durations} {
		if err := registerer.Register(collector); err != nil {
			return nil, err
		}
	}
	return recorder, nil
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if r == nil || value <= 0 {
		return
	}
	r.events.WithLabelValues(labelValues(name, tags)...).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	if r == nil {
		return
	}
	r.durations.WithLabelValues(labelValues(name, tags)...).Observe(value)
}

// Handler serves the recorder's own registry, or the default gatherer when
// the recorder was registered elsewhere.
func (r *Recorder) Handler() http.Handler {
	if r == nil || r.registry == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func labelValues(name string, tags map[string]string) []string {
	values := make([]string, len(labelNames))
	values[0] = strings.TrimSpace(name)
	for i, label := range labelNames[1:] {
		values[i+1] = strings.TrimSpace(tags[label])
	}
	return values
}

var _ core.MetricsRecorder = (*Recorder)(nil)
