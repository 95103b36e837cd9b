package core

import "context"

const metricNamespace = "integrations"

// CounterName and HistogramName give the metric names recorded for a manager
// operation, for example integrations.session.total.
func CounterName(operation string) string {
	return metricNamespace + "." + normalizeOperation(operation) + ".total"
}

func HistogramName(operation string) string {
	return metricNamespace + "." + normalizeOperation(operation) + ".duration_ms"
}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var _ MetricsRecorder = NopMetricsRecorder{}
