package data

// MetricCollection holds counters about the plugin itself. They are logged,
// never published to the agent.
type MetricCollection map[string]interface{}

type MetricsProvider interface {
	Metrics() MetricCollection
}

// MergeMetrics combines the collections of several providers. Later
// providers win on duplicate names; nil providers are skipped.
func MergeMetrics(providers ...MetricsProvider) MetricCollection {
	merged := MetricCollection{}
	for _, p := range providers {
		if p == nil {
			continue
		}
		for k, v := range p.Metrics() {
			merged[k] = v
		}
	}
	return merged
}
