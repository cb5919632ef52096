package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// PrometheusHandler returns an http.HandlerFunc that writes metrics in
// Prometheus text exposition format (version 0.0.4). It does not require the
// Prometheus client library; metrics are formatted manually.
func PrometheusHandler(collector *Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := collector.Stats()
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

		uptimeSeconds := time.Since(collector.startTime).Seconds()

		writeMetric(w, "netdiscover_targets_expanded_total",
			"Total number of endpoints expanded from the target list.",
			"counter", stats.Expanded)

		writeMetric(w, "netdiscover_alive_total",
			"Total number of endpoints found alive by Stage 1.",
			"counter", stats.Alive)

		writeMetric(w, "netdiscover_classified_total",
			"Total number of endpoints classified by Stage 2.",
			"counter", stats.Classified)

		writeMetric(w, "netdiscover_collected_total",
			"Total number of endpoints successfully collected by Stage 3.",
			"counter", stats.Collected)

		writeMetric(w, "netdiscover_reconciled_total",
			"Total number of assets reconciled into the inventory.",
			"counter", stats.Reconciled)

		writeMetric(w, "netdiscover_classified_but_not_collected_total",
			"Total number of endpoints classified but never successfully collected.",
			"counter", stats.ClassifiedButNotCollected)

		writeMetric(w, "netdiscover_dropped_unreachable_total",
			"Total number of endpoints dropped as unreachable in Stage 1.",
			"counter", stats.DroppedUnreachable)

		writeMetric(w, "netdiscover_retry_total",
			"Total number of collector retries across every stage.",
			"counter", stats.RetryCount)

		writeMetric(w, "netdiscover_classify_cache_hits_total",
			"Total number of classification cache hits.",
			"counter", stats.CacheHits)

		writeMetric(w, "netdiscover_classify_cache_misses_total",
			"Total number of classification cache misses.",
			"counter", stats.CacheMisses)

		writeMetricFloat(w, "netdiscover_classify_cache_hit_rate",
			"Classification cache hit rate percentage.",
			"gauge", stats.CacheHitRate)

		writeMetric(w, "netdiscover_active_endpoints",
			"Number of endpoints currently in flight somewhere in the pipeline.",
			"gauge", stats.ActiveEndpoints)

		writeMetricFloat(w, "netdiscover_uptime_seconds",
			"Number of seconds since the run started.",
			"gauge", uptimeSeconds)

		// --- Labeled metrics ---

		writeCounterVec(w, "netdiscover_stage_errors_total",
			"Total number of errors by pipeline stage and error kind.",
			collector.StageErrors())

		writeHistogramVec(w, "netdiscover_stage_duration_seconds",
			"Per-stage duration in seconds.",
			collector.StageLatency())

		writeCounterVec(w, "netdiscover_collector_results_total",
			"Total collector attempts per method and outcome.",
			collector.CollectorResults())

		writeGaugeVec(w, "netdiscover_stage_active",
			"Number of endpoints currently being worked on in each pipeline stage.",
			collector.ActiveByStage())
	}
}

// writeMetric writes a single integer metric in Prometheus text format.
func writeMetric(w http.ResponseWriter, name, help, metricType string, value int64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
	fmt.Fprintf(w, "%s %d\n", name, value)
}

// writeMetricFloat writes a single float64 metric in Prometheus text format.
func writeMetricFloat(w http.ResponseWriter, name, help, metricType string, value float64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s %s\n", name, metricType)
	fmt.Fprintf(w, "%s %g\n", name, value)
}

// formatLabels formats a label map as Prometheus label string, e.g. {provider="bar",type="foo"}.
func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, labels[k])
	}
	b.WriteByte('}')
	return b.String()
}

// writeCounterVec writes a labeled counter vec in Prometheus text format.
func writeCounterVec(w http.ResponseWriter, name, help string, cv *counterVec) {
	entries := cv.snapshot()
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	for _, e := range entries {
		fmt.Fprintf(w, "%s%s %d\n", name, formatLabels(e.labels), e.value)
	}
}

// writeHistogramVec writes a labeled histogram vec in Prometheus text format.
func writeHistogramVec(w http.ResponseWriter, name, help string, hv *histogramVec) {
	histograms := hv.snapshot()
	if len(histograms) == 0 {
		return
	}
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s histogram\n", name)
	for _, h := range histograms {
		labels := formatLabels(h.labels)
		// Cumulative bucket counts.
		var cumulative int64
		for i, bound := range h.buckets {
			cumulative += h.counts[i]
			le := fmt.Sprintf("%g", bound)
			if len(h.labels) == 0 {
				fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", name, le, cumulative)
			} else {
				// Insert le into existing labels.
				lbl := formatLabelsWithLe(h.labels, le)
				fmt.Fprintf(w, "%s_bucket%s %d\n", name, lbl, cumulative)
			}
		}
		// +Inf bucket.
		if len(h.labels) == 0 {
			fmt.Fprintf(w, "%s_bucket{le=\"+Inf\"} %d\n", name, h.count)
		} else {
			lbl := formatLabelsWithLe(h.labels, "+Inf")
			fmt.Fprintf(w, "%s_bucket%s %d\n", name, lbl, h.count)
		}
		fmt.Fprintf(w, "%s_sum%s %g\n", name, labels, h.sum)
		fmt.Fprintf(w, "%s_count%s %d\n", name, labels, h.count)
	}
}

// formatLabelsWithLe formats labels with an additional "le" label for histogram buckets.
func formatLabelsWithLe(labels map[string]string, le string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", k, labels[k])
	}
	fmt.Fprintf(&b, ",le=%q", le)
	b.WriteByte('}')
	return b.String()
}

// writeGaugeVec writes a labeled gauge vec in Prometheus text format.
func writeGaugeVec(w http.ResponseWriter, name, help string, gv *gaugeVec) {
	entries := gv.snapshot()
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s gauge\n", name)
	for _, e := range entries {
		fmt.Fprintf(w, "%s%s %g\n", name, formatLabels(e.labels), e.value)
	}
}
