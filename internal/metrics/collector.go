package metrics

import (
	"math"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

// labeledCounter tracks a counter value for a specific label combination.
type labeledCounter struct {
	labels map[string]string
	value  int64
}

// histogram tracks a distribution of observed values using pre-defined buckets.
type histogram struct {
	mu      sync.Mutex
	labels  map[string]string
	buckets []float64 // upper bounds, sorted ascending
	counts  []int64   // count per bucket
	sum     float64
	count   int64
}

func newHistogram(labels map[string]string, buckets []float64) *histogram {
	sorted := make([]float64, len(buckets))
	copy(sorted, buckets)
	sort.Float64s(sorted)
	return &histogram{
		labels:  labels,
		buckets: sorted,
		counts:  make([]int64, len(sorted)),
	}
}

func (h *histogram) observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sum += v
	h.count++
	for i, bound := range h.buckets {
		if v <= bound {
			h.counts[i]++
			break
		}
	}
}

// counterVec is a thread-safe collection of labeled counters.
type counterVec struct {
	mu       sync.RWMutex
	counters map[string]*labeledCounter
}

func newCounterVec() *counterVec {
	return &counterVec{counters: make(map[string]*labeledCounter)}
}

func (cv *counterVec) inc(labels map[string]string) {
	key := labelsKey(labels)
	cv.mu.Lock()
	c, ok := cv.counters[key]
	if !ok {
		c = &labeledCounter{labels: copyLabels(labels)}
		cv.counters[key] = c
	}
	cv.mu.Unlock()
	atomic.AddInt64(&c.value, 1)
}

func (cv *counterVec) snapshot() []labeledCounter {
	cv.mu.RLock()
	defer cv.mu.RUnlock()
	result := make([]labeledCounter, 0, len(cv.counters))
	for _, c := range cv.counters {
		result = append(result, labeledCounter{
			labels: copyLabels(c.labels),
			value:  atomic.LoadInt64(&c.value),
		})
	}
	return result
}

// histogramVec is a thread-safe collection of labeled histograms.
type histogramVec struct {
	mu         sync.RWMutex
	histograms map[string]*histogram
	buckets    []float64
}

func newHistogramVec(buckets []float64) *histogramVec {
	return &histogramVec{
		histograms: make(map[string]*histogram),
		buckets:    buckets,
	}
}

func (hv *histogramVec) observe(labels map[string]string, v float64) {
	key := labelsKey(labels)
	hv.mu.RLock()
	h, ok := hv.histograms[key]
	hv.mu.RUnlock()
	if !ok {
		hv.mu.Lock()
		h, ok = hv.histograms[key]
		if !ok {
			h = newHistogram(copyLabels(labels), hv.buckets)
			hv.histograms[key] = h
		}
		hv.mu.Unlock()
	}
	h.observe(v)
}

func (hv *histogramVec) snapshot() []*histogram {
	hv.mu.RLock()
	defer hv.mu.RUnlock()
	result := make([]*histogram, 0, len(hv.histograms))
	for _, h := range hv.histograms {
		h.mu.Lock()
		snap := &histogram{
			labels:  copyLabels(h.labels),
			buckets: h.buckets,
			counts:  make([]int64, len(h.counts)),
			sum:     h.sum,
			count:   h.count,
		}
		copy(snap.counts, h.counts)
		h.mu.Unlock()
		result = append(result, snap)
	}
	return result
}

// gaugeVec tracks a set of labeled gauges that can be set to any value.
type gaugeVec struct {
	mu     sync.RWMutex
	gauges map[string]*labeledGauge
}

type labeledGauge struct {
	labels map[string]string
	value  uint64 // float64 stored via math.Float64bits
}

func newGaugeVec() *gaugeVec {
	return &gaugeVec{gauges: make(map[string]*labeledGauge)}
}

func (gv *gaugeVec) set(labels map[string]string, v float64) {
	key := labelsKey(labels)
	gv.mu.Lock()
	g, ok := gv.gauges[key]
	if !ok {
		g = &labeledGauge{labels: copyLabels(labels)}
		gv.gauges[key] = g
	}
	gv.mu.Unlock()
	atomic.StoreUint64(&g.value, math.Float64bits(v))
}

func (gv *gaugeVec) snapshot() []struct {
	labels map[string]string
	value  float64
} {
	gv.mu.RLock()
	defer gv.mu.RUnlock()
	result := make([]struct {
		labels map[string]string
		value  float64
	}, 0, len(gv.gauges))
	for _, g := range gv.gauges {
		result = append(result, struct {
			labels map[string]string
			value  float64
		}{
			labels: copyLabels(g.labels),
			value:  math.Float64frombits(atomic.LoadUint64(&g.value)),
		})
	}
	return result
}

func labelsKey(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	key := ""
	for _, k := range keys {
		key += k + "=" + labels[k] + ","
	}
	return key
}

func copyLabels(labels map[string]string) map[string]string {
	cp := make(map[string]string, len(labels))
	for k, v := range labels {
		cp[k] = v
	}
	return cp
}

// Collector tracks live pipeline metrics using atomic counters for
// lock-free, concurrent-safe updates, giving the status server a
// real-time view of scan throughput without waiting for a run to finish.
type Collector struct {
	expanded   int64
	alive      int64
	classified int64
	collected  int64
	reconciled int64

	classifiedButNotCollected int64
	droppedUnreachable        int64
	retryCount                int64

	cacheHits   int64
	cacheMisses int64

	activeEndpoints int64

	startTime time.Time

	// Labeled Prometheus-style metrics.
	stageErrors      *counterVec   // labels: stage, kind
	stageLatency     *histogramVec // labels: stage
	collectorResults *counterVec   // labels: method, status
	activeByStage    *gaugeVec     // labels: stage

	activeStageMu      sync.Mutex
	activeStageCounts  map[string]*int64
}

// Stats is a point-in-time snapshot of the collector's counters,
// suitable for JSON serialisation on the /healthz and SSE surfaces.
type Stats struct {
	Uptime     string `json:"uptime"`
	Expanded   int64  `json:"expanded"`
	Alive      int64  `json:"alive"`
	Classified int64  `json:"classified"`
	Collected  int64  `json:"collected"`
	Reconciled int64  `json:"reconciled"`

	ClassifiedButNotCollected int64 `json:"classified_but_not_collected"`
	DroppedUnreachable        int64 `json:"dropped_unreachable"`
	RetryCount                int64 `json:"retry_count"`

	CacheHitRate float64 `json:"cache_hit_rate"`
	CacheHits    int64   `json:"cache_hits"`
	CacheMisses  int64   `json:"cache_misses"`

	ActiveEndpoints int64 `json:"active_endpoints"`
}

// stageLatencyBuckets are tuned for per-stage probe/classify/collect
// durations, in seconds.
var stageLatencyBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// NewCollector creates a new Collector with all counters initialised to
// zero and the start time set to now.
func NewCollector() *Collector {
	return &Collector{
		startTime:         time.Now(),
		stageErrors:       newCounterVec(),
		stageLatency:      newHistogramVec(stageLatencyBuckets),
		collectorResults:  newCounterVec(),
		activeByStage:     newGaugeVec(),
		activeStageCounts: make(map[string]*int64),
	}
}

// RecordExpanded increments the targets-expanded counter by n.
func (c *Collector) RecordExpanded(n int64) { atomic.AddInt64(&c.expanded, n) }

// RecordAlive increments the alive-endpoint counter.
func (c *Collector) RecordAlive() { atomic.AddInt64(&c.alive, 1) }

// RecordClassified increments the classified-endpoint counter.
func (c *Collector) RecordClassified() { atomic.AddInt64(&c.classified, 1) }

// RecordCollected increments the collected-endpoint counter.
func (c *Collector) RecordCollected() { atomic.AddInt64(&c.collected, 1) }

// RecordReconciled increments the reconciled-asset counter.
func (c *Collector) RecordReconciled() { atomic.AddInt64(&c.reconciled, 1) }

// RecordClassifiedButNotCollected increments the classified-but-dropped counter.
func (c *Collector) RecordClassifiedButNotCollected() {
	atomic.AddInt64(&c.classifiedButNotCollected, 1)
}

// RecordDroppedUnreachable increments the dropped-unreachable counter.
func (c *Collector) RecordDroppedUnreachable() { atomic.AddInt64(&c.droppedUnreachable, 1) }

// RecordRetry increments the retry counter.
func (c *Collector) RecordRetry() { atomic.AddInt64(&c.retryCount, 1) }

// RecordCacheHit increments the classification cache hit counter.
func (c *Collector) RecordCacheHit() { atomic.AddInt64(&c.cacheHits, 1) }

// RecordCacheMiss increments the classification cache miss counter.
func (c *Collector) RecordCacheMiss() { atomic.AddInt64(&c.cacheMisses, 1) }

// IncrementActive increments the active-endpoint counter. Call this when
// an endpoint enters Stage 1.
func (c *Collector) IncrementActive() { atomic.AddInt64(&c.activeEndpoints, 1) }

// DecrementActive decrements the active-endpoint counter. Call this when
// an endpoint leaves the pipeline, regardless of outcome.
func (c *Collector) DecrementActive() { atomic.AddInt64(&c.activeEndpoints, -1) }

// stageCounter returns (creating if needed) the atomic counter backing a
// stage's active-work gauge.
func (c *Collector) stageCounter(stage string) *int64 {
	c.activeStageMu.Lock()
	defer c.activeStageMu.Unlock()
	n, ok := c.activeStageCounts[stage]
	if !ok {
		n = new(int64)
		c.activeStageCounts[stage] = n
	}
	return n
}

// IncrementActiveStage marks one more unit of work as in flight for the
// named pipeline stage ("liveness", "classify", "collect").
func (c *Collector) IncrementActiveStage(stage string) {
	n := c.stageCounter(stage)
	v := atomic.AddInt64(n, 1)
	c.activeByStage.set(map[string]string{"stage": stage}, float64(v))
}

// DecrementActiveStage marks one unit of work as finished for the named
// pipeline stage.
func (c *Collector) DecrementActiveStage(stage string) {
	n := c.stageCounter(stage)
	v := atomic.AddInt64(n, -1)
	c.activeByStage.set(map[string]string{"stage": stage}, float64(v))
}

// ActiveByStage returns the per-stage active-work gauge vec for Prometheus export.
func (c *Collector) ActiveByStage() *gaugeVec { return c.activeByStage }

// Stats returns a point-in-time snapshot of all counters.
func (c *Collector) Stats() *Stats {
	hits := atomic.LoadInt64(&c.cacheHits)
	misses := atomic.LoadInt64(&c.cacheMisses)

	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	return &Stats{
		Uptime:                    formatDuration(time.Since(c.startTime)),
		Expanded:                  atomic.LoadInt64(&c.expanded),
		Alive:                     atomic.LoadInt64(&c.alive),
		Classified:                atomic.LoadInt64(&c.classified),
		Collected:                 atomic.LoadInt64(&c.collected),
		Reconciled:                atomic.LoadInt64(&c.reconciled),
		ClassifiedButNotCollected: atomic.LoadInt64(&c.classifiedButNotCollected),
		DroppedUnreachable:        atomic.LoadInt64(&c.droppedUnreachable),
		RetryCount:                atomic.LoadInt64(&c.retryCount),
		CacheHitRate:              hitRate,
		CacheHits:                 hits,
		CacheMisses:               misses,
		ActiveEndpoints:           atomic.LoadInt64(&c.activeEndpoints),
	}
}

// RunStats converts the live snapshot into the final-event shape §6 expects.
func (c *Collector) RunStats() *pipeline.RunStats {
	stats := c.Stats()
	rs := &pipeline.RunStats{
		Expanded:                  int(stats.Expanded),
		Alive:                     int(stats.Alive),
		Classified:                int(stats.Classified),
		Collected:                 int(stats.Collected),
		Reconciled:                int(stats.Reconciled),
		ClassifiedButNotCollected: int(stats.ClassifiedButNotCollected),
		DroppedUnreachable:        int(stats.DroppedUnreachable),
		RetryCount:                int(stats.RetryCount),
		CollectorSuccess:          map[pipeline.CollectorMethod]int{},
		CollectorFailure:          map[pipeline.CollectorMethod]int{},
		StageLatencyP50MS:         map[string]float64{},
		StageLatencyP95MS:         map[string]float64{},
	}

	for _, lc := range c.collectorResults.snapshot() {
		method := pipeline.CollectorMethod(lc.labels["method"])
		if lc.labels["status"] == "success" {
			rs.CollectorSuccess[method] += int(lc.value)
		} else {
			rs.CollectorFailure[method] += int(lc.value)
		}
	}

	for _, h := range c.stageLatency.snapshot() {
		stage := h.labels["stage"]
		rs.StageLatencyP50MS[stage] = percentile(h, 0.50) * 1000
		rs.StageLatencyP95MS[stage] = percentile(h, 0.95) * 1000
	}

	return rs
}

// percentile estimates the p-th percentile (0..1) from a bucketed histogram.
func percentile(h *histogram, p float64) float64 {
	if h.count == 0 {
		return 0
	}
	target := float64(h.count) * p
	var cumulative int64
	for i, c := range h.counts {
		cumulative += c
		if float64(cumulative) >= target {
			return h.buckets[i]
		}
	}
	if len(h.buckets) == 0 {
		return 0
	}
	return h.buckets[len(h.buckets)-1]
}

// RecordStageError increments the error counter for the given stage and
// error kind.
func (c *Collector) RecordStageError(stage string, kind pipeline.ErrorKind) {
	c.stageErrors.inc(map[string]string{
		"stage": stage,
		"kind":  string(kind),
	})
}

// ObserveStageLatency records a stage duration observation in seconds.
func (c *Collector) ObserveStageLatency(stage string, seconds float64) {
	c.stageLatency.observe(map[string]string{"stage": stage}, seconds)
}

// RecordCollectorResult increments the per-collector-method result counter.
// status should be "success" or "failure".
func (c *Collector) RecordCollectorResult(method pipeline.CollectorMethod, status string) {
	c.collectorResults.inc(map[string]string{
		"method": string(method),
		"status": status,
	})
}

// StageErrors returns the stage error counter vec for Prometheus export.
func (c *Collector) StageErrors() *counterVec { return c.stageErrors }

// StageLatency returns the stage latency histogram vec for Prometheus export.
func (c *Collector) StageLatency() *histogramVec { return c.stageLatency }

// CollectorResults returns the collector-result counter vec for Prometheus export.
func (c *Collector) CollectorResults() *counterVec { return c.collectorResults }

// formatDuration produces a human-readable duration string like "2d 5h 32m".
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Second).String()
	}

	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60

	if days > 0 {
		return formatWithUnits(days, "d", hours, "h", minutes, "m")
	}
	if hours > 0 {
		return formatWithUnits(hours, "h", minutes, "m", 0, "")
	}
	return formatWithUnits(minutes, "m", 0, "", 0, "")
}

// formatWithUnits builds a compact duration string from up to three components.
func formatWithUnits(v1 int, u1 string, v2 int, u2 string, v3 int, u3 string) string {
	s := ""
	if v1 > 0 {
		s += intStr(v1) + u1
	}
	if v2 > 0 {
		if s != "" {
			s += " "
		}
		s += intStr(v2) + u2
	}
	if v3 > 0 && u3 != "" {
		if s != "" {
			s += " "
		}
		s += intStr(v3) + u3
	}
	if s == "" {
		return "0m"
	}
	return s
}

// intStr converts an int to its string representation without importing strconv.
func intStr(n int) string {
	if n == 0 {
		return "0"
	}
	if n < 0 {
		return "-" + intStr(-n)
	}
	digits := make([]byte, 0, 10)
	for n > 0 {
		digits = append(digits, byte('0'+n%10))
		n /= 10
	}
	for i, j := 0, len(digits)-1; i < j; i, j = i+1, j-1 {
		digits[i], digits[j] = digits[j], digits[i]
	}
	return string(digits)
}
