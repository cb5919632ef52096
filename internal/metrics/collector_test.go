package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

func TestNewCollector_Defaults(t *testing.T) {
	c := NewCollector()

	stats := c.Stats()
	if stats.Expanded != 0 {
		t.Errorf("Expanded: got %d, want 0", stats.Expanded)
	}
	if stats.ActiveEndpoints != 0 {
		t.Errorf("ActiveEndpoints: got %d, want 0", stats.ActiveEndpoints)
	}
}

func TestCollector_StageCounters(t *testing.T) {
	c := NewCollector()

	c.RecordExpanded(256)
	c.RecordAlive()
	c.RecordAlive()
	c.RecordClassified()
	c.RecordCollected()
	c.RecordReconciled()
	c.RecordDroppedUnreachable()
	c.RecordRetry()

	stats := c.Stats()
	if stats.Expanded != 256 {
		t.Errorf("Expanded: got %d, want 256", stats.Expanded)
	}
	if stats.Alive != 2 {
		t.Errorf("Alive: got %d, want 2", stats.Alive)
	}
	if stats.Classified != 1 {
		t.Errorf("Classified: got %d, want 1", stats.Classified)
	}
	if stats.Collected != 1 {
		t.Errorf("Collected: got %d, want 1", stats.Collected)
	}
	if stats.Reconciled != 1 {
		t.Errorf("Reconciled: got %d, want 1", stats.Reconciled)
	}
	if stats.DroppedUnreachable != 1 {
		t.Errorf("DroppedUnreachable: got %d, want 1", stats.DroppedUnreachable)
	}
	if stats.RetryCount != 1 {
		t.Errorf("RetryCount: got %d, want 1", stats.RetryCount)
	}
}

func TestCollector_CacheHitRate(t *testing.T) {
	c := NewCollector()

	c.RecordCacheHit()
	c.RecordCacheHit()
	c.RecordCacheMiss()

	stats := c.Stats()
	if stats.CacheHits != 2 {
		t.Errorf("CacheHits: got %d, want 2", stats.CacheHits)
	}
	if stats.CacheMisses != 1 {
		t.Errorf("CacheMisses: got %d, want 1", stats.CacheMisses)
	}
	want := float64(2) / float64(3) * 100
	if stats.CacheHitRate != want {
		t.Errorf("CacheHitRate: got %f, want %f", stats.CacheHitRate, want)
	}
}

func TestCollector_ActiveEndpoints(t *testing.T) {
	c := NewCollector()

	c.IncrementActive()
	c.IncrementActive()

	stats := c.Stats()
	if stats.ActiveEndpoints != 2 {
		t.Errorf("ActiveEndpoints after 2 increments: got %d, want 2", stats.ActiveEndpoints)
	}

	c.DecrementActive()

	stats = c.Stats()
	if stats.ActiveEndpoints != 1 {
		t.Errorf("ActiveEndpoints after decrement: got %d, want 1", stats.ActiveEndpoints)
	}
}

func TestCollector_ActiveByStage(t *testing.T) {
	c := NewCollector()

	c.IncrementActiveStage("collect")
	c.IncrementActiveStage("collect")
	c.IncrementActiveStage("liveness")

	snap := c.ActiveByStage().snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 stage gauges, got %d", len(snap))
	}
	for _, e := range snap {
		switch e.labels["stage"] {
		case "collect":
			if e.value != 2 {
				t.Errorf("collect gauge: got %v, want 2", e.value)
			}
		case "liveness":
			if e.value != 1 {
				t.Errorf("liveness gauge: got %v, want 1", e.value)
			}
		}
	}

	c.DecrementActiveStage("collect")
	for _, e := range c.ActiveByStage().snapshot() {
		if e.labels["stage"] == "collect" && e.value != 1 {
			t.Errorf("collect gauge after decrement: got %v, want 1", e.value)
		}
	}
}

func TestCollector_Uptime(t *testing.T) {
	c := NewCollector()
	stats := c.Stats()
	if stats.Uptime == "" {
		t.Error("Uptime is empty")
	}
}

func TestCollector_ConcurrentRecords(t *testing.T) {
	c := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.RecordAlive()
		}()
	}
	wg.Wait()

	stats := c.Stats()
	if stats.Alive != 100 {
		t.Errorf("Alive after 100 concurrent: got %d, want 100", stats.Alive)
	}
}

func TestCollector_RecordStageError(t *testing.T) {
	c := NewCollector()

	c.RecordStageError("classify", pipeline.ErrTimeout)
	c.RecordStageError("classify", pipeline.ErrTimeout)
	c.RecordStageError("collect", pipeline.ErrAuthFailed)

	snap := c.StageErrors().snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 stage error label combos, got %d", len(snap))
	}

	for _, entry := range snap {
		if entry.labels["stage"] == "classify" && entry.labels["kind"] == string(pipeline.ErrTimeout) {
			if entry.value != 2 {
				t.Errorf("classify/Timeout errors: got %d, want 2", entry.value)
			}
		}
	}
}

func TestCollector_ObserveStageLatency(t *testing.T) {
	c := NewCollector()

	c.ObserveStageLatency("liveness", 0.1)
	c.ObserveStageLatency("liveness", 0.2)

	snap := c.StageLatency().snapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 latency series, got %d", len(snap))
	}

	h := snap[0]
	if h.count != 2 {
		t.Errorf("count: got %d, want 2", h.count)
	}
}

func TestCollector_RecordCollectorResult(t *testing.T) {
	c := NewCollector()

	c.RecordCollectorResult(pipeline.MethodWMI, "success")
	c.RecordCollectorResult(pipeline.MethodWMI, "success")
	c.RecordCollectorResult(pipeline.MethodSSH, "failure")

	snap := c.CollectorResults().snapshot()
	if len(snap) != 2 {
		t.Fatalf("expected 2 collector result combos, got %d", len(snap))
	}
}

func TestCollector_RunStats(t *testing.T) {
	c := NewCollector()

	c.RecordExpanded(10)
	c.RecordAlive()
	c.RecordCollectorResult(pipeline.MethodWMI, "success")
	c.RecordCollectorResult(pipeline.MethodSSH, "failure")
	c.ObserveStageLatency("liveness", 0.1)
	c.ObserveStageLatency("liveness", 0.2)

	rs := c.RunStats()
	if rs.Expanded != 10 {
		t.Errorf("RunStats.Expanded: got %d, want 10", rs.Expanded)
	}
	if rs.CollectorSuccess[pipeline.MethodWMI] != 1 {
		t.Errorf("RunStats.CollectorSuccess[wmi]: got %d, want 1", rs.CollectorSuccess[pipeline.MethodWMI])
	}
	if rs.CollectorFailure[pipeline.MethodSSH] != 1 {
		t.Errorf("RunStats.CollectorFailure[ssh]: got %d, want 1", rs.CollectorFailure[pipeline.MethodSSH])
	}
	if _, ok := rs.StageLatencyP50MS["liveness"]; !ok {
		t.Error("expected liveness stage latency to be present")
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "30s"},
		{5 * time.Minute, "5m"},
		{2*time.Hour + 30*time.Minute, "2h 30m"},
		{25*time.Hour + 15*time.Minute, "1d 1h 15m"},
	}

	for _, tt := range tests {
		got := formatDuration(tt.d)
		if got != tt.want {
			t.Errorf("formatDuration(%v): got %q, want %q", tt.d, got, tt.want)
		}
	}
}
