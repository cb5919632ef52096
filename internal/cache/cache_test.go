package cache

import (
	"testing"
	"time"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

func TestClassifyCache_MissThenHit(t *testing.T) {
	c, err := NewClassifyCache(100, 60)
	if err != nil {
		t.Fatalf("NewClassifyCache: %v", err)
	}

	if _, ok := c.Get("10.0.0.1"); ok {
		t.Fatal("expected miss on empty cache")
	}

	class := pipeline.Classification{
		OSFamily:    "linux",
		DeviceClass: pipeline.DeviceLinuxServer,
		OpenPorts:   []int{22, 80},
		Confidence:  0.9,
	}
	c.Set("10.0.0.1", class)

	got, ok := c.Get("10.0.0.1")
	if !ok {
		t.Fatal("expected hit after Set")
	}
	if got.OSFamily != "linux" || got.DeviceClass != pipeline.DeviceLinuxServer {
		t.Errorf("got %+v", got)
	}
}

func TestClassifyCache_TTLExpiry(t *testing.T) {
	c, err := NewClassifyCache(100, 1)
	if err != nil {
		t.Fatalf("NewClassifyCache: %v", err)
	}

	c.Set("10.0.0.2", pipeline.Classification{OSFamily: "windows"})

	if _, ok := c.Get("10.0.0.2"); !ok {
		t.Fatal("expected hit before TTL expiry")
	}

	time.Sleep(1100 * time.Millisecond)

	if _, ok := c.Get("10.0.0.2"); ok {
		t.Error("expected miss after TTL expiry")
	}
}

func TestClassifyCache_DisabledWhenSizeZero(t *testing.T) {
	c, err := NewClassifyCache(0, 60)
	if err != nil {
		t.Fatalf("NewClassifyCache: %v", err)
	}

	c.Set("10.0.0.3", pipeline.Classification{OSFamily: "linux"})
	if _, ok := c.Get("10.0.0.3"); ok {
		t.Error("expected disabled cache to never hit")
	}
	if c.Len() != 0 {
		t.Errorf("expected length 0 for disabled cache, got %d", c.Len())
	}
}

func TestClassifyCache_LRUEviction(t *testing.T) {
	c, err := NewClassifyCache(2, 60)
	if err != nil {
		t.Fatalf("NewClassifyCache: %v", err)
	}

	c.Set("10.0.0.1", pipeline.Classification{OSFamily: "linux"})
	c.Set("10.0.0.2", pipeline.Classification{OSFamily: "linux"})
	c.Set("10.0.0.3", pipeline.Classification{OSFamily: "linux"})

	if c.Len() != 2 {
		t.Errorf("expected 2 entries after eviction, got %d", c.Len())
	}
	if _, ok := c.Get("10.0.0.1"); ok {
		t.Error("expected oldest entry to be evicted")
	}
}

func TestClassifyCache_Purge(t *testing.T) {
	c, err := NewClassifyCache(100, 1)
	if err != nil {
		t.Fatalf("NewClassifyCache: %v", err)
	}

	c.Set("10.0.0.4", pipeline.Classification{OSFamily: "linux"})
	time.Sleep(1100 * time.Millisecond)
	c.Purge()

	if c.Len() != 0 {
		t.Errorf("expected purge to remove expired entry, got len %d", c.Len())
	}
}
