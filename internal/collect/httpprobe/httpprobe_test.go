package httpprobe

import (
	"testing"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

func TestApplyVendorTable_Match(t *testing.T) {
	raw := map[string]any{}
	applyVendorTable("HP LaserJet Pro MFP M428", raw)
	if raw["device_class_hint"] != string(pipeline.DevicePrinter) {
		t.Errorf("got %v", raw["device_class_hint"])
	}
	if raw["model"] != "HP LaserJet" {
		t.Errorf("got %v", raw["model"])
	}
}

func TestApplyVendorTable_NoMatch(t *testing.T) {
	raw := map[string]any{}
	applyVendorTable("nginx/1.24.0", raw)
	if _, ok := raw["device_class_hint"]; ok {
		t.Errorf("expected no vendor match, got %v", raw)
	}
}

func TestTitleRegex(t *testing.T) {
	m := titleRegex.FindStringSubmatch("<html><head><title>FortiGate Login</title></head></html>")
	if len(m) < 2 || m[1] != "FortiGate Login" {
		t.Errorf("got %v", m)
	}
}

func TestMethod(t *testing.T) {
	c := New()
	if c.Method() != pipeline.MethodHTTP {
		t.Errorf("got %v", c.Method())
	}
}

func TestHasSSDPPort(t *testing.T) {
	if !hasSSDPPort([]int{80, 443, 1900}) {
		t.Error("expected 1900 to be detected as the SSDP port")
	}
	if hasSSDPPort([]int{80, 443}) {
		t.Error("expected no SSDP port among 80/443")
	}
}
