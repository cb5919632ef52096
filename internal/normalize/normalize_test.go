package normalize

import (
	"testing"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

func TestRoundBankers(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{238.474, 238.47},
		{238.476, 238.48},
		{2.5, 2.5},
		{0.125, 0.12}, // exact half at 2dp (12.5), rounds to even (12)
		{0.135, 0.14}, // exact-ish half at 2dp (13.5), rounds to even (14)
	}
	for _, c := range cases {
		got := roundBankers(c.in, 2)
		if got != c.want {
			t.Errorf("roundBankers(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestNormalizeStorage_BareNumberList(t *testing.T) {
	raw := map[string]any{
		"disk_drive": []any{256.0, 1000.0},
	}
	got := normalizeStorage(raw)
	want := "disk 1 = 256.00 GB - disk 2 = 1000.00 GB"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeStorage_SizeBytesMap(t *testing.T) {
	raw := map[string]any{
		"disk_drive": []any{
			map[string]any{"size_bytes": float64(256060514304)},
			map[string]any{"size_bytes": float64(1000204886016)},
		},
	}
	got := normalizeStorage(raw)
	want := "disk 1 = 238.47 GB - disk 2 = 931.51 GB"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeStorage_CommaSeparatedString(t *testing.T) {
	raw := map[string]any{"disk_drive": "256GB, 512 GB, 1024"}
	got := normalizeStorage(raw)
	want := "disk 1 = 256.00 GB - disk 2 = 512.00 GB - disk 3 = 1024.00 GB"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestNormalizeStorage_Empty(t *testing.T) {
	if got := normalizeStorage(map[string]any{}); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}

func TestNormalizeRAM_WMIBytes(t *testing.T) {
	raw := map[string]any{"total_physical_memory_bytes": float64(17179869184)}
	if got := normalizeRAM(pipeline.MethodWMI, raw); got != 16 {
		t.Errorf("got %d, want 16", got)
	}
}

func TestNormalizeRAM_SNMPKilobytes(t *testing.T) {
	raw := map[string]any{"hr_memory_size_kb": float64(16 * 1024 * 1024)}
	if got := normalizeRAM(pipeline.MethodSNMP, raw); got != 16 {
		t.Errorf("got %d, want 16", got)
	}
}

func TestNormalizeMAC(t *testing.T) {
	cases := map[string]string{
		"aa-bb-cc-dd-ee-ff": "AA:BB:CC:DD:EE:FF",
		"AA:BB:CC:DD:EE:FF": "AA:BB:CC:DD:EE:FF",
		"00:00:00:00:00:00": "",
		"not-a-mac":         "",
	}
	for in, want := range cases {
		if got := normalizeMAC(in); got != want {
			t.Errorf("normalizeMAC(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsVirtualAdapter(t *testing.T) {
	if !isVirtualAdapter("00:50:56:AA:BB:CC", "") {
		t.Error("expected VMware OUI to be virtual")
	}
	if !isVirtualAdapter("AA:BB:CC:DD:EE:FF", "VirtualBox Host-Only Network") {
		t.Error("expected VirtualBox description to be virtual")
	}
	if isVirtualAdapter("AA:BB:CC:DD:EE:FF", "Intel(R) Ethernet Connection") {
		t.Error("expected physical NIC to not be flagged virtual")
	}
}

func TestIsPrivateIPv4(t *testing.T) {
	cases := map[string]bool{
		"10.1.2.3":    true,
		"172.16.0.1":  true,
		"172.31.255.255": true,
		"192.168.1.1": true,
		"101.2.3.4":   false,
		"8.8.8.8":     false,
		"172.32.0.1":  false,
	}
	for ip, want := range cases {
		if got := isPrivateIPv4(ip); got != want {
			t.Errorf("isPrivateIPv4(%q) = %v, want %v", ip, got, want)
		}
	}
}

func TestQualityScore_MoreFieldsHigherScore(t *testing.T) {
	sparse := &pipeline.AssetRecord{Hostname: "h1"}
	rich := &pipeline.AssetRecord{
		Hostname: "h1", WorkingUser: "u", Manufacturer: "Dell", Model: "OptiPlex",
		SerialNumber: "ABC123", CPUCores: 4, InstalledRAMGB: 16,
		MACAddresses: []string{"AA:BB:CC:DD:EE:FF"}, OpenPorts: []int{445},
	}
	if QualityScore(rich, 1) <= QualityScore(sparse, 1) {
		t.Error("expected richer record to score higher")
	}
}

func TestQualityScore_BonusForMultipleCollectors(t *testing.T) {
	r := &pipeline.AssetRecord{Hostname: "h1"}
	single := QualityScore(r, 1)
	multi := QualityScore(r, 3)
	if multi != single+10 {
		t.Errorf("expected +5 per extra collector, got single=%d multi=%d", single, multi)
	}
}

func TestQualityScore_CappedAt100(t *testing.T) {
	r := &pipeline.AssetRecord{
		Hostname: "h", WorkingUser: "u", Domain: "d", DeviceType: pipeline.DeviceWorkstation,
		OSName: "o", OSVersion: "v", OSBuild: "b", Manufacturer: "m", Model: "mo",
		SystemSKU: "sku", SerialNumber: "sn", AssetTag: "tag", Processor: "p",
		Storage: "s", ActiveGPU: "g", ConnectedScreens: "1", CPUCores: 4,
		CPULogical: 8, InstalledRAMGB: 16, MACAddresses: []string{"AA:BB:CC:DD:EE:FF"},
		OpenPorts: []int{22},
	}
	if got := QualityScore(r, 10); got != 100 {
		t.Errorf("got %d, want 100", got)
	}
}
