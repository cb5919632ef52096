// Package normalize implements Stage 3's output shaping (§4.6): turning a
// collector's raw, protocol-shaped dict into the canonical AssetRecord
// fields, grounded on the table-driven storage-shape parser pattern and
// MAC/IP normalization rules recovered from original_source/collectors.
package normalize

import (
	"fmt"
	"math"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

// excludeNICKeywords are substrings of adapter descriptions that mark a
// virtual/tunnel NIC, demoted to the tail of MACAddresses regardless of
// OUI. Recovered from the Python reference's _EXCLUDE_NIC_KEYWORDS.
var excludeNICKeywords = []string{
	"bluetooth", "virtualbox", "vmware", "hyper-v", "tap", "loopback",
	"teredo", "isatap", "wireguard", "vethernet", "virtual",
}

// virtualOUIPrefixes are MAC OUI prefixes (first 3 octets) assigned to
// common hypervisor/virtualization vendors.
var virtualOUIPrefixes = []string{
	"00:05:69", "00:0C:29", "00:1C:14", "00:50:56", // VMware
	"08:00:27",                                     // VirtualBox
	"00:15:5D",                                     // Hyper-V
	"0A:00:27",                                     // VirtualBox host-only
}

// privateV4Prefixes is the exact private-range prefix list the
// IP-selection step treats as "private" (RFC1918).
var privateV4Prefixes = []string{"10.", "172.16.", "172.17.", "172.18.", "172.19.",
	"172.20.", "172.21.", "172.22.", "172.23.", "172.24.", "172.25.", "172.26.",
	"172.27.", "172.28.", "172.29.", "172.30.", "172.31.", "192.168."}

// Normalized is the set of fields the normalizer derives from a single
// collector result; the dispatcher/reconciler fold this into an
// AssetRecord.
type Normalized struct {
	Hostname       string
	WorkingUser    string
	Domain         string
	DeviceType     pipeline.DeviceType
	OSName         string
	OSVersion      string
	OSBuild        string
	Manufacturer   string
	Model          string
	SystemSKU      string
	SerialNumber   string
	AssetUUID      string
	Processor      string
	CPUCores       int
	CPULogical     int
	InstalledRAMGB int
	Storage        string
	ActiveGPU      string
	ConnectedScreens string
	MACAddresses   []string
	IPAddress      string
}

// Normalize converts a raw collector dict plus the classifier's device
// class into a Normalized record. classifierClass always wins unless the
// collector raw data strongly contradicts it (§4.6 "Device type").
func Normalize(method pipeline.CollectorMethod, raw map[string]any, classifierClass pipeline.DeviceType, targetWasPrivate bool) Normalized {
	n := Normalized{DeviceType: classifierClass}

	n.Storage = normalizeStorage(raw)
	n.InstalledRAMGB = normalizeRAM(method, raw)
	n.MACAddresses, n.IPAddress = normalizeMACsAndIP(raw, targetWasPrivate)

	if hn, ok := raw["hostname"].(string); ok {
		n.Hostname = hn
	}
	if sn, ok := raw["sys_name"].(string); ok && n.Hostname == "" {
		n.Hostname = sn
	}
	if sn, ok := firstString(raw, "serial_number", "SerialNumber"); ok {
		n.SerialNumber = sn
	}
	if u, ok := raw["system_uuid"].(string); ok {
		n.AssetUUID = u
	}
	if m, ok := firstString(raw, "manufacturer", "Manufacturer"); ok {
		n.Manufacturer = m
	}
	if m, ok := firstString(raw, "model", "Model"); ok {
		n.Model = m
	}

	if classHint, ok := raw["device_class_hint"].(string); ok && classHint != "" {
		// Collector contradicts classifier; collector wins (§4.6).
		n.DeviceType = pipeline.DeviceType(classHint)
	}

	if method == pipeline.MethodWMI {
		extractWMIFields(raw, &n)
	}

	return n
}

// extractWMIFields pulls the fields only WMI's query-per-class shape
// carries: each key in raw is a []map[string]any of that WMI class's rows
// (see internal/collect/wmi.queryOrder), never a flattened top-level
// string, so these can't go through firstString like the other collectors.
func extractWMIFields(raw map[string]any, n *Normalized) {
	if rows, ok := wmiRows(raw, "operating_system"); ok && len(rows) > 0 {
		r := rows[0]
		if v, ok := stringField(r, "Caption"); ok {
			n.OSName = v
		}
		if v, ok := stringField(r, "Version"); ok {
			n.OSVersion = v
		}
		if v, ok := stringField(r, "BuildNumber"); ok {
			n.OSBuild = v
		}
	}
	if rows, ok := wmiRows(raw, "computer_system"); ok && len(rows) > 0 {
		r := rows[0]
		if v, ok := stringField(r, "Name"); ok && n.Hostname == "" {
			n.Hostname = v
		}
		if v, ok := stringField(r, "UserName"); ok {
			n.WorkingUser = v
		}
		if v, ok := stringField(r, "Domain"); ok {
			n.Domain = v
		}
		if v, ok := stringField(r, "Manufacturer"); ok && n.Manufacturer == "" {
			n.Manufacturer = v
		}
		if v, ok := stringField(r, "Model"); ok && n.Model == "" {
			n.Model = v
		}
		if v, ok := stringField(r, "SystemSKUNumber"); ok {
			n.SystemSKU = v
		}
	}
	if rows, ok := wmiRows(raw, "processor"); ok && len(rows) > 0 {
		r := rows[0]
		if v, ok := stringField(r, "Name"); ok {
			n.Processor = v
		}
		if v, ok := numericField(r, "NumberOfCores"); ok {
			n.CPUCores = int(v)
		}
		if v, ok := numericField(r, "NumberOfLogicalProcessors"); ok {
			n.CPULogical = int(v)
		}
	}
	if rows, ok := wmiRows(raw, "bios"); ok && len(rows) > 0 && n.SerialNumber == "" {
		if v, ok := stringField(rows[0], "SerialNumber"); ok {
			n.SerialNumber = v
		}
	}
	if rows, ok := wmiRows(raw, "video_controller"); ok && len(rows) > 0 {
		if v, ok := stringField(rows[0], "Name"); ok {
			n.ActiveGPU = v
		}
	}
	if rows, ok := wmiRows(raw, "desktop_monitor"); ok && len(rows) > 0 {
		n.ConnectedScreens = strconv.Itoa(len(rows))
	}
}

func wmiRows(raw map[string]any, key string) ([]map[string]any, bool) {
	rows, ok := raw[key].([]map[string]any)
	return rows, ok
}

func stringField(m map[string]any, key string) (string, bool) {
	v, ok := m[key].(string)
	return v, ok && v != ""
}

func firstString(raw map[string]any, keys ...string) (string, bool) {
	for _, k := range keys {
		if v, ok := raw[k].(string); ok && v != "" {
			return v, true
		}
	}
	return "", false
}

// normalizeStorage implements the table-driven storage-shape parser
// accepting: []map with size_gb|size_bytes|size, comma-separated strings,
// bare numbers (GB implied), and strings containing "GB".
func normalizeStorage(raw map[string]any) string {
	disks, ok := raw["disk_drive"]
	if !ok {
		disks, ok = raw["storage_list"]
	}
	if !ok {
		return ""
	}

	sizesGB := extractDiskSizesGB(disks)
	if len(sizesGB) == 0 {
		return ""
	}

	parts := make([]string, 0, len(sizesGB))
	for i, gb := range sizesGB {
		parts = append(parts, fmt.Sprintf("disk %d = %s GB", i+1, formatGB(gb)))
	}
	return strings.Join(parts, " - ")
}

func extractDiskSizesGB(v any) []float64 {
	var out []float64

	switch vv := v.(type) {
	case []map[string]any:
		for _, d := range vv {
			if gb, ok := diskEntryGB(d); ok {
				out = append(out, gb)
			}
		}
	case []any:
		for _, item := range vv {
			switch x := item.(type) {
			case map[string]any:
				if gb, ok := diskEntryGB(x); ok {
					out = append(out, gb)
				}
			case string:
				out = append(out, parseStorageString(x)...)
			case float64:
				out = append(out, x)
			case int:
				out = append(out, float64(x))
			}
		}
	case string:
		out = append(out, parseStorageString(vv)...)
	case float64:
		out = append(out, vv)
	case int:
		out = append(out, float64(vv))
	}
	return out
}

func diskEntryGB(d map[string]any) (float64, bool) {
	if v, ok := numericField(d, "size_gb"); ok {
		return v, true
	}
	if v, ok := numericField(d, "size_bytes"); ok {
		return bytesToGB(v), true
	}
	if v, ok := numericField(d, "Size"); ok {
		// Win32_DiskDrive.Size is bytes, per WMI's convention.
		return bytesToGB(v), true
	}
	if v, ok := numericField(d, "size"); ok {
		// "size" with no unit is GB implied, unless large enough to be bytes.
		if v > 1e6 {
			return bytesToGB(v), true
		}
		return v, true
	}
	return 0, false
}

func numericField(d map[string]any, key string) (float64, bool) {
	v, ok := d[key]
	if !ok {
		return 0, false
	}
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// parseStorageString parses comma-separated disk sizes, each either a bare
// number (GB) or a number with a "GB" suffix.
func parseStorageString(s string) []float64 {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		part = strings.TrimSuffix(strings.ToUpper(part), "GB")
		part = strings.TrimSpace(part)
		if f, err := strconv.ParseFloat(part, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func bytesToGB(b float64) float64 {
	return b / (1024 * 1024 * 1024)
}

// formatGB rounds to 2 decimals using banker's (round-half-to-even)
// rounding, per §4.6 and the storage-canonical-form invariant of §8.
func formatGB(v float64) string {
	return strconv.FormatFloat(roundBankers(v, 2), 'f', 2, 64)
}

func roundBankers(v float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	scaled := v * mult
	floor := math.Floor(scaled)
	diff := scaled - floor
	switch {
	case diff < 0.5:
		return floor / mult
	case diff > 0.5:
		return (floor + 1) / mult
	default:
		// Exactly .5: round to even.
		if math.Mod(floor, 2) == 0 {
			return floor / mult
		}
		return (floor + 1) / mult
	}
}

// normalizeRAM converts WMI bytes or SNMP KB into whole gigabytes.
func normalizeRAM(method pipeline.CollectorMethod, raw map[string]any) int {
	if v, ok := numericField(raw, "total_physical_memory_bytes"); ok {
		return int(math.Round(bytesToGB(v)))
	}
	if cs, ok := raw["computer_system"].([]map[string]any); ok && len(cs) > 0 {
		if v, ok := numericField(cs[0], "TotalPhysicalMemory"); ok {
			return int(math.Round(bytesToGB(v)))
		}
	}
	if v, ok := numericField(raw, "hr_memory_size_kb"); ok {
		return int(math.Round(v / (1024 * 1024)))
	}
	return 0
}

// normalizeMACsAndIP normalizes adapter MACs to AA:BB:CC:DD:EE:FF, demotes
// loopback/link-local/virtual adapters to the tail, and selects the
// primary IP per §4.6.
func normalizeMACsAndIP(raw map[string]any, targetWasPrivate bool) ([]string, string) {
	type adapter struct {
		mac        string
		ip         string
		desc       string
		isVirtual  bool
		isPrivate  bool
	}

	var adapters []adapter
	if list, ok := raw["network_adapter_configuration"].([]map[string]any); ok {
		for _, a := range list {
			mac, _ := a["MACAddress"].(string)
			ip, _ := firstIPFromField(a["IPAddress"])
			desc, _ := a["Description"].(string)
			if mac == "" {
				continue
			}
			norm := normalizeMAC(mac)
			if norm == "" {
				continue
			}
			adapters = append(adapters, adapter{
				mac:       norm,
				ip:        ip,
				desc:      desc,
				isVirtual: isVirtualAdapter(norm, desc),
				isPrivate: isPrivateIPv4(ip),
			})
		}
	}
	if ifList, ok := raw["interfaces"].([]map[string]any); ok {
		for _, a := range ifList {
			mac, _ := a["mac"].(string)
			ip, _ := a["ip"].(string)
			norm := normalizeMAC(mac)
			if norm == "" {
				continue
			}
			adapters = append(adapters, adapter{mac: norm, ip: ip, isVirtual: isVirtualAdapter(norm, ""), isPrivate: isPrivateIPv4(ip)})
		}
	}

	if len(adapters) == 0 {
		return nil, ""
	}

	sort.SliceStable(adapters, func(i, j int) bool {
		if adapters[i].isVirtual != adapters[j].isVirtual {
			return !adapters[i].isVirtual // non-virtual first
		}
		return false
	})

	macs := make([]string, 0, len(adapters))
	for _, a := range adapters {
		macs = append(macs, a.mac)
	}

	var primaryIP string
	for _, a := range adapters {
		if a.ip == "" {
			continue
		}
		if targetWasPrivate && a.isPrivate {
			primaryIP = a.ip
			break
		}
		if !targetWasPrivate && !a.isPrivate {
			primaryIP = a.ip
			break
		}
	}
	if primaryIP == "" {
		for _, a := range adapters {
			if a.ip != "" {
				primaryIP = a.ip
				break
			}
		}
	}

	return macs, primaryIP
}

func firstIPFromField(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, x != ""
	case []string:
		if len(x) > 0 {
			return x[0], true
		}
	case []any:
		if len(x) > 0 {
			if s, ok := x[0].(string); ok {
				return s, true
			}
		}
	}
	return "", false
}

func normalizeMAC(mac string) string {
	mac = strings.ToUpper(strings.TrimSpace(mac))
	mac = strings.ReplaceAll(mac, "-", ":")
	parts := strings.Split(mac, ":")
	if len(parts) != 6 {
		return ""
	}
	for _, p := range parts {
		if len(p) != 2 {
			return ""
		}
	}
	if isLoopbackOrLinkLocalMAC(mac) {
		return ""
	}
	return strings.Join(parts, ":")
}

func isLoopbackOrLinkLocalMAC(mac string) bool {
	return mac == "00:00:00:00:00:00"
}

func isVirtualAdapter(mac, desc string) bool {
	low := strings.ToLower(desc)
	for _, kw := range excludeNICKeywords {
		if strings.Contains(low, kw) {
			return true
		}
	}
	prefix := mac
	if len(prefix) >= 8 {
		prefix = prefix[:8]
	}
	for _, oui := range virtualOUIPrefixes {
		if strings.EqualFold(prefix, oui) {
			return true
		}
	}
	return false
}

func isPrivateIPv4(ip string) bool {
	if ip == "" {
		return false
	}
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.To4() == nil {
		return false
	}
	dotted := parsed.To4().String() + "."
	for _, prefix := range privateV4Prefixes {
		if strings.HasPrefix(dotted, prefix) {
			return true
		}
	}
	return false
}

// IsPrivateTarget reports whether an expanded scan target address is in
// RFC1918 space, used to drive IP-selection preference (§4.6).
func IsPrivateTarget(ip string) bool {
	return isPrivateIPv4(ip)
}

// QualityScore computes the weighted non-empty-field count bonus-adjusted
// score of §4.6, capped at 100.
func QualityScore(r *pipeline.AssetRecord, successfulCollectors int) int {
	fields := []string{
		r.Hostname, r.WorkingUser, r.Domain, string(r.DeviceType), r.OSName,
		r.OSVersion, r.OSBuild, r.Manufacturer, r.Model, r.SystemSKU,
		r.SerialNumber, r.AssetTag, r.Processor, r.Storage, r.ActiveGPU,
		r.ConnectedScreens,
	}
	nonEmpty := 0
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			nonEmpty++
		}
	}
	if r.CPUCores > 0 {
		nonEmpty++
	}
	if r.CPULogical > 0 {
		nonEmpty++
	}
	if r.InstalledRAMGB > 0 {
		nonEmpty++
	}
	if len(r.MACAddresses) > 0 {
		nonEmpty++
	}
	if len(r.OpenPorts) > 0 {
		nonEmpty++
	}

	total := len(fields) + 5
	score := (nonEmpty * 100) / total

	if successfulCollectors > 1 {
		score += 5 * (successfulCollectors - 1)
	}
	if score > 100 {
		score = 100
	}
	return score
}
