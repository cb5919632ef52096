package ssh

import (
	"regexp"
	"strconv"
	"strings"
)

// parseOutputs extracts canonical fields from the per-command raw text into
// the same raw keys normalize.Normalize already reads off the WMI/SNMP
// paths (hostname, os_name, os_version, manufacturer, model, serial_number,
// processor, cpu_cores, cpu_logical, total_physical_memory_bytes,
// storage_list, interfaces), per §4.4.2's "raw dict keyed by canonical
// fields already parsed" contract. Looked up via cmdOutput/commandKey
// rather than hardcoded slug strings, so a change to a command string in
// profiles can't silently desync the lookup key from the stored one.
func parseOutputs(platform Platform, raw map[string]any) {
	if hn, ok := cmdOutput(raw, "hostname"); ok {
		raw["hostname"] = strings.TrimSpace(hn)
	}
	switch platform {
	case PlatformLinux:
		parseLinuxOutputs(raw)
	case PlatformESXi:
		parseESXiOutputs(raw)
	default:
		parseNetworkDeviceOutputs(raw)
	}
}

func cmdOutput(raw map[string]any, cmd string) (string, bool) {
	v, ok := raw[commandKey(cmd)].(string)
	return v, ok && strings.TrimSpace(v) != ""
}

var (
	osReleaseNameRe     = regexp.MustCompile(`(?m)^NAME="?([^"\n]+)"?`)
	osReleaseVersionRe  = regexp.MustCompile(`(?m)^VERSION_ID="?([^"\n]+)"?`)
	lscpuModelRe        = regexp.MustCompile(`(?m)^Model name:\s*(.+)$`)
	lscpuLogicalRe      = regexp.MustCompile(`(?m)^CPU\(s\):\s*(\d+)$`)
	lscpuCoresPerSockRe = regexp.MustCompile(`(?m)^Core\(s\) per socket:\s*(\d+)$`)
	lscpuSocketsRe      = regexp.MustCompile(`(?m)^Socket\(s\):\s*(\d+)$`)
	freeMemMBRe         = regexp.MustCompile(`(?m)^Mem:\s*(\d+)`)
	ipLinkMacRe         = regexp.MustCompile(`(?m)^\d+:\s+\S+:.*link/ether\s+([0-9a-fA-F:]{17})`)
	lsblkDiskRe         = regexp.MustCompile(`(?m)^\S+\s+\d+:\d+\s+\d+\s+([\d.]+[KMGTkmgt]?)\s+\d+\s+disk`)
)

// parseLinuxOutputs handles the PlatformLinux command bundle: hostname,
// uname -a, cat /etc/os-release, lscpu, free -m, df -h, lsblk, the three
// dmidecode -s calls, and ip -o link show.
func parseLinuxOutputs(raw map[string]any) {
	if s, ok := cmdOutput(raw, "cat /etc/os-release"); ok {
		if m := osReleaseNameRe.FindStringSubmatch(s); m != nil {
			raw["os_name"] = strings.Trim(strings.TrimSpace(m[1]), `"`)
		}
		if m := osReleaseVersionRe.FindStringSubmatch(s); m != nil {
			raw["os_version"] = strings.Trim(strings.TrimSpace(m[1]), `"`)
		}
	}

	if s, ok := cmdOutput(raw, "lscpu"); ok {
		if m := lscpuModelRe.FindStringSubmatch(s); m != nil {
			raw["processor"] = strings.TrimSpace(m[1])
		}
		cores, sockets := 0, 1
		if m := lscpuCoresPerSockRe.FindStringSubmatch(s); m != nil {
			cores, _ = strconv.Atoi(m[1])
		}
		if m := lscpuSocketsRe.FindStringSubmatch(s); m != nil {
			sockets, _ = strconv.Atoi(m[1])
		}
		if cores > 0 {
			raw["cpu_cores"] = cores * sockets
		}
		if m := lscpuLogicalRe.FindStringSubmatch(s); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				raw["cpu_logical"] = n
			}
		}
	}

	if s, ok := cmdOutput(raw, "free -m"); ok {
		if m := freeMemMBRe.FindStringSubmatch(s); m != nil {
			if mb, err := strconv.ParseFloat(m[1], 64); err == nil {
				raw["total_physical_memory_bytes"] = mb * 1024 * 1024
			}
		}
	}

	if s, ok := cmdOutput(raw, "dmidecode -s system-serial-number"); ok {
		raw["serial_number"] = strings.TrimSpace(s)
	}
	if s, ok := cmdOutput(raw, "dmidecode -s system-manufacturer"); ok {
		raw["manufacturer"] = strings.TrimSpace(s)
	}
	if s, ok := cmdOutput(raw, "dmidecode -s system-product-name"); ok {
		raw["model"] = strings.TrimSpace(s)
	}

	if s, ok := cmdOutput(raw, "lsblk"); ok {
		var disks []map[string]any
		for _, m := range lsblkDiskRe.FindAllStringSubmatch(s, -1) {
			if gb, ok := parseSizeToken(m[1]); ok {
				disks = append(disks, map[string]any{"size_gb": gb})
			}
		}
		if len(disks) > 0 {
			raw["storage_list"] = disks
		}
	}

	if s, ok := cmdOutput(raw, "ip -o link show"); ok {
		var ifaces []map[string]any
		for _, m := range ipLinkMacRe.FindAllStringSubmatch(s, -1) {
			ifaces = append(ifaces, map[string]any{"mac": m[1]})
		}
		if len(ifaces) > 0 {
			raw["interfaces"] = ifaces
		}
	}
}

var (
	esxiVendorRe  = regexp.MustCompile(`(?m)Vendor Name:\s*(.+)$`)
	esxiProductRe = regexp.MustCompile(`(?m)Product Name:\s*(.+)$`)
	esxiSerialRe  = regexp.MustCompile(`(?m)Serial Number:\s*(.+)$`)
)

func parseESXiOutputs(raw map[string]any) {
	if s, ok := cmdOutput(raw, "esxcli hardware platform get"); ok {
		if m := esxiVendorRe.FindStringSubmatch(s); m != nil {
			raw["manufacturer"] = strings.TrimSpace(m[1])
		}
		if m := esxiProductRe.FindStringSubmatch(s); m != nil {
			raw["model"] = strings.TrimSpace(m[1])
		}
		if m := esxiSerialRe.FindStringSubmatch(s); m != nil {
			raw["serial_number"] = strings.TrimSpace(m[1])
		}
	}
	if s, ok := cmdOutput(raw, "vmware -v"); ok {
		raw["os_name"] = strings.TrimSpace(s)
	}
}

// Network-device command outputs (Cisco/Juniper/Aruba/Huawei/FortiOS/
// MikroTik "show version"-family text) vary far more across vendors than
// Linux's. These patterns cover the common "LABEL: value" / "label value"
// shapes (Cisco show inventory's PID/SN, FortiOS's Serial-Number, Juniper's
// Model, MikroTik's board-name) rather than a full per-vendor grammar.
var (
	genericSerialRe  = regexp.MustCompile(`(?im)^\s*(?:serial[\s_-]*number|sn)\s*[:=]\s*"?([A-Za-z0-9._-]+)"?`)
	genericModelRe   = regexp.MustCompile(`(?im)^\s*(?:pid|model|product[\s_-]*name|board-name)\s*[:=]\s*"?([A-Za-z0-9._-]+)"?`)
	genericVersionRe = regexp.MustCompile(`(?im)^\s*version\s*[:=]\s*"?([^"\n,]+)"?`)
)

func parseNetworkDeviceOutputs(raw map[string]any) {
	var combined strings.Builder
	for _, cmd := range []string{
		"show version", "show inventory", "show chassis hardware",
		"show system", "display version", "display device",
		"get system status", "/system resource print", "/system routerboard print",
	} {
		if s, ok := cmdOutput(raw, cmd); ok {
			combined.WriteString(s)
			combined.WriteString("\n")
		}
	}
	text := combined.String()
	if text == "" {
		return
	}
	if m := genericSerialRe.FindStringSubmatch(text); m != nil {
		raw["serial_number"] = m[1]
	}
	if m := genericModelRe.FindStringSubmatch(text); m != nil {
		raw["model"] = m[1]
	}
	if m := genericVersionRe.FindStringSubmatch(text); m != nil {
		raw["os_version"] = strings.TrimSpace(m[1])
	}
}

func parseSizeToken(tok string) (float64, bool) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, false
	}
	unit := tok[len(tok)-1]
	numPart := tok
	mult := 1.0
	switch unit {
	case 'K', 'k':
		mult = 1.0 / (1024 * 1024)
		numPart = tok[:len(tok)-1]
	case 'M', 'm':
		mult = 1.0 / 1024
		numPart = tok[:len(tok)-1]
	case 'G', 'g':
		numPart = tok[:len(tok)-1]
	case 'T', 't':
		mult = 1024
		numPart = tok[:len(tok)-1]
	}
	v, err := strconv.ParseFloat(numPart, 64)
	if err != nil {
		return 0, false
	}
	return v * mult, true
}
