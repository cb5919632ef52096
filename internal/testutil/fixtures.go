package testutil

import (
	"time"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

// SampleLivenessResult returns an alive, Windows-hinted Stage 1 result.
func SampleLivenessResult(ip string) pipeline.LivenessResult {
	return pipeline.LivenessResult{
		Alive:        true,
		LatencyMS:    4.2,
		TTL:          128,
		Hostname:     "WORKSTATION-01",
		OSFamilyHint: "windows",
	}
}

// SampleClassification returns a high-confidence Windows workstation
// classification with a small set of open ports.
func SampleClassification() pipeline.Classification {
	return pipeline.Classification{
		OSFamily:    "windows",
		DeviceClass: pipeline.DeviceWorkstation,
		OpenPorts:   []int{135, 445, 3389},
		Services:    map[int]string{445: "microsoft-ds"},
		Confidence:  0.9,
	}
}

// SampleWMICollectResult returns a raw WMI collector result shaped the way
// internal/collect/wmi.Collect actually produces it: one []map[string]any
// of class rows per WMI class key, using the real WMI property names
// (Win32_ComputerSystem.Name/UserName/Domain/..., Win32_BIOS.SerialNumber,
// Win32_OperatingSystem.Caption/Version/BuildNumber, ...), not a flattened
// dict of already-canonical field names.
func SampleWMICollectResult(ip string) pipeline.CollectResult {
	return pipeline.CollectResult{
		Method: pipeline.MethodWMI,
		Raw: map[string]any{
			"computer_system": []map[string]any{{
				"Name":                "WORKSTATION-01",
				"UserName":            "CORP\\jdoe",
				"Domain":              "CORP",
				"Manufacturer":        "Dell Inc.",
				"Model":               "OptiPlex 7090",
				"SystemSKUNumber":     "0A01",
				"TotalPhysicalMemory": float64(32 * 1024 * 1024 * 1024),
			}},
			"operating_system": []map[string]any{{
				"Caption":     "Microsoft Windows 11 Pro",
				"Version":     "10.0.22631",
				"BuildNumber": "22631",
			}},
			"processor": []map[string]any{{
				"Name":                      "Intel(R) Core(TM) i7-10700",
				"NumberOfCores":             8,
				"NumberOfLogicalProcessors": 16,
			}},
			"bios": []map[string]any{{
				"SerialNumber": "ABC1234",
			}},
			"video_controller": []map[string]any{{
				"Name": "Intel UHD Graphics 630",
			}},
			"desktop_monitor": []map[string]any{{"Name": "Monitor 1"}, {"Name": "Monitor 2"}},
			"disk_drive":      []map[string]any{{"Size": float64(512) * 1024 * 1024 * 1024}},
			"network_adapter_configuration": []map[string]any{{
				"MACAddress":  "AA:BB:CC:DD:EE:FF",
				"IPAddress":   []string{ip},
				"Description": "Intel(R) Ethernet Connection",
			}},
		},
	}
}

// SampleSNMPCollectResult returns a raw SNMP collector result shaped the
// way internal/collect/snmp.Collect actually produces it, for a network
// device rather than a workstation: sys_name (not hostname), manufacturer
// inferred from sysDescr, serial_number/serial_numbers from the
// entPhysicalSerialNum walk, and storage_list from the hrStorageSize/
// hrStorageAllocationUnits walk.
func SampleSNMPCollectResult(ip string) pipeline.CollectResult {
	return pipeline.CollectResult{
		Method: pipeline.MethodSNMP,
		Raw: map[string]any{
			"sys_descr":      "Cisco IOS Software, Catalyst 9300",
			"sys_name":       "switch-core-01",
			"manufacturer":   "Cisco",
			"serial_number":  "FCW2345X0YZ",
			"serial_numbers": []string{"FCW2345X0YZ"},
			"storage_list":   []map[string]any{{"size_bytes": float64(512) * 1024 * 1024}},
		},
	}
}

// SampleAssetRecord returns a fully populated canonical asset record for a
// Windows workstation, useful for exercising the reconciler and store
// without running the full pipeline.
func SampleAssetRecord(ip string) pipeline.AssetRecord {
	now := time.Now().UTC()
	return pipeline.AssetRecord{
		IPAddress:           ip,
		Hostname:            "WORKSTATION-01",
		WorkingUser:         "jdoe",
		Domain:              "CORP",
		DeviceType:          pipeline.DeviceWorkstation,
		OSName:              "Windows 11 Pro",
		OSVersion:           "23H2",
		OSBuild:             "22631",
		Manufacturer:        "Dell Inc.",
		Model:               "OptiPlex 7090",
		SystemSKU:           "0A01",
		SerialNumber:        "ABC1234",
		AssetTag:            "CORP-00217",
		Processor:           "Intel(R) Core(TM) i7-10700",
		CPUCores:            8,
		CPULogical:          16,
		InstalledRAMGB:      32,
		Storage:             "512GB NVMe SSD",
		ActiveGPU:           "Intel UHD Graphics 630",
		ConnectedScreens:    "2",
		MACAddresses:        []string{"AA:BB:CC:DD:EE:FF"},
		OpenPorts:           []int{135, 445, 3389},
		CollectionMethod:    pipeline.MethodWMI,
		CollectionTimestamp: now,
		LastSeen:            now,
		FirstSeen:           now,
		DataSource:          "scan",
		QualityScore:        95,
		Fingerprint:         "aabbccddeeff0011",
	}
}
