//go:build windows

// Package wmi implements the kind=windows collector (§4.4.1) against
// \\host\root\cimv2 using yusufpapurcu/wmi and go-ole, grounded on the pack's
// own reference WMI collector (original_source/collectors/wmi_collector.py).
package wmi

import (
	"context"
	"fmt"

	"github.com/go-ole/go-ole"
	"github.com/yusufpapurcu/wmi"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

// queryOrder is the fixed sequence of §4.4.1: later failures don't abort
// earlier data, so each query result is collected independently.
var queryOrder = []struct {
	key   string
	class string
}{
	{"computer_system", "Win32_ComputerSystem"},
	{"operating_system", "Win32_OperatingSystem"},
	{"processor", "Win32_Processor"},
	{"physical_memory", "Win32_PhysicalMemory"},
	{"disk_drive", "Win32_DiskDrive"},
	{"disk_partition", "Win32_DiskPartition"},
	{"logical_disk", "Win32_LogicalDisk"},
	{"network_adapter_configuration", "Win32_NetworkAdapterConfiguration WHERE IPEnabled=True"},
	{"video_controller", "Win32_VideoController"},
	{"desktop_monitor", "Win32_DesktopMonitor"},
	{"bios", "Win32_BIOS"},
	{"system_enclosure", "Win32_SystemEnclosure"},
}

// Collector implements pipeline.Collector for kind=windows.
type Collector struct{}

// New returns a WMI Collector.
func New() *Collector { return &Collector{} }

// Method implements pipeline.Collector.
func (c *Collector) Method() pipeline.CollectorMethod { return pipeline.MethodWMI }

// Collect implements pipeline.Collector.
func (c *Collector) Collect(ctx context.Context, ep pipeline.Endpoint, cred pipeline.Credential) (map[string]any, error) {
	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err == nil {
		defer ole.CoUninitialize()
	}

	raw := map[string]any{}
	anyOK := false

	for _, q := range queryOrder {
		var dst []map[string]any
		wql := fmt.Sprintf("SELECT * FROM %s", q.class)

		err := queryWithCredentials(ctx, ep.IP, wql, &dst, cred)
		if err != nil {
			raw[q.key+"_error"] = err.Error()
			continue
		}
		raw[q.key] = dst
		anyOK = true
	}

	if !anyOK {
		return nil, &pipeline.CollectorError{Kind: pipeline.ErrAuthFailed, Detail: "all WMI queries failed"}
	}
	return raw, nil
}

func queryWithCredentials(ctx context.Context, host, wql string, dst *[]map[string]any, cred pipeline.Credential) error {
	namespace := `root\cimv2`

	done := make(chan error, 1)
	go func() {
		done <- wmi.QueryNamespace(wql, dst, namespace, host, cred.User, cred.Secret)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
