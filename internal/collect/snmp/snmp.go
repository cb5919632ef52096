// Package snmp implements the kind=snmp_v2c/snmp_v3 collector (§4.4.3)
// using gosnmp, grounded on the pack's own SNMP-backed reference collector
// (original_source/collectors/snmp_collector.py) but reimplemented against
// Go credential and error-taxonomy idioms.
package snmp

import (
	"context"
	"strings"
	"time"

	"github.com/gosnmp/gosnmp"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

const (
	oidSysDescr      = "1.3.6.1.2.1.1.1.0"
	oidSysName       = "1.3.6.1.2.1.1.5.0"
	oidHrMemorySize  = "1.3.6.1.2.1.25.2.2.0"
	oidPrinterName   = "1.3.6.1.2.1.43.5.1.1.16.1"
	oidEntPhysSerial = "1.3.6.1.2.1.47.1.1.1.1.11"
	oidHrStorageSize = "1.3.6.1.2.1.25.2.3.1.5"
	oidHrStorageUnit = "1.3.6.1.2.1.25.2.3.1.4"

	defaultTimeout = 3 * time.Second
	defaultRetries = 1
)

// manufacturerKeywords maps a sysDescr substring to a manufacturer name.
var manufacturerKeywords = []struct {
	substr string
	vendor string
	class  pipeline.DeviceType
}{
	{"cisco", "Cisco", pipeline.DeviceSwitch},
	{"juniper", "Juniper", pipeline.DeviceSwitch},
	{"aruba", "Aruba", pipeline.DeviceAccessPoint},
	{"fortinet", "Fortinet", pipeline.DeviceFirewall},
	{"hp", "HP", pipeline.DevicePrinter},
	{"lexmark", "Lexmark", pipeline.DevicePrinter},
	{"vmware", "VMware", pipeline.DeviceHypervisor},
	{"linux", "", pipeline.DeviceLinuxServer},
	{"windows", "Microsoft", pipeline.DeviceWindowsServer},
}

// Collector implements pipeline.Collector for kind=snmp_v2c/snmp_v3.
type Collector struct{}

// New returns an SNMP Collector.
func New() *Collector { return &Collector{} }

// Method implements pipeline.Collector.
func (c *Collector) Method() pipeline.CollectorMethod { return pipeline.MethodSNMP }

// Collect implements pipeline.Collector.
func (c *Collector) Collect(ctx context.Context, ep pipeline.Endpoint, cred pipeline.Credential) (map[string]any, error) {
	client, err := buildClient(ep.IP, cred)
	if err != nil {
		return nil, err
	}

	if err := client.Connect(); err != nil {
		return nil, &pipeline.CollectorError{Kind: pipeline.ErrUnreachable, Detail: err.Error()}
	}
	defer client.Conn.Close()

	raw := map[string]any{}

	if err := getInto(client, []string{oidSysDescr, oidSysName, oidHrMemorySize, oidPrinterName}, raw); err != nil {
		return nil, err
	}

	if serials, err := walkStrings(client, oidEntPhysSerial); err == nil && len(serials) > 0 {
		raw["serial_numbers"] = serials
		// normalize.Normalize reads the singular key, matching WMI/SSH.
		raw["serial_number"] = serials[0]
	}
	if storageList := walkStorageTable(client); len(storageList) > 0 {
		raw["storage_list"] = storageList
	}

	sysDescr, _ := raw["sys_descr"].(string)
	class, vendor := inferFromSysDescr(sysDescr)
	if class != pipeline.DeviceUnknown {
		raw["device_class_hint"] = string(class)
	}
	if vendor != "" {
		raw["manufacturer"] = vendor
	}

	return raw, nil
}

func buildClient(ip string, cred pipeline.Credential) (*gosnmp.GoSNMP, error) {
	port := uint16(161)
	if cred.Port != 0 {
		port = uint16(cred.Port)
	}

	client := &gosnmp.GoSNMP{
		Target:    ip,
		Port:      port,
		Timeout:   defaultTimeout,
		Retries:   defaultRetries,
		MaxOids:   gosnmp.MaxOids,
	}

	switch cred.Kind {
	case pipeline.CredSNMPv2c:
		client.Version = gosnmp.Version2c
		community := cred.Secret
		if community == "" {
			community = "public"
		}
		client.Community = community

	case pipeline.CredSNMPv3:
		client.Version = gosnmp.Version3
		client.SecurityModel = gosnmp.UserSecurityModel
		authProto := gosnmp.MD5
		if strings.EqualFold(cred.AuthProto, "SHA") {
			authProto = gosnmp.SHA
		}
		privProto := gosnmp.DES
		if strings.EqualFold(cred.PrivProto, "AES-128") {
			privProto = gosnmp.AES
		}
		msgFlags := gosnmp.AuthPriv
		client.SecurityParameters = &gosnmp.UsmSecurityParameters{
			UserName:                 cred.User,
			AuthenticationProtocol:   authProto,
			AuthenticationPassphrase: cred.Secret,
			PrivacyProtocol:          privProto,
			PrivacyPassphrase:        cred.EnableSecret,
		}
		client.MsgFlags = msgFlags

	default:
		return nil, &pipeline.CollectorError{Kind: pipeline.ErrAuthFailed, Detail: "unsupported SNMP credential kind"}
	}

	return client, nil
}

func getInto(client *gosnmp.GoSNMP, oids []string, raw map[string]any) error {
	result, err := client.Get(oids)
	if err != nil {
		return classifySNMPError(err)
	}
	for _, v := range result.Variables {
		switch v.Name {
		case "." + oidSysDescr, oidSysDescr:
			if s, ok := v.Value.([]byte); ok {
				raw["sys_descr"] = string(s)
			}
		case "." + oidSysName, oidSysName:
			if s, ok := v.Value.([]byte); ok {
				raw["sys_name"] = string(s)
			}
		case "." + oidHrMemorySize, oidHrMemorySize:
			raw["hr_memory_size_kb"] = gosnmp.ToBigInt(v.Value).Int64()
		case "." + oidPrinterName, oidPrinterName:
			if s, ok := v.Value.([]byte); ok {
				raw["printer_name"] = string(s)
			}
		}
	}
	return nil
}

// walkStorageTable walks hrStorageSize/hrStorageAllocationUnits in lockstep,
// keyed by their shared table index suffix, and returns each entry's size in
// bytes under the "size_bytes" key normalize.extractDiskSizesGB expects.
// Errors on either walk (common on hosts without the HOST-RESOURCES MIB, e.g.
// bare switches) are treated as "no storage data" rather than fatal.
func walkStorageTable(client *gosnmp.GoSNMP) []map[string]any {
	sizes := walkIndexedInts(client, oidHrStorageSize)
	units := walkIndexedInts(client, oidHrStorageUnit)
	if len(sizes) == 0 {
		return nil
	}
	var out []map[string]any
	for idx, size := range sizes {
		unit := units[idx]
		if unit <= 0 {
			unit = 1
		}
		out = append(out, map[string]any{"size_bytes": float64(size * unit)})
	}
	return out
}

func walkIndexedInts(client *gosnmp.GoSNMP, rootOID string) map[string]int64 {
	out := map[string]int64{}
	_ = client.Walk(rootOID, func(pdu gosnmp.SnmpPDU) error {
		idx := strings.TrimPrefix(pdu.Name, "."+rootOID)
		idx = strings.TrimPrefix(idx, rootOID)
		idx = strings.TrimPrefix(idx, ".")
		out[idx] = gosnmp.ToBigInt(pdu.Value).Int64()
		return nil
	})
	return out
}

func walkStrings(client *gosnmp.GoSNMP, rootOID string) ([]string, error) {
	var out []string
	err := client.Walk(rootOID, func(pdu gosnmp.SnmpPDU) error {
		if s, ok := pdu.Value.([]byte); ok && len(s) > 0 {
			out = append(out, string(s))
		}
		return nil
	})
	if err != nil {
		return nil, classifySNMPError(err)
	}
	return out, nil
}

func classifySNMPError(err error) error {
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "timeout") {
		return &pipeline.CollectorError{Kind: pipeline.ErrTimeout, Detail: msg}
	}
	return &pipeline.CollectorError{Kind: pipeline.ErrProtocolTransient, Detail: msg}
}

func inferFromSysDescr(sysDescr string) (pipeline.DeviceType, string) {
	low := strings.ToLower(sysDescr)
	for _, kw := range manufacturerKeywords {
		if strings.Contains(low, kw.substr) {
			return kw.class, kw.vendor
		}
	}
	return pipeline.DeviceUnknown, ""
}
