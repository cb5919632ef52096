package snmp

import (
	"testing"

	"github.com/gosnmp/gosnmp"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

func TestInferFromSysDescr(t *testing.T) {
	cases := []struct {
		descr      string
		wantClass  pipeline.DeviceType
		wantVendor string
	}{
		{"Cisco IOS Software, C2960 Software", pipeline.DeviceSwitch, "Cisco"},
		{"Linux hostname 5.10.0-generic", pipeline.DeviceLinuxServer, ""},
		{"HP LaserJet MFP", pipeline.DevicePrinter, "HP"},
		{"totally unrecognized device", pipeline.DeviceUnknown, ""},
	}
	for _, c := range cases {
		gotClass, gotVendor := inferFromSysDescr(c.descr)
		if gotClass != c.wantClass || gotVendor != c.wantVendor {
			t.Errorf("inferFromSysDescr(%q) = (%v, %v), want (%v, %v)", c.descr, gotClass, gotVendor, c.wantClass, c.wantVendor)
		}
	}
}

func TestClassifySNMPError(t *testing.T) {
	err := classifySNMPError(&testErr{"request timeout (after 3 retries)"})
	ce, ok := err.(*pipeline.CollectorError)
	if !ok || ce.Kind != pipeline.ErrTimeout {
		t.Errorf("expected Timeout kind, got %v", err)
	}

	err = classifySNMPError(&testErr{"malformed packet"})
	ce, ok = err.(*pipeline.CollectorError)
	if !ok || ce.Kind != pipeline.ErrProtocolTransient {
		t.Errorf("expected ProtocolError(transient) kind, got %v", err)
	}
}

func TestBuildClient_V2cDefaultsCommunity(t *testing.T) {
	cred := pipeline.Credential{Kind: pipeline.CredSNMPv2c}
	client, err := buildClient("192.0.2.1", cred)
	if err != nil {
		t.Fatalf("buildClient: %v", err)
	}
	if client.Community != "public" {
		t.Errorf("expected default community public, got %q", client.Community)
	}
	if client.Version != gosnmp.Version2c {
		t.Errorf("expected Version2c, got %v", client.Version)
	}
}

func TestBuildClient_UnsupportedKind(t *testing.T) {
	cred := pipeline.Credential{Kind: pipeline.CredSSH}
	_, err := buildClient("192.0.2.1", cred)
	if err == nil {
		t.Fatal("expected error for unsupported credential kind")
	}
}

type testErr struct{ msg string }

func (e *testErr) Error() string { return e.msg }
