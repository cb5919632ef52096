package dispatch

import (
	"context"
	"reflect"
	"testing"

	"github.com/fieldops/netdiscover/internal/pipeline"
)

func TestSequenceFor(t *testing.T) {
	cases := []struct {
		class     pipeline.DeviceType
		openPorts []int
		want      []pipeline.CollectorMethod
	}{
		{pipeline.DeviceWorkstation, []int{445}, []pipeline.CollectorMethod{pipeline.MethodWMI, pipeline.MethodHTTP}},
		{pipeline.DeviceWorkstation, []int{445, 161}, []pipeline.CollectorMethod{pipeline.MethodWMI, pipeline.MethodSNMP, pipeline.MethodHTTP}},
		{pipeline.DeviceLinuxServer, nil, []pipeline.CollectorMethod{pipeline.MethodSSH, pipeline.MethodSNMP, pipeline.MethodHTTP}},
		{pipeline.DeviceFirewall, nil, []pipeline.CollectorMethod{pipeline.MethodSSH, pipeline.MethodSNMP, pipeline.MethodHTTP}},
		{pipeline.DevicePrinter, nil, []pipeline.CollectorMethod{pipeline.MethodSNMP, pipeline.MethodHTTP, pipeline.MethodSSH}},
		{pipeline.DeviceUnknown, []int{22, 161}, []pipeline.CollectorMethod{pipeline.MethodSSH, pipeline.MethodSNMP, pipeline.MethodHTTP}},
		{pipeline.DeviceUnknown, nil, []pipeline.CollectorMethod{pipeline.MethodHTTP}},
	}
	for _, c := range cases {
		got := sequenceFor(c.class, c.openPorts)
		if !reflect.DeepEqual(got, c.want) {
			t.Errorf("sequenceFor(%v, %v) = %v, want %v", c.class, c.openPorts, got, c.want)
		}
	}
}

// fakeCollector returns a scripted sequence of errors/results per call.
type fakeCollector struct {
	method  pipeline.CollectorMethod
	results []struct {
		raw map[string]any
		err error
	}
	calls int
}

func (f *fakeCollector) Method() pipeline.CollectorMethod { return f.method }

func (f *fakeCollector) Collect(_ context.Context, _ pipeline.Endpoint, _ pipeline.Credential) (map[string]any, error) {
	if f.calls >= len(f.results) {
		f.calls++
		return nil, &pipeline.CollectorError{Kind: pipeline.ErrUnreachable}
	}
	r := f.results[f.calls]
	f.calls++
	return r.raw, r.err
}

func TestRunCollector_CredentialRotationOnAuthFailed(t *testing.T) {
	fc := &fakeCollector{
		method: pipeline.MethodSSH,
		results: []struct {
			raw map[string]any
			err error
		}{
			{nil, &pipeline.CollectorError{Kind: pipeline.ErrAuthFailed}},
			{map[string]any{"ok": true}, nil},
		},
	}
	d := &Dispatcher{Retry: DefaultRetryConfig}
	creds := []pipeline.Credential{{User: "u1"}, {User: "u2"}}

	raw, _, err := d.runCollector(context.Background(), fc, pipeline.Endpoint{IP: "10.0.0.1"}, creds)
	if err != nil {
		t.Fatalf("expected success after rotation, got %v", err)
	}
	if raw["ok"] != true {
		t.Errorf("got %v", raw)
	}
	if fc.calls != 2 {
		t.Errorf("expected 2 calls (one per credential), got %d", fc.calls)
	}
}

func TestRunCollector_NonRecoverableStopsImmediately(t *testing.T) {
	fc := &fakeCollector{
		method: pipeline.MethodSNMP,
		results: []struct {
			raw map[string]any
			err error
		}{
			{nil, &pipeline.CollectorError{Kind: pipeline.ErrProtocolPermanent}},
		},
	}
	d := &Dispatcher{Retry: DefaultRetryConfig}
	_, _, err := d.runCollector(context.Background(), fc, pipeline.Endpoint{IP: "10.0.0.1"}, []pipeline.Credential{{}})
	if err == nil {
		t.Fatal("expected error")
	}
	if fc.calls != 1 {
		t.Errorf("expected exactly 1 call for non-recoverable error, got %d", fc.calls)
	}
}

func TestDispatch_FallsThroughToNextCollector(t *testing.T) {
	ssh := &fakeCollector{method: pipeline.MethodSSH, results: []struct {
		raw map[string]any
		err error
	}{{nil, &pipeline.CollectorError{Kind: pipeline.ErrProtocolPermanent}}}}
	snmpC := &fakeCollector{method: pipeline.MethodSNMP, results: []struct {
		raw map[string]any
		err error
	}{{map[string]any{"sys_name": "sw1"}, nil}}}

	d := New(map[pipeline.CollectorMethod]pipeline.Collector{
		pipeline.MethodSSH:  ssh,
		pipeline.MethodSNMP: snmpC,
	})

	result := d.Dispatch(context.Background(), pipeline.Endpoint{IP: "10.0.0.2"},
		pipeline.Classification{DeviceClass: pipeline.DeviceSwitch}, CredentialPool{})

	if result.Err != nil {
		t.Fatalf("expected eventual success via SNMP fallthrough, got %v", result.Err)
	}
	if result.Method != pipeline.MethodSNMP {
		t.Errorf("expected SNMP to win, got %v", result.Method)
	}
}

func TestIsRecoverable_MatchesCollectorErrorRetryable(t *testing.T) {
	kinds := []pipeline.ErrorKind{
		pipeline.ErrTimeout, pipeline.ErrUnreachable, pipeline.ErrProtocolTransient,
		pipeline.ErrStorageTransient, pipeline.ErrAuthFailed, pipeline.ErrCancelled,
	}
	for _, k := range kinds {
		err := &pipeline.CollectorError{Kind: k}
		if got, want := isRecoverable(err), err.Retryable(); got != want {
			t.Errorf("isRecoverable(%v) = %v, want %v (CollectorError.Retryable())", k, got, want)
		}
	}
}

func TestIsRecoverable_NonCollectorError(t *testing.T) {
	if isRecoverable(context.Canceled) {
		t.Error("expected a non-CollectorError to be non-recoverable")
	}
}
