package expand

import (
	"reflect"
	"testing"
)

func TestExpand_SingleAddress(t *testing.T) {
	got, err := Expand([]string{"192.0.2.10"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []string{"192.0.2.10"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpand_Range(t *testing.T) {
	got, err := Expand([]string{"192.0.2.1-3"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []string{"192.0.2.1", "192.0.2.2", "192.0.2.3"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpand_CIDRSkipsNetworkAndBroadcast(t *testing.T) {
	got, err := Expand([]string{"192.0.2.0/29"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	// /29 = 8 addresses: .0 (network) .1-.6 (hosts) .7 (broadcast)
	want := []string{"192.0.2.1", "192.0.2.2", "192.0.2.3", "192.0.2.4", "192.0.2.5", "192.0.2.6"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpand_CIDRSlash32KeepsSingleAddress(t *testing.T) {
	got, err := Expand([]string{"192.0.2.5/32"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []string{"192.0.2.5"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpand_Deduplicates(t *testing.T) {
	got, err := Expand([]string{"192.0.2.1", "192.0.2.1-2"})
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	want := []string{"192.0.2.1", "192.0.2.2"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestExpand_InvalidFailsFast(t *testing.T) {
	_, err := Expand([]string{"192.0.2.1", "not-an-ip", "192.0.2.2"})
	if err == nil {
		t.Fatal("expected error for invalid target")
	}
	var ite *InvalidTargetError
	if !asInvalidTarget(err, &ite) {
		t.Fatalf("expected InvalidTargetError, got %T: %v", err, err)
	}
}

func asInvalidTarget(err error, target **InvalidTargetError) bool {
	ite, ok := err.(*InvalidTargetError)
	if ok {
		*target = ite
	}
	return ok
}

func TestExpand_InvalidCIDRPrefix(t *testing.T) {
	if _, err := Expand([]string{"192.0.2.0/33"}); err == nil {
		t.Fatal("expected error for /33 prefix")
	}
}

func TestExpand_InvalidRangeOrder(t *testing.T) {
	if _, err := Expand([]string{"192.0.2.10-5"}); err == nil {
		t.Fatal("expected error for descending range")
	}
}
