package netconf

import (
	"context"
	"testing"
	"time"
)

func TestDriverDiscoverAllSkipsDevicesNotYetConnected(t *testing.T) {
	orig := dialFunc
	defer func() { dialFunc = orig }()

	r1 := &fakeSession{getReplies: map[string]string{
		filterLLDPGlobal():    `<lldp xmlns="http://openconfig.net/yang/lldp"><config><enabled>true</enabled></config></lldp>`,
		filterInterfaces():    `<interfaces xmlns="http://openconfig.net/yang/interfaces"><interface><name>Gi2</name></interface></interfaces>`,
		filterLLDPNeighbors(): `<lldp xmlns="http://openconfig.net/yang/lldp"><interfaces><interface><name>Gi2</name><neighbors><neighbor><system-name>R2</system-name></neighbor></neighbors></interface></interfaces></lldp>`,
	}}
	dialFunc = func(ctx context.Context, addr, user, password string, timeout time.Duration) (netconfSession, error) {
		return r1, nil
	}

	dr := NewDriver()
	dr.AddDevice("R1", "10.0.0.1", "admin", "secret", time.Second)

	topo := dr.DiscoverAll(context.Background())
	if len(topo.Interfaces) != 0 {
		t.Errorf("first cycle (still Disconnected->LLDPOff) should contribute nothing, got %+v", topo)
	}

	topo = dr.DiscoverAll(context.Background())
	if len(topo.Interfaces) != 0 {
		t.Errorf("second cycle (LLDPOff->LLDPOn) should contribute nothing, got %+v", topo)
	}

	topo = dr.DiscoverAll(context.Background())
	if ports, ok := topo.Interfaces["R1"]; !ok || len(ports) != 1 {
		t.Fatalf("third cycle should publish R1's interfaces, got %+v", topo.Interfaces)
	}
	if neighbors, ok := topo.Neighbors["R1"]; !ok || neighbors["R2"] != "Gi2" {
		t.Errorf("expected R1's neighbor R2 on Gi2, got %+v", topo.Neighbors)
	}
}

func TestDriverHostnamesAndDeviceLookup(t *testing.T) {
	dr := NewDriver()
	dr.AddDevice("R1", "10.0.0.1", "admin", "secret", time.Second)
	dr.AddDevice("R2", "10.0.0.2", "admin", "secret", time.Second)

	if len(dr.Hostnames()) != 2 {
		t.Errorf("Hostnames() = %v, want 2 entries", dr.Hostnames())
	}
	if dr.Device("R1") == nil {
		t.Error("Device(R1) = nil, want the registered device")
	}
	if dr.Device("ghost") != nil {
		t.Error("Device(ghost) should be nil for an unregistered hostname")
	}
}

func TestDriverRemoveDeviceDropsHostname(t *testing.T) {
	dr := NewDriver()
	dr.AddDevice("R1", "10.0.0.1", "admin", "secret", time.Second)

	dr.RemoveDevice("R1")

	if dr.Device("R1") != nil {
		t.Error("expected R1 to be gone after RemoveDevice")
	}
	if len(dr.Hostnames()) != 0 {
		t.Errorf("Hostnames() = %v, want empty", dr.Hostnames())
	}
}

func TestDriverConfigureListErrorsForUnmanagedHostname(t *testing.T) {
	dr := NewDriver()
	if err := dr.ConfigureList(context.Background(), "ghost", nil); err == nil {
		t.Fatal("expected an error configuring an unmanaged hostname")
	}
}
