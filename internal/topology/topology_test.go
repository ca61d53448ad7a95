package topology

import (
	"testing"

	"github.com/hsdnet/controller/internal/model"
	"github.com/hsdnet/controller/internal/netconf"
	"github.com/hsdnet/controller/internal/sdn"
)

func TestUpdateClassicAdmitsOnlyBidirectionalLinks(t *testing.T) {
	var got EventTopology
	m := NewManager(func(e EventTopology) { got = e })

	m.UpdateClassic(netconf.Topology{
		Interfaces: map[string][]string{
			"r1": {"eth0", "eth1"},
			"r2": {"eth0"},
		},
		Neighbors: map[string]map[string]string{
			"r1": {"r2": "eth0"}, // r1 sees r2 on eth0
			"r2": {"r1": "eth0"}, // r2 sees r1 back on eth0: bidirectional
		},
	})

	if len(got.Links) != 1 {
		t.Fatalf("expected 1 link, got %d: %+v", len(got.Links), got.Links)
	}
	link := got.Links[0]
	if _, ok := link.Other("r1", "eth0"); !ok {
		t.Errorf("expected link to include r1/eth0, got %+v", link)
	}
	if _, ok := link.Other("r2", "eth0"); !ok {
		t.Errorf("expected link to include r2/eth0, got %+v", link)
	}
}

func TestUpdateClassicRejectsOneSidedRelation(t *testing.T) {
	var got EventTopology
	m := NewManager(func(e EventTopology) { got = e })

	m.UpdateClassic(netconf.Topology{
		Interfaces: map[string][]string{"r1": {"eth0"}, "r2": {"eth0"}},
		Neighbors: map[string]map[string]string{
			"r1": {"r2": "eth0"}, // r1 sees r2, but r2 never reports r1 back
		},
	})

	if len(got.Links) != 0 {
		t.Errorf("expected no links for a one-sided relation, got %+v", got.Links)
	}
}

func TestUpdateSDNBuildsPortNumberedEndpoints(t *testing.T) {
	var got EventTopology
	m := NewManager(func(e EventTopology) { got = e })

	m.UpdateSDN(sdn.Topology{
		Ports: map[string][]model.Port{
			"S1": {{PortNo: 1}, {PortNo: 2}},
			"S2": {{PortNo: 1}},
		},
		Neighbors: map[string]map[string]string{
			"S1": {"2": "S2"},
			"S2": {"1": "S1"},
		},
	})

	if len(got.Links) != 1 {
		t.Fatalf("expected 1 link, got %d: %+v", len(got.Links), got.Links)
	}
	if _, ok := got.Links[0].Other("S1", "2"); !ok {
		t.Errorf("expected link to include S1/2, got %+v", got.Links[0])
	}
	if _, ok := got.Links[0].Other("S2", "1"); !ok {
		t.Errorf("expected link to include S2/1, got %+v", got.Links[0])
	}
}

func TestMixedClassicAndSDNLinkConfirmedAcrossTables(t *testing.T) {
	var got EventTopology
	m := NewManager(func(e EventTopology) { got = e })

	// r1 (classic) sees S1 (sdn) as a neighbor on eth0; S1 reports the
	// reverse relation back to r1 on port 3 — confirmed cross-table.
	m.UpdateClassic(netconf.Topology{
		Interfaces: map[string][]string{"r1": {"eth0"}},
		Neighbors:  map[string]map[string]string{"r1": {"S1": "eth0"}},
	})
	m.UpdateSDN(sdn.Topology{
		Ports:     map[string][]model.Port{"S1": {{PortNo: 3}}},
		Neighbors: map[string]map[string]string{"S1": {"3": "r1"}},
	})

	if len(got.Links) != 1 {
		t.Fatalf("expected 1 cross-table link, got %d: %+v", len(got.Links), got.Links)
	}
	if _, ok := got.Links[0].Other("r1", "eth0"); !ok {
		t.Errorf("expected link to include r1/eth0, got %+v", got.Links[0])
	}
	if _, ok := got.Links[0].Other("S1", "3"); !ok {
		t.Errorf("expected link to include S1/3, got %+v", got.Links[0])
	}
}

func TestNoChangeNoRepublish(t *testing.T) {
	calls := 0
	m := NewManager(func(e EventTopology) { calls++ })

	topo := netconf.Topology{
		Interfaces: map[string][]string{"r1": {"eth0"}, "r2": {"eth0"}},
		Neighbors: map[string]map[string]string{
			"r1": {"r2": "eth0"},
			"r2": {"r1": "eth0"},
		},
	}
	m.UpdateClassic(topo)
	if calls != 1 {
		t.Fatalf("expected first update to publish once, got %d", calls)
	}
	m.UpdateClassic(topo)
	if calls != 1 {
		t.Errorf("expected an identical snapshot to not republish, got %d calls", calls)
	}
}

func TestDevicesBuiltFromBothSnapshots(t *testing.T) {
	m := NewManager(func(EventTopology) {})
	m.UpdateClassic(netconf.Topology{Interfaces: map[string][]string{"r1": {"eth0", "eth1"}}})
	m.UpdateSDN(sdn.Topology{Ports: map[string][]model.Port{"S1": {{PortNo: 1}}}})

	snap := m.Snapshot()
	if len(snap.Devices) != 2 {
		t.Fatalf("expected 2 devices, got %d: %+v", len(snap.Devices), snap.Devices)
	}
	byName := map[string]model.Device{}
	for _, d := range snap.Devices {
		byName[d.Name] = d
	}
	if byName["r1"].Kind != model.Classic || len(byName["r1"].Ports) != 2 {
		t.Errorf("r1 device = %+v, want classic with 2 ports", byName["r1"])
	}
	if byName["S1"].Kind != model.SDN || len(byName["S1"].Ports) != 1 {
		t.Errorf("S1 device = %+v, want sdn with 1 port", byName["S1"])
	}
}
