// Package topology fuses the classic (NETCONF/LLDP) and SDN
// (OpenFlow/LLDP) discovery snapshots into one device/link graph,
// admitting a link only once the neighbor relation is confirmed from
// both ends, and republishing only when the fused graph actually
// changes.
package topology

import (
	"reflect"
	"sort"
	"sync"

	"github.com/hsdnet/controller/internal/model"
	"github.com/hsdnet/controller/internal/netconf"
	"github.com/hsdnet/controller/internal/sdn"
)

// EventTopology is the fused snapshot published after every classic or
// SDN update that changes the graph.
type EventTopology struct {
	Devices []model.Device
	Links   []model.Link
}

// Manager merges the latest classic and SDN topology snapshots. The
// zero value is not usable; construct with NewManager.
type Manager struct {
	mu sync.Mutex

	classic netconf.Topology
	sdnTopo sdn.Topology

	lastDevices []model.Device
	lastLinks   []model.Link

	onChange func(EventTopology)
}

// NewManager builds a Manager that invokes onChange with the fused
// snapshot whenever it changes after a classic or SDN update.
func NewManager(onChange func(EventTopology)) *Manager {
	return &Manager{onChange: onChange}
}

// UpdateClassic records a fresh NetconfTopology snapshot and
// recomputes the fused graph.
func (m *Manager) UpdateClassic(topo netconf.Topology) {
	m.mu.Lock()
	m.classic = topo
	m.mu.Unlock()
	m.recompute()
}

// UpdateSDN records a fresh SDN Topology snapshot and recomputes the
// fused graph.
func (m *Manager) UpdateSDN(topo sdn.Topology) {
	m.mu.Lock()
	m.sdnTopo = topo
	m.mu.Unlock()
	m.recompute()
}

// Snapshot returns the most recently published fused graph.
func (m *Manager) Snapshot() EventTopology {
	m.mu.Lock()
	defer m.mu.Unlock()
	return EventTopology{Devices: m.lastDevices, Links: m.lastLinks}
}

func (m *Manager) recompute() {
	m.mu.Lock()
	classic, sdnTopo := m.classic, m.sdnTopo
	m.mu.Unlock()

	devices := buildDevices(classic, sdnTopo)
	links := buildLinks(classic, sdnTopo)

	m.mu.Lock()
	changed := !equalDevices(m.lastDevices, devices) || !equalLinks(m.lastLinks, links)
	if changed {
		m.lastDevices = devices
		m.lastLinks = links
	}
	m.mu.Unlock()

	if changed && m.onChange != nil {
		m.onChange(EventTopology{Devices: devices, Links: links})
	}
}

func buildDevices(classic netconf.Topology, sdnTopo sdn.Topology) []model.Device {
	devices := make([]model.Device, 0, len(classic.Interfaces)+len(sdnTopo.Ports))
	for host, ifaces := range classic.Interfaces {
		ports := make([]model.Port, len(ifaces))
		for i, name := range ifaces {
			ports[i] = model.Port{Name: name}
		}
		devices = append(devices, model.Device{Name: host, Kind: model.Classic, Ports: ports})
	}
	for label, ports := range sdnTopo.Ports {
		devices = append(devices, model.Device{Name: label, Kind: model.SDN, Ports: ports})
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].Name < devices[j].Name })
	return devices
}

// buildLinks iterates every directed neighbor relation from both the
// classic and SDN snapshots and admits a link only once the reverse
// relation is confirmed — searching first in classic neighbors, then
// in SDN.
func buildLinks(classic netconf.Topology, sdnTopo sdn.Topology) []model.Link {
	seen := make(map[string]bool)
	var links []model.Link

	admit := func(a model.Endpoint, b model.Endpoint) {
		link := model.Link{A: a, Z: b}
		key := link.Key()
		if seen[key] {
			return
		}
		seen[key] = true
		links = append(links, link)
	}

	for host, neighbors := range classic.Neighbors {
		for neighborName, localIface := range neighbors {
			reversePort, ok := localPortTowards(classic, sdnTopo, neighborName, host)
			if !ok {
				continue
			}
			admit(
				model.Endpoint{Device: host, Port: localIface},
				model.Endpoint{Device: neighborName, Port: reversePort},
			)
		}
	}
	for label, neighbors := range sdnTopo.Neighbors {
		for portStr, neighborName := range neighbors {
			reversePort, ok := localPortTowards(classic, sdnTopo, neighborName, label)
			if !ok {
				continue
			}
			admit(
				model.Endpoint{Device: label, Port: portStr},
				model.Endpoint{Device: neighborName, Port: reversePort},
			)
		}
	}

	sort.Slice(links, func(i, j int) bool { return links[i].Key() < links[j].Key() })
	return links
}

// localPortTowards returns device's local port pointed at neighbor, if
// a relation exists — classic neighbors are checked first (a direct
// neighbor-name keyed lookup), then SDN neighbors (port-keyed, so the
// neighbor name is found by value).
func localPortTowards(classic netconf.Topology, sdnTopo sdn.Topology, device, neighbor string) (string, bool) {
	if m, ok := classic.Neighbors[device]; ok {
		if port, ok := m[neighbor]; ok {
			return port, true
		}
	}
	if m, ok := sdnTopo.Neighbors[device]; ok {
		for port, name := range m {
			if name == neighbor {
				return port, true
			}
		}
	}
	return "", false
}

func equalDevices(a, b []model.Device) bool {
	return reflect.DeepEqual(a, b)
}

func equalLinks(a, b []model.Link) bool {
	return reflect.DeepEqual(a, b)
}
