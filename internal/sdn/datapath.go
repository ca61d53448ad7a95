// Package sdn implements the OpenFlow 1.3 driver: per-datapath session
// management, stable datapath labeling, the LLDP self-retrigger
// discovery loop, an ARP responder, and SDN-side configuration
// (address/route compiled to flow-mods).
package sdn

import (
	"net"
	"sync"
	"time"

	"github.com/hsdnet/controller/internal/model"
	"github.com/hsdnet/controller/internal/openflow"
)

// firstCycleRetrigger/steadyStateRetrigger are the LLDP self-retrigger
// hard_timeout values: fast on the first cycle so topology converges
// quickly after a switch connects, slow thereafter.
const (
	firstCycleRetrigger   = 1 * time.Second
	steadyStateRetrigger = 15 * time.Second
)

// port mirrors openflow.Port with the fields this driver keeps around
// per datapath.
type port struct {
	PortNo uint32
	HWAddr net.HardwareAddr
	Name   string
}

// neighbor is one LLDP sighting on a datapath port.
type neighbor struct {
	SystemName string
	InPort     uint32
	TTL        float64
}

// datapath is the live state for one connected switch.
type datapath struct {
	mu sync.Mutex

	dpid  uint64
	label string

	conn *session
	ports map[uint32]port

	neighbors map[string]neighbor // keyed by neighbor system name
	lastAge   time.Time
	retrigger time.Duration // current self-retrigger hard_timeout
	firstCycle bool

	applied *model.AppliedList

	addressPorts map[uint32]addressBinding // port -> address bound for the ARP responder
}

// addressBinding is one configured "address" entry on a port, used by
// the ARP responder to answer on behalf of the switch.
type addressBinding struct {
	ip net.IP
}

func newDatapath(dpid uint64, label string, conn *session) *datapath {
	return &datapath{
		dpid:         dpid,
		label:        label,
		conn:         conn,
		ports:        make(map[uint32]port),
		neighbors:    make(map[string]neighbor),
		retrigger:    firstCycleRetrigger,
		firstCycle:   true,
		applied:      &model.AppliedList{},
		addressPorts: make(map[uint32]addressBinding),
	}
}

// setPorts replaces the known port set, e.g. from a PORT_DESC reply.
func (d *datapath) setPorts(ps []openflow.Port) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ports = make(map[uint32]port, len(ps))
	for _, p := range ps {
		d.ports[p.PortNo] = port{PortNo: p.PortNo, HWAddr: p.HWAddr, Name: p.Name}
	}
}

// portList returns the known ports sorted by port number, matching
// model.SortedPorts' ordering contract for SDN devices.
func (d *datapath) portList() []model.Port {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]model.Port, 0, len(d.ports))
	for _, p := range d.ports {
		out = append(out, model.Port{PortNo: p.PortNo, HWAddr: p.HWAddr.String()})
	}
	return model.SortedPorts(out)
}

// recordNeighbor stores or refreshes an LLDP sighting.
func (d *datapath) recordNeighbor(systemName string, inPort uint32, ttl float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.neighbors[systemName] = neighbor{SystemName: systemName, InPort: inPort, TTL: ttl}
}

// age decrements every neighbor's TTL by elapsed and drops entries
// that reach zero or below. Returns whether aging actually ran (it is
// coalesced to at most once per second).
func (d *datapath) age(now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.lastAge.IsZero() {
		d.lastAge = now
		return true
	}
	elapsed := now.Sub(d.lastAge).Seconds()
	if elapsed < 1 {
		return false
	}
	d.lastAge = now
	for name, n := range d.neighbors {
		n.TTL -= elapsed
		if n.TTL <= 0 {
			delete(d.neighbors, name)
			continue
		}
		d.neighbors[name] = n
	}
	return true
}

// neighborSnapshot returns a copy of the current interfaces-style
// neighbor table: in_port -> neighbor system name, inverted to match
// the port-keyed Neighbors shape the topology manager consumes.
func (d *datapath) neighborSnapshot() map[uint32]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[uint32]string, len(d.neighbors))
	for _, n := range d.neighbors {
		out[n.InPort] = n.SystemName
	}
	return out
}

// bindAddress records that portNo answers ARP for ip, used by the
// responder; unbindAddress removes that binding on deconfigure.
func (d *datapath) bindAddress(portNo uint32, ip net.IP) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.addressPorts[portNo] = addressBinding{ip: ip}
}

func (d *datapath) unbindAddress(portNo uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.addressPorts, portNo)
}

// lookupAddress returns the address bound to portNo, if any.
func (d *datapath) lookupAddress(portNo uint32) (addressBinding, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	b, ok := d.addressPorts[portNo]
	return b, ok
}

// portMAC returns the MAC address of portNo, if known.
func (d *datapath) portMAC(portNo uint32) (net.HardwareAddr, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p, ok := d.ports[portNo]
	if !ok {
		return nil, false
	}
	return p.HWAddr, true
}

// advanceRetrigger moves from the fast first-cycle timeout to the
// steady-state one, called once the first flow-removed fires.
func (d *datapath) advanceRetrigger() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.firstCycle {
		d.firstCycle = false
		d.retrigger = steadyStateRetrigger
	}
	return d.retrigger
}
