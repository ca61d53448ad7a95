// Package model holds the controller's core topology and policy types:
// devices, ports, links, LLDP entries, the policy sum type, canonical
// configuration strings, and the link-address and datapath-label tables.
package model

import (
	"sort"
	"strconv"
)

// Kind distinguishes a classic (NETCONF/YANG) device from an SDN
// (OpenFlow) datapath.
type Kind int

const (
	Classic Kind = iota
	SDN
)

func (k Kind) String() string {
	if k == SDN {
		return "sdn"
	}
	return "classic"
}

// Port belongs exclusively to one Device. Classic ports are named
// interfaces; SDN ports are numbered OpenFlow ports. Exactly one of
// Name/PortNo is meaningful, selected by the owning Device's Kind.
type Port struct {
	Name   string // classic: openconfig-interfaces interface name
	PortNo uint32 // sdn: OpenFlow port number
	HWAddr string // MAC address, colon-separated lowercase
}

// ID returns the port's local identifier as a string, in the same form
// used by canonical configuration strings: the interface name for
// classic ports, the decimal port number for SDN ports.
func (p Port) ID(kind Kind) string {
	if kind == SDN {
		return strconv.FormatUint(uint64(p.PortNo), 10)
	}
	return p.Name
}

// Device is a single globally-named network element, classic or SDN.
// Name is user-visible: the hostname for classic devices, or the
// allocated label (S<n>) for SDN datapaths.
type Device struct {
	Name  string
	Kind  Kind
	Ports []Port
}

// PortByID returns the port on d whose local identifier (interface name
// for classic, port number string for SDN) equals id.
func (d *Device) PortByID(id string) (Port, bool) {
	for _, p := range d.Ports {
		if p.ID(d.Kind) == id {
			return p, true
		}
	}
	return Port{}, false
}

// PortAtIndex returns the Nth port in discovery order, or false if the
// index is out of range — ports are addressed by index, not name, in
// Address policies.
func (d *Device) PortAtIndex(idx uint) (Port, bool) {
	if int(idx) >= len(d.Ports) {
		return Port{}, false
	}
	return d.Ports[idx], true
}

// SortedPorts returns a copy of d.Ports ordered by port number, used
// when building SDN devices from discovery so port listings are
// stable and comparable across polls.
func SortedPorts(ports []Port) []Port {
	out := make([]Port, len(ports))
	copy(out, ports)
	sort.Slice(out, func(i, j int) bool { return out[i].PortNo < out[j].PortNo })
	return out
}
