package model

import (
	"fmt"
)

// Policy is a declarative user intent loaded from config/policy.txt. It is
// a genuine Go sum type: one interface, one concrete struct per variant,
// no shared "type" tag field to switch on — callers type-switch on the
// concrete type instead.
type Policy interface {
	// Kind returns the first-token grammar keyword for this variant,
	// e.g. "address", "block", "route-f".
	Kind() string
	// Encode renders the policy back to its canonical config/policy.txt
	// line. Encode/Parse must round-trip.
	Encode() string
}

// AddressPolicy assigns an IPv4 address/prefix to the Nth port of a
// device. Grammar: address <device> <iface_idx> <ip>/<prefix>
type AddressPolicy struct {
	Device   string
	IfaceIdx uint
	CIDR     string // "A.B.C.D/len"
}

func (p AddressPolicy) Kind() string { return "address" }

func (p AddressPolicy) Encode() string {
	return fmt.Sprintf("address %s %d %s", p.Device, p.IfaceIdx, p.CIDR)
}

// BlockPolicy drops matching IPv4 traffic egressing a device or zone.
// Any field may be "*" to mean wildcard. Grammar:
// block <device_or_zone> <src_cidr> <dst_cidr> <proto> <sport> <dport>
type BlockPolicy struct {
	DeviceOrZone string
	SrcCIDR      string
	DstCIDR      string
	Proto        string
	SrcPort      string
	DstPort      string
}

func (p BlockPolicy) Kind() string { return "block" }

func (p BlockPolicy) Encode() string {
	return fmt.Sprintf("block %s %s %s %s %s %s",
		p.DeviceOrZone, p.SrcCIDR, p.DstCIDR, p.Proto, p.SrcPort, p.DstPort)
}

// RouteForwardPolicy forwards matching traffic out a specific port
// regardless of the routing table. Grammar:
// route-f <device> <src_cidr> <dst_cidr> <proto> <sport> <dport> <exit_port>
type RouteForwardPolicy struct {
	Device   string
	SrcCIDR  string
	DstCIDR  string
	Proto    string
	SrcPort  string
	DstPort  string
	ExitPort string
}

func (p RouteForwardPolicy) Kind() string { return "route-f" }

func (p RouteForwardPolicy) Encode() string {
	return fmt.Sprintf("route-f %s %s %s %s %s %s %s",
		p.Device, p.SrcCIDR, p.DstCIDR, p.Proto, p.SrcPort, p.DstPort, p.ExitPort)
}

// DisablePolicy administratively shuts a port. Grammar: disable <device> <port>
type DisablePolicy struct {
	Device string
	Port   string
}

func (p DisablePolicy) Kind() string { return "disable" }

func (p DisablePolicy) Encode() string {
	return fmt.Sprintf("disable %s %s", p.Device, p.Port)
}

// FlowPolicy names a traffic flow for reference by BlockPolicy/RoutePolicy.
// Not compiled by the Generator today; parsed and round-tripped only.
// Grammar: flow <name> <src_ip> <dst_ip> <protocol> <src_port> <dst_port>
type FlowPolicy struct {
	Name     string
	SrcIP    string
	DstIP    string
	Protocol string
	SrcPort  string
	DstPort  string
}

func (p FlowPolicy) Kind() string { return "flow" }

func (p FlowPolicy) Encode() string {
	return fmt.Sprintf("flow %s %s %s %s %s %s",
		p.Name, p.SrcIP, p.DstIP, p.Protocol, p.SrcPort, p.DstPort)
}

// RoutePolicy routes a named flow through an interface on a device. Not
// compiled today; parsed and round-tripped only.
// Grammar: route <device> <flow> <interface>
type RoutePolicy struct {
	Device    string
	FlowName  string
	Interface string
}

func (p RoutePolicy) Kind() string { return "route" }

func (p RoutePolicy) Encode() string {
	return fmt.Sprintf("route %s %s %s", p.Device, p.FlowName, p.Interface)
}

// ZonePolicy assigns a device to a zone. Not compiled today; parsed and
// round-tripped only. Grammar: zone <device> <zone>
type ZonePolicy struct {
	Device string
	Zone   string
}

func (p ZonePolicy) Kind() string { return "zone" }

func (p ZonePolicy) Encode() string {
	return fmt.Sprintf("zone %s %s", p.Device, p.Zone)
}

// GlobalCommand enumerates the commands a GlobalPolicy can carry. Routing
// is the only one currently defined.
type GlobalCommand int

const (
	GlobalRouting GlobalCommand = iota
)

func (c GlobalCommand) String() string {
	if c == GlobalRouting {
		return "routing"
	}
	return "unknown"
}

// GlobalPolicy enables a network-wide behavior. GlobalRouting gates the
// Generator's link-subnet + Dijkstra routing pass (§4.7). Grammar:
// global <command>
type GlobalPolicy struct {
	Command GlobalCommand
}

func (p GlobalPolicy) Kind() string { return "global" }

func (p GlobalPolicy) Encode() string {
	return fmt.Sprintf("global %s", p.Command)
}

// DeviceField returns the device name this policy references for
// device-rename rewriting, and whether this policy variant carries a
// device field at all (GlobalPolicy and FlowPolicy do not).
//
// Dispatches on concrete type rather than assuming a fixed grammar
// position — block/route-f put the device in a different slot than
// address/disable/route/zone, so a positional "always word 2" rule
// rewrites those two incorrectly.
func DeviceField(p Policy) (device string, ok bool) {
	switch v := p.(type) {
	case AddressPolicy:
		return v.Device, true
	case BlockPolicy:
		return v.DeviceOrZone, true
	case RouteForwardPolicy:
		return v.Device, true
	case DisablePolicy:
		return v.Device, true
	case RoutePolicy:
		return v.Device, true
	case ZonePolicy:
		return v.Device, true
	default:
		return "", false
	}
}

// WithDevice returns a copy of p with its device field rewritten to
// newName, for device-rename handling. Returns p unchanged if p has no
// device field.
func WithDevice(p Policy, newName string) Policy {
	switch v := p.(type) {
	case AddressPolicy:
		v.Device = newName
		return v
	case BlockPolicy:
		v.DeviceOrZone = newName
		return v
	case RouteForwardPolicy:
		v.Device = newName
		return v
	case DisablePolicy:
		v.Device = newName
		return v
	case RoutePolicy:
		v.Device = newName
		return v
	case ZonePolicy:
		v.Device = newName
		return v
	default:
		return p
	}
}
