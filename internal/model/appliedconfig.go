package model

import (
	"fmt"
	"strings"
)

// AppliedConfig is a parsed canonical per-device configuration line — the
// grammar the Generator emits and the NETCONF/OpenFlow drivers reconcile
// against. Only Kind and Raw are guaranteed populated for variants the
// caller doesn't need to inspect; the typed accessors below parse the
// fields lazily from Raw.
type AppliedConfig struct {
	Kind string // "address" | "route" | "block" | "route-f" | "disable"
	Raw  string // the exact canonical line, e.g. "address Gi2 10.0.0.1/24"
}

// ParseAppliedConfig parses a canonical configuration line. Returns an
// error if the first token is not a known kind or the line has the
// wrong number of fields for that kind.
func ParseAppliedConfig(line string) (AppliedConfig, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return AppliedConfig{}, fmt.Errorf("empty configuration line")
	}
	kind := fields[0]
	want := map[string]int{
		"address": 3,
		"route":   4,
		"block":   6,
		"route-f": 7,
		"disable": 2,
	}
	n, ok := want[kind]
	if !ok {
		return AppliedConfig{}, fmt.Errorf("unknown configuration kind %q", kind)
	}
	if len(fields) != n {
		return AppliedConfig{}, fmt.Errorf("%s: expected %d fields, got %d", kind, n-1, len(fields)-1)
	}
	return AppliedConfig{Kind: kind, Raw: line}, nil
}

func (c AppliedConfig) fields() []string { return strings.Fields(c.Raw) }

// Address returns the port and CIDR of an "address" config line.
func (c AppliedConfig) Address() (port, cidr string) {
	f := c.fields()
	return f[1], f[2]
}

// Route returns the destination network, exit port, and next-hop of a
// "route" config line.
func (c AppliedConfig) Route() (cidr, exitPort, nextHop string) {
	f := c.fields()
	return f[1], f[2], f[3]
}

// Block returns the five-tuple of a "block" config line.
func (c AppliedConfig) Block() (src, dst, proto, sport, dport string) {
	f := c.fields()
	return f[1], f[2], f[3], f[4], f[5]
}

// RouteForward returns the five-tuple and exit port of a "route-f"
// config line.
func (c AppliedConfig) RouteForward() (src, dst, proto, sport, dport, exitPort string) {
	f := c.fields()
	return f[1], f[2], f[3], f[4], f[5], f[6]
}

// Disable returns the port of a "disable" config line.
func (c AppliedConfig) Disable() string {
	return c.fields()[1]
}

// NewAddress builds an "address" canonical line.
func NewAddress(port, cidr string) AppliedConfig {
	return AppliedConfig{Kind: "address", Raw: fmt.Sprintf("address %s %s", port, cidr)}
}

// NewRoute builds a "route" canonical line.
func NewRoute(cidr, exitPort, nextHop string) AppliedConfig {
	return AppliedConfig{Kind: "route", Raw: fmt.Sprintf("route %s %s %s", cidr, exitPort, nextHop)}
}

// NewBlock builds a "block" canonical line.
func NewBlock(src, dst, proto, sport, dport string) AppliedConfig {
	return AppliedConfig{Kind: "block", Raw: fmt.Sprintf("block %s %s %s %s %s", src, dst, proto, sport, dport)}
}

// NewRouteForward builds a "route-f" canonical line.
func NewRouteForward(src, dst, proto, sport, dport, exitPort string) AppliedConfig {
	return AppliedConfig{Kind: "route-f", Raw: fmt.Sprintf("route-f %s %s %s %s %s %s", src, dst, proto, sport, dport, exitPort)}
}

// NewDisable builds a "disable" canonical line.
func NewDisable(port string) AppliedConfig {
	return AppliedConfig{Kind: "disable", Raw: fmt.Sprintf("disable %s", port)}
}

// AppliedList is the ordered set of canonical configuration strings
// currently installed on a device, owned by its driver.
type AppliedList struct {
	items []AppliedConfig
}

// Items returns the applied list in insertion order.
func (l *AppliedList) Items() []AppliedConfig {
	out := make([]AppliedConfig, len(l.items))
	copy(out, l.items)
	return out
}

// Contains reports whether raw is present in the list.
func (l *AppliedList) Contains(raw string) bool {
	for _, it := range l.items {
		if it.Raw == raw {
			return true
		}
	}
	return false
}

// Add appends a config to the list.
func (l *AppliedList) Add(c AppliedConfig) {
	l.items = append(l.items, c)
}

// Remove deletes the first item equal to raw, preserving the order of
// the remainder.
func (l *AppliedList) Remove(raw string) {
	for i, it := range l.items {
		if it.Raw == raw {
			l.items = append(l.items[:i], l.items[i+1:]...)
			return
		}
	}
}

// Diff computes the items to remove (present \ desired, in original
// insertion order) and the items to add (desired \ present), so a
// caller can reconcile a device's running config to a desired list
// with the minimal set of configure/deconfigure calls.
func Diff(present *AppliedList, desired []string) (toRemove, toAdd []string) {
	desiredSet := make(map[string]bool, len(desired))
	for _, d := range desired {
		desiredSet[d] = true
	}
	presentSet := make(map[string]bool, len(present.items))
	for _, it := range present.items {
		presentSet[it.Raw] = true
		if !desiredSet[it.Raw] {
			toRemove = append(toRemove, it.Raw)
		}
	}
	for _, d := range desired {
		if !presentSet[d] {
			toAdd = append(toAdd, d)
		}
	}
	return toRemove, toAdd
}

// Equal reports whether the applied list's raw lines, as a set, equal
// desired exactly — used by the "after configure_list, applied == D"
// invariant.
func (l *AppliedList) Equal(desired []string) bool {
	if len(l.items) != len(desired) {
		return false
	}
	have := make(map[string]bool, len(l.items))
	for _, it := range l.items {
		have[it.Raw] = true
	}
	for _, d := range desired {
		if !have[d] {
			return false
		}
	}
	return true
}
