package model

// Endpoint identifies one side of a Link: a device name and the local
// port identifier on that device (interface name for classic, port
// number string for SDN).
type Endpoint struct {
	Device string
	Port   string
}

// Link is an unordered pair of endpoints. A Link is only ever
// constructed once the neighbor relation has been observed in both
// directions — see internal/topology.
type Link struct {
	A, Z Endpoint
}

// Key returns a stable, order-independent identifier for the link,
// used to key link-subnet allocation: the lexicographically smaller
// "<device>-<port>" endpoint comes first.
func (l Link) Key() string {
	a, z := endpointKey(l.A), endpointKey(l.Z)
	if a <= z {
		return a + "|" + z
	}
	return z + "|" + a
}

func endpointKey(e Endpoint) string {
	return e.Device + "-" + e.Port
}

// Other returns the endpoint on the far side of device/port from the
// given endpoint, or false if neither side matches.
func (l Link) Other(device, port string) (Endpoint, bool) {
	switch {
	case l.A.Device == device && l.A.Port == port:
		return l.Z, true
	case l.Z.Device == device && l.Z.Port == port:
		return l.A, true
	default:
		return Endpoint{}, false
	}
}

// LLDPEntry records one neighbor sighting on an SDN datapath port.
// TTL is decremented by elapsed wall-clock time each aging pass and
// the entry is dropped once it reaches zero.
type LLDPEntry struct {
	NeighborSystemName string
	IngressPort        uint32
	TTLSeconds         float64
}
