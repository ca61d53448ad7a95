package util

import (
	"fmt"
	"net"
)

// ParseIPWithMask parses an IP address with CIDR notation, returning the IP
// and the mask length.
func ParseIPWithMask(cidr string) (net.IP, int, error) {
	ip, ipNet, err := net.ParseCIDR(cidr)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid CIDR notation: %s", cidr)
	}
	ones, _ := ipNet.Mask.Size()
	return ip, ones, nil
}

// ComputeNeighborIP returns the peer IP for a /30 point-to-point subnet.
// Returns an empty string for anything that is not a /30, or for the
// network/broadcast addresses of one.
func ComputeNeighborIP(localIP string, maskLen int) string {
	if maskLen != 30 {
		return ""
	}
	ip := net.ParseIP(localIP)
	if ip == nil {
		return ""
	}
	ip = ip.To4()
	if ip == nil {
		return ""
	}

	lastOctet := ip[3] & 0x03
	switch lastOctet {
	case 1:
		ip[3]++
	case 2:
		ip[3]--
	default:
		return ""
	}
	return ip.String()
}

// ComputeNetworkAddr returns the network address for a given IP and mask.
func ComputeNetworkAddr(ipStr string, maskLen int) string {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}
	ip = ip.To4()
	if ip == nil {
		return ""
	}
	mask := net.CIDRMask(maskLen, 32)
	return ip.Mask(mask).String()
}

// IsValidIPv4 reports whether s parses as an IPv4 address.
func IsValidIPv4(s string) bool {
	ip := net.ParseIP(s)
	return ip != nil && ip.To4() != nil
}

// ThirtyBlock allocates sequential /30 blocks out of a /24 supernet,
// handing out both host addresses of each block (block+1 and block+2),
// one for each endpoint interface of a link.
type ThirtyBlock struct {
	base  net.IP
	next  int
}

// NewThirtyBlockAllocator builds an allocator over the given /24 CIDR
// (e.g. "192.168.99.0/24"), skipping the all-zero block reserved by
// convention for the supernet's own network address.
func NewThirtyBlockAllocator(supernet string) (*ThirtyBlock, error) {
	ip, ipNet, err := net.ParseCIDR(supernet)
	if err != nil {
		return nil, fmt.Errorf("invalid supernet %s: %w", supernet, err)
	}
	ones, bits := ipNet.Mask.Size()
	if bits != 32 || ones != 24 {
		return nil, fmt.Errorf("supernet %s must be a /24", supernet)
	}
	return &ThirtyBlock{base: ip.Mask(ipNet.Mask).To4(), next: 1}, nil
}

// Allocate returns the two host addresses ("a", "b") of the next unused
// /30 block, as CIDR strings with /30 masks.
func (t *ThirtyBlock) Allocate() (a, b string, err error) {
	if t.next > 63 {
		return "", "", fmt.Errorf("exhausted /30 blocks in %s/24", t.base)
	}
	block := make(net.IP, 4)
	copy(block, t.base)
	block[3] = byte(t.next * 4)
	t.next++

	host1 := make(net.IP, 4)
	copy(host1, block)
	host1[3]++
	host2 := make(net.IP, 4)
	copy(host2, block)
	host2[3] += 2

	return fmt.Sprintf("%s/30", host1), fmt.Sprintf("%s/30", host2), nil
}
