package sdn

import (
	"net"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// arpRequest is the subset of a decoded ARP request this driver needs
// to build its reply.
type arpRequest struct {
	senderHW  net.HardwareAddr
	senderIP  net.IP
}

// parseARPRequest extracts an ARP request from a raw Ethernet frame, or
// false if the frame isn't an IPv4-over-Ethernet ARP request.
func parseARPRequest(raw []byte) (arpRequest, bool) {
	pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.Default)
	arpLayer := pkt.Layer(layers.LayerTypeARP)
	if arpLayer == nil {
		return arpRequest{}, false
	}
	arp, ok := arpLayer.(*layers.ARP)
	if !ok {
		return arpRequest{}, false
	}
	if arp.AddrType != layers.LinkTypeEthernet || arp.Protocol != layers.EthernetTypeIPv4 {
		return arpRequest{}, false
	}
	if arp.Operation != layers.ARPRequest {
		return arpRequest{}, false
	}
	return arpRequest{
		senderHW: net.HardwareAddr(arp.SourceHwAddress),
		senderIP: net.IP(arp.SourceProtAddress),
	}, true
}

// buildARPReply synthesizes an ARP reply where senderHW/senderIP is the
// port's own identity and targetHW/targetIP is copied from the
// request, so the requester learns this port's MAC for the address it
// asked about.
func buildARPReply(senderHW net.HardwareAddr, senderIP net.IP, targetHW net.HardwareAddr, targetIP net.IP) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       senderHW,
		DstMAC:       targetHW,
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     6,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   senderHW,
		SourceProtAddress: senderIP.To4(),
		DstHwAddress:      targetHW,
		DstProtAddress:    targetIP.To4(),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, arp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
