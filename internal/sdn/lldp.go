package sdn

import (
	"fmt"
	"net"
	"strconv"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// lldpMulticastMAC is the IEEE 802.1AB nearest-bridge multicast
// destination every LLDP frame this driver emits uses.
var lldpMulticastMAC = net.HardwareAddr{0x01, 0x80, 0xc2, 0x00, 0x00, 0x0e}

const lldpTTLSeconds = 120

// LLDP optional TLV types this driver sets (IEEE 802.1AB).
const (
	lldpTLVPortDescription = 4
	lldpTLVSystemName      = 5
)

// buildLLDPFrame renders one LLDP advertisement for a port with the
// TLV set peer controllers expect to recognize: chassis-id=MAC,
// port-id=port_no string, ttl=120, system-name=label,
// port-description=OFPort-<n>.
func buildLLDPFrame(srcMAC net.HardwareAddr, portNo uint32, label string) ([]byte, error) {
	eth := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       lldpMulticastMAC,
		EthernetType: layers.EthernetTypeLinkLayerDiscovery,
	}

	portDesc := []byte(fmt.Sprintf("OFPort-%d", portNo))
	sysName := []byte(label)
	frame := &layers.LinkLayerDiscovery{
		ChassisID: layers.LLDPChassisID{
			Subtype: layers.LLDPChassisIDSubTypeMACAddr,
			ID:      []byte(srcMAC),
		},
		PortID: layers.LLDPPortID{
			Subtype: layers.LLDPPortIDSubtypeIfaceName,
			ID:      []byte(strconv.FormatUint(uint64(portNo), 10)),
		},
		TTL: lldpTTLSeconds,
		Values: []layers.LinkLayerDiscoveryValue{
			{Type: lldpTLVPortDescription, Length: uint16(len(portDesc)), Value: portDesc},
			{Type: lldpTLVSystemName, Length: uint16(len(sysName)), Value: sysName},
		},
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, frame); err != nil {
		return nil, fmt.Errorf("sdn: serialize lldp frame: %w", err)
	}
	return buf.Bytes(), nil
}

// parsedLLDP is the subset of a received LLDP frame this driver cares
// about: who sent it (system name) and what TTL it advertised.
type parsedLLDP struct {
	SystemName string
	TTL        float64
}

// parseLLDPFrame extracts the system-name and TTL TLVs from a raw
// Ethernet frame carrying an LLDP payload.
func parseLLDPFrame(raw []byte) (parsedLLDP, bool) {
	pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.Default)
	layer := pkt.Layer(layers.LayerTypeLinkLayerDiscovery)
	if layer == nil {
		return parsedLLDP{}, false
	}
	base, ok := layer.(*layers.LinkLayerDiscovery)
	if !ok {
		return parsedLLDP{}, false
	}

	info, err := base.Info()
	if err != nil || info.SysName == "" {
		return parsedLLDP{}, false
	}
	return parsedLLDP{SystemName: info.SysName, TTL: float64(base.TTL)}, true
}
