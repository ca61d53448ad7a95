package sdn

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"

	"github.com/hsdnet/controller/internal/openflow"
	"github.com/hsdnet/controller/internal/util"
)

var broadcastMAC = [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

func ipv4ToUint32(ip net.IP) (uint32, error) {
	v4 := ip.To4()
	if v4 == nil {
		return 0, fmt.Errorf("sdn: not an IPv4 address: %s", ip)
	}
	return binary.BigEndian.Uint32(v4), nil
}

func prefixMask(prefixLen int) uint32 {
	if prefixLen == 0 {
		return 0
	}
	return ^uint32(0) << uint(32-prefixLen)
}

func parsePort(portStr string) (uint32, error) {
	n, err := strconv.ParseUint(portStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("sdn: invalid port number %q: %w", portStr, err)
	}
	return uint32(n), nil
}

// routeFlowMod builds the flow-mod for a "route net/prefix port"
// canonical configuration line: match the destination network, rewrite
// the Ethernet destination to broadcast, and output the exit port —
// the broadcast rewrite lets the far side's own ARP/bridging resolve
// the real next hop.
func routeFlowMod(network string, prefixLen int, exitPort uint32, command uint8) (openflow.FlowMod, error) {
	netIP := net.ParseIP(network)
	if netIP == nil {
		return openflow.FlowMod{}, util.NewValidationError(network, "not a valid IPv4 network address")
	}
	dst, err := ipv4ToUint32(netIP)
	if err != nil {
		return openflow.FlowMod{}, util.NewValidationError(network, err.Error())
	}
	mask := prefixMask(prefixLen)
	ethType := uint16(0x0800)

	fm := openflow.FlowMod{
		Command:  command,
		Priority: 10,
		Match: openflow.Match{
			EthType:  &ethType,
			IPv4Dst:  &dst,
			IPv4Mask: &mask,
		},
	}
	if command == openflow.FlowModAdd {
		fm.Actions = []openflow.Action{
			openflow.SetEthDstAction{Addr: broadcastMAC},
			openflow.OutputAction{Port: exitPort},
		}
	}
	return fm, nil
}

// addressARPTrapFlowMod builds the controller-bound match for ARP
// requests targeting addr, so the ARP responder can answer on behalf
// of this port.
func addressARPTrapFlowMod(addr net.IP, command uint8) (openflow.FlowMod, error) {
	tpa, err := ipv4ToUint32(addr)
	if err != nil {
		return openflow.FlowMod{}, util.NewValidationError(addr.String(), err.Error())
	}
	ethType := uint16(0x0806)
	arpOp := uint16(1) // ARP request

	fm := openflow.FlowMod{
		Command:  command,
		Priority: 20,
		Match: openflow.Match{
			EthType: &ethType,
			ArpOp:   &arpOp,
			ArpTpa:  &tpa,
		},
	}
	if command == openflow.FlowModAdd {
		fm.Actions = []openflow.Action{
			openflow.OutputAction{Port: openflow.ControllerPort, MaxLen: 0xffff},
		}
	}
	return fm, nil
}

// addressFlowMods builds the pair of flow-mods for an "address port
// cidr" configuration line: the ARP trap on the address itself, and
// the directly-connected-network route entry.
func addressFlowMods(portNo uint32, cidr string, command uint8) ([]openflow.FlowMod, error) {
	ip, prefixLen, err := util.ParseIPWithMask(cidr)
	if err != nil {
		return nil, util.NewValidationError(cidr, err.Error())
	}
	network := util.ComputeNetworkAddr(ip.String(), prefixLen)

	arpTrap, err := addressARPTrapFlowMod(ip, command)
	if err != nil {
		return nil, err
	}
	route, err := routeFlowMod(network, prefixLen, portNo, command)
	if err != nil {
		return nil, err
	}
	return []openflow.FlowMod{arpTrap, route}, nil
}

// asDelete turns an add-flow-mod into the matching OFPFC_DELETE,
// clearing its actions and leaving out_port/out_group at their ANY
// default (set by FlowMod.Encode) so the delete matches regardless of
// the original's action set.
func asDelete(fm openflow.FlowMod) openflow.FlowMod {
	fm.Command = openflow.FlowModDelete
	fm.Actions = nil
	return fm
}
