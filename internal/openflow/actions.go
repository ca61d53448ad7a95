package openflow

import "encoding/binary"

// Action types (OFPAT_*) this controller emits.
const (
	actionTypeOutput      uint16 = 0
	actionTypeSetFieldEth uint16 = 25 // OFPAT_SET_FIELD, carrying eth_dst
)

// ControllerPort is OFPP_CONTROLLER, the reserved port number meaning
// "deliver as a packet-in".
const ControllerPort uint32 = 0xfffffffd

// LocalPort is OFPP_LOCAL, the reserved port representing the switch's
// own internal logical port — always skipped when enumerating ports.
const LocalPort uint32 = 0xfffffffe

// AnyPort/AnyGroup are OFPP_ANY/OFPG_ANY, used in flow-mod deletes that
// should match regardless of the original out_port/out_group.
const (
	AnyPort  uint32 = 0xffffffff
	AnyGroup uint32 = 0xffffffff
)

// Action is anything that can appear in an apply-actions instruction.
type Action interface {
	encode() []byte
}

// OutputAction sends the packet out Port, truncated to MaxLen bytes
// when destined for the controller (0xffff = entire packet).
type OutputAction struct {
	Port   uint32
	MaxLen uint16
}

func (a OutputAction) encode() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint16(buf[0:2], actionTypeOutput)
	binary.BigEndian.PutUint16(buf[2:4], 16)
	binary.BigEndian.PutUint32(buf[4:8], a.Port)
	binary.BigEndian.PutUint16(buf[8:10], a.MaxLen)
	return buf
}

// SetEthDstAction rewrites the Ethernet destination address, used by
// the route op's broadcast-out-port translation.
type SetEthDstAction struct {
	Addr [6]byte
}

func (a SetEthDstAction) encode() []byte {
	// OXM TLV for eth_dst (field 4) carried inside a set-field action.
	const oxmEthDst uint8 = 4
	tlv := oxmTLV(oxmEthDst, a.Addr[:])
	length := 4 + len(tlv)
	padded := length + padTo8(length)
	buf := make([]byte, 4, padded)
	binary.BigEndian.PutUint16(buf[0:2], actionTypeSetFieldEth)
	binary.BigEndian.PutUint16(buf[2:4], uint16(padded))
	buf = append(buf, tlv...)
	buf = append(buf, make([]byte, padded-length)...)
	return buf
}

func encodeActions(actions []Action) []byte {
	var out []byte
	for _, a := range actions {
		out = append(out, a.encode()...)
	}
	return out
}
