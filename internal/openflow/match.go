package openflow

import (
	"encoding/binary"
	"fmt"
)

// OXM field numbers this controller matches on (OFPXMT_OFB_*), all in
// the openflow-basic class (0x8000).
const (
	oxmClassOpenflowBasic uint16 = 0x8000

	oxmInPort  uint8 = 0
	oxmEthType uint8 = 5
	oxmIPv4Dst uint8 = 12
	oxmArpOp   uint8 = 15
	oxmArpTpa  uint8 = 18
)

const (
	matchTypeOXM uint16 = 1
)

// Match is the subset of an ofp_match this controller ever needs to
// build or inspect: eth_type 0x0800/0x0806/0x88cc, in_port, ipv4_dst,
// arp_tpa, arp_op — the fields the ARP responder and route flow-mods
// actually match on.
type Match struct {
	InPort    *uint32
	EthType   *uint16
	IPv4Dst   *uint32
	IPv4Mask  *uint32 // nil = exact match
	ArpOp     *uint16
	ArpTpa    *uint32
}

func oxmTLV(field uint8, value []byte) []byte {
	header := uint32(oxmClassOpenflowBasic)<<16 | uint32(field)<<9 | uint32(len(value))
	buf := make([]byte, 4+len(value))
	binary.BigEndian.PutUint32(buf[0:4], header)
	copy(buf[4:], value)
	return buf
}

func oxmTLVMasked(field uint8, value, mask []byte) []byte {
	header := uint32(oxmClassOpenflowBasic)<<16 | uint32(field)<<9 | 1<<8 | uint32(len(value)*2)
	buf := make([]byte, 4+len(value)*2)
	binary.BigEndian.PutUint32(buf[0:4], header)
	copy(buf[4:], value)
	copy(buf[4+len(value):], mask)
	return buf
}

// Encode returns the wire form of an ofp_match: type, length, OXM TLVs,
// padded to a multiple of 8 bytes.
func (m Match) Encode() []byte {
	var tlvs []byte
	if m.InPort != nil {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, *m.InPort)
		tlvs = append(tlvs, oxmTLV(oxmInPort, b)...)
	}
	if m.EthType != nil {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, *m.EthType)
		tlvs = append(tlvs, oxmTLV(oxmEthType, b)...)
	}
	if m.IPv4Dst != nil {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, *m.IPv4Dst)
		if m.IPv4Mask != nil {
			mb := make([]byte, 4)
			binary.BigEndian.PutUint32(mb, *m.IPv4Mask)
			tlvs = append(tlvs, oxmTLVMasked(oxmIPv4Dst, b, mb)...)
		} else {
			tlvs = append(tlvs, oxmTLV(oxmIPv4Dst, b)...)
		}
	}
	if m.ArpOp != nil {
		b := make([]byte, 2)
		binary.BigEndian.PutUint16(b, *m.ArpOp)
		tlvs = append(tlvs, oxmTLV(oxmArpOp, b)...)
	}
	if m.ArpTpa != nil {
		b := make([]byte, 4)
		binary.BigEndian.PutUint32(b, *m.ArpTpa)
		tlvs = append(tlvs, oxmTLV(oxmArpTpa, b)...)
	}

	length := 4 + len(tlvs) // type(2) + length(2) + tlvs
	buf := make([]byte, 4, 4+len(tlvs)+padTo8(length))
	binary.BigEndian.PutUint16(buf[0:2], matchTypeOXM)
	binary.BigEndian.PutUint16(buf[2:4], uint16(length))
	buf = append(buf, tlvs...)
	buf = append(buf, make([]byte, padTo8(length))...)
	return buf
}

// DecodeMatch parses an ofp_match (including its padding) starting at
// the front of buf, returning the Match and the number of bytes
// consumed (length, padded to 8).
func DecodeMatch(buf []byte) (Match, int, error) {
	if len(buf) < 4 {
		return Match{}, 0, fmt.Errorf("openflow: match too short")
	}
	typ := binary.BigEndian.Uint16(buf[0:2])
	length := int(binary.BigEndian.Uint16(buf[2:4]))
	if typ != matchTypeOXM {
		return Match{}, 0, fmt.Errorf("openflow: unsupported match type %d", typ)
	}
	consumed := length + padTo8(length)
	if len(buf) < consumed {
		return Match{}, 0, fmt.Errorf("openflow: match body shorter than declared length")
	}

	var m Match
	pos := 4
	for pos < length {
		if pos+4 > len(buf) {
			break
		}
		header := binary.BigEndian.Uint32(buf[pos : pos+4])
		field := uint8((header >> 9) & 0x7f)
		hasMask := (header>>8)&1 == 1
		fieldLen := int(header & 0xff)
		pos += 4
		if pos+fieldLen > len(buf) {
			break
		}
		value := buf[pos : pos+fieldLen]
		pos += fieldLen

		switch field {
		case oxmInPort:
			v := binary.BigEndian.Uint32(value)
			m.InPort = &v
		case oxmEthType:
			v := binary.BigEndian.Uint16(value)
			m.EthType = &v
		case oxmIPv4Dst:
			if hasMask {
				half := fieldLen / 2
				v := binary.BigEndian.Uint32(value[:half])
				mk := binary.BigEndian.Uint32(value[half:])
				m.IPv4Dst = &v
				m.IPv4Mask = &mk
			} else {
				v := binary.BigEndian.Uint32(value)
				m.IPv4Dst = &v
			}
		case oxmArpOp:
			v := binary.BigEndian.Uint16(value)
			m.ArpOp = &v
		case oxmArpTpa:
			v := binary.BigEndian.Uint32(value)
			m.ArpTpa = &v
		}
	}
	return m, consumed, nil
}
