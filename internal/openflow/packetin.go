package openflow

import (
	"encoding/binary"
	"fmt"
)

// PacketIn reasons (OFPR_*).
const (
	ReasonNoMatch uint8 = 0
	ReasonAction  uint8 = 1
)

// PacketIn is the decoded OFPT_PACKET_IN body.
type PacketIn struct {
	BufferID uint32
	TotalLen uint16
	Reason   uint8
	TableID  uint8
	Cookie   uint64
	Match    Match
	Data     []byte
}

// DecodePacketIn parses an OFPT_PACKET_IN body.
func DecodePacketIn(body []byte) (PacketIn, error) {
	if len(body) < 16 {
		return PacketIn{}, fmt.Errorf("openflow: packet-in too short")
	}
	pi := PacketIn{
		BufferID: binary.BigEndian.Uint32(body[0:4]),
		TotalLen: binary.BigEndian.Uint16(body[4:6]),
		Reason:   body[6],
		TableID:  body[7],
		Cookie:   binary.BigEndian.Uint64(body[8:16]),
	}
	match, consumed, err := DecodeMatch(body[16:])
	if err != nil {
		return PacketIn{}, fmt.Errorf("openflow: packet-in match: %w", err)
	}
	pi.Match = match
	dataStart := 16 + consumed + 2 // 2 bytes of pad after match
	if dataStart > len(body) {
		return pi, nil
	}
	pi.Data = body[dataStart:]
	return pi, nil
}

// PacketOut builds an OFPT_PACKET_OUT body that replays Data (a raw
// Ethernet frame) out Actions, e.g. a single OutputAction to a given
// port. BufferID should be NoBuffer (0xffffffff) when Data carries the
// full frame, which is the only mode this controller uses (it crafts
// frames itself rather than replaying switch-buffered ones).
const NoBuffer uint32 = 0xffffffff

type PacketOut struct {
	BufferID uint32
	InPort   uint32
	Actions  []Action
	Data     []byte
}

// Encode renders the ofp_packet_out body.
func (po PacketOut) Encode() []byte {
	actionBytes := encodeActions(po.Actions)
	buf := make([]byte, 16+len(actionBytes)+len(po.Data))
	binary.BigEndian.PutUint32(buf[0:4], po.BufferID)
	binary.BigEndian.PutUint32(buf[4:8], po.InPort)
	binary.BigEndian.PutUint16(buf[8:10], uint16(len(actionBytes)))
	copy(buf[16:], actionBytes)
	copy(buf[16+len(actionBytes):], po.Data)
	return buf
}
