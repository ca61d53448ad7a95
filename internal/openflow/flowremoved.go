package openflow

import (
	"encoding/binary"
	"fmt"
)

// Flow-removed reasons (OFPRR_*). HardTimeout is the reason the LLDP
// self-retrigger loop waits for: the dummy flow-mod it installs expires
// on its hard timeout and the switch reports it back here.
const (
	ReasonIdleTimeout uint8 = 0
	ReasonHardTimeout uint8 = 1
	ReasonDelete      uint8 = 2
	ReasonGroupDelete uint8 = 3
)

// FlowRemoved is the decoded OFPT_FLOW_REMOVED body.
type FlowRemoved struct {
	Cookie       uint64
	Priority     uint16
	Reason       uint8
	TableID      uint8
	DurationSec  uint32
	DurationNSec uint32
	IdleTimeout  uint16
	HardTimeout  uint16
	PacketCount  uint64
	ByteCount    uint64
	Match        Match
}

// DecodeFlowRemoved parses an OFPT_FLOW_REMOVED body.
func DecodeFlowRemoved(body []byte) (FlowRemoved, error) {
	if len(body) < 40 {
		return FlowRemoved{}, fmt.Errorf("openflow: flow-removed too short")
	}
	fr := FlowRemoved{
		Cookie:       binary.BigEndian.Uint64(body[0:8]),
		Priority:     binary.BigEndian.Uint16(body[8:10]),
		Reason:       body[10],
		TableID:      body[11],
		DurationSec:  binary.BigEndian.Uint32(body[12:16]),
		DurationNSec: binary.BigEndian.Uint32(body[16:20]),
		IdleTimeout:  binary.BigEndian.Uint16(body[20:22]),
		HardTimeout:  binary.BigEndian.Uint16(body[22:24]),
		PacketCount:  binary.BigEndian.Uint64(body[24:32]),
		ByteCount:    binary.BigEndian.Uint64(body[32:40]),
	}
	match, _, err := DecodeMatch(body[40:])
	if err != nil {
		return FlowRemoved{}, fmt.Errorf("openflow: flow-removed match: %w", err)
	}
	fr.Match = match
	return fr, nil
}
