package openflow

import "encoding/binary"

// Flow-mod commands (OFPFC_*).
const (
	FlowModAdd    uint8 = 0
	FlowModDelete uint8 = 3
)

// SendFlowRem is the OFPFF_SEND_FLOW_REM flow-mod flag: ask the switch
// to emit a flow-removed message when this entry expires or is deleted.
const SendFlowRem uint16 = 1 << 0

// FlowMod describes one ofp_flow_mod message. Priority/idle/hard
// timeouts and flags all default to their zero value (no timeout, no
// flags) unless set.
type FlowMod struct {
	Cookie      uint64
	CookieMask  uint64
	TableID     uint8
	Command     uint8
	IdleTimeout uint16
	HardTimeout uint16
	Priority    uint16
	BufferID    uint32
	OutPort     uint32
	OutGroup    uint32
	Flags       uint16
	Match       Match
	Actions     []Action
}

// Encode renders the ofp_flow_mod body (everything after the header).
func (fm FlowMod) Encode() []byte {
	matchBytes := fm.Match.Encode()
	var instructions []byte
	if fm.Command != FlowModDelete {
		instructions = encodeApplyActions(fm.Actions)
	}

	buf := make([]byte, 40+len(matchBytes)+len(instructions))
	binary.BigEndian.PutUint64(buf[0:8], fm.Cookie)
	binary.BigEndian.PutUint64(buf[8:16], fm.CookieMask)
	buf[16] = fm.TableID
	buf[17] = fm.Command
	binary.BigEndian.PutUint16(buf[18:20], fm.IdleTimeout)
	binary.BigEndian.PutUint16(buf[20:22], fm.HardTimeout)
	binary.BigEndian.PutUint16(buf[22:24], fm.Priority)
	binary.BigEndian.PutUint32(buf[24:28], fm.BufferID)
	outPort := fm.OutPort
	if outPort == 0 {
		outPort = AnyPort
	}
	outGroup := fm.OutGroup
	if outGroup == 0 {
		outGroup = AnyGroup
	}
	binary.BigEndian.PutUint32(buf[28:32], outPort)
	binary.BigEndian.PutUint32(buf[32:36], outGroup)
	binary.BigEndian.PutUint16(buf[36:38], fm.Flags)
	// buf[38:40] is padding, left zero.
	copy(buf[40:], matchBytes)
	copy(buf[40+len(matchBytes):], instructions)
	return buf
}
