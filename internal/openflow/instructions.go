package openflow

import "encoding/binary"

// instructionTypeApplyActions is OFPIT_APPLY_ACTIONS.
const instructionTypeApplyActions uint16 = 4

// encodeApplyActions wraps a list of actions in a single
// apply-actions instruction, the only instruction type this
// controller's flow-mods ever need.
func encodeApplyActions(actions []Action) []byte {
	body := encodeActions(actions)
	length := 4 + len(body)
	buf := make([]byte, 4, length)
	binary.BigEndian.PutUint16(buf[0:2], instructionTypeApplyActions)
	binary.BigEndian.PutUint16(buf[2:4], uint16(length))
	buf = append(buf, body...)
	return buf
}
