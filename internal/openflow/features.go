package openflow

import (
	"encoding/binary"
	"fmt"
)

// Features is the decoded ofp_switch_features (FEATURES_REPLY) body.
type Features struct {
	DatapathID uint64
	NBuffers   uint32
	NTables    uint8
	AuxiliaryID uint8
	Capabilities uint32
}

// DecodeFeatures parses an OFPT_FEATURES_REPLY body.
func DecodeFeatures(body []byte) (Features, error) {
	if len(body) < 24 {
		return Features{}, fmt.Errorf("openflow: features reply too short (%d bytes)", len(body))
	}
	return Features{
		DatapathID:   binary.BigEndian.Uint64(body[0:8]),
		NBuffers:     binary.BigEndian.Uint32(body[8:12]),
		NTables:      body[12],
		AuxiliaryID:  body[13],
		Capabilities: binary.BigEndian.Uint32(body[16:20]),
	}, nil
}
