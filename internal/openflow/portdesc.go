package openflow

import (
	"encoding/binary"
	"fmt"
	"net"
)

// Multipart types this controller uses (OFPMP_*).
const multipartTypePortDesc uint16 = 13

const portDescEntryLen = 64

// Port is one entry of an ofp_port struct from a PORT_DESC multipart
// reply.
type Port struct {
	PortNo  uint32
	HWAddr  net.HardwareAddr
	Name    string
}

// EncodeMultipartPortDescRequest builds the OFPT_MULTIPART_REQUEST body
// asking for OFPMP_PORT_DESC.
func EncodeMultipartPortDescRequest() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint16(buf[0:2], multipartTypePortDesc)
	return buf
}

// DecodeMultipartPortDescReply parses an OFPT_MULTIPART_REPLY body of
// type OFPMP_PORT_DESC into its ofp_port entries, skipping OFPP_LOCAL
// since it is the switch's internal pseudo-port, not a real datapath.
func DecodeMultipartPortDescReply(body []byte) ([]Port, error) {
	if len(body) < 8 {
		return nil, fmt.Errorf("openflow: multipart reply too short")
	}
	typ := binary.BigEndian.Uint16(body[0:2])
	if typ != multipartTypePortDesc {
		return nil, fmt.Errorf("openflow: expected port-desc multipart reply, got type %d", typ)
	}
	entries := body[8:]
	var ports []Port
	for off := 0; off+portDescEntryLen <= len(entries); off += portDescEntryLen {
		e := entries[off : off+portDescEntryLen]
		portNo := binary.BigEndian.Uint32(e[0:4])
		if portNo == LocalPort {
			continue
		}
		hw := make(net.HardwareAddr, 6)
		copy(hw, e[8:14])
		name := stringFromFixedBuf(e[16:32])
		ports = append(ports, Port{PortNo: portNo, HWAddr: hw, Name: name})
	}
	return ports, nil
}

func stringFromFixedBuf(buf []byte) string {
	for i, b := range buf {
		if b == 0 {
			return string(buf[:i])
		}
	}
	return string(buf)
}
