package sdn

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hsdnet/controller/internal/openflow"
	"github.com/hsdnet/controller/internal/util"
)

// session wraps one accepted OpenFlow TCP connection: the HELLO
// handshake, an XID generator, and serialized writes (the read loop
// owns the conn for reading; writers only ever call send, which takes
// a mutex, so a flow-mod racing a packet-out never interleaves bytes).
type session struct {
	conn net.Conn
	mu   sync.Mutex
	xid  uint32
}

func dialOrAccept(conn net.Conn) *session {
	return &session{conn: conn}
}

func (s *session) nextXID() uint32 {
	return atomic.AddUint32(&s.xid, 1)
}

// send frames and writes one OpenFlow message.
func (s *session) send(msgType uint8, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return openflow.WriteMessage(s.conn, msgType, s.nextXID(), body)
}

func (s *session) close() error {
	return s.conn.Close()
}

// handshake performs the OFPT_HELLO exchange, requests FEATURES and
// PORT_DESC, and returns the datapath id and initial port list.
func handshake(ctx context.Context, s *session) (uint64, []openflow.Port, error) {
	if deadline, ok := ctx.Deadline(); ok {
		_ = s.conn.SetDeadline(deadline)
		defer s.conn.SetDeadline(time.Time{})
	}
	if err := s.send(openflow.TypeHello, nil); err != nil {
		return 0, nil, util.NewTransportError(s.conn.RemoteAddr().String(), "send hello", err)
	}
	msg, err := openflow.ReadMessage(s.conn)
	if err != nil {
		return 0, nil, util.NewTransportError(s.conn.RemoteAddr().String(), "read hello", err)
	}
	if msg.Header.Type != openflow.TypeHello {
		return 0, nil, util.NewProtocolError(s.conn.RemoteAddr().String(), "handshake",
			fmt.Sprintf("expected HELLO, got type %d", msg.Header.Type))
	}

	if err := s.send(openflow.TypeFeaturesRequest, nil); err != nil {
		return 0, nil, util.NewTransportError(s.conn.RemoteAddr().String(), "send features request", err)
	}
	msg, err = openflow.ReadMessage(s.conn)
	if err != nil {
		return 0, nil, util.NewTransportError(s.conn.RemoteAddr().String(), "read features reply", err)
	}
	features, err := openflow.DecodeFeatures(msg.Body)
	if err != nil {
		return 0, nil, util.NewProtocolError(s.conn.RemoteAddr().String(), "decode features reply", err.Error())
	}

	if err := s.send(openflow.TypeMultipartRequest, openflow.EncodeMultipartPortDescRequest()); err != nil {
		return 0, nil, util.NewTransportError(s.conn.RemoteAddr().String(), "send port-desc request", err)
	}
	msg, err = openflow.ReadMessage(s.conn)
	if err != nil {
		return 0, nil, util.NewTransportError(s.conn.RemoteAddr().String(), "read port-desc reply", err)
	}
	ports, err := openflow.DecodeMultipartPortDescReply(msg.Body)
	if err != nil {
		return 0, nil, util.NewProtocolError(s.conn.RemoteAddr().String(), "decode port-desc reply", err.Error())
	}

	return features.DatapathID, ports, nil
}

// installLLDPTrap installs the high-priority EtherType 0x88CC ->
// controller flow every datapath needs right after connect, so
// incoming LLDP frames reach the topology poller instead of being
// switched or dropped.
func installLLDPTrap(s *session) error {
	ethLLDP := uint16(0x88cc)
	fm := openflow.FlowMod{
		Command:  openflow.FlowModAdd,
		Priority: 0xffff,
		Match:    openflow.Match{EthType: &ethLLDP},
		Actions:  []openflow.Action{openflow.OutputAction{Port: openflow.ControllerPort, MaxLen: 0xffff}},
	}
	if err := s.send(openflow.TypeFlowMod, fm.Encode()); err != nil {
		return util.NewTransportError(s.conn.RemoteAddr().String(), "install lldp trap", err)
	}
	return nil
}

// installRetriggerFlow installs the dummy empty-action flow-mod whose
// hard_timeout drives the LLDP emission cadence.
func installRetriggerFlow(s *session, dpid uint64, hardTimeout time.Duration) error {
	fm := openflow.FlowMod{
		Cookie:      dpid,
		Priority:    1,
		Command:     openflow.FlowModAdd,
		HardTimeout: uint16(hardTimeout.Seconds()),
		Flags:       openflow.SendFlowRem,
		Match:       openflow.Match{},
	}
	if err := s.send(openflow.TypeFlowMod, fm.Encode()); err != nil {
		return util.NewTransportError(s.conn.RemoteAddr().String(), "install retrigger flow", err)
	}
	return nil
}
