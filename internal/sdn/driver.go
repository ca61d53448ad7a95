package sdn

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/hsdnet/controller/internal/model"
	"github.com/hsdnet/controller/internal/openflow"
	"github.com/hsdnet/controller/internal/util"
)

// Topology is one snapshot of the SDN-visible network: per-label
// sorted port lists and per-label, port-keyed neighbor system names —
// the shape internal/topology fuses with the classic-side snapshot.
type Topology struct {
	Ports     map[string][]model.Port
	Neighbors map[string]map[string]string // label -> {port_no_string: neighbor_label}
}

// Driver accepts OpenFlow connections, labels datapaths, runs the LLDP
// self-retrigger/aging loop per datapath, answers ARP, and applies
// SDN-side configuration. One Driver serves an entire listening socket;
// each accepted connection gets its own read-loop goroutine.
type Driver struct {
	mu        sync.RWMutex
	labels    *model.DatapathLabelMap
	datapaths map[string]*datapath // keyed by label

	onTopology func(Topology)
}

// NewDriver builds a Driver backed by the given persistent label map.
// onTopology, if non-nil, is invoked after every aging pass that
// actually ran, so subscribers see a fresh SdnTopology whenever a
// neighbor sighting could have changed.
func NewDriver(labels *model.DatapathLabelMap, onTopology func(Topology)) *Driver {
	return &Driver{
		labels:     labels,
		datapaths:  make(map[string]*datapath),
		onTopology: onTopology,
	}
}

// Serve accepts connections on ln until ctx is cancelled, handling each
// one in its own goroutine.
func (d *Driver) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return util.NewTransportError(ln.Addr().String(), "accept", err)
			}
		}
		go d.handleConn(ctx, conn)
	}
}

func (d *Driver) handleConn(ctx context.Context, conn net.Conn) {
	s := dialOrAccept(conn)
	handshakeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	dpid, ports, err := handshake(handshakeCtx, s)
	cancel()
	if err != nil {
		util.WithComponent("sdn").WithField("remote", conn.RemoteAddr()).
			Debugf("datapath handshake failed: %v", err)
		conn.Close()
		return
	}

	label, err := d.labels.Label(dpid)
	if err != nil {
		util.WithComponent("sdn").Errorf("labeling datapath %d: %v", dpid, err)
		conn.Close()
		return
	}

	dp := newDatapath(dpid, label, s)
	dp.setPorts(ports)

	d.mu.Lock()
	d.datapaths[label] = dp
	d.mu.Unlock()

	util.WithComponent("sdn").WithField("label", label).Infof("datapath connected (dpid=%d)", dpid)

	if err := installLLDPTrap(s); err != nil {
		util.WithComponent("sdn").Errorf("%s: install lldp trap: %v", label, err)
	}

	go d.startRetrigger(ctx, dp)
	d.readLoop(ctx, dp)

	d.mu.Lock()
	delete(d.datapaths, label)
	d.mu.Unlock()
	util.WithComponent("sdn").WithField("label", label).Debugf("datapath disconnected, label retained")
}

// startRetrigger installs the dummy flow-mod that drives LLDP emission;
// each flow-removed event (observed via readLoop) re-arms it at the
// next cadence (1s first cycle, 15s steady-state).
func (d *Driver) startRetrigger(_ context.Context, dp *datapath) {
	if err := installRetriggerFlow(dp.conn, dp.dpid, dp.retrigger); err != nil {
		util.WithComponent("sdn").Errorf("%s: install retrigger flow: %v", dp.label, err)
	}
}

func (d *Driver) readLoop(ctx context.Context, dp *datapath) {
	for {
		msg, err := openflow.ReadMessage(dp.conn)
		if err != nil {
			return
		}
		switch msg.Header.Type {
		case openflow.TypeFlowRemoved:
			d.handleFlowRemoved(dp, msg.Body)
		case openflow.TypePacketIn:
			d.handlePacketIn(dp, msg.Body)
		case openflow.TypeEchoRequest:
			_ = dp.conn.send(openflow.TypeEchoReply, msg.Body)
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
	}
}

func (d *Driver) handleFlowRemoved(dp *datapath, body []byte) {
	fr, err := openflow.DecodeFlowRemoved(body)
	if err != nil {
		util.WithComponent("sdn").Debugf("%s: bad flow-removed: %v", dp.label, err)
		return
	}
	if fr.Reason != openflow.ReasonHardTimeout {
		return
	}

	hardTimeout := dp.advanceRetrigger()
	d.emitLLDP(dp)
	if err := installRetriggerFlow(dp.conn, dp.dpid, hardTimeout); err != nil {
		util.WithComponent("sdn").Errorf("%s: re-install retrigger flow: %v", dp.label, err)
	}

	if !dp.age(time.Now()) {
		return
	}
	if d.onTopology != nil {
		d.onTopology(d.topologySnapshotLocked())
	}
}

// emitLLDP sends one LLDP frame out every known port on the datapath.
func (d *Driver) emitLLDP(dp *datapath) {
	for _, p := range dp.portList() {
		hw, err := net.ParseMAC(p.HWAddr)
		if err != nil {
			continue
		}
		frame, err := buildLLDPFrame(hw, p.PortNo, dp.label)
		if err != nil {
			util.WithComponent("sdn").Errorf("%s: build lldp frame: %v", dp.label, err)
			continue
		}
		po := openflow.PacketOut{
			BufferID: openflow.NoBuffer,
			InPort:   openflow.ControllerPort,
			Actions:  []openflow.Action{openflow.OutputAction{Port: p.PortNo}},
			Data:     frame,
		}
		if err := dp.conn.send(openflow.TypePacketOut, po.Encode()); err != nil {
			util.WithComponent("sdn").Errorf("%s: send lldp frame: %v", dp.label, err)
		}
	}
}

func (d *Driver) handlePacketIn(dp *datapath, body []byte) {
	pi, err := openflow.DecodePacketIn(body)
	if err != nil {
		return
	}
	if pi.Match.InPort == nil {
		return
	}
	inPort := *pi.Match.InPort

	if lldp, ok := parseLLDPFrame(pi.Data); ok {
		dp.recordNeighbor(lldp.SystemName, inPort, lldp.TTL)
		return
	}

	if arp, ok := parseARPRequest(pi.Data); ok {
		d.respondARP(dp, inPort, arp)
	}
}

func (d *Driver) respondARP(dp *datapath, inPort uint32, arp arpRequest) {
	binding, ok := dp.lookupAddress(inPort)
	if !ok {
		return
	}
	portMAC, ok := dp.portMAC(inPort)
	if !ok {
		return
	}
	reply, err := buildARPReply(portMAC, binding.ip, arp.senderHW, arp.senderIP)
	if err != nil {
		util.WithComponent("sdn").Errorf("%s: build arp reply: %v", dp.label, err)
		return
	}
	po := openflow.PacketOut{
		BufferID: openflow.NoBuffer,
		InPort:   openflow.ControllerPort,
		Actions:  []openflow.Action{openflow.OutputAction{Port: inPort}},
		Data:     reply,
	}
	if err := dp.conn.send(openflow.TypePacketOut, po.Encode()); err != nil {
		util.WithComponent("sdn").Errorf("%s: send arp reply: %v", dp.label, err)
	}
}

// topologySnapshotLocked builds a Topology from all currently connected
// datapaths.
func (d *Driver) topologySnapshotLocked() Topology {
	d.mu.RLock()
	defer d.mu.RUnlock()

	topo := Topology{Ports: make(map[string][]model.Port), Neighbors: make(map[string]map[string]string)}
	for label, dp := range d.datapaths {
		topo.Ports[label] = dp.portList()
		neighborsByPort := dp.neighborSnapshot()
		byPortString := make(map[string]string, len(neighborsByPort))
		for port, name := range neighborsByPort {
			byPortString[portToString(port)] = name
		}
		topo.Neighbors[label] = byPortString
	}
	return topo
}

// ConfigureList reconciles a datapath's applied configuration to
// desired, diffing against the applied list exactly as the NETCONF
// driver does, and translating each added/removed line to flow-mods.
func (d *Driver) ConfigureList(label string, desired []string) error {
	d.mu.RLock()
	dp, ok := d.datapaths[label]
	d.mu.RUnlock()
	if !ok {
		return util.NewStateConflictError(label, "datapath not connected")
	}

	toRemove, toAdd := model.Diff(dp.applied, desired)
	for _, raw := range toRemove {
		parsed, err := model.ParseAppliedConfig(raw)
		if err != nil {
			continue
		}
		if err := d.deconfigure(dp, parsed); err != nil {
			util.WithComponent("sdn").Errorf("%s: deconfigure %q: %v", label, raw, err)
			continue
		}
		dp.applied.Remove(raw)
	}
	for _, raw := range toAdd {
		parsed, err := model.ParseAppliedConfig(raw)
		if err != nil {
			return util.NewValidationError(raw, err.Error())
		}
		if err := d.configure(dp, parsed); err != nil {
			util.WithComponent("sdn").Errorf("%s: configure %q: %v", label, raw, err)
			continue
		}
		dp.applied.Add(parsed)
	}
	return nil
}

func (d *Driver) configure(dp *datapath, c model.AppliedConfig) error {
	switch c.Kind {
	case "address":
		portStr, cidr := c.Address()
		portNo, err := parsePort(portStr)
		if err != nil {
			return util.NewValidationError(c.Raw, err.Error())
		}
		fms, err := addressFlowMods(portNo, cidr, openflow.FlowModAdd)
		if err != nil {
			return err
		}
		for _, fm := range fms {
			if err := dp.conn.send(openflow.TypeFlowMod, fm.Encode()); err != nil {
				return util.NewTransportError(dp.label, "install address flow", err)
			}
		}
		ip, _, err := util.ParseIPWithMask(cidr)
		if err == nil {
			dp.bindAddress(portNo, ip)
		}
		return nil
	case "route":
		cidr, exitPortStr, _ := c.Route()
		ip, prefixLen, err := util.ParseIPWithMask(cidr)
		if err != nil {
			return util.NewValidationError(cidr, err.Error())
		}
		exitPort, err := parsePort(exitPortStr)
		if err != nil {
			return util.NewValidationError(c.Raw, err.Error())
		}
		fm, err := routeFlowMod(ip.String(), prefixLen, exitPort, openflow.FlowModAdd)
		if err != nil {
			return err
		}
		return dp.conn.send(openflow.TypeFlowMod, fm.Encode())
	default:
		return util.NewValidationError(c.Raw, "unsupported sdn configuration kind "+c.Kind)
	}
}

func (d *Driver) deconfigure(dp *datapath, c model.AppliedConfig) error {
	switch c.Kind {
	case "address":
		portStr, cidr := c.Address()
		portNo, err := parsePort(portStr)
		if err != nil {
			return util.NewValidationError(c.Raw, err.Error())
		}
		fms, err := addressFlowMods(portNo, cidr, openflow.FlowModAdd)
		if err != nil {
			return err
		}
		for _, fm := range fms {
			del := asDelete(fm)
			if err := dp.conn.send(openflow.TypeFlowMod, del.Encode()); err != nil {
				return util.NewTransportError(dp.label, "delete address flow", err)
			}
		}
		dp.unbindAddress(portNo)
		return nil
	case "route":
		cidr, exitPortStr, _ := c.Route()
		ip, prefixLen, err := util.ParseIPWithMask(cidr)
		if err != nil {
			return util.NewValidationError(cidr, err.Error())
		}
		exitPort, err := parsePort(exitPortStr)
		if err != nil {
			return util.NewValidationError(c.Raw, err.Error())
		}
		fm, err := routeFlowMod(ip.String(), prefixLen, exitPort, openflow.FlowModAdd)
		if err != nil {
			return err
		}
		del := asDelete(fm)
		return dp.conn.send(openflow.TypeFlowMod, del.Encode())
	default:
		return util.NewValidationError(c.Raw, "unsupported sdn configuration kind "+c.Kind)
	}
}

func portToString(portNo uint32) string {
	return model.Port{PortNo: portNo}.ID(model.SDN)
}
