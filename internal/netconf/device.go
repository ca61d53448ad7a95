// Package netconf implements the NETCONF/YANG device driver: a
// per-device connection state machine over internal/netconf/rpc,
// configuration diffing against an applied list, and dispatch of the
// canonical configuration grammar to YANG edit-configs.
package netconf

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hsdnet/controller/internal/model"
	"github.com/hsdnet/controller/internal/netconf/rpc"
	"github.com/hsdnet/controller/internal/util"
)

// State is a position in the per-device connection state machine
// described for discover().
type State int

const (
	Disconnected State = iota
	ConnectedLLDPOff
	ConnectedLLDPOn
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case ConnectedLLDPOff:
		return "connected-lldp-off"
	case ConnectedLLDPOn:
		return "connected-lldp-on"
	default:
		return "unknown"
	}
}

// Snapshot is one device's contribution to a NetconfTopology event:
// its interfaces and, per local interface, the neighbor system name
// learned over LLDP.
type Snapshot struct {
	Hostname  string
	Ports     []model.Port
	Neighbors map[string]string // local interface name -> neighbor system name
}

// aclKey identifies one block/route-f match tuple for sequence-id
// and route-map-sequence bookkeeping, so a later deconf can reuse the
// exact sequence number the conf used.
type aclKey struct {
	src, dst, proto, sport, dport string
}

func keyOf(src, dst, proto, sport, dport string) aclKey {
	return aclKey{src, dst, proto, sport, dport}
}

// netconfSession is the subset of *rpc.Session the driver needs.
// Tests substitute a fake to exercise the state machine and edit
// dispatch without a real SSH/NETCONF peer.
type netconfSession interface {
	Get(ctx context.Context, filterXML string) (string, error)
	EditConfig(ctx context.Context, configXML string) error
	Commit(ctx context.Context) error
	Close() error
}

// dialFunc is overridable in tests so Discover can be driven without
// a real network connection.
var dialFunc = func(ctx context.Context, addr, user, password string, timeout time.Duration) (netconfSession, error) {
	return rpc.Dial(ctx, addr, user, password, timeout)
}

// Device owns one NETCONF session and its connection state machine.
// Every exported method takes the device's own mutex, so configure
// and discovery calls against the same device never interleave their
// NETCONF exchanges without a separate lock-then-check step at each
// call site.
type Device struct {
	Hostname string
	IP       string

	user           string
	password       string
	connectTimeout time.Duration

	mu      sync.Mutex
	state   State
	session netconfSession
	applied *model.AppliedList

	managementIface      string
	aclCount             int
	routeForwardACLCount int
	aclSeq               map[aclKey]int
	routeMapSeq          int
	disabled             map[string]struct{}
}

// NewDevice constructs a device in the Disconnected state. Call
// Discover repeatedly (e.g. from the 1s classic topology tick) to
// drive it through its state machine.
func NewDevice(hostname, ip, user, password string, connectTimeout time.Duration) *Device {
	return &Device{
		Hostname:       hostname,
		IP:             ip,
		user:           user,
		password:       password,
		connectTimeout: connectTimeout,
		state:          Disconnected,
		applied:        &model.AppliedList{},
		aclSeq:         make(map[aclKey]int),
		disabled:       make(map[string]struct{}),
	}
}

func (d *Device) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

func (d *Device) dropToDisconnected() {
	if d.session != nil {
		d.session.Close()
	}
	d.session = nil
	d.state = Disconnected
}

// Discover runs one idempotent step of the connection state machine
// and, once in ConnectedLLDPOn, returns a fresh Snapshot. Any
// transport failure resets the device to Disconnected and returns an
// error wrapping util.ErrTransport.
func (d *Device) Discover(ctx context.Context) (Snapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	log := util.WithDevice(d.Hostname)

	switch d.state {
	case Disconnected:
		addr := fmt.Sprintf("%s:830", d.IP)
		session, err := dialFunc(ctx, addr, d.user, d.password, d.connectTimeout)
		if err != nil {
			log.Debugf("netconf connect failed: %v", err)
			return Snapshot{}, util.NewTransportError(d.Hostname, "connect", err)
		}
		d.session = session
		d.state = ConnectedLLDPOff
		if err := d.loadTimeHousekeeping(ctx); err != nil {
			d.dropToDisconnected()
			return Snapshot{}, err
		}
		return Snapshot{}, nil

	case ConnectedLLDPOff:
		raw, err := d.session.Get(ctx, filterLLDPGlobal())
		if err != nil {
			d.dropToDisconnected()
			return Snapshot{}, util.NewTransportError(d.Hostname, "get lldp config", err)
		}
		global, err := parseLLDPGlobal(raw)
		if err != nil {
			d.dropToDisconnected()
			return Snapshot{}, util.NewProtocolError(d.Hostname, "get lldp config", err.Error())
		}
		if !global.Config.Enabled {
			if err := d.session.EditConfig(ctx, buildEnableLLDPEdit()); err != nil {
				d.dropToDisconnected()
				return Snapshot{}, util.NewTransportError(d.Hostname, "enable lldp", err)
			}
			if err := d.session.Commit(ctx); err != nil {
				d.dropToDisconnected()
				return Snapshot{}, util.NewTransportError(d.Hostname, "enable lldp", err)
			}
		}
		d.state = ConnectedLLDPOn
		return Snapshot{}, nil

	case ConnectedLLDPOn:
		snap, err := d.fetchSnapshot(ctx)
		if err != nil {
			d.dropToDisconnected()
			return Snapshot{}, util.NewTransportError(d.Hostname, "discover", err)
		}
		if err := d.reconcileEnabledState(ctx, snap); err != nil {
			d.dropToDisconnected()
			return Snapshot{}, util.NewTransportError(d.Hostname, "reconcile enabled state", err)
		}
		if err := d.reconcileEgressACLBindings(ctx, snap); err != nil {
			d.dropToDisconnected()
			return Snapshot{}, util.NewTransportError(d.Hostname, "reconcile egress acl bindings", err)
		}
		return snap, nil
	}

	return Snapshot{}, fmt.Errorf("netconf: device %s in unknown state %v", d.Hostname, d.state)
}

func (d *Device) fetchSnapshot(ctx context.Context) (Snapshot, error) {
	rawIf, err := d.session.Get(ctx, filterInterfaces())
	if err != nil {
		return Snapshot{}, err
	}
	ifs, err := parseInterfaces(rawIf)
	if err != nil {
		return Snapshot{}, err
	}

	rawLLDP, err := d.session.Get(ctx, filterLLDPNeighbors())
	if err != nil {
		return Snapshot{}, err
	}
	lldp, err := parseLLDPNeighbors(rawLLDP)
	if err != nil {
		return Snapshot{}, err
	}

	ports := make([]model.Port, 0, len(ifs.Interfaces))
	for i, iface := range ifs.Interfaces {
		ports = append(ports, model.Port{Name: iface.Name, PortNo: uint32(i)})
	}

	neighbors := make(map[string]string)
	for _, iface := range lldp.Interfaces.Interface {
		for _, n := range iface.Neighbors.Neighbor {
			if n.SystemName != "" {
				neighbors[iface.Name] = n.SystemName
			}
		}
	}

	return Snapshot{Hostname: d.Hostname, Ports: ports, Neighbors: neighbors}, nil
}

// reconcileEnabledState re-enables any interface the poller finds
// administratively disabled that the driver did not itself disable.
func (d *Device) reconcileEnabledState(ctx context.Context, snap Snapshot) error {
	rawIf, err := d.session.Get(ctx, filterInterfaces())
	if err != nil {
		return err
	}
	ifs, err := parseInterfaces(rawIf)
	if err != nil {
		return err
	}

	var toEnable []string
	for _, iface := range ifs.Interfaces {
		if iface.Name == d.managementIface {
			continue
		}
		if _, wasDisabledByUs := d.disabled[iface.Name]; wasDisabledByUs {
			continue
		}
		if !iface.Config.Enabled {
			toEnable = append(toEnable, iface.Name)
		}
	}
	if len(toEnable) == 0 {
		return nil
	}

	var sb strings.Builder
	for _, name := range toEnable {
		sb.WriteString(buildDisableEdit(name, true))
	}
	if err := d.session.EditConfig(ctx, sb.String()); err != nil {
		return err
	}
	return d.session.Commit(ctx)
}

// reconcileEgressACLBindings binds each of the device's ACL-sets
// (block's ACL_<hostname>, route-f's ACL_route-f_<hostname>) as egress
// on every discovered interface when that set currently holds entries,
// and unbinds it when the set has been emptied back out by deconfigure
// — re-evaluated every discovery cycle, alongside enabled-state
// reconciliation.
func (d *Device) reconcileEgressACLBindings(ctx context.Context, snap Snapshot) error {
	if len(snap.Ports) == 0 {
		return nil
	}
	blockACL := "ACL_" + d.Hostname
	routeForwardACL := fmt.Sprintf("ACL_route-f_%s", d.Hostname)

	var sb strings.Builder
	for _, port := range snap.Ports {
		if port.Name == d.managementIface {
			continue
		}
		sb.WriteString(buildEgressACLSetEdit(port.Name, blockACL, d.aclCount > 0))
		sb.WriteString(buildEgressACLSetEdit(port.Name, routeForwardACL, d.routeForwardACLCount > 0))
	}
	if sb.Len() == 0 {
		return nil
	}
	if err := d.session.EditConfig(ctx, sb.String()); err != nil {
		return err
	}
	return d.session.Commit(ctx)
}

// loadTimeHousekeeping runs once, on first successful connect: flush
// pre-existing static routes/ACL-sets/route-maps, then seed the
// applied list from addresses already configured on every interface
// except the management interface (first interface in document
// order).
func (d *Device) loadTimeHousekeeping(ctx context.Context) error {
	if err := d.session.EditConfig(ctx, buildDeleteAllStaticRoutes()); err != nil {
		return util.NewTransportError(d.Hostname, "flush static routes", err)
	}
	if err := d.session.EditConfig(ctx, buildDeleteAllACLSets()); err != nil {
		return util.NewTransportError(d.Hostname, "flush acl-sets", err)
	}
	if err := d.session.EditConfig(ctx, buildDeleteAllRouteMaps()); err != nil {
		return util.NewTransportError(d.Hostname, "flush route-maps", err)
	}
	if err := d.session.Commit(ctx); err != nil {
		return util.NewTransportError(d.Hostname, "commit load-time housekeeping", err)
	}

	raw, err := d.session.Get(ctx, filterInterfaces())
	if err != nil {
		return util.NewTransportError(d.Hostname, "get interfaces", err)
	}
	ifs, err := parseInterfaces(raw)
	if err != nil {
		return util.NewProtocolError(d.Hostname, "get interfaces", err.Error())
	}
	if len(ifs.Interfaces) > 0 {
		d.managementIface = ifs.Interfaces[0].Name
	}

	for i, iface := range ifs.Interfaces {
		if i == 0 {
			continue // management interface, never a candidate for discovered routes
		}
		for _, sub := range iface.Subinterfaces.Subinterface {
			for _, addr := range sub.IPv4.Addresses.Address {
				cidr := fmt.Sprintf("%s/%d", addr.IP, addr.Config.PrefixLength)
				d.applied.Add(model.NewAddress(iface.Name, cidr))
			}
		}
	}
	return nil
}

// ConfigureList diffs desired against the device's applied list:
// items only in the applied list are deconfigured first (in their
// original insertion order), then items only in desired are
// configured. Each successful operation mutates the applied list
// immediately so a failure partway through leaves it consistent with
// what was actually applied.
func (d *Device) ConfigureList(ctx context.Context, desired []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	toRemove, toAdd := model.Diff(d.applied, desired)

	for _, line := range toRemove {
		if err := d.configureLocked(ctx, line, true); err != nil {
			return err
		}
		d.applied.Remove(line)
	}
	for _, line := range toAdd {
		if err := d.configureLocked(ctx, line, false); err != nil {
			return err
		}
		parsed, err := model.ParseAppliedConfig(line)
		if err != nil {
			return util.NewValidationError("configure_list", err.Error())
		}
		d.applied.Add(parsed)
	}
	return nil
}

// Configure dispatches a single canonical configuration line by its
// first token. deconf=true removes the configuration instead of
// applying it; it does not itself touch the applied list — callers
// that need applied-list bookkeeping should go through ConfigureList.
func (d *Device) Configure(ctx context.Context, conf string, deconf bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.configureLocked(ctx, conf, deconf)
}

func (d *Device) configureLocked(ctx context.Context, conf string, deconf bool) error {
	if d.session == nil {
		return util.NewStateConflictError(d.Hostname, "not connected")
	}
	fields := strings.Fields(conf)
	if len(fields) == 0 {
		return util.NewValidationError("configure", "empty configuration line")
	}

	var err error
	switch fields[0] {
	case "address":
		err = d.configureAddress(ctx, fields, deconf)
	case "route":
		err = d.configureRoute(ctx, fields, deconf)
	case "block":
		err = d.configureBlock(ctx, fields, deconf)
	case "route-f":
		err = d.configureRouteForward(ctx, fields, deconf)
	case "disable":
		err = d.configureDisable(ctx, fields, deconf)
	default:
		err = util.NewValidationError("configure", fmt.Sprintf("unknown configuration kind %q", fields[0]))
	}
	if err != nil {
		return err
	}
	return d.session.Commit(ctx)
}

func (d *Device) configureAddress(ctx context.Context, fields []string, deconf bool) error {
	if len(fields) != 3 {
		return util.NewValidationError("address", "want 3 fields: address <iface> <cidr>")
	}
	iface, cidr := fields[1], fields[2]
	ip, plen, err := util.ParseIPWithMask(cidr)
	if err != nil {
		return util.NewValidationError("address", err.Error())
	}
	return d.session.EditConfig(ctx, buildAddressEdit(iface, ip.String(), plen, deconf))
}

func (d *Device) configureRoute(ctx context.Context, fields []string, deconf bool) error {
	if len(fields) != 4 {
		return util.NewValidationError("route", "want 4 fields: route <cidr> <exit_port> <next_hop>")
	}
	cidr, exitPort, nextHop := fields[1], fields[2], fields[3]
	ip, plen, err := util.ParseIPWithMask(cidr)
	if err != nil {
		return util.NewValidationError("route", err.Error())
	}
	network := util.ComputeNetworkAddr(ip.String(), plen)
	return d.session.EditConfig(ctx, buildRouteEdit(network, plen, exitPort, nextHop, deconf))
}

func (d *Device) configureBlock(ctx context.Context, fields []string, deconf bool) error {
	if len(fields) != 6 {
		return util.NewValidationError("block", "want 6 fields: block <src> <dst> <proto> <sport> <dport>")
	}
	src, dst, proto, sport, dport := fields[1], fields[2], fields[3], fields[4], fields[5]
	key := keyOf(src, dst, proto, sport, dport)
	match := resolveACLMatch(src, dst, proto, sport, dport)
	aclName := "ACL_" + d.Hostname

	if deconf {
		seq, ok := d.aclSeq[key]
		if !ok {
			return util.NewStateConflictError(d.Hostname, "no remembered sequence id for block deconfigure")
		}
		if err := d.session.EditConfig(ctx, buildBlockEdit(aclName, seq, match, true)); err != nil {
			return err
		}
		delete(d.aclSeq, key)
		d.aclCount--
		return nil
	}

	seq := d.aclCount*10 + 10
	if err := d.session.EditConfig(ctx, buildBlockEdit(aclName, seq, match, false)); err != nil {
		return err
	}
	d.aclSeq[key] = seq
	d.aclCount++
	return nil
}

func (d *Device) configureRouteForward(ctx context.Context, fields []string, deconf bool) error {
	if len(fields) != 7 {
		return util.NewValidationError("route-f", "want 7 fields: route-f <src> <dst> <proto> <sport> <dport> <exit_port>")
	}
	src, dst, proto, sport, dport, exitPort := fields[1], fields[2], fields[3], fields[4], fields[5], fields[6]
	key := keyOf(src, dst, proto, sport, dport)
	match := resolveACLMatch(src, dst, proto, sport, dport)
	aclName := fmt.Sprintf("ACL_route-f_%s", d.Hostname)
	mapName := "MAP_" + d.Hostname

	if deconf {
		seq, ok := d.aclSeq[key]
		if !ok {
			return util.NewStateConflictError(d.Hostname, "no remembered sequence id for route-f deconfigure")
		}
		if err := d.session.EditConfig(ctx, buildRouteForwardPermitACL(aclName, seq, match, true)); err != nil {
			return err
		}
		if err := d.session.EditConfig(ctx, buildRouteMapEdit(mapName, seq, "", true)); err != nil {
			return err
		}
		delete(d.aclSeq, key)
		d.routeForwardACLCount--
		return nil
	}

	nextHop, err := d.exitPortNeighborAddress(exitPort)
	if err != nil {
		return util.NewValidationError("route-f", err.Error())
	}

	d.routeMapSeq++
	seq := d.routeMapSeq
	if err := d.session.EditConfig(ctx, buildRouteForwardPermitACL(aclName, seq, match, false)); err != nil {
		return err
	}
	if err := d.session.EditConfig(ctx, buildRouteMapEdit(mapName, seq, nextHop, false)); err != nil {
		return err
	}
	d.aclSeq[key] = seq
	d.routeForwardACLCount++
	return nil
}

// exitPortNeighborAddress derives the next-hop address for a route-f
// op from the exit port's own configured /30: the other host address
// in that subnet. Per the §9 open question this only works when the
// exit port is itself addressed with a /30; any other prefix length
// fails validation rather than emitting a wrong next-hop.
func (d *Device) exitPortNeighborAddress(exitPort string) (string, error) {
	for _, line := range d.applied.Items() {
		if line.Kind != "address" {
			continue
		}
		port, cidr := line.Address()
		if port != exitPort {
			continue
		}
		ip, plen, err := util.ParseIPWithMask(cidr)
		if err != nil {
			return "", err
		}
		if plen != 30 {
			return "", fmt.Errorf("exit port %s is not addressed with a /30 (got /%d)", exitPort, plen)
		}
		return util.ComputeNeighborIP(ip.String(), plen), nil
	}
	return "", fmt.Errorf("exit port %s has no configured address to derive a next-hop from", exitPort)
}

func (d *Device) configureDisable(ctx context.Context, fields []string, deconf bool) error {
	if len(fields) != 2 {
		return util.NewValidationError("disable", "want 2 fields: disable <port>")
	}
	port := fields[1]
	if deconf {
		if err := d.session.EditConfig(ctx, buildDisableEdit(port, true)); err != nil {
			return err
		}
		delete(d.disabled, port)
		return nil
	}
	if err := d.session.EditConfig(ctx, buildDisableEdit(port, false)); err != nil {
		return err
	}
	d.disabled[port] = struct{}{}
	return nil
}

