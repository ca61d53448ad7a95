package netconf

import (
	"context"
	"sync"
	"time"

	"github.com/hsdnet/controller/internal/util"
)

// Driver owns every managed device's connection state machine and is
// the thing internal/classictopo calls once a second. It has no
// knowledge of the event bus itself — the caller wires discover
// results into bus events, keeping this package testable without a
// bus in the loop.
type Driver struct {
	mu      sync.RWMutex
	devices map[string]*Device
}

// NewDriver builds an empty driver. Devices are added with AddDevice,
// typically once at startup from the parsed config/netconf.txt.
func NewDriver() *Driver {
	return &Driver{devices: make(map[string]*Device)}
}

// AddDevice registers a managed device. Re-adding the same hostname
// replaces the prior entry, dropping any open session.
func (dr *Driver) AddDevice(hostname, ip, user, password string, connectTimeout time.Duration) {
	dr.mu.Lock()
	old := dr.devices[hostname]
	dr.devices[hostname] = NewDevice(hostname, ip, user, password, connectTimeout)
	dr.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.dropToDisconnected()
		old.mu.Unlock()
	}
}

// RemoveDevice drops hostname from the managed set, closing any open
// session. A no-op if hostname isn't managed.
func (dr *Driver) RemoveDevice(hostname string) {
	dr.mu.Lock()
	old := dr.devices[hostname]
	delete(dr.devices, hostname)
	dr.mu.Unlock()
	if old != nil {
		old.mu.Lock()
		old.dropToDisconnected()
		old.mu.Unlock()
	}
}

// Device returns the named device, or nil if it isn't managed.
func (dr *Driver) Device(hostname string) *Device {
	dr.mu.RLock()
	defer dr.mu.RUnlock()
	return dr.devices[hostname]
}

// Hostnames returns every managed device's hostname.
func (dr *Driver) Hostnames() []string {
	dr.mu.RLock()
	defer dr.mu.RUnlock()
	out := make([]string, 0, len(dr.devices))
	for h := range dr.devices {
		out = append(out, h)
	}
	return out
}

// ConfigureList reconciles hostname's applied configuration to desired,
// forwarding to its Device. Returns a *util.StateConflictError if
// hostname isn't managed.
func (dr *Driver) ConfigureList(ctx context.Context, hostname string, desired []string) error {
	d := dr.Device(hostname)
	if d == nil {
		return util.NewStateConflictError(hostname, "device not managed")
	}
	return d.ConfigureList(ctx, desired)
}

// Topology is the aggregate snapshot classictopo publishes each
// discovery cycle: host -> ports, and host -> (neighbor -> local
// interface).
type Topology struct {
	Interfaces map[string][]string
	Neighbors  map[string]map[string]string
}

// DiscoverAll runs one Discover step per managed device and folds the
// results into a Topology. Devices not yet in ConnectedLLDPOn
// contribute nothing this cycle — they simply appear once their state
// machine reaches it on a later call.
func (dr *Driver) DiscoverAll(ctx context.Context) Topology {
	dr.mu.RLock()
	devices := make([]*Device, 0, len(dr.devices))
	for _, d := range dr.devices {
		devices = append(devices, d)
	}
	dr.mu.RUnlock()

	topo := Topology{
		Interfaces: make(map[string][]string),
		Neighbors:  make(map[string]map[string]string),
	}
	for _, d := range devices {
		snap, err := d.Discover(ctx)
		if err != nil || snap.Hostname == "" {
			continue
		}
		ports := make([]string, 0, len(snap.Ports))
		for _, p := range snap.Ports {
			ports = append(ports, p.Name)
		}
		topo.Interfaces[snap.Hostname] = ports

		neighborsByIface := make(map[string]string, len(snap.Neighbors))
		for iface, neighbor := range snap.Neighbors {
			neighborsByIface[neighbor] = iface
		}
		topo.Neighbors[snap.Hostname] = neighborsByIface
	}
	return topo
}
