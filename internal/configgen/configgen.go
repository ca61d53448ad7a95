// Package configgen compiles the latest policy list and fused topology
// into a per-device canonical configuration list, debounced to at most
// one compile per second, split by device kind for the NETCONF/SDN
// drivers to reconcile against.
package configgen

import (
	"sync"
	"time"

	"github.com/hsdnet/controller/internal/model"
	"github.com/hsdnet/controller/internal/topology"
)

const debouncePeriod = 1 * time.Second

// Bus topics a caller republishes Result.Classic/Result.SDN under.
// configgen itself never touches the bus — it stays testable without
// one — so wiring code owns the Publish calls; these constants just
// keep the topic names in one place.
const (
	TopicClassicConfigurations = "ClassicConfigurations"
	TopicSdnConfigurations     = "SdnConfigurations"
)

// Result is the split output of one compile: canonical configuration
// strings per device, grouped by kind so the caller can dispatch
// ClassicConfigurations and SdnConfigurations separately.
type Result struct {
	Classic map[string][]string
	SDN     map[string][]string
}

// Generator holds the cross-cycle state a compile needs: the
// link-address pool (allocations persist for the process lifetime, so
// the same link always gets the same /30 across recompiles) and the
// debounce clock.
type Generator struct {
	mu      sync.Mutex
	pool    *model.LinkAddressPool
	lastRun time.Time
	hasRun  bool
}

// NewGenerator builds a Generator allocating link subnets from
// supernet (e.g. "192.168.99.0/24").
func NewGenerator(supernet string) (*Generator, error) {
	pool, err := model.NewLinkAddressPool(supernet)
	if err != nil {
		return nil, err
	}
	return &Generator{pool: pool}, nil
}

// Run compiles policies against topo, unless invoked within
// debouncePeriod of the last run that actually executed — the
// timestamp only advances on a run that really compiles, never on a
// debounced no-op, so a burst of faster-than-1/s updates still
// compiles at least once per second instead of potentially never.
// ran is false when this call was debounced away.
func (g *Generator) Run(policies []model.Policy, topo topology.EventTopology) (result Result, ran bool) {
	g.mu.Lock()
	now := time.Now()
	if g.hasRun && now.Sub(g.lastRun) < debouncePeriod {
		g.mu.Unlock()
		return Result{}, false
	}
	g.lastRun = now
	g.hasRun = true
	g.mu.Unlock()

	return g.compile(policies, topo), true
}

func (g *Generator) compile(policies []model.Policy, topo topology.EventTopology) Result {
	devices := make(map[string]model.Device, len(topo.Devices))
	for _, d := range topo.Devices {
		devices[d.Name] = d
	}

	configurations := make(map[string][]string)
	addresses := make(map[string][]string)
	routingEnabled := false

	emit := func(device, line string) {
		configurations[device] = append(configurations[device], line)
	}

	for _, p := range policies {
		switch v := p.(type) {
		case model.AddressPolicy:
			device, ok := devices[v.Device]
			if !ok {
				continue
			}
			port, ok := device.PortAtIndex(v.IfaceIdx)
			if !ok {
				continue
			}
			emit(v.Device, model.NewAddress(port.ID(device.Kind), v.CIDR).Raw)
			addresses[v.Device] = append(addresses[v.Device], v.CIDR)

		case model.BlockPolicy:
			if _, ok := devices[v.DeviceOrZone]; !ok {
				continue
			}
			emit(v.DeviceOrZone, model.NewBlock(v.SrcCIDR, v.DstCIDR, v.Proto, v.SrcPort, v.DstPort).Raw)

		case model.RouteForwardPolicy:
			if _, ok := devices[v.Device]; !ok {
				continue
			}
			emit(v.Device, model.NewRouteForward(v.SrcCIDR, v.DstCIDR, v.Proto, v.SrcPort, v.DstPort, v.ExitPort).Raw)

		case model.DisablePolicy:
			if _, ok := devices[v.Device]; !ok {
				continue
			}
			emit(v.Device, model.NewDisable(v.Port).Raw)

		case model.GlobalPolicy:
			if v.Command == model.GlobalRouting {
				routingEnabled = true
			}

		default:
			// FlowPolicy, RoutePolicy, ZonePolicy: parsed and
			// round-tripped only, not compiled.
		}
	}

	if routingEnabled {
		g.routeGlobally(devices, topo.Links, addresses, emit)
	}

	return splitByKind(devices, configurations)
}

func splitByKind(devices map[string]model.Device, configurations map[string][]string) Result {
	result := Result{Classic: make(map[string][]string), SDN: make(map[string][]string)}
	for device, lines := range configurations {
		d, ok := devices[device]
		if !ok {
			continue
		}
		if d.Kind == model.SDN {
			result.SDN[device] = lines
		} else {
			result.Classic[device] = lines
		}
	}
	return result
}
