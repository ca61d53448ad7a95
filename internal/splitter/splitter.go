// Package splitter forwards a Configuration Generator's per-device
// configuration slices to the driver that owns each device, kept
// separate from internal/configgen so classic and SDN delivery can
// later diverge (retry, batching) without touching the generator.
package splitter

import (
	"context"

	"github.com/hsdnet/controller/internal/util"
)

// ClassicDriver is the subset of netconf.Driver a ClassicForwarder
// needs.
type ClassicDriver interface {
	ConfigureList(ctx context.Context, hostname string, desired []string) error
}

// SDNDriver is the subset of sdn.Driver an SDNForwarder needs.
type SDNDriver interface {
	ConfigureList(label string, desired []string) error
}

// ClassicForwarder subscribes to ClassicConfigurations and reconciles
// each named device against its NETCONF driver.
type ClassicForwarder struct {
	driver ClassicDriver
}

// NewClassicForwarder builds a forwarder dispatching to driver.
func NewClassicForwarder(driver ClassicDriver) *ClassicForwarder {
	return &ClassicForwarder{driver: driver}
}

// Handle is the bus handler for the ClassicConfigurations topic. event
// is expected to be a map[string][]string as produced by
// configgen.Result.Classic. A per-device failure is logged and does
// not prevent the remaining devices from being reconciled.
func (f *ClassicForwarder) Handle(event any) {
	desired, ok := event.(map[string][]string)
	if !ok {
		return
	}
	for device, lines := range desired {
		if err := f.driver.ConfigureList(context.Background(), device, lines); err != nil {
			util.WithComponent("splitter").WithField("device", device).
				Errorf("classic configure failed: %v", err)
		}
	}
}

// SDNForwarder subscribes to SdnConfigurations and reconciles each
// named datapath against its OpenFlow driver.
type SDNForwarder struct {
	driver SDNDriver
}

// NewSDNForwarder builds a forwarder dispatching to driver.
func NewSDNForwarder(driver SDNDriver) *SDNForwarder {
	return &SDNForwarder{driver: driver}
}

// Handle is the bus handler for the SdnConfigurations topic. event is
// expected to be a map[string][]string as produced by
// configgen.Result.SDN.
func (f *SDNForwarder) Handle(event any) {
	desired, ok := event.(map[string][]string)
	if !ok {
		return
	}
	for label, lines := range desired {
		if err := f.driver.ConfigureList(label, lines); err != nil {
			util.WithComponent("splitter").WithField("device", label).
				Errorf("sdn configure failed: %v", err)
		}
	}
}
