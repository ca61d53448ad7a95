package main

import (
	"time"

	"github.com/hsdnet/controller/internal/apibridge"
	"github.com/hsdnet/controller/internal/config"
	"github.com/hsdnet/controller/internal/model"
	"github.com/hsdnet/controller/internal/netconf"
	"github.com/hsdnet/controller/internal/policy"
	"github.com/hsdnet/controller/internal/util"
)

// classicDeviceAdmin applies "classic-device new|edit|delete" queue
// commands to the NETCONF driver and config/netconf.txt, firing
// policy.DeviceRenamed on rename so the Policy Store can keep
// policy.txt's device field in sync.
type classicDeviceAdmin struct {
	driver         *netconf.Driver
	path           string
	user, password string
	connectTimeout time.Duration
	bus            bridgePublisher
}

func newClassicDeviceAdmin(driver *netconf.Driver, path, user, password string, connectTimeout time.Duration, bus bridgePublisher) *classicDeviceAdmin {
	return &classicDeviceAdmin{driver: driver, path: path, user: user, password: password, connectTimeout: connectTimeout, bus: bus}
}

// Handle is the bus handler for the ClassicDeviceAPI topic.
func (a *classicDeviceAdmin) Handle(event any) {
	api, ok := event.(apibridge.ClassicDeviceAPI)
	if !ok {
		return
	}
	words := api.Words
	if len(words) == 0 {
		return
	}
	var err error
	switch words[0] {
	case "new":
		err = a.add(words[1:])
	case "edit":
		err = a.rename(words[1:])
	case "delete":
		err = a.delete(words[1:])
	default:
		util.WithComponent("hsdnctl").WithField("action", words[0]).Warn("unknown classic-device action")
		return
	}
	if err != nil {
		util.WithComponent("hsdnctl").Errorf("classic-device command failed: %v", err)
	}
}

func (a *classicDeviceAdmin) add(words []string) error {
	if len(words) != 2 {
		return util.NewValidationError("classic-device new", "expected <name> <ip>")
	}
	name, ip := words[0], words[1]
	a.driver.AddDevice(name, ip, a.user, a.password, a.connectTimeout)
	return a.rewriteFile()
}

func (a *classicDeviceAdmin) delete(words []string) error {
	if len(words) != 1 {
		return util.NewValidationError("classic-device delete", "expected <name>")
	}
	a.driver.RemoveDevice(words[0])
	return a.rewriteFile()
}

func (a *classicDeviceAdmin) rename(words []string) error {
	if len(words) != 3 || words[1] != "old" {
		return util.NewValidationError("classic-device edit", "expected <new-name> old <old-name>")
	}
	newName, oldName := words[0], words[2]

	old := a.driver.Device(oldName)
	if old == nil {
		return util.NewStateConflictError(oldName, "classic-device edit: device not managed")
	}
	a.driver.AddDevice(newName, old.IP, a.user, a.password, a.connectTimeout)
	a.driver.RemoveDevice(oldName)

	if err := a.rewriteFile(); err != nil {
		return err
	}
	a.bus.Publish(policy.DeviceRenamedTopic, policy.DeviceRenamed{Old: oldName, New: newName})
	return nil
}

func (a *classicDeviceAdmin) rewriteFile() error {
	cfg := config.NetconfConfig{User: a.user, Password: a.password}
	for _, h := range a.driver.Hostnames() {
		if d := a.driver.Device(h); d != nil {
			cfg.Devices = append(cfg.Devices, config.NetconfDevice{IP: d.IP, Hostname: h})
		}
	}
	return config.WriteNetconfConfig(a.path, cfg)
}

// sdnDeviceAdmin applies "sdn-device edit" queue commands to the
// persistent datapath label map — the only classic-device CRUD verb
// defined for SDN, since datapaths otherwise self-register on
// OpenFlow connect.
type sdnDeviceAdmin struct {
	labels *model.DatapathLabelMap
	bus    bridgePublisher
}

func newSDNDeviceAdmin(labels *model.DatapathLabelMap, bus bridgePublisher) *sdnDeviceAdmin {
	return &sdnDeviceAdmin{labels: labels, bus: bus}
}

// Handle is the bus handler for the SdnDeviceAPI topic.
func (a *sdnDeviceAdmin) Handle(event any) {
	api, ok := event.(apibridge.SdnDeviceAPI)
	if !ok {
		return
	}
	words := api.Words
	if len(words) != 4 || words[0] != "edit" || words[2] != "old" {
		util.WithComponent("hsdnctl").WithField("command", words).Warn("malformed sdn-device command")
		return
	}
	newLabel, oldLabel := words[1], words[3]

	changed, err := a.labels.Rename(oldLabel, newLabel)
	if err != nil {
		util.WithComponent("hsdnctl").Errorf("sdn-device edit failed: %v", err)
		return
	}
	if !changed {
		return
	}
	a.bus.Publish(policy.DeviceRenamedTopic, policy.DeviceRenamed{Old: oldLabel, New: newLabel})
}
