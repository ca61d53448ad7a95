package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hsdnet/controller/internal/apibridge"
	"github.com/hsdnet/controller/internal/bus"
	"github.com/hsdnet/controller/internal/classictopo"
	"github.com/hsdnet/controller/internal/config"
	"github.com/hsdnet/controller/internal/configgen"
	"github.com/hsdnet/controller/internal/model"
	"github.com/hsdnet/controller/internal/netconf"
	"github.com/hsdnet/controller/internal/policy"
	"github.com/hsdnet/controller/internal/sdn"
	"github.com/hsdnet/controller/internal/settings"
	"github.com/hsdnet/controller/internal/splitter"
	"github.com/hsdnet/controller/internal/topology"
	"github.com/hsdnet/controller/internal/util"
)

func newRunCmd() *cobra.Command {
	var settingsPath string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the controller: NETCONF/OpenFlow drivers, topology fusion, policy compilation, and the API bridge",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			if settingsPath == "" {
				settingsPath = settings.DefaultPath
			}
			return runController(ctx, settingsPath)
		},
	}
	cmd.Flags().StringVar(&settingsPath, "settings", "", "path to settings.yaml (default config/settings.yaml)")
	return cmd
}

func runController(ctx context.Context, settingsPath string) error {
	s, err := settings.Load(settingsPath)
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}
	if err := util.SetLogLevel(s.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level %q: %w", s.LogLevel, err)
	}

	b := bus.New(s.BusRequestTimeout)
	defer b.Shutdown()

	netconfCfg, err := config.ParseNetconfConfig(s.NetconfConfigPath)
	if err != nil {
		return fmt.Errorf("loading %s: %w", s.NetconfConfigPath, err)
	}
	netconfDriver := netconf.NewDriver()
	for _, d := range netconfCfg.Devices {
		netconfDriver.AddDevice(d.Hostname, d.IP, netconfCfg.User, netconfCfg.Password, s.NetconfConnectTimeout)
	}

	labels, err := model.LoadDatapathLabelMap(s.SdnLabelPath)
	if err != nil {
		return fmt.Errorf("loading %s: %w", s.SdnLabelPath, err)
	}
	defer labels.Close()

	sdnDriver := sdn.NewDriver(labels, func(t sdn.Topology) {
		b.Publish("SdnTopology", t)
	})
	ln, err := net.Listen("tcp", s.OpenFlowListenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.OpenFlowListenAddr, err)
	}
	go func() {
		if err := sdnDriver.Serve(ctx, ln); err != nil {
			util.WithComponent("hsdnctl").Errorf("openflow listener stopped: %v", err)
		}
	}()

	mgr := topology.NewManager(func(e topology.EventTopology) {
		b.Publish("Topology", e)
	})
	b.Subscribe("SdnTopology", "topology-manager", func(event any) {
		if t, ok := event.(sdn.Topology); ok {
			mgr.UpdateSDN(t)
		}
	})
	b.Subscribe(classictopo.Topic, "topology-manager", func(event any) {
		if t, ok := event.(netconf.Topology); ok {
			mgr.UpdateClassic(t)
		}
	})

	discoverLoop := classictopo.NewLoop(func(ctx context.Context) any {
		return netconfDriver.DiscoverAll(ctx)
	}, b)
	discoverLoop.Start(ctx)
	defer discoverLoop.Stop()

	policyStore := policy.NewStore(s.PolicyConfigPath, b)
	if err := policyStore.Load(); err != nil {
		return fmt.Errorf("loading %s: %w", s.PolicyConfigPath, err)
	}
	b.Subscribe(policy.DeviceRenamedTopic, "policy-store", func(event any) {
		if r, ok := event.(policy.DeviceRenamed); ok {
			if err := policyStore.OnDeviceRenamed(r.Old, r.New); err != nil {
				util.WithComponent("hsdnctl").Errorf("policy device rename failed: %v", err)
			}
		}
	})
	b.Subscribe(apibridge.TopicPolicyAPI, "policy-api", func(event any) {
		applyPolicyAPI(policyStore, event)
	})

	generator, err := configgen.NewGenerator(s.LinkSubnetPool)
	if err != nil {
		return fmt.Errorf("building configuration generator: %w", err)
	}
	bridge := newGeneratorBridge(generator, b)
	b.Subscribe(policy.Topic, "configgen", bridge.handlePolicies)
	b.Subscribe("Topology", "configgen", bridge.handleTopology)

	classicForwarder := splitter.NewClassicForwarder(netconfDriver)
	sdnForwarder := splitter.NewSDNForwarder(sdnDriver)
	b.Subscribe(configgen.TopicClassicConfigurations, "splitter-classic", classicForwarder.Handle)
	b.Subscribe(configgen.TopicSdnConfigurations, "splitter-sdn", sdnForwarder.Handle)

	httpClient := apibridge.NewHTTPClient()
	pusher := apibridge.NewSnapshotPusher(httpClient, s.FacadeBaseURL)
	b.Subscribe("Topology", "apibridge-push", pusher.HandleTopology)
	b.Subscribe(configgen.TopicClassicConfigurations, "apibridge-push", pusher.HandleClassicConfigurations)
	b.Subscribe(configgen.TopicSdnConfigurations, "apibridge-push", pusher.HandleSdnConfigurations)
	b.Subscribe(policy.Topic, "apibridge-push", pusher.HandlePolicies)

	classicDevices := newClassicDeviceAdmin(netconfDriver, s.NetconfConfigPath, netconfCfg.User, netconfCfg.Password, s.NetconfConnectTimeout, b)
	sdnDevices := newSDNDeviceAdmin(labels, b)
	b.Subscribe(apibridge.TopicClassicDeviceAPI, "classic-device-api", classicDevices.Handle)
	b.Subscribe(apibridge.TopicSdnDeviceAPI, "sdn-device-api", sdnDevices.Handle)

	drain := apibridge.NewCommandDrain(httpClient, s.FacadeBaseURL, b, s.QueueDrainInterval)
	drain.Start(ctx)
	defer drain.Stop()

	util.WithComponent("hsdnctl").Infof("controller running, openflow listening on %s, façade %s", s.OpenFlowListenAddr, s.FacadeBaseURL)
	<-ctx.Done()
	util.WithComponent("hsdnctl").Info("shutting down")
	return nil
}

// applyPolicyAPI turns a drained PolicyAPI event into a policy.Command
// and applies it to store. A malformed command or an apply failure is
// logged, matching the rest of the bridge's no-retry error handling.
func applyPolicyAPI(store *policy.Store, event any) {
	api, ok := event.(apibridge.PolicyAPI)
	if !ok {
		return
	}
	cmd, err := policy.ParseCommand(api.Words)
	if err != nil {
		util.WithComponent("hsdnctl").Errorf("policy command rejected: %v", err)
		return
	}
	if err := store.Apply(cmd); err != nil {
		util.WithComponent("hsdnctl").Errorf("policy command failed: %v", err)
	}
}
