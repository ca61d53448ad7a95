// Package settings loads the controller's ambient operational knobs
// from config/settings.yaml, filling in defaults for anything the file
// omits or for a file that doesn't exist at all.
package settings

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the default location of the settings file, relative to
// the process working directory.
const DefaultPath = "config/settings.yaml"

// Settings holds every duration/address knob the components need.
// Fields the YAML file leaves unset (or sets to an unparsable duration)
// keep their values from Defaults(); an explicit zero duration is kept.
type Settings struct {
	// BusRequestTimeout bounds how long a bus Request blocks waiting
	// for a reply.
	BusRequestTimeout time.Duration `yaml:"bus_request_timeout"`

	// ClassicDiscoveryInterval is loaded but not read by
	// internal/classictopo, which ticks on its own fixed 1s period.
	ClassicDiscoveryInterval time.Duration `yaml:"classic_discovery_interval"`

	// NetconfConnectTimeout bounds a NETCONF SSH dial.
	NetconfConnectTimeout time.Duration `yaml:"netconf_connect_timeout"`

	// LLDPFirstCycle and LLDPSteadyState are loaded but not read by
	// internal/sdn, whose self-retrigger hard_timeout is fixed at 1s
	// until the first retrigger flow expires and 15s after that.
	LLDPFirstCycle  time.Duration `yaml:"lldp_first_cycle"`
	LLDPSteadyState time.Duration `yaml:"lldp_steady_state"`

	// GeneratorDebounce is loaded but not read by internal/configgen,
	// which spaces successive compiles by its own fixed 1s period.
	GeneratorDebounce time.Duration `yaml:"generator_debounce"`

	// FacadeBaseURL is the HTTP façade's base address, e.g.
	// "http://localhost:8000".
	FacadeBaseURL string `yaml:"facade_base_url"`

	// QueueDrainInterval is the API Bridge's /queue poll period.
	QueueDrainInterval time.Duration `yaml:"queue_drain_interval"`

	// OpenFlowListenAddr is the address the OpenFlow driver listens on
	// for datapath connections, e.g. ":6653".
	OpenFlowListenAddr string `yaml:"openflow_listen_addr"`

	// LinkSubnetPool is the reserved /24 carved into /30 link subnets,
	// e.g. "192.168.99.0/24".
	LinkSubnetPool string `yaml:"link_subnet_pool"`

	// NetconfConfigPath, PolicyConfigPath, SdnLabelPath locate the
	// controller's three text config files.
	NetconfConfigPath string `yaml:"netconf_config_path"`
	PolicyConfigPath  string `yaml:"policy_config_path"`
	SdnLabelPath      string `yaml:"sdn_label_path"`

	// LogLevel names a logrus level ("debug", "info", "warn", ...)
	// passed to util.SetLogLevel at startup.
	LogLevel string `yaml:"log_level"`
}

// Defaults returns the settings used for anything the YAML file leaves
// unset.
func Defaults() Settings {
	return Settings{
		BusRequestTimeout:        5 * time.Second,
		ClassicDiscoveryInterval: 1 * time.Second,
		NetconfConnectTimeout:    10 * time.Second,
		LLDPFirstCycle:           1 * time.Second,
		LLDPSteadyState:          15 * time.Second,
		GeneratorDebounce:        1 * time.Second,
		FacadeBaseURL:            "http://localhost:8000",
		QueueDrainInterval:       1 * time.Second,
		OpenFlowListenAddr:       ":6653",
		LinkSubnetPool:           "192.168.99.0/24",
		NetconfConfigPath:        "config/netconf.txt",
		PolicyConfigPath:         "config/policy.txt",
		SdnLabelPath:             "config/sdn.txt",
		LogLevel:                 "info",
	}
}

// Load reads path, overlaying any fields it sets onto Defaults(). A
// missing file is not an error — it is equivalent to an empty file, so
// the controller runs entirely on defaults.
func Load(path string) (Settings, error) {
	s := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, fmt.Errorf("reading settings file %s: %w", path, err)
	}

	overlay := rawSettings{}
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return s, fmt.Errorf("parsing settings file %s: %w", path, err)
	}
	overlay.applyTo(&s)
	return s, nil
}

// rawSettings mirrors Settings with string fields so we can
// tell "unset in YAML" apart from "explicitly zero" before merging
// onto the defaults.
type rawSettings struct {
	BusRequestTimeout        string `yaml:"bus_request_timeout"`
	ClassicDiscoveryInterval string `yaml:"classic_discovery_interval"`
	NetconfConnectTimeout    string `yaml:"netconf_connect_timeout"`
	LLDPFirstCycle           string `yaml:"lldp_first_cycle"`
	LLDPSteadyState          string `yaml:"lldp_steady_state"`
	GeneratorDebounce        string `yaml:"generator_debounce"`
	FacadeBaseURL            string `yaml:"facade_base_url"`
	QueueDrainInterval       string `yaml:"queue_drain_interval"`
	OpenFlowListenAddr       string `yaml:"openflow_listen_addr"`
	LinkSubnetPool           string `yaml:"link_subnet_pool"`
	NetconfConfigPath        string `yaml:"netconf_config_path"`
	PolicyConfigPath         string `yaml:"policy_config_path"`
	SdnLabelPath             string `yaml:"sdn_label_path"`
	LogLevel                 string `yaml:"log_level"`
}

func (r rawSettings) applyTo(s *Settings) {
	setDuration(&s.BusRequestTimeout, r.BusRequestTimeout)
	setDuration(&s.ClassicDiscoveryInterval, r.ClassicDiscoveryInterval)
	setDuration(&s.NetconfConnectTimeout, r.NetconfConnectTimeout)
	setDuration(&s.LLDPFirstCycle, r.LLDPFirstCycle)
	setDuration(&s.LLDPSteadyState, r.LLDPSteadyState)
	setDuration(&s.GeneratorDebounce, r.GeneratorDebounce)
	setDuration(&s.QueueDrainInterval, r.QueueDrainInterval)
	setString(&s.FacadeBaseURL, r.FacadeBaseURL)
	setString(&s.OpenFlowListenAddr, r.OpenFlowListenAddr)
	setString(&s.LinkSubnetPool, r.LinkSubnetPool)
	setString(&s.NetconfConfigPath, r.NetconfConfigPath)
	setString(&s.PolicyConfigPath, r.PolicyConfigPath)
	setString(&s.SdnLabelPath, r.SdnLabelPath)
	setString(&s.LogLevel, r.LogLevel)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v string) {
	if v == "" {
		return
	}
	if d, err := time.ParseDuration(v); err == nil {
		*dst = d
	}
}
