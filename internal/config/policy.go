package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/hsdnet/controller/internal/model"
)

// ParsePolicyLine dispatches on the first token of line and builds the
// matching model.Policy, validating arguments (IPv4 forms, integer
// coercion, "/prefix" splits) the way each variant's grammar requires.
func ParsePolicyLine(line string) (model.Policy, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil, fmt.Errorf("empty policy line")
	}

	switch fields[0] {
	case "address":
		return parseAddress(fields)
	case "block":
		return parseBlock(fields)
	case "route-f":
		return parseRouteForward(fields)
	case "disable":
		return parseDisable(fields)
	case "flow":
		return parseFlow(fields)
	case "route":
		return parseRoute(fields)
	case "zone":
		return parseZone(fields)
	case "global":
		return parseGlobal(fields)
	default:
		return nil, fmt.Errorf("unknown policy type %q", fields[0])
	}
}

func parseAddress(f []string) (model.Policy, error) {
	if len(f) != 4 {
		return nil, fmt.Errorf("address: want \"address <device> <iface_idx> <ip>/<prefix>\", got %q", strings.Join(f, " "))
	}
	idx, err := strconv.ParseUint(f[2], 10, 0)
	if err != nil {
		return nil, fmt.Errorf("address: invalid interface index %q: %w", f[2], err)
	}
	if err := validateCIDR(f[3]); err != nil {
		return nil, fmt.Errorf("address: %w", err)
	}
	return model.AddressPolicy{Device: f[1], IfaceIdx: uint(idx), CIDR: f[3]}, nil
}

func parseBlock(f []string) (model.Policy, error) {
	if len(f) != 7 {
		return nil, fmt.Errorf("block: want \"block <device_or_zone> <src> <dst> <proto> <sport> <dport>\", got %q", strings.Join(f, " "))
	}
	if err := validateWildcardCIDR(f[2]); err != nil {
		return nil, fmt.Errorf("block: src: %w", err)
	}
	if err := validateWildcardCIDR(f[3]); err != nil {
		return nil, fmt.Errorf("block: dst: %w", err)
	}
	return model.BlockPolicy{DeviceOrZone: f[1], SrcCIDR: f[2], DstCIDR: f[3], Proto: f[4], SrcPort: f[5], DstPort: f[6]}, nil
}

func parseRouteForward(f []string) (model.Policy, error) {
	if len(f) != 8 {
		return nil, fmt.Errorf("route-f: want \"route-f <device> <src> <dst> <proto> <sport> <dport> <exit_port>\", got %q", strings.Join(f, " "))
	}
	if err := validateWildcardCIDR(f[2]); err != nil {
		return nil, fmt.Errorf("route-f: src: %w", err)
	}
	if err := validateWildcardCIDR(f[3]); err != nil {
		return nil, fmt.Errorf("route-f: dst: %w", err)
	}
	return model.RouteForwardPolicy{
		Device: f[1], SrcCIDR: f[2], DstCIDR: f[3], Proto: f[4], SrcPort: f[5], DstPort: f[6], ExitPort: f[7],
	}, nil
}

func parseDisable(f []string) (model.Policy, error) {
	if len(f) != 3 {
		return nil, fmt.Errorf("disable: want \"disable <device> <port>\", got %q", strings.Join(f, " "))
	}
	return model.DisablePolicy{Device: f[1], Port: f[2]}, nil
}

func parseFlow(f []string) (model.Policy, error) {
	if len(f) != 7 {
		return nil, fmt.Errorf("flow: want \"flow <name> <src_ip> <dst_ip> <protocol> <src_port> <dst_port>\", got %q", strings.Join(f, " "))
	}
	return model.FlowPolicy{Name: f[1], SrcIP: f[2], DstIP: f[3], Protocol: f[4], SrcPort: f[5], DstPort: f[6]}, nil
}

func parseRoute(f []string) (model.Policy, error) {
	if len(f) != 4 {
		return nil, fmt.Errorf("route: want \"route <device> <flow> <interface>\", got %q", strings.Join(f, " "))
	}
	return model.RoutePolicy{Device: f[1], FlowName: f[2], Interface: f[3]}, nil
}

func parseZone(f []string) (model.Policy, error) {
	if len(f) != 3 {
		return nil, fmt.Errorf("zone: want \"zone <device> <zone>\", got %q", strings.Join(f, " "))
	}
	return model.ZonePolicy{Device: f[1], Zone: f[2]}, nil
}

func parseGlobal(f []string) (model.Policy, error) {
	if len(f) != 2 {
		return nil, fmt.Errorf("global: want \"global <command>\", got %q", strings.Join(f, " "))
	}
	if f[1] != "routing" {
		return nil, fmt.Errorf("global: unknown command %q", f[1])
	}
	return model.GlobalPolicy{Command: model.GlobalRouting}, nil
}

func validateCIDR(cidr string) error {
	parts := strings.SplitN(cidr, "/", 2)
	if len(parts) != 2 {
		return fmt.Errorf("%q is not in <ip>/<prefix> form", cidr)
	}
	if !IsIPv4(parts[0]) {
		return fmt.Errorf("%q is not a valid IPv4 address", parts[0])
	}
	prefix, err := strconv.Atoi(parts[1])
	if err != nil || prefix < 0 || prefix > 32 {
		return fmt.Errorf("%q is not a valid prefix length", parts[1])
	}
	return nil
}

// validateWildcardCIDR accepts "*" as a wildcard in addition to a
// normal CIDR, per the Block/RouteForward grammar.
func validateWildcardCIDR(cidr string) error {
	if cidr == "*" {
		return nil
	}
	return validateCIDR(cidr)
}
