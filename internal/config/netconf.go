// Package config parses the controller's line-oriented text
// configuration files (config/netconf.txt, config/policy.txt).
// "#"-prefixed and blank lines are comments; everything else is
// dispatched by position (netconf.txt) or first token (policy.txt).
package config

import (
	"bufio"
	"fmt"
	"os"
	"regexp"
	"strings"
)

var ipv4Pattern = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)

// IsIPv4 reports whether s is a dotted-quad IPv4 address.
func IsIPv4(s string) bool {
	return ipv4Pattern.MatchString(s)
}

// NetconfDevice is one "<ip> <hostname>" entry from netconf.txt.
type NetconfDevice struct {
	IP       string
	Hostname string
}

// NetconfConfig is the parsed content of config/netconf.txt: shared
// SSH credentials followed by the managed device list.
type NetconfConfig struct {
	User     string
	Password string
	Devices  []NetconfDevice
}

// ParseNetconfConfig reads path and returns the credentials and device
// list. The first two non-comment lines must be "user = ..." and
// "password = ...", in that order; every line after is "<ipv4>
// <hostname>". An unreadable file is treated as fatal; an empty or
// absent device list is not — a controller with no devices to manage
// is itself a valid, if idle, state.
func ParseNetconfConfig(path string) (NetconfConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return NetconfConfig{}, fmt.Errorf("opening netconf config %s: %w", path, err)
	}
	defer f.Close()

	var cfg NetconfConfig
	var sawUser, sawPassword bool

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if !sawUser {
			user, err := parseKeyValue(line, "user")
			if err != nil {
				return NetconfConfig{}, fmt.Errorf("netconf config line %d: %w", lineNo, err)
			}
			cfg.User = user
			sawUser = true
			continue
		}
		if !sawPassword {
			password, err := parseKeyValue(line, "password")
			if err != nil {
				return NetconfConfig{}, fmt.Errorf("netconf config line %d: %w", lineNo, err)
			}
			cfg.Password = password
			sawPassword = true
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return NetconfConfig{}, fmt.Errorf("netconf config line %d: expected \"<ip> <hostname>\"", lineNo)
		}
		if !IsIPv4(fields[0]) {
			return NetconfConfig{}, fmt.Errorf("netconf config line %d: %q is not a valid IPv4 address", lineNo, fields[0])
		}
		cfg.Devices = append(cfg.Devices, NetconfDevice{IP: fields[0], Hostname: fields[1]})
	}
	if err := scanner.Err(); err != nil {
		return NetconfConfig{}, fmt.Errorf("reading netconf config %s: %w", path, err)
	}
	return cfg, nil
}

// WriteNetconfConfig atomically replaces path's contents with cfg's
// credentials followed by its device list, one "<ip> <hostname>" per
// line — the inverse of ParseNetconfConfig, used when a classic-device
// queue command adds, renames, or removes a managed device.
func WriteNetconfConfig(path string, cfg NetconfConfig) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "user = %s\n", cfg.User)
	fmt.Fprintf(&sb, "password = %s\n", cfg.Password)
	for _, d := range cfg.Devices {
		fmt.Fprintf(&sb, "%s %s\n", d.IP, d.Hostname)
	}
	return atomicWriteFile(path, []byte(sb.String()))
}

func parseKeyValue(line, wantKey string) (string, error) {
	parts := strings.SplitN(line, "=", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("expected %q, got %q", wantKey+" = <value>", line)
	}
	key := strings.TrimSpace(parts[0])
	if key != wantKey {
		return "", fmt.Errorf("expected key %q, got %q", wantKey, key)
	}
	return strings.TrimSpace(parts[1]), nil
}
