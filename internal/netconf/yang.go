package netconf

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// This file holds the YANG edit-config bodies and <get> filters the
// driver sends over a *rpc.Session. Every builder returns a complete
// XML fragment ready to hand to Session.EditConfig/Session.Get —
// templated rather than built via encoding/xml.Marshal because the
// OpenConfig/Cisco-IOS-XE-native models mix namespaces per element
// (interfaces, ACL, network-instance, and Cisco-native all appear
// side by side in a single edit-config) in a way a single generic
// struct tree can't represent cleanly; literal templates keep each
// edit's shape visible at the call site instead of behind tag-heavy
// marshal structs.

const (
	nsInterfaces    = "http://openconfig.net/yang/interfaces"
	nsIfIP          = "http://openconfig.net/yang/interfaces/ip"
	nsIfEthernet    = "http://openconfig.net/yang/interfaces/ethernet"
	nsLLDP          = "http://openconfig.net/yang/lldp"
	nsACL           = "http://openconfig.net/yang/acl"
	nsNetworkInst   = "http://openconfig.net/yang/network-instance"
	nsCiscoIOSXE    = "http://cisco.com/ns/yang/Cisco-IOS-XE-native"
	managementIface = "" // resolved at load time: first interface in document order
)

// filterInterfaces is the <get> subtree filter for openconfig-interfaces
// (addresses + admin state), used both at discovery and at load-time
// housekeeping.
func filterInterfaces() string {
	return fmt.Sprintf(`<interfaces xmlns="%s"/>`, nsInterfaces)
}

// filterLLDPNeighbors is the <get> subtree filter for openconfig-lldp,
// kept separate from filterInterfaces per the two-filter discovery
// pattern the original controller uses (one round-trip per model
// rather than one combined, schema-mount-dependent query).
func filterLLDPNeighbors() string {
	return fmt.Sprintf(`<lldp xmlns="%s"><interfaces/></lldp>`, nsLLDP)
}

func buildAddressEdit(iface string, ip string, prefixLen int, delete bool) string {
	op := ""
	if delete {
		op = ` operation="delete"`
	}
	return fmt.Sprintf(`
<interfaces xmlns="%s">
  <interface>
    <name>%s</name>
    <subinterfaces>
      <subinterface>
        <index>0</index>
        <ipv4 xmlns="%s">
          <addresses%s>
            <address>
              <ip>%s</ip>
              <config><ip>%s</ip><prefix-length>%d</prefix-length></config>
            </address>
          </addresses>
        </ipv4>
      </subinterface>
    </subinterfaces>
  </interface>
</interfaces>`, nsInterfaces, xmlEscape(iface), nsIfIP, op, xmlEscape(ip), xmlEscape(ip), prefixLen)
}

func buildRouteEdit(network string, prefixLen int, exitPort, nextHop string, delete bool) string {
	op := ""
	if delete {
		op = ` operation="delete"`
	}
	prefix := fmt.Sprintf("%s/%d", network, prefixLen)
	index := fmt.Sprintf("%s_%s_%s_%d", exitPort, nextHop, network, prefixLen)
	if delete {
		return fmt.Sprintf(`
<network-instances xmlns="%s">
  <network-instance>
    <name>default</name>
    <protocols>
      <protocol>
        <identifier>STATIC</identifier>
        <name>STATIC</name>
        <static-routes>
          <static%s>
            <prefix>%s</prefix>
          </static>
        </static-routes>
      </protocol>
    </protocols>
  </network-instance>
</network-instances>`, nsNetworkInst, op, xmlEscape(prefix))
	}
	return fmt.Sprintf(`
<network-instances xmlns="%s">
  <network-instance>
    <name>default</name>
    <protocols>
      <protocol>
        <identifier>STATIC</identifier>
        <name>STATIC</name>
        <static-routes>
          <static>
            <prefix>%s</prefix>
            <next-hops>
              <next-hop>
                <index>%s</index>
                <config>
                  <index>%s</index>
                  <next-hop>%s</next-hop>
                  <metric>1</metric>
                </config>
                <interface-ref>
                  <config><interface>%s</interface></config>
                </interface-ref>
              </next-hop>
            </next-hops>
          </static>
        </static-routes>
      </protocol>
    </protocols>
  </network-instance>
</network-instances>`, nsNetworkInst, xmlEscape(prefix), xmlEscape(index), xmlEscape(index), xmlEscape(nextHop), xmlEscape(exitPort))
}

// aclMatch resolves the wildcard translation rules from the block/
// route-f grammar: "*" address -> 0.0.0.0/0, "*" port -> ANY, "*"
// proto -> IP.
type aclMatch struct {
	SrcCIDR, DstCIDR, Proto, SrcPort, DstPort string
}

func resolveACLMatch(src, dst, proto, sport, dport string) aclMatch {
	m := aclMatch{SrcCIDR: src, DstCIDR: dst, Proto: proto, SrcPort: sport, DstPort: dport}
	if m.SrcCIDR == "*" {
		m.SrcCIDR = "0.0.0.0/0"
	}
	if m.DstCIDR == "*" {
		m.DstCIDR = "0.0.0.0/0"
	}
	if m.SrcPort == "*" {
		m.SrcPort = "ANY"
	}
	if m.DstPort == "*" {
		m.DstPort = "ANY"
	}
	if m.Proto == "*" {
		m.Proto = "IP"
	}
	return m
}

// hasTransport reports whether the protocol calls for a transport
// (port) block: TCP (6) or UDP (17) only.
func hasTransport(proto string) bool {
	return proto == "6" || proto == "17"
}

func buildBlockEdit(aclName string, seq int, m aclMatch, delete bool) string {
	if delete {
		return fmt.Sprintf(`
<acl xmlns="%s">
  <acl-sets>
    <acl-set>
      <name>%s</name>
      <type>ACL_IPV4</type>
      <acl-entries>
        <acl-entry operation="delete">
          <sequence-id>%d</sequence-id>
        </acl-entry>
      </acl-entries>
    </acl-set>
  </acl-sets>
</acl>`, nsACL, xmlEscape(aclName), seq)
	}

	var transport string
	if hasTransport(m.Proto) {
		transport = fmt.Sprintf(`
          <transport>
            <config><source-port>%s</source-port><destination-port>%s</destination-port></config>
          </transport>`, xmlEscape(m.SrcPort), xmlEscape(m.DstPort))
	}

	return fmt.Sprintf(`
<acl xmlns="%s">
  <acl-sets>
    <acl-set>
      <name>%s</name>
      <type>ACL_IPV4</type>
      <acl-entries>
        <acl-entry>
          <sequence-id>%d</sequence-id>
          <ipv4>
            <config>
              <source-address>%s</source-address>
              <destination-address>%s</destination-address>
              <protocol>%s</protocol>
            </config>%s
          </ipv4>
          <actions>
            <config><forwarding-action>DROP</forwarding-action></config>
          </actions>
        </acl-entry>
      </acl-entries>
    </acl-set>
  </acl-sets>
</acl>`, nsACL, xmlEscape(aclName), seq, xmlEscape(m.SrcCIDR), xmlEscape(m.DstCIDR), xmlEscape(m.Proto), transport)
}

func buildRouteForwardPermitACL(aclName string, seq int, m aclMatch, delete bool) string {
	if delete {
		return buildBlockEdit(aclName, seq, m, true)
	}
	var transport string
	if hasTransport(m.Proto) {
		transport = fmt.Sprintf(`
          <transport>
            <config><source-port>%s</source-port><destination-port>%s</destination-port></config>
          </transport>`, xmlEscape(m.SrcPort), xmlEscape(m.DstPort))
	}
	return fmt.Sprintf(`
<acl xmlns="%s">
  <acl-sets>
    <acl-set>
      <name>%s</name>
      <type>ACL_IPV4</type>
      <acl-entries>
        <acl-entry>
          <sequence-id>%d</sequence-id>
          <ipv4>
            <config>
              <source-address>%s</source-address>
              <destination-address>%s</destination-address>
              <protocol>%s</protocol>
            </config>%s
          </ipv4>
          <actions>
            <config><forwarding-action>ACCEPT</forwarding-action></config>
          </actions>
        </acl-entry>
      </acl-entries>
    </acl-set>
  </acl-sets>
</acl>`, nsACL, xmlEscape(aclName), seq, xmlEscape(m.SrcCIDR), xmlEscape(m.DstCIDR), xmlEscape(m.Proto), transport)
}

func buildRouteMapEdit(mapName string, seq int, nextHop string, delete bool) string {
	if delete {
		return fmt.Sprintf(`
<native xmlns="%s">
  <route-map operation="delete">
    <name>%s</name>
    <route-map-seq-rule>
      <ordering-seq>%d</ordering-seq>
    </route-map-seq-rule>
  </route-map>
</native>`, nsCiscoIOSXE, xmlEscape(mapName), seq)
	}
	return fmt.Sprintf(`
<native xmlns="%s">
  <route-map>
    <name>%s</name>
    <route-map-seq-rule>
      <ordering-seq>%d</ordering-seq>
      <operation>permit</operation>
      <set>
        <ip>
          <next-hop><next-hop-address>%s</next-hop-address></next-hop>
        </ip>
      </set>
    </route-map-seq-rule>
  </route-map>
</native>`, nsCiscoIOSXE, xmlEscape(mapName), seq, xmlEscape(nextHop))
}

func buildDisableEdit(iface string, enabled bool) string {
	return fmt.Sprintf(`
<interfaces xmlns="%s">
  <interface>
    <name>%s</name>
    <config><enabled>%t</enabled></config>
  </interface>
</interfaces>`, nsInterfaces, xmlEscape(iface), enabled)
}

// buildEgressACLSetEdit binds (bind=true) or unbinds (bind=false) aclName
// as iface's egress ACL-set via openconfig-acl's
// interfaces/interface/egress-acl-sets/egress-acl-set list: every
// interface discovered later must have the ACL-set applied as egress
// if it holds any entries, and un-applied once it's empty again.
func buildEgressACLSetEdit(iface, aclName string, bind bool) string {
	if !bind {
		return fmt.Sprintf(`
<acl xmlns="%s">
  <interfaces>
    <interface>
      <interface-id>%s</interface-id>
      <egress-acl-sets>
        <egress-acl-set operation="delete">
          <set-name>%s</set-name>
          <type>ACL_IPV4</type>
        </egress-acl-set>
      </egress-acl-sets>
    </interface>
  </interfaces>
</acl>`, nsACL, xmlEscape(iface), xmlEscape(aclName))
	}
	return fmt.Sprintf(`
<acl xmlns="%s">
  <interfaces>
    <interface>
      <interface-id>%s</interface-id>
      <egress-acl-sets>
        <egress-acl-set>
          <set-name>%s</set-name>
          <type>ACL_IPV4</type>
          <config><set-name>%s</set-name><type>ACL_IPV4</type></config>
        </egress-acl-set>
      </egress-acl-sets>
    </interface>
  </interfaces>
</acl>`, nsACL, xmlEscape(iface), xmlEscape(aclName), xmlEscape(aclName))
}

func buildDeleteAllStaticRoutes() string {
	return fmt.Sprintf(`
<network-instances xmlns="%s">
  <network-instance>
    <name>default</name>
    <protocols>
      <protocol operation="delete">
        <identifier>STATIC</identifier>
        <name>STATIC</name>
      </protocol>
    </protocols>
  </network-instance>
</network-instances>`, nsNetworkInst)
}

func buildDeleteAllACLSets() string {
	return fmt.Sprintf(`<acl xmlns="%s"><acl-sets operation="delete"/></acl>`, nsACL)
}

func buildDeleteAllRouteMaps() string {
	return fmt.Sprintf(`<native xmlns="%s"><route-map operation="delete"/></native>`, nsCiscoIOSXE)
}

func xmlEscape(s string) string {
	var sb strings.Builder
	if err := xml.EscapeText(&sb, []byte(s)); err != nil {
		return s
	}
	return sb.String()
}

// --- parsing of <get> replies ---

type interfacesReply struct {
	XMLName    xml.Name          `xml:"interfaces"`
	Interfaces []interfaceReply `xml:"interface"`
}

type interfaceReply struct {
	Name          string `xml:"name"`
	Config        struct {
		Enabled bool `xml:"enabled"`
	} `xml:"config"`
	Subinterfaces struct {
		Subinterface []struct {
			Index int `xml:"index"`
			IPv4  struct {
				Addresses struct {
					Address []struct {
						IP     string `xml:"ip"`
						Config struct {
							PrefixLength int `xml:"prefix-length"`
						} `xml:"config"`
					} `xml:"address"`
				} `xml:"addresses"`
			} `xml:"ipv4"`
		} `xml:"subinterface"`
	} `xml:"subinterfaces"`
}

func parseInterfaces(raw string) (interfacesReply, error) {
	var r interfacesReply
	if strings.TrimSpace(raw) == "" {
		return r, nil
	}
	err := xml.Unmarshal([]byte(raw), &r)
	return r, err
}

type lldpReply struct {
	XMLName    xml.Name `xml:"lldp"`
	Interfaces struct {
		Interface []struct {
			Name      string `xml:"name"`
			Neighbors struct {
				Neighbor []struct {
					SystemName string `xml:"system-name"`
				} `xml:"neighbor"`
			} `xml:"neighbors"`
		} `xml:"interface"`
	} `xml:"interfaces"`
}

func parseLLDPNeighbors(raw string) (lldpReply, error) {
	var r lldpReply
	if strings.TrimSpace(raw) == "" {
		return r, nil
	}
	err := xml.Unmarshal([]byte(raw), &r)
	return r, err
}

type lldpGlobalReply struct {
	XMLName xml.Name `xml:"lldp"`
	Config  struct {
		Enabled bool `xml:"enabled"`
	} `xml:"config"`
}

func parseLLDPGlobal(raw string) (lldpGlobalReply, error) {
	var r lldpGlobalReply
	if strings.TrimSpace(raw) == "" {
		return r, nil
	}
	err := xml.Unmarshal([]byte(raw), &r)
	return r, err
}

func filterLLDPGlobal() string {
	return fmt.Sprintf(`<lldp xmlns="%s"><config/></lldp>`, nsLLDP)
}

func buildEnableLLDPEdit() string {
	return fmt.Sprintf(`<lldp xmlns="%s"><config><enabled>true</enabled></config></lldp>`, nsLLDP)
}
