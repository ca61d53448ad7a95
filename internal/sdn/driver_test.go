package sdn

import (
	"net"
	"testing"
	"time"

	"github.com/hsdnet/controller/internal/model"
	"github.com/hsdnet/controller/internal/openflow"
)

// newTestDatapath wires a datapath to one end of an in-memory pipe,
// returning the other end so tests can read out whatever flow-mods
// ConfigureList writes, mirroring the NETCONF driver's fake-transport
// testing pattern without needing a real socket.
func newTestDatapath(label string) (*datapath, net.Conn) {
	client, server := net.Pipe()
	dp := newDatapath(1, label, dialOrAccept(server))
	dp.setPorts([]openflow.Port{
		{PortNo: 2, HWAddr: net.HardwareAddr{0, 0, 0, 0, 0, 2}, Name: "eth2"},
	})
	return dp, client
}

func readOneMessage(t *testing.T, conn net.Conn) openflow.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	msg, err := openflow.ReadMessage(conn)
	if err != nil {
		t.Fatalf("read message: %v", err)
	}
	return msg
}

func TestConfigureListInstallsAddressFlowMods(t *testing.T) {
	dp, client := newTestDatapath("s1")
	defer client.Close()

	d := &Driver{datapaths: map[string]*datapath{"s1": dp}}

	done := make(chan error, 1)
	go func() { done <- d.ConfigureList("s1", []string{"address 2 10.0.0.1/24"}) }()

	// address config emits two flow-mods: arp trap, then route.
	msg1 := readOneMessage(t, client)
	msg2 := readOneMessage(t, client)
	if msg1.Header.Type != openflow.TypeFlowMod || msg2.Header.Type != openflow.TypeFlowMod {
		t.Fatalf("expected two flow-mods, got types %d, %d", msg1.Header.Type, msg2.Header.Type)
	}

	if err := <-done; err != nil {
		t.Fatalf("ConfigureList: %v", err)
	}
	if !dp.applied.Contains("address 2 10.0.0.1/24") {
		t.Error("expected address line to be recorded as applied")
	}
	if _, ok := dp.lookupAddress(2); !ok {
		t.Error("expected port 2 to be bound for the ARP responder")
	}
}

func TestConfigureListRemovesStaleEntries(t *testing.T) {
	dp, client := newTestDatapath("s1")
	defer client.Close()
	dp.applied.Add(model.NewAddress("2", "10.0.0.1/24"))
	dp.bindAddress(2, net.ParseIP("10.0.0.1"))

	d := &Driver{datapaths: map[string]*datapath{"s1": dp}}

	done := make(chan error, 1)
	go func() { done <- d.ConfigureList("s1", nil) }()

	readOneMessage(t, client) // arp trap delete
	readOneMessage(t, client) // route delete

	if err := <-done; err != nil {
		t.Fatalf("ConfigureList: %v", err)
	}
	if dp.applied.Contains("address 2 10.0.0.1/24") {
		t.Error("expected stale address line to be removed from applied")
	}
	if _, ok := dp.lookupAddress(2); ok {
		t.Error("expected port 2 binding to be removed")
	}
}

func TestConfigureListUnknownLabelErrors(t *testing.T) {
	d := &Driver{datapaths: map[string]*datapath{}}
	if err := d.ConfigureList("missing", []string{"address 2 10.0.0.1/24"}); err == nil {
		t.Fatal("expected an error for an unconnected datapath")
	}
}

func TestTopologySnapshotLockedIncludesPortsAndNeighbors(t *testing.T) {
	dp, client := newTestDatapath("s1")
	defer client.Close()
	dp.recordNeighbor("s2", 2, 120)

	d := &Driver{datapaths: map[string]*datapath{"s1": dp}}
	topo := d.topologySnapshotLocked()

	if len(topo.Ports["s1"]) != 1 {
		t.Fatalf("expected 1 port for s1, got %d", len(topo.Ports["s1"]))
	}
	if topo.Neighbors["s1"][portToString(2)] != "s2" {
		t.Errorf("neighbors = %+v, want port 2 -> s2", topo.Neighbors["s1"])
	}
}
