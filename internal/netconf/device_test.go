package netconf

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/hsdnet/controller/internal/model"
)

// fakeSession is an in-memory netconfSession used to drive the device
// state machine and configuration dispatch without a real NETCONF peer.
type fakeSession struct {
	getReplies map[string]string // filter substring -> raw <data> reply
	edits      []string
	commits    int
	closed     bool
	failGet    bool
	failEdit   bool
}

func (f *fakeSession) Get(ctx context.Context, filterXML string) (string, error) {
	if f.failGet {
		return "", errFake
	}
	if reply, ok := f.getReplies[filterXML]; ok {
		return reply, nil
	}
	return "", nil
}

func (f *fakeSession) EditConfig(ctx context.Context, configXML string) error {
	if f.failEdit {
		return errFake
	}
	f.edits = append(f.edits, configXML)
	return nil
}

func (f *fakeSession) Commit(ctx context.Context) error {
	f.commits++
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

type fakeErr string

func (e fakeErr) Error() string { return string(e) }

const errFake = fakeErr("fake transport failure")

func newTestDevice(t *testing.T, fake *fakeSession) *Device {
	t.Helper()
	orig := dialFunc
	dialFunc = func(ctx context.Context, addr, user, password string, timeout time.Duration) (netconfSession, error) {
		return fake, nil
	}
	t.Cleanup(func() { dialFunc = orig })
	return NewDevice("R1", "10.0.0.1", "admin", "secret", time.Second)
}

func TestDiscoverWalksStateMachineToLLDPOn(t *testing.T) {
	fake := &fakeSession{getReplies: map[string]string{
		filterLLDPGlobal():    `<lldp xmlns="http://openconfig.net/yang/lldp"><config><enabled>true</enabled></config></lldp>`,
		filterInterfaces():    `<interfaces xmlns="http://openconfig.net/yang/interfaces"><interface><name>Mgmt0</name></interface><interface><name>Gi2</name></interface></interfaces>`,
		filterLLDPNeighbors(): `<lldp xmlns="http://openconfig.net/yang/lldp"><interfaces/></lldp>`,
	}}
	d := newTestDevice(t, fake)
	ctx := context.Background()

	if _, err := d.Discover(ctx); err != nil {
		t.Fatalf("connect step: %v", err)
	}
	if d.State() != ConnectedLLDPOff {
		t.Fatalf("state after connect = %v, want ConnectedLLDPOff", d.State())
	}

	if _, err := d.Discover(ctx); err != nil {
		t.Fatalf("lldp-check step: %v", err)
	}
	if d.State() != ConnectedLLDPOn {
		t.Fatalf("state after lldp check = %v, want ConnectedLLDPOn", d.State())
	}

	snap, err := d.Discover(ctx)
	if err != nil {
		t.Fatalf("discover step: %v", err)
	}
	if snap.Hostname != "R1" || len(snap.Ports) != 2 {
		t.Errorf("snapshot = %+v", snap)
	}
}

func TestDiscoverEnablesLLDPWhenGloballyOff(t *testing.T) {
	fake := &fakeSession{getReplies: map[string]string{
		filterLLDPGlobal(): `<lldp xmlns="http://openconfig.net/yang/lldp"><config><enabled>false</enabled></config></lldp>`,
		filterInterfaces(): `<interfaces xmlns="http://openconfig.net/yang/interfaces"/>`,
	}}
	d := newTestDevice(t, fake)
	ctx := context.Background()

	if _, err := d.Discover(ctx); err != nil {
		t.Fatalf("connect step: %v", err)
	}
	if _, err := d.Discover(ctx); err != nil {
		t.Fatalf("lldp-check step: %v", err)
	}
	if d.State() != ConnectedLLDPOn {
		t.Fatalf("state = %v, want ConnectedLLDPOn", d.State())
	}

	foundEnable := false
	for _, e := range fake.edits {
		if strings.Contains(e, "<enabled>true</enabled>") {
			foundEnable = true
		}
	}
	if !foundEnable {
		t.Errorf("expected an lldp-enable edit, got edits: %v", fake.edits)
	}
}

func TestDiscoverTransportFailureDropsToDisconnected(t *testing.T) {
	fake := &fakeSession{getReplies: map[string]string{
		filterInterfaces(): `<interfaces xmlns="http://openconfig.net/yang/interfaces"/>`,
	}}
	d := newTestDevice(t, fake)
	ctx := context.Background()

	if _, err := d.Discover(ctx); err != nil {
		t.Fatalf("connect step: %v", err)
	}
	if d.State() != ConnectedLLDPOff {
		t.Fatalf("state after connect = %v, want ConnectedLLDPOff", d.State())
	}

	fake.failGet = true
	if _, err := d.Discover(ctx); err == nil {
		t.Fatal("expected a transport error from the failing lldp-check get")
	}
	if d.State() != Disconnected {
		t.Errorf("state = %v, want Disconnected after transport failure", d.State())
	}
	if !fake.closed {
		t.Error("expected the session to be closed on transport failure")
	}
}

func TestConfigureListDeconfiguresBeforeConfiguring(t *testing.T) {
	fake := &fakeSession{getReplies: map[string]string{}}
	d := newTestDevice(t, fake)
	d.session = fake
	d.state = ConnectedLLDPOn
	d.applied.Add(mustParse(t, "address Gi2 10.0.0.1/24"))
	d.applied.Add(mustParse(t, "disable Gi3"))

	err := d.ConfigureList(context.Background(), []string{"address Gi2 10.0.0.1/24", "address Gi4 10.0.1.1/24"})
	if err != nil {
		t.Fatalf("ConfigureList: %v", err)
	}
	if !d.applied.Equal([]string{"address Gi2 10.0.0.1/24", "address Gi4 10.0.1.1/24"}) {
		t.Errorf("applied list after ConfigureList = %+v, want exactly the desired set", d.applied.Items())
	}
	if len(fake.edits) != 2 || !strings.Contains(fake.edits[0], "Gi3") || !strings.Contains(fake.edits[1], "Gi4") {
		t.Errorf("expected the Gi3 deconfigure edit before the Gi4 configure edit, edits: %v", fake.edits)
	}
}

func TestConfigureBlockAssignsSequentialSequenceIDs(t *testing.T) {
	fake := &fakeSession{getReplies: map[string]string{}}
	d := newTestDevice(t, fake)
	d.session = fake
	d.state = ConnectedLLDPOn

	if err := d.Configure(context.Background(), "block 10.0.0.0/24 10.0.1.0/24 6 * 443", false); err != nil {
		t.Fatalf("first block: %v", err)
	}
	if err := d.Configure(context.Background(), "block 10.0.2.0/24 10.0.3.0/24 17 * 53", false); err != nil {
		t.Fatalf("second block: %v", err)
	}
	if !strings.Contains(fake.edits[0], "<sequence-id>10</sequence-id>") {
		t.Errorf("first block sequence-id: %s", fake.edits[0])
	}
	if !strings.Contains(fake.edits[1], "<sequence-id>20</sequence-id>") {
		t.Errorf("second block sequence-id: %s", fake.edits[1])
	}
}

func TestConfigureBlockDeconfigureReusesRememberedSequenceID(t *testing.T) {
	fake := &fakeSession{getReplies: map[string]string{}}
	d := newTestDevice(t, fake)
	d.session = fake
	d.state = ConnectedLLDPOn

	line := "block 10.0.0.0/24 10.0.1.0/24 6 * 443"
	if err := d.Configure(context.Background(), line, false); err != nil {
		t.Fatalf("conf: %v", err)
	}
	if err := d.Configure(context.Background(), line, true); err != nil {
		t.Fatalf("deconf: %v", err)
	}
	if !strings.Contains(fake.edits[len(fake.edits)-1], "<sequence-id>10</sequence-id>") {
		t.Errorf("deconf should reuse sequence-id 10: %s", fake.edits[len(fake.edits)-1])
	}
}

func TestConfigureRouteForwardRequiresThirtyExitPort(t *testing.T) {
	fake := &fakeSession{getReplies: map[string]string{}}
	d := newTestDevice(t, fake)
	d.session = fake
	d.state = ConnectedLLDPOn
	d.applied.Add(mustParse(t, "address Gi2 10.0.0.5/24"))

	err := d.Configure(context.Background(), "route-f 10.0.1.0/24 10.0.2.0/24 6 * 80 Gi2", false)
	if err == nil {
		t.Fatal("expected an error for a non-/30 exit port")
	}
}

func TestConfigureRouteForwardDerivesNeighborFromThirty(t *testing.T) {
	fake := &fakeSession{getReplies: map[string]string{}}
	d := newTestDevice(t, fake)
	d.session = fake
	d.state = ConnectedLLDPOn
	d.applied.Add(mustParse(t, "address Gi2 192.168.99.1/30"))

	err := d.Configure(context.Background(), "route-f 10.0.1.0/24 10.0.2.0/24 6 * 80 Gi2", false)
	if err != nil {
		t.Fatalf("Configure route-f: %v", err)
	}
	found := false
	for _, e := range fake.edits {
		if strings.Contains(e, "192.168.99.2") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected the route-map to reference the /30 peer address, edits: %v", fake.edits)
	}
}

func TestConfigureUnknownKindIsValidationError(t *testing.T) {
	fake := &fakeSession{getReplies: map[string]string{}}
	d := newTestDevice(t, fake)
	d.session = fake
	d.state = ConnectedLLDPOn

	if err := d.Configure(context.Background(), "frobnicate a b", false); err == nil {
		t.Fatal("expected an error for an unknown configuration kind")
	}
}

func TestDiscoverBindsEgressACLSetWhenBlockACLHasEntries(t *testing.T) {
	fake := &fakeSession{getReplies: map[string]string{
		filterInterfaces():    `<interfaces xmlns="http://openconfig.net/yang/interfaces"><interface><name>Gi2</name></interface></interfaces>`,
		filterLLDPNeighbors(): `<lldp xmlns="http://openconfig.net/yang/lldp"><interfaces/></lldp>`,
	}}
	d := newTestDevice(t, fake)
	d.session = fake
	d.state = ConnectedLLDPOn

	if err := d.Configure(context.Background(), "block 10.0.0.0/24 10.0.1.0/24 6 * 443", false); err != nil {
		t.Fatalf("Configure block: %v", err)
	}
	fake.edits = nil

	if _, err := d.Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	found := false
	for _, e := range fake.edits {
		if strings.Contains(e, "Gi2") && strings.Contains(e, "<config><set-name>ACL_R1</set-name>") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an egress-acl-set bind for Gi2/ACL_R1, edits: %v", fake.edits)
	}
}

func TestDiscoverUnbindsEgressACLSetOnceBlockACLIsEmpty(t *testing.T) {
	fake := &fakeSession{getReplies: map[string]string{
		filterInterfaces():    `<interfaces xmlns="http://openconfig.net/yang/interfaces"><interface><name>Gi2</name></interface></interfaces>`,
		filterLLDPNeighbors(): `<lldp xmlns="http://openconfig.net/yang/lldp"><interfaces/></lldp>`,
	}}
	d := newTestDevice(t, fake)
	d.session = fake
	d.state = ConnectedLLDPOn

	line := "block 10.0.0.0/24 10.0.1.0/24 6 * 443"
	if err := d.Configure(context.Background(), line, false); err != nil {
		t.Fatalf("conf: %v", err)
	}
	if err := d.Configure(context.Background(), line, true); err != nil {
		t.Fatalf("deconf: %v", err)
	}
	fake.edits = nil

	if _, err := d.Discover(context.Background()); err != nil {
		t.Fatalf("Discover: %v", err)
	}

	found := false
	for _, e := range fake.edits {
		if strings.Contains(e, "Gi2") && strings.Contains(e, "ACL_R1") && strings.Contains(e, `operation="delete"`) {
			found = true
		}
	}
	if !found {
		t.Errorf("expected an egress-acl-set unbind for Gi2/ACL_R1 once the ACL is empty, edits: %v", fake.edits)
	}
}

func mustParse(t *testing.T, line string) model.AppliedConfig {
	t.Helper()
	ac, err := model.ParseAppliedConfig(line)
	if err != nil {
		t.Fatalf("ParseAppliedConfig(%q): %v", line, err)
	}
	return ac
}
