package splitter

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeClassicDriver struct {
	mu    sync.Mutex
	calls map[string][]string
	err   map[string]error
}

func (f *fakeClassicDriver) ConfigureList(ctx context.Context, hostname string, desired []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string][]string)
	}
	f.calls[hostname] = desired
	return f.err[hostname]
}

type fakeSDNDriver struct {
	mu    sync.Mutex
	calls map[string][]string
	err   map[string]error
}

func (f *fakeSDNDriver) ConfigureList(label string, desired []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string][]string)
	}
	f.calls[label] = desired
	return f.err[label]
}

func TestClassicForwarderDispatchesEachDevice(t *testing.T) {
	driver := &fakeClassicDriver{}
	f := NewClassicForwarder(driver)

	f.Handle(map[string][]string{
		"r1": {"address eth0 10.0.0.1/24"},
		"r2": {"disable eth1"},
	})

	driver.mu.Lock()
	defer driver.mu.Unlock()
	if len(driver.calls) != 2 {
		t.Fatalf("expected 2 devices configured, got %+v", driver.calls)
	}
	if driver.calls["r1"][0] != "address eth0 10.0.0.1/24" {
		t.Errorf("r1 lines = %+v", driver.calls["r1"])
	}
}

func TestClassicForwarderIgnoresWrongEventType(t *testing.T) {
	driver := &fakeClassicDriver{}
	f := NewClassicForwarder(driver)

	f.Handle("not a map")

	driver.mu.Lock()
	defer driver.mu.Unlock()
	if len(driver.calls) != 0 {
		t.Errorf("expected no calls for a malformed event, got %+v", driver.calls)
	}
}

func TestClassicForwarderContinuesAfterOneDeviceFails(t *testing.T) {
	driver := &fakeClassicDriver{err: map[string]error{"r1": errors.New("device unreachable")}}
	f := NewClassicForwarder(driver)

	f.Handle(map[string][]string{
		"r1": {"disable eth0"},
		"r2": {"disable eth0"},
	})

	driver.mu.Lock()
	defer driver.mu.Unlock()
	if _, ok := driver.calls["r2"]; !ok {
		t.Error("expected r2 to still be configured after r1 failed")
	}
}

func TestSDNForwarderDispatchesEachDatapath(t *testing.T) {
	driver := &fakeSDNDriver{}
	f := NewSDNForwarder(driver)

	f.Handle(map[string][]string{
		"S1": {"address 1 10.0.0.1/24"},
	})

	driver.mu.Lock()
	defer driver.mu.Unlock()
	if len(driver.calls) != 1 || driver.calls["S1"][0] != "address 1 10.0.0.1/24" {
		t.Errorf("calls = %+v", driver.calls)
	}
}

func TestSDNForwarderIgnoresWrongEventType(t *testing.T) {
	driver := &fakeSDNDriver{}
	f := NewSDNForwarder(driver)

	f.Handle(42)

	driver.mu.Lock()
	defer driver.mu.Unlock()
	if len(driver.calls) != 0 {
		t.Errorf("expected no calls for a malformed event, got %+v", driver.calls)
	}
}
