package model

import "testing"

func TestLinkAddressPoolStableAllocation(t *testing.T) {
	pool, err := NewLinkAddressPool("192.168.99.0/24")
	if err != nil {
		t.Fatalf("NewLinkAddressPool: %v", err)
	}

	link := Link{A: Endpoint{Device: "S0", Port: "1"}, Z: Endpoint{Device: "S1", Port: "1"}}

	a1, b1, err := pool.Allocate(link)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if a1 == "" || b1 == "" {
		t.Fatal("Allocate returned empty addresses")
	}

	// Re-allocating the same link must return the identical pair —
	// the "reapplying the allocator for the same link" invariant.
	a2, b2, err := pool.Allocate(link)
	if err != nil {
		t.Fatalf("Allocate (second call): %v", err)
	}
	if a1 != a2 || b1 != b2 {
		t.Errorf("Allocate() not stable: got (%s, %s) then (%s, %s)", a1, b1, a2, b2)
	}

	// Link key is order-independent.
	reversed := Link{A: link.Z, Z: link.A}
	a3, b3, err := pool.Allocate(reversed)
	if err != nil {
		t.Fatalf("Allocate (reversed): %v", err)
	}
	if a3 != a1 || b3 != b1 {
		t.Errorf("Allocate(reversed) = (%s, %s), want (%s, %s)", a3, b3, a1, b1)
	}
}

func TestLinkAddressPoolDistinctLinksGetDistinctBlocks(t *testing.T) {
	pool, err := NewLinkAddressPool("192.168.99.0/24")
	if err != nil {
		t.Fatalf("NewLinkAddressPool: %v", err)
	}

	link1 := Link{A: Endpoint{Device: "S0", Port: "1"}, Z: Endpoint{Device: "S1", Port: "1"}}
	link2 := Link{A: Endpoint{Device: "S1", Port: "2"}, Z: Endpoint{Device: "S2", Port: "1"}}

	a1, _, _ := pool.Allocate(link1)
	a2, _, _ := pool.Allocate(link2)
	if a1 == a2 {
		t.Errorf("distinct links got the same block: %s", a1)
	}
}

func TestNewLinkAddressPoolRejectsNonSlash24(t *testing.T) {
	if _, err := NewLinkAddressPool("192.168.99.0/25"); err == nil {
		t.Error("expected error for non-/24 supernet")
	}
}
