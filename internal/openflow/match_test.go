package openflow

import "testing"

func u16(v uint16) *uint16 { return &v }
func u32(v uint32) *uint32 { return &v }

func TestMatchEncodeDecodeRoundTrip(t *testing.T) {
	m := Match{
		InPort:  u32(3),
		EthType: u16(0x0800),
		IPv4Dst: u32(0xC0A80101),
	}
	encoded := m.Encode()
	if len(encoded)%8 != 0 {
		t.Fatalf("encoded match not 8-byte aligned: %d bytes", len(encoded))
	}

	decoded, consumed, err := DecodeMatch(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if consumed != len(encoded) {
		t.Errorf("consumed = %d, want %d", consumed, len(encoded))
	}
	if decoded.InPort == nil || *decoded.InPort != 3 {
		t.Errorf("in_port = %v, want 3", decoded.InPort)
	}
	if decoded.EthType == nil || *decoded.EthType != 0x0800 {
		t.Errorf("eth_type = %v, want 0x0800", decoded.EthType)
	}
	if decoded.IPv4Dst == nil || *decoded.IPv4Dst != 0xC0A80101 {
		t.Errorf("ipv4_dst = %v, want 0xC0A80101", decoded.IPv4Dst)
	}
}

func TestMatchEncodeDecodeMaskedIPv4(t *testing.T) {
	m := Match{
		IPv4Dst:  u32(0xC0A80000),
		IPv4Mask: u32(0xFFFF0000),
	}
	decoded, _, err := DecodeMatch(m.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.IPv4Mask == nil || *decoded.IPv4Mask != 0xFFFF0000 {
		t.Errorf("ipv4_mask = %v, want 0xFFFF0000", decoded.IPv4Mask)
	}
}

func TestMatchEncodeEmpty(t *testing.T) {
	m := Match{}
	encoded := m.Encode()
	decoded, consumed, err := DecodeMatch(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if consumed != len(encoded) {
		t.Errorf("consumed = %d, want %d", consumed, len(encoded))
	}
	if decoded.InPort != nil || decoded.EthType != nil {
		t.Errorf("expected empty match, got %+v", decoded)
	}
}

func TestMatchArpFields(t *testing.T) {
	m := Match{
		EthType: u16(0x0806),
		ArpOp:   u16(1),
		ArpTpa:  u32(0x0A000001),
	}
	decoded, _, err := DecodeMatch(m.Encode())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.ArpOp == nil || *decoded.ArpOp != 1 {
		t.Errorf("arp_op = %v, want 1", decoded.ArpOp)
	}
	if decoded.ArpTpa == nil || *decoded.ArpTpa != 0x0A000001 {
		t.Errorf("arp_tpa = %v, want 0x0A000001", decoded.ArpTpa)
	}
}
