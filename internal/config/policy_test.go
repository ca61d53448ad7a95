package config

import (
	"testing"

	"github.com/hsdnet/controller/internal/model"
)

func TestParsePolicyLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantErr bool
	}{
		{"address", "address S0 0 10.0.0.1/24", false},
		{"address bad cidr", "address S0 0 10.0.0.1", true},
		{"address bad ip", "address S0 0 999.0.0.1/24", true},
		{"block wildcard", "block C1 * 10.0.0.0/24 6 * 80", false},
		{"block bad count", "block C1 10.0.0.0/24", true},
		{"route-f", "route-f C1 * * * * * Gi2", false},
		{"disable", "disable C1 Gi3", false},
		{"flow", "flow f1 10.0.0.1 10.0.0.2 6 * 443", false},
		{"route", "route C1 f1 Gi2", false},
		{"zone", "zone C1 dmz", false},
		{"global routing", "global routing", false},
		{"global unknown", "global frobnicate", true},
		{"unknown type", "bogus a b c", true},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePolicyLine(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParsePolicyLine(%q) error = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if !tt.wantErr && p.Encode() != tt.line {
				t.Errorf("round-trip: Encode() = %q, want %q", p.Encode(), tt.line)
			}
		})
	}
}

func TestParsePolicyLineAddressFields(t *testing.T) {
	p, err := ParsePolicyLine("address S0 2 10.0.0.1/24")
	if err != nil {
		t.Fatalf("ParsePolicyLine: %v", err)
	}
	ap, ok := p.(model.AddressPolicy)
	if !ok {
		t.Fatalf("expected model.AddressPolicy, got %T", p)
	}
	if ap.Device != "S0" || ap.IfaceIdx != 2 || ap.CIDR != "10.0.0.1/24" {
		t.Errorf("parsed = %+v", ap)
	}
}
