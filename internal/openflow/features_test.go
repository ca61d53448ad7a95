package openflow

import (
	"encoding/binary"
	"testing"
)

func TestDecodeFeatures(t *testing.T) {
	body := make([]byte, 24)
	binary.BigEndian.PutUint64(body[0:8], 0x0123456789abcdef)
	binary.BigEndian.PutUint32(body[8:12], 256)
	body[12] = 4   // n_tables
	body[13] = 0   // auxiliary_id
	binary.BigEndian.PutUint32(body[16:20], 0x0f)

	f, err := DecodeFeatures(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.DatapathID != 0x0123456789abcdef {
		t.Errorf("datapath id = %#x", f.DatapathID)
	}
	if f.NBuffers != 256 {
		t.Errorf("n_buffers = %d, want 256", f.NBuffers)
	}
	if f.NTables != 4 {
		t.Errorf("n_tables = %d, want 4", f.NTables)
	}
	if f.Capabilities != 0x0f {
		t.Errorf("capabilities = %#x, want 0xf", f.Capabilities)
	}
}

func TestDecodeFeaturesTooShort(t *testing.T) {
	if _, err := DecodeFeatures(make([]byte, 10)); err == nil {
		t.Fatal("expected error on short body")
	}
}
