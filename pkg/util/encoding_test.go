package util

import (
	"testing"
)

func TestHexConversion(t *testing.T) {
	original := []byte{0xde, 0xad, 0xbe, 0xef}
	hexStr := BytesToHex(original)
	if hexStr != "deadbeef" {
		t.Errorf("BytesToHex = %s, want deadbeef", hexStr)
	}

	decoded, err := HexToBytes(hexStr)
	if err != nil {
		t.Errorf("HexToBytes error: %v", err)
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("HexToBytes byte %d = %x, want %x", i, decoded[i], original[i])
		}
	}

	// Invalid hex
	_, err = HexToBytes("zzzz")
	if err == nil {
		t.Error("HexToBytes should fail on invalid hex")
	}
}
