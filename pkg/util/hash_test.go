package util

import (
	"math/big"
	"testing"
)

func TestDoubleSHA256(t *testing.T) {
	// Known double-SHA256 of "hello"
	data := []byte("hello")
	hash := DoubleSHA256(data)
	hex := BytesToHex(hash[:])
	expected := "9595c9df90075148eb06860365df33584b75bff782a510c6cd4883a419833d50"
	if hex != expected {
		t.Errorf("DoubleSHA256(\"hello\") = %s, want %s", hex, expected)
	}
}

func TestReverseBytes(t *testing.T) {
	input := []byte{0x01, 0x02, 0x03, 0x04}
	result := ReverseBytes(input)
	expected := []byte{0x04, 0x03, 0x02, 0x01}
	for i := range result {
		if result[i] != expected[i] {
			t.Errorf("ReverseBytes byte %d = %x, want %x", i, result[i], expected[i])
		}
	}
	// Original should not be modified
	if input[0] != 0x01 {
		t.Error("ReverseBytes modified original slice")
	}
}

func TestHashHexRoundTrip(t *testing.T) {
	var h [32]byte
	for i := range h {
		h[i] = byte(i * 7)
	}
	s := HashToHex(h)
	got, err := HexToHash(s)
	if err != nil {
		t.Fatalf("HexToHash: %v", err)
	}
	if got != h {
		t.Errorf("round trip = %x, want %x", got, h)
	}

	if _, err := HexToHash("zz"); err == nil {
		t.Error("expected error for invalid hex")
	}
	if _, err := HexToHash("00aa"); err == nil {
		t.Error("expected error for short hex")
	}
}

func TestUint32ToBytes(t *testing.T) {
	got := Uint32ToBytes(0x12345678)
	want := []byte{0x78, 0x56, 0x34, 0x12}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Uint32ToBytes = %x, want %x", got, want)
		}
	}
}

func TestCompactToTarget(t *testing.T) {
	tests := []struct {
		name    string
		compact uint32
		want    string // hex of target
	}{
		{
			name:    "difficulty one",
			compact: 0x1d00ffff,
			want:    "ffff0000000000000000000000000000000000000000000000000000",
		},
		{
			name:    "zero",
			compact: 0x00000000,
			want:    "0",
		},
		{
			name:    "small exponent",
			compact: 0x03123456,
			want:    "123456",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			target := CompactToTarget(tt.compact)
			got := target.Text(16)
			if got != tt.want {
				t.Errorf("CompactToTarget(0x%08x) = %s, want %s", tt.compact, got, tt.want)
			}
		})
	}
}

func TestCompactRoundTrip(t *testing.T) {
	tests := []uint32{
		0x1d00ffff,
		0x03123456,
		0x04123456,
		0x1b0404cb,
	}

	for _, compact := range tests {
		target := CompactToTarget(compact)
		got := TargetToCompact(target)
		if got != compact {
			t.Errorf("Round-trip failed: compact 0x%08x -> target -> 0x%08x", compact, got)
		}
	}
}

func TestHashMeetsTarget(t *testing.T) {
	target := CompactToTarget(0x1d00ffff)

	// A hash of all zeros should meet any target
	var zeroHash [32]byte
	if !HashMeetsTarget(zeroHash, target) {
		t.Error("Zero hash should meet any positive target")
	}

	// A hash of all 0xFF should not meet a reasonable target
	var maxHash [32]byte
	for i := range maxHash {
		maxHash[i] = 0xFF
	}
	if HashMeetsTarget(maxHash, target) {
		t.Error("Max hash should not meet target")
	}
}

func TestCheckProofOfWork(t *testing.T) {
	powLimit := CompactToTarget(0x1d00ffff)

	var zeroHash [32]byte
	if !CheckProofOfWork(zeroHash, 0x1d00ffff, powLimit) {
		t.Error("zero hash should pass for any nonzero target")
	}

	// Negative target (sign bit set in mantissa) always fails.
	if CheckProofOfWork(zeroHash, 0x1d80ffff, powLimit) {
		t.Error("negative target should fail")
	}

	// Zero target always fails.
	if CheckProofOfWork(zeroHash, 0, powLimit) {
		t.Error("zero target should fail")
	}

	// Target easier than the pow limit fails.
	if CheckProofOfWork(zeroHash, 0x2100ffff, powLimit) {
		t.Error("target above pow limit should fail")
	}

	// A hash exactly at the target passes; one above it fails.
	target := CompactToTarget(0x1d00ffff)
	atTarget := hashFromInt(target)
	if !CheckProofOfWork(atTarget, 0x1d00ffff, powLimit) {
		t.Error("hash equal to target should pass")
	}
	above := hashFromInt(new(big.Int).Add(target, big.NewInt(1)))
	if CheckProofOfWork(above, 0x1d00ffff, powLimit) {
		t.Error("hash above target should fail")
	}
}

func TestQuickFilterSound(t *testing.T) {
	tests := []struct {
		bits uint32
		want bool
	}{
		{0x1d00ffff, true},  // target < 2^224
		{0x1b0404cb, true},  // harder target, still < 2^224
		{0x207fffff, false}, // regtest-style target, 255 bits
		{0x00000000, false}, // zero target
	}
	for _, tt := range tests {
		if got := QuickFilterSound(tt.bits); got != tt.want {
			t.Errorf("QuickFilterSound(0x%08x) = %v, want %v", tt.bits, got, tt.want)
		}
	}
}

// hashFromInt encodes a big-endian integer value as a little-endian 32-byte hash.
func hashFromInt(v *big.Int) [32]byte {
	var h [32]byte
	b := v.Bytes()
	for i, c := range ReverseBytes(b) {
		h[i] = c
	}
	return h
}
