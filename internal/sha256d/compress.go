// Package sha256d implements the double-SHA256 header search pipeline: a
// single-block compression primitive, a cached midstate for the
// nonce-invariant header prefix, and a multi-lane batch hasher that computes
// several nonce trials in lock-step.
package sha256d

// k is the SHA256 round constant table.
var k = [64]uint32{
	0x428a2f98, 0x71374491, 0xb5c0fbcf, 0xe9b5dba5,
	0x3956c25b, 0x59f111f1, 0x923f82a4, 0xab1c5ed5,
	0xd807aa98, 0x12835b01, 0x243185be, 0x550c7dc3,
	0x72be5d74, 0x80deb1fe, 0x9bdc06a7, 0xc19bf174,
	0xe49b69c1, 0xefbe4786, 0x0fc19dc6, 0x240ca1cc,
	0x2de92c6f, 0x4a7484aa, 0x5cb0a9dc, 0x76f988da,
	0x983e5152, 0xa831c66d, 0xb00327c8, 0xbf597fc7,
	0xc6e00bf3, 0xd5a79147, 0x06ca6351, 0x14292967,
	0x27b70a85, 0x2e1b2138, 0x4d2c6dfc, 0x53380d13,
	0x650a7354, 0x766a0abb, 0x81c2c92e, 0x92722c85,
	0xa2bfe8a1, 0xa81a664b, 0xc24b8b70, 0xc76c51a3,
	0xd192e819, 0xd6990624, 0xf40e3585, 0x106aa070,
	0x19a4c116, 0x1e376c08, 0x2748774c, 0x34b0bcb5,
	0x391c0cb3, 0x4ed8aa4a, 0x5b9cca4f, 0x682e6ff3,
	0x748f82ee, 0x78a5636f, 0x84c87814, 0x8cc70208,
	0x90befffa, 0xa4506ceb, 0xbef9a3f7, 0xc67178f2,
}

// iv is the SHA256 initial state.
var iv = [8]uint32{
	0x6a09e667, 0xbb67ae85, 0x3c6ef372, 0xa54ff53a,
	0x510e527f, 0x9b05688c, 0x1f83d9ab, 0x5be0cd19,
}

func rotr(x uint32, n uint) uint32 {
	return (x >> n) | (x << (32 - n))
}

func smallSigma0(x uint32) uint32 { return rotr(x, 7) ^ rotr(x, 18) ^ (x >> 3) }
func smallSigma1(x uint32) uint32 { return rotr(x, 17) ^ rotr(x, 19) ^ (x >> 10) }
func bigSigma0(x uint32) uint32   { return rotr(x, 2) ^ rotr(x, 13) ^ rotr(x, 22) }
func bigSigma1(x uint32) uint32   { return rotr(x, 6) ^ rotr(x, 11) ^ rotr(x, 25) }

// round applies one SHA256 compression round to the working variables
// v[0..7] = a..h, folding in the round constant kt and schedule word wt.
// All batch-hashing paths are built on this single primitive.
func round(v *[8]uint32, kt, wt uint32) {
	t1 := v[7] + bigSigma1(v[4]) + ((v[4] & v[5]) ^ (^v[4] & v[6])) + kt + wt
	t2 := bigSigma0(v[0]) + ((v[0] & v[1]) ^ (v[0] & v[2]) ^ (v[1] & v[2]))
	v[7] = v[6]
	v[6] = v[5]
	v[5] = v[4]
	v[4] = v[3] + t1
	v[3] = v[2]
	v[2] = v[1]
	v[1] = v[0]
	v[0] = t1 + t2
}

// compress folds one 16-word message block into state. Pure aside from the
// in-place state update; total over all inputs.
func compress(state *[8]uint32, m *[16]uint32) {
	var w [64]uint32
	copy(w[:16], m[:])
	for t := 16; t < 64; t++ {
		w[t] = w[t-16] + smallSigma0(w[t-15]) + w[t-7] + smallSigma1(w[t-2])
	}

	v := *state
	for t := 0; t < 64; t++ {
		round(&v, k[t], w[t])
	}

	for i := range state {
		state[i] += v[i]
	}
}
