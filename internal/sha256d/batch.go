package sha256d

// MaxLanes is the largest batch width the hasher supports.
const MaxLanes = 4

// HashLanes computes double-SHA256 for len(dst) consecutive nonces starting
// at baseNonce, writing lane i's digest (nonce baseNonce+i) to dst[i].
// len(dst) must be in [1, MaxLanes].
//
// Lanes carry fully independent state but execute each round in lock-step
// (round t of every lane before round t+1 of any lane). The lanes share no
// data, so the interleaving gives the CPU a window of independent work to
// overlap; one loop over the lane count replaces per-width copies of the
// whole pipeline.
func (m *Midstate) HashLanes(dst []Digest, baseNonce uint32) {
	n := len(dst)
	if n < 1 || n > MaxLanes {
		panic("sha256d: lane count out of range")
	}

	var msgs [MaxLanes][16]uint32
	var states [MaxLanes][8]uint32

	// Inner hash: finish each lane's second block from the shared midstate.
	for i := 0; i < n; i++ {
		m.secondBlock(&msgs[i], baseNonce+uint32(i))
		states[i] = m.state
	}
	compressLanes(&states, &msgs, n)

	// Outer hash over each lane's inner digest.
	for i := 0; i < n; i++ {
		outerBlock(&msgs[i], &states[i])
		states[i] = iv
	}
	compressLanes(&states, &msgs, n)

	for i := 0; i < n; i++ {
		dst[i] = Digest(states[i])
	}
}

// compressLanes runs one compression block for n lanes with interleaved
// rounds. Equivalent to calling compress on each lane separately; the
// schedule expansion and round loop are ordered lane-innermost so every
// instruction's nearest neighbors are data-independent.
func compressLanes(states *[MaxLanes][8]uint32, msgs *[MaxLanes][16]uint32, n int) {
	var w [MaxLanes][64]uint32
	for l := 0; l < n; l++ {
		copy(w[l][:16], msgs[l][:])
	}
	for t := 16; t < 64; t++ {
		for l := 0; l < n; l++ {
			w[l][t] = w[l][t-16] + smallSigma0(w[l][t-15]) + w[l][t-7] + smallSigma1(w[l][t-2])
		}
	}

	var v [MaxLanes][8]uint32
	for l := 0; l < n; l++ {
		v[l] = states[l]
	}
	for t := 0; t < 64; t++ {
		for l := 0; l < n; l++ {
			round(&v[l], k[t], w[l][t])
		}
	}

	for l := 0; l < n; l++ {
		for i := 0; i < 8; i++ {
			states[l][i] += v[l][i]
		}
	}
}
