package sha256d

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	"github.com/bitcoinle/miner-go/internal/types"
)

// Digest is an outer double-SHA256 result in internal word order: the eight
// 32-bit state words as computed, before any byte swapping. Callers swap to
// wire byte order only for digests that survive the quick filter.
type Digest [8]uint32

// Bytes returns the digest in wire byte order, identical to what a
// whole-buffer double-SHA256 of the header would produce.
func (d Digest) Bytes() [32]byte {
	var out [32]byte
	for i, w := range d {
		binary.BigEndian.PutUint32(out[i*4:], w)
	}
	return out
}

// Candidate applies the quick filter: true when the top 32 bits of the
// hash's numeric value are all zero, which every hash meeting a sub-2^224
// target must satisfy. Word 7 holds the final four bytes of the wire-order
// digest, which are the most significant bytes of the little-endian value.
func (d Digest) Candidate() bool {
	return d[7] == 0
}

// headerWord converts a little-endian 32-bit header field to the big-endian
// message word SHA256 consumes. The mutable nonce and time words are cached
// in little-endian form so advancing them is a plain increment; this is the
// single place the swap happens on the way into the hash.
func headerWord(x uint32) uint32 {
	return bits.ReverseBytes32(x)
}

// Second-block padding for the 112-byte header message (1 bit + length 896),
// and outer-block padding for hashing the 32-byte inner digest (length 256).
var (
	innerPad = [4]uint32{0x80000000, 0, 0, 0x00000380}
	outerPad = [8]uint32{0x80000000, 0, 0, 0, 0, 0, 0, 0x00000100}
)

// Offsets of the mutable fields within the cached little-endian words
// covering header bytes [96,112).
const (
	mutableTimeWord  = 1
	mutableNonceWord = 3
)

// Midstate caches the nonce-invariant portion of one header template's
// hash: the chaining state after compressing bytes [0,64), plus the message
// words for the rest of the header. It is built once per template and shared
// by every nonce trial; it must be rebuilt whenever the first 64 bytes of
// the template change.
type Midstate struct {
	// state is the chaining state after the first compression block.
	state [8]uint32

	// tail holds header bytes [64,96) as big-endian message words. This
	// region (merkle root tail plus most of the metronome hash) never
	// changes during a search.
	tail [8]uint32

	// mutable holds header bytes [96,112) as little-endian words: the last
	// metronome word, time, bits, nonce. Kept little-endian so time and
	// nonce updates are cheap; swapped via headerWord on every hash.
	mutable [4]uint32
}

// NewMidstate runs the first pipeline stage over a serialized header and
// caches everything later stages need. The header's current nonce value is
// ignored; callers supply nonces per batch.
func NewMidstate(header []byte) (*Midstate, error) {
	if len(header) != types.HeaderSize {
		return nil, fmt.Errorf("header must be %d bytes, got %d", types.HeaderSize, len(header))
	}

	m := &Midstate{state: iv}

	var block [16]uint32
	for i := 0; i < 16; i++ {
		block[i] = binary.BigEndian.Uint32(header[i*4:])
	}
	compress(&m.state, &block)

	for i := 0; i < 8; i++ {
		m.tail[i] = binary.BigEndian.Uint32(header[64+i*4:])
	}
	for i := 0; i < 4; i++ {
		m.mutable[i] = binary.LittleEndian.Uint32(header[96+i*4:])
	}
	return m, nil
}

// SetTime refreshes the header time field in the cached message words.
// Safe to call between batches; never during one.
func (m *Midstate) SetTime(t uint32) {
	m.mutable[mutableTimeWord] = t
}

// Time returns the header time currently baked into the cache.
func (m *Midstate) Time() uint32 {
	return m.mutable[mutableTimeWord]
}

// secondBlock assembles the full second compression block for the given
// nonce: cached tail words, byte-swapped mutable words, and padding.
func (m *Midstate) secondBlock(block *[16]uint32, nonce uint32) {
	copy(block[0:8], m.tail[:])
	block[8] = headerWord(m.mutable[0])
	block[9] = headerWord(m.mutable[mutableTimeWord])
	block[10] = headerWord(m.mutable[2])
	block[11] = headerWord(nonce)
	copy(block[12:16], innerPad[:])
}

// outerBlock assembles the outer-hash compression block from an inner digest.
func outerBlock(block *[16]uint32, inner *[8]uint32) {
	copy(block[0:8], inner[:])
	copy(block[8:16], outerPad[:])
}

// HashOne computes the double-SHA256 for a single nonce using the cache:
// one compression to finish the inner hash, one for the outer hash.
func (m *Midstate) HashOne(nonce uint32) Digest {
	var block [16]uint32

	inner := m.state
	m.secondBlock(&block, nonce)
	compress(&inner, &block)

	outer := iv
	outerBlock(&block, &inner)
	compress(&outer, &block)

	return Digest(outer)
}
