package types

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/bitcoinle/miner-go/pkg/util"
)

// HeaderSize is the serialized size of a BitcoinLE block header. Unlike the
// classic 80-byte header it carries a trailing 32-byte metronome hash before
// the time/bits/nonce fields.
const HeaderSize = 112

// BlockHeader is the fixed-format block header the miner searches over.
// Only Time and Nonce change between hashing attempts; everything else is
// fixed for the lifetime of one template.
type BlockHeader struct {
	Version    int32    `json:"version"`
	PrevBlock  [32]byte `json:"prev_block"`
	MerkleRoot [32]byte `json:"merkle_root"`
	Metronome  [32]byte `json:"metronome"`
	Time       uint32   `json:"time"`
	Bits       uint32   `json:"bits"`
	Nonce      uint32   `json:"nonce"`
}

// Serialize serializes the header to its 112-byte wire form. All 32-bit
// fields are little-endian; hashes are in internal byte order.
func (h *BlockHeader) Serialize() []byte {
	buf := make([]byte, HeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], uint32(h.Version))
	copy(buf[4:36], h.PrevBlock[:])
	copy(buf[36:68], h.MerkleRoot[:])
	copy(buf[68:100], h.Metronome[:])
	binary.LittleEndian.PutUint32(buf[100:104], h.Time)
	binary.LittleEndian.PutUint32(buf[104:108], h.Bits)
	binary.LittleEndian.PutUint32(buf[108:112], h.Nonce)
	return buf
}

// ParseHeader deserializes a 112-byte wire-form header.
func ParseHeader(buf []byte) (*BlockHeader, error) {
	if len(buf) != HeaderSize {
		return nil, fmt.Errorf("header must be %d bytes, got %d", HeaderSize, len(buf))
	}
	h := &BlockHeader{
		Version: int32(binary.LittleEndian.Uint32(buf[0:4])),
		Time:    binary.LittleEndian.Uint32(buf[100:104]),
		Bits:    binary.LittleEndian.Uint32(buf[104:108]),
		Nonce:   binary.LittleEndian.Uint32(buf[108:112]),
	}
	copy(h.PrevBlock[:], buf[4:36])
	copy(h.MerkleRoot[:], buf[36:68])
	copy(h.Metronome[:], buf[68:100])
	return h, nil
}

// Hash computes the double-SHA256 hash of the serialized header.
func (h *BlockHeader) Hash() [32]byte {
	return util.DoubleSHA256(h.Serialize())
}

// HashHex returns the header hash as a display-order hex string.
func (h *BlockHeader) HashHex() string {
	return util.HashToHex(h.Hash())
}

// Timestamp returns the header time as a time.Time.
func (h *BlockHeader) Timestamp() time.Time {
	return time.Unix(int64(h.Time), 0)
}

// MeetsTarget checks if the header hash satisfies its own compact bits.
func (h *BlockHeader) MeetsTarget() bool {
	return util.CheckProofOfWork(h.Hash(), h.Bits, MainnetMaxTarget)
}
