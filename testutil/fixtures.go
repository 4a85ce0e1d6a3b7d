package testutil

import (
	"math/big"

	"github.com/bitcoinle/miner-go/internal/types"
)

// SampleHeader returns a deterministic 112-byte block header used across
// package tests.
func SampleHeader() *types.BlockHeader {
	h := &types.BlockHeader{
		Version: 1,
		Time:    1700000000,
		Bits:    0x1d00ffff,
	}
	for i := range h.PrevBlock {
		h.PrevBlock[i] = byte(i)
		h.MerkleRoot[i] = byte(0x20 + i)
		h.Metronome[i] = byte(0x40 + i)
	}
	return h
}

// EasyTarget returns a target any hash passes.
func EasyTarget() *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
}
