package types

import (
	"github.com/bitcoinle/miner-go/pkg/util"
)

var (
	// MainnetMaxTarget is the maximum target (difficulty 1) the chain accepts.
	MainnetMaxTarget = util.CompactToTarget(0x1d00ffff)
)

// HeaderDifficulty returns the difficulty encoded by the header's nBits,
// relative to the maximum target.
func HeaderDifficulty(h *BlockHeader) float64 {
	target := util.CompactToTarget(h.Bits)
	return util.TargetToDifficulty(target, MainnetMaxTarget)
}
