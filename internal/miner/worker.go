package miner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/bitcoinle/miner-go/internal/sha256d"
	"github.com/bitcoinle/miner-go/internal/types"
	"github.com/bitcoinle/miner-go/pkg/util"
)

// outcome is a worker's terminal state.
type outcome int

const (
	outcomeCancelled outcome = iota
	outcomeExhausted
	outcomeFound
)

func (o outcome) String() string {
	switch o {
	case outcomeFound:
		return "found"
	case outcomeExhausted:
		return "exhausted"
	default:
		return "cancelled"
	}
}

// worker searches one half-open nonce interval [from, to) for the session.
// Bounds are uint64 so the final interval can end at 2^32 exactly.
type worker struct {
	idx      int
	from, to uint64
	c        *Coordinator
	s        *session
	header   types.BlockHeader
}

// run is the worker's search loop. It prepares the midstate once, then
// drives the batch hasher across the interval, quick-filtering each lane
// and full-checking only filter hits. Housekeeping (time refresh, stop
// observation, and on worker 0 interrupt and chain-tip reconciliation)
// happens every housekeepEvery nonce advances, which bounds cancellation
// latency; the inner loop never checks flags.
func (w *worker) run(ctx context.Context) outcome {
	header := w.header
	header.Nonce = uint32(w.from)

	mid, err := sha256d.NewMidstate(header.Serialize())
	if err != nil {
		w.c.logger.Error("midstate init failed", zap.Error(err))
		w.s.stop.Store(true)
		return outcomeCancelled
	}

	// The quick filter is only applied when the target guarantees it can
	// never reject a winning digest; otherwise every lane gets the full
	// check. An unsound filter constant would silently drop solutions.
	useQuick := w.c.quickFilter && util.QuickFilterSound(header.Bits)
	prevHex := util.HashToHex(header.PrevBlock)

	var digs [sha256d.MaxLanes]sha256d.Digest
	nonce := w.from
	sinceHousekeep := uint32(0)
	result := outcomeExhausted

	for nonce < w.to {
		lanes := w.c.lanes
		if rem := w.to - nonce; rem < uint64(lanes) {
			lanes = int(rem)
		}

		mid.HashLanes(digs[:lanes], uint32(nonce))

		for i := 0; i < lanes; i++ {
			if useQuick && !digs[i].Candidate() {
				continue
			}
			hash := digs[i].Bytes()
			if !util.CheckProofOfWork(hash, header.Bits, w.c.powLimit) {
				continue
			}

			solved := header
			solved.Time = mid.Time()
			solved.Nonce = uint32(nonce) + uint32(i)
			w.s.progress[w.idx] = nonce + uint64(i) + 1 - w.from
			w.s.recordWin(&solved)
			w.c.logger.Info("solution found",
				zap.Int("worker", w.idx),
				zap.Uint32("nonce", solved.Nonce),
				zap.String("hash", util.HashToHex(hash)),
			)
			return outcomeFound
		}

		nonce += uint64(lanes)
		sinceHousekeep += uint32(lanes)

		if sinceHousekeep >= w.c.housekeepEvery {
			sinceHousekeep = 0
			w.housekeep(ctx, mid, &header, prevHex)
			if w.s.stop.Load() {
				result = outcomeCancelled
				break
			}
		}
	}

	w.s.progress[w.idx] = nonce - w.from

	// Worker 0 declaring its interval exhausted halts the session; with
	// equal intervals the others are at their ends too.
	if result == outcomeExhausted && w.idx == 0 {
		w.s.stop.Store(true)
	}
	return result
}

// housekeep refreshes the header time in the cached message words and, on
// worker 0 only, services interrupts and reconciles against the chain tip.
func (w *worker) housekeep(ctx context.Context, mid *sha256d.Midstate, header *types.BlockHeader, prevHex string) {
	now := uint32(time.Now().Unix())
	if now != mid.Time() {
		mid.SetTime(now)
		header.Time = now
	}

	if w.idx != 0 {
		return
	}

	if w.c.interrupt.Load() || ctx.Err() != nil {
		w.s.stop.Store(true)
		return
	}

	tip, ok := w.c.stableTip(ctx, w.s)
	if !ok {
		return
	}
	if tip.Hash != prevHex {
		w.c.logger.Info("chain tip moved during search, abandoning session",
			zap.String("tip", tip.Hash),
			zap.Int64("height", tip.Height),
		)
		w.s.markStale()
	}
}
