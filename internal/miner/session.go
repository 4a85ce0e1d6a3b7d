// Package miner drives the nonce-space search: one coordinator partitions
// the 32-bit nonce space across worker goroutines, each worker runs the
// batched hashing pipeline over its interval, and a per-attempt session
// carries the shared found/stop state.
package miner

import (
	"sync/atomic"
	"time"

	"github.com/bitcoinle/miner-go/internal/types"
)

// session is the per-attempt control block shared by all workers. It is
// created fresh for every template attempt and discarded afterwards. The
// finding worker writes found and winner; worker 0 writes stale; any worker
// may set stop. All flags are atomics; workers observe stop only at
// housekeeping boundaries.
type session struct {
	found  atomic.Bool
	stop   atomic.Bool
	stale  atomic.Bool
	winner atomic.Pointer[types.BlockHeader]

	// progress[i] is owned exclusively by worker i while it runs and is
	// read by the coordinator only after all workers have been joined.
	progress []uint64

	started time.Time
}

func newSession(workers int) *session {
	return &session{
		progress: make([]uint64, workers),
		started:  time.Now(),
	}
}

// recordWin stores the solved header if this worker is the first finder,
// and halts the session either way.
func (s *session) recordWin(solved *types.BlockHeader) {
	if s.found.CompareAndSwap(false, true) {
		s.winner.Store(solved)
	}
	s.stop.Store(true)
}

// markStale flags the session as abandoned due to a moved chain tip.
func (s *session) markStale() {
	s.stale.Store(true)
	s.stop.Store(true)
}
