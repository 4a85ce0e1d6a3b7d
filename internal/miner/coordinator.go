package miner

import (
	"context"
	"math/big"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/bitcoinle/miner-go/internal/chain"
	"github.com/bitcoinle/miner-go/internal/metrics"
	"github.com/bitcoinle/miner-go/internal/sha256d"
	"github.com/bitcoinle/miner-go/internal/types"
)

const (
	// defaultHousekeepEvery is the number of nonce advances between
	// housekeeping checks, roughly once per second of hashing on one
	// core. Cancellation latency is bounded by this interval.
	defaultHousekeepEvery = 3_000_000

	// tipPollInterval and maxTipPolls bound the wait for the chain tip
	// accessor to stabilize during housekeeping.
	tipPollInterval = 5 * time.Millisecond
	maxTipPolls     = 200

	nonceSpace = uint64(1) << 32
)

// NonceRange is a half-open nonce interval [From, To).
type NonceRange struct {
	From, To uint64
}

// PartitionNonceSpace splits the full 32-bit nonce space into n half-open
// intervals that tile it exactly. The last interval absorbs any remainder.
func PartitionNonceSpace(n int) []NonceRange {
	if n < 1 {
		n = 1
	}
	step := nonceSpace / uint64(n)
	ranges := make([]NonceRange, n)
	var from uint64
	for i := range ranges {
		to := from + step
		if i == n-1 {
			to = nonceSpace
		}
		ranges[i] = NonceRange{From: from, To: to}
		from = to
	}
	return ranges
}

// Config holds coordinator tuning knobs. Zero values select defaults.
type Config struct {
	// Threads is the number of worker goroutines; defaults to NumCPU.
	Threads int

	// Lanes is the batch width per hashing call, clamped to [1,4].
	// Defaults to 3.
	Lanes int

	// PowLimit is the easiest target the chain accepts. Defaults to the
	// mainnet maximum target.
	PowLimit *big.Int

	// HousekeepEvery overrides the housekeeping interval in nonces.
	HousekeepEvery uint32

	// DisableQuickFilter forces the full target check on every lane.
	DisableQuickFilter bool
}

// Stats summarizes one finished mining session.
type Stats struct {
	Hashes  uint64
	Elapsed time.Duration
	Found   bool
	Stale   bool
}

// HashRate returns the session's throughput in hashes per second.
func (s Stats) HashRate() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Hashes) / s.Elapsed.Seconds()
}

// Coordinator owns session lifecycle: it partitions the nonce space,
// launches one worker per interval, joins them, and reports the result.
// One coordinator serves many sequential sessions; the interrupt flag
// spans them all.
type Coordinator struct {
	rpc    chain.NodeRPC
	logger *zap.Logger

	threads        int
	lanes          int
	powLimit       *big.Int
	housekeepEvery uint32
	quickFilter    bool

	interrupt atomic.Bool
}

// New creates a mining coordinator.
func New(rpc chain.NodeRPC, cfg Config, logger *zap.Logger) *Coordinator {
	threads := cfg.Threads
	if threads < 1 {
		threads = runtime.NumCPU()
	}
	lanes := cfg.Lanes
	if lanes < 1 {
		lanes = 3
	}
	if lanes > sha256d.MaxLanes {
		lanes = sha256d.MaxLanes
	}
	powLimit := cfg.PowLimit
	if powLimit == nil {
		powLimit = types.MainnetMaxTarget
	}
	housekeep := cfg.HousekeepEvery
	if housekeep == 0 {
		housekeep = defaultHousekeepEvery
	}
	return &Coordinator{
		rpc:            rpc,
		logger:         logger,
		threads:        threads,
		lanes:          lanes,
		powLimit:       powLimit,
		housekeepEvery: housekeep,
		quickFilter:    !cfg.DisableQuickFilter,
	}
}

// RequestInterrupt asks all current and future sessions to stop at their
// next housekeeping boundary. Safe to call from any goroutine, including
// signal handlers.
func (c *Coordinator) RequestInterrupt() {
	c.interrupt.Store(true)
}

// Interrupted reports whether an interrupt has been requested.
func (c *Coordinator) Interrupted() bool {
	return c.interrupt.Load()
}

// Mine searches the full nonce space for a header satisfying its compact
// bits. It returns the solved header, or nil if the session was cancelled,
// went stale, or exhausted the space.
func (c *Coordinator) Mine(ctx context.Context, header *types.BlockHeader) (*types.BlockHeader, Stats) {
	ranges := PartitionNonceSpace(c.threads)
	s := newSession(c.threads)
	metrics.SessionsTotal.Inc()

	var wg sync.WaitGroup
	for i, r := range ranges {
		wg.Add(1)
		go func(idx int, r NonceRange) {
			defer wg.Done()
			wk := &worker{idx: idx, from: r.From, to: r.To, c: c, s: s, header: *header}
			wk.run(ctx)
		}(i, r)
	}
	wg.Wait()

	stats := Stats{
		Elapsed: time.Since(s.started),
		Found:   s.found.Load(),
		Stale:   s.stale.Load(),
	}
	for _, p := range s.progress {
		stats.Hashes += p
	}

	metrics.HashRate.Set(stats.HashRate())
	if stats.Stale {
		metrics.StaleSessions.Inc()
	}
	c.logger.Info("mining session finished",
		zap.Uint64("hashes", stats.Hashes),
		zap.Duration("elapsed", stats.Elapsed),
		zap.Float64("hash_rate", stats.HashRate()),
		zap.Bool("found", stats.Found),
		zap.Bool("stale", stats.Stale),
	)

	if stats.Found {
		return s.winner.Load(), stats
	}
	return nil, stats
}

// stableTip polls the chain tip until two consecutive reads agree, the
// session halts, or the poll budget runs out. The tip accessor can return
// transiently inconsistent results while the node is reorganizing.
func (c *Coordinator) stableTip(ctx context.Context, s *session) (chain.Tip, bool) {
	var last chain.Tip
	for i := 0; i < maxTipPolls; i++ {
		if s.stop.Load() || c.interrupt.Load() || ctx.Err() != nil {
			return chain.Tip{}, false
		}
		tip, err := c.rpc.GetChainTip(ctx)
		if err == nil && !tip.IsZero() {
			if tip.Hash == last.Hash {
				return tip, true
			}
			last = tip
		}
		time.Sleep(tipPollInterval)
	}
	return chain.Tip{}, false
}
