// Package node runs the mining loop against a BitcoinLE node: it waits for
// peers and a stable chain tip, fetches header templates, hands them to the
// search coordinator, and submits solved headers back.
package node

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bitcoinle/miner-go/internal/chain"
	"github.com/bitcoinle/miner-go/internal/journal"
	"github.com/bitcoinle/miner-go/internal/metrics"
	"github.com/bitcoinle/miner-go/internal/miner"
	"github.com/bitcoinle/miner-go/internal/types"
	"github.com/bitcoinle/miner-go/pkg/util"
)

const (
	// peerPollRate limits how often the peer count is queried while the
	// node has no connections.
	peerPollRate = rate.Limit(1) // per second

	// submitRetries and submitRetryDelay bound how long a solved header
	// waits for the node to regain peers before submission is abandoned.
	submitRetries    = 50
	submitRetryDelay = 100 * time.Millisecond

	templatePollInterval = 2 * time.Second
)

// Node owns the outer mining loop.
type Node struct {
	rpc     chain.NodeRPC
	coord   *miner.Coordinator
	journal *journal.Journal // may be nil
	logger  *zap.Logger

	peerLimiter *rate.Limiter
}

// New creates a mining node. The journal may be nil to disable solved
// block persistence.
func New(rpc chain.NodeRPC, coord *miner.Coordinator, j *journal.Journal, logger *zap.Logger) *Node {
	return &Node{
		rpc:         rpc,
		coord:       coord,
		journal:     j,
		logger:      logger,
		peerLimiter: rate.NewLimiter(peerPollRate, 1),
	}
}

// Run mines continuously until the context is cancelled or an interrupt is
// requested on the coordinator. Template fetch failures back off
// exponentially rather than aborting the loop.
func (n *Node) Run(ctx context.Context) error {
	start := time.Now()
	var consecutiveFailures int

	for {
		if ctx.Err() != nil || n.coord.Interrupted() {
			return ctx.Err()
		}
		metrics.UptimeSeconds.Set(time.Since(start).Seconds())

		if err := n.waitForPeers(ctx); err != nil {
			return err
		}
		if err := n.waitForSync(ctx); err != nil {
			return err
		}

		header, height, err := n.fetchTemplate(ctx)
		if err != nil {
			consecutiveFailures++
			delay := backoffDuration(consecutiveFailures)
			n.logger.Warn("template fetch failed",
				zap.Error(err),
				zap.Int("consecutive_failures", consecutiveFailures),
				zap.Duration("next_retry", delay),
			)
			if !sleepCtx(ctx, delay) {
				return ctx.Err()
			}
			continue
		}
		if consecutiveFailures > 0 {
			n.logger.Info("node RPC recovered", zap.Int("after_failures", consecutiveFailures))
			consecutiveFailures = 0
		}

		n.logger.Info("mining template",
			zap.Int64("height", height),
			zap.String("prevhash", util.HashToHex(header.PrevBlock)),
			zap.Uint32("bits", header.Bits),
			zap.Float64("difficulty", types.HeaderDifficulty(header)),
			zap.Time("template_time", header.Timestamp()),
		)

		winner, stats := n.coord.Mine(ctx, header)
		switch {
		case winner != nil:
			n.handleSolved(ctx, winner, height)
		case stats.Stale:
			// The tip moved under us; fetch a fresh template right away.
		case n.coord.Interrupted() || ctx.Err() != nil:
			return ctx.Err()
		default:
			// Nonce space exhausted without a winner. The next template
			// carries a fresh timestamp, which reseeds the search.
			n.logger.Info("nonce space exhausted, refetching template", zap.Int64("height", height))
		}
	}
}

// waitForPeers blocks until the node reports at least one peer connection.
// Mining without peers would orphan any solved block.
func (n *Node) waitForPeers(ctx context.Context) error {
	warned := false
	for {
		if err := n.peerLimiter.Wait(ctx); err != nil {
			return err
		}
		if n.coord.Interrupted() {
			return nil
		}
		count, err := n.rpc.GetConnectionCount(ctx)
		if err == nil && count > 0 {
			if warned {
				n.logger.Info("peer connections restored", zap.Int("peers", count))
			}
			return nil
		}
		if !warned {
			n.logger.Warn("waiting for peer connections", zap.Error(err))
			warned = true
		}
	}
}

// waitForSync blocks until two consecutive chain tip reads agree, so the
// first template is not built on a tip the node is still moving.
func (n *Node) waitForSync(ctx context.Context) error {
	var last chain.Tip
	for {
		if n.coord.Interrupted() {
			return nil
		}
		tip, err := n.rpc.GetChainTip(ctx)
		if err == nil && !tip.IsZero() && tip.Hash == last.Hash {
			return nil
		}
		if err == nil {
			last = tip
		} else {
			n.logger.Debug("chain tip read failed", zap.Error(err))
			last = chain.Tip{}
		}
		if !sleepCtx(ctx, 100*time.Millisecond) {
			return ctx.Err()
		}
	}
}

func (n *Node) fetchTemplate(ctx context.Context) (*types.BlockHeader, int64, error) {
	tmpl, err := n.rpc.GetHeaderTemplate(ctx)
	if err != nil {
		return nil, 0, err
	}
	if tmpl == nil {
		return nil, 0, fmt.Errorf("node returned no header template")
	}
	raw, err := util.HexToBytes(tmpl.HeaderHex)
	if err != nil {
		return nil, 0, fmt.Errorf("decode template header: %w", err)
	}
	header, err := types.ParseHeader(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("parse template header: %w", err)
	}
	return header, tmpl.Height, nil
}

// handleSolved verifies and submits a solved header, then journals it.
// Submission failures are logged, not fatal; the loop moves on to the next
// template either way.
func (n *Node) handleSolved(ctx context.Context, solved *types.BlockHeader, height int64) {
	hash := solved.Hash()

	// Re-check the full proof of work on the final serialized header. A
	// bug anywhere in the search pipeline must not reach the network.
	if !util.HashMeetsTarget(hash, util.CompactToTarget(solved.Bits)) {
		n.logger.Error("solved header failed verification, discarding",
			zap.String("hash", util.HashToHex(hash)),
			zap.Uint32("nonce", solved.Nonce),
		)
		return
	}

	metrics.BlocksFound.Inc()
	n.logger.Info("block solved",
		zap.Int64("height", height),
		zap.String("hash", util.HashToHex(hash)),
		zap.Uint32("nonce", solved.Nonce),
	)

	if err := n.submitWithRetry(ctx, solved); err != nil {
		metrics.BlockSubmissions.WithLabelValues("failed").Inc()
		n.logger.Error("block submission failed", zap.Error(err))
	} else {
		metrics.BlockSubmissions.WithLabelValues("accepted").Inc()
	}

	if n.journal != nil {
		entry := journal.Entry{
			Hash:      hash,
			Height:    height,
			Nonce:     solved.Nonce,
			Time:      solved.Time,
			Bits:      solved.Bits,
			FoundAt:   time.Now().Unix(),
			HeaderHex: util.BytesToHex(solved.Serialize()),
		}
		if err := n.journal.Record(entry); err != nil {
			n.logger.Warn("journal write failed", zap.Error(err))
		}
	}
}

// submitWithRetry pushes the solved header to the node, waiting briefly for
// peer connections to return if they dropped while we were hashing.
func (n *Node) submitWithRetry(ctx context.Context, solved *types.BlockHeader) error {
	headerHex := util.BytesToHex(solved.Serialize())

	for attempt := 0; attempt < submitRetries; attempt++ {
		count, err := n.rpc.GetConnectionCount(ctx)
		if err == nil && count > 0 {
			err = n.rpc.SubmitBlockHeader(ctx, headerHex)
			var rejected *chain.BlockRejectedError
			if errors.As(err, &rejected) {
				// Rejections are final; retrying cannot help.
				return err
			}
			if err == nil {
				return nil
			}
			n.logger.Warn("submission attempt failed", zap.Error(err), zap.Int("attempt", attempt+1))
		}
		if !sleepCtx(ctx, submitRetryDelay) {
			return ctx.Err()
		}
	}
	return fmt.Errorf("no peer connections after %d attempts, block not submitted", submitRetries)
}

// backoffDuration computes exponential backoff capped at 60s.
func backoffDuration(failures int) time.Duration {
	d := templatePollInterval
	for i := 1; i < failures; i++ {
		d *= 2
		if d > 60*time.Second {
			return 60 * time.Second
		}
	}
	return d
}

// sleepCtx sleeps for d and reports false if the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
