package node

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/bitcoinle/miner-go/internal/chain"
	"github.com/bitcoinle/miner-go/internal/journal"
	"github.com/bitcoinle/miner-go/internal/miner"
	"github.com/bitcoinle/miner-go/internal/types"
	"github.com/bitcoinle/miner-go/pkg/util"
	"github.com/bitcoinle/miner-go/testutil"
)

const easyBits = uint32(0x207fffff)

func templateHeader() *types.BlockHeader {
	h := &types.BlockHeader{
		Version: 0x20000000,
		Time:    uint32(time.Now().Unix()),
		Bits:    easyBits,
	}
	for i := range h.PrevBlock {
		h.PrevBlock[i] = byte(i + 1)
		h.MerkleRoot[i] = byte(0x40 + i)
		h.Metronome[i] = byte(0x80 + i)
	}
	return h
}

// solvedHeader brute-forces a nonce meeting easyBits, which succeeds within
// a few attempts at that difficulty.
func solvedHeader(t *testing.T) *types.BlockHeader {
	t.Helper()
	h := templateHeader()
	target := util.CompactToTarget(easyBits)
	for nonce := uint32(0); nonce < 100_000; nonce++ {
		h.Nonce = nonce
		if util.HashMeetsTarget(h.Hash(), target) {
			return h
		}
	}
	t.Fatal("no nonce met the trivial target")
	return nil
}

func testNode(rpc chain.NodeRPC, j *journal.Journal) *Node {
	coord := miner.New(rpc, miner.Config{
		Threads:        2,
		Lanes:          4,
		PowLimit:       util.CompactToTarget(easyBits),
		HousekeepEvery: 20_000,
	}, zap.NewNop())
	return New(rpc, coord, j, zap.NewNop())
}

func TestRunMinesAndSubmits(t *testing.T) {
	header := templateHeader()
	rpc := chain.NewMockRPC()
	rpc.SetTip(chain.Tip{Hash: util.HashToHex(header.PrevBlock), Height: 100, Time: int64(header.Time)})
	rpc.Template = &chain.HeaderTemplate{
		HeaderHex: util.BytesToHex(header.Serialize()),
		Height:    101,
		CurTime:   int64(header.Time),
	}

	j, err := journal.Open(filepath.Join(t.TempDir(), "solved.db"), zap.NewNop())
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	defer j.Close()

	n := testNode(rpc, j)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	deadline := time.After(30 * time.Second)
	for len(rpc.Submitted()) == 0 {
		select {
		case <-deadline:
			t.Fatal("no block submitted at trivial difficulty")
		case <-time.After(10 * time.Millisecond):
		}
	}
	n.coord.RequestInterrupt()
	cancel()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	submitted := rpc.Submitted()
	got, err := types.ParseHeader(testutil.MustDecodeHex(t, submitted[0]))
	if err != nil {
		t.Fatalf("submitted header unparseable: %v", err)
	}
	if !util.HashMeetsTarget(got.Hash(), util.CompactToTarget(got.Bits)) {
		t.Errorf("submitted header misses its own target: %s", got.HashHex())
	}
	if got.PrevBlock != header.PrevBlock {
		t.Error("submitted header built on the wrong parent")
	}
	if j.Count() == 0 {
		t.Error("solved block not journaled")
	}
}

func TestFetchTemplate(t *testing.T) {
	header := templateHeader()
	rpc := chain.NewMockRPC()
	n := testNode(rpc, nil)

	if _, _, err := n.fetchTemplate(context.Background()); err == nil {
		t.Error("expected error when node has no template")
	}

	rpc.Template = &chain.HeaderTemplate{HeaderHex: "zz", Height: 101}
	if _, _, err := n.fetchTemplate(context.Background()); err == nil {
		t.Error("expected error on undecodable template hex")
	}

	rpc.Template = &chain.HeaderTemplate{
		HeaderHex: util.BytesToHex(header.Serialize()),
		Height:    101,
	}
	got, height, err := n.fetchTemplate(context.Background())
	if err != nil {
		t.Fatalf("fetchTemplate: %v", err)
	}
	if height != 101 {
		t.Errorf("height = %d, want 101", height)
	}
	if got.Bits != header.Bits || got.PrevBlock != header.PrevBlock {
		t.Error("template header round trip mismatch")
	}
}

func TestWaitForPeers(t *testing.T) {
	rpc := chain.NewMockRPC()
	rpc.SetConnectionCount(0)
	n := testNode(rpc, nil)

	go func() {
		time.Sleep(100 * time.Millisecond)
		rpc.SetConnectionCount(3)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.waitForPeers(ctx); err != nil {
		t.Fatalf("waitForPeers: %v", err)
	}
}

func TestWaitForSync(t *testing.T) {
	rpc := chain.NewMockRPC()
	n := testNode(rpc, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.waitForSync(ctx); err != nil {
		t.Fatalf("waitForSync on a stable tip: %v", err)
	}

	rpc.GetChainTipErr = errors.New("node starting up")
	shortCtx, shortCancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer shortCancel()
	if err := n.waitForSync(shortCtx); err == nil {
		t.Error("expected context error while tip is unreadable")
	}
}

func TestSubmitWithRetry_RejectionIsFinal(t *testing.T) {
	rpc := chain.NewMockRPC()
	rpc.SubmitBlockHeaderErr = &chain.BlockRejectedError{Reason: "high-hash"}
	n := testNode(rpc, nil)

	start := time.Now()
	err := n.submitWithRetry(context.Background(), solvedHeader(t))
	var rejected *chain.BlockRejectedError
	if !errors.As(err, &rejected) {
		t.Fatalf("err = %v, want BlockRejectedError", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("rejection retried for %v, should fail immediately", elapsed)
	}
}

func TestSubmitWithRetry_NoPeers(t *testing.T) {
	rpc := chain.NewMockRPC()
	rpc.SetConnectionCount(0)
	n := testNode(rpc, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := n.submitWithRetry(ctx, solvedHeader(t)); err == nil {
		t.Error("expected error when node never regains peers")
	}
	if len(rpc.Submitted()) != 0 {
		t.Error("header submitted without peer connections")
	}
}

func TestHandleSolved_DiscardsBadHeader(t *testing.T) {
	rpc := chain.NewMockRPC()
	n := testNode(rpc, nil)

	bad := templateHeader()
	bad.Bits = 0x1d00ffff // hash will not meet this
	n.handleSolved(context.Background(), bad, 101)

	if len(rpc.Submitted()) != 0 {
		t.Error("unverified header was submitted")
	}
}
