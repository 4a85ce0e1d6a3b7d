// Command bleminer is a CPU miner for BitcoinLE. It polls a node for
// header templates over JSON-RPC, searches the nonce space across all
// cores, and submits solved headers back.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/klauspost/cpuid/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/bitcoinle/miner-go/internal/chain"
	"github.com/bitcoinle/miner-go/internal/journal"
	"github.com/bitcoinle/miner-go/internal/metrics"
	"github.com/bitcoinle/miner-go/internal/miner"
	"github.com/bitcoinle/miner-go/internal/node"
)

func main() {
	var (
		rpcURL      = flag.String("rpc-url", "http://127.0.0.1:8331", "node JSON-RPC endpoint")
		rpcUser     = flag.String("rpc-user", "", "JSON-RPC username")
		rpcPass     = flag.String("rpc-pass", "", "JSON-RPC password")
		threads     = flag.Int("threads", runtime.NumCPU(), "worker goroutines")
		lanes       = flag.Int("lanes", 3, "hash lanes per worker batch (1-4)")
		journalPath = flag.String("journal", "", "path to solved block journal db (empty disables)")
		metricsAddr = flag.String("metrics-addr", "", "listen address for Prometheus metrics (empty disables)")
		noQuick     = flag.Bool("no-quick-filter", false, "disable the 32-bit candidate prefilter")
		debug       = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	logger, err := buildLogger(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("bleminer starting",
		zap.Int("threads", *threads),
		zap.Int("lanes", *lanes),
		zap.String("cpu", cpuid.CPU.BrandName),
		zap.Bool("sha_ext", cpuid.CPU.Supports(cpuid.SHA)),
		zap.Bool("avx2", cpuid.CPU.Supports(cpuid.AVX2)),
	)

	rpc := chain.NewRPCClient(*rpcURL, *rpcUser, *rpcPass)
	coord := miner.New(rpc, miner.Config{
		Threads:            *threads,
		Lanes:              *lanes,
		DisableQuickFilter: *noQuick,
	}, logger)

	var j *journal.Journal
	if *journalPath != "" {
		j, err = journal.Open(*journalPath, logger)
		if err != nil {
			logger.Fatal("open journal", zap.Error(err))
		}
		defer j.Close()
		logger.Info("journal open", zap.String("path", *journalPath), zap.Int("solved_blocks", j.Count()))
	}

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", zap.String("addr", *metricsAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		defer srv.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutdown requested, stopping workers")
		coord.RequestInterrupt()
	}()

	n := node.New(rpc, coord, j, logger)
	if err := n.Run(ctx); err != nil && err != context.Canceled {
		logger.Fatal("miner stopped", zap.Error(err))
	}
	logger.Info("bleminer stopped")
}

func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapEncodeTime
	return cfg.Build()
}

func zapEncodeTime(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05"))
}
