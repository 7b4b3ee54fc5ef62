// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package indexer

import (
	"context"
	"time"

	"github.com/asi-chain/asi-indexer/chain"
	"github.com/asi-chain/asi-indexer/indexdb"
)

const (
	defaultSyncInterval    = 5 * time.Second
	defaultBatchSize       = 100
	defaultInterBlockDelay = 100 * time.Millisecond

	epochCheckGateBlocks = 100
	statsGateBlocks      = 50
	chainVerifyGate      = 500
	chainVerifyDepth     = 20

	defaultEpochLength      = 10000
	defaultQuarantineLength = 50000

	statusLogEveryCycles = 10
)

// Options tunes the engine's loop cadence.
type Options struct {
	SyncInterval    time.Duration
	BatchSize       int64
	StartFromBlock  int64
	InterBlockDelay time.Duration

	// health notifications, both optional
	OnBlockIndexed func(number int64)
	OnSyncStatus   func(synced bool)
}

func (o *Options) withDefaults() {
	if o.SyncInterval <= 0 {
		o.SyncInterval = defaultSyncInterval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = defaultBatchSize
	}
	// zero means default; pass a negative delay to disable
	if o.InterBlockDelay == 0 {
		o.InterBlockDelay = defaultInterBlockDelay
	}
}

// Engine drives the sync loop: discover head, fetch a batch, process each
// block through the Processor, advance the checkpoint, then run the
// auxiliary refresh loops.
type Engine struct {
	proc *Processor
	opts Options

	cycle           int64
	lastEpochCheck  int64
	lastStatsCheck  int64
	lastChainVerify int64
}

// NewEngine wraps a processor in the tick loop.
func NewEngine(proc *Processor, opts Options) *Engine {
	opts.withDefaults()
	return &Engine{proc: proc, opts: opts, lastChainVerify: -1}
}

// Run loops until the context is cancelled. Individual cycle errors are
// logged and never fatal; the next tick retries.
func (e *Engine) Run(ctx context.Context) {
	logger.Info("sync engine started",
		"interval", e.opts.SyncInterval,
		"batch_size", e.opts.BatchSize,
	)
	for {
		e.cycle++
		e.runCycle(ctx)

		select {
		case <-ctx.Done():
			logger.Info("sync engine stopped")
			return
		case <-time.After(e.opts.SyncInterval):
		}
	}
}

func (e *Engine) runCycle(ctx context.Context) {
	if err := e.syncBlocks(ctx); err != nil && ctx.Err() == nil {
		logger.Error("sync cycle failed", "err", err)
	}
	e.proc.RetryPendingJustifications()
	e.refreshValidators(ctx)
	e.checkEpochTransitions(ctx)
	e.updateNetworkStats(ctx)
	e.verifyMainChain(ctx)

	if e.cycle%statusLogEveryCycles == 0 {
		e.logStatus(ctx)
	}
}

// syncBlocks runs one batch: blocks are processed strictly in order and
// the checkpoint only ever covers a contiguous prefix of successes.
func (e *Engine) syncBlocks(ctx context.Context) error {
	last, err := e.lastIndexed(ctx)
	if err != nil {
		return err
	}

	var head *chain.BlockSummary
	if err := e.proc.nodeExec.Execute(ctx, func(ctx context.Context) error {
		var err error
		head, err = e.proc.node.Head(ctx)
		return err
	}); err != nil {
		return err
	}
	metricHeadLag().Set(head.BlockNumber - last)
	if e.opts.OnSyncStatus != nil {
		e.opts.OnSyncStatus(last >= head.BlockNumber)
	}

	if last >= head.BlockNumber {
		logger.Debug("already up to date", "last_indexed", last, "head", head.BlockNumber)
		return nil
	}

	start := last + 1
	if last < 0 {
		start = e.opts.StartFromBlock
	}
	end := start + e.opts.BatchSize - 1
	if end > head.BlockNumber {
		end = head.BlockNumber
	}

	logger.Info("syncing blocks",
		"start", start, "end", end,
		"behind", head.BlockNumber-last,
	)

	var summaries []*chain.BlockSummary
	if err := e.proc.nodeExec.Execute(ctx, func(ctx context.Context) error {
		var err error
		summaries, err = e.proc.node.BlocksByHeight(ctx, start, end)
		return err
	}); err != nil {
		return err
	}
	if len(summaries) == 0 {
		logger.Warn("no blocks returned for range", "start", start, "end", end)
		return nil
	}

	processed := 0
	for _, summary := range summaries {
		if summary.BlockHash == "" {
			logger.Warn("block summary missing hash", "number", summary.BlockNumber)
			break
		}
		var detail *chain.BlockDetail
		if err := e.proc.nodeExec.Execute(ctx, func(ctx context.Context) error {
			var err error
			detail, err = e.proc.node.BlockDetails(ctx, summary.BlockHash)
			return err
		}); err != nil {
			logger.Error("block detail fetch failed, stopping batch",
				"number", summary.BlockNumber, "err", err)
			break
		}
		if err := e.proc.Process(ctx, detail); err != nil {
			logger.Error("block processing failed, stopping batch",
				"number", summary.BlockNumber, "err", err)
			break
		}
		// checkpoint advance is its own transaction after the commit
		if err := e.proc.dbExec.Execute(ctx, func(context.Context) error {
			return e.proc.db.SetLastIndexedBlock(summary.BlockNumber)
		}); err != nil {
			logger.Error("checkpoint advance failed, stopping batch",
				"number", summary.BlockNumber, "err", err)
			break
		}
		processed++
		if e.opts.OnBlockIndexed != nil {
			e.opts.OnBlockIndexed(summary.BlockNumber)
		}

		if e.opts.InterBlockDelay > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(e.opts.InterBlockDelay):
			}
		}
	}

	if processed > 0 {
		logger.Info("sync batch complete",
			"processed", processed,
			"last_indexed", start+int64(processed)-1,
			"remaining", head.BlockNumber-(start+int64(processed)-1),
		)
	}
	return nil
}

// refreshValidators reconciles the validator registry against the current
// bonds and active set every tick.
func (e *Engine) refreshValidators(ctx context.Context) {
	var bonds, active []*chain.Bond
	if err := e.proc.nodeExec.Execute(ctx, func(ctx context.Context) error {
		var err error
		bonds, err = e.proc.node.Bonds(ctx)
		return err
	}); err != nil {
		logger.Warn("validator refresh: bonds unavailable", "err", err)
		return
	}
	if len(bonds) == 0 {
		return
	}
	if err := e.proc.nodeExec.Execute(ctx, func(ctx context.Context) error {
		var err error
		active, err = e.proc.node.ActiveValidators(ctx)
		return err
	}); err != nil {
		logger.Warn("validator refresh: active set unavailable", "err", err)
	}
	activeSet := make(map[string]bool, len(active))
	for _, v := range active {
		activeSet[v.Validator] = true
	}

	current, err := e.lastIndexed(ctx)
	if err != nil {
		logger.Warn("validator refresh: checkpoint unavailable", "err", err)
		return
	}

	for _, bond := range bonds {
		status := "bonded"
		if activeSet[bond.Validator] {
			status = "active"
		}
		if err := e.proc.dbExec.Execute(ctx, func(context.Context) error {
			return e.proc.db.RefreshValidator(bond.Validator, bond.Stake, current, status)
		}); err != nil {
			logger.Warn("validator refresh failed", "validator", bond.Validator, "err", err)
		}
	}
	logger.Debug("validator states updated", "bonded", len(bonds), "active", len(active))
}

// checkEpochTransitions records epoch boundaries, at most once per 100
// indexed blocks to bound CLI traffic.
func (e *Engine) checkEpochTransitions(ctx context.Context) {
	current, err := e.lastIndexed(ctx)
	if err != nil || current-e.lastEpochCheck < epochCheckGateBlocks {
		return
	}
	e.lastEpochCheck = current

	var info *chain.EpochInfo
	if err := e.proc.nodeExec.Execute(ctx, func(ctx context.Context) error {
		var err error
		info, err = e.proc.node.EpochInfo(ctx)
		return err
	}); err != nil {
		logger.Warn("epoch info unavailable", "err", err)
		return
	}
	epochLength := info.EpochLength
	if epochLength <= 0 {
		epochLength = defaultEpochLength
	}
	quarantine := info.QuarantineLength
	if quarantine <= 0 {
		quarantine = defaultQuarantineLength
	}

	var active []*chain.Bond
	if err := e.proc.nodeExec.Execute(ctx, func(ctx context.Context) error {
		var err error
		active, err = e.proc.node.ActiveValidators(ctx)
		return err
	}); err != nil {
		logger.Warn("active validators unavailable for epoch record", "err", err)
	}

	startBlock := current - (epochLength - info.BlocksUntilNextEpoch)
	if err := e.proc.dbExec.Execute(ctx, func(context.Context) error {
		return e.proc.db.InsertEpochTransition(&indexdb.EpochTransition{
			EpochNumber:      info.CurrentEpoch,
			StartBlock:       startBlock,
			EndBlock:         startBlock + epochLength - 1,
			ActiveValidators: int64(len(active)),
			QuarantineLength: quarantine,
		})
	}); err != nil {
		logger.Warn("epoch transition record failed", "epoch", info.CurrentEpoch, "err", err)
		return
	}
	logger.Info("epoch transition recorded",
		"epoch", info.CurrentEpoch,
		"start", startBlock,
		"end", startBlock+epochLength-1,
	)
}

// updateNetworkStats snapshots consensus health every 50 indexed blocks.
func (e *Engine) updateNetworkStats(ctx context.Context) {
	current, err := e.lastIndexed(ctx)
	if err != nil || current-e.lastStatsCheck < statsGateBlocks {
		return
	}
	e.lastStatsCheck = current

	var snap *chain.ConsensusSnapshot
	if err := e.proc.nodeExec.Execute(ctx, func(ctx context.Context) error {
		var err error
		snap, err = e.proc.node.NetworkConsensus(ctx)
		return err
	}); err != nil {
		logger.Warn("network consensus unavailable", "err", err)
		return
	}

	blockNumber := snap.CurrentBlock
	if blockNumber == 0 {
		blockNumber = current
	}
	if err := e.proc.dbExec.Execute(ctx, func(context.Context) error {
		return e.proc.db.InsertNetworkStats(&indexdb.NetworkStats{
			BlockNumber:            blockNumber,
			TotalValidators:        snap.TotalBondedValidators,
			ActiveValidators:       snap.ActiveValidators,
			ValidatorsInQuarantine: snap.ValidatorsInQuarantine,
			ConsensusParticipation: snap.ParticipationRate,
			ConsensusStatus:        snap.Status,
		})
	}); err != nil {
		logger.Warn("network stats record failed", "err", err)
		return
	}
	logger.Debug("network stats updated",
		"participation", snap.ParticipationRate,
		"status", snap.Status,
	)
}

// verifyMainChain spot-checks the stored chain against the canonical one
// every 500 indexed blocks. Mismatches are logged; the reorg monitor owns
// the rollback.
func (e *Engine) verifyMainChain(ctx context.Context) {
	current, err := e.lastIndexed(ctx)
	if err != nil || current <= 0 || current%chainVerifyGate != 0 || current == e.lastChainVerify {
		return
	}
	e.lastChainVerify = current

	var canonical []*chain.BlockSummary
	if err := e.proc.nodeExec.Execute(ctx, func(ctx context.Context) error {
		var err error
		canonical, err = e.proc.node.MainChain(ctx, chainVerifyDepth)
		return err
	}); err != nil {
		logger.Warn("main chain unavailable for verification", "err", err)
		return
	}

	for _, summary := range canonical {
		if summary.BlockHash == "" {
			continue
		}
		var stored *indexdb.Block
		if err := e.proc.dbExec.Execute(ctx, func(context.Context) error {
			var err error
			stored, err = e.proc.db.BlockByNumber(summary.BlockNumber)
			return err
		}); err != nil {
			logger.Warn("main chain verification read failed", "number", summary.BlockNumber, "err", err)
			continue
		}
		if stored == nil || stored.Hash != summary.BlockHash {
			logger.Warn("main chain mismatch detected",
				"number", summary.BlockNumber,
				"expected_hash", summary.BlockHash,
			)
		}
	}
	logger.Debug("main chain verification complete", "blocks_checked", len(canonical))
}

func (e *Engine) lastIndexed(ctx context.Context) (int64, error) {
	var last int64
	err := e.proc.dbExec.Execute(ctx, func(context.Context) error {
		var err error
		last, err = e.proc.db.LastIndexedBlock()
		return err
	})
	return last, err
}

func (e *Engine) logStatus(ctx context.Context) {
	last, err := e.lastIndexed(ctx)
	if err != nil {
		return
	}
	logger.Info("indexer status",
		"cycle", e.cycle,
		"last_indexed", last,
		"pending_justifications", e.proc.PendingJustifications(),
		"node_executor", e.proc.nodeExec.Stats().Breaker,
		"db_executor", e.proc.dbExec.Stats().Breaker,
	)
}
