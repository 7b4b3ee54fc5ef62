// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package reorg watches for chain reorganizations and rolls the store back
// to the fork point so the sync engine can re-index the canonical branch.
package reorg

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/asi-chain/asi-indexer/chain"
	"github.com/asi-chain/asi-indexer/indexdb"
	"github.com/asi-chain/asi-indexer/log"
	"github.com/asi-chain/asi-indexer/metrics"
	"github.com/asi-chain/asi-indexer/resilience"
)

var logger = log.WithContext("pkg", "reorg")

var (
	metricReorgsHandled = metrics.LazyLoadCounter("reorg_handled_total")
	metricReorgDepth    = metrics.LazyLoadGauge("reorg_last_depth_blocks")
)

const (
	defaultCheckInterval     = 30 * time.Second
	defaultMaxDepth          = 100
	defaultConfirmationDepth = 10
)

// Chain is the canonical-chain surface the monitor reads.
// *chain.Client implements it.
type Chain interface {
	BlocksByHeight(ctx context.Context, start, end int64) ([]*chain.BlockSummary, error)
}

// Options tunes the monitor's window and cadence.
type Options struct {
	CheckInterval time.Duration
	// deepest rollback the monitor will perform on its own
	MaxDepth int64
	// blocks below the head considered settled and skipped
	ConfirmationDepth int64
}

func (o *Options) withDefaults() {
	if o.CheckInterval <= 0 {
		o.CheckInterval = defaultCheckInterval
	}
	if o.MaxDepth <= 0 {
		o.MaxDepth = defaultMaxDepth
	}
	if o.ConfirmationDepth <= 0 {
		o.ConfirmationDepth = defaultConfirmationDepth
	}
}

// Detection describes one discovered reorganization.
type Detection struct {
	ForkPoint           int64
	Depth               int64
	OrphanedBlocks      []string
	AffectedDeployments int64
	AffectedTransfers   int64
	DetectedAt          time.Time
}

// Monitor periodically compares locally indexed hashes against the
// canonical chain and rolls back everything past the first mismatch.
type Monitor struct {
	db       *indexdb.IndexDB
	node     Chain
	nodeExec *resilience.Executor
	dbExec   *resilience.Executor
	opts     Options

	lastVerified int64
}

// NewMonitor builds a monitor over the store and the chain gateway.
func NewMonitor(db *indexdb.IndexDB, node Chain, nodeExec, dbExec *resilience.Executor, opts Options) *Monitor {
	opts.withDefaults()
	return &Monitor{
		db:       db,
		node:     node,
		nodeExec: nodeExec,
		dbExec:   dbExec,
		opts:     opts,
	}
}

// Run loops until the context is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	logger.Info("reorg monitor started",
		"interval", m.opts.CheckInterval,
		"max_depth", m.opts.MaxDepth,
		"confirmation_depth", m.opts.ConfirmationDepth,
	)
	for {
		select {
		case <-ctx.Done():
			logger.Info("reorg monitor stopped")
			return
		case <-time.After(m.opts.CheckInterval):
		}
		if _, err := m.Check(ctx); err != nil && ctx.Err() == nil {
			logger.Error("reorg check failed", "err", err)
		}
	}
}

// Check runs one detection pass. It returns the handled detection, or nil
// when the window is clean (in which case the verified watermark advances).
func (m *Monitor) Check(ctx context.Context) (*Detection, error) {
	var latest int64
	if err := m.dbExec.Execute(ctx, func(context.Context) error {
		var err error
		latest, err = m.db.LastIndexedBlock()
		return err
	}); err != nil {
		return nil, err
	}
	if latest < m.opts.ConfirmationDepth {
		return nil, nil
	}

	checkFrom := latest - m.opts.MaxDepth
	if m.lastVerified > checkFrom {
		checkFrom = m.lastVerified
	}
	checkTo := latest - m.opts.ConfirmationDepth
	if checkFrom >= checkTo {
		return nil, nil
	}

	var canonical []*chain.BlockSummary
	if err := m.nodeExec.Execute(ctx, func(ctx context.Context) error {
		var err error
		canonical, err = m.node.BlocksByHeight(ctx, checkFrom, checkTo)
		return err
	}); err != nil {
		return nil, err
	}
	if len(canonical) == 0 {
		logger.Warn("no canonical blocks for reorg window", "from", checkFrom, "to", checkTo)
		return nil, nil
	}

	detection, err := m.detect(ctx, canonical, checkFrom, checkTo)
	if err != nil {
		return nil, err
	}
	if detection == nil {
		m.lastVerified = checkTo
		return nil, nil
	}

	logger.Warn("chain reorganization detected",
		"fork_point", detection.ForkPoint,
		"depth", detection.Depth,
		"orphaned", len(detection.OrphanedBlocks),
	)
	if detection.Depth > m.opts.MaxDepth {
		logger.Crit("reorg deeper than rollback limit, manual intervention required",
			"fork_point", detection.ForkPoint,
			"depth", detection.Depth,
			"max_depth", m.opts.MaxDepth,
		)
		return detection, nil
	}
	if err := m.Handle(ctx, detection); err != nil {
		return detection, err
	}
	return detection, nil
}

// detect compares local vs canonical hashes over [from, to] and builds the
// detection record from the first mismatch.
func (m *Monitor) detect(ctx context.Context, canonical []*chain.BlockSummary, from, to int64) (*Detection, error) {
	var local []*indexdb.BlockRef
	if err := m.dbExec.Execute(ctx, func(context.Context) error {
		var err error
		local, err = m.db.BlocksInRange(from, to)
		return err
	}); err != nil {
		return nil, err
	}

	localByNumber := make(map[int64]*indexdb.BlockRef, len(local))
	for _, ref := range local {
		localByNumber[ref.Number] = ref
	}
	canonicalByNumber := make(map[int64]string, len(canonical))
	for _, b := range canonical {
		canonicalByNumber[b.BlockNumber] = b.BlockHash
	}

	forkPoint := int64(-1)
	for n := from; n <= to; n++ {
		ref, haveLocal := localByNumber[n]
		hash, haveCanonical := canonicalByNumber[n]
		if !haveLocal || !haveCanonical || hash == "" {
			continue
		}
		if ref.Hash != hash {
			forkPoint = n
			break
		}
	}
	if forkPoint < 0 {
		return nil, nil
	}

	var orphaned []string
	for n := forkPoint; n <= to; n++ {
		if ref, ok := localByNumber[n]; ok {
			orphaned = append(orphaned, ref.Hash)
		}
	}
	return &Detection{
		ForkPoint:      forkPoint,
		Depth:          to - forkPoint + 1,
		OrphanedBlocks: orphaned,
		DetectedAt:     time.Now().UTC(),
	}, nil
}

// Handle rolls back everything from the fork point in one transaction:
// affected-row counts, leaves-first deletes, checkpoint rewind to
// fork-1 and the audit row all commit or none do.
func (m *Monitor) Handle(ctx context.Context, d *Detection) error {
	if err := m.dbExec.Execute(ctx, func(context.Context) error {
		return m.db.Transact(func(tx *sql.Tx) error {
			var err error
			// the store is authoritative for what gets rolled back; the
			// detection window may stop short of the newest indexed block
			d.OrphanedBlocks, err = m.db.BlockHashesFromTx(tx, d.ForkPoint)
			if err != nil {
				return errors.Wrap(err, "collect orphaned hashes")
			}
			orphanedJSON, err := json.Marshal(d.OrphanedBlocks)
			if err != nil {
				return err
			}
			d.AffectedDeployments, err = m.db.CountDeploymentsFromTx(tx, d.ForkPoint)
			if err != nil {
				return errors.Wrap(err, "count deployments")
			}
			d.AffectedTransfers, err = m.db.CountTransfersFromTx(tx, d.ForkPoint)
			if err != nil {
				return errors.Wrap(err, "count transfers")
			}
			if err := m.db.DeleteFromBlock(tx, d.ForkPoint); err != nil {
				return errors.Wrap(err, "rollback orphaned data")
			}
			if err := m.db.SetLastIndexedBlockTx(tx, d.ForkPoint-1); err != nil {
				return errors.Wrap(err, "rewind checkpoint")
			}
			return m.db.InsertReorgRecord(tx, &indexdb.ReorgRecord{
				ForkPoint:           d.ForkPoint,
				Depth:               d.Depth,
				OrphanedBlocks:      string(orphanedJSON),
				AffectedDeployments: d.AffectedDeployments,
				AffectedTransfers:   d.AffectedTransfers,
				DetectedAt:          d.DetectedAt.Format(time.RFC3339),
			})
		})
	}); err != nil {
		return err
	}

	if m.lastVerified >= d.ForkPoint {
		m.lastVerified = d.ForkPoint - 1
	}
	metricReorgsHandled().Add(1)
	metricReorgDepth().Set(d.Depth)
	logger.Info("reorganization handled",
		"fork_point", d.ForkPoint,
		"depth", d.Depth,
		"deployments_rolled_back", d.AffectedDeployments,
		"transfers_rolled_back", d.AffectedTransfers,
	)
	return nil
}

// IntegrityIssue is one finding of AuditIntegrity.
type IntegrityIssue struct {
	Type   string   `json:"type"`
	Blocks []int64  `json:"blocks,omitempty"`
	Hashes []string `json:"hashes,omitempty"`
}

// IntegrityReport summarizes a chain integrity audit over a block range.
type IntegrityReport struct {
	StartBlock int64            `json:"start_block"`
	EndBlock   int64            `json:"end_block"`
	Valid      bool             `json:"valid"`
	Issues     []IntegrityIssue `json:"issues"`
	CheckedAt  string           `json:"checked_at"`
}

// AuditIntegrity checks the stored chain over [start, end] for gaps and
// broken parent links. Read-only.
func (m *Monitor) AuditIntegrity(ctx context.Context, start, end int64) (*IntegrityReport, error) {
	report := &IntegrityReport{
		StartBlock: start,
		EndBlock:   end,
		CheckedAt:  time.Now().UTC().Format(time.RFC3339),
	}

	if err := m.dbExec.Execute(ctx, func(context.Context) error {
		missing, err := m.db.MissingBlockNumbers(start, end)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			report.Issues = append(report.Issues, IntegrityIssue{
				Type:   "missing_blocks",
				Blocks: missing,
			})
		}
		unresolved, err := m.db.UnresolvedParents(start, end)
		if err != nil {
			return err
		}
		if len(unresolved) > 0 {
			issue := IntegrityIssue{Type: "orphaned_parent_references"}
			for _, ref := range unresolved {
				issue.Blocks = append(issue.Blocks, ref.Number)
				issue.Hashes = append(issue.Hashes, ref.ParentHash)
			}
			report.Issues = append(report.Issues, issue)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	report.Valid = len(report.Issues) == 0
	return report, nil
}

// LastVerified reports the verified watermark, for the status endpoint.
func (m *Monitor) LastVerified() int64 { return m.lastVerified }
