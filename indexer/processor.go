// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package indexer turns finalized chain blocks into store rows. The
// Processor handles one block at a time; the Engine drives the sync loop
// and the auxiliary refresh loops around it.
package indexer

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"

	"github.com/pkg/errors"

	"github.com/asi-chain/asi-indexer/chain"
	"github.com/asi-chain/asi-indexer/indexdb"
	"github.com/asi-chain/asi-indexer/log"
	"github.com/asi-chain/asi-indexer/metrics"
	"github.com/asi-chain/asi-indexer/resilience"
	"github.com/asi-chain/asi-indexer/rholang"
)

var logger = log.WithContext("pkg", "indexer")

var (
	metricBlocksIndexed      = metrics.LazyLoadCounter("indexer_blocks_indexed_total")
	metricTransfersExtracted = metrics.LazyLoadCounter("indexer_transfers_extracted_total")
	metricHeadLag            = metrics.LazyLoadGauge("indexer_head_lag_blocks")
)

const (
	defaultSigAlgorithm = "secp256k1"
	defaultPhloPrice    = 1
	defaultPhloLimit    = 1000000
)

// Node is the chain surface the indexer drives. *chain.Client implements it.
type Node interface {
	Head(ctx context.Context) (*chain.BlockSummary, error)
	BlocksByHeight(ctx context.Context, start, end int64) ([]*chain.BlockSummary, error)
	BlockDetails(ctx context.Context, blockHash string) (*chain.BlockDetail, error)
	DeployInfo(ctx context.Context, deployID string) (*chain.DeployDetail, error)
	Bonds(ctx context.Context) ([]*chain.Bond, error)
	ActiveValidators(ctx context.Context) ([]*chain.Bond, error)
	EpochInfo(ctx context.Context) (*chain.EpochInfo, error)
	NetworkConsensus(ctx context.Context) (*chain.ConsensusSnapshot, error)
	MainChain(ctx context.Context, depth int) ([]*chain.BlockSummary, error)
}

// Processor writes one block and everything it owns as a single
// transaction. Re-processing an already indexed block is a no-op.
type Processor struct {
	db       *indexdb.IndexDB
	node     Node
	nodeExec *resilience.Executor
	dbExec   *resilience.Executor

	mu sync.Mutex
	// block hash -> justification validator keys whose junction insert
	// failed post-commit; drained by RetryPendingJustifications
	pendingJustifications map[string][]string

	genesisOnce  sync.Once
	genesisBonds []*chain.Bond
}

// NewProcessor wires a processor over the store and the node gateway.
func NewProcessor(db *indexdb.IndexDB, node Node, nodeExec, dbExec *resilience.Executor) *Processor {
	return &Processor{
		db:                    db,
		node:                  node,
		nodeExec:              nodeExec,
		dbExec:                dbExec,
		pendingJustifications: make(map[string][]string),
	}
}

// Process indexes one block with full details. The block row, its
// validators, deployments, transfers and (for block 0) the genesis rows
// commit atomically; the justification junction is filled afterwards in
// its own transaction.
func (p *Processor) Process(ctx context.Context, detail *chain.BlockDetail) error {
	info := &detail.BlockInfo
	if info.BlockHash == "" {
		return errors.New("block detail missing hash")
	}

	var exists bool
	if err := p.dbExec.Execute(ctx, func(context.Context) error {
		var err error
		exists, err = p.db.HasBlock(info.BlockHash)
		return err
	}); err != nil {
		return err
	}
	if exists {
		logger.Debug("block already indexed", "number", info.BlockNumber)
		return nil
	}

	// enrichment runs before the transaction so CLI latency never holds
	// a db lock
	deployments, transfers := p.buildDeployments(ctx, info, detail.Deploys)

	var genesis *genesisRows
	if info.BlockNumber == 0 {
		genesis = p.buildGenesis(ctx, info, detail.Deploys)
	}

	block, err := blockRow(info, int64(len(detail.Deploys)))
	if err != nil {
		return err
	}

	if err := p.dbExec.Execute(ctx, func(context.Context) error {
		return p.db.Transact(func(tx *sql.Tx) error {
			if err := p.db.InsertBlock(tx, block); err != nil {
				return errors.Wrap(err, "insert block")
			}
			for _, bond := range info.Bonds {
				if bond.Validator == "" || bond.Stake <= 0 {
					continue
				}
				if err := p.db.UpsertValidator(tx, bond.Validator, bond.Stake, info.BlockNumber); err != nil {
					return errors.Wrap(err, "upsert validator")
				}
				if err := p.db.InsertValidatorBond(tx, &indexdb.ValidatorBond{
					BlockHash:          info.BlockHash,
					BlockNumber:        info.BlockNumber,
					ValidatorPublicKey: bond.Validator,
					Stake:              bond.Stake,
				}); err != nil {
					return errors.Wrap(err, "insert validator bond")
				}
			}
			for _, d := range deployments {
				if err := p.db.InsertDeployment(tx, d); err != nil {
					return errors.Wrap(err, "insert deployment")
				}
			}
			for _, t := range transfers {
				if err := p.db.InsertTransfer(tx, t); err != nil {
					return errors.Wrap(err, "insert transfer")
				}
			}
			if genesis != nil {
				if err := genesis.insert(p.db, tx); err != nil {
					return errors.Wrap(err, "insert genesis rows")
				}
			}
			return nil
		})
	}); err != nil {
		return err
	}

	metricBlocksIndexed().Add(1)
	metricTransfersExtracted().Add(int64(len(transfers)))
	logger.Info("block indexed",
		"number", info.BlockNumber,
		"deployments", len(detail.Deploys),
		"transfers", len(transfers),
		"genesis", genesis != nil,
	)

	p.insertBlockValidators(info)
	return nil
}

// blockRow maps a chain block header onto a store row. Bonds and
// justifications are kept verbatim as JSON for the reorg audit trail.
func blockRow(info *chain.BlockInfo, deployCount int64) (*indexdb.Block, error) {
	bonds, err := json.Marshal(info.Bonds)
	if err != nil {
		return nil, err
	}
	justifications, err := json.Marshal(info.Justifications)
	if err != nil {
		return nil, err
	}
	return &indexdb.Block{
		Number:             info.BlockNumber,
		Hash:               info.BlockHash,
		ParentHash:         info.ParentHash(),
		Timestamp:          info.Timestamp,
		Proposer:           info.Sender,
		PreStateHash:       info.PreStateHash,
		StateRootHash:      info.PostStateHash,
		FinalizationStatus: "finalized",
		BondsMap:           string(bonds),
		Justifications:     string(justifications),
		FaultTolerance:     info.FaultTolerance,
		SeqNum:             info.SeqNum,
		Sig:                info.Sig,
		SigAlgorithm:       info.SigAlgorithm,
		ShardID:            info.ShardID,
		ExtraBytes:         info.ExtraBytes,
		Version:            info.Version,
		DeploymentCount:    deployCount,
	}, nil
}

// buildDeployments enriches each deploy through get-deploy and derives its
// transfers. Enrichment failures degrade to the base fields.
func (p *Processor) buildDeployments(ctx context.Context, info *chain.BlockInfo, deploys []chain.DeployData) ([]*indexdb.Deployment, []*indexdb.Transfer) {
	var (
		deployments []*indexdb.Deployment
		transfers   []*indexdb.Transfer
	)
	for i := range deploys {
		d := deploys[i]
		if d.Sig == "" {
			logger.Warn("skipping deploy without signature", "block", info.BlockNumber)
			continue
		}
		status := d.Status
		var enriched *chain.DeployDetail
		if err := p.nodeExec.Execute(ctx, func(ctx context.Context) error {
			var err error
			enriched, err = p.node.DeployInfo(ctx, d.Sig)
			return err
		}); err != nil {
			logger.Debug("deploy enrichment unavailable, using base fields", "deploy", d.Sig, "err", err)
		} else {
			e := enriched.DeployInfo
			if e.SigAlgorithm != "" {
				d.SigAlgorithm = e.SigAlgorithm
			}
			if e.SeqNum != 0 {
				d.SeqNum = e.SeqNum
			}
			if e.ShardID != "" {
				d.ShardID = e.ShardID
			}
			if e.Timestamp != 0 {
				d.Timestamp = e.Timestamp
			}
			if enriched.Status != "" {
				status = enriched.Status
			}
		}
		if status == "" {
			status = "included"
		}
		if d.SigAlgorithm == "" {
			d.SigAlgorithm = defaultSigAlgorithm
		}
		if d.PhloPrice == 0 {
			d.PhloPrice = defaultPhloPrice
		}
		if d.PhloLimit == 0 {
			d.PhloLimit = defaultPhloLimit
		}
		if d.Timestamp == 0 {
			d.Timestamp = info.Timestamp
		}

		errored := d.Errored || d.SystemDeployError != ""
		deployments = append(deployments, &indexdb.Deployment{
			DeployID:              d.Sig,
			BlockHash:             info.BlockHash,
			BlockNumber:           info.BlockNumber,
			Deployer:              d.Deployer,
			Term:                  d.Term,
			Timestamp:             d.Timestamp,
			Sig:                   d.Sig,
			SigAlgorithm:          d.SigAlgorithm,
			PhloPrice:             d.PhloPrice,
			PhloLimit:             d.PhloLimit,
			PhloCost:              d.Cost,
			ValidAfterBlockNumber: d.ValidAfterBlockNumber,
			Errored:               errored,
			ErrorMessage:          d.SystemDeployError,
			DeploymentType:        rholang.Classify(d.Term),
			SeqNum:                d.SeqNum,
			ShardID:               d.ShardID,
			Status:                status,
		})

		for _, t := range rholang.Extract(d.Term, d.Deployer, info.BlockNumber, d.Sig, errored) {
			transfers = append(transfers, &indexdb.Transfer{
				DeployID:    t.DeployID,
				BlockNumber: t.BlockNumber,
				FromAddress: t.FromAddress,
				ToAddress:   t.ToAddress,
				AmountDust:  t.AmountDust,
				AmountToken: t.AmountToken,
				Status:      t.Status,
				Timestamp:   d.Timestamp,
			})
		}
	}
	return deployments, transfers
}

// insertBlockValidators fills the justification junction post-commit. A
// failure is queued and retried on a later tick.
func (p *Processor) insertBlockValidators(info *chain.BlockInfo) {
	keys := make([]string, 0, len(info.Justifications))
	for _, j := range info.Justifications {
		if j.Validator != "" {
			keys = append(keys, j.Validator)
		}
	}
	if len(keys) == 0 {
		return
	}
	if err := p.db.InsertBlockValidators(info.BlockHash, keys); err != nil {
		logger.Warn("block validators insert failed, queued for retry",
			"block", info.BlockNumber, "err", err)
		p.mu.Lock()
		p.pendingJustifications[info.BlockHash] = keys
		p.mu.Unlock()
	}
}

// RetryPendingJustifications drains the queue of failed junction inserts.
func (p *Processor) RetryPendingJustifications() {
	p.mu.Lock()
	pending := p.pendingJustifications
	p.pendingJustifications = make(map[string][]string)
	p.mu.Unlock()

	for blockHash, keys := range pending {
		if err := p.db.InsertBlockValidators(blockHash, keys); err != nil {
			logger.Warn("block validators retry failed", "hash", blockHash, "err", err)
			p.mu.Lock()
			p.pendingJustifications[blockHash] = keys
			p.mu.Unlock()
		}
	}
}

// PendingJustifications reports the retry queue length.
func (p *Processor) PendingJustifications() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pendingJustifications)
}
