// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package reorg

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asi-chain/asi-indexer/chain"
	"github.com/asi-chain/asi-indexer/indexdb"
	"github.com/asi-chain/asi-indexer/resilience"
)

type stubChain struct {
	canonical []*chain.BlockSummary
}

func (s *stubChain) BlocksByHeight(_ context.Context, start, end int64) ([]*chain.BlockSummary, error) {
	var out []*chain.BlockSummary
	for _, b := range s.canonical {
		if b.BlockNumber >= start && b.BlockNumber <= end {
			out = append(out, b)
		}
	}
	return out, nil
}

func testExecutor(name string) *resilience.Executor {
	return resilience.NewExecutor(name,
		&resilience.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, ExponentialBase: 2},
		&resilience.CircuitBreaker{FailureThreshold: 1000, RecoveryTimeout: time.Second, SuccessThreshold: 1},
		nil,
	)
}

func newTestMonitor(t *testing.T, node Chain, opts Options) (*Monitor, *indexdb.IndexDB) {
	t.Helper()
	db, err := indexdb.New(t.TempDir() + "/index.db")
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return NewMonitor(db, node, testExecutor("node"), testExecutor("db"), opts), db
}

func seedChain(t *testing.T, db *indexdb.IndexDB, upTo int64) {
	t.Helper()
	require.NoError(t, db.Transact(func(tx *sql.Tx) error {
		for n := int64(0); n <= upTo; n++ {
			b := &indexdb.Block{
				Number:             n,
				Hash:               fmt.Sprintf("hash-%d", n),
				ParentHash:         fmt.Sprintf("hash-%d", n-1),
				Timestamp:          1718000000000 + n,
				FinalizationStatus: "finalized",
				BondsMap:           "[]",
				Justifications:     "[]",
			}
			if err := db.InsertBlock(tx, b); err != nil {
				return err
			}
			if err := db.InsertDeployment(tx, &indexdb.Deployment{
				DeployID:       fmt.Sprintf("deploy-%d", n),
				BlockHash:      b.Hash,
				BlockNumber:    n,
				Deployer:       "dep",
				Term:           "Nil",
				Sig:            fmt.Sprintf("deploy-%d", n),
				DeploymentType: "smart_contract",
				Status:         "included",
			}); err != nil {
				return err
			}
			if err := db.InsertTransfer(tx, &indexdb.Transfer{
				DeployID:    fmt.Sprintf("deploy-%d", n),
				BlockNumber: n,
				FromAddress: "1111from",
				ToAddress:   "1111to",
				AmountDust:  1,
				AmountToken: "0.00000001",
				Status:      "success",
			}); err != nil {
				return err
			}
		}
		return nil
	}))
	require.NoError(t, db.SetLastIndexedBlock(upTo))
}

// canonicalWithFork mirrors the local chain up to fork-1 then diverges.
func canonicalWithFork(upTo, fork int64) []*chain.BlockSummary {
	var out []*chain.BlockSummary
	for n := int64(0); n <= upTo; n++ {
		hash := fmt.Sprintf("hash-%d", n)
		if n >= fork {
			hash = fmt.Sprintf("canon-%d", n)
		}
		out = append(out, &chain.BlockSummary{BlockNumber: n, BlockHash: hash})
	}
	return out
}

func TestCheckCleanWindowAdvancesWatermark(t *testing.T) {
	node := &stubChain{canonical: canonicalWithFork(20, 99)}
	m, db := newTestMonitor(t, node, Options{ConfirmationDepth: 2})
	seedChain(t, db, 20)

	d, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Equal(t, int64(18), m.LastVerified())
}

func TestCheckDetectsAndHandlesReorg(t *testing.T) {
	node := &stubChain{canonical: canonicalWithFork(20, 18)}
	m, db := newTestMonitor(t, node, Options{ConfirmationDepth: 1})
	seedChain(t, db, 20)

	d, err := m.Check(context.Background())
	require.NoError(t, err)
	require.NotNil(t, d)
	assert.Equal(t, int64(18), d.ForkPoint)
	assert.Equal(t, int64(2), d.Depth)
	// the store, not the detection window, decides what was orphaned:
	// block 20 sits above the confirmation window yet is rolled back too
	assert.Equal(t, []string{"hash-18", "hash-19", "hash-20"}, d.OrphanedBlocks)

	// everything at or above the fork point is gone
	count, err := db.CountBlocks()
	require.NoError(t, err)
	assert.Equal(t, int64(18), count)

	orphan, err := db.BlockByNumber(18)
	require.NoError(t, err)
	assert.Nil(t, orphan)

	survivor, err := db.BlockByNumber(17)
	require.NoError(t, err)
	require.NotNil(t, survivor)

	last, err := db.LastIndexedBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(17), last)

	gone, err := db.DeploymentByID("deploy-19")
	require.NoError(t, err)
	assert.Nil(t, gone)

	records, err := db.ReorgHistory(5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(18), records[0].ForkPoint)
	assert.Equal(t, int64(2), records[0].Depth)
	assert.Equal(t, int64(3), records[0].AffectedDeployments)
	assert.Equal(t, int64(3), records[0].AffectedTransfers)
	assert.Contains(t, records[0].OrphanedBlocks, "hash-18")
	assert.Contains(t, records[0].OrphanedBlocks, "hash-20")
}

func TestCheckSkipsShallowChain(t *testing.T) {
	node := &stubChain{}
	m, db := newTestMonitor(t, node, Options{ConfirmationDepth: 10})
	seedChain(t, db, 5)

	d, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d)
	assert.Zero(t, m.LastVerified())
}

func TestCheckEmptyStore(t *testing.T) {
	node := &stubChain{}
	m, _ := newTestMonitor(t, node, Options{})

	d, err := m.Check(context.Background())
	require.NoError(t, err)
	assert.Nil(t, d)
}

func TestAuditIntegrity(t *testing.T) {
	node := &stubChain{}
	m, db := newTestMonitor(t, node, Options{})

	require.NoError(t, db.Transact(func(tx *sql.Tx) error {
		for _, n := range []int64{0, 1, 3} {
			parent := fmt.Sprintf("hash-%d", n-1)
			if err := db.InsertBlock(tx, &indexdb.Block{
				Number:             n,
				Hash:               fmt.Sprintf("hash-%d", n),
				ParentHash:         parent,
				FinalizationStatus: "finalized",
				BondsMap:           "[]",
				Justifications:     "[]",
			}); err != nil {
				return err
			}
		}
		return nil
	}))

	report, err := m.AuditIntegrity(context.Background(), 0, 3)
	require.NoError(t, err)
	assert.False(t, report.Valid)
	require.Len(t, report.Issues, 2)
	assert.Equal(t, "missing_blocks", report.Issues[0].Type)
	assert.Equal(t, []int64{2}, report.Issues[0].Blocks)
	assert.Equal(t, "orphaned_parent_references", report.Issues[1].Type)
	assert.Equal(t, []int64{3}, report.Issues[1].Blocks)
}

func TestAuditIntegrityClean(t *testing.T) {
	node := &stubChain{}
	m, db := newTestMonitor(t, node, Options{})
	seedChain(t, db, 4)

	report, err := m.AuditIntegrity(context.Background(), 0, 4)
	require.NoError(t, err)
	assert.True(t, report.Valid)
	assert.Empty(t, report.Issues)
}
