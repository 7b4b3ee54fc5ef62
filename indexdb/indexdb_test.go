// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package indexdb

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *IndexDB {
	t.Helper()
	db, err := New(t.TempDir() + "/index.db")
	require.NoError(t, err)
	t.Cleanup(db.Close)
	return db
}

func testBlock(n int64) *Block {
	return &Block{
		Number:             n,
		Hash:               fmt.Sprintf("hash-%d", n),
		ParentHash:         fmt.Sprintf("hash-%d", n-1),
		Timestamp:          1718000000000 + n,
		Proposer:           "proposer-key",
		FinalizationStatus: "finalized",
		BondsMap:           "[]",
		Justifications:     "[]",
	}
}

func insertBlocks(t *testing.T, db *IndexDB, nums ...int64) {
	t.Helper()
	require.NoError(t, db.Transact(func(tx *sql.Tx) error {
		for _, n := range nums {
			if err := db.InsertBlock(tx, testBlock(n)); err != nil {
				return err
			}
		}
		return nil
	}))
}

func TestCheckpointEmptyStore(t *testing.T) {
	db := newTestDB(t)
	n, err := db.LastIndexedBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), n)
}

func TestCheckpointRoundTrip(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.SetLastIndexedBlock(0))
	n, err := db.LastIndexedBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	require.NoError(t, db.SetLastIndexedBlock(42))
	n, err = db.LastIndexedBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
}

func TestInsertBlockIdempotent(t *testing.T) {
	db := newTestDB(t)
	insertBlocks(t, db, 1)
	insertBlocks(t, db, 1)

	count, err := db.CountBlocks()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	has, err := db.HasBlock("hash-1")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestBlockByNumber(t *testing.T) {
	db := newTestDB(t)
	insertBlocks(t, db, 5)

	b, err := db.BlockByNumber(5)
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "hash-5", b.Hash)
	assert.Equal(t, "hash-4", b.ParentHash)
	assert.Equal(t, "finalized", b.FinalizationStatus)

	missing, err := db.BlockByNumber(6)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestValidatorStakeHighWaterMark(t *testing.T) {
	db := newTestDB(t)

	upsert := func(stake, block int64) {
		require.NoError(t, db.Transact(func(tx *sql.Tx) error {
			return db.UpsertValidator(tx, "vkey", stake, block)
		}))
	}

	upsert(1000, 1)
	upsert(500, 2) // lower stake must not decrease the mark
	upsert(2000, 3)

	v, err := db.ValidatorByKey("vkey")
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, int64(2000), v.TotalStake)
	assert.Equal(t, int64(1), v.FirstSeenBlock)
	assert.Equal(t, int64(3), v.LastSeenBlock)
	assert.Equal(t, "active", v.Status)
}

func TestValidatorBondUnique(t *testing.T) {
	db := newTestDB(t)
	insertBlocks(t, db, 1)

	bond := &ValidatorBond{BlockHash: "hash-1", BlockNumber: 1, ValidatorPublicKey: "vkey", Stake: 100}
	require.NoError(t, db.Transact(func(tx *sql.Tx) error {
		if err := db.InsertValidatorBond(tx, bond); err != nil {
			return err
		}
		return db.InsertValidatorBond(tx, bond)
	}))

	var n int
	require.NoError(t, db.db.QueryRow("SELECT COUNT(*) FROM validator_bonds").Scan(&n))
	assert.Equal(t, 1, n)
}

func TestTransfersByAddress(t *testing.T) {
	db := newTestDB(t)
	insertBlocks(t, db, 1)

	require.NoError(t, db.Transact(func(tx *sql.Tx) error {
		for i, tr := range []*Transfer{
			{DeployID: "d1", BlockNumber: 1, FromAddress: "1111alice", ToAddress: "1111bob", AmountDust: 100, AmountToken: "0.00000100", Status: "success"},
			{DeployID: "d1", BlockNumber: 1, FromAddress: "1111carol", ToAddress: "1111alice", AmountDust: 200, AmountToken: "0.00000200", Status: "success"},
			{DeployID: "d2", BlockNumber: 1, FromAddress: "1111carol", ToAddress: "1111bob", AmountDust: 300, AmountToken: "0.00000300", Status: "failed"},
		} {
			tr.Timestamp = int64(i)
			if err := db.InsertTransfer(tx, tr); err != nil {
				return err
			}
		}
		return nil
	}))

	transfers, err := db.TransfersByAddress("1111alice", 10)
	require.NoError(t, err)
	assert.Len(t, transfers, 2)

	byDeploy, err := db.TransfersByDeploy("d2")
	require.NoError(t, err)
	require.Len(t, byDeploy, 1)
	assert.Equal(t, "failed", byDeploy[0].Status)
}

func TestBalanceStateUnique(t *testing.T) {
	db := newTestDB(t)
	insertBlocks(t, db, 0)

	state := &BalanceState{Address: "1111addr", BlockNumber: 0, UnbondedDust: 5, UnbondedToken: "0.00000005"}
	require.NoError(t, db.Transact(func(tx *sql.Tx) error {
		if err := db.InsertBalanceState(tx, state); err != nil {
			return err
		}
		return db.InsertBalanceState(tx, state)
	}))

	states, err := db.BalanceStatesAt(0)
	require.NoError(t, err)
	assert.Len(t, states, 1)
}

func TestInsertBlockValidatorsIgnoresDuplicates(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.InsertBlockValidators("hash-1", []string{"v1", "v2"}))
	require.NoError(t, db.InsertBlockValidators("hash-1", []string{"v2", "v3"}))

	var n int
	require.NoError(t, db.db.QueryRow("SELECT COUNT(*) FROM block_validators").Scan(&n))
	assert.Equal(t, 3, n)
}

func TestTransactRollsBackOnError(t *testing.T) {
	db := newTestDB(t)
	err := db.Transact(func(tx *sql.Tx) error {
		if err := db.InsertBlock(tx, testBlock(9)); err != nil {
			return err
		}
		return fmt.Errorf("abort")
	})
	require.Error(t, err)

	count, err := db.CountBlocks()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestMissingBlockNumbers(t *testing.T) {
	db := newTestDB(t)
	insertBlocks(t, db, 0, 1, 3, 5)

	missing, err := db.MissingBlockNumbers(0, 5)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4}, missing)
}

func TestUnresolvedParents(t *testing.T) {
	db := newTestDB(t)
	// 1 and 2 chain together, 4's parent (hash-3) was never indexed
	insertBlocks(t, db, 0, 1, 2, 4)

	refs, err := db.UnresolvedParents(0, 4)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, int64(4), refs[0].Number)
	assert.Equal(t, "hash-3", refs[0].ParentHash)
}

func TestRecentBlocksOrder(t *testing.T) {
	db := newTestDB(t)
	insertBlocks(t, db, 1, 2, 3)

	blocks, err := db.RecentBlocks(2)
	require.NoError(t, err)
	require.Len(t, blocks, 2)
	assert.Equal(t, int64(3), blocks[0].Number)
	assert.Equal(t, int64(2), blocks[1].Number)
}

func TestReorgHistory(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, db.Transact(func(tx *sql.Tx) error {
		return db.InsertReorgRecord(tx, &ReorgRecord{
			ForkPoint:           7,
			Depth:               3,
			OrphanedBlocks:      `["a","b","c"]`,
			AffectedDeployments: 2,
			AffectedTransfers:   5,
			DetectedAt:          "2026-08-24T00:00:00Z",
		})
	}))

	records, err := db.ReorgHistory(10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, int64(7), records[0].ForkPoint)
	assert.Equal(t, int64(3), records[0].Depth)
}

func TestReset(t *testing.T) {
	db := newTestDB(t)
	insertBlocks(t, db, 1, 2)
	require.NoError(t, db.SetLastIndexedBlock(2))

	require.NoError(t, db.Reset())

	count, err := db.CountBlocks()
	require.NoError(t, err)
	assert.Zero(t, count)

	n, err := db.LastIndexedBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(-1), n)
}

func TestDeploymentRoundTrip(t *testing.T) {
	db := newTestDB(t)
	insertBlocks(t, db, 1)

	d := &Deployment{
		DeployID:       "sig-1",
		BlockHash:      "hash-1",
		BlockNumber:    1,
		Deployer:       "deployer-key",
		Term:           `@vault!("transfer", ...)`,
		Timestamp:      1718000000001,
		Sig:            "sig-1",
		SigAlgorithm:   "secp256k1",
		PhloPrice:      1,
		PhloLimit:      1000000,
		DeploymentType: "asi_transfer",
		Status:         "included",
	}
	require.NoError(t, db.Transact(func(tx *sql.Tx) error {
		return db.InsertDeployment(tx, d)
	}))

	got, err := db.DeploymentByID("sig-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "asi_transfer", got.DeploymentType)
	assert.Equal(t, "included", got.Status)
	assert.False(t, got.Errored)

	recent, err := db.RecentDeployments(5)
	require.NoError(t, err)
	assert.Len(t, recent, 1)
}
