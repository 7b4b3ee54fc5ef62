// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package indexdb

import (
	"database/sql"
)

const blockColumns = `block_number, block_hash, parent_hash, timestamp, proposer,
	IFNULL(pre_state_hash,''), IFNULL(state_root_hash,''), finalization_status,
	IFNULL(bonds_map,''), IFNULL(justifications,''), IFNULL(fault_tolerance,0),
	IFNULL(seq_num,0), IFNULL(sig,''), IFNULL(sig_algorithm,''), IFNULL(shard_id,''),
	IFNULL(extra_bytes,''), IFNULL(version,0), deployment_count`

func scanBlock(row interface{ Scan(...any) error }) (*Block, error) {
	var b Block
	err := row.Scan(
		&b.Number, &b.Hash, &b.ParentHash, &b.Timestamp, &b.Proposer,
		&b.PreStateHash, &b.StateRootHash, &b.FinalizationStatus,
		&b.BondsMap, &b.Justifications, &b.FaultTolerance,
		&b.SeqNum, &b.Sig, &b.SigAlgorithm, &b.ShardID,
		&b.ExtraBytes, &b.Version, &b.DeploymentCount,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// HasBlock reports whether a block with the given hash is indexed.
func (db *IndexDB) HasBlock(blockHash string) (bool, error) {
	var n int
	err := db.db.QueryRow("SELECT COUNT(*) FROM blocks WHERE block_hash = ?", blockHash).Scan(&n)
	return n > 0, err
}

// BlockByNumber returns one block or nil when absent.
func (db *IndexDB) BlockByNumber(n int64) (*Block, error) {
	b, err := scanBlock(db.db.QueryRow(
		"SELECT "+blockColumns+" FROM blocks WHERE block_number = ?", n))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// RecentBlocks returns the newest blocks, highest first.
func (db *IndexDB) RecentBlocks(limit int) ([]*Block, error) {
	rows, err := db.db.Query(
		"SELECT "+blockColumns+" FROM blocks ORDER BY block_number DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var blocks []*Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// BlocksInRange returns (number, hash, parent) refs for [start, end], ordered.
func (db *IndexDB) BlocksInRange(start, end int64) ([]*BlockRef, error) {
	rows, err := db.db.Query(
		`SELECT block_number, block_hash, parent_hash FROM blocks
		WHERE block_number BETWEEN ? AND ? ORDER BY block_number`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []*BlockRef
	for rows.Next() {
		var r BlockRef
		if err := rows.Scan(&r.Number, &r.Hash, &r.ParentHash); err != nil {
			return nil, err
		}
		refs = append(refs, &r)
	}
	return refs, rows.Err()
}

// CountBlocks returns the number of indexed blocks.
func (db *IndexDB) CountBlocks() (int64, error) {
	var n int64
	err := db.db.QueryRow("SELECT COUNT(*) FROM blocks").Scan(&n)
	return n, err
}

// MissingBlockNumbers returns the numbers in [start, end] with no block row.
func (db *IndexDB) MissingBlockNumbers(start, end int64) ([]int64, error) {
	refs, err := db.BlocksInRange(start, end)
	if err != nil {
		return nil, err
	}
	present := make(map[int64]bool, len(refs))
	for _, r := range refs {
		present[r.Number] = true
	}
	var missing []int64
	for n := start; n <= end; n++ {
		if !present[n] {
			missing = append(missing, n)
		}
	}
	return missing, nil
}

// UnresolvedParents returns blocks in [start, end] (excluding genesis) whose
// parent hash is not indexed.
func (db *IndexDB) UnresolvedParents(start, end int64) ([]*BlockRef, error) {
	rows, err := db.db.Query(
		`SELECT b1.block_number, b1.block_hash, b1.parent_hash
		FROM blocks b1 LEFT JOIN blocks b2 ON b1.parent_hash = b2.block_hash
		WHERE b1.block_number BETWEEN ? AND ?
		AND b1.block_number > 0
		AND b2.block_hash IS NULL
		ORDER BY b1.block_number`, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []*BlockRef
	for rows.Next() {
		var r BlockRef
		if err := rows.Scan(&r.Number, &r.Hash, &r.ParentHash); err != nil {
			return nil, err
		}
		refs = append(refs, &r)
	}
	return refs, rows.Err()
}

const deploymentColumns = `deploy_id, block_hash, block_number, deployer, term, timestamp,
	sig, sig_algorithm, phlo_price, phlo_limit, phlo_cost,
	IFNULL(valid_after_block_number,0), errored, IFNULL(error_message,''),
	IFNULL(deployment_type,''), IFNULL(seq_num,0), IFNULL(shard_id,''), status`

func scanDeployment(row interface{ Scan(...any) error }) (*Deployment, error) {
	var d Deployment
	err := row.Scan(
		&d.DeployID, &d.BlockHash, &d.BlockNumber, &d.Deployer, &d.Term, &d.Timestamp,
		&d.Sig, &d.SigAlgorithm, &d.PhloPrice, &d.PhloLimit, &d.PhloCost,
		&d.ValidAfterBlockNumber, &d.Errored, &d.ErrorMessage,
		&d.DeploymentType, &d.SeqNum, &d.ShardID, &d.Status,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeploymentByID returns one deployment or nil when absent.
func (db *IndexDB) DeploymentByID(deployID string) (*Deployment, error) {
	d, err := scanDeployment(db.db.QueryRow(
		"SELECT "+deploymentColumns+" FROM deployments WHERE deploy_id = ?", deployID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return d, err
}

// RecentDeployments returns the newest deployments, highest block first.
func (db *IndexDB) RecentDeployments(limit int) ([]*Deployment, error) {
	rows, err := db.db.Query(
		"SELECT "+deploymentColumns+" FROM deployments ORDER BY block_number DESC, timestamp DESC LIMIT ?", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deployments []*Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	return deployments, rows.Err()
}

const transferColumns = `id, deploy_id, block_number, from_address, to_address,
	amount_dust, amount_asi, status, timestamp`

func scanTransfer(row interface{ Scan(...any) error }) (*Transfer, error) {
	var t Transfer
	err := row.Scan(
		&t.ID, &t.DeployID, &t.BlockNumber, &t.FromAddress, &t.ToAddress,
		&t.AmountDust, &t.AmountToken, &t.Status, &t.Timestamp,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (db *IndexDB) queryTransfers(query string, args ...any) ([]*Transfer, error) {
	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transfers []*Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		transfers = append(transfers, t)
	}
	return transfers, rows.Err()
}

// RecentTransfers returns the newest transfers, highest block first.
func (db *IndexDB) RecentTransfers(limit int) ([]*Transfer, error) {
	return db.queryTransfers(
		"SELECT "+transferColumns+" FROM transfers ORDER BY block_number DESC, id DESC LIMIT ?", limit)
}

// TransfersByDeploy returns the transfers derived from one deployment.
func (db *IndexDB) TransfersByDeploy(deployID string) ([]*Transfer, error) {
	return db.queryTransfers(
		"SELECT "+transferColumns+" FROM transfers WHERE deploy_id = ? ORDER BY id", deployID)
}

// TransfersByAddress returns transfers touching an address on either side.
func (db *IndexDB) TransfersByAddress(address string, limit int) ([]*Transfer, error) {
	return db.queryTransfers(
		"SELECT "+transferColumns+` FROM transfers
		WHERE from_address = ? OR to_address = ?
		ORDER BY block_number DESC, id DESC LIMIT ?`, address, address, limit)
}

// ValidatorByKey returns one validator or nil when absent.
func (db *IndexDB) ValidatorByKey(publicKey string) (*Validator, error) {
	var v Validator
	err := db.db.QueryRow(
		`SELECT public_key, IFNULL(name,''), total_stake,
		IFNULL(first_seen_block,0), IFNULL(last_seen_block,0), status
		FROM validators WHERE public_key = ?`, publicKey,
	).Scan(&v.PublicKey, &v.Name, &v.TotalStake, &v.FirstSeenBlock, &v.LastSeenBlock, &v.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Validators returns all validators ordered by stake.
func (db *IndexDB) Validators() ([]*Validator, error) {
	rows, err := db.db.Query(
		`SELECT public_key, IFNULL(name,''), total_stake,
		IFNULL(first_seen_block,0), IFNULL(last_seen_block,0), status
		FROM validators ORDER BY total_stake DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var validators []*Validator
	for rows.Next() {
		var v Validator
		if err := rows.Scan(&v.PublicKey, &v.Name, &v.TotalStake, &v.FirstSeenBlock, &v.LastSeenBlock, &v.Status); err != nil {
			return nil, err
		}
		validators = append(validators, &v)
	}
	return validators, rows.Err()
}

// BalanceStatesAt returns all balance snapshots for a block number.
func (db *IndexDB) BalanceStatesAt(blockNumber int64) ([]*BalanceState, error) {
	rows, err := db.db.Query(
		`SELECT address, block_number, unbonded_balance_dust, unbonded_balance_asi,
		bonded_balance_dust, bonded_balance_asi
		FROM balance_states WHERE block_number = ? ORDER BY address`, blockNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var states []*BalanceState
	for rows.Next() {
		var s BalanceState
		if err := rows.Scan(&s.Address, &s.BlockNumber, &s.UnbondedDust, &s.UnbondedToken,
			&s.BondedDust, &s.BondedToken); err != nil {
			return nil, err
		}
		states = append(states, &s)
	}
	return states, rows.Err()
}

// LatestNetworkStats returns the newest consensus snapshot or nil.
func (db *IndexDB) LatestNetworkStats() (*NetworkStats, error) {
	var s NetworkStats
	err := db.db.QueryRow(
		`SELECT block_number, total_validators, active_validators,
		validators_in_quarantine, consensus_participation, consensus_status
		FROM network_stats ORDER BY id DESC LIMIT 1`,
	).Scan(&s.BlockNumber, &s.TotalValidators, &s.ActiveValidators,
		&s.ValidatorsInQuarantine, &s.ConsensusParticipation, &s.ConsensusStatus)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// ReorgHistory returns the most recent reorg audit rows.
func (db *IndexDB) ReorgHistory(limit int) ([]*ReorgRecord, error) {
	rows, err := db.db.Query(
		`SELECT id, fork_point, depth, orphaned_blocks,
		affected_deployments, affected_transfers, detected_at, handled_at
		FROM reorgs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*ReorgRecord
	for rows.Next() {
		var r ReorgRecord
		if err := rows.Scan(&r.ID, &r.ForkPoint, &r.Depth, &r.OrphanedBlocks,
			&r.AffectedDeployments, &r.AffectedTransfers, &r.DetectedAt, &r.HandledAt); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// CountDeploymentsFromTx counts deployments at or above a block number,
// inside the rollback transaction.
func (db *IndexDB) CountDeploymentsFromTx(tx *sql.Tx, blockNumber int64) (int64, error) {
	var n int64
	err := tx.QueryRow("SELECT COUNT(*) FROM deployments WHERE block_number >= ?", blockNumber).Scan(&n)
	return n, err
}

// CountTransfersFromTx counts transfers at or above a block number, inside
// the rollback transaction.
func (db *IndexDB) CountTransfersFromTx(tx *sql.Tx, blockNumber int64) (int64, error) {
	var n int64
	err := tx.QueryRow("SELECT COUNT(*) FROM transfers WHERE block_number >= ?", blockNumber).Scan(&n)
	return n, err
}

// BlockHashesFromTx returns the hashes of all blocks at or above a block
// number, inside the rollback transaction.
func (db *IndexDB) BlockHashesFromTx(tx *sql.Tx, blockNumber int64) ([]string, error) {
	rows, err := tx.Query(
		"SELECT block_hash FROM blocks WHERE block_number >= ? ORDER BY block_number", blockNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hashes []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		hashes = append(hashes, h)
	}
	return hashes, rows.Err()
}
