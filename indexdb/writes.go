// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package indexdb

import (
	"database/sql"
)

// InsertBlock writes a block row. INSERT OR IGNORE keeps re-processing of
// an already indexed hash a no-op.
func (db *IndexDB) InsertBlock(tx *sql.Tx, b *Block) error {
	_, err := tx.Exec(
		`INSERT OR IGNORE INTO blocks(
			block_number, block_hash, parent_hash, timestamp, proposer,
			pre_state_hash, state_root_hash, finalization_status,
			bonds_map, justifications, fault_tolerance,
			seq_num, sig, sig_algorithm, shard_id, extra_bytes, version,
			deployment_count
		) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		b.Number, b.Hash, b.ParentHash, b.Timestamp, b.Proposer,
		b.PreStateHash, b.StateRootHash, b.FinalizationStatus,
		b.BondsMap, b.Justifications, b.FaultTolerance,
		b.SeqNum, b.Sig, b.SigAlgorithm, b.ShardID, b.ExtraBytes, b.Version,
		b.DeploymentCount,
	)
	return err
}

// UpsertValidator registers a bonds observation: total_stake only ever
// grows, last_seen_block advances, status flips to active.
func (db *IndexDB) UpsertValidator(tx *sql.Tx, publicKey string, stake, blockNumber int64) error {
	_, err := tx.Exec(
		`INSERT INTO validators(public_key, name, total_stake, first_seen_block, last_seen_block, status)
		VALUES(?, ?, ?, ?, ?, 'active')
		ON CONFLICT(public_key) DO UPDATE SET
			total_stake = MAX(total_stake, excluded.total_stake),
			last_seen_block = excluded.last_seen_block,
			status = 'active',
			updated_at = CURRENT_TIMESTAMP`,
		publicKey, publicKey, stake, blockNumber, blockNumber,
	)
	return err
}

// RefreshValidator records a bonds observation from the per-tick refresh
// loop. Stake stays a high-water mark; status reflects the current active
// set ('active' or 'bonded').
func (db *IndexDB) RefreshValidator(publicKey string, stake, blockNumber int64, status string) error {
	_, err := db.db.Exec(
		`INSERT INTO validators(public_key, name, total_stake, first_seen_block, last_seen_block, status)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(public_key) DO UPDATE SET
			total_stake = MAX(total_stake, excluded.total_stake),
			last_seen_block = excluded.last_seen_block,
			status = excluded.status,
			updated_at = CURRENT_TIMESTAMP`,
		publicKey, publicKey, stake, blockNumber, blockNumber, status,
	)
	return err
}

// InsertValidatorBond writes the per-block stake row.
func (db *IndexDB) InsertValidatorBond(tx *sql.Tx, b *ValidatorBond) error {
	_, err := tx.Exec(
		`INSERT OR IGNORE INTO validator_bonds(block_hash, block_number, validator_public_key, stake)
		VALUES(?,?,?,?)`,
		b.BlockHash, b.BlockNumber, b.ValidatorPublicKey, b.Stake,
	)
	return err
}

// InsertDeployment writes a deployment row.
func (db *IndexDB) InsertDeployment(tx *sql.Tx, d *Deployment) error {
	_, err := tx.Exec(
		`INSERT OR IGNORE INTO deployments(
			deploy_id, block_hash, block_number, deployer, term, timestamp,
			sig, sig_algorithm, phlo_price, phlo_limit, phlo_cost,
			valid_after_block_number, errored, error_message, deployment_type,
			seq_num, shard_id, status
		) VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		d.DeployID, d.BlockHash, d.BlockNumber, d.Deployer, d.Term, d.Timestamp,
		d.Sig, d.SigAlgorithm, d.PhloPrice, d.PhloLimit, d.PhloCost,
		d.ValidAfterBlockNumber, d.Errored, d.ErrorMessage, d.DeploymentType,
		d.SeqNum, d.ShardID, d.Status,
	)
	return err
}

// InsertTransfer writes a derived transfer row.
func (db *IndexDB) InsertTransfer(tx *sql.Tx, t *Transfer) error {
	_, err := tx.Exec(
		`INSERT INTO transfers(
			deploy_id, block_number, from_address, to_address,
			amount_dust, amount_asi, status, timestamp
		) VALUES(?,?,?,?,?,?,?,?)`,
		t.DeployID, t.BlockNumber, t.FromAddress, t.ToAddress,
		t.AmountDust, t.AmountToken, t.Status, t.Timestamp,
	)
	return err
}

// InsertBalanceState writes a balance snapshot row.
func (db *IndexDB) InsertBalanceState(tx *sql.Tx, s *BalanceState) error {
	_, err := tx.Exec(
		`INSERT OR IGNORE INTO balance_states(
			address, block_number,
			unbonded_balance_dust, unbonded_balance_asi,
			bonded_balance_dust, bonded_balance_asi
		) VALUES(?,?,?,?,?,?)`,
		s.Address, s.BlockNumber,
		s.UnbondedDust, s.UnbondedToken,
		s.BondedDust, s.BondedToken,
	)
	return err
}

// InsertBlockValidators populates the justification junction in its own
// transaction, after the block commit. Conflicts are ignored so a retried
// tick is harmless.
func (db *IndexDB) InsertBlockValidators(blockHash string, validatorKeys []string) error {
	return db.Transact(func(tx *sql.Tx) error {
		for _, key := range validatorKeys {
			if _, err := tx.Exec(
				`INSERT OR IGNORE INTO block_validators(block_hash, validator_public_key) VALUES(?,?)`,
				blockHash, key,
			); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertEpochTransition records an epoch boundary once per epoch number.
func (db *IndexDB) InsertEpochTransition(t *EpochTransition) error {
	_, err := db.db.Exec(
		`INSERT OR IGNORE INTO epoch_transitions(
			epoch_number, start_block, end_block, active_validators, quarantine_length
		) VALUES(?,?,?,?,?)`,
		t.EpochNumber, t.StartBlock, t.EndBlock, t.ActiveValidators, t.QuarantineLength,
	)
	return err
}

// InsertNetworkStats appends a consensus health snapshot.
func (db *IndexDB) InsertNetworkStats(s *NetworkStats) error {
	_, err := db.db.Exec(
		`INSERT INTO network_stats(
			block_number, total_validators, active_validators,
			validators_in_quarantine, consensus_participation, consensus_status
		) VALUES(?,?,?,?,?,?)`,
		s.BlockNumber, s.TotalValidators, s.ActiveValidators,
		s.ValidatorsInQuarantine, s.ConsensusParticipation, s.ConsensusStatus,
	)
	return err
}

// DeleteFromBlock removes everything owned by blocks at or above the fork
// point. Deletes run leaves-first so no row ever dangles; block_validators
// go by hash since the junction has no block number.
func (db *IndexDB) DeleteFromBlock(tx *sql.Tx, forkPoint int64) error {
	statements := []string{
		`DELETE FROM balance_states WHERE block_number >= ?`,
		`DELETE FROM transfers WHERE block_number >= ?`,
		`DELETE FROM deployments WHERE block_number >= ?`,
		`DELETE FROM validator_bonds WHERE block_number >= ?`,
		`DELETE FROM block_validators WHERE block_hash IN (
			SELECT block_hash FROM blocks WHERE block_number >= ?)`,
		`DELETE FROM blocks WHERE block_number >= ?`,
	}
	for _, stmt := range statements {
		if _, err := tx.Exec(stmt, forkPoint); err != nil {
			return err
		}
	}
	return nil
}

// InsertReorgRecord appends the audit row of a handled reorg inside the
// rollback transaction.
func (db *IndexDB) InsertReorgRecord(tx *sql.Tx, r *ReorgRecord) error {
	_, err := tx.Exec(
		`INSERT INTO reorgs(
			fork_point, depth, orphaned_blocks,
			affected_deployments, affected_transfers,
			detected_at, handled_at
		) VALUES(?,?,?,?,?,?,CURRENT_TIMESTAMP)`,
		r.ForkPoint, r.Depth, r.OrphanedBlocks,
		r.AffectedDeployments, r.AffectedTransfers,
		r.DetectedAt,
	)
	return err
}
