// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package indexdb

// Schema is created idempotently on open. Deletion order on reorg is
// leaves-first: balance_states, transfers, deployments, validator_bonds,
// block_validators, then blocks.

const blocksTableSchema = `CREATE TABLE IF NOT EXISTS blocks (
	block_number BIGINT PRIMARY KEY,
	block_hash TEXT NOT NULL UNIQUE,
	parent_hash TEXT NOT NULL,
	timestamp BIGINT NOT NULL,
	proposer TEXT NOT NULL,
	pre_state_hash TEXT,
	state_root_hash TEXT,
	finalization_status TEXT NOT NULL DEFAULT 'finalized',
	bonds_map TEXT,
	justifications TEXT,
	fault_tolerance REAL,
	seq_num INTEGER,
	sig TEXT,
	sig_algorithm TEXT,
	shard_id TEXT,
	extra_bytes TEXT,
	version INTEGER,
	deployment_count INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_blocks_hash ON blocks(block_hash);
CREATE INDEX IF NOT EXISTS idx_blocks_timestamp ON blocks(timestamp);
CREATE INDEX IF NOT EXISTS idx_blocks_proposer ON blocks(proposer);`

const deploymentsTableSchema = `CREATE TABLE IF NOT EXISTS deployments (
	deploy_id TEXT PRIMARY KEY,
	block_hash TEXT NOT NULL REFERENCES blocks(block_hash),
	block_number BIGINT NOT NULL REFERENCES blocks(block_number),
	deployer TEXT NOT NULL,
	term TEXT NOT NULL,
	timestamp BIGINT NOT NULL,
	sig TEXT NOT NULL,
	sig_algorithm TEXT NOT NULL DEFAULT 'secp256k1',
	phlo_price BIGINT NOT NULL DEFAULT 1,
	phlo_limit BIGINT NOT NULL DEFAULT 1000000,
	phlo_cost BIGINT NOT NULL DEFAULT 0,
	valid_after_block_number BIGINT,
	errored BOOLEAN NOT NULL DEFAULT 0,
	error_message TEXT,
	deployment_type TEXT,
	seq_num INTEGER,
	shard_id TEXT,
	status TEXT NOT NULL DEFAULT 'included',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_deployments_block_hash ON deployments(block_hash);
CREATE INDEX IF NOT EXISTS idx_deployments_block_number ON deployments(block_number);
CREATE INDEX IF NOT EXISTS idx_deployments_deployer ON deployments(deployer);
CREATE INDEX IF NOT EXISTS idx_deployments_type ON deployments(deployment_type);`

const transfersTableSchema = `CREATE TABLE IF NOT EXISTS transfers (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	deploy_id TEXT NOT NULL REFERENCES deployments(deploy_id),
	block_number BIGINT NOT NULL REFERENCES blocks(block_number),
	from_address TEXT NOT NULL,
	to_address TEXT NOT NULL,
	amount_dust BIGINT NOT NULL,
	amount_asi TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'success',
	timestamp BIGINT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_transfers_deploy ON transfers(deploy_id);
CREATE INDEX IF NOT EXISTS idx_transfers_block ON transfers(block_number);
CREATE INDEX IF NOT EXISTS idx_transfers_from ON transfers(from_address);
CREATE INDEX IF NOT EXISTS idx_transfers_to ON transfers(to_address);`

const validatorsTableSchema = `CREATE TABLE IF NOT EXISTS validators (
	public_key TEXT PRIMARY KEY,
	name TEXT,
	total_stake BIGINT NOT NULL DEFAULT 0,
	first_seen_block BIGINT,
	last_seen_block BIGINT,
	status TEXT NOT NULL DEFAULT 'bonded',
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_validators_status ON validators(status);`

const validatorBondsTableSchema = `CREATE TABLE IF NOT EXISTS validator_bonds (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	block_hash TEXT NOT NULL REFERENCES blocks(block_hash),
	block_number BIGINT NOT NULL REFERENCES blocks(block_number),
	validator_public_key TEXT NOT NULL REFERENCES validators(public_key),
	stake BIGINT NOT NULL,
	UNIQUE(block_hash, validator_public_key)
);
CREATE INDEX IF NOT EXISTS idx_validator_bonds_block ON validator_bonds(block_number);`

const blockValidatorsTableSchema = `CREATE TABLE IF NOT EXISTS block_validators (
	block_hash TEXT NOT NULL,
	validator_public_key TEXT NOT NULL,
	PRIMARY KEY(block_hash, validator_public_key)
);`

const balanceStatesTableSchema = `CREATE TABLE IF NOT EXISTS balance_states (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	address TEXT NOT NULL,
	block_number BIGINT NOT NULL REFERENCES blocks(block_number),
	unbonded_balance_dust BIGINT NOT NULL DEFAULT 0,
	unbonded_balance_asi TEXT NOT NULL DEFAULT '0',
	bonded_balance_dust BIGINT NOT NULL DEFAULT 0,
	bonded_balance_asi TEXT NOT NULL DEFAULT '0',
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(address, block_number)
);
CREATE INDEX IF NOT EXISTS idx_balance_states_address ON balance_states(address);`

const epochTransitionsTableSchema = `CREATE TABLE IF NOT EXISTS epoch_transitions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	epoch_number BIGINT NOT NULL UNIQUE,
	start_block BIGINT NOT NULL,
	end_block BIGINT NOT NULL,
	active_validators INTEGER NOT NULL,
	quarantine_length INTEGER NOT NULL,
	timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

const networkStatsTableSchema = `CREATE TABLE IF NOT EXISTS network_stats (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	block_number BIGINT NOT NULL,
	total_validators INTEGER NOT NULL,
	active_validators INTEGER NOT NULL,
	validators_in_quarantine INTEGER NOT NULL DEFAULT 0,
	consensus_participation REAL NOT NULL,
	consensus_status TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_network_stats_block ON network_stats(block_number);`

const indexerStateTableSchema = `CREATE TABLE IF NOT EXISTS indexer_state (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

const reorgsTableSchema = `CREATE TABLE IF NOT EXISTS reorgs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	fork_point BIGINT NOT NULL,
	depth INTEGER NOT NULL,
	orphaned_blocks TEXT NOT NULL,
	affected_deployments INTEGER NOT NULL DEFAULT 0,
	affected_transfers INTEGER NOT NULL DEFAULT 0,
	detected_at TIMESTAMP NOT NULL,
	handled_at TIMESTAMP NOT NULL
);`

var tableNames = []string{
	"balance_states",
	"transfers",
	"deployments",
	"validator_bonds",
	"block_validators",
	"blocks",
	"validators",
	"epoch_transitions",
	"network_stats",
	"reorgs",
	"indexer_state",
}

const fullSchema = blocksTableSchema +
	deploymentsTableSchema +
	transfersTableSchema +
	validatorsTableSchema +
	validatorBondsTableSchema +
	blockValidatorsTableSchema +
	balanceStatesTableSchema +
	epochTransitionsTableSchema +
	networkStatsTableSchema +
	indexerStateTableSchema +
	reorgsTableSchema
