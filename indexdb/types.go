// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package indexdb

// Block is one finalized block row.
type Block struct {
	Number             int64   `json:"block_number"`
	Hash               string  `json:"block_hash"`
	ParentHash         string  `json:"parent_hash"`
	Timestamp          int64   `json:"timestamp"`
	Proposer           string  `json:"proposer"`
	PreStateHash       string  `json:"pre_state_hash"`
	StateRootHash      string  `json:"state_root_hash"`
	FinalizationStatus string  `json:"finalization_status"`
	BondsMap           string  `json:"-"`
	Justifications     string  `json:"-"`
	FaultTolerance     float64 `json:"fault_tolerance"`
	SeqNum             int64   `json:"seq_num"`
	Sig                string  `json:"sig"`
	SigAlgorithm       string  `json:"sig_algorithm"`
	ShardID            string  `json:"shard_id"`
	ExtraBytes         string  `json:"-"`
	Version            int64   `json:"version"`
	DeploymentCount    int64   `json:"deployment_count"`
}

// Deployment is one smart-contract invocation row.
type Deployment struct {
	DeployID              string `json:"deploy_id"`
	BlockHash             string `json:"block_hash"`
	BlockNumber           int64  `json:"block_number"`
	Deployer              string `json:"deployer"`
	Term                  string `json:"term"`
	Timestamp             int64  `json:"timestamp"`
	Sig                   string `json:"sig"`
	SigAlgorithm          string `json:"sig_algorithm"`
	PhloPrice             int64  `json:"phlo_price"`
	PhloLimit             int64  `json:"phlo_limit"`
	PhloCost              int64  `json:"phlo_cost"`
	ValidAfterBlockNumber int64  `json:"valid_after_block_number"`
	Errored               bool   `json:"errored"`
	ErrorMessage          string `json:"error_message,omitempty"`
	DeploymentType        string `json:"deployment_type"`
	SeqNum                int64  `json:"seq_num"`
	ShardID               string `json:"shard_id"`
	Status                string `json:"status"`
}

// Transfer is one derived token movement row. AmountToken is the exact
// dust/10^8 decimal rendered with 8 fractional digits.
type Transfer struct {
	ID          int64  `json:"id"`
	DeployID    string `json:"deploy_id"`
	BlockNumber int64  `json:"block_number"`
	FromAddress string `json:"from_address"`
	ToAddress   string `json:"to_address"`
	AmountDust  int64  `json:"amount_dust"`
	AmountToken string `json:"amount_asi"`
	Status      string `json:"status"`
	Timestamp   int64  `json:"timestamp"`
}

// Validator is the per-key validator registry row. TotalStake is a
// monotonic high-water mark over all observed bonds.
type Validator struct {
	PublicKey      string `json:"public_key"`
	Name           string `json:"name"`
	TotalStake     int64  `json:"total_stake"`
	FirstSeenBlock int64  `json:"first_seen_block"`
	LastSeenBlock  int64  `json:"last_seen_block"`
	Status         string `json:"status"`
}

// ValidatorBond is the stake of one validator at one block.
type ValidatorBond struct {
	BlockHash          string `json:"block_hash"`
	BlockNumber        int64  `json:"block_number"`
	ValidatorPublicKey string `json:"validator_public_key"`
	Stake              int64  `json:"stake"`
}

// BalanceState is the unbonded/bonded balance of an address at a block.
type BalanceState struct {
	Address       string `json:"address"`
	BlockNumber   int64  `json:"block_number"`
	UnbondedDust  int64  `json:"unbonded_balance_dust"`
	UnbondedToken string `json:"unbonded_balance_asi"`
	BondedDust    int64  `json:"bonded_balance_dust"`
	BondedToken   string `json:"bonded_balance_asi"`
}

// EpochTransition records one observed epoch boundary.
type EpochTransition struct {
	EpochNumber      int64 `json:"epoch_number"`
	StartBlock       int64 `json:"start_block"`
	EndBlock         int64 `json:"end_block"`
	ActiveValidators int64 `json:"active_validators"`
	QuarantineLength int64 `json:"quarantine_length"`
}

// NetworkStats is one consensus health snapshot.
type NetworkStats struct {
	BlockNumber            int64   `json:"block_number"`
	TotalValidators        int64   `json:"total_validators"`
	ActiveValidators       int64   `json:"active_validators"`
	ValidatorsInQuarantine int64   `json:"validators_in_quarantine"`
	ConsensusParticipation float64 `json:"consensus_participation"`
	ConsensusStatus        string  `json:"consensus_status"`
}

// ReorgRecord is the audit row written after a handled reorganization.
type ReorgRecord struct {
	ID                  int64  `json:"id"`
	ForkPoint           int64  `json:"fork_point"`
	Depth               int64  `json:"depth"`
	OrphanedBlocks      string `json:"orphaned_blocks"`
	AffectedDeployments int64  `json:"affected_deployments"`
	AffectedTransfers   int64  `json:"affected_transfers"`
	DetectedAt          string `json:"detected_at"`
	HandledAt           string `json:"handled_at"`
}

// BlockRef is the (number, hash, parent) triple used by the reorg monitor.
type BlockRef struct {
	Number     int64
	Hash       string
	ParentHash string
}
