// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import "fmt"

// BlockSummary is the light view of a block as printed by the CLI's
// listing subcommands. Fields absent from a given listing stay zero.
type BlockSummary struct {
	BlockNumber    int64
	BlockHash      string
	ParentHash     string
	Sender         string
	Timestamp      int64
	DeployCount    int64
	FaultTolerance float64
}

// BlockDetail is the full block payload embedded in the `blocks` output.
type BlockDetail struct {
	BlockInfo BlockInfo    `json:"blockInfo"`
	Deploys   []DeployData `json:"deploys"`
}

// BlockInfo carries the block header fields of a detailed block payload.
type BlockInfo struct {
	BlockHash       string          `json:"blockHash"`
	BlockNumber     int64           `json:"blockNumber"`
	ParentsHashList []string        `json:"parentsHashList"`
	PreStateHash    string          `json:"preStateHash"`
	PostStateHash   string          `json:"postStateHash"`
	Sender          string          `json:"sender"`
	Timestamp       int64           `json:"timestamp"`
	Bonds           []BondEntry     `json:"bonds"`
	Justifications  []Justification `json:"justifications"`
	SeqNum          int64           `json:"seqNum"`
	Sig             string          `json:"sig"`
	SigAlgorithm    string          `json:"sigAlgorithm"`
	ShardID         string          `json:"shardId"`
	ExtraBytes      string          `json:"extraBytes"`
	Version         int64           `json:"version"`
	DeployCount     int64           `json:"deployCount"`
	FaultTolerance  float64         `json:"faultTolerance"`
}

// ParentHash returns the first parent or "" for the genesis block.
func (b *BlockInfo) ParentHash() string {
	if len(b.ParentsHashList) == 0 {
		return ""
	}
	return b.ParentsHashList[0]
}

// BondEntry is one validator stake entry in a block's bonds map.
type BondEntry struct {
	Validator string `json:"validator"`
	Stake     int64  `json:"stake"`
}

// Justification is a validator signature attached to a block.
type Justification struct {
	Validator       string `json:"validator"`
	LatestBlockHash string `json:"latestBlockHash"`
}

// DeployData is one deployment inside a block detail payload.
type DeployData struct {
	Sig                   string `json:"sig"`
	Deployer              string `json:"deployer"`
	Term                  string `json:"term"`
	Timestamp             int64  `json:"timestamp"`
	SigAlgorithm          string `json:"sigAlgorithm"`
	PhloPrice             int64  `json:"phloPrice"`
	PhloLimit             int64  `json:"phloLimit"`
	Cost                  int64  `json:"cost"`
	ValidAfterBlockNumber int64  `json:"validAfterBlockNumber"`
	Errored               bool   `json:"errored"`
	SystemDeployError     string `json:"systemDeployError"`
	SeqNum                int64  `json:"seqNum"`
	ShardID               string `json:"shardId"`
	Status                string `json:"status"`
}

// DeployDetail is the `get-deploy` response.
type DeployDetail struct {
	DeployInfo DeployData `json:"deployInfo"`
	Status     string     `json:"status"`
}

// Bond is one validator stake observation from `bonds` or `active-validators`.
type Bond struct {
	Validator string
	Stake     int64
}

// EpochInfo is the parsed `epoch-info` output.
type EpochInfo struct {
	CurrentEpoch         int64 `json:"current_epoch"`
	EpochLength          int64 `json:"epoch_length"`
	QuarantineLength     int64 `json:"quarantine_length"`
	BlocksUntilNextEpoch int64 `json:"blocks_until_next_epoch"`
}

// ConsensusSnapshot is the parsed `network-consensus` output.
type ConsensusSnapshot struct {
	CurrentBlock           int64   `json:"current_block"`
	TotalBondedValidators  int64   `json:"total_bonded_validators"`
	ActiveValidators       int64   `json:"active_validators"`
	ValidatorsInQuarantine int64   `json:"validators_in_quarantine"`
	ParticipationRate      float64 `json:"participation_rate"`
	Status                 string  `json:"status"`
}

// CLIError reports a failed CLI invocation (non-zero exit, spawn failure
// or timeout). It is transient: callers retry it.
type CLIError struct {
	Op     string
	Stderr string
	Err    error
}

func (e *CLIError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("cli %s: %v: %s", e.Op, e.Err, e.Stderr)
	}
	return fmt.Sprintf("cli %s: %v", e.Op, e.Err)
}

func (e *CLIError) Unwrap() error { return e.Err }

// ParseError reports CLI output that ran fine but yielded nothing usable.
// It is not transient: retrying the same input cannot help.
type ParseError struct {
	Op     string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Op, e.Reason)
}

// NonRetriable marks the error as permanent for the resilience layer.
func (e *ParseError) NonRetriable() {}
