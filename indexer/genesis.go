// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package indexer

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/asi-chain/asi-indexer/chain"
	"github.com/asi-chain/asi-indexer/indexdb"
	"github.com/asi-chain/asi-indexer/rholang"
)

const (
	// mint source for genesis allocations, no real key owns it
	zeroAddress = "0000000000000000000000000000000000000000000000000000000000000000"

	// the PoS contract vault that holds all bonded stake
	posVaultAddress = "1111gW5kkGxHg7xDg6dRkZx2f7qxTizJzaCH9VEM1oJKWRvSX9Sk5"
)

// initVault!("address", amount) in genesis deployments
var reInitVault = regexp.MustCompile(`initVault!\s*\(\s*"([^"]+)"\s*,\s*(\d+)\s*\)`)

type genesisAllocation struct {
	address string
	dust    int64
}

// genesisRows holds the synthesized rows for block 0: a deployment and a
// transfer per allocation and per bond, plus the initial balance snapshot.
type genesisRows struct {
	deployments []*indexdb.Deployment
	transfers   []*indexdb.Transfer
	balances    []*indexdb.BalanceState
}

// buildGenesis synthesizes the genesis allocation and bond rows for block 0.
// Bonds come from the genesis bonds map, falling back to the current active
// validator set when the map is empty. Allocations are parsed from the
// genesis deployments' initVault calls.
func (p *Processor) buildGenesis(ctx context.Context, info *chain.BlockInfo, deploys []chain.DeployData) *genesisRows {
	bonds := info.Bonds
	if len(bonds) == 0 {
		p.genesisOnce.Do(func() {
			if err := p.nodeExec.Execute(ctx, func(ctx context.Context) error {
				var err error
				p.genesisBonds, err = p.node.ActiveValidators(ctx)
				return err
			}); err != nil {
				logger.Warn("genesis bonds unavailable from validator set", "err", err)
			}
		})
		for _, b := range p.genesisBonds {
			bonds = append(bonds, chain.BondEntry{Validator: b.Validator, Stake: b.Stake})
		}
	}

	allocations := parseGenesisAllocations(deploys)
	if len(allocations) == 0 && len(bonds) == 0 {
		logger.Warn("no genesis data found, skipping genesis bootstrap")
		return nil
	}

	rows := &genesisRows{}

	for i, alloc := range allocations {
		deployID := fmt.Sprintf("genesis_allocation_%d", i+1)
		rows.deployments = append(rows.deployments, &indexdb.Deployment{
			DeployID:       deployID,
			BlockHash:      info.BlockHash,
			BlockNumber:    0,
			Deployer:       zeroAddress,
			Term:           fmt.Sprintf("Genesis ASI allocation to %s: %s ASI", alloc.address, rholang.FormatToken(alloc.dust)),
			Timestamp:      info.Timestamp,
			Sig:            deployID,
			SigAlgorithm:   defaultSigAlgorithm,
			PhloPrice:      defaultPhloPrice,
			PhloLimit:      defaultPhloLimit,
			DeploymentType: rholang.TypeGenesisMint,
			Status:         "included",
		})
		rows.transfers = append(rows.transfers, &indexdb.Transfer{
			DeployID:    deployID,
			BlockNumber: 0,
			FromAddress: zeroAddress,
			ToAddress:   alloc.address,
			AmountDust:  alloc.dust,
			AmountToken: rholang.FormatToken(alloc.dust),
			Status:      "genesis_mint",
			Timestamp:   info.Timestamp,
		})
		rows.balances = append(rows.balances, &indexdb.BalanceState{
			Address:       alloc.address,
			BlockNumber:   0,
			UnbondedDust:  alloc.dust,
			UnbondedToken: rholang.FormatToken(alloc.dust),
			BondedDust:    0,
			BondedToken:   rholang.FormatToken(0),
		})
	}

	var totalBonded int64
	bondIndex := 0
	for _, bond := range bonds {
		if bond.Validator == "" || bond.Stake <= 0 {
			continue
		}
		bondIndex++
		deployID := fmt.Sprintf("genesis_bond_%d", bondIndex)
		rows.deployments = append(rows.deployments, &indexdb.Deployment{
			DeployID:       deployID,
			BlockHash:      info.BlockHash,
			BlockNumber:    0,
			Deployer:       bond.Validator,
			Term:           fmt.Sprintf("Genesis validator bond: %s ASI staked", rholang.FormatToken(bond.Stake)),
			Timestamp:      info.Timestamp,
			Sig:            deployID,
			SigAlgorithm:   defaultSigAlgorithm,
			PhloPrice:      defaultPhloPrice,
			PhloLimit:      defaultPhloLimit,
			DeploymentType: rholang.TypeGenesisBond,
			Status:         "included",
		})
		rows.transfers = append(rows.transfers, &indexdb.Transfer{
			DeployID:    deployID,
			BlockNumber: 0,
			FromAddress: bond.Validator,
			ToAddress:   posVaultAddress,
			AmountDust:  bond.Stake,
			AmountToken: rholang.FormatToken(bond.Stake),
			Status:      "genesis_bond",
			Timestamp:   info.Timestamp,
		})
		rows.balances = append(rows.balances, &indexdb.BalanceState{
			Address:     bond.Validator,
			BlockNumber: 0,
			BondedDust:  bond.Stake,
			BondedToken: rholang.FormatToken(bond.Stake),

			UnbondedToken: rholang.FormatToken(0),
		})
		totalBonded += bond.Stake
	}

	if totalBonded > 0 {
		rows.balances = append(rows.balances, &indexdb.BalanceState{
			Address:       posVaultAddress,
			BlockNumber:   0,
			BondedDust:    totalBonded,
			BondedToken:   rholang.FormatToken(totalBonded),
			UnbondedToken: rholang.FormatToken(0),
		})
	}

	logger.Info("genesis bootstrap prepared",
		"allocations", len(allocations),
		"bonds", bondIndex,
		"total_bonded_dust", totalBonded,
	)
	return rows
}

func (g *genesisRows) insert(db *indexdb.IndexDB, tx *sql.Tx) error {
	for _, d := range g.deployments {
		if err := db.InsertDeployment(tx, d); err != nil {
			return err
		}
	}
	for _, t := range g.transfers {
		if err := db.InsertTransfer(tx, t); err != nil {
			return err
		}
	}
	for _, b := range g.balances {
		if err := db.InsertBalanceState(tx, b); err != nil {
			return err
		}
	}
	return nil
}

// parseGenesisAllocations scans the genesis deployments for initVault
// calls seeding the initial wallet balances.
func parseGenesisAllocations(deploys []chain.DeployData) []genesisAllocation {
	var allocations []genesisAllocation
	for _, d := range deploys {
		for _, m := range reInitVault.FindAllStringSubmatch(d.Term, -1) {
			if !strings.HasPrefix(m[1], "1111") {
				continue
			}
			dust, err := strconv.ParseInt(m[2], 10, 64)
			if err != nil || dust <= 0 {
				continue
			}
			allocations = append(allocations, genesisAllocation{address: m[1], dust: dust})
		}
	}
	return allocations
}
