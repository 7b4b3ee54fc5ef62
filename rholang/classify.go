// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rholang

import "strings"

// Deployment type tags derived from term content.
const (
	TypeASITransfer        = "asi_transfer"
	TypeValidatorOperation = "validator_operation"
	TypeFinalizerContract  = "finalizer_contract"
	TypeRegistryLookup     = "registry_lookup"
	TypeAuctionContract    = "auction_contract"
	TypeSmartContract      = "smart_contract"
	TypeGenesisMint        = "genesis_mint"
	TypeGenesisBond        = "genesis_bond"
)

// Classify tags a deployment by its term content. Rules are ordered; the
// first hit wins.
func Classify(term string) string {
	switch {
	case strings.Contains(term, "ASIVault") && strings.Contains(term, "transfer"):
		return TypeASITransfer
	case strings.Contains(term, "validator") || strings.Contains(term, "bond"):
		return TypeValidatorOperation
	case strings.Contains(term, "finalizer"):
		return TypeFinalizerContract
	case strings.Contains(term, "registry") && strings.Contains(term, "lookup"):
		return TypeRegistryLookup
	case strings.Contains(term, "auction"):
		return TypeAuctionContract
	default:
		return TypeSmartContract
	}
}
