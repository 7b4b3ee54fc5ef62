// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package rholang derives token transfers from Rholang deployment terms.
// Native transfer events are not first-class on this chain; they are encoded
// in contract source, so a pattern-driven extractor materializes them
// without a full interpreter.
package rholang

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Transfer is one token movement extracted from a deployment term.
type Transfer struct {
	DeployID    string
	BlockNumber int64
	FromAddress string
	ToAddress   string
	AmountDust  int64
	AmountToken string
	Status      string
}

const (
	dustPerToken = 100_000_000

	addressPrefix = "1111"
	addressMinLen = 53
	addressMaxLen = 56
	// hard cap matching the store column width
	addressHardCap = 150
)

var (
	// canonical block-level transfer shape, wins over everything else
	reDirectTransfer = regexp.MustCompile(`match \("(1111[^"]+)", "(1111[^"]+)", (\d+)\)`)

	// @vault!("transfer", "address", amount,
	reVaultLiteral = regexp.MustCompile(`@vault!\s*\(\s*"transfer"\s*,\s*"([0-9a-zA-Z]{54,56})"\s*,\s*(\d+)\s*,`)
	// @vault!("transfer", recipient, amount,
	reVaultVariable = regexp.MustCompile(`@vault!\s*\(\s*"transfer"\s*,\s*(\w+)\s*,\s*(\d+)\s*,`)
	// match ("from", "to", amount)
	reMatchTriple = regexp.MustCompile(`match\s*\(\s*"([0-9a-zA-Z]{54,56})"\s*,\s*"([0-9a-zA-Z]{54,56})"\s*,\s*(\d+)\s*\)`)
	// ASIVault!("findOrCreate", "address", amount)
	reFindOrCreate = regexp.MustCompile(`ASIVault!\s*\(\s*"findOrCreate"\s*,\s*"([0-9a-zA-Z]{54,56})"\s*,\s*(\d+)\s*\)`)

	// address bindings preceding variable-based transfers
	reBindMatch  = regexp.MustCompile(`match\s*"([0-9a-zA-Z]{54,56})"\s*\{\s*(\w+)\s*=>`)
	reBindAssign = regexp.MustCompile(`(\w+)\s*=\s*"([0-9a-zA-Z]{54,56})"`)
	reBindTriple = regexp.MustCompile(`match\s*\(\s*"([0-9a-zA-Z]{54,56})"\s*,\s*"([0-9a-zA-Z]{54,56})"\s*,\s*\d+\s*\)\s*\{\s*\((\w+)\s*,\s*(\w+)\s*,\s*\w+\)\s*=>`)
)

func isAddress(s string) bool {
	return strings.HasPrefix(s, addressPrefix) &&
		len(s) >= addressMinLen && len(s) <= addressMaxLen
}

// FormatToken renders a dust amount as the exact whole-token decimal with
// 8 fractional digits. No floating point is involved.
func FormatToken(dust int64) string {
	return fmt.Sprintf("%d.%08d", dust/dustPerToken, dust%dustPerToken)
}

func transferStatus(errored bool) string {
	if errored {
		return "failed"
	}
	return "success"
}

// Extract returns the transfers encoded in a deployment term. Pure and
// deterministic; the store is never touched.
//
// The direct three-tuple shape short-circuits: when it fires, the other
// patterns are skipped so the same movement is never double counted.
func Extract(term, deployer string, blockNumber int64, deployID string, errored bool) []*Transfer {
	if term == "" {
		return nil
	}
	status := transferStatus(errored)

	var transfers []*Transfer
	emit := func(from, to string, amountStr string) {
		if from == "" || to == "" || len(from) > addressHardCap || len(to) > addressHardCap {
			return
		}
		dust, err := strconv.ParseInt(amountStr, 10, 64)
		if err != nil || dust <= 0 {
			return
		}
		transfers = append(transfers, &Transfer{
			DeployID:    deployID,
			BlockNumber: blockNumber,
			FromAddress: from,
			ToAddress:   to,
			AmountDust:  dust,
			AmountToken: FormatToken(dust),
			Status:      status,
		})
	}

	for _, m := range reDirectTransfer.FindAllStringSubmatch(term, -1) {
		if isAddress(m[1]) && isAddress(m[2]) {
			emit(m[1], m[2], m[3])
		}
	}
	if len(transfers) > 0 {
		return transfers
	}

	// cheap gate before the heavier vault patterns
	if !strings.Contains(term, "ASIVault") && !strings.Contains(term, "transfer") &&
		!strings.Contains(strings.ToLower(term), "vault") {
		return nil
	}

	bindings := extractBindings(term)
	resolve := func(identifier string) string {
		if addr, ok := bindings[identifier]; ok {
			return addr
		}
		if isAddress(identifier) {
			return identifier
		}
		return ""
	}

	// recipient-and-amount shapes: sender is always the deployer
	for _, re := range []*regexp.Regexp{reVaultLiteral, reVaultVariable, reFindOrCreate} {
		for _, m := range re.FindAllStringSubmatch(term, -1) {
			if to := resolve(m[1]); to != "" {
				emit(deployer, to, m[2])
			}
		}
	}

	// sender-recipient-amount shape: unresolvable sender degrades to the
	// deployer, unresolvable recipient drops the record
	for _, m := range reMatchTriple.FindAllStringSubmatch(term, -1) {
		to := resolve(m[2])
		if to == "" {
			continue
		}
		from := resolve(m[1])
		if from == "" {
			from = deployer
		}
		emit(from, to, m[3])
	}

	return transfers
}

// extractBindings collects variable-to-address bindings from a term.
func extractBindings(term string) map[string]string {
	bindings := make(map[string]string)
	for _, m := range reBindMatch.FindAllStringSubmatch(term, -1) {
		if isAddress(m[1]) {
			bindings[m[2]] = m[1]
		}
	}
	for _, m := range reBindAssign.FindAllStringSubmatch(term, -1) {
		if isAddress(m[2]) {
			bindings[m[1]] = m[2]
		}
	}
	for _, m := range reBindTriple.FindAllStringSubmatch(term, -1) {
		if isAddress(m[1]) && isAddress(m[2]) {
			bindings[m[3]] = m[1]
			bindings[m[4]] = m[2]
		}
	}
	return bindings
}
