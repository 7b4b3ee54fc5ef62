// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package rholang

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	addrAlice = "1111" + strings.Repeat("a", 50)
	addrBob   = "1111" + strings.Repeat("b", 50)
	addrCarol = "1111" + strings.Repeat("c", 50)

	deployerKey = "04" + strings.Repeat("d", 128)
)

func TestExtractDirectTransfer(t *testing.T) {
	term := fmt.Sprintf(`match ("%s", "%s", 150000000)`, addrAlice, addrBob)

	transfers := Extract(term, deployerKey, 42, "deploy-1", false)
	require.Len(t, transfers, 1)

	tr := transfers[0]
	assert.Equal(t, addrAlice, tr.FromAddress)
	assert.Equal(t, addrBob, tr.ToAddress)
	assert.Equal(t, int64(150000000), tr.AmountDust)
	assert.Equal(t, "1.50000000", tr.AmountToken)
	assert.Equal(t, "success", tr.Status)
	assert.Equal(t, int64(42), tr.BlockNumber)
	assert.Equal(t, "deploy-1", tr.DeployID)
}

func TestExtractDirectShortCircuits(t *testing.T) {
	// direct shape plus a vault call for the same movement must yield one record
	term := fmt.Sprintf(`match ("%s", "%s", 100) | @vault!("transfer", "%s", 100, *ret)`,
		addrAlice, addrBob, addrBob)

	transfers := Extract(term, deployerKey, 1, "d", false)
	require.Len(t, transfers, 1)
	assert.Equal(t, addrAlice, transfers[0].FromAddress)
}

func TestExtractVaultLiteralRecipient(t *testing.T) {
	term := fmt.Sprintf(`new ret in { @vault!("transfer", "%s", 250000000, *ret) }`, addrBob)

	transfers := Extract(term, deployerKey, 7, "d", false)
	require.Len(t, transfers, 1)
	assert.Equal(t, deployerKey, transfers[0].FromAddress)
	assert.Equal(t, addrBob, transfers[0].ToAddress)
	assert.Equal(t, "2.50000000", transfers[0].AmountToken)
}

func TestExtractVaultVariableResolvedThroughBinding(t *testing.T) {
	term := fmt.Sprintf(`
		match "%s" { recipient =>
			@vault!("transfer", recipient, 500, *ret)
		}`, addrCarol)

	transfers := Extract(term, deployerKey, 7, "d", false)
	require.Len(t, transfers, 1)
	assert.Equal(t, deployerKey, transfers[0].FromAddress)
	assert.Equal(t, addrCarol, transfers[0].ToAddress)
	assert.Equal(t, int64(500), transfers[0].AmountDust)
}

func TestExtractVaultVariableUnresolvableDropped(t *testing.T) {
	term := `@vault!("transfer", recipient, 500, *ret)`
	assert.Empty(t, Extract(term, deployerKey, 1, "d", false))
}

func TestExtractAssignmentBinding(t *testing.T) {
	term := fmt.Sprintf(`target = "%s" @vault!("transfer", target, 99, *ret)`, addrBob)

	transfers := Extract(term, deployerKey, 1, "d", false)
	require.Len(t, transfers, 1)
	assert.Equal(t, addrBob, transfers[0].ToAddress)
}

func TestExtractFindOrCreate(t *testing.T) {
	term := fmt.Sprintf(`ASIVault!("findOrCreate", "%s", 1000000000)`, addrAlice)

	transfers := Extract(term, deployerKey, 3, "d", false)
	require.Len(t, transfers, 1)
	assert.Equal(t, deployerKey, transfers[0].FromAddress)
	assert.Equal(t, addrAlice, transfers[0].ToAddress)
	assert.Equal(t, "10.00000000", transfers[0].AmountToken)
}

func TestExtractErroredDeploymentMarksFailed(t *testing.T) {
	term := fmt.Sprintf(`match ("%s", "%s", 100)`, addrAlice, addrBob)

	transfers := Extract(term, deployerKey, 1, "d", true)
	require.Len(t, transfers, 1)
	assert.Equal(t, "failed", transfers[0].Status)
}

func TestExtractZeroAmountDropped(t *testing.T) {
	term := fmt.Sprintf(`match ("%s", "%s", 0)`, addrAlice, addrBob)
	assert.Empty(t, Extract(term, deployerKey, 1, "d", false))
}

func TestExtractBadPrefixDropped(t *testing.T) {
	bad := "2222" + strings.Repeat("x", 50)
	term := fmt.Sprintf(`match ("%s", "%s", 100)`, bad, addrBob)
	assert.Empty(t, Extract(term, deployerKey, 1, "d", false))
}

func TestExtractTripleSenderFallsBackToDeployer(t *testing.T) {
	// sender capture is a plausible base58 string but not a valid address
	notAddr := "2222" + strings.Repeat("z", 50)
	term := fmt.Sprintf(`transfer: match ( "%s" , "%s" , 777 )`, notAddr, addrBob)

	transfers := Extract(term, deployerKey, 1, "d", false)
	require.Len(t, transfers, 1)
	assert.Equal(t, deployerKey, transfers[0].FromAddress)
	assert.Equal(t, addrBob, transfers[0].ToAddress)
}

func TestExtractTripleBadRecipientDropped(t *testing.T) {
	notAddr := "2222" + strings.Repeat("z", 50)
	term := fmt.Sprintf(`transfer: match ( "%s" , "%s" , 777 )`, addrAlice, notAddr)
	assert.Empty(t, Extract(term, deployerKey, 1, "d", false))
}

func TestExtractSkipsTermsWithoutVaultMarkers(t *testing.T) {
	// a spaced triple would match, but the gate keeps unrelated terms out
	term := fmt.Sprintf(`match ( "%s" , "%s" , 500 )`, addrAlice, addrBob)
	assert.Empty(t, Extract(term, deployerKey, 1, "d", false))
}

func TestExtractEmptyTerm(t *testing.T) {
	assert.Empty(t, Extract("", deployerKey, 1, "d", false))
}

func TestFormatToken(t *testing.T) {
	assert.Equal(t, "0.00000001", FormatToken(1))
	assert.Equal(t, "1.00000000", FormatToken(100000000))
	assert.Equal(t, "1.50000000", FormatToken(150000000))
	assert.Equal(t, "123.45678901", FormatToken(12345678901))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		term string
		want string
	}{
		{`ASIVault!("transfer", ...)`, TypeASITransfer},
		{`bond a validator with stake`, TypeValidatorOperation},
		{`new finalizer in { ... }`, TypeFinalizerContract},
		{`registry lookup for uri`, TypeRegistryLookup},
		{`start the auction round`, TypeAuctionContract},
		{`new x in { x!(42) }`, TypeSmartContract},
		// validator outranks finalizer when both appear
		{`validator finalizer`, TypeValidatorOperation},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.term), tt.term)
	}
}
