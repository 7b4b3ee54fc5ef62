// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const headOutput = `Connecting to observer node...
✅ Connected
Block Number: 12345
Block Hash: 9fe21a4c83d0b7a2e5f60c1d8a93b4e7f2a51c6d0e8b3f7a1c4d9e2b5f8a0c3d
Timestamp: 1718000000000
Deploy Count: 3
`

func TestParseHead(t *testing.T) {
	head := parseHead(headOutput)
	require.NotNil(t, head)
	assert.Equal(t, int64(12345), head.BlockNumber)
	assert.Equal(t, "9fe21a4c83d0b7a2e5f60c1d8a93b4e7f2a51c6d0e8b3f7a1c4d9e2b5f8a0c3d", head.BlockHash)
	assert.Equal(t, int64(1718000000000), head.Timestamp)
	assert.Equal(t, int64(3), head.DeployCount)
}

func TestParseHeadEmpty(t *testing.T) {
	assert.Nil(t, parseHead("Connecting...\nnothing useful here\n"))
}

const blockFramesOutput = `Fetching blocks 10 to 11...
Block #10:
  🔗 Hash: aa10aa10aa10
  👤 Sender: dd01dd01
  ⏰ Timestamp: 1718000000100
  📦 Deploy Count: 2
  ⚖️  Fault Tolerance: 0.75
Block #11:
  Hash: bb11bb11bb11
  Sender: dd02dd02
  Timestamp: 1718000000200
  Deploy Count: 0
  Fault Tolerance: -1.0
`

func TestParseBlockFrames(t *testing.T) {
	blocks := parseBlockFrames(blockFramesOutput)
	require.Len(t, blocks, 2)

	assert.Equal(t, int64(10), blocks[0].BlockNumber)
	assert.Equal(t, "aa10aa10aa10", blocks[0].BlockHash)
	assert.Equal(t, "dd01dd01", blocks[0].Sender)
	assert.Equal(t, int64(1718000000100), blocks[0].Timestamp)
	assert.Equal(t, int64(2), blocks[0].DeployCount)
	assert.Equal(t, 0.75, blocks[0].FaultTolerance)

	assert.Equal(t, int64(11), blocks[1].BlockNumber)
	assert.Equal(t, "bb11bb11bb11", blocks[1].BlockHash)
	assert.Equal(t, -1.0, blocks[1].FaultTolerance)
}

const mainChainOutput = `Main chain (depth 2):
Block #20:
  Hash: cc20cc20
  Parent: bb19bb19
Block #19:
  Hash: bb19bb19
  Parent: aa18aa18
`

func TestParseMainChainFrames(t *testing.T) {
	blocks := parseBlockFrames(mainChainOutput)
	require.Len(t, blocks, 2)
	assert.Equal(t, "cc20cc20", blocks[0].BlockHash)
	assert.Equal(t, "bb19bb19", blocks[0].ParentHash)
	assert.Equal(t, "aa18aa18", blocks[1].ParentHash)
}

func TestDecodeEmbeddedJSON(t *testing.T) {
	out := `Status: connected
Fetching block...
{"blockInfo": {"blockHash": "abc123", "blockNumber": 7, "bonds": [{"validator": "v1", "stake": 100}]}, "deploys": []}
Done in 0.3s`
	var detail BlockDetail
	require.True(t, decodeEmbeddedJSON(out, &detail))
	assert.Equal(t, "abc123", detail.BlockInfo.BlockHash)
	assert.Equal(t, int64(7), detail.BlockInfo.BlockNumber)
	require.Len(t, detail.BlockInfo.Bonds, 1)
	assert.Equal(t, int64(100), detail.BlockInfo.Bonds[0].Stake)
	assert.Empty(t, detail.Deploys)
}

func TestDecodeEmbeddedJSONNoPayload(t *testing.T) {
	var detail BlockDetail
	assert.False(t, decodeEmbeddedJSON("plain text only", &detail))
}

// the full key appears on its own line; abbreviated entries must resolve against it
const bondsOutput = `Validators:
04837a4cabababababababababababababababababababababababababababababababababababababababababababababababababababababababababb2df065f
1. 04837a4c...b2df065f (stake: 1,000)
2. ffffffff...eeeeeeee (stake: 500)
Validator: a1b2c3d4e5f6 | Stake: 2,500 ASI
`

func TestParseBondsResolvesAbbreviatedKeys(t *testing.T) {
	bonds, dropped := parseBonds(bondsOutput)
	require.Len(t, bonds, 2)

	assert.Len(t, bonds[0].Validator, 130)
	assert.Equal(t, int64(1000), bonds[0].Stake)

	// legacy line keeps its full key inline
	assert.Equal(t, "a1b2c3d4e5f6", bonds[1].Validator)
	assert.Equal(t, int64(2500), bonds[1].Stake)

	// no 130-char key matches ffffffff...eeeeeeee, so it is dropped
	require.Len(t, dropped, 1)
	assert.Equal(t, "ffffffff...eeeeeeee", dropped[0])
}

func TestParseBondsFullKeyWithStake(t *testing.T) {
	key := "04837a4cabababababababababababababababababababababababababababababababababababababababababababababababababababababababababb2df065f"
	bonds, dropped := parseBonds(key + " (stake: 50000000000000)\n")
	require.Len(t, bonds, 1)
	assert.Empty(t, dropped)
	assert.Equal(t, key, bonds[0].Validator)
	assert.Equal(t, int64(50000000000000), bonds[0].Stake)
}

func TestParseEpochInfo(t *testing.T) {
	out := `Epoch status:
Current Epoch: 12
Epoch Length: 500 blocks
Quarantine Length: 50 blocks
Blocks Until Next Epoch: 123
`
	info := parseEpochInfo(out)
	require.NotNil(t, info)
	assert.Equal(t, int64(12), info.CurrentEpoch)
	assert.Equal(t, int64(500), info.EpochLength)
	assert.Equal(t, int64(50), info.QuarantineLength)
	assert.Equal(t, int64(123), info.BlocksUntilNextEpoch)
}

func TestParseConsensus(t *testing.T) {
	out := `Network consensus:
Current Block: 999
Total Bonded Validators: 10
Active Validators: 8
Validators in Quarantine: 1
Participation Rate: 87.5%
Status: 🟡 Degraded
`
	snap := parseConsensus(out)
	require.NotNil(t, snap)
	assert.Equal(t, int64(999), snap.CurrentBlock)
	assert.Equal(t, int64(10), snap.TotalBondedValidators)
	assert.Equal(t, int64(8), snap.ActiveValidators)
	assert.Equal(t, int64(1), snap.ValidatorsInQuarantine)
	assert.Equal(t, 87.5, snap.ParticipationRate)
	assert.Equal(t, "degraded", snap.Status)
}

func TestParseConsensusUnknownStatus(t *testing.T) {
	snap := parseConsensus("Current Block: 5\n")
	require.NotNil(t, snap)
	assert.Equal(t, "unknown", snap.Status)
}

const deployFramesOutput = `Deploys in block 7:
Deploy ID: aaaa1111
Deployer: bbbb2222
Term: new x in {
  x!("hello")
}
Timestamp: 1718000000300
Deploy ID: cccc3333
Deployer: dddd4444
Term: Nil
Timestamp: 1718000000400
`

func TestParseDeployFrames(t *testing.T) {
	deploys := parseDeployFrames(deployFramesOutput)
	require.Len(t, deploys, 2)

	assert.Equal(t, "aaaa1111", deploys[0].Sig)
	assert.Equal(t, "bbbb2222", deploys[0].Deployer)
	assert.Contains(t, deploys[0].Term, `x!("hello")`)
	assert.Contains(t, deploys[0].Term, "\n")
	assert.Equal(t, int64(1718000000300), deploys[0].Timestamp)

	assert.Equal(t, "Nil", deploys[1].Term)
}
