// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// The CLI prints human-oriented status text around its payloads. Two wire
// shapes occur: an embedded JSON document somewhere in the output, and
// line-oriented key/value frames with optional emoji-prefixed labels.

var (
	reBlockNumber   = regexp.MustCompile(`Block Number:\s*(\d+)`)
	reBlockHash     = regexp.MustCompile(`Block Hash:\s*([a-f0-9]+)`)
	reTimestamp     = regexp.MustCompile(`Timestamp:\s*(\d+)`)
	reDeployCount   = regexp.MustCompile(`Deploy Count:\s*(\d+)`)
	reBlockFrame    = regexp.MustCompile(`Block #(\d+):`)
	reHash          = regexp.MustCompile(`Hash:\s*([a-f0-9]+)`)
	reParent        = regexp.MustCompile(`Parent:\s*([a-f0-9]+)`)
	reSender        = regexp.MustCompile(`Sender:\s*([a-f0-9]+)`)
	reFaultTol      = regexp.MustCompile(`Fault Tolerance:\s*(-?[\d.]+)`)
	reAbbrevStake   = regexp.MustCompile(`([0-9a-fA-F]{8})\.\.\.([0-9a-fA-F]{8})\s*\(stake:\s*([\d,]+)\)`)
	reLegacyBond    = regexp.MustCompile(`Validator:\s*([a-f0-9]+)\s*\|\s*Stake:\s*([\d,]+)\s*ASI`)
	reFullStake     = regexp.MustCompile(`([0-9a-fA-F]{130})\s*\(stake:\s*(\d+)\)`)
	reFullKey       = regexp.MustCompile(`([0-9a-fA-F]{130})`)
	reDeployID      = regexp.MustCompile(`Deploy ID:\s*([a-f0-9]+)`)
	reDeployer      = regexp.MustCompile(`Deployer:\s*([a-f0-9]+)`)
	reCurrentEpoch  = regexp.MustCompile(`Current Epoch:\s*(\d+)`)
	reEpochLength   = regexp.MustCompile(`Epoch Length:\s*(\d+)\s*blocks`)
	reQuarLength    = regexp.MustCompile(`Quarantine Length:\s*(\d+)\s*blocks`)
	reBlocksUntil   = regexp.MustCompile(`Blocks Until Next Epoch:\s*(\d+)`)
	reCurrentBlock  = regexp.MustCompile(`Current Block:\s*(\d+)`)
	reTotalBonded   = regexp.MustCompile(`Total Bonded Validators:\s*(\d+)`)
	reActiveVals    = regexp.MustCompile(`Active Validators:\s*(\d+)`)
	reQuarVals      = regexp.MustCompile(`Validators in Quarantine:\s*(\d+)`)
	reParticipation = regexp.MustCompile(`Participation Rate:\s*([\d.]+)%`)
)

// decodeEmbeddedJSON finds the JSON document inside noisy CLI output and
// unmarshals it into v. It locates the first opening brace or bracket, then
// truncates trailing bytes one at a time until the remainder parses.
func decodeEmbeddedJSON(output string, v any) bool {
	start := strings.IndexByte(output, '{')
	if start == -1 {
		start = strings.IndexByte(output, '[')
		if start == -1 {
			return false
		}
	}
	jsonStr := output[start:]
	for i := len(jsonStr); i > 0; i-- {
		if err := json.Unmarshal([]byte(jsonStr[:i]), v); err == nil {
			return true
		}
	}
	return false
}

func parseHead(output string) *BlockSummary {
	var (
		s     BlockSummary
		found bool
	)
	for _, line := range strings.Split(output, "\n") {
		if m := reBlockNumber.FindStringSubmatch(line); m != nil {
			s.BlockNumber, _ = strconv.ParseInt(m[1], 10, 64)
			found = true
		} else if m := reBlockHash.FindStringSubmatch(line); m != nil {
			s.BlockHash = m[1]
			found = true
		} else if strings.Contains(line, "Timestamp:") {
			if m := reTimestamp.FindStringSubmatch(line); m != nil {
				s.Timestamp, _ = strconv.ParseInt(m[1], 10, 64)
				found = true
			}
		} else if strings.Contains(line, "Deploy Count:") {
			if m := reDeployCount.FindStringSubmatch(line); m != nil {
				s.DeployCount, _ = strconv.ParseInt(m[1], 10, 64)
				found = true
			}
		}
	}
	if !found {
		return nil
	}
	return &s
}

// parseBlockFrames decodes "Block #N:" delimited frames as printed by
// get-blocks-by-height and show-main-chain. Labels may carry emoji prefixes.
func parseBlockFrames(output string) []*BlockSummary {
	var (
		blocks  []*BlockSummary
		current *BlockSummary
	)
	for _, line := range strings.Split(output, "\n") {
		if strings.Contains(line, "Block #") {
			if m := reBlockFrame.FindStringSubmatch(line); m != nil {
				if current != nil {
					blocks = append(blocks, current)
				}
				n, _ := strconv.ParseInt(m[1], 10, 64)
				current = &BlockSummary{BlockNumber: n}
			}
			continue
		}
		if current == nil {
			continue
		}
		switch {
		case strings.Contains(line, "Parent:"):
			if m := reParent.FindStringSubmatch(line); m != nil {
				current.ParentHash = m[1]
			}
		case strings.Contains(line, "Hash:"):
			if m := reHash.FindStringSubmatch(line); m != nil {
				current.BlockHash = m[1]
			}
		case strings.Contains(line, "Sender:"):
			if m := reSender.FindStringSubmatch(line); m != nil {
				current.Sender = m[1]
			}
		case strings.Contains(line, "Deploy Count:"):
			if m := reDeployCount.FindStringSubmatch(line); m != nil {
				current.DeployCount, _ = strconv.ParseInt(m[1], 10, 64)
			}
		case strings.Contains(line, "Timestamp:"):
			if m := reTimestamp.FindStringSubmatch(line); m != nil {
				current.Timestamp, _ = strconv.ParseInt(m[1], 10, 64)
			}
		case strings.Contains(line, "Fault Tolerance:"):
			if m := reFaultTol.FindStringSubmatch(line); m != nil {
				current.FaultTolerance, _ = strconv.ParseFloat(m[1], 64)
			}
		}
	}
	if current != nil {
		blocks = append(blocks, current)
	}
	return blocks
}

// parseBonds decodes `bonds` and `active-validators` output. Abbreviated
// entries like "04837a4c...b2df065f (stake: 1,000)" are resolved against any
// full 130-hex-char key printed elsewhere in the same output; entries whose
// full key never appears are dropped. Legacy
// "Validator: <key> | Stake: <n> ASI" lines are accepted as-is.
func parseBonds(output string) (bonds []*Bond, dropped []string) {
	lines := strings.Split(output, "\n")
	for _, line := range lines {
		if m := reFullStake.FindStringSubmatch(line); m != nil {
			stake, _ := strconv.ParseInt(m[2], 10, 64)
			bonds = append(bonds, &Bond{Validator: m[1], Stake: stake})
			continue
		}
		if m := reAbbrevStake.FindStringSubmatch(line); m != nil {
			stake, _ := strconv.ParseInt(strings.ReplaceAll(m[3], ",", ""), 10, 64)
			if full := resolveKey(lines, m[1], m[2]); full != "" {
				bonds = append(bonds, &Bond{Validator: full, Stake: stake})
			} else {
				dropped = append(dropped, m[1]+"..."+m[2])
			}
			continue
		}
		if m := reLegacyBond.FindStringSubmatch(line); m != nil {
			stake, _ := strconv.ParseInt(strings.ReplaceAll(m[2], ",", ""), 10, 64)
			bonds = append(bonds, &Bond{Validator: m[1], Stake: stake})
		}
	}
	return bonds, dropped
}

// resolveKey finds the full public key matching an abbreviated prefix/suffix pair.
func resolveKey(lines []string, prefix, suffix string) string {
	for _, line := range lines {
		for _, m := range reFullKey.FindAllString(line, -1) {
			if strings.HasPrefix(m, prefix) && strings.HasSuffix(m, suffix) {
				return m
			}
		}
	}
	return ""
}

func parseEpochInfo(output string) *EpochInfo {
	var (
		info  EpochInfo
		found bool
	)
	for _, line := range strings.Split(output, "\n") {
		if m := reCurrentEpoch.FindStringSubmatch(line); m != nil {
			info.CurrentEpoch, _ = strconv.ParseInt(m[1], 10, 64)
			found = true
		}
		if m := reEpochLength.FindStringSubmatch(line); m != nil {
			info.EpochLength, _ = strconv.ParseInt(m[1], 10, 64)
			found = true
		}
		if m := reQuarLength.FindStringSubmatch(line); m != nil {
			info.QuarantineLength, _ = strconv.ParseInt(m[1], 10, 64)
			found = true
		}
		if m := reBlocksUntil.FindStringSubmatch(line); m != nil {
			info.BlocksUntilNextEpoch, _ = strconv.ParseInt(m[1], 10, 64)
			found = true
		}
	}
	if !found {
		return nil
	}
	return &info
}

func parseConsensus(output string) *ConsensusSnapshot {
	var (
		snap  ConsensusSnapshot
		found bool
	)
	for _, line := range strings.Split(output, "\n") {
		if m := reCurrentBlock.FindStringSubmatch(line); m != nil {
			snap.CurrentBlock, _ = strconv.ParseInt(m[1], 10, 64)
			found = true
		}
		if m := reTotalBonded.FindStringSubmatch(line); m != nil {
			snap.TotalBondedValidators, _ = strconv.ParseInt(m[1], 10, 64)
			found = true
		}
		if m := reActiveVals.FindStringSubmatch(line); m != nil {
			snap.ActiveValidators, _ = strconv.ParseInt(m[1], 10, 64)
			found = true
		}
		if m := reQuarVals.FindStringSubmatch(line); m != nil {
			snap.ValidatorsInQuarantine, _ = strconv.ParseInt(m[1], 10, 64)
			found = true
		}
		if m := reParticipation.FindStringSubmatch(line); m != nil {
			snap.ParticipationRate, _ = strconv.ParseFloat(m[1], 64)
			found = true
		}
		switch {
		case strings.Contains(line, "🟢 Healthy"):
			snap.Status = "healthy"
			found = true
		case strings.Contains(line, "🟡 Degraded"):
			snap.Status = "degraded"
			found = true
		case strings.Contains(line, "🔴 Critical"):
			snap.Status = "critical"
			found = true
		}
	}
	if !found {
		return nil
	}
	if snap.Status == "" {
		snap.Status = "unknown"
	}
	return &snap
}

// parseDeployFrames decodes "Deploy ID:" delimited frames from show-deploys.
// Terms may span multiple lines; accumulation stops at the next known label.
func parseDeployFrames(output string) []*DeployData {
	var (
		deploys []*DeployData
		current *DeployData
		inTerm  bool
	)
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, "Deploy ID:"):
			if current != nil {
				deploys = append(deploys, current)
			}
			current = &DeployData{}
			inTerm = false
			if m := reDeployID.FindStringSubmatch(line); m != nil {
				current.Sig = m[1]
			}
		case current == nil:
		case strings.Contains(line, "Deployer:"):
			inTerm = false
			if m := reDeployer.FindStringSubmatch(line); m != nil {
				current.Deployer = m[1]
			}
		case strings.Contains(line, "Term:"):
			current.Term = strings.TrimSpace(strings.SplitN(line, "Term:", 2)[1])
			inTerm = true
		case strings.Contains(line, "Timestamp:"):
			inTerm = false
			if m := reTimestamp.FindStringSubmatch(line); m != nil {
				current.Timestamp, _ = strconv.ParseInt(m[1], 10, 64)
			}
		case inTerm && strings.TrimSpace(line) != "":
			current.Term += "\n" + line
		}
	}
	if current != nil {
		deploys = append(deploys, current)
	}
	return deploys
}
