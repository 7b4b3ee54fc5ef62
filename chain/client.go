// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package chain is the gateway to the node CLI. Every chain query spawns
// the CLI as a subprocess and decodes its textual output into typed records.
package chain

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/asi-chain/asi-indexer/log"
	"github.com/asi-chain/asi-indexer/metrics"
)

var logger = log.WithContext("pkg", "chain")

var metricCLIDuration = metrics.LazyLoadHistogramVec("chain_cli_request_ms", []string{"op"}, metrics.Bucket10s)

const (
	defaultTimeout = 30 * time.Second

	detailCacheSize = 1024
	deployCacheSize = 4096
)

// Options configures a Client. Read queries route through the observer
// node; each observer field falls back to its validator counterpart when
// unset, so a single-node deployment needs only Host and the two ports.
type Options struct {
	CLIPath  string
	Host     string
	HTTPPort int
	GRPCPort int

	ObserverHost     string
	ObserverHTTPPort int
	ObserverGRPCPort int

	// Timeout bounds one CLI invocation. Range queries get double.
	Timeout time.Duration
}

func (o *Options) withDefaults() {
	if o.ObserverHost == "" {
		o.ObserverHost = o.Host
	}
	if o.ObserverHTTPPort == 0 {
		o.ObserverHTTPPort = o.HTTPPort
	}
	if o.ObserverGRPCPort == 0 {
		o.ObserverGRPCPort = o.GRPCPort
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
}

// Client runs node CLI subcommands and parses their output.
// Block details and deploy lookups are cached; both are immutable once
// finalized, so entries never expire.
type Client struct {
	cliPath      string
	observerHost string
	httpPort     string
	grpcPort     string
	timeout      time.Duration
	batchTimeout time.Duration

	detailCache *lru.Cache
	deployCache *lru.Cache
}

// NewClient verifies the CLI binary exists and returns a ready client.
func NewClient(opts Options) (*Client, error) {
	if _, err := os.Stat(opts.CLIPath); err != nil {
		return nil, errors.Wrapf(err, "node cli not found at %s", opts.CLIPath)
	}
	opts.withDefaults()
	detailCache, err := lru.New(detailCacheSize)
	if err != nil {
		return nil, err
	}
	deployCache, err := lru.New(deployCacheSize)
	if err != nil {
		return nil, err
	}
	return &Client{
		cliPath:      opts.CLIPath,
		observerHost: opts.ObserverHost,
		httpPort:     strconv.Itoa(opts.ObserverHTTPPort),
		grpcPort:     strconv.Itoa(opts.ObserverGRPCPort),
		timeout:      opts.Timeout,
		batchTimeout: 2 * opts.Timeout,
		detailCache:  detailCache,
		deployCache:  deployCache,
	}, nil
}

// run spawns the CLI with the given arguments and returns its stdout.
func (c *Client) run(ctx context.Context, op string, timeout time.Duration, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	cmd := exec.CommandContext(ctx, c.cliPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("running cli command", "op", op, "args", args)
	err := cmd.Run()
	metricCLIDuration().ObserveWithLabels(time.Since(started).Milliseconds(), map[string]string{"op": op})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", &CLIError{Op: op, Err: errors.Wrapf(context.DeadlineExceeded, "timed out after %s", timeout)}
		}
		return "", &CLIError{Op: op, Stderr: stderr.String(), Err: err}
	}
	return stdout.String(), nil
}

// Head returns the last finalized block.
func (c *Client) Head(ctx context.Context) (*BlockSummary, error) {
	out, err := c.run(ctx, "last-finalized-block", c.timeout,
		"last-finalized-block",
		"-H", c.observerHost,
		"--http-port", c.httpPort,
	)
	if err != nil {
		return nil, err
	}
	head := parseHead(out)
	if head == nil {
		return nil, &ParseError{Op: "last-finalized-block", Reason: "no block fields in output"}
	}
	return head, nil
}

// BlocksByHeight returns block summaries for [start, end], both inclusive.
func (c *Client) BlocksByHeight(ctx context.Context, start, end int64) ([]*BlockSummary, error) {
	out, err := c.run(ctx, "get-blocks-by-height", c.batchTimeout,
		"get-blocks-by-height",
		"-s", strconv.FormatInt(start, 10),
		"-e", strconv.FormatInt(end, 10),
		"-H", c.observerHost,
		"--grpc-port", c.grpcPort,
	)
	if err != nil {
		return nil, err
	}
	return parseBlockFrames(out), nil
}

// BlockDetails returns the full block payload for the given hash.
func (c *Client) BlockDetails(ctx context.Context, blockHash string) (*BlockDetail, error) {
	if cached, ok := c.detailCache.Get(blockHash); ok {
		return cached.(*BlockDetail), nil
	}
	out, err := c.run(ctx, "blocks", c.timeout,
		"blocks",
		"--block-hash", blockHash,
		"-H", c.observerHost,
		"--http-port", c.httpPort,
	)
	if err != nil {
		return nil, err
	}
	var detail BlockDetail
	if !decodeEmbeddedJSON(out, &detail) {
		return nil, &ParseError{Op: "blocks", Reason: "no JSON found in output"}
	}
	c.detailCache.Add(blockHash, &detail)
	return &detail, nil
}

// DeployInfo returns deployment details by deploy id.
func (c *Client) DeployInfo(ctx context.Context, deployID string) (*DeployDetail, error) {
	if cached, ok := c.deployCache.Get(deployID); ok {
		return cached.(*DeployDetail), nil
	}
	out, err := c.run(ctx, "get-deploy", c.timeout,
		"get-deploy",
		"-d", deployID,
		"--format", "json",
		"-H", c.observerHost,
		"--http-port", c.httpPort,
	)
	if err != nil {
		return nil, err
	}
	var detail DeployDetail
	if !decodeEmbeddedJSON(out, &detail) {
		return nil, &ParseError{Op: "get-deploy", Reason: "no JSON found in output"}
	}
	c.deployCache.Add(deployID, &detail)
	return &detail, nil
}

// Bonds returns the current validator bonds.
func (c *Client) Bonds(ctx context.Context) ([]*Bond, error) {
	out, err := c.run(ctx, "bonds", c.timeout,
		"bonds",
		"-H", c.observerHost,
		"--http-port", c.httpPort,
	)
	if err != nil {
		return nil, err
	}
	bonds, dropped := parseBonds(out)
	for _, abbrev := range dropped {
		logger.Warn("dropping bond with unresolvable abbreviated key", "key", abbrev)
	}
	return bonds, nil
}

// ActiveValidators returns the active validator set with stakes.
func (c *Client) ActiveValidators(ctx context.Context) ([]*Bond, error) {
	out, err := c.run(ctx, "active-validators", c.timeout,
		"active-validators",
		"-H", c.observerHost,
		"--http-port", c.httpPort,
	)
	if err != nil {
		return nil, err
	}
	bonds, dropped := parseBonds(out)
	for _, abbrev := range dropped {
		logger.Warn("dropping validator with unresolvable abbreviated key", "key", abbrev)
	}
	return bonds, nil
}

// EpochInfo returns the current epoch parameters.
func (c *Client) EpochInfo(ctx context.Context) (*EpochInfo, error) {
	out, err := c.run(ctx, "epoch-info", c.timeout,
		"epoch-info",
		"-H", c.observerHost,
		"--grpc-port", c.grpcPort,
		"--http-port", c.httpPort,
	)
	if err != nil {
		return nil, err
	}
	info := parseEpochInfo(out)
	if info == nil {
		return nil, &ParseError{Op: "epoch-info", Reason: "no epoch fields in output"}
	}
	return info, nil
}

// NetworkConsensus returns the network consensus overview.
func (c *Client) NetworkConsensus(ctx context.Context) (*ConsensusSnapshot, error) {
	out, err := c.run(ctx, "network-consensus", c.timeout,
		"network-consensus",
		"-H", c.observerHost,
		"--grpc-port", c.grpcPort,
		"--http-port", c.httpPort,
	)
	if err != nil {
		return nil, err
	}
	snap := parseConsensus(out)
	if snap == nil {
		return nil, &ParseError{Op: "network-consensus", Reason: "no consensus fields in output"}
	}
	return snap, nil
}

// MainChain returns the most recent depth blocks of the canonical chain.
func (c *Client) MainChain(ctx context.Context, depth int) ([]*BlockSummary, error) {
	out, err := c.run(ctx, "show-main-chain", c.timeout,
		"show-main-chain",
		"-d", strconv.Itoa(depth),
		"-H", c.observerHost,
		"--grpc-port", c.grpcPort,
	)
	if err != nil {
		return nil, err
	}
	return parseBlockFrames(out), nil
}

// BlockDeploys returns the deployments of a block by number.
func (c *Client) BlockDeploys(ctx context.Context, blockNumber int64) ([]*DeployData, error) {
	out, err := c.run(ctx, "show-deploys", c.timeout,
		"show-deploys",
		"-b", strconv.FormatInt(blockNumber, 10),
		"-H", c.observerHost,
		"-p", c.grpcPort,
		"--http-port", c.httpPort,
	)
	if err != nil {
		return nil, err
	}
	return parseDeployFrames(out), nil
}

// HealthCheck reports whether the node answers head queries.
func (c *Client) HealthCheck(ctx context.Context) bool {
	_, err := c.Head(ctx)
	return err == nil
}
