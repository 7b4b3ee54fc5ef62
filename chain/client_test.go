// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chain

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCLI writes a shell script that plays back a canned transcript.
func fakeCLI(t *testing.T, script string) *Client {
	return fakeCLIOpts(t, script, Options{Host: "localhost", HTTPPort: 40453, GRPCPort: 40452})
}

func fakeCLIOpts(t *testing.T, script string, opts Options) *Client {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("stub cli scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "node_cli")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0o755))

	opts.CLIPath = path
	c, err := NewClient(opts)
	require.NoError(t, err)
	return c
}

func TestNewClientMissingBinary(t *testing.T) {
	_, err := NewClient(Options{CLIPath: "/does/not/exist/node_cli"})
	assert.Error(t, err)
}

func TestClientHead(t *testing.T) {
	c := fakeCLI(t, `cat <<'EOF'
Block Number: 42
Block Hash: abcdef012345
Timestamp: 1718000000000
Deploy Count: 1
EOF`)
	head, err := c.Head(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), head.BlockNumber)
	assert.Equal(t, "abcdef012345", head.BlockHash)
}

func TestClientHeadParseError(t *testing.T) {
	c := fakeCLI(t, `echo "nothing to see"`)
	_, err := c.Head(context.Background())
	var parseErr *ParseError
	require.True(t, errors.As(err, &parseErr))
	assert.Equal(t, "last-finalized-block", parseErr.Op)
}

func TestClientCLIError(t *testing.T) {
	c := fakeCLI(t, `echo "connection refused" >&2; exit 1`)
	_, err := c.Head(context.Background())
	var cliErr *CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Contains(t, cliErr.Error(), "connection refused")
}

func TestClientBlockDetailsCached(t *testing.T) {
	// the script appends to a counter file so we can observe process spawns
	counter := filepath.Join(t.TempDir(), "calls")
	c := fakeCLI(t, `echo x >> `+counter+`
cat <<'EOF'
{"blockInfo": {"blockHash": "h1", "blockNumber": 1}, "deploys": []}
EOF`)

	for i := 0; i < 3; i++ {
		detail, err := c.BlockDetails(context.Background(), "h1")
		require.NoError(t, err)
		assert.Equal(t, "h1", detail.BlockInfo.BlockHash)
	}

	data, err := os.ReadFile(counter)
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(data))
}

func TestClientBonds(t *testing.T) {
	c := fakeCLI(t, `cat <<'EOF'
Validator: a1b2c3 | Stake: 7,000 ASI
EOF`)
	bonds, err := c.Bonds(context.Background())
	require.NoError(t, err)
	require.Len(t, bonds, 1)
	assert.Equal(t, "a1b2c3", bonds[0].Validator)
	assert.Equal(t, int64(7000), bonds[0].Stake)
}

func TestClientObserverRouting(t *testing.T) {
	args := filepath.Join(t.TempDir(), "args")
	c := fakeCLIOpts(t, `echo "$@" > `+args+`
echo "Block Number: 1"`, Options{
		Host:             "validator.local",
		HTTPPort:         40413,
		GRPCPort:         40412,
		ObserverHost:     "observer.local",
		ObserverHTTPPort: 40453,
		ObserverGRPCPort: 40452,
	})

	_, err := c.Head(context.Background())
	require.NoError(t, err)

	recorded, err := os.ReadFile(args)
	require.NoError(t, err)
	assert.Contains(t, string(recorded), "-H observer.local")
	assert.Contains(t, string(recorded), "--http-port 40453")

	_, err = c.BlocksByHeight(context.Background(), 1, 2)
	require.NoError(t, err)

	recorded, err = os.ReadFile(args)
	require.NoError(t, err)
	assert.Contains(t, string(recorded), "-H observer.local")
	assert.Contains(t, string(recorded), "--grpc-port 40452")
}

func TestClientObserverFallsBackToNode(t *testing.T) {
	args := filepath.Join(t.TempDir(), "args")
	c := fakeCLIOpts(t, `echo "$@" > `+args+`
echo "Block Number: 1"`, Options{
		Host:     "validator.local",
		HTTPPort: 40413,
		GRPCPort: 40412,
	})

	_, err := c.Head(context.Background())
	require.NoError(t, err)

	recorded, err := os.ReadFile(args)
	require.NoError(t, err)
	assert.Contains(t, string(recorded), "-H validator.local")
	assert.Contains(t, string(recorded), "--http-port 40413")
}

func TestClientTimeout(t *testing.T) {
	c := fakeCLIOpts(t, `sleep 2`, Options{
		Host:     "localhost",
		HTTPPort: 40413,
		GRPCPort: 40412,
		Timeout:  50 * time.Millisecond,
	})

	_, err := c.Head(context.Background())
	var cliErr *CLIError
	require.True(t, errors.As(err, &cliErr))
	assert.Contains(t, cliErr.Error(), "timed out")
}

func TestClientHealthCheck(t *testing.T) {
	healthy := fakeCLI(t, `echo "Block Number: 1"`)
	assert.True(t, healthy.HealthCheck(context.Background()))

	down := fakeCLI(t, `exit 1`)
	assert.False(t, down.HealthCheck(context.Background()))
}
