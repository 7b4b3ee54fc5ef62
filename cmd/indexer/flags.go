// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"
)

var (
	cliPathFlag = cli.StringFlag{
		Name:   "cli-path",
		EnvVar: "ASI_CLI_PATH",
		Usage:  "path to the node CLI executable",
	}
	nodeHostFlag = cli.StringFlag{
		Name:   "node-host",
		EnvVar: "ASI_NODE_HOST",
		Value:  "localhost",
		Usage:  "node hostname",
	}
	grpcPortFlag = cli.IntFlag{
		Name:   "grpc-port",
		EnvVar: "ASI_GRPC_PORT",
		Value:  40412,
		Usage:  "node gRPC port for blockchain operations",
	}
	httpPortFlag = cli.IntFlag{
		Name:   "http-port",
		EnvVar: "ASI_HTTP_PORT",
		Value:  40413,
		Usage:  "node HTTP port for status queries",
	}
	observerHostFlag = cli.StringFlag{
		Name:   "observer-host",
		EnvVar: "ASI_OBSERVER_HOST",
		Usage:  "observer hostname for read queries (defaults to --node-host)",
	}
	observerGRPCPortFlag = cli.IntFlag{
		Name:   "observer-grpc-port",
		EnvVar: "ASI_OBSERVER_GRPC_PORT",
		Value:  40452,
		Usage:  "observer gRPC port",
	}
	observerHTTPPortFlag = cli.IntFlag{
		Name:   "observer-http-port",
		EnvVar: "ASI_OBSERVER_HTTP_PORT",
		Value:  40453,
		Usage:  "observer HTTP port",
	}
	nodeTimeoutFlag = cli.IntFlag{
		Name:   "node-timeout",
		EnvVar: "ASI_NODE_TIMEOUT",
		Value:  30,
		Usage:  "seconds before a CLI invocation is abandoned",
	}
	dataDirFlag = cli.StringFlag{
		Name:   "data-dir",
		EnvVar: "ASI_DATA_DIR",
		Value:  defaultDataDir(),
		Usage:  "directory for the index database",
	}
	syncIntervalFlag = cli.IntFlag{
		Name:   "sync-interval",
		EnvVar: "ASI_SYNC_INTERVAL",
		Value:  5,
		Usage:  "seconds between sync cycles",
	}
	batchSizeFlag = cli.IntFlag{
		Name:   "batch-size",
		EnvVar: "ASI_BATCH_SIZE",
		Value:  100,
		Usage:  "number of blocks to process per batch",
	}
	startFromBlockFlag = cli.Int64Flag{
		Name:   "start-from-block",
		EnvVar: "ASI_START_FROM_BLOCK",
		Value:  0,
		Usage:  "block number to start syncing from on an empty store",
	}
	reorgCheckIntervalFlag = cli.IntFlag{
		Name:   "reorg-check-interval",
		EnvVar: "ASI_REORG_CHECK_INTERVAL",
		Value:  30,
		Usage:  "seconds between reorg checks",
	}
	maxReorgDepthFlag = cli.Int64Flag{
		Name:   "max-reorg-depth",
		EnvVar: "ASI_MAX_REORG_DEPTH",
		Value:  100,
		Usage:  "deepest reorganization rolled back automatically",
	}
	confirmationDepthFlag = cli.Int64Flag{
		Name:   "confirmation-depth",
		EnvVar: "ASI_CONFIRMATION_DEPTH",
		Value:  10,
		Usage:  "blocks below the head considered settled",
	}
	apiAddrFlag = cli.StringFlag{
		Name:   "api-addr",
		EnvVar: "ASI_API_ADDR",
		Value:  "localhost:9090",
		Usage:  "monitoring API listening address",
	}
	enableMetricsFlag = cli.BoolTFlag{
		Name:   "enable-metrics",
		EnvVar: "ASI_ENABLE_METRICS",
		Usage:  "expose prometheus metrics on /metrics",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:   "json-logs",
		EnvVar: "ASI_JSON_LOGS",
		Usage:  "emit logs as JSON instead of terminal format",
	}
	verbosityFlag = cli.IntFlag{
		Name:   "verbosity",
		EnvVar: "ASI_VERBOSITY",
		Value:  3,
		Usage:  "log verbosity (0-5: crit, error, warn, info, debug, trace)",
	}
	resetDBFlag = cli.BoolFlag{
		Name:  "reset-db",
		Usage: "drop all indexed data and re-sync from scratch",
	}
	forceFlag = cli.BoolFlag{
		Name:  "force",
		Usage: "skip interactive confirmations",
	}
)
