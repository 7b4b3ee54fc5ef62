// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/asi-chain/asi-indexer/apiserver"
	"github.com/asi-chain/asi-indexer/chain"
	"github.com/asi-chain/asi-indexer/co"
	"github.com/asi-chain/asi-indexer/health"
	"github.com/asi-chain/asi-indexer/indexdb"
	"github.com/asi-chain/asi-indexer/indexer"
	"github.com/asi-chain/asi-indexer/log"
	"github.com/asi-chain/asi-indexer/metrics"
	"github.com/asi-chain/asi-indexer/reorg"
	"github.com/asi-chain/asi-indexer/resilience"
)

var (
	version   string
	gitCommit string
)

func fullVersion() string {
	if gitCommit == "" {
		return version
	}
	return fmt.Sprintf("%s-%s", version, gitCommit)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "asi-indexer",
		Usage:     "Block indexer for the ASI chain",
		Copyright: "2025 The ASI-Chain developers",
		Flags: []cli.Flag{
			cliPathFlag,
			nodeHostFlag,
			grpcPortFlag,
			httpPortFlag,
			observerHostFlag,
			observerGRPCPortFlag,
			observerHTTPPortFlag,
			nodeTimeoutFlag,
			dataDirFlag,
			syncIntervalFlag,
			batchSizeFlag,
			startFromBlockFlag,
			reorgCheckIntervalFlag,
			maxReorgDepthFlag,
			confirmationDepthFlag,
			apiAddrFlag,
			enableMetricsFlag,
			jsonLogsFlag,
			verbosityFlag,
			resetDBFlag,
			forceFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func defaultAction(ctx *cli.Context) error {
	initLogger(ctx)

	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return errors.Errorf("unable to resolve data directory, set --%s", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return errors.Wrap(err, "create data dir")
	}

	db, err := indexdb.New(filepath.Join(dataDir, "index.db"))
	if err != nil {
		return errors.Wrap(err, "open index db")
	}
	defer db.Close()

	if ctx.Bool(resetDBFlag.Name) {
		if !ctx.Bool(forceFlag.Name) && !confirm("Drop ALL indexed data and re-sync from scratch?") {
			return errors.New("reset aborted")
		}
		if err := db.Reset(); err != nil {
			return errors.Wrap(err, "reset index db")
		}
	}

	node, err := chain.NewClient(chain.Options{
		CLIPath:          ctx.String(cliPathFlag.Name),
		Host:             ctx.String(nodeHostFlag.Name),
		HTTPPort:         ctx.Int(httpPortFlag.Name),
		GRPCPort:         ctx.Int(grpcPortFlag.Name),
		ObserverHost:     ctx.String(observerHostFlag.Name),
		ObserverHTTPPort: ctx.Int(observerHTTPPortFlag.Name),
		ObserverGRPCPort: ctx.Int(observerGRPCPortFlag.Name),
		Timeout:          time.Duration(ctx.Int(nodeTimeoutFlag.Name)) * time.Second,
	})
	if err != nil {
		return err
	}

	if ctx.BoolT(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	nodeExec := resilience.NewNodeExecutor()
	dbExec := resilience.NewDatabaseExecutor()

	h := health.New(health.DefaultBlockTolerance)

	proc := indexer.NewProcessor(db, node, nodeExec, dbExec)
	engine := indexer.NewEngine(proc, indexer.Options{
		SyncInterval:   time.Duration(ctx.Int(syncIntervalFlag.Name)) * time.Second,
		BatchSize:      int64(ctx.Int(batchSizeFlag.Name)),
		StartFromBlock: ctx.Int64(startFromBlockFlag.Name),
		OnBlockIndexed: h.NewIndexedBlock,
		OnSyncStatus:   h.ChainSyncStatus,
	})

	monitor := reorg.NewMonitor(db, node, nodeExec, dbExec, reorg.Options{
		CheckInterval:     time.Duration(ctx.Int(reorgCheckIntervalFlag.Name)) * time.Second,
		MaxDepth:          ctx.Int64(maxReorgDepthFlag.Name),
		ConfirmationDepth: ctx.Int64(confirmationDepthFlag.Name),
	})

	apiHandler := apiserver.New(db, node, h, monitor, nodeExec, dbExec, apiserver.Options{
		EnableMetrics: ctx.BoolT(enableMetricsFlag.Name),
	})
	apiURL, apiCloser, err := startAPIServer(apiHandler, ctx.String(apiAddrFlag.Name))
	if err != nil {
		return err
	}
	defer apiCloser()

	log.Info("starting asi-indexer",
		"version", fullVersion(),
		"api", apiURL,
		"dataDir", dataDir,
	)

	exitCtx := handleExitSignal()

	var goes co.Goes
	goes.Go(func() { engine.Run(exitCtx) })
	goes.Go(func() { monitor.Run(exitCtx) })
	goes.Wait()

	log.Info("asi-indexer stopped")
	return nil
}

func startAPIServer(handler http.Handler, addr string) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen api addr [%s]", addr)
	}
	srv := &http.Server{Handler: handler}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/", func() {
		srv.Close()
		goes.Wait()
	}, nil
}
