// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package apiserver exposes the monitoring surface: health and readiness
// probes, prometheus metrics, an operator status view and thin read-only
// queries over the local store. This is not the public explorer API.
package apiserver

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/asi-chain/asi-indexer/health"
	"github.com/asi-chain/asi-indexer/indexdb"
	"github.com/asi-chain/asi-indexer/log"
	"github.com/asi-chain/asi-indexer/metrics"
	"github.com/asi-chain/asi-indexer/reorg"
	"github.com/asi-chain/asi-indexer/resilience"
)

var logger = log.WithContext("pkg", "apiserver")

const (
	defaultPageLimit = 20
	maxPageLimit     = 100

	probeTimeout = 5 * time.Second
)

// NodeProber reports whether the chain node answers. *chain.Client
// implements it.
type NodeProber interface {
	HealthCheck(ctx context.Context) bool
}

// Options configures the handler assembly.
type Options struct {
	EnableMetrics bool
}

type server struct {
	db       *indexdb.IndexDB
	node     NodeProber
	health   *health.Health
	monitor  *reorg.Monitor
	nodeExec *resilience.Executor
	dbExec   *resilience.Executor
}

// New assembles the full monitoring router with CORS and request logging.
func New(
	db *indexdb.IndexDB,
	node NodeProber,
	h *health.Health,
	monitor *reorg.Monitor,
	nodeExec, dbExec *resilience.Executor,
	opts Options,
) http.Handler {
	s := &server{
		db:       db,
		node:     node,
		health:   h,
		monitor:  monitor,
		nodeExec: nodeExec,
		dbExec:   dbExec,
	}

	router := mux.NewRouter()

	router.Path("/health").Methods(http.MethodGet).
		Name("health").HandlerFunc(WrapHandlerFunc(s.handleHealth))
	router.Path("/readiness").Methods(http.MethodGet).
		Name("readiness").HandlerFunc(WrapHandlerFunc(s.handleReadiness))
	router.Path("/ready").Methods(http.MethodGet).
		Name("ready").HandlerFunc(WrapHandlerFunc(s.handleReadiness))
	router.Path("/status").Methods(http.MethodGet).
		Name("status").HandlerFunc(WrapHandlerFunc(s.handleStatus))
	if opts.EnableMetrics {
		router.Path("/metrics").Methods(http.MethodGet).
			Name("metrics").Handler(metrics.HTTPHandler())
	}

	api := router.PathPrefix("/api").Subrouter()
	api.Path("/blocks").Methods(http.MethodGet).
		Name("api_blocks").HandlerFunc(WrapHandlerFunc(s.handleBlocks))
	api.Path("/blocks/{number:[0-9]+}").Methods(http.MethodGet).
		Name("api_block").HandlerFunc(WrapHandlerFunc(s.handleBlock))
	api.Path("/deployments").Methods(http.MethodGet).
		Name("api_deployments").HandlerFunc(WrapHandlerFunc(s.handleDeployments))
	api.Path("/deployments/{id}").Methods(http.MethodGet).
		Name("api_deployment").HandlerFunc(WrapHandlerFunc(s.handleDeployment))
	api.Path("/transfers").Methods(http.MethodGet).
		Name("api_transfers").HandlerFunc(WrapHandlerFunc(s.handleTransfers))
	api.Path("/validators").Methods(http.MethodGet).
		Name("api_validators").HandlerFunc(WrapHandlerFunc(s.handleValidators))
	api.Path("/stats/network").Methods(http.MethodGet).
		Name("api_network_stats").HandlerFunc(WrapHandlerFunc(s.handleNetworkStats))
	api.Path("/reorgs").Methods(http.MethodGet).
		Name("api_reorgs").HandlerFunc(WrapHandlerFunc(s.handleReorgs))
	api.Path("/address/{address}/transfers").Methods(http.MethodGet).
		Name("api_address_transfers").HandlerFunc(WrapHandlerFunc(s.handleAddressTransfers))

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return requestLogger(cors(handlers.CompressHandler(router)))
}

// requestLogger logs each request at debug level with its duration.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"duration", time.Since(started),
			"remote", r.RemoteAddr,
		)
	})
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) error {
	status, err := s.health.Status()
	if err != nil {
		return err
	}
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	return WriteJSON(w, status)
}

// handleReadiness probes the two hard dependencies directly: the local
// store and the node CLI.
func (s *server) handleReadiness(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	dbOK := s.db.Ping() == nil
	nodeOK := s.node.HealthCheck(ctx)
	if !dbOK || !nodeOK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	return WriteJSON(w, M{
		"ready":    dbOK && nodeOK,
		"database": dbOK,
		"node":     nodeOK,
	})
}

func (s *server) handleStatus(w http.ResponseWriter, _ *http.Request) error {
	last, err := s.db.LastIndexedBlock()
	if err != nil {
		return err
	}
	count, err := s.db.CountBlocks()
	if err != nil {
		return err
	}
	reorgs, err := s.db.ReorgHistory(5)
	if err != nil {
		return err
	}

	status := M{
		"last_indexed_block": last,
		"blocks_stored":      count,
		"recent_reorgs":      reorgs,
		"executors": []resilience.ExecutorStats{
			s.nodeExec.Stats(),
			s.dbExec.Stats(),
		},
	}
	if s.monitor != nil {
		status["last_verified_block"] = s.monitor.LastVerified()
	}
	return WriteJSON(w, status)
}

func (s *server) handleBlocks(w http.ResponseWriter, r *http.Request) error {
	limit, err := pageLimit(r)
	if err != nil {
		return err
	}
	blocks, err := s.db.RecentBlocks(limit)
	if err != nil {
		return err
	}
	return WriteJSON(w, blocks)
}

func (s *server) handleBlock(w http.ResponseWriter, r *http.Request) error {
	number, err := strconv.ParseInt(mux.Vars(r)["number"], 10, 64)
	if err != nil {
		return BadRequest(errors.WithMessage(err, "number"))
	}
	block, err := s.db.BlockByNumber(number)
	if err != nil {
		return err
	}
	if block == nil {
		return NotFound(errors.Errorf("block %d not indexed", number))
	}
	return WriteJSON(w, block)
}

func (s *server) handleDeployments(w http.ResponseWriter, r *http.Request) error {
	limit, err := pageLimit(r)
	if err != nil {
		return err
	}
	deployments, err := s.db.RecentDeployments(limit)
	if err != nil {
		return err
	}
	return WriteJSON(w, deployments)
}

func (s *server) handleDeployment(w http.ResponseWriter, r *http.Request) error {
	id := mux.Vars(r)["id"]
	d, err := s.db.DeploymentByID(id)
	if err != nil {
		return err
	}
	if d == nil {
		return NotFound(errors.Errorf("deployment %s not indexed", id))
	}
	return WriteJSON(w, d)
}

func (s *server) handleTransfers(w http.ResponseWriter, r *http.Request) error {
	limit, err := pageLimit(r)
	if err != nil {
		return err
	}
	transfers, err := s.db.RecentTransfers(limit)
	if err != nil {
		return err
	}
	return WriteJSON(w, transfers)
}

func (s *server) handleValidators(w http.ResponseWriter, _ *http.Request) error {
	validators, err := s.db.Validators()
	if err != nil {
		return err
	}
	return WriteJSON(w, validators)
}

func (s *server) handleNetworkStats(w http.ResponseWriter, _ *http.Request) error {
	stats, err := s.db.LatestNetworkStats()
	if err != nil {
		return err
	}
	if stats == nil {
		return NotFound(errors.New("no network stats recorded yet"))
	}
	return WriteJSON(w, stats)
}

func (s *server) handleReorgs(w http.ResponseWriter, r *http.Request) error {
	limit, err := pageLimit(r)
	if err != nil {
		return err
	}
	records, err := s.db.ReorgHistory(limit)
	if err != nil {
		return err
	}
	return WriteJSON(w, records)
}

func (s *server) handleAddressTransfers(w http.ResponseWriter, r *http.Request) error {
	limit, err := pageLimit(r)
	if err != nil {
		return err
	}
	address := mux.Vars(r)["address"]
	transfers, err := s.db.TransfersByAddress(address, limit)
	if err != nil {
		return err
	}
	return WriteJSON(w, transfers)
}

func pageLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultPageLimit, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, BadRequest(errors.Errorf("invalid limit %q", raw))
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return limit, nil
}
