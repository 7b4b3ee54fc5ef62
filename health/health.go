// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"sync"
	"time"
)

// DefaultBlockTolerance is how stale the last indexed block may be before
// the indexer reports unhealthy. Sync ticks every few seconds, so a minute
// of silence means the pipeline is stuck.
const DefaultBlockTolerance = 60 * time.Second

type BlockIngestion struct {
	LastBlock          *int64     `json:"lastBlock"`
	LastBlockTimestamp *time.Time `json:"lastBlockIngestionTimestamp"`
}

type Status struct {
	Healthy        bool            `json:"healthy"`
	BlockIngestion *BlockIngestion `json:"blockIngestion"`
	ChainSync      bool            `json:"chainSync"`
}

type Health struct {
	lock           sync.RWMutex
	newBlock       time.Time
	lastBlock      *int64
	chainSynced    bool
	blockTolerance time.Duration
}

func New(blockTolerance time.Duration) *Health {
	if blockTolerance <= 0 {
		blockTolerance = DefaultBlockTolerance
	}
	return &Health{blockTolerance: blockTolerance}
}

// NewIndexedBlock records a freshly indexed block.
func (h *Health) NewIndexedBlock(number int64) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.newBlock = time.Now()
	h.lastBlock = &number
}

// ChainSyncStatus flags whether the indexer has caught up with the head.
func (h *Health) ChainSyncStatus(synced bool) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.chainSynced = synced
}

func (h *Health) Status() (*Status, error) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	ingestion := &BlockIngestion{
		LastBlock:          h.lastBlock,
		LastBlockTimestamp: &h.newBlock,
	}

	healthy := h.lastBlock != nil &&
		time.Since(h.newBlock) <= h.blockTolerance &&
		h.chainSynced

	return &Status{
		Healthy:        healthy,
		BlockIngestion: ingestion,
		ChainSync:      h.chainSynced,
	}, nil
}
