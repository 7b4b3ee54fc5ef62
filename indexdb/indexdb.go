// Copyright (c) 2025 The ASI-Chain developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package indexdb is the store gateway. It owns the SQLite schema and every
// read/write path of the indexed projection.
package indexdb

import (
	"database/sql"
	"fmt"
	"strconv"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/asi-chain/asi-indexer/log"
)

var logger = log.WithContext("pkg", "indexdb")

const checkpointKey = "last_indexed_block"

type IndexDB struct {
	path string
	db   *sql.DB
}

// New creates or opens the index db at the given path.
func New(path string) (indexDB *IndexDB, err error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if indexDB == nil {
			db.Close()
		}
	}()
	if _, err := db.Exec(fullSchema); err != nil {
		return nil, errors.Wrap(err, "create schema")
	}
	return &IndexDB{path, db}, nil
}

var memSeq atomic.Int64

// NewMem creates an index db in ram. A named shared cache keeps the db
// alive across pooled connections while isolating instances.
func NewMem() (*IndexDB, error) {
	name := fmt.Sprintf("file:indexdb-mem-%d?mode=memory&cache=shared", memSeq.Add(1))
	return New(name)
}

// Close closes the index db.
func (db *IndexDB) Close() {
	db.db.Close()
}

func (db *IndexDB) Path() string {
	return db.path
}

// Ping reports whether the underlying database answers.
func (db *IndexDB) Ping() error {
	return db.db.Ping()
}

// Transact runs fn inside a transaction, committing on nil and rolling
// back otherwise.
func (db *IndexDB) Transact(fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()
	return fn(tx)
}

// Exec runs a raw statement outside any managed transaction.
func (db *IndexDB) Exec(query string, args ...any) (sql.Result, error) {
	return db.db.Exec(query, args...)
}

// Query runs a raw query outside any managed transaction.
func (db *IndexDB) Query(query string, args ...any) (*sql.Rows, error) {
	return db.db.Query(query, args...)
}

// LastIndexedBlock returns the checkpoint, or -1 when nothing has been
// indexed yet so that block 0 is the first fetched.
func (db *IndexDB) LastIndexedBlock() (int64, error) {
	var value string
	err := db.db.QueryRow(
		"SELECT value FROM indexer_state WHERE key = ?", checkpointKey,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return -1, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "malformed checkpoint %q", value)
	}
	return n, nil
}

// SetLastIndexedBlock durably advances (or rewinds) the checkpoint in its
// own transaction.
func (db *IndexDB) SetLastIndexedBlock(n int64) error {
	_, err := db.db.Exec(
		`INSERT INTO indexer_state(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		checkpointKey, strconv.FormatInt(n, 10),
	)
	return err
}

// SetLastIndexedBlockTx is the in-transaction variant used by the reorg
// rollback, which must rewind the checkpoint atomically with the deletes.
func (db *IndexDB) SetLastIndexedBlockTx(tx *sql.Tx, n int64) error {
	_, err := tx.Exec(
		`INSERT INTO indexer_state(key, value) VALUES(?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP`,
		checkpointKey, strconv.FormatInt(n, 10),
	)
	return err
}

// Reset drops every table and recreates the schema. Destructive; only the
// cmd layer calls it, behind an explicit flag.
func (db *IndexDB) Reset() error {
	for _, name := range tableNames {
		if _, err := db.db.Exec("DROP TABLE IF EXISTS " + name); err != nil {
			return errors.Wrapf(err, "drop %s", name)
		}
	}
	if _, err := db.db.Exec(fullSchema); err != nil {
		return errors.Wrap(err, "recreate schema")
	}
	logger.Warn("index db reset, all indexed data dropped", "path", db.path)
	return nil
}
