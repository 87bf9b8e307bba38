// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2025 The Verus developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/denza/VerusCoin/mempool"
)

const (
	// estimatorSnapshotKey is the database key the serialized fee
	// estimator state is stored under.
	estimatorSnapshotKey = "feeestimator"
)

// version returns the application version as a properly formed string.
func version() string {
	return "0.1.0"
}

// restoreEstimator loads the fee estimator snapshot from the passed database
// if one is present.  A missing, stale, or unreadable snapshot is not fatal;
// the estimator simply starts from scratch.
func restoreEstimator(db *leveldb.DB) *mempool.FeeEstimator {
	data, err := db.Get([]byte(estimatorSnapshotKey), nil)
	if err != nil {
		if err != leveldb.ErrNotFound {
			mainLog.Warnf("Failed to read fee estimator snapshot: %v",
				err)
		}
		return mempool.NewFeeEstimator(0, 0)
	}

	estimator, err := mempool.RestoreFeeEstimator(data)
	if err != nil {
		mainLog.Warnf("Failed to restore fee estimator, starting "+
			"fresh: %v", err)
		return mempool.NewFeeEstimator(0, 0)
	}

	mainLog.Infof("Restored fee estimator at height %d",
		estimator.LastKnownHeight())
	return estimator
}

// saveEstimator writes the fee estimator snapshot to the passed database.
func saveEstimator(db *leveldb.DB, estimator *mempool.FeeEstimator) {
	data, err := estimator.Serialize()
	if err != nil {
		mainLog.Errorf("Failed to serialize fee estimator: %v", err)
		return
	}
	if err := db.Put([]byte(estimatorSnapshotKey), data, nil); err != nil {
		mainLog.Errorf("Failed to save fee estimator snapshot: %v", err)
	}
}

// realMain is the real main function for verusd.  It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is
// called.
func realMain() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	initLogRotator(filepath.Join(cfg.LogDir, "verusd.log"))
	defer logRotator.Close()
	setLogLevels(cfg.DebugLevel)

	mainLog.Infof("Version %s", version())

	db, err := leveldb.OpenFile(filepath.Join(cfg.DataDir, "mempool"), nil)
	if err != nil {
		mainLog.Errorf("Failed to open mempool database: %v", err)
		return err
	}
	defer db.Close()

	estimator := restoreEstimator(db)
	defer saveEstimator(db, estimator)

	mempoolConfig := mempool.Config{
		Policy: mempool.Policy{
			SanityCheckRatio: cfg.MempoolCheckFreq,
		},
		Estimator: estimator,
	}
	if cfg.AddrIndex {
		mainLog.Info("Unconfirmed address index is enabled")
		mempoolConfig.AddrIndex = mempool.NewAddrIndex()
	}
	if cfg.SpentIndex {
		mainLog.Info("Unconfirmed spent index is enabled")
		mempoolConfig.SpentIndex = mempool.NewSpentIndex()
	}
	txPool := mempool.New(&mempoolConfig)
	mainLog.Infof("Transaction memory pool initialized (size: %d)",
		txPool.Count())

	// Wait until the interrupt signal is received from an OS signal.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt
	mainLog.Info("Shutting down...")

	return nil
}

func main() {
	if err := realMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
