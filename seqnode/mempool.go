// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package seqnode

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/pkg/errors"

	"github.com/seqlabs/rollup/rollupstate"
)

var (
	mempoolSizeGauge  = metrics.NewRegisteredGauge("rollup/mempool/size", nil)
	txAcceptedCounter = metrics.NewRegisteredCounter("rollup/mempool/accepted", nil)
	txRejectedCounter = metrics.NewRegisteredCounter("rollup/mempool/rejected", nil)
)

// Mempool holds admitted, unbatched transactions in insertion order.
// Insertion order is the batch ordering: no reordering, no priority, no
// fee market. Admission can run concurrently with snapshot reads.
type Mempool struct {
	mutex     sync.Mutex
	txs       []rollupstate.Transaction
	validator *TxValidator
	batchSize int
	capacity  int
	fullChan  chan struct{}
}

func NewMempool(validator *TxValidator, batchSize int, capacity int) *Mempool {
	if capacity < batchSize {
		capacity = batchSize
	}
	return &Mempool{
		validator: validator,
		batchSize: batchSize,
		capacity:  capacity,
		fullChan:  make(chan struct{}, 1),
	}
}

// Admit appends the transaction if its signature validates. Duplicates are
// tolerated. When the pending count reaches the batch threshold, the full
// channel is signalled so the submitter can assemble immediately.
func (m *Mempool) Admit(tx rollupstate.Transaction) error {
	if !m.validator.Validate(&tx) {
		txRejectedCounter.Inc(1)
		return errors.Wrapf(ErrTxValidation, "from %v nonce %v", tx.From, tx.Nonce)
	}
	m.mutex.Lock()
	if len(m.txs) >= m.capacity {
		m.mutex.Unlock()
		txRejectedCounter.Inc(1)
		return ErrMempoolFull
	}
	m.txs = append(m.txs, tx)
	pending := len(m.txs)
	m.mutex.Unlock()

	txAcceptedCounter.Inc(1)
	mempoolSizeGauge.Update(int64(pending))
	log.Trace("Mempool: transaction admitted", "from", tx.From, "nonce", tx.Nonce, "pending", pending)
	if pending >= m.batchSize {
		select {
		case m.fullChan <- struct{}{}:
		default:
		}
	}
	return nil
}

// Drain atomically removes and returns the first n transactions in FIFO
// order. Fewer are returned if fewer are pending.
func (m *Mempool) Drain(n int) []rollupstate.Transaction {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if n > len(m.txs) {
		n = len(m.txs)
	}
	drained := make([]rollupstate.Transaction, n)
	copy(drained, m.txs[:n])
	m.txs = append(m.txs[:0:0], m.txs[n:]...)
	mempoolSizeGauge.Update(int64(len(m.txs)))
	return drained
}

// Snapshot returns a copy of the pending transactions for read-only use.
func (m *Mempool) Snapshot() []rollupstate.Transaction {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	snapshot := make([]rollupstate.Transaction, len(m.txs))
	copy(snapshot, m.txs)
	return snapshot
}

func (m *Mempool) Len() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.txs)
}

// FullChan is signalled whenever admission reaches the batch threshold.
func (m *Mempool) FullChan() <-chan struct{} {
	return m.fullChan
}
