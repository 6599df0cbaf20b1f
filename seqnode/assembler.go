// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package seqnode

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/seqlabs/rollup/rollupstate"
	"github.com/seqlabs/rollup/util/merkletree"
)

// BatchAssembler builds batches from an ordered transaction list. It is
// side-effect free: it never touches the mempool, so a failed submission
// can be retried without losing transactions.
type BatchAssembler struct {
	submitter         common.Address
	challengeDuration time.Duration
	stateRootFunc     rollupstate.StateRootFunc
}

func NewBatchAssembler(submitter common.Address, challengeDuration time.Duration, stateRootFunc rollupstate.StateRootFunc) *BatchAssembler {
	if stateRootFunc == nil {
		stateRootFunc = rollupstate.PlaceholderStateRoot
	}
	return &BatchAssembler{
		submitter:         submitter,
		challengeDuration: challengeDuration,
		stateRootFunc:     stateRootFunc,
	}
}

// Assemble builds a batch carrying the given number, chained onto
// prevBatchHash. Context timestamps are provisional: the ledger's receipt
// overrides them once the batch is acknowledged. Batch numbering starts at
// 1, so a zero batchNumber means the caller never synced with the ledger.
func (a *BatchAssembler) Assemble(
	txs []rollupstate.Transaction,
	batchNumber uint64,
	prevBatchHash common.Hash,
	prevStateRoot common.Hash,
	now time.Time,
) (*rollupstate.Batch, error) {
	if batchNumber == 0 {
		return nil, ErrNotInitialized
	}
	timestamp := uint64(now.Unix())
	batch := &rollupstate.Batch{
		Header: rollupstate.BatchHeader{
			BatchNumber:     batchNumber,
			Timestamp:       timestamp,
			PrevBatchHash:   prevBatchHash,
			TransactionRoot: merkletree.Root(rollupstate.TransactionLeaves(txs)),
			StateRoot:       a.stateRootFunc(prevStateRoot, txs),
		},
		Context: rollupstate.BatchContext{
			Submitter:           a.submitter,
			SubmissionTimestamp: timestamp,
			ChallengePeriodEnd:  uint64(now.Add(a.challengeDuration).Unix()),
		},
		Transactions: txs,
	}
	return batch, nil
}
