// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package seqnode

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethdb"

	"github.com/seqlabs/rollup/ledger"
	"github.com/seqlabs/rollup/rollupstate"
)

// Node is one logical sequencer instance: mempool, batch pipeline,
// lifecycle tracking and challenge handling wired against one ledger.
// The ingress API layer sits on top of these methods.
type Node struct {
	Validator *TxValidator
	Mempool   *Mempool
	Assembler *BatchAssembler
	Submitter *BatchSubmitter
	Tracker   *LifecycleTracker
	Challenge *ChallengeEngine
}

func CreateNode(
	db ethdb.Database,
	config *Config,
	l ledger.Ledger,
	submitter common.Address,
	stateRootFunc rollupstate.StateRootFunc,
) (*Node, error) {
	validator, err := NewTxValidator(config.SignerCacheSize)
	if err != nil {
		return nil, err
	}
	mempool := NewMempool(validator, config.Submitter.BatchSize, config.MempoolCapacity)
	assembler := NewBatchAssembler(submitter, config.ChallengePeriod, stateRootFunc)
	tracker, err := NewLifecycleTracker(db, l)
	if err != nil {
		return nil, err
	}
	batchSubmitter := NewBatchSubmitter(l, mempool, assembler, tracker, &config.Submitter)
	return &Node{
		Validator: validator,
		Mempool:   mempool,
		Assembler: assembler,
		Submitter: batchSubmitter,
		Tracker:   tracker,
		Challenge: NewChallengeEngine(l, tracker),
	}, nil
}

// Start resynchronizes numbering state with the ledger and, if enabled,
// runs the submission loop.
func (n *Node) Start(ctx context.Context) error {
	if err := n.Tracker.SyncToLedger(ctx); err != nil {
		return err
	}
	if n.Submitter.config.Enable {
		n.Submitter.Start(ctx)
	}
	return nil
}

func (n *Node) StopAndWait() {
	if n.Submitter.Started() {
		n.Submitter.StopAndWait()
	}
}

// AddTransaction admits one transaction into the mempool.
func (n *Node) AddTransaction(tx rollupstate.Transaction) error {
	return n.Mempool.Admit(tx)
}

// PendingTransactions returns a snapshot of the unbatched transactions.
func (n *Node) PendingTransactions() []rollupstate.Transaction {
	return n.Mempool.Snapshot()
}

// BatchStatus returns the stored entry for a batch number, nil if unknown.
func (n *Node) BatchStatus(batchNumber uint64) (*BatchEntry, error) {
	return n.Tracker.GetBatch(batchNumber)
}

// RequestFinalize asks the ledger to finalize a batch.
func (n *Node) RequestFinalize(ctx context.Context, batchNumber uint64) error {
	return n.Tracker.Finalize(ctx, batchNumber)
}

// SubmitChallenge raises a dispute against a batch.
func (n *Node) SubmitChallenge(ctx context.Context, batchNumber uint64, challenger common.Address, proof *rollupstate.FraudProof) error {
	return n.Challenge.SubmitChallenge(ctx, batchNumber, challenger, proof)
}
