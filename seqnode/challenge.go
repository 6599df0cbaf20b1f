// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package seqnode

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/pkg/errors"

	"github.com/seqlabs/rollup/ledger"
	"github.com/seqlabs/rollup/rollupstate"
	"github.com/seqlabs/rollup/util/merkletree"
)

var (
	challengesSubmittedCounter = metrics.NewRegisteredCounter("rollup/challenge/submitted", nil)
	challengesProvenCounter    = metrics.NewRegisteredCounter("rollup/challenge/proven", nil)
)

// ChallengeEngine builds and verifies fraud proofs, and drives the
// rollback of proven-fraudulent batches. Verification itself is pure and
// delegated to rollupstate, the same rules the ledger applies.
type ChallengeEngine struct {
	ledger  ledger.Ledger
	tracker *LifecycleTracker
}

func NewChallengeEngine(l ledger.Ledger, tracker *LifecycleTracker) *ChallengeEngine {
	return &ChallengeEngine{
		ledger:  l,
		tracker: tracker,
	}
}

// BuildFraudProof packages the three proof elements for a disputed
// transaction: inclusion against the batch's transaction root, the
// supplied state-transition element, and the execution digest. The state
// membership proofs come from the caller, who holds the account data.
func (e *ChallengeEngine) BuildFraudProof(
	batch *rollupstate.Batch,
	txIndex uint64,
	stateTransition rollupstate.StateTransitionProof,
) (*rollupstate.FraudProof, error) {
	if txIndex >= uint64(len(batch.Transactions)) {
		return nil, errors.Errorf("transaction index %v out of range for batch %v", txIndex, batch.Header.BatchNumber)
	}
	tx := batch.Transactions[txIndex]
	leaves := rollupstate.TransactionLeaves(batch.Transactions)
	siblings, err := merkletree.Prove(leaves, txIndex)
	if err != nil {
		return nil, err
	}
	return &rollupstate.FraudProof{
		BatchNumber: batch.Header.BatchNumber,
		Inclusion: rollupstate.InclusionProof{
			Transaction:   tx,
			ClaimedTxHash: tx.Hash(),
			LeafIndex:     txIndex,
			Siblings:      siblings,
		},
		StateTransition: stateTransition,
		Execution: rollupstate.ExecutionProof{
			Digest: rollupstate.ExecutionDigest(&tx, stateTransition.PreStateRoot),
		},
	}, nil
}

// VerifyFraudProof checks a proof against a batch; pure, safe to call
// concurrently for different batches.
func (e *ChallengeEngine) VerifyFraudProof(batch *rollupstate.Batch, proof *rollupstate.FraudProof) bool {
	return rollupstate.VerifyFraudProof(batch, proof)
}

// SubmitChallenge raises a dispute against a batch. Refused without
// attempting verification when the batch is unknown, finalized, outside
// its challenge window, already challenged, or the challenger already
// challenged it. On a proven challenge the batch and every later batch
// are rolled back.
func (e *ChallengeEngine) SubmitChallenge(ctx context.Context, batchNumber uint64, challenger common.Address, proof *rollupstate.FraudProof) error {
	entry, err := e.tracker.GetBatch(batchNumber)
	if err != nil {
		return err
	}
	if entry == nil {
		return ledger.ErrUnknownBatch
	}
	if entry.State == rollupstate.BatchStateFinalized {
		return ledger.ErrBatchFinalized
	}
	if uint64(e.tracker.Now().Unix()) > entry.Context.ChallengePeriodEnd {
		return ledger.ErrChallengeWindowClosed
	}
	if entry.Challenged || entry.State == rollupstate.BatchStateRolledBack {
		return ledger.ErrBatchChallenged
	}
	records, err := e.tracker.ChallengeRecords(batchNumber)
	if err != nil {
		return err
	}
	for _, record := range records {
		if record.Challenger == challenger {
			return ledger.ErrDuplicateChallenger
		}
	}

	challengesSubmittedCounter.Inc(1)
	batch := rollupstate.Batch{
		Header:       entry.Header,
		Context:      entry.Context,
		Transactions: entry.Transactions,
	}
	if !rollupstate.VerifyFraudProof(&batch, proof) {
		// record the failed attempt so the same address cannot retry;
		// the batch itself stays uncontested
		failedRecord := rollupstate.ChallengeRecord{
			BatchNumber: batchNumber,
			Challenger:  challenger,
			Proof:       *proof,
		}
		if err := e.tracker.AddChallengeRecord(batchNumber, &failedRecord); err != nil {
			return err
		}
		return ledger.ErrInvalidFraudProof
	}

	if err := e.ledger.SubmitChallenge(ctx, batchNumber, challenger, proof); err != nil {
		return errors.Wrap(err, "submitting challenge to ledger")
	}

	record := rollupstate.ChallengeRecord{
		BatchNumber: batchNumber,
		Challenger:  challenger,
		Proof:       *proof,
		Succeeded:   true,
	}
	if err := e.tracker.MarkChallenged(batchNumber, &record); err != nil {
		return err
	}
	if err := e.tracker.Rollback(batchNumber); err != nil {
		return err
	}
	challengesProvenCounter.Inc(1)
	log.Warn("ChallengeEngine: fraud proven", "batchNumber", batchNumber, "challenger", challenger)
	return nil
}
