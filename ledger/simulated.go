// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/seqlabs/rollup/rollupstate"
)

type simulatedBatch struct {
	header             rollupstate.BatchHeader
	hash               common.Hash
	challengePeriodEnd uint64
	finalized          bool
	challenged         bool
	payload            []byte
}

// SimulatedLedger is an in-process verifying ledger enforcing the exact
// acceptance rules of the real one. It shares the fraud proof rules with
// the off-chain checker through rollupstate, so the two cannot diverge.
// Used by tests and local development.
type SimulatedLedger struct {
	mutex             sync.Mutex
	batches           []simulatedBatch
	attempts          map[uint64]map[common.Address]struct{}
	records           []rollupstate.ChallengeRecord
	challengeDuration time.Duration

	// Now is the ledger's clock, swappable in tests.
	Now func() time.Time
}

func NewSimulatedLedger(challengeDuration time.Duration) *SimulatedLedger {
	return &SimulatedLedger{
		attempts:          make(map[uint64]map[common.Address]struct{}),
		challengeDuration: challengeDuration,
		Now:               time.Now,
	}
}

func (l *SimulatedLedger) latestLocked() (uint64, common.Hash) {
	if len(l.batches) == 0 {
		return 0, common.Hash{}
	}
	last := l.batches[len(l.batches)-1]
	return last.header.BatchNumber, last.hash
}

func (l *SimulatedLedger) SubmitBatch(ctx context.Context, submission *BatchSubmission) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()

	latestNumber, _ := l.latestLocked()
	if submission.BatchNumber != latestNumber+1 {
		return nil, ErrWrongBatchNumber
	}
	if len(l.batches) > 0 {
		// recompute rather than trust the stored hash
		prev := l.batches[len(l.batches)-1]
		if submission.PrevBatchHash != prev.header.Hash() {
			return nil, ErrPrevHashMismatch
		}
	} else if submission.PrevBatchHash != (common.Hash{}) {
		return nil, ErrPrevHashMismatch
	}

	header := submission.Header()
	entry := simulatedBatch{
		header:             header,
		hash:               header.Hash(),
		challengePeriodEnd: uint64(l.Now().Add(l.challengeDuration).Unix()),
		payload:            submission.Payload,
	}
	l.batches = append(l.batches, entry)
	log.Debug("SimulatedLedger: batch accepted", "batchNumber", header.BatchNumber, "hash", entry.hash)
	return &Receipt{
		BatchNumber:        header.BatchNumber,
		BatchHash:          entry.hash,
		ChallengePeriodEnd: entry.challengePeriodEnd,
	}, nil
}

func (l *SimulatedLedger) findLocked(batchNumber uint64) *simulatedBatch {
	if len(l.batches) == 0 {
		return nil
	}
	first := l.batches[0].header.BatchNumber
	if batchNumber < first || batchNumber >= first+uint64(len(l.batches)) {
		return nil
	}
	return &l.batches[batchNumber-first]
}

func (l *SimulatedLedger) SubmitChallenge(ctx context.Context, batchNumber uint64, challenger common.Address, proof *rollupstate.FraudProof) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()

	entry := l.findLocked(batchNumber)
	if entry == nil {
		return ErrUnknownBatch
	}
	if entry.finalized {
		return ErrBatchFinalized
	}
	if uint64(l.Now().Unix()) > entry.challengePeriodEnd {
		return ErrChallengeWindowClosed
	}
	if entry.challenged {
		return ErrBatchChallenged
	}
	if _, dup := l.attempts[batchNumber][challenger]; dup {
		return ErrDuplicateChallenger
	}
	if l.attempts[batchNumber] == nil {
		l.attempts[batchNumber] = make(map[common.Address]struct{})
	}
	l.attempts[batchNumber][challenger] = struct{}{}

	batch := rollupstate.Batch{Header: entry.header}
	if !rollupstate.VerifyFraudProof(&batch, proof) {
		l.records = append(l.records, rollupstate.ChallengeRecord{
			BatchNumber: batchNumber,
			Challenger:  challenger,
			Proof:       *proof,
		})
		return ErrInvalidFraudProof
	}

	entry.challenged = true
	l.records = append(l.records, rollupstate.ChallengeRecord{
		BatchNumber: batchNumber,
		Challenger:  challenger,
		Proof:       *proof,
		Succeeded:   true,
	})
	// fraud invalidates this batch and everything sequenced on top of it
	first := l.batches[0].header.BatchNumber
	l.batches = l.batches[:batchNumber-first]
	log.Info("SimulatedLedger: challenge succeeded", "batchNumber", batchNumber, "challenger", challenger)
	return nil
}

func (l *SimulatedLedger) FinalizeBatch(ctx context.Context, batchNumber uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()

	entry := l.findLocked(batchNumber)
	if entry == nil {
		return ErrUnknownBatch
	}
	if entry.finalized {
		return ErrBatchFinalized
	}
	if entry.challenged {
		return ErrBatchChallenged
	}
	if uint64(l.Now().Unix()) <= entry.challengePeriodEnd {
		return ErrChallengeWindowOpen
	}
	entry.finalized = true
	return nil
}

func (l *SimulatedLedger) LatestBatchNumber(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	number, _ := l.latestLocked()
	return number, nil
}

func (l *SimulatedLedger) LatestBatchHash(ctx context.Context) (common.Hash, error) {
	if err := ctx.Err(); err != nil {
		return common.Hash{}, err
	}
	l.mutex.Lock()
	defer l.mutex.Unlock()
	_, hash := l.latestLocked()
	return hash, nil
}

// ChallengeRecords returns a copy of every recorded dispute.
func (l *SimulatedLedger) ChallengeRecords() []rollupstate.ChallengeRecord {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	records := make([]rollupstate.ChallengeRecord, len(l.records))
	copy(records, l.records)
	return records
}

// BatchPayload returns the stored payload for an accepted batch.
func (l *SimulatedLedger) BatchPayload(batchNumber uint64) ([]byte, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	entry := l.findLocked(batchNumber)
	if entry == nil {
		return nil, ErrUnknownBatch
	}
	return entry.payload, nil
}
