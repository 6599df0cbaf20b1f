// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

// Package ledger is the sequencer's view of the external verifying ledger.
// The ledger is the authoritative copy of every submitted batch; the
// sequencer only talks to it through the narrow interface below.
package ledger

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/seqlabs/rollup/rollupstate"
)

// BatchSubmission carries the header fields the ledger hashes plus the
// encoded transaction payload.
type BatchSubmission struct {
	BatchNumber     uint64
	Timestamp       uint64
	PrevBatchHash   common.Hash
	TransactionRoot common.Hash
	StateRoot       common.Hash
	Submitter       common.Address
	Payload         []byte
}

// Header reconstructs the header tuple the ledger hashes.
func (s *BatchSubmission) Header() rollupstate.BatchHeader {
	return rollupstate.BatchHeader{
		BatchNumber:     s.BatchNumber,
		Timestamp:       s.Timestamp,
		PrevBatchHash:   s.PrevBatchHash,
		TransactionRoot: s.TransactionRoot,
		StateRoot:       s.StateRoot,
	}
}

// Receipt is the ledger's acknowledgement of an accepted batch.
type Receipt struct {
	BatchNumber        uint64
	BatchHash          common.Hash
	ChallengePeriodEnd uint64
}

// Ledger is the external verifier's entry points. All calls block until
// the ledger confirms or rejects, subject to the caller's context.
type Ledger interface {
	SubmitBatch(ctx context.Context, submission *BatchSubmission) (*Receipt, error)
	SubmitChallenge(ctx context.Context, batchNumber uint64, challenger common.Address, proof *rollupstate.FraudProof) error
	FinalizeBatch(ctx context.Context, batchNumber uint64) error
	LatestBatchNumber(ctx context.Context) (uint64, error)
	LatestBatchHash(ctx context.Context) (common.Hash, error)
}

// Rejection reasons. Anything else coming out of a Ledger call is a
// transport failure and may be retried after re-querying the latest batch.
var (
	ErrWrongBatchNumber      = errors.New("batch number is not latest plus one")
	ErrPrevHashMismatch      = errors.New("previous batch hash does not match ledger state")
	ErrUnknownBatch          = errors.New("batch does not exist")
	ErrBatchFinalized        = errors.New("batch already finalized")
	ErrBatchChallenged       = errors.New("batch already challenged")
	ErrChallengeWindowOpen   = errors.New("challenge window has not elapsed")
	ErrChallengeWindowClosed = errors.New("challenge window has elapsed")
	ErrDuplicateChallenger   = errors.New("address already challenged this batch")
	ErrInvalidFraudProof     = errors.New("fraud proof failed verification")
)

// IsRejection reports whether an error is a ledger-side refusal rather
// than a transport failure.
func IsRejection(err error) bool {
	for _, rejection := range []error{
		ErrWrongBatchNumber, ErrPrevHashMismatch, ErrUnknownBatch,
		ErrBatchFinalized, ErrBatchChallenged, ErrChallengeWindowOpen,
		ErrChallengeWindowClosed, ErrDuplicateChallenger, ErrInvalidFraudProof,
	} {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}
