// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package ledger

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

	"github.com/seqlabs/rollup/rollupstate"
	"github.com/seqlabs/rollup/util/testhelpers"
)

func newTestLedger(challengeDuration time.Duration) (*SimulatedLedger, *time.Time) {
	l := NewSimulatedLedger(challengeDuration)
	now := time.Unix(1700000000, 0)
	l.Now = func() time.Time { return now }
	return l, &now
}

func randomTx() rollupstate.Transaction {
	return rollupstate.Transaction{
		From:      testhelpers.RandomAddress(),
		To:        testhelpers.RandomAddress(),
		Value:     big.NewInt(int64(testhelpers.RandomUint64(1, 1000))),
		Data:      testhelpers.RandomSlice(16),
		Nonce:     testhelpers.RandomUint64(0, 100),
		Signature: testhelpers.RandomSlice(65),
	}
}

// submitSingleTxBatch posts a one-transaction batch chained onto the
// ledger's current head and returns the receipt plus what is needed to
// challenge it later.
func submitSingleTxBatch(t *testing.T, l *SimulatedLedger) (*Receipt, rollupstate.Transaction, common.Hash) {
	t.Helper()
	ctx := context.Background()
	latest, err := l.LatestBatchNumber(ctx)
	Require(t, err)
	prevHash, err := l.LatestBatchHash(ctx)
	Require(t, err)

	tx := randomTx()
	preStateRoot := testhelpers.RandomHash()
	submission := &BatchSubmission{
		BatchNumber:     latest + 1,
		Timestamp:       uint64(l.Now().Unix()),
		PrevBatchHash:   prevHash,
		TransactionRoot: tx.Hash(),
		StateRoot:       rollupstate.PlaceholderStateRoot(preStateRoot, []rollupstate.Transaction{tx}),
		Submitter:       testhelpers.RandomAddress(),
	}
	receipt, err := l.SubmitBatch(ctx, submission)
	Require(t, err)
	return receipt, tx, preStateRoot
}

func proofAgainst(header rollupstate.BatchHeader, tx rollupstate.Transaction, preStateRoot common.Hash) *rollupstate.FraudProof {
	return &rollupstate.FraudProof{
		BatchNumber: header.BatchNumber,
		Inclusion: rollupstate.InclusionProof{
			Transaction:   tx,
			ClaimedTxHash: tx.Hash(),
		},
		StateTransition: rollupstate.StateTransitionProof{
			PreStateRoot:    preStateRoot,
			PostStateRoot:   header.StateRoot,
			PreAccountLeaf:  preStateRoot,
			PostAccountLeaf: header.StateRoot,
		},
		Execution: rollupstate.ExecutionProof{
			Digest: rollupstate.ExecutionDigest(&tx, preStateRoot),
		},
	}
}

func TestSubmitBatchSequencing(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(time.Hour)

	receipt1, _, _ := submitSingleTxBatch(t, l)
	if receipt1.BatchNumber != 1 {
		Fail(t, "first batch number is not 1", receipt1.BatchNumber)
	}
	receipt2, _, _ := submitSingleTxBatch(t, l)
	if receipt2.BatchNumber != 2 {
		Fail(t, "batch numbering is not dense", receipt2.BatchNumber)
	}

	// skipping a number is refused
	_, err := l.SubmitBatch(ctx, &BatchSubmission{
		BatchNumber:   4,
		PrevBatchHash: receipt2.BatchHash,
	})
	if !errors.Is(err, ErrWrongBatchNumber) {
		Fail(t, "expected wrong batch number, got", err)
	}

	// a stale previous hash is refused even with the right number
	_, err = l.SubmitBatch(ctx, &BatchSubmission{
		BatchNumber:   3,
		PrevBatchHash: receipt1.BatchHash,
	})
	if !errors.Is(err, ErrPrevHashMismatch) {
		Fail(t, "expected prev hash mismatch, got", err)
	}

	latest, err := l.LatestBatchNumber(ctx)
	Require(t, err)
	if latest != 2 {
		Fail(t, "rejected submissions changed the head", latest)
	}
}

func TestSubmitBatchGenesisPrevHash(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(time.Hour)
	_, err := l.SubmitBatch(ctx, &BatchSubmission{
		BatchNumber:   1,
		PrevBatchHash: testhelpers.RandomHash(),
	})
	if !errors.Is(err, ErrPrevHashMismatch) {
		Fail(t, "first batch accepted a nonzero previous hash, got", err)
	}
}

func TestFinalizeRespectsChallengeWindow(t *testing.T) {
	ctx := context.Background()
	l, now := newTestLedger(time.Hour)
	receipt, _, _ := submitSingleTxBatch(t, l)

	err := l.FinalizeBatch(ctx, receipt.BatchNumber)
	if !errors.Is(err, ErrChallengeWindowOpen) {
		Fail(t, "finalize inside the window was not refused, got", err)
	}

	// exactly at the boundary the window is still open
	*now = time.Unix(int64(receipt.ChallengePeriodEnd), 0)
	err = l.FinalizeBatch(ctx, receipt.BatchNumber)
	if !errors.Is(err, ErrChallengeWindowOpen) {
		Fail(t, "finalize at the boundary was not refused, got", err)
	}

	*now = now.Add(time.Second)
	Require(t, l.FinalizeBatch(ctx, receipt.BatchNumber))

	err = l.FinalizeBatch(ctx, receipt.BatchNumber)
	if !errors.Is(err, ErrBatchFinalized) {
		Fail(t, "double finalize was not refused, got", err)
	}

	err = l.FinalizeBatch(ctx, receipt.BatchNumber+1)
	if !errors.Is(err, ErrUnknownBatch) {
		Fail(t, "finalizing an unknown batch was not refused, got", err)
	}
}

func TestChallengeSucceedsAndTruncates(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(time.Hour)

	receipt1, _, _ := submitSingleTxBatch(t, l)
	receipt2, tx2, pre2 := submitSingleTxBatch(t, l)
	submitSingleTxBatch(t, l)

	header2 := rollupstate.BatchHeader{
		BatchNumber:     receipt2.BatchNumber,
		Timestamp:       uint64(l.Now().Unix()),
		PrevBatchHash:   receipt1.BatchHash,
		TransactionRoot: tx2.Hash(),
		StateRoot:       rollupstate.PlaceholderStateRoot(pre2, []rollupstate.Transaction{tx2}),
	}
	challenger := testhelpers.RandomAddress()
	Require(t, l.SubmitChallenge(ctx, 2, challenger, proofAgainst(header2, tx2, pre2)))

	// the challenged batch and everything above it are gone
	latest, err := l.LatestBatchNumber(ctx)
	Require(t, err)
	if latest != 1 {
		Fail(t, "challenge did not truncate the chain", latest)
	}
	hash, err := l.LatestBatchHash(ctx)
	Require(t, err)
	if hash != receipt1.BatchHash {
		Fail(t, "head hash does not match the surviving batch")
	}

	records := l.ChallengeRecords()
	if len(records) != 1 || !records[0].Succeeded || records[0].Challenger != challenger {
		Fail(t, "missing or wrong challenge record")
	}

	// the invalidated number is reusable
	receipt, _, _ := submitSingleTxBatch(t, l)
	if receipt.BatchNumber != 2 {
		Fail(t, "invalidated batch number was not reused", receipt.BatchNumber)
	}
}

func TestChallengeRefusals(t *testing.T) {
	ctx := context.Background()
	l, now := newTestLedger(time.Hour)
	receipt, tx, pre := submitSingleTxBatch(t, l)
	challenger := testhelpers.RandomAddress()

	err := l.SubmitChallenge(ctx, 99, challenger, &rollupstate.FraudProof{})
	if !errors.Is(err, ErrUnknownBatch) {
		Fail(t, "challenging an unknown batch was not refused, got", err)
	}

	// an invalid proof is refused and the attempt burned
	bogus := &rollupstate.FraudProof{BatchNumber: receipt.BatchNumber}
	err = l.SubmitChallenge(ctx, receipt.BatchNumber, challenger, bogus)
	if !errors.Is(err, ErrInvalidFraudProof) {
		Fail(t, "invalid proof was not refused, got", err)
	}

	header := rollupstate.BatchHeader{
		BatchNumber:     receipt.BatchNumber,
		Timestamp:       uint64(l.Now().Unix()),
		TransactionRoot: tx.Hash(),
		StateRoot:       rollupstate.PlaceholderStateRoot(pre, []rollupstate.Transaction{tx}),
	}
	good := proofAgainst(header, tx, pre)
	err = l.SubmitChallenge(ctx, receipt.BatchNumber, challenger, good)
	if !errors.Is(err, ErrDuplicateChallenger) {
		Fail(t, "repeat challenger was not refused, got", err)
	}

	// a different challenger after the window closes is refused
	*now = time.Unix(int64(receipt.ChallengePeriodEnd)+1, 0)
	err = l.SubmitChallenge(ctx, receipt.BatchNumber, testhelpers.RandomAddress(), good)
	if !errors.Is(err, ErrChallengeWindowClosed) {
		Fail(t, "late challenge was not refused, got", err)
	}
}

func TestChallengeRefusedOnFinalizedBatch(t *testing.T) {
	ctx := context.Background()
	l, now := newTestLedger(time.Hour)
	receipt, tx, pre := submitSingleTxBatch(t, l)
	*now = time.Unix(int64(receipt.ChallengePeriodEnd)+1, 0)
	Require(t, l.FinalizeBatch(ctx, receipt.BatchNumber))

	header := rollupstate.BatchHeader{
		BatchNumber:     receipt.BatchNumber,
		TransactionRoot: tx.Hash(),
		StateRoot:       rollupstate.PlaceholderStateRoot(pre, []rollupstate.Transaction{tx}),
	}
	err := l.SubmitChallenge(ctx, receipt.BatchNumber, testhelpers.RandomAddress(), proofAgainst(header, tx, pre))
	if !errors.Is(err, ErrBatchFinalized) {
		Fail(t, "challenge against a finalized batch was not refused, got", err)
	}
}

func TestIsRejection(t *testing.T) {
	if !IsRejection(ErrWrongBatchNumber) || !IsRejection(errors.Wrap(ErrInvalidFraudProof, "wrapped")) {
		Fail(t, "rejection errors not recognized")
	}
	if IsRejection(errors.New("connection refused")) {
		Fail(t, "transport error classified as rejection")
	}
}

func Require(t *testing.T, err error, printables ...interface{}) {
	t.Helper()
	testhelpers.RequireImpl(t, err, printables...)
}

func Fail(t *testing.T, printables ...interface{}) {
	t.Helper()
	testhelpers.FailImpl(t, printables...)
}
