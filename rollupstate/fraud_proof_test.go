// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package rollupstate

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/seqlabs/rollup/util/testhelpers"
)

// singleTxBatch builds a one-transaction batch, the case where the
// inclusion proof is empty and trivially resolves to the transaction root.
func singleTxBatch(t *testing.T, batchNumber uint64, preStateRoot common.Hash) (*Batch, Transaction) {
	t.Helper()
	tx := testTransactions(1)[0]
	batch := &Batch{
		Header: BatchHeader{
			BatchNumber:     batchNumber,
			Timestamp:       1000,
			TransactionRoot: tx.Hash(),
			StateRoot:       PlaceholderStateRoot(preStateRoot, []Transaction{tx}),
		},
		Transactions: []Transaction{tx},
	}
	return batch, tx
}

func validProofFor(batch *Batch, tx Transaction, preStateRoot common.Hash) *FraudProof {
	return &FraudProof{
		BatchNumber: batch.Header.BatchNumber,
		Inclusion: InclusionProof{
			Transaction:   tx,
			ClaimedTxHash: tx.Hash(),
			LeafIndex:     0,
		},
		StateTransition: StateTransitionProof{
			PreStateRoot:    preStateRoot,
			PostStateRoot:   batch.Header.StateRoot,
			PreAccountLeaf:  preStateRoot,
			PostAccountLeaf: batch.Header.StateRoot,
		},
		Execution: ExecutionProof{
			Digest: ExecutionDigest(&tx, preStateRoot),
		},
	}
}

func TestVerifyInclusionSingleTransaction(t *testing.T) {
	batch, tx := singleTxBatch(t, 1, testhelpers.RandomHash())
	proof := InclusionProof{
		Transaction:   tx,
		ClaimedTxHash: tx.Hash(),
		LeafIndex:     0,
	}
	if !VerifyInclusion(batch.Header.TransactionRoot, &proof) {
		Fail(t, "inclusion proof for sole transaction did not verify")
	}
}

func TestVerifyInclusionRejectsWrongClaimedHash(t *testing.T) {
	batch, tx := singleTxBatch(t, 1, testhelpers.RandomHash())
	proof := InclusionProof{
		Transaction:   tx,
		ClaimedTxHash: testhelpers.RandomHash(),
		LeafIndex:     0,
	}
	if VerifyInclusion(batch.Header.TransactionRoot, &proof) {
		Fail(t, "inclusion verified against a mismatched claimed hash")
	}
}

func TestVerifyInclusionRejectsTamperedTransaction(t *testing.T) {
	batch, tx := singleTxBatch(t, 1, testhelpers.RandomHash())
	tampered := tx
	tampered.Nonce++
	proof := InclusionProof{
		Transaction:   tampered,
		ClaimedTxHash: tx.Hash(),
		LeafIndex:     0,
	}
	if VerifyInclusion(batch.Header.TransactionRoot, &proof) {
		Fail(t, "inclusion verified a tampered transaction")
	}
}

func TestVerifyStateTransition(t *testing.T) {
	pre := testhelpers.RandomHash()
	post := testhelpers.RandomHash()
	proof := StateTransitionProof{
		PreStateRoot:    pre,
		PostStateRoot:   post,
		PreAccountLeaf:  pre,
		PostAccountLeaf: post,
	}
	if !VerifyStateTransition(post, &proof) {
		Fail(t, "state transition proof did not verify")
	}
	// claimed post root must equal the batch's recorded state root
	if VerifyStateTransition(testhelpers.RandomHash(), &proof) {
		Fail(t, "state transition verified against the wrong batch state root")
	}
	broken := proof
	broken.PreAccountLeaf = testhelpers.RandomHash()
	if VerifyStateTransition(post, &broken) {
		Fail(t, "pre-state membership failure was not detected")
	}
}

func TestVerifyExecutionDigest(t *testing.T) {
	tx := testTransactions(1)[0]
	pre := testhelpers.RandomHash()
	proof := ExecutionProof{Digest: ExecutionDigest(&tx, pre)}
	if !VerifyExecution(&tx, pre, &proof) {
		Fail(t, "execution digest did not verify")
	}
	if VerifyExecution(&tx, testhelpers.RandomHash(), &proof) {
		Fail(t, "execution digest verified under the wrong pre-state root")
	}
	proof.Digest = testhelpers.RandomHash()
	if VerifyExecution(&tx, pre, &proof) {
		Fail(t, "tampered execution digest verified")
	}
}

func TestVerifyFraudProofAllElements(t *testing.T) {
	pre := testhelpers.RandomHash()
	batch, tx := singleTxBatch(t, 3, pre)
	proof := validProofFor(batch, tx, pre)
	if !VerifyFraudProof(batch, proof) {
		Fail(t, "complete fraud proof did not verify")
	}

	tampered := *proof
	tampered.Inclusion.ClaimedTxHash = testhelpers.RandomHash()
	if VerifyFraudProof(batch, &tampered) {
		Fail(t, "proof with broken inclusion verified")
	}

	tampered = *proof
	tampered.StateTransition.PostStateRoot = testhelpers.RandomHash()
	if VerifyFraudProof(batch, &tampered) {
		Fail(t, "proof with broken state transition verified")
	}

	tampered = *proof
	tampered.Execution.Digest = testhelpers.RandomHash()
	if VerifyFraudProof(batch, &tampered) {
		Fail(t, "proof with broken execution digest verified")
	}
}

func TestPlaceholderStateRootFoldsTransactions(t *testing.T) {
	pre := testhelpers.RandomHash()
	txs := testTransactions(3)
	if PlaceholderStateRoot(pre, nil) != pre {
		Fail(t, "empty batch changed the state root")
	}
	full := PlaceholderStateRoot(pre, txs)
	partial := PlaceholderStateRoot(pre, txs[:2])
	if full != PlaceholderStateRoot(partial, txs[2:]) {
		Fail(t, "state root fold is not incremental")
	}
	if full == PlaceholderStateRoot(pre, []Transaction{txs[1], txs[0], txs[2]}) {
		Fail(t, "state root ignores transaction order")
	}
}
