// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

// Fraud proof verification rules. Both the off-chain proof builder and the
// ledger-side checker call into this package, so the two can never drift
// apart. Everything here is pure: no clocks, no state, no side effects.

package rollupstate

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/seqlabs/rollup/util/hashing"
	"github.com/seqlabs/rollup/util/merkletree"
)

// InclusionProof ties a disputed transaction to a batch's transaction root.
type InclusionProof struct {
	Transaction   Transaction
	ClaimedTxHash common.Hash
	LeafIndex     uint64
	Siblings      []common.Hash
}

// StateTransitionProof carries the claimed pre/post state roots and the
// membership proofs for the disputed account record under each.
type StateTransitionProof struct {
	PreStateRoot     common.Hash
	PostStateRoot    common.Hash
	PreAccountLeaf   common.Hash
	PostAccountLeaf  common.Hash
	PreAccountProof  []common.Hash
	PostAccountProof []common.Hash
}

// ExecutionProof is the execution-result witness. Note: verification only
// compares a recomputed digest of already-known values against this
// witness. No computation is replayed, so tampering with the witness is
// the only execution fraud this can detect.
type ExecutionProof struct {
	Digest common.Hash
}

type FraudProof struct {
	BatchNumber     uint64
	Inclusion       InclusionProof
	StateTransition StateTransitionProof
	Execution       ExecutionProof
}

// VerifyInclusion recomputes the disputed transaction's canonical hash,
// requires it to match the claimed hash, and requires the membership proof
// to resolve to the batch's transaction root.
func VerifyInclusion(transactionRoot common.Hash, p *InclusionProof) bool {
	if p.Transaction.Hash() != p.ClaimedTxHash {
		return false
	}
	return merkletree.VerifyProof(p.ClaimedTxHash, p.Siblings, transactionRoot)
}

// VerifyStateTransition requires both account membership proofs to resolve
// to the claimed roots, and the claimed post root to equal the batch's
// recorded state root.
func VerifyStateTransition(batchStateRoot common.Hash, p *StateTransitionProof) bool {
	if !merkletree.VerifyProof(p.PreAccountLeaf, p.PreAccountProof, p.PreStateRoot) {
		return false
	}
	if !merkletree.VerifyProof(p.PostAccountLeaf, p.PostAccountProof, p.PostStateRoot) {
		return false
	}
	return p.PostStateRoot == batchStateRoot
}

// ExecutionDigest is the placeholder execution commitment: a keccak over
// the disputed transaction's packed fields plus the pre-state root.
func ExecutionDigest(tx *Transaction, preStateRoot common.Hash) common.Hash {
	return hashing.SoliditySHA3(
		tx.Hash().Bytes(),
		preStateRoot.Bytes(),
	)
}

// VerifyExecution recomputes the execution digest and compares it with the
// supplied witness.
func VerifyExecution(tx *Transaction, preStateRoot common.Hash, p *ExecutionProof) bool {
	return ExecutionDigest(tx, preStateRoot) == p.Digest
}

// VerifyFraudProof runs the three checks in order, short-circuiting on the
// first failure: inclusion, state transition, execution. A challenge only
// succeeds if all three pass.
func VerifyFraudProof(batch *Batch, proof *FraudProof) bool {
	if !VerifyInclusion(batch.Header.TransactionRoot, &proof.Inclusion) {
		return false
	}
	if !VerifyStateTransition(batch.Header.StateRoot, &proof.StateTransition) {
		return false
	}
	return VerifyExecution(&proof.Inclusion.Transaction, proof.StateTransition.PreStateRoot, &proof.Execution)
}
