// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package rollupstate

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/seqlabs/rollup/util/hashing"
)

// BatchHeader carries the fields the verifying ledger hashes and chains.
// BatchNumber starts at 1 and increases by exactly one per accepted batch.
type BatchHeader struct {
	BatchNumber     uint64
	Timestamp       uint64
	PrevBatchHash   common.Hash
	TransactionRoot common.Hash
	StateRoot       common.Hash
}

// Hash computes the chain hash of the header. The formula and field order
// must stay byte-identical to the ledger's own computation:
// keccak(batchNumber || timestamp || prevBatchHash || transactionRoot),
// uint64 fields packed as 8-byte big-endian words. StateRoot is
// deliberately not part of the chain hash.
func (h *BatchHeader) Hash() common.Hash {
	return hashing.SoliditySHA3(
		hashing.Uint64ToBytes(h.BatchNumber),
		hashing.Uint64ToBytes(h.Timestamp),
		h.PrevBatchHash.Bytes(),
		h.TransactionRoot.Bytes(),
	)
}

// BatchContext records who submitted a batch and the dispute window the
// ledger opened for it.
type BatchContext struct {
	Submitter           common.Address
	SubmissionTimestamp uint64
	ChallengePeriodEnd  uint64
}

// Batch is the sequencer's copy of an assembled batch. The sequencer owns
// it exclusively until submission; afterwards the ledger's copy is
// authoritative and this is a cache.
type Batch struct {
	Header       BatchHeader
	Context      BatchContext
	Transactions []Transaction
	Finalized    bool
	Challenged   bool
}

// BatchState is the lifecycle state of one batch. Finalized and RolledBack
// are terminal.
type BatchState uint8

const (
	// BatchStateUnsafe: assembled but not yet confirmed by the ledger.
	BatchStateUnsafe BatchState = iota
	// BatchStateSafe: accepted by the ledger, not contested.
	BatchStateSafe
	// BatchStateFinalized: challenge window elapsed with no valid challenge.
	BatchStateFinalized
	// BatchStateRolledBack: a valid challenge proved fraud.
	BatchStateRolledBack
)

func (s BatchState) String() string {
	switch s {
	case BatchStateUnsafe:
		return "unsafe"
	case BatchStateSafe:
		return "safe"
	case BatchStateFinalized:
		return "finalized"
	case BatchStateRolledBack:
		return "rolledback"
	default:
		return "invalid"
	}
}

// ChallengeRecord is kept for every raised dispute. At most one successful
// challenge exists per batch; the first valid one wins.
type ChallengeRecord struct {
	BatchNumber uint64
	Challenger  common.Address
	Proof       FraudProof
	Succeeded   bool
}
