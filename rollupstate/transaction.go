// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package rollupstate

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/seqlabs/rollup/util/hashing"
)

// Transaction is a rollup transaction as admitted by the sequencer.
// Immutable once admitted; its identity is the hash of its canonical
// packed encoding.
type Transaction struct {
	From      common.Address
	To        common.Address
	Value     *big.Int
	Data      []byte
	Nonce     uint64
	Signature []byte
}

// SigningHash is the message hash the sender signs: the packed encoding of
// every field except the signature, in fixed field order. The on-chain
// verifier recomputes the same hash, so the packing must not change.
func (tx *Transaction) SigningHash() common.Hash {
	return hashing.SoliditySHA3(
		tx.From.Bytes(),
		tx.To.Bytes(),
		hashing.PackedUint256(tx.Value),
		tx.Data,
		hashing.Uint64ToBytes(tx.Nonce),
	)
}

// Hash is the transaction's identity: the signing fields plus the signature.
func (tx *Transaction) Hash() common.Hash {
	return hashing.SoliditySHA3(
		tx.From.Bytes(),
		tx.To.Bytes(),
		hashing.PackedUint256(tx.Value),
		tx.Data,
		hashing.Uint64ToBytes(tx.Nonce),
		tx.Signature,
	)
}

// TransactionLeaves returns the commitment leaves for an ordered
// transaction list, one canonical hash per transaction.
func TransactionLeaves(txs []Transaction) []common.Hash {
	leaves := make([]common.Hash, len(txs))
	for i := range txs {
		leaves[i] = txs[i].Hash()
	}
	return leaves
}
