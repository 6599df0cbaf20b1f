// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package seqnode

import (
	"github.com/pkg/errors"
)

var (
	// ErrTxValidation: the transaction's recovered signer does not match its
	// claimed sender, or the signature is malformed. The transaction is not
	// admitted and no state changes.
	ErrTxValidation = errors.New("transaction failed signature validation")

	// ErrNotInitialized: batch numbering has not been initialized from the
	// ledger yet. Safe to retry after SyncToLedger.
	ErrNotInitialized = errors.New("batch numbering not initialized from ledger")

	// ErrChainMismatch: the local batch number or previous batch hash
	// disagrees with the ledger's authoritative values. Submissions are
	// blocked until a resynchronization succeeds.
	ErrChainMismatch = errors.New("local chain state disagrees with ledger")

	// ErrMempoolFull: admission would exceed the configured capacity.
	ErrMempoolFull = errors.New("mempool at capacity")
)
