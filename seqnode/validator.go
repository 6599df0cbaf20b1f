// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package seqnode

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/seqlabs/rollup/rollupstate"
)

// TxValidator checks that a transaction's signature was produced by its
// claimed sender. Validation is pure apart from the signer cache.
type TxValidator struct {
	signerCache *lru.Cache[common.Hash, common.Address]
}

func NewTxValidator(cacheSize int) (*TxValidator, error) {
	cache, err := lru.New[common.Hash, common.Address](cacheSize)
	if err != nil {
		return nil, err
	}
	return &TxValidator{signerCache: cache}, nil
}

// Validate recomputes the canonical signing hash, recovers the signer from
// the signature, and requires it to equal the claimed sender. Malformed
// signatures return false, never an error or panic. Address comparison is
// over the 20 raw bytes, which subsumes case-insensitive hex equality.
func (v *TxValidator) Validate(tx *rollupstate.Transaction) bool {
	signer, err := v.RecoverSigner(tx)
	if err != nil {
		return false
	}
	return signer == tx.From
}

// RecoverSigner returns the address that signed the transaction.
func (v *TxValidator) RecoverSigner(tx *rollupstate.Transaction) (common.Address, error) {
	txHash := tx.Hash()
	if signer, ok := v.signerCache.Get(txHash); ok {
		return signer, nil
	}
	if len(tx.Signature) != crypto.SignatureLength {
		return common.Address{}, errors.Errorf("signature wrong length: %v", len(tx.Signature))
	}
	pubkey, err := crypto.SigToPub(tx.SigningHash().Bytes(), tx.Signature)
	if err != nil {
		return common.Address{}, errors.Wrap(err, "recovering transaction signer")
	}
	signer := crypto.PubkeyToAddress(*pubkey)
	v.signerCache.Add(txHash, signer)
	return signer, nil
}
