// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package rollupstate

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/seqlabs/rollup/util/hashing"
)

// StateRootFunc computes the post-state commitment for a batch. The real
// state transition lives outside this system; callers inject whatever
// computation backs their deployment.
type StateRootFunc func(preStateRoot common.Hash, txs []Transaction) common.Hash

// PlaceholderStateRoot folds each transaction hash into the pre-state
// root. It commits to the transaction sequence, not to any account state.
func PlaceholderStateRoot(preStateRoot common.Hash, txs []Transaction) common.Hash {
	root := preStateRoot
	for i := range txs {
		root = hashing.SoliditySHA3(root.Bytes(), txs[i].Hash().Bytes())
	}
	return root
}
