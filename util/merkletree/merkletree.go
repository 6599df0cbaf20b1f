// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package merkletree

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
)

// EmptyRoot is the commitment for an empty leaf set: the keccak256 of the
// empty byte string, not the hash of a zero word. The on-chain verifier
// uses the same convention, so this must never change.
var EmptyRoot = crypto.Keccak256Hash()

// Root builds the commitment root over the given leaves. Adjacent nodes are
// combined pairwise level by level, in their original left-to-right order.
// An odd node at any level is paired with a copy of itself rather than
// promoted unpaired. A single leaf is its own root.
func Root(leaves []common.Hash) common.Hash {
	if len(leaves) == 0 {
		return EmptyRoot
	}
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		next := make([]common.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, crypto.Keccak256Hash(level[i].Bytes(), level[i+1].Bytes()))
		}
		level = next
	}
	return level[0]
}

var ErrLeafIndexOutOfRange = errors.New("leaf index out of range")

// Prove returns the sibling hashes for the leaf at the given index, bottom
// level first, following the same duplicate-odd pairing as Root.
func Prove(leaves []common.Hash, index uint64) ([]common.Hash, error) {
	if index >= uint64(len(leaves)) {
		return nil, ErrLeafIndexOutOfRange
	}
	proof := make([]common.Hash, 0, 8)
	level := make([]common.Hash, len(leaves))
	copy(level, leaves)
	pos := index
	for len(level) > 1 {
		if len(level)%2 != 0 {
			level = append(level, level[len(level)-1])
		}
		proof = append(proof, level[pos^1])
		next := make([]common.Hash, 0, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next = append(next, crypto.Keccak256Hash(level[i].Bytes(), level[i+1].Bytes()))
		}
		level = next
		pos /= 2
	}
	return proof, nil
}

// VerifyProof walks a membership proof up to the expected root. At each
// level the running hash and the proof element are combined with the
// lexicographically smaller 32-byte value first, matching the verifier's
// canonical sibling ordering.
func VerifyProof(leaf common.Hash, proof []common.Hash, root common.Hash) bool {
	running := leaf
	for _, sibling := range proof {
		if bytes.Compare(running.Bytes(), sibling.Bytes()) <= 0 {
			running = crypto.Keccak256Hash(running.Bytes(), sibling.Bytes())
		} else {
			running = crypto.Keccak256Hash(sibling.Bytes(), running.Bytes())
		}
	}
	return running == root
}
