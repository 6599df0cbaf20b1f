// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package hashing

import (
	"encoding/binary"
	"math/big"

	"golang.org/x/crypto/sha3"

	"github.com/ethereum/go-ethereum/common"
)

func SoliditySHA3(data ...[]byte) common.Hash {
	var ret common.Hash
	hash := sha3.NewLegacyKeccak256()
	for _, b := range data {
		_, err := hash.Write(b)
		if err != nil {
			// This code should never be reached
			panic("Error writing SoliditySHA3 data")
		}
	}
	hash.Sum(ret[:0])
	return ret
}

// Uint64ToBytes encodes a uint64 as an 8-byte big-endian word, the width
// the verifier's packed encoding uses for counters and timestamps.
func Uint64ToBytes(x uint64) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, x)
	return data
}

// PackedUint256 encodes a big integer as a 32-byte word. Values wider than
// 256 bits are truncated the same way the verifier truncates them.
func PackedUint256(x *big.Int) []byte {
	if x == nil {
		return make([]byte, 32)
	}
	return common.BigToHash(x).Bytes()
}
