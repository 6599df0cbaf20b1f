// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package seqnode

var (
	rollupPrefix    string = "\t"        // the prefix for all sequencer specific keys
	batchMetaPrefix []byte = []byte("b") // maps a batch number to its stored entry
	challengePrefix []byte = []byte("c") // maps a batch number to its challenge records

	batchCountKey    []byte = []byte("_batchCount")    // contains the latest acknowledged batch number
	lastBatchHashKey []byte = []byte("_lastBatchHash") // contains the ledger-acknowledged hash of the latest batch
)
