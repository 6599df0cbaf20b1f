// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package rollupstate

import (
	"bytes"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"
)

// Batch payloads posted to the ledger are the ordered transaction list,
// rlp encoded and brotli compressed, behind a one-byte format header.
const BatchPayloadBrotliV0 byte = 0

var ErrUnknownPayloadFormat = errors.New("unknown batch payload format")

// EncodeBatchPayload serializes an ordered transaction list for posting.
func EncodeBatchPayload(txs []Transaction, compressionLevel int) ([]byte, error) {
	encoded, err := rlp.EncodeToBytes(txs)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewBuffer(make([]byte, 0, len(encoded)/2+1))
	buf.WriteByte(BatchPayloadBrotliV0)
	writer := brotli.NewWriterLevel(buf, compressionLevel)
	if _, err := writer.Write(encoded); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBatchPayload reverses EncodeBatchPayload.
func DecodeBatchPayload(payload []byte) ([]Transaction, error) {
	if len(payload) == 0 {
		return nil, errors.New("empty batch payload")
	}
	if payload[0] != BatchPayloadBrotliV0 {
		return nil, ErrUnknownPayloadFormat
	}
	reader := brotli.NewReader(bytes.NewReader(payload[1:]))
	decompressed, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.Wrap(err, "decompressing batch payload")
	}
	var txs []Transaction
	if err := rlp.DecodeBytes(decompressed, &txs); err != nil {
		return nil, errors.Wrap(err, "decoding batch payload")
	}
	return txs, nil
}
