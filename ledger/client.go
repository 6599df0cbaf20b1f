// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package ledger

import (
	"context"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"

	"github.com/seqlabs/rollup/rollupstate"
)

type ClientConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"`
}

var DefaultClientConfig = ClientConfig{
	URL:     "",
	Timeout: time.Second * 30,
}

func ClientConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.String(prefix+".url", DefaultClientConfig.URL, "verifying ledger RPC URL")
	f.Duration(prefix+".timeout", DefaultClientConfig.Timeout, "per-call timeout (0-disabled)")
}

// RPCClient talks to a remote verifier node exposing the ledger entry
// points over JSON-RPC under the "rollup" namespace.
type RPCClient struct {
	config *ClientConfig
	client *rpc.Client
}

func NewRPCClient(config *ClientConfig) *RPCClient {
	return &RPCClient{config: config}
}

func (c *RPCClient) Connect(ctx context.Context) error {
	client, err := rpc.DialContext(ctx, c.config.URL)
	if err != nil {
		return errors.Wrap(err, "connecting to ledger rpc")
	}
	c.client = client
	return nil
}

func (c *RPCClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *RPCClient) callContext(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	if c.client == nil {
		return errors.New("ledger rpc client not connected")
	}
	if c.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}
	return c.client.CallContext(ctx, result, method, args...)
}

type rpcBatchSubmission struct {
	BatchNumber     hexutil.Uint64 `json:"batchNumber"`
	Timestamp       hexutil.Uint64 `json:"timestamp"`
	PrevBatchHash   common.Hash    `json:"prevBatchHash"`
	TransactionRoot common.Hash    `json:"transactionRoot"`
	StateRoot       common.Hash    `json:"stateRoot"`
	Submitter       common.Address `json:"submitter"`
	Payload         hexutil.Bytes  `json:"payload"`
}

type rpcReceipt struct {
	BatchNumber        hexutil.Uint64 `json:"batchNumber"`
	BatchHash          common.Hash    `json:"batchHash"`
	ChallengePeriodEnd hexutil.Uint64 `json:"challengePeriodEnd"`
}

func (c *RPCClient) SubmitBatch(ctx context.Context, submission *BatchSubmission) (*Receipt, error) {
	arg := rpcBatchSubmission{
		BatchNumber:     hexutil.Uint64(submission.BatchNumber),
		Timestamp:       hexutil.Uint64(submission.Timestamp),
		PrevBatchHash:   submission.PrevBatchHash,
		TransactionRoot: submission.TransactionRoot,
		StateRoot:       submission.StateRoot,
		Submitter:       submission.Submitter,
		Payload:         submission.Payload,
	}
	var res rpcReceipt
	if err := c.callContext(ctx, &res, "rollup_submitBatch", arg); err != nil {
		return nil, err
	}
	return &Receipt{
		BatchNumber:        uint64(res.BatchNumber),
		BatchHash:          res.BatchHash,
		ChallengePeriodEnd: uint64(res.ChallengePeriodEnd),
	}, nil
}

func (c *RPCClient) SubmitChallenge(ctx context.Context, batchNumber uint64, challenger common.Address, proof *rollupstate.FraudProof) error {
	return c.callContext(ctx, nil, "rollup_submitChallenge", hexutil.Uint64(batchNumber), challenger, proof)
}

func (c *RPCClient) FinalizeBatch(ctx context.Context, batchNumber uint64) error {
	return c.callContext(ctx, nil, "rollup_finalizeBatch", hexutil.Uint64(batchNumber))
}

func (c *RPCClient) LatestBatchNumber(ctx context.Context) (uint64, error) {
	var res hexutil.Uint64
	if err := c.callContext(ctx, &res, "rollup_latestBatchNumber"); err != nil {
		return 0, err
	}
	return uint64(res), nil
}

func (c *RPCClient) LatestBatchHash(ctx context.Context) (common.Hash, error) {
	var res common.Hash
	if err := c.callContext(ctx, &res, "rollup_latestBatchHash"); err != nil {
		return common.Hash{}, err
	}
	return res, nil
}
