// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package seqnode

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/seqlabs/rollup/ledger"
	"github.com/seqlabs/rollup/rollupstate"
	"github.com/seqlabs/rollup/util/testhelpers"
)

// testSetup wires a full pipeline against a simulated ledger, with the
// ledger's and tracker's clocks frozen at the same swappable instant.
type testSetup struct {
	ctx       context.Context
	ledger    *ledger.SimulatedLedger
	validator *TxValidator
	mempool   *Mempool
	assembler *BatchAssembler
	tracker   *LifecycleTracker
	submitter *BatchSubmitter
	engine    *ChallengeEngine
	key       *ecdsa.PrivateKey
	sender    common.Address
	now       *time.Time
}

func newTestSetup(t *testing.T, config *Config) *testSetup {
	t.Helper()
	ctx := context.Background()

	now := time.Unix(1700000000, 0)
	l := ledger.NewSimulatedLedger(config.ChallengePeriod)
	l.Now = func() time.Time { return now }

	validator, err := NewTxValidator(config.SignerCacheSize)
	Require(t, err)
	mempool := NewMempool(validator, config.Submitter.BatchSize, config.MempoolCapacity)
	key, err := crypto.GenerateKey()
	Require(t, err)
	sender := crypto.PubkeyToAddress(key.PublicKey)
	assembler := NewBatchAssembler(sender, config.ChallengePeriod, nil)

	tracker, err := NewLifecycleTracker(rawdb.NewMemoryDatabase(), l)
	Require(t, err)
	tracker.Now = func() time.Time { return now }
	Require(t, tracker.SyncToLedger(ctx))

	s := &testSetup{
		ctx:       ctx,
		ledger:    l,
		validator: validator,
		mempool:   mempool,
		assembler: assembler,
		tracker:   tracker,
		submitter: NewBatchSubmitter(l, mempool, assembler, tracker, &config.Submitter),
		engine:    NewChallengeEngine(l, tracker),
		key:       key,
		sender:    sender,
		now:       &now,
	}
	return s
}

func (s *testSetup) advanceClock(d time.Duration) {
	*s.now = s.now.Add(d)
}

// signedTx builds a transaction signed by the setup's key.
func (s *testSetup) signedTx(t *testing.T, nonce uint64) rollupstate.Transaction {
	t.Helper()
	tx := rollupstate.Transaction{
		From:  s.sender,
		To:    testhelpers.RandomAddress(),
		Value: big.NewInt(int64(testhelpers.RandomUint64(1, 1000))),
		Data:  testhelpers.RandomSlice(8),
		Nonce: nonce,
	}
	sig, err := crypto.Sign(tx.SigningHash().Bytes(), s.key)
	Require(t, err)
	tx.Signature = sig
	return tx
}

// fillAndSubmit admits one batch worth of transactions and drives a
// synchronous submission, returning the admitted transactions.
func (s *testSetup) fillAndSubmit(t *testing.T, startNonce uint64) []rollupstate.Transaction {
	t.Helper()
	batchSize := s.submitter.config.BatchSize
	txs := make([]rollupstate.Transaction, batchSize)
	for i := range txs {
		txs[i] = s.signedTx(t, startNonce+uint64(i))
		Require(t, s.mempool.Admit(txs[i]))
	}
	Require(t, s.submitter.SubmitNow(s.ctx))
	return txs
}

func Require(t *testing.T, err error, printables ...interface{}) {
	t.Helper()
	testhelpers.RequireImpl(t, err, printables...)
}

func Fail(t *testing.T, printables ...interface{}) {
	t.Helper()
	testhelpers.FailImpl(t, printables...)
}
