// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package seqnode

import (
	"context"
	"sync"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/andybalholm/brotli"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
	"github.com/pkg/errors"

	"github.com/seqlabs/rollup/ledger"
	"github.com/seqlabs/rollup/rollupstate"
	"github.com/seqlabs/rollup/util/stopwaiter"
)

var (
	batchesSubmittedCounter = metrics.NewRegisteredCounter("rollup/submitter/batches", nil)
	submitFailureCounter    = metrics.NewRegisteredCounter("rollup/submitter/failures", nil)
)

type BatchSubmitterConfig struct {
	Enable           bool          `koanf:"enable"`
	BatchSize        int           `koanf:"batch-size"`
	PollInterval     time.Duration `koanf:"poll-interval"`
	ErrorDelay       time.Duration `koanf:"error-delay"`
	SubmitTimeout    time.Duration `koanf:"submit-timeout"`
	CompressionLevel int           `koanf:"compression-level"`
}

func BatchSubmitterConfigAddOptions(prefix string, f *flag.FlagSet) {
	f.Bool(prefix+".enable", DefaultBatchSubmitterConfig.Enable, "enable submitting batches to the ledger")
	f.Int(prefix+".batch-size", DefaultBatchSubmitterConfig.BatchSize, "number of transactions per batch")
	f.Duration(prefix+".poll-interval", DefaultBatchSubmitterConfig.PollInterval, "how often to check for a submittable batch")
	f.Duration(prefix+".error-delay", DefaultBatchSubmitterConfig.ErrorDelay, "how long to delay after an error submitting a batch")
	f.Duration(prefix+".submit-timeout", DefaultBatchSubmitterConfig.SubmitTimeout, "timeout for one ledger submission")
	f.Int(prefix+".compression-level", DefaultBatchSubmitterConfig.CompressionLevel, "batch payload compression level")
}

var DefaultBatchSubmitterConfig = BatchSubmitterConfig{
	Enable:           false,
	BatchSize:        100,
	PollInterval:     time.Second * 10,
	ErrorDelay:       time.Second * 10,
	SubmitTimeout:    time.Second * 30,
	CompressionLevel: brotli.DefaultCompression,
}

var TestBatchSubmitterConfig = BatchSubmitterConfig{
	Enable:           true,
	BatchSize:        10,
	PollInterval:     time.Millisecond * 10,
	ErrorDelay:       time.Millisecond * 10,
	SubmitTimeout:    time.Second * 5,
	CompressionLevel: 2,
}

// BatchSubmitter drains the mempool into batches and posts them to the
// ledger. Submission is strictly serialized: batch numbers and the
// previous batch hash derive from the prior submission's acknowledged
// result, so at most one submission may be outstanding.
type BatchSubmitter struct {
	stopwaiter.StopWaiter
	ledger    ledger.Ledger
	mempool   *Mempool
	assembler *BatchAssembler
	tracker   *LifecycleTracker
	config    *BatchSubmitterConfig

	// serializes assemble, submit and drain as one critical section
	submitMutex sync.Mutex
}

func NewBatchSubmitter(l ledger.Ledger, mempool *Mempool, assembler *BatchAssembler, tracker *LifecycleTracker, config *BatchSubmitterConfig) *BatchSubmitter {
	return &BatchSubmitter{
		ledger:    l,
		mempool:   mempool,
		assembler: assembler,
		tracker:   tracker,
		config:    config,
	}
}

// maybeSubmitBatch assembles and posts one batch if the mempool has
// reached the batch threshold. On any failure local state is left
// untouched: the transactions stay pending and the next attempt reuses
// the same batch number.
func (s *BatchSubmitter) maybeSubmitBatch(ctx context.Context) error {
	s.submitMutex.Lock()
	defer s.submitMutex.Unlock()

	if s.mempool.Len() < s.config.BatchSize {
		return nil
	}

	nextNumber, err := s.tracker.NextBatchNumber()
	if err != nil {
		return err
	}

	// The ledger is authoritative for numbering. A disagreement here means
	// local chain state is stale; resync instead of submitting blind.
	ledgerLatest, err := s.ledger.LatestBatchNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "querying ledger latest batch number")
	}
	if ledgerLatest != nextNumber-1 {
		if err := s.tracker.SyncToLedger(ctx); err != nil {
			return err
		}
		return errors.Wrapf(ErrChainMismatch, "ledger has batch %v but local next is %v", ledgerLatest, nextNumber)
	}

	txs := s.mempool.Snapshot()
	if len(txs) > s.config.BatchSize {
		txs = txs[:s.config.BatchSize]
	}
	prevHash, err := s.tracker.LastBatchHash()
	if err != nil {
		return err
	}
	var prevStateRoot common.Hash
	if nextNumber > 1 {
		prev, err := s.tracker.GetBatch(nextNumber - 1)
		if err != nil {
			return err
		}
		if prev != nil {
			prevStateRoot = prev.Header.StateRoot
		}
	}

	batch, err := s.assembler.Assemble(txs, nextNumber, prevHash, prevStateRoot, time.Now())
	if err != nil {
		return err
	}
	payload, err := rollupstate.EncodeBatchPayload(txs, s.config.CompressionLevel)
	if err != nil {
		return errors.Wrap(err, "encoding batch payload")
	}

	submitCtx := ctx
	if s.config.SubmitTimeout > 0 {
		var cancel context.CancelFunc
		submitCtx, cancel = context.WithTimeout(ctx, s.config.SubmitTimeout)
		defer cancel()
	}
	receipt, err := s.ledger.SubmitBatch(submitCtx, &ledger.BatchSubmission{
		BatchNumber:     batch.Header.BatchNumber,
		Timestamp:       batch.Header.Timestamp,
		PrevBatchHash:   batch.Header.PrevBatchHash,
		TransactionRoot: batch.Header.TransactionRoot,
		StateRoot:       batch.Header.StateRoot,
		Submitter:       batch.Context.Submitter,
		Payload:         payload,
	})
	if err != nil {
		submitFailureCounter.Inc(1)
		if errors.Is(err, ledger.ErrWrongBatchNumber) || errors.Is(err, ledger.ErrPrevHashMismatch) {
			// the verifier's sequential-numbering invariant caught stale
			// local state; block submissions until a resync
			if syncErr := s.tracker.SyncToLedger(ctx); syncErr != nil {
				log.Error("resync after rejected batch failed", "err", syncErr)
			}
			return errors.Wrap(ErrChainMismatch, err.Error())
		}
		return errors.Wrap(err, "submitting batch")
	}

	if err := s.tracker.RecordSubmitted(batch, receipt); err != nil {
		return err
	}
	drained := s.mempool.Drain(len(txs))
	batchesSubmittedCounter.Inc(1)
	log.Info("BatchSubmitter: batch submitted", "batchNumber", receipt.BatchNumber, "hash", receipt.BatchHash, "txs", len(drained), "challengePeriodEnd", receipt.ChallengePeriodEnd)
	return nil
}

// SubmitNow synchronously attempts one submission, for callers driving the
// pipeline themselves.
func (s *BatchSubmitter) SubmitNow(ctx context.Context) error {
	return s.maybeSubmitBatch(ctx)
}

func (s *BatchSubmitter) Start(ctxIn context.Context) {
	s.StopWaiter.Start(ctxIn, s)
	err := stopwaiter.CallIterativelyWith(&s.StopWaiterSafe, func(ctx context.Context, _ struct{}) time.Duration {
		err := s.maybeSubmitBatch(ctx)
		if err != nil {
			log.Error("error submitting batch", "err", err)
			return s.config.ErrorDelay
		}
		return s.config.PollInterval
	}, s.mempool.FullChan())
	if err != nil {
		panic(err)
	}
}
