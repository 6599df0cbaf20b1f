// Copyright 2022-2024, Seq Labs, Inc.
// For license information, see https://github.com/seqlabs/rollup/blob/master/LICENSE

package seqnode

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/rawdb"
	"github.com/ethereum/go-ethereum/ethdb"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/pkg/errors"

	"github.com/seqlabs/rollup/ledger"
	"github.com/seqlabs/rollup/rollupstate"
)

// BatchEntry is the tracker's stored record for one batch: the local cache
// of what the ledger accepted, plus its lifecycle state.
type BatchEntry struct {
	Header       rollupstate.BatchHeader
	Context      rollupstate.BatchContext
	Transactions []rollupstate.Transaction
	BatchHash    common.Hash
	State        rollupstate.BatchState
	Challenged   bool
}

// LifecycleTracker tracks each batch's lifecycle against wall-clock time
// and ledger-confirmed status. The ledger's clock is authoritative; the
// tracker's own timers only gate local finalize requests.
//
// Batch numbering state (latest number, last acknowledged hash) lives
// behind this tracker's mutex and nowhere else, so resynchronization and
// rollback are plain assignments with one owner.
type LifecycleTracker struct {
	db     ethdb.Database
	ledger ledger.Ledger
	mutex  sync.Mutex
	synced bool

	// Now is the tracker's advisory clock, swappable in tests.
	Now func() time.Time
}

func NewLifecycleTracker(raw ethdb.Database, l ledger.Ledger) (*LifecycleTracker, error) {
	t := &LifecycleTracker{
		db:     rawdb.NewTable(raw, rollupPrefix),
		ledger: l,
		Now:    time.Now,
	}
	if err := t.initialize(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *LifecycleTracker) initialize() error {
	hasKey, err := t.db.Has(batchCountKey)
	if err != nil {
		return err
	}
	if hasKey {
		return nil
	}
	batch := t.db.NewBatch()
	value, err := rlp.EncodeToBytes(uint64(0))
	if err != nil {
		return err
	}
	if err := batch.Put(batchCountKey, value); err != nil {
		return err
	}
	if err := batch.Put(lastBatchHashKey, common.Hash{}.Bytes()); err != nil {
		return err
	}
	return batch.Write()
}

// SyncToLedger resets local numbering state to the ledger's authoritative
// values and drops any local entries above the ledger's latest batch.
// Must succeed before the first submission, and again after any
// chain-state mismatch.
func (t *LifecycleTracker) SyncToLedger(ctx context.Context) error {
	latest, err := t.ledger.LatestBatchNumber(ctx)
	if err != nil {
		return errors.Wrap(err, "querying latest batch number")
	}
	lastHash, err := t.ledger.LatestBatchHash(ctx)
	if err != nil {
		return errors.Wrap(err, "querying latest batch hash")
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()
	dbBatch := t.db.NewBatch()
	if err := deleteStartingAt(t.db, dbBatch, batchMetaPrefix, uint64ToBytes(latest+1)); err != nil {
		return err
	}
	countData, err := rlp.EncodeToBytes(latest)
	if err != nil {
		return err
	}
	if err := dbBatch.Put(batchCountKey, countData); err != nil {
		return err
	}
	if err := dbBatch.Put(lastBatchHashKey, lastHash.Bytes()); err != nil {
		return err
	}
	if err := dbBatch.Write(); err != nil {
		return err
	}
	t.synced = true
	log.Info("LifecycleTracker: synced to ledger", "batchCount", latest, "lastBatchHash", lastHash)
	return nil
}

// Synced reports whether numbering has been initialized from the ledger.
func (t *LifecycleTracker) Synced() bool {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.synced
}

func (t *LifecycleTracker) markDesynced() {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	t.synced = false
}

// BatchCount returns the latest acknowledged batch number. Numbering is
// dense from 1, so the count and the latest number coincide.
func (t *LifecycleTracker) BatchCount() (uint64, error) {
	data, err := t.db.Get(batchCountKey)
	if err != nil {
		return 0, err
	}
	var count uint64
	if err := rlp.DecodeBytes(data, &count); err != nil {
		return 0, err
	}
	return count, nil
}

// NextBatchNumber returns the number the next assembled batch must carry.
// Refused until numbering has been initialized from the ledger.
func (t *LifecycleTracker) NextBatchNumber() (uint64, error) {
	t.mutex.Lock()
	synced := t.synced
	t.mutex.Unlock()
	if !synced {
		return 0, ErrNotInitialized
	}
	count, err := t.BatchCount()
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}

func (t *LifecycleTracker) LastBatchHash() (common.Hash, error) {
	data, err := t.db.Get(lastBatchHashKey)
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(data), nil
}

// GetBatch returns the stored entry for a batch number, or nil if the
// batch is unknown. An unknown number is not an error: callers asking for
// a number beyond the current count get a "not found" answer.
func (t *LifecycleTracker) GetBatch(batchNumber uint64) (*BatchEntry, error) {
	key := dbKey(batchMetaPrefix, batchNumber)
	hasKey, err := t.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !hasKey {
		return nil, nil
	}
	data, err := t.db.Get(key)
	if err != nil {
		return nil, err
	}
	var entry BatchEntry
	if err := rlp.DecodeBytes(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// State returns the lifecycle state of a batch number. The boolean is
// false when the batch is unknown.
func (t *LifecycleTracker) State(batchNumber uint64) (rollupstate.BatchState, bool, error) {
	entry, err := t.GetBatch(batchNumber)
	if err != nil {
		return 0, false, err
	}
	if entry == nil {
		return 0, false, nil
	}
	return entry.State, true, nil
}

// RecordSubmitted stores a ledger-acknowledged batch as Safe and advances
// the numbering state. The receipt's hash must equal the locally computed
// header hash; a mismatch means local state has drifted from the ledger
// and blocks further submissions until a resync.
func (t *LifecycleTracker) RecordSubmitted(batch *rollupstate.Batch, receipt *ledger.Receipt) error {
	localHash := batch.Header.Hash()
	if receipt.BatchHash != localHash {
		t.markDesynced()
		return errors.Wrapf(ErrChainMismatch, "ledger hash %v, local hash %v", receipt.BatchHash, localHash)
	}

	t.mutex.Lock()
	defer t.mutex.Unlock()
	entry := BatchEntry{
		Header:       batch.Header,
		Context:      batch.Context,
		Transactions: batch.Transactions,
		BatchHash:    receipt.BatchHash,
		State:        rollupstate.BatchStateSafe,
	}
	entry.Context.ChallengePeriodEnd = receipt.ChallengePeriodEnd

	dbBatch := t.db.NewBatch()
	if err := t.putEntry(dbBatch, &entry); err != nil {
		return err
	}
	countData, err := rlp.EncodeToBytes(batch.Header.BatchNumber)
	if err != nil {
		return err
	}
	if err := dbBatch.Put(batchCountKey, countData); err != nil {
		return err
	}
	if err := dbBatch.Put(lastBatchHashKey, receipt.BatchHash.Bytes()); err != nil {
		return err
	}
	if err := dbBatch.Write(); err != nil {
		return err
	}
	log.Info("LifecycleTracker: batch safe", "batchNumber", batch.Header.BatchNumber, "hash", receipt.BatchHash)
	return nil
}

func (t *LifecycleTracker) putEntry(dbBatch ethdb.Batch, entry *BatchEntry) error {
	data, err := rlp.EncodeToBytes(entry)
	if err != nil {
		return err
	}
	return dbBatch.Put(dbKey(batchMetaPrefix, entry.Header.BatchNumber), data)
}

// Finalize requests finalization of a batch. Refused locally if the batch
// is unknown, already finalized, challenged, or its challenge window has
// not elapsed on the tracker's clock. The ledger applies the same checks
// against its own clock and may still refuse.
func (t *LifecycleTracker) Finalize(ctx context.Context, batchNumber uint64) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	entry, err := t.GetBatch(batchNumber)
	if err != nil {
		return err
	}
	if entry == nil {
		return ledger.ErrUnknownBatch
	}
	if entry.State == rollupstate.BatchStateFinalized {
		return ledger.ErrBatchFinalized
	}
	if entry.Challenged || entry.State == rollupstate.BatchStateRolledBack {
		return ledger.ErrBatchChallenged
	}
	if uint64(t.Now().Unix()) <= entry.Context.ChallengePeriodEnd {
		return ledger.ErrChallengeWindowOpen
	}

	if err := t.ledger.FinalizeBatch(ctx, batchNumber); err != nil {
		return errors.Wrap(err, "finalizing batch on ledger")
	}

	entry.State = rollupstate.BatchStateFinalized
	dbBatch := t.db.NewBatch()
	if err := t.putEntry(dbBatch, entry); err != nil {
		return err
	}
	if err := dbBatch.Write(); err != nil {
		return err
	}
	log.Info("LifecycleTracker: batch finalized", "batchNumber", batchNumber)
	return nil
}

// Rollback marks the given batch and every later batch RolledBack and
// resets numbering so the next assembled batch reuses the invalidated
// number. Invoked by the challenge engine after a proven challenge; never
// triggered by the tracker itself.
func (t *LifecycleTracker) Rollback(fromBatch uint64) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	dbBatch := t.db.NewBatch()
	iter := t.db.NewIterator(batchMetaPrefix, uint64ToBytes(fromBatch))
	for iter.Next() {
		var entry BatchEntry
		if err := rlp.DecodeBytes(iter.Value(), &entry); err != nil {
			iter.Release()
			return err
		}
		entry.State = rollupstate.BatchStateRolledBack
		if err := t.putEntry(dbBatch, &entry); err != nil {
			iter.Release()
			return err
		}
	}
	if iter.Error() != nil {
		iter.Release()
		return iter.Error()
	}
	iter.Release()

	var prevHash common.Hash
	if fromBatch > 1 {
		prev, err := t.GetBatch(fromBatch - 1)
		if err != nil {
			return err
		}
		if prev == nil {
			return errors.Wrapf(ErrChainMismatch, "missing batch %v during rollback", fromBatch-1)
		}
		prevHash = prev.BatchHash
	}
	countData, err := rlp.EncodeToBytes(fromBatch - 1)
	if err != nil {
		return err
	}
	if err := dbBatch.Put(batchCountKey, countData); err != nil {
		return err
	}
	if err := dbBatch.Put(lastBatchHashKey, prevHash.Bytes()); err != nil {
		return err
	}
	if err := dbBatch.Write(); err != nil {
		return err
	}
	log.Warn("LifecycleTracker: rolled back", "fromBatch", fromBatch, "batchCount", fromBatch-1)
	return nil
}

// AddChallengeRecord appends a dispute record for a batch without touching
// the batch's challenged flag. Failed attempts are recorded too, so a
// challenger cannot retry the same batch.
func (t *LifecycleTracker) AddChallengeRecord(batchNumber uint64, record *rollupstate.ChallengeRecord) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.addChallengeRecordLocked(batchNumber, record)
}

func (t *LifecycleTracker) addChallengeRecordLocked(batchNumber uint64, record *rollupstate.ChallengeRecord) error {
	records, err := t.challengeRecordsLocked(batchNumber)
	if err != nil {
		return err
	}
	records = append(records, *record)
	recordData, err := rlp.EncodeToBytes(records)
	if err != nil {
		return err
	}
	return t.db.Put(dbKey(challengePrefix, batchNumber), recordData)
}

// MarkChallenged flips the challenged flag on a batch and appends the
// winning challenge record.
func (t *LifecycleTracker) MarkChallenged(batchNumber uint64, record *rollupstate.ChallengeRecord) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	entry, err := t.GetBatch(batchNumber)
	if err != nil {
		return err
	}
	if entry == nil {
		return ledger.ErrUnknownBatch
	}
	entry.Challenged = true

	dbBatch := t.db.NewBatch()
	if err := t.putEntry(dbBatch, entry); err != nil {
		return err
	}
	if err := dbBatch.Write(); err != nil {
		return err
	}
	return t.addChallengeRecordLocked(batchNumber, record)
}

// ChallengeRecords returns every recorded dispute for a batch number.
func (t *LifecycleTracker) ChallengeRecords(batchNumber uint64) ([]rollupstate.ChallengeRecord, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return t.challengeRecordsLocked(batchNumber)
}

func (t *LifecycleTracker) challengeRecordsLocked(batchNumber uint64) ([]rollupstate.ChallengeRecord, error) {
	key := dbKey(challengePrefix, batchNumber)
	hasKey, err := t.db.Has(key)
	if err != nil {
		return nil, err
	}
	if !hasKey {
		return nil, nil
	}
	data, err := t.db.Get(key)
	if err != nil {
		return nil, err
	}
	var records []rollupstate.ChallengeRecord
	if err := rlp.DecodeBytes(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// Encodes a uint64 as bytes in a lexically sortable manner for database
// iteration. Only used for database keys, which need sorting; values use
// the shorter RLP encoding.
func uint64ToBytes(x uint64) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, x)
	return data
}

func dbKey(prefix []byte, pos uint64) []byte {
	var key []byte
	key = append(key, prefix...)
	key = append(key, uint64ToBytes(pos)...)
	return key
}

func deleteStartingAt(db ethdb.Database, batch ethdb.Batch, prefix []byte, minKey []byte) error {
	iter := db.NewIterator(prefix, minKey)
	defer iter.Release()
	for iter.Next() {
		if err := batch.Delete(iter.Key()); err != nil {
			return err
		}
	}
	return iter.Error()
}
