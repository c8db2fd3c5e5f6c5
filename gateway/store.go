package gateway

import (
	"fmt"

	"github.com/Fantom-foundation/lachesis-base/inter/idx"
	"github.com/Fantom-foundation/lachesis-base/kvdb"
	"github.com/sirupsen/logrus"

	"github.com/consensus-shipyard/ipc-sub004/inter"
	"github.com/consensus-shipyard/ipc-sub004/inter/ibr"
	"github.com/consensus-shipyard/ipc-sub004/ipc"
)

// BatchStore is the per-subnet log of bottom-up batches, keyed by block
// height. It owns batch records and their quorum state, and keeps the
// indices the lifecycle needs: the last created and executed heights, the
// retention watermark, the batches still collecting signatures and the
// batches certified but not yet executed.
//
// BatchStore does no locking of its own; callers serialize access per subnet.
type BatchStore struct {
	db    kvdb.Store
	table tables
	rules ipc.BatchRules
	log   logrus.FieldLogger
}

// NewBatchStore opens a store over db.
func NewBatchStore(db kvdb.Store, rules ipc.BatchRules, log logrus.FieldLogger) *BatchStore {
	return &BatchStore{
		db:    db,
		table: newTables(db),
		rules: rules,
		log:   log,
	}
}

func (s *BatchStore) newWriteSet() *writeSet {
	return newWriteSet(s.db)
}

// CreateBatch stores a new batch with status Created and the given opened
// quorum record.
func (s *BatchStore) CreateBatch(batch inter.BottomUpMsgBatch, quorum ibr.QuorumRecord) (*ibr.BatchRecord, error) {
	ws := s.newWriteSet()
	rec, err := s.stageCreate(ws, batch, quorum)
	if err != nil {
		return nil, err
	}
	if err := ws.commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *BatchStore) stageCreate(ws *writeSet, batch inter.BottomUpMsgBatch, quorum ibr.QuorumRecord) (*ibr.BatchRecord, error) {
	id, height := batch.SubnetID, batch.BlockHeight
	key := batchKey(id, height)

	exists, err := s.table.Batches.Has(key)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: subnet %s height %d", ErrBatchAlreadyExists, id, height)
	}
	if len(batch.Msgs) == 0 {
		return nil, fmt.Errorf("%w: subnet %s height %d", ErrBatchWithNoMessages, id, height)
	}
	if uint64(len(batch.Msgs)) > s.rules.MaxMsgsPerBatch {
		return nil, fmt.Errorf("%w: %d > %d", ErrMaxMsgsPerBatchExceeded, len(batch.Msgs), s.rules.MaxMsgsPerBatch)
	}
	if err := batch.CheckValues(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCrossMsgValue, err)
	}

	last, ok, err := s.LastCreatedHeight(id)
	if err != nil {
		return nil, err
	}
	if ok && height <= last {
		return nil, fmt.Errorf("%w: height %d not above last created %d", ErrInvalidBatchEpoch, height, last)
	}
	retention, err := s.RetentionHeight(id)
	if err != nil {
		return nil, err
	}
	if height < retention {
		return nil, fmt.Errorf("%w: height %d below retention height %d", ErrInvalidBatchEpoch, height, retention)
	}
	full := uint64(len(batch.Msgs)) == s.rules.MaxMsgsPerBatch
	if s.rules.Period != 0 && height%s.rules.Period != 0 && !full {
		return nil, fmt.Errorf("%w: height %d is not a multiple of period %d", ErrInvalidBatchEpoch, height, s.rules.Period)
	}

	indexed, err := s.table.Incomplete.Has(key)
	if err != nil {
		return nil, err
	}
	if indexed {
		return nil, fmt.Errorf("%w: subnet %s height %d", ErrFailedAddIncompleteQuorum, id, height)
	}

	rec := &ibr.BatchRecord{
		Batch:  batch.Copy(),
		Hash:   batch.Hash(),
		Status: ibr.Created,
		Quorum: quorum.Copy(),
	}
	if err := s.stageRecord(ws, rec); err != nil {
		return nil, err
	}
	ws.put(prefixIncomplete, key, []byte{})
	ws.put(prefixLastCreated, subnetKey(id), height.Bytes())
	return rec, nil
}

// GetBatch returns the record at (id, height), if any.
func (s *BatchStore) GetBatch(id inter.SubnetID, height idx.Block) (*ibr.BatchRecord, bool, error) {
	raw, err := s.table.Batches.Get(batchKey(id, height))
	if err != nil || raw == nil {
		return nil, false, err
	}
	rec := &ibr.BatchRecord{}
	if err := rec.UnmarshalBinary(raw); err != nil {
		return nil, false, fmt.Errorf("corrupted batch record %s/%d: %w", id, height, err)
	}
	return rec, true, nil
}

func (s *BatchStore) mustGet(id inter.SubnetID, height idx.Block) (*ibr.BatchRecord, error) {
	rec, ok, err := s.GetBatch(id, height)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: subnet %s height %d", ErrBatchNotCreated, id, height)
	}
	return rec, nil
}

func (s *BatchStore) stageRecord(ws *writeSet, rec *ibr.BatchRecord) error {
	raw, err := rec.MarshalBinary()
	if err != nil {
		return err
	}
	ws.put(prefixBatches, batchKey(rec.Batch.SubnetID, rec.Batch.BlockHeight), raw)
	return nil
}

// MarkCertified moves a batch to Certified.
func (s *BatchStore) MarkCertified(id inter.SubnetID, height idx.Block) error {
	rec, err := s.mustGet(id, height)
	if err != nil {
		return err
	}
	ws := s.newWriteSet()
	if err := s.stageCertified(ws, rec); err != nil {
		return err
	}
	return ws.commit()
}

func (s *BatchStore) stageCertified(ws *writeSet, rec *ibr.BatchRecord) error {
	id, height := rec.Batch.SubnetID, rec.Batch.BlockHeight
	if rec.Status >= ibr.Certified {
		return fmt.Errorf("%w: subnet %s height %d is %s", ErrQuorumAlreadyProcessed, id, height, rec.Status)
	}
	key := batchKey(id, height)
	indexed, err := s.table.Incomplete.Has(key)
	if err != nil {
		return err
	}
	if !indexed {
		return fmt.Errorf("%w: subnet %s height %d", ErrFailedRemoveIncompleteQuorum, id, height)
	}
	rec.Status = ibr.Certified
	if err := s.stageRecord(ws, rec); err != nil {
		return err
	}
	ws.delete(prefixIncomplete, key)
	ws.put(prefixCertified, key, []byte{})
	return nil
}

// MarkExecuted moves a Certified batch to Executed.
func (s *BatchStore) MarkExecuted(id inter.SubnetID, height idx.Block) error {
	rec, err := s.mustGet(id, height)
	if err != nil {
		return err
	}
	ws := s.newWriteSet()
	if err := s.stageExecuted(ws, rec); err != nil {
		return err
	}
	return ws.commit()
}

func (s *BatchStore) stageExecuted(ws *writeSet, rec *ibr.BatchRecord) error {
	id, height := rec.Batch.SubnetID, rec.Batch.BlockHeight
	switch {
	case rec.Status == ibr.Executed:
		return fmt.Errorf("%w: subnet %s height %d already executed", ErrQuorumAlreadyProcessed, id, height)
	case rec.Status != ibr.Certified:
		return fmt.Errorf("%w: subnet %s height %d is %s", ErrBatchNotCertified, id, height, rec.Status)
	}
	rec.Status = ibr.Executed
	if err := s.stageRecord(ws, rec); err != nil {
		return err
	}
	key := batchKey(id, height)
	ws.delete(prefixCertified, key)
	ws.put(prefixLastExecuted, subnetKey(id), height.Bytes())
	return nil
}

// PruneBelow deletes every batch of the subnet below height that the policy
// allows. Executed batches are always eligible.
func (s *BatchStore) PruneBelow(id inter.SubnetID, height idx.Block, policy ipc.RetentionPolicy) ([]idx.Block, error) {
	ws := s.newWriteSet()
	pruned, err := s.stagePruneBelow(ws, id, height, policy)
	if err != nil {
		return nil, err
	}
	return pruned, ws.commit()
}

func (s *BatchStore) stagePruneBelow(ws *writeSet, id inter.SubnetID, height idx.Block, policy ipc.RetentionPolicy) ([]idx.Block, error) {
	var pruned []idx.Block
	it := s.table.Batches.NewIterator(subnetKey(id), nil)
	defer it.Release()
	for it.Next() {
		key := it.Key()
		if len(key) != subnetKeyLen+8 {
			continue
		}
		h := heightFromKey(key)
		if h >= height {
			break
		}
		rec := &ibr.BatchRecord{}
		if err := rec.UnmarshalBinary(it.Value()); err != nil {
			return nil, fmt.Errorf("corrupted batch record %s/%d: %w", id, h, err)
		}
		switch rec.Status {
		case ibr.Executed:
		case ibr.Certified:
			if !policy.PruneCertified {
				continue
			}
			ws.delete(prefixCertified, key)
		default:
			if !policy.PruneUncertified {
				continue
			}
			ws.delete(prefixIncomplete, key)
		}
		// copy the key, the iterator reuses its buffer
		ws.delete(prefixBatches, append([]byte{}, key...))
		pruned = append(pruned, h)
		s.log.WithFields(logrus.Fields{
			"subnet": id.String(),
			"height": h,
			"status": rec.Status.String(),
		}).Debug("Pruned batch")
	}
	return pruned, it.Error()
}

// IncompleteBatches lists the heights of the subnet's batches that are still
// waiting for a quorum, in ascending order.
func (s *BatchStore) IncompleteBatches(id inter.SubnetID) ([]idx.Block, error) {
	return s.indexHeights(s.table.Incomplete, id)
}

// PendingCertified lists the heights of certified but not executed batches.
func (s *BatchStore) PendingCertified(id inter.SubnetID) ([]idx.Block, error) {
	return s.indexHeights(s.table.Certified, id)
}

func (s *BatchStore) indexHeights(t kvdb.Store, id inter.SubnetID) ([]idx.Block, error) {
	var out []idx.Block
	it := t.NewIterator(subnetKey(id), nil)
	defer it.Release()
	for it.Next() {
		out = append(out, heightFromKey(it.Key()))
	}
	return out, it.Error()
}

// LastCreatedHeight returns the height of the last batch created for the
// subnet, and false if none was.
func (s *BatchStore) LastCreatedHeight(id inter.SubnetID) (idx.Block, bool, error) {
	return getHeight(s.table.LastCreated, subnetKey(id))
}

// LastExecutedHeight returns the height of the last executed batch.
func (s *BatchStore) LastExecutedHeight(id inter.SubnetID) (idx.Block, bool, error) {
	return getHeight(s.table.LastExecuted, subnetKey(id))
}

// RetentionHeight returns the subnet's watermark, zero if never set.
func (s *BatchStore) RetentionHeight(id inter.SubnetID) (idx.Block, error) {
	h, _, err := getHeight(s.table.Retention, subnetKey(id))
	return h, err
}

func (s *BatchStore) stageRetention(ws *writeSet, id inter.SubnetID, height idx.Block) {
	ws.put(prefixRetention, subnetKey(id), height.Bytes())
}
